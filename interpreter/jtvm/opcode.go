// Copyright (c) 2025 The Figaro Authors
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at figaro.dev/bsl11.
//
// Change Date: 2029-1-1
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package jtvm

import "fmt"

// OpCode is a single byte-code instruction of the virtual machine.
type OpCode byte

const (
	// 0x0 range - arithmetic ops.
	STOP       OpCode = 0x00
	ADD        OpCode = 0x01
	MUL        OpCode = 0x02
	SUB        OpCode = 0x03
	DIV        OpCode = 0x04
	SDIV       OpCode = 0x05
	MOD        OpCode = 0x06
	SMOD       OpCode = 0x07
	ADDMOD     OpCode = 0x08
	MULMOD     OpCode = 0x09
	EXP        OpCode = 0x0A
	SIGNEXTEND OpCode = 0x0B

	// 0x10 range - comparison and bit-logic ops.
	LT     OpCode = 0x10
	GT     OpCode = 0x11
	SLT    OpCode = 0x12
	SGT    OpCode = 0x13
	EQ     OpCode = 0x14
	ISZERO OpCode = 0x15
	AND    OpCode = 0x16
	OR     OpCode = 0x17
	XOR    OpCode = 0x18
	NOT    OpCode = 0x19
	BYTE   OpCode = 0x1A
	SHL    OpCode = 0x1B
	SHR    OpCode = 0x1C
	SAR    OpCode = 0x1D

	// 0x20 range - crypto.
	SHA3 OpCode = 0x20

	// 0x30 range - closure state.
	ADDRESS        OpCode = 0x30
	BALANCE        OpCode = 0x31
	ORIGIN         OpCode = 0x32
	CALLER         OpCode = 0x33
	CALLVALUE      OpCode = 0x34
	CALLDATALOAD   OpCode = 0x35
	CALLDATASIZE   OpCode = 0x36
	CALLDATACOPY   OpCode = 0x37
	CODESIZE       OpCode = 0x38
	CODECOPY       OpCode = 0x39
	GASPRICE       OpCode = 0x3A
	EXTCODESIZE    OpCode = 0x3B
	EXTCODECOPY    OpCode = 0x3C
	RETURNDATASIZE OpCode = 0x3D
	RETURNDATACOPY OpCode = 0x3E
	EXTCODEHASH    OpCode = 0x3F

	// 0x40 range - block operations.
	BLOCKHASH   OpCode = 0x40
	COINBASE    OpCode = 0x41
	TIMESTAMP   OpCode = 0x42
	NUMBER      OpCode = 0x43
	PREVRANDAO  OpCode = 0x44
	GASLIMIT    OpCode = 0x45
	CHAINID     OpCode = 0x46
	SELFBALANCE OpCode = 0x47
	BASEFEE     OpCode = 0x48
	BLOBHASH    OpCode = 0x49
	BLOBBASEFEE OpCode = 0x4A

	// 0x50 range - storage, memory and control flow.
	POP      OpCode = 0x50
	MLOAD    OpCode = 0x51
	MSTORE   OpCode = 0x52
	MSTORE8  OpCode = 0x53
	SLOAD    OpCode = 0x54
	SSTORE   OpCode = 0x55
	JUMP     OpCode = 0x56
	JUMPI    OpCode = 0x57
	PC       OpCode = 0x58
	MSIZE    OpCode = 0x59
	GAS      OpCode = 0x5A
	JUMPDEST OpCode = 0x5B
	TLOAD    OpCode = 0x5C
	TSTORE   OpCode = 0x5D
	MCOPY    OpCode = 0x5E
	PUSH0    OpCode = 0x5F

	// 0x60 range - pushes.
	PUSH1  OpCode = 0x60
	PUSH2  OpCode = 0x61
	PUSH4  OpCode = 0x63
	PUSH32 OpCode = 0x7F

	// 0x80 range - duplications.
	DUP1  OpCode = 0x80
	DUP2  OpCode = 0x81
	DUP16 OpCode = 0x8F

	// 0x90 range - swaps.
	SWAP1  OpCode = 0x90
	SWAP2  OpCode = 0x91
	SWAP16 OpCode = 0x9F

	// 0xA0 range - logging.
	LOG0 OpCode = 0xA0
	LOG4 OpCode = 0xA4

	// 0xF0 range - calls and closures.
	CREATE       OpCode = 0xF0
	CALL         OpCode = 0xF1
	CALLCODE     OpCode = 0xF2
	RETURN       OpCode = 0xF3
	DELEGATECALL OpCode = 0xF4
	CREATE2      OpCode = 0xF5
	STATICCALL   OpCode = 0xFA
	REVERT       OpCode = 0xFD
	INVALID      OpCode = 0xFE
	SELFDESTRUCT OpCode = 0xFF
)

// opCodeNames maps byte values to human readable instruction names. Bytes
// without an assigned instruction have an empty name.
var opCodeNames = [256]string{}

func init() {
	named := map[OpCode]string{
		STOP: "STOP", ADD: "ADD", MUL: "MUL", SUB: "SUB", DIV: "DIV",
		SDIV: "SDIV", MOD: "MOD", SMOD: "SMOD", ADDMOD: "ADDMOD",
		MULMOD: "MULMOD", EXP: "EXP", SIGNEXTEND: "SIGNEXTEND",
		LT: "LT", GT: "GT", SLT: "SLT", SGT: "SGT", EQ: "EQ",
		ISZERO: "ISZERO", AND: "AND", OR: "OR", XOR: "XOR", NOT: "NOT",
		BYTE: "BYTE", SHL: "SHL", SHR: "SHR", SAR: "SAR", SHA3: "SHA3",
		ADDRESS: "ADDRESS", BALANCE: "BALANCE", ORIGIN: "ORIGIN",
		CALLER: "CALLER", CALLVALUE: "CALLVALUE",
		CALLDATALOAD: "CALLDATALOAD", CALLDATASIZE: "CALLDATASIZE",
		CALLDATACOPY: "CALLDATACOPY", CODESIZE: "CODESIZE",
		CODECOPY: "CODECOPY", GASPRICE: "GASPRICE",
		EXTCODESIZE: "EXTCODESIZE", EXTCODECOPY: "EXTCODECOPY",
		RETURNDATASIZE: "RETURNDATASIZE", RETURNDATACOPY: "RETURNDATACOPY",
		EXTCODEHASH: "EXTCODEHASH", BLOCKHASH: "BLOCKHASH",
		COINBASE: "COINBASE", TIMESTAMP: "TIMESTAMP", NUMBER: "NUMBER",
		PREVRANDAO: "PREVRANDAO", GASLIMIT: "GASLIMIT", CHAINID: "CHAINID",
		SELFBALANCE: "SELFBALANCE", BASEFEE: "BASEFEE",
		BLOBHASH: "BLOBHASH", BLOBBASEFEE: "BLOBBASEFEE",
		POP: "POP", MLOAD: "MLOAD", MSTORE: "MSTORE", MSTORE8: "MSTORE8",
		SLOAD: "SLOAD", SSTORE: "SSTORE", JUMP: "JUMP", JUMPI: "JUMPI",
		PC: "PC", MSIZE: "MSIZE", GAS: "GAS", JUMPDEST: "JUMPDEST",
		TLOAD: "TLOAD", TSTORE: "TSTORE", MCOPY: "MCOPY", PUSH0: "PUSH0",
		CREATE: "CREATE", CALL: "CALL", CALLCODE: "CALLCODE",
		RETURN: "RETURN", DELEGATECALL: "DELEGATECALL", CREATE2: "CREATE2",
		STATICCALL: "STATICCALL", REVERT: "REVERT", INVALID: "INVALID",
		SELFDESTRUCT: "SELFDESTRUCT",
	}
	for op, name := range named {
		opCodeNames[op] = name
	}
	for i := 0; i < 32; i++ {
		opCodeNames[int(PUSH1)+i] = fmt.Sprintf("PUSH%d", i+1)
	}
	for i := 0; i < 16; i++ {
		opCodeNames[int(DUP1)+i] = fmt.Sprintf("DUP%d", i+1)
		opCodeNames[int(SWAP1)+i] = fmt.Sprintf("SWAP%d", i+1)
	}
	for i := 0; i < 5; i++ {
		opCodeNames[int(LOG0)+i] = fmt.Sprintf("LOG%d", i)
	}
}

func (op OpCode) String() string {
	if name := opCodeNames[op]; name != "" {
		return name
	}
	return fmt.Sprintf("op(0x%02X)", byte(op))
}

// isPush returns true if the given instruction is a push with at least one
// byte of immediate data.
func isPush(op OpCode) bool {
	return PUSH1 <= op && op <= PUSH32
}

// pushSize returns the number of immediate argument bytes of a push
// instruction, and 0 for everything else.
func pushSize(op OpCode) int {
	if isPush(op) {
		return int(op) - int(PUSH1) + 1
	}
	return 0
}

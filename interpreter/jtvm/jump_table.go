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

import "github.com/figaro-vm/figaro"

// operation describes one instruction of an instruction set. The static
// gas and the stack bounds are validated by the interpreter loop before
// the execute function runs, dynamic costs are charged by the execute
// function itself.
type operation struct {
	execute    func(c *context) error
	gas        figaro.Gas // static gas charged up front
	minStack   int        // minimum stack height required
	maxStack   int        // maximum stack height accepted
	immediates int        // number of immediate argument bytes
}

// instructionSet is a complete dispatch table for one chain revision.
// Every byte value has an entry, unassigned bytes carry the
// invalid-instruction operation.
type instructionSet [256]operation

const (
	gasQuickStep   figaro.Gas = 2
	gasFastestStep figaro.Gas = 3
	gasFastStep    figaro.Gas = 5
	gasMidStep     figaro.Gas = 8
	gasSlowStep    figaro.Gas = 10
	gasExtStep     figaro.Gas = 20
)

// minStack and maxStack translate the pop/push counts of an instruction
// into the stack bounds checked by the interpreter loop.
func minStack(pops, pushes int) int {
	return pops
}

func maxStack(pops, pushes int) int {
	return maxStackSize + pops - pushes
}

func (set *instructionSet) define(code OpCode, execute func(c *context) error, gas figaro.Gas, pops, pushes int) {
	set[code] = operation{
		execute:  execute,
		gas:      gas,
		minStack: minStack(pops, pushes),
		maxStack: maxStack(pops, pushes),
	}
}

func newIstanbulInstructionSet() *instructionSet {
	set := &instructionSet{}
	for i := range set {
		set[i] = operation{
			execute:  opInvalid,
			maxStack: maxStackSize,
		}
	}

	set.define(STOP, opStop, 0, 0, 0)
	set.define(ADD, opAdd, gasFastestStep, 2, 1)
	set.define(MUL, opMul, gasFastStep, 2, 1)
	set.define(SUB, opSub, gasFastestStep, 2, 1)
	set.define(DIV, opDiv, gasFastStep, 2, 1)
	set.define(SDIV, opSDiv, gasFastStep, 2, 1)
	set.define(MOD, opMod, gasFastStep, 2, 1)
	set.define(SMOD, opSMod, gasFastStep, 2, 1)
	set.define(ADDMOD, opAddMod, gasMidStep, 3, 1)
	set.define(MULMOD, opMulMod, gasMidStep, 3, 1)
	set.define(EXP, opExp, gasSlowStep, 2, 1)
	set.define(SIGNEXTEND, opSignExtend, gasFastStep, 2, 1)

	set.define(LT, opLt, gasFastestStep, 2, 1)
	set.define(GT, opGt, gasFastestStep, 2, 1)
	set.define(SLT, opSlt, gasFastestStep, 2, 1)
	set.define(SGT, opSgt, gasFastestStep, 2, 1)
	set.define(EQ, opEq, gasFastestStep, 2, 1)
	set.define(ISZERO, opIsZero, gasFastestStep, 1, 1)
	set.define(AND, opAnd, gasFastestStep, 2, 1)
	set.define(OR, opOr, gasFastestStep, 2, 1)
	set.define(XOR, opXor, gasFastestStep, 2, 1)
	set.define(NOT, opNot, gasFastestStep, 1, 1)
	set.define(BYTE, opByte, gasFastestStep, 2, 1)
	set.define(SHL, opShl, gasFastestStep, 2, 1)
	set.define(SHR, opShr, gasFastestStep, 2, 1)
	set.define(SAR, opSar, gasFastestStep, 2, 1)

	set.define(SHA3, opSha3, 30, 2, 1)

	set.define(ADDRESS, opAddress, gasQuickStep, 0, 1)
	set.define(BALANCE, opBalance, 700, 1, 1)
	set.define(ORIGIN, opOrigin, gasQuickStep, 0, 1)
	set.define(CALLER, opCaller, gasQuickStep, 0, 1)
	set.define(CALLVALUE, opCallValue, gasQuickStep, 0, 1)
	set.define(CALLDATALOAD, opCallDataLoad, gasFastestStep, 1, 1)
	set.define(CALLDATASIZE, opCallDataSize, gasQuickStep, 0, 1)
	set.define(CALLDATACOPY, opCallDataCopy, gasFastestStep, 3, 0)
	set.define(CODESIZE, opCodeSize, gasQuickStep, 0, 1)
	set.define(CODECOPY, opCodeCopy, gasFastestStep, 3, 0)
	set.define(GASPRICE, opGasPrice, gasQuickStep, 0, 1)
	set.define(EXTCODESIZE, opExtCodeSize, 700, 1, 1)
	set.define(EXTCODECOPY, opExtCodeCopy, 700, 4, 0)
	set.define(RETURNDATASIZE, opReturnDataSize, gasQuickStep, 0, 1)
	set.define(RETURNDATACOPY, opReturnDataCopy, gasFastestStep, 3, 0)
	set.define(EXTCODEHASH, opExtCodeHash, 700, 1, 1)

	set.define(BLOCKHASH, opBlockHash, gasExtStep, 1, 1)
	set.define(COINBASE, opCoinbase, gasQuickStep, 0, 1)
	set.define(TIMESTAMP, opTimestamp, gasQuickStep, 0, 1)
	set.define(NUMBER, opNumber, gasQuickStep, 0, 1)
	set.define(PREVRANDAO, opPrevRandao, gasQuickStep, 0, 1)
	set.define(GASLIMIT, opGasLimit, gasQuickStep, 0, 1)
	set.define(CHAINID, opChainId, gasQuickStep, 0, 1)
	set.define(SELFBALANCE, opSelfBalance, gasFastStep, 0, 1)

	set.define(POP, opPop, gasQuickStep, 1, 0)
	set.define(MLOAD, opMload, gasFastestStep, 1, 1)
	set.define(MSTORE, opMstore, gasFastestStep, 2, 0)
	set.define(MSTORE8, opMstore8, gasFastestStep, 2, 0)
	set.define(SLOAD, opSload, SloadGasEIP2200, 1, 1)
	set.define(SSTORE, opSstore, 0, 2, 0)
	set.define(JUMP, opJump, gasMidStep, 1, 0)
	set.define(JUMPI, opJumpi, gasSlowStep, 2, 0)
	set.define(PC, opPc, gasQuickStep, 0, 1)
	set.define(MSIZE, opMsize, gasQuickStep, 0, 1)
	set.define(GAS, opGas, gasQuickStep, 0, 1)
	set.define(JUMPDEST, opJumpDest, 1, 0, 0)

	for i := 0; i < 32; i++ {
		n := i + 1
		set[int(PUSH1)+i] = operation{
			execute:    makePush(n),
			gas:        gasFastestStep,
			minStack:   minStack(0, 1),
			maxStack:   maxStack(0, 1),
			immediates: n,
		}
	}
	for n := 1; n <= 16; n++ {
		set[int(DUP1)+n-1] = operation{
			execute:  makeDup(n),
			gas:      gasFastestStep,
			minStack: n,
			maxStack: maxStack(0, 1),
		}
		set[int(SWAP1)+n-1] = operation{
			execute:  makeSwap(n),
			gas:      gasFastestStep,
			minStack: n + 1,
			maxStack: maxStackSize,
		}
	}
	for n := 0; n <= 4; n++ {
		set[int(LOG0)+n] = operation{
			execute:  makeLog(n),
			gas:      figaro.Gas(375 + 375*n),
			minStack: minStack(n+2, 0),
			maxStack: maxStack(n+2, 0),
		}
	}

	set.define(CREATE, opCreate, CreateGas, 3, 1)
	set.define(CALL, opCall, 700, 7, 1)
	set.define(CALLCODE, opCallCode, 700, 7, 1)
	set.define(RETURN, opReturn, 0, 2, 0)
	set.define(DELEGATECALL, opDelegateCall, 700, 6, 1)
	set.define(CREATE2, opCreate2, CreateGas, 4, 1)
	set.define(STATICCALL, opStaticCall, 700, 6, 1)
	set.define(REVERT, opRevert, 0, 2, 0)
	set.define(INVALID, opInvalid, 0, 0, 0)
	set.define(SELFDESTRUCT, opSelfDestruct, SelfdestructGas, 1, 0)

	return set
}

// newBerlinInstructionSet moves the account and storage access costs of
// the affected instructions from the static table into their dynamic
// warm/cold charging.
func newBerlinInstructionSet() *instructionSet {
	set := *newIstanbulInstructionSet()
	for _, op := range []OpCode{
		BALANCE, EXTCODESIZE, EXTCODECOPY, EXTCODEHASH,
		CALL, CALLCODE, DELEGATECALL, STATICCALL,
	} {
		set[op].gas = 0
	}
	set[SLOAD].gas = 0
	return &set
}

func newLondonInstructionSet() *instructionSet {
	set := *newBerlinInstructionSet()
	set.define(BASEFEE, opBaseFee, gasQuickStep, 0, 1)
	return &set
}

func newShanghaiInstructionSet() *instructionSet {
	set := *newLondonInstructionSet()
	set.define(PUSH0, opPush0, gasQuickStep, 0, 1)
	return &set
}

func newCancunInstructionSet() *instructionSet {
	set := *newShanghaiInstructionSet()
	set.define(TLOAD, opTload, WarmStorageReadCost, 1, 1)
	set.define(TSTORE, opTstore, WarmStorageReadCost, 2, 0)
	set.define(MCOPY, opMcopy, gasFastestStep, 3, 0)
	set.define(BLOBHASH, opBlobHash, gasFastestStep, 1, 1)
	set.define(BLOBBASEFEE, opBlobBaseFee, gasQuickStep, 0, 1)
	return &set
}

// instructionSets holds one dispatch table per supported revision.
var instructionSets = func() []*instructionSet {
	istanbul := newIstanbulInstructionSet()
	berlin := newBerlinInstructionSet()
	london := newLondonInstructionSet()
	shanghai := newShanghaiInstructionSet()
	cancun := newCancunInstructionSet()
	return []*instructionSet{
		figaro.R07_Istanbul: istanbul,
		figaro.R09_Berlin:   berlin,
		figaro.R10_London:   london,
		figaro.R11_Paris:    london, // only changes block randomness semantics
		figaro.R12_Shanghai: shanghai,
		figaro.R13_Cancun:   cancun,
	}
}()

func getInstructionSet(revision figaro.Revision) *instructionSet {
	return instructionSets[revision]
}

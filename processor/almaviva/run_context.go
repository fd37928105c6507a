// Copyright (c) 2025 The Figaro Authors
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at figaro.dev/bsl11.
//
// Change Date: 2029-1-1
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package almaviva

import (
	"encoding/binary"

	"github.com/figaro-vm/figaro"
)

const (
	MaxRecursiveDepth = 1024

	maxCodeSize          = 24576
	maxInitCodeSize      = 2 * maxCodeSize
	initCodeWordGas      = 2
	createGasCostPerByte = 200
)

// runContext implements the figaro.RunContext used by the interpreter for
// recursive contract calls. It is passed by value so that each call frame
// carries its own depth and static flag.
type runContext struct {
	figaro.TransactionContext
	interpreter           figaro.Interpreter
	blockParameters       figaro.BlockParameters
	transactionParameters figaro.TransactionParameters
	depth                 int
	static                bool
}

func (r runContext) Call(kind figaro.CallKind, parameters figaro.CallParameters) (figaro.CallResult, error) {
	if kind == figaro.Create || kind == figaro.Create2 {
		return r.executeCreate(kind, parameters)
	}
	return r.executeCall(kind, parameters)
}

func (r runContext) executeCall(kind figaro.CallKind, parameters figaro.CallParameters) (figaro.CallResult, error) {
	errResult := figaro.CallResult{
		Success: false,
		GasLeft: parameters.Gas,
	}
	if r.depth >= MaxRecursiveDepth {
		return errResult, nil
	}
	r.depth++

	if kind == figaro.Call || kind == figaro.CallCode {
		if !canTransferValue(r, parameters.Value, parameters.Sender) {
			return errResult, nil
		}
	}

	if kind == figaro.StaticCall {
		r.static = true
	}

	snapshot := r.CreateSnapshot()

	if kind == figaro.Call {
		transferValue(r, parameters.Value, parameters.Sender, parameters.Recipient)
	}

	if result, handled := handlePrecompiledContract(parameters); handled {
		if !result.Success {
			r.RestoreSnapshot(snapshot)
		}
		return result, nil
	}

	codeAddress := parameters.Recipient
	if kind == figaro.DelegateCall || kind == figaro.CallCode {
		codeAddress = parameters.CodeAddress
	}
	code := r.GetCode(codeAddress)
	codeHash := r.GetCodeHash(codeAddress)

	result, err := r.runInterpreter(kind, parameters, code, &codeHash)
	if err != nil || !result.Success {
		r.RestoreSnapshot(snapshot)
		if !isRevert(result, err) {
			// all gas is lost on a non-revert failure
			result.GasLeft = 0
		}
	}
	return result, err
}

func (r runContext) executeCreate(kind figaro.CallKind, parameters figaro.CallParameters) (figaro.CallResult, error) {
	errResult := figaro.CallResult{
		Success: false,
		GasLeft: parameters.Gas,
	}
	if r.depth >= MaxRecursiveDepth {
		return errResult, nil
	}
	r.depth++

	if !canTransferValue(r, parameters.Value, parameters.Sender) {
		return errResult, nil
	}

	incrementNonce(r, parameters.Sender)

	initCode := figaro.Code(parameters.Input)
	initCodeHash := figaro.Keccak256ForCode(initCode)
	createdAddress := createAddress(kind, parameters.Sender, r.GetNonce(parameters.Sender)-1, parameters.Salt, initCodeHash)

	if r.blockParameters.Revision >= figaro.R09_Berlin {
		r.AccessAccount(createdAddress)
	}

	// an account with a nonce or code at the target address blocks the create
	if r.GetNonce(createdAddress) != 0 || !isEmptyCodeHash(r.GetCodeHash(createdAddress)) {
		return figaro.CallResult{}, nil
	}

	snapshot := r.CreateSnapshot()
	r.SetNonce(createdAddress, 1)
	transferValue(r, parameters.Value, parameters.Sender, createdAddress)

	createParameters := parameters
	createParameters.Recipient = createdAddress
	createParameters.Input = nil

	result, err := r.runInterpreter(kind, createParameters, initCode, &initCodeHash)
	if err != nil || !result.Success {
		r.RestoreSnapshot(snapshot)
		if !isRevert(result, err) {
			result = figaro.CallResult{}
		}
		return result, err
	}

	code := figaro.Code(result.Output)
	if len(code) > maxCodeSize {
		r.RestoreSnapshot(snapshot)
		return figaro.CallResult{}, nil
	}
	if r.blockParameters.Revision >= figaro.R10_London && len(code) > 0 && code[0] == 0xEF {
		r.RestoreSnapshot(snapshot)
		return figaro.CallResult{}, nil
	}
	depositGas := figaro.Gas(len(code)) * createGasCostPerByte
	if result.GasLeft < depositGas {
		r.RestoreSnapshot(snapshot)
		return figaro.CallResult{}, nil
	}
	result.GasLeft -= depositGas
	r.SetCode(createdAddress, code)

	result.Output = nil
	result.CreatedAddress = createdAddress
	return result, nil
}

func (r runContext) runInterpreter(
	kind figaro.CallKind,
	parameters figaro.CallParameters,
	code figaro.Code,
	codeHash *figaro.Hash,
) (figaro.CallResult, error) {
	interpreterParameters := figaro.Parameters{
		BlockParameters:       r.blockParameters,
		TransactionParameters: r.transactionParameters,
		Context:               r,
		Kind:                  kind,
		Static:                r.static,
		Depth:                 r.depth,
		Gas:                   parameters.Gas,
		Recipient:             parameters.Recipient,
		Sender:                parameters.Sender,
		Input:                 parameters.Input,
		Value:                 parameters.Value,
		CodeHash:              codeHash,
		Code:                  code,
	}

	result, err := r.interpreter.Run(interpreterParameters)
	if err != nil {
		return figaro.CallResult{}, err
	}

	return figaro.CallResult{
		Output:    result.Output,
		GasLeft:   result.GasLeft,
		GasRefund: result.GasRefund,
		Success:   result.Success,
	}, nil
}

// isRevert distinguishes an orderly revert, which keeps its remaining gas and
// output, from any other failed execution.
func isRevert(result figaro.CallResult, err error) bool {
	return err == nil && !result.Success &&
		(result.GasLeft > 0 || len(result.Output) > 0)
}

func canTransferValue(context figaro.TransactionContext, value figaro.Value, sender figaro.Address) bool {
	if value == (figaro.Value{}) {
		return true
	}
	return context.GetBalance(sender).Cmp(value) >= 0
}

func transferValue(context figaro.TransactionContext, value figaro.Value, sender figaro.Address, recipient figaro.Address) {
	if value == (figaro.Value{}) || sender == recipient {
		return
	}
	context.SetBalance(sender, figaro.Sub(context.GetBalance(sender), value))
	context.SetBalance(recipient, figaro.Add(context.GetBalance(recipient), value))
}

func incrementNonce(context figaro.TransactionContext, address figaro.Address) {
	context.SetNonce(address, context.GetNonce(address)+1)
}

var emptyCodeHash = figaro.Keccak256ForCode(nil)

func isEmptyCodeHash(hash figaro.Hash) bool {
	return hash == (figaro.Hash{}) || hash == emptyCodeHash
}

// createAddress derives the address of a newly created contract. For plain
// creates it is the keccak of the RLP encoding of sender and nonce, for
// CREATE2 the derivation mixes sender, salt, and init code hash.
func createAddress(
	kind figaro.CallKind,
	sender figaro.Address,
	nonce uint64,
	salt figaro.Hash,
	initCodeHash figaro.Hash,
) figaro.Address {
	var hash figaro.Hash
	if kind == figaro.Create {
		hash = figaro.Keccak256(rlpEncodeAddressAndNonce(sender, nonce))
	} else {
		data := make([]byte, 0, 1+20+32+32)
		data = append(data, 0xff)
		data = append(data, sender[:]...)
		data = append(data, salt[:]...)
		data = append(data, initCodeHash[:]...)
		hash = figaro.Keccak256(data)
	}
	return figaro.Address(hash[12:])
}

// rlpEncodeAddressAndNonce produces the RLP encoding of the two-element list
// [address, nonce]. The payload is at most 30 bytes, so a single-byte list
// header is always sufficient.
func rlpEncodeAddressAndNonce(address figaro.Address, nonce uint64) []byte {
	nonceBytes := rlpEncodeNonce(nonce)
	payloadLength := 1 + len(address) + len(nonceBytes)
	encoded := make([]byte, 0, 1+payloadLength)
	encoded = append(encoded, 0xc0+byte(payloadLength))
	encoded = append(encoded, 0x80+byte(len(address)))
	encoded = append(encoded, address[:]...)
	encoded = append(encoded, nonceBytes...)
	return encoded
}

func rlpEncodeNonce(nonce uint64) []byte {
	if nonce == 0 {
		return []byte{0x80}
	}
	if nonce < 0x80 {
		return []byte{byte(nonce)}
	}
	var buffer [8]byte
	binary.BigEndian.PutUint64(buffer[:], nonce)
	start := 0
	for buffer[start] == 0 {
		start++
	}
	return append([]byte{0x80 + byte(8-start)}, buffer[start:]...)
}

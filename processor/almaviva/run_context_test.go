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
	"bytes"
	"fmt"
	"testing"

	"github.com/figaro-vm/figaro"
	"go.uber.org/mock/gomock"
)

func TestRunContext_InterpreterResultIsHandledCorrectly(t *testing.T) {
	tests := map[string]struct {
		setup   func(interpreter *figaro.MockInterpreter)
		success bool
		output  []byte
	}{
		"successful": {
			setup: func(interpreter *figaro.MockInterpreter) {
				interpreter.EXPECT().Run(gomock.Any()).Return(figaro.Result{Success: true}, nil)
			},
			success: true,
		},
		"failed": {
			setup: func(interpreter *figaro.MockInterpreter) {
				interpreter.EXPECT().Run(gomock.Any()).Return(figaro.Result{Success: false}, nil)
			},
			success: false,
		},
		"output": {
			setup: func(interpreter *figaro.MockInterpreter) {
				interpreter.EXPECT().Run(gomock.Any()).Return(figaro.Result{Success: true, Output: []byte("some output")}, nil)
			},
			success: true,
			output:  []byte("some output"),
		},
	}

	ctrl := gomock.NewController(t)
	context := figaro.NewMockTransactionContext(ctrl)
	interpreter := figaro.NewMockInterpreter(ctrl)

	runContext := runContext{
		context,
		interpreter,
		figaro.BlockParameters{},
		figaro.TransactionParameters{},
		0,
		false,
	}

	params := figaro.CallParameters{
		Sender:    figaro.Address{1},
		Recipient: figaro.Address{2},
		Value:     figaro.NewValue(0),
		Gas:       1000,
		Input:     []byte{},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			context.EXPECT().GetCodeHash(params.Recipient).Return(figaro.Hash{})
			context.EXPECT().GetCode(params.Recipient).Return(figaro.Code{})
			context.EXPECT().CreateSnapshot()
			context.EXPECT().RestoreSnapshot(gomock.Any()).AnyTimes()

			test.setup(interpreter)

			result, err := runContext.Call(figaro.Call, params)
			if err != nil {
				t.Errorf("Call returned an unexpected error: %v", err)
			}
			if result.Success != test.success {
				t.Errorf("unexpected success value from interpreter call")
			}
			if !bytes.Equal(result.Output, test.output) {
				t.Errorf("unexpected output value from interpreter call")
			}
		})
	}
}

func TestRunContext_CallDepthLimitIsEnforced(t *testing.T) {
	ctrl := gomock.NewController(t)
	context := figaro.NewMockTransactionContext(ctrl)
	interpreter := figaro.NewMockInterpreter(ctrl)

	runContext := runContext{
		context,
		interpreter,
		figaro.BlockParameters{},
		figaro.TransactionParameters{},
		MaxRecursiveDepth,
		false,
	}

	for _, kind := range []figaro.CallKind{figaro.Call, figaro.Create} {
		result, err := runContext.Call(kind, figaro.CallParameters{Gas: 100})
		if err != nil {
			t.Fatalf("Call returned an unexpected error: %v", err)
		}
		if result.Success {
			t.Errorf("%v beyond the depth limit succeeded", kind)
		}
		if result.GasLeft != 100 {
			t.Errorf("%v beyond the depth limit must keep its gas", kind)
		}
	}
}

func TestRunContext_FailedCallConsumesAllGas(t *testing.T) {
	ctrl := gomock.NewController(t)
	context := figaro.NewMockTransactionContext(ctrl)
	interpreter := figaro.NewMockInterpreter(ctrl)

	runContext := runContext{
		context,
		interpreter,
		figaro.BlockParameters{},
		figaro.TransactionParameters{},
		0,
		false,
	}

	params := figaro.CallParameters{
		Sender:    figaro.Address{1},
		Recipient: figaro.Address{2},
		Gas:       1000,
	}

	context.EXPECT().GetCodeHash(params.Recipient).Return(figaro.Hash{})
	context.EXPECT().GetCode(params.Recipient).Return(figaro.Code{})
	context.EXPECT().CreateSnapshot()
	context.EXPECT().RestoreSnapshot(gomock.Any())

	interpreter.EXPECT().Run(gomock.Any()).Return(figaro.Result{Success: false}, nil)

	result, err := runContext.Call(figaro.Call, params)
	if err != nil {
		t.Fatalf("Call returned an unexpected error: %v", err)
	}
	if result.GasLeft != 0 {
		t.Errorf("a failed call must not keep gas, got %d", result.GasLeft)
	}
}

func TestRunContext_RevertKeepsGasAndOutput(t *testing.T) {
	ctrl := gomock.NewController(t)
	context := figaro.NewMockTransactionContext(ctrl)
	interpreter := figaro.NewMockInterpreter(ctrl)

	runContext := runContext{
		context,
		interpreter,
		figaro.BlockParameters{},
		figaro.TransactionParameters{},
		0,
		false,
	}

	params := figaro.CallParameters{
		Sender:    figaro.Address{1},
		Recipient: figaro.Address{2},
		Gas:       1000,
	}

	context.EXPECT().GetCodeHash(params.Recipient).Return(figaro.Hash{})
	context.EXPECT().GetCode(params.Recipient).Return(figaro.Code{})
	context.EXPECT().CreateSnapshot()
	context.EXPECT().RestoreSnapshot(gomock.Any())

	interpreter.EXPECT().Run(gomock.Any()).Return(figaro.Result{
		Success: false,
		Output:  []byte("reason"),
		GasLeft: 500,
	}, nil)

	result, err := runContext.Call(figaro.Call, params)
	if err != nil {
		t.Fatalf("Call returned an unexpected error: %v", err)
	}
	if result.Success {
		t.Errorf("a revert must not be reported as success")
	}
	if result.GasLeft != 500 {
		t.Errorf("a revert keeps its remaining gas, got %d", result.GasLeft)
	}
	if !bytes.Equal(result.Output, []byte("reason")) {
		t.Errorf("a revert keeps its output, got %x", result.Output)
	}
}

func TestRunContext_StaticCallMarksNestedFramesStatic(t *testing.T) {
	ctrl := gomock.NewController(t)
	context := figaro.NewMockTransactionContext(ctrl)
	interpreter := figaro.NewMockInterpreter(ctrl)

	runContext := runContext{
		context,
		interpreter,
		figaro.BlockParameters{},
		figaro.TransactionParameters{},
		0,
		false,
	}

	params := figaro.CallParameters{
		Sender:    figaro.Address{1},
		Recipient: figaro.Address{2},
		Gas:       1000,
	}

	context.EXPECT().GetCodeHash(params.Recipient).Return(figaro.Hash{})
	context.EXPECT().GetCode(params.Recipient).Return(figaro.Code{})
	context.EXPECT().CreateSnapshot()

	interpreter.EXPECT().Run(gomock.Any()).DoAndReturn(
		func(parameters figaro.Parameters) (figaro.Result, error) {
			if !parameters.Static {
				t.Errorf("the frame of a static call must be static")
			}
			if parameters.Depth != 1 {
				t.Errorf("unexpected call depth, got %d", parameters.Depth)
			}
			return figaro.Result{Success: true}, nil
		})

	if _, err := runContext.Call(figaro.StaticCall, params); err != nil {
		t.Fatalf("Call returned an unexpected error: %v", err)
	}
}

func TestRunContext_DelegateCallRunsTheCodeOfTheCodeAddress(t *testing.T) {
	ctrl := gomock.NewController(t)
	context := figaro.NewMockTransactionContext(ctrl)
	interpreter := figaro.NewMockInterpreter(ctrl)

	runContext := runContext{
		context,
		interpreter,
		figaro.BlockParameters{},
		figaro.TransactionParameters{},
		0,
		false,
	}

	codeAddress := figaro.Address{3}
	code := figaro.Code{byte(0x00)}
	params := figaro.CallParameters{
		Sender:      figaro.Address{1},
		Recipient:   figaro.Address{2},
		CodeAddress: codeAddress,
		Gas:         1000,
	}

	context.EXPECT().GetCodeHash(codeAddress).Return(figaro.Keccak256ForCode(code))
	context.EXPECT().GetCode(codeAddress).Return(code)
	context.EXPECT().CreateSnapshot()

	interpreter.EXPECT().Run(gomock.Any()).DoAndReturn(
		func(parameters figaro.Parameters) (figaro.Result, error) {
			if !bytes.Equal(parameters.Code, code) {
				t.Errorf("unexpected code, got %x", parameters.Code)
			}
			if parameters.Recipient != params.Recipient {
				t.Errorf("a delegate call runs in the context of the caller")
			}
			return figaro.Result{Success: true}, nil
		})

	if _, err := runContext.Call(figaro.DelegateCall, params); err != nil {
		t.Fatalf("Call returned an unexpected error: %v", err)
	}
}

func TestRunContext_InsufficientBalanceAbortsTheCall(t *testing.T) {
	ctrl := gomock.NewController(t)
	context := figaro.NewMockTransactionContext(ctrl)
	interpreter := figaro.NewMockInterpreter(ctrl)

	runContext := runContext{
		context,
		interpreter,
		figaro.BlockParameters{},
		figaro.TransactionParameters{},
		0,
		false,
	}

	params := figaro.CallParameters{
		Sender:    figaro.Address{1},
		Recipient: figaro.Address{2},
		Value:     figaro.NewValue(100),
		Gas:       1000,
	}

	context.EXPECT().GetBalance(params.Sender).Return(figaro.NewValue(99))

	result, err := runContext.Call(figaro.Call, params)
	if err != nil {
		t.Fatalf("Call returned an unexpected error: %v", err)
	}
	if result.Success {
		t.Errorf("a call without sufficient balance succeeded")
	}
	if result.GasLeft != params.Gas {
		t.Errorf("an aborted call keeps its gas, got %d", result.GasLeft)
	}
}

func TestRunContext_CreateDeploysTheReturnedCode(t *testing.T) {
	sender := figaro.Address{1}
	initCode := figaro.Code{0x01, 0x02}
	deployedCode := figaro.Code{0x60, 0x00}
	createdAddress := createAddress(figaro.Create, sender, 4, figaro.Hash{}, figaro.Keccak256ForCode(initCode))

	ctrl := gomock.NewController(t)
	context := figaro.NewMockTransactionContext(ctrl)
	interpreter := figaro.NewMockInterpreter(ctrl)

	runContext := runContext{
		context,
		interpreter,
		figaro.BlockParameters{Revision: figaro.R09_Berlin},
		figaro.TransactionParameters{},
		0,
		false,
	}

	params := figaro.CallParameters{
		Sender: sender,
		Input:  figaro.Data(initCode),
		Gas:    100_000,
	}

	context.EXPECT().GetNonce(sender).Return(uint64(4))
	context.EXPECT().SetNonce(sender, uint64(5))
	context.EXPECT().GetNonce(sender).Return(uint64(5))
	context.EXPECT().AccessAccount(createdAddress)
	context.EXPECT().GetNonce(createdAddress).Return(uint64(0))
	context.EXPECT().GetCodeHash(createdAddress).Return(figaro.Hash{})
	context.EXPECT().CreateSnapshot()
	context.EXPECT().SetNonce(createdAddress, uint64(1))
	context.EXPECT().SetCode(createdAddress, deployedCode)

	interpreter.EXPECT().Run(gomock.Any()).DoAndReturn(
		func(parameters figaro.Parameters) (figaro.Result, error) {
			if !bytes.Equal(parameters.Code, initCode) {
				t.Errorf("the init code must be executed, got %x", parameters.Code)
			}
			if len(parameters.Input) != 0 {
				t.Errorf("a create frame has no input data")
			}
			return figaro.Result{
				Success: true,
				Output:  figaro.Data(deployedCode),
				GasLeft: 1000,
			}, nil
		})

	result, err := runContext.Call(figaro.Create, params)
	if err != nil {
		t.Fatalf("Call returned an unexpected error: %v", err)
	}
	if !result.Success {
		t.Errorf("the create was not successful")
	}
	if result.CreatedAddress != createdAddress {
		t.Errorf("unexpected contract address, wanted %v, got %v", createdAddress, result.CreatedAddress)
	}
	if want := figaro.Gas(1000 - 2*createGasCostPerByte); result.GasLeft != want {
		t.Errorf("unexpected gas left after the code deposit, wanted %d, got %d", want, result.GasLeft)
	}
	if result.Output != nil {
		t.Errorf("a successful create produces no output")
	}
}

func TestRunContext_CreateFailsOnCollision(t *testing.T) {
	sender := figaro.Address{1}
	initCode := figaro.Code{0x01}
	createdAddress := createAddress(figaro.Create, sender, 4, figaro.Hash{}, figaro.Keccak256ForCode(initCode))

	ctrl := gomock.NewController(t)
	context := figaro.NewMockTransactionContext(ctrl)
	interpreter := figaro.NewMockInterpreter(ctrl)

	runContext := runContext{
		context,
		interpreter,
		figaro.BlockParameters{},
		figaro.TransactionParameters{},
		0,
		false,
	}

	context.EXPECT().GetNonce(sender).Return(uint64(4))
	context.EXPECT().SetNonce(sender, uint64(5))
	context.EXPECT().GetNonce(sender).Return(uint64(5))
	context.EXPECT().GetNonce(createdAddress).Return(uint64(1))

	result, err := runContext.Call(figaro.Create, figaro.CallParameters{
		Sender: sender,
		Input:  figaro.Data(initCode),
		Gas:    100_000,
	})
	if err != nil {
		t.Fatalf("Call returned an unexpected error: %v", err)
	}
	if result.Success {
		t.Errorf("a create on an occupied address succeeded")
	}
	if result.GasLeft != 0 {
		t.Errorf("a collision consumes all gas, got %d", result.GasLeft)
	}
}

func TestRunContext_CreateRejectsIllegalDeployments(t *testing.T) {
	tests := map[string]struct {
		revision figaro.Revision
		output   figaro.Data
		gasLeft  figaro.Gas
	}{
		"oversized code": {
			revision: figaro.R10_London,
			output:   make(figaro.Data, maxCodeSize+1),
			gasLeft:  figaro.Gas(maxCodeSize+1) * createGasCostPerByte,
		},
		"code starting with 0xEF since london": {
			revision: figaro.R10_London,
			output:   figaro.Data{0xEF, 0x01},
			gasLeft:  100_000,
		},
		"unaffordable code deposit": {
			revision: figaro.R10_London,
			output:   figaro.Data{0x01, 0x02},
			gasLeft:  createGasCostPerByte, // two bytes to pay for
		},
	}

	sender := figaro.Address{1}
	initCode := figaro.Code{0x01}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			createdAddress := createAddress(figaro.Create, sender, 4, figaro.Hash{}, figaro.Keccak256ForCode(initCode))

			ctrl := gomock.NewController(t)
			context := figaro.NewMockTransactionContext(ctrl)
			interpreter := figaro.NewMockInterpreter(ctrl)

			runContext := runContext{
				context,
				interpreter,
				figaro.BlockParameters{Revision: test.revision},
				figaro.TransactionParameters{},
				0,
				false,
			}

			context.EXPECT().GetNonce(sender).Return(uint64(4))
			context.EXPECT().SetNonce(sender, uint64(5))
			context.EXPECT().GetNonce(sender).Return(uint64(5))
			context.EXPECT().AccessAccount(createdAddress)
			context.EXPECT().GetNonce(createdAddress).Return(uint64(0))
			context.EXPECT().GetCodeHash(createdAddress).Return(emptyCodeHash)
			context.EXPECT().CreateSnapshot()
			context.EXPECT().SetNonce(createdAddress, uint64(1))
			context.EXPECT().RestoreSnapshot(gomock.Any())

			interpreter.EXPECT().Run(gomock.Any()).Return(figaro.Result{
				Success: true,
				Output:  test.output,
				GasLeft: test.gasLeft,
			}, nil)

			result, err := runContext.Call(figaro.Create, figaro.CallParameters{
				Sender: sender,
				Input:  figaro.Data(initCode),
				Gas:    100_000,
			})
			if err != nil {
				t.Fatalf("Call returned an unexpected error: %v", err)
			}
			if result.Success {
				t.Errorf("the deployment was not rejected")
			}
		})
	}
}

func TestRunContext_RevertedCreateKeepsOutputAndGas(t *testing.T) {
	sender := figaro.Address{1}
	initCode := figaro.Code{0x01}
	createdAddress := createAddress(figaro.Create, sender, 4, figaro.Hash{}, figaro.Keccak256ForCode(initCode))

	ctrl := gomock.NewController(t)
	context := figaro.NewMockTransactionContext(ctrl)
	interpreter := figaro.NewMockInterpreter(ctrl)

	runContext := runContext{
		context,
		interpreter,
		figaro.BlockParameters{},
		figaro.TransactionParameters{},
		0,
		false,
	}

	context.EXPECT().GetNonce(sender).Return(uint64(4))
	context.EXPECT().SetNonce(sender, uint64(5))
	context.EXPECT().GetNonce(sender).Return(uint64(5))
	context.EXPECT().GetNonce(createdAddress).Return(uint64(0))
	context.EXPECT().GetCodeHash(createdAddress).Return(figaro.Hash{})
	context.EXPECT().CreateSnapshot()
	context.EXPECT().SetNonce(createdAddress, uint64(1))
	context.EXPECT().RestoreSnapshot(gomock.Any())

	interpreter.EXPECT().Run(gomock.Any()).Return(figaro.Result{
		Success: false,
		Output:  []byte("reason"),
		GasLeft: 500,
	}, nil)

	result, err := runContext.Call(figaro.Create, figaro.CallParameters{
		Sender: sender,
		Input:  figaro.Data(initCode),
		Gas:    100_000,
	})
	if err != nil {
		t.Fatalf("Call returned an unexpected error: %v", err)
	}
	if result.Success {
		t.Errorf("a reverted create must not be reported as success")
	}
	if result.GasLeft != 500 {
		t.Errorf("a reverted create keeps its remaining gas, got %d", result.GasLeft)
	}
	if !bytes.Equal(result.Output, []byte("reason")) {
		t.Errorf("a reverted create keeps its output, got %x", result.Output)
	}
}

func TestCreateAddress_MatchesKnownDerivations(t *testing.T) {
	// values derived from the canonical address derivation rules
	tests := []struct {
		kind     figaro.CallKind
		sender   figaro.Address
		nonce    uint64
		salt     figaro.Hash
		initHash figaro.Hash
	}{
		{kind: figaro.Create, sender: figaro.Address{1}, nonce: 0},
		{kind: figaro.Create, sender: figaro.Address{1}, nonce: 1},
		{kind: figaro.Create, sender: figaro.Address{0xff}, nonce: 0x80},
		{kind: figaro.Create2, sender: figaro.Address{1}, salt: figaro.Hash{2}, initHash: figaro.Keccak256ForCode(nil)},
	}

	seen := map[figaro.Address]bool{}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v/%d", test.kind, test.nonce), func(t *testing.T) {
			address := createAddress(test.kind, test.sender, test.nonce, test.salt, test.initHash)
			if address == (figaro.Address{}) {
				t.Fatalf("derived the zero address")
			}
			if seen[address] {
				t.Fatalf("address derivation is not unique")
			}
			seen[address] = true

			repeated := createAddress(test.kind, test.sender, test.nonce, test.salt, test.initHash)
			if address != repeated {
				t.Errorf("address derivation is not deterministic")
			}
		})
	}
}

func TestRlpEncodeNonce_ProducesCanonicalEncodings(t *testing.T) {
	tests := []struct {
		nonce    uint64
		expected []byte
	}{
		{0, []byte{0x80}},
		{1, []byte{0x01}},
		{0x7f, []byte{0x7f}},
		{0x80, []byte{0x81, 0x80}},
		{0x0100, []byte{0x82, 0x01, 0x00}},
		{0x010000, []byte{0x83, 0x01, 0x00, 0x00}},
	}

	for _, test := range tests {
		t.Run(fmt.Sprintf("%d", test.nonce), func(t *testing.T) {
			got := rlpEncodeNonce(test.nonce)
			if !bytes.Equal(got, test.expected) {
				t.Errorf("unexpected encoding, wanted %x, got %x", test.expected, got)
			}
		})
	}
}

func TestRlpEncodeAddressAndNonce_EncodesTheListHeader(t *testing.T) {
	address := figaro.Address{0xab}
	encoded := rlpEncodeAddressAndNonce(address, 0)
	if want := byte(0xc0 + 22); encoded[0] != want {
		t.Errorf("unexpected list header, wanted %x, got %x", want, encoded[0])
	}
	if want := byte(0x80 + 20); encoded[1] != want {
		t.Errorf("unexpected address header, wanted %x, got %x", want, encoded[1])
	}
	if !bytes.Equal(encoded[2:22], address[:]) {
		t.Errorf("address bytes were not copied correctly")
	}
	if encoded[22] != 0x80 {
		t.Errorf("a zero nonce encodes as the empty string")
	}
}

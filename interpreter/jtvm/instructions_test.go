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

import (
	"bytes"
	"testing"

	"github.com/figaro-vm/figaro"
	"github.com/holiman/uint256"
	"go.uber.org/mock/gomock"
)

func TestInstructions_StaticContextViolationsAreDetected(t *testing.T) {
	tests := map[string]struct {
		op    func(*context) error
		stack []uint64 // pushed in order, last element ends up on top
	}{
		"sstore":       {opSstore, []uint64{1, 1}},
		"tstore":       {opTstore, []uint64{1, 1}},
		"log0":         {makeLog(0), []uint64{0, 0}},
		"log4":         {makeLog(4), []uint64{0, 0, 0, 0, 0, 0}},
		"create":       {opCreate, []uint64{0, 0, 0}},
		"create2":      {opCreate2, []uint64{0, 0, 0, 0}},
		"selfdestruct": {opSelfDestruct, []uint64{0}},
		"call with value": {opCall, []uint64{
			0, 0, 0, 0, 1 /* value */, 0, 100000,
		}},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			c := getEmptyContext()
			defer ReturnStack(c.stack)
			c.table = getInstructionSet(figaro.R13_Cancun)
			c.params.Revision = figaro.R13_Cancun
			c.params.Static = true
			for _, value := range test.stack {
				c.stack.pushEmpty().SetUint64(value)
			}

			if err := test.op(&c); err != errStaticContextViolation {
				t.Errorf("expected a static context violation, got %v", err)
			}
		})
	}
}

func TestInstructions_CallWithoutValueIsAllowedInStaticContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	runContext := figaro.NewMockRunContext(ctrl)

	c := getEmptyContext()
	defer ReturnStack(c.stack)
	c.context = runContext
	c.params.Static = true
	for _, value := range []uint64{0, 0, 0, 0, 0, 0, 100000} {
		c.stack.pushEmpty().SetUint64(value)
	}

	// the static restriction is passed on as a static call
	runContext.EXPECT().
		Call(figaro.StaticCall, gomock.Any()).
		Return(figaro.CallResult{Success: true}, nil)

	if err := opCall(&c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := uint64(1), c.stack.pop().Uint64(); want != got {
		t.Errorf("unexpected call result on stack, wanted %d, got %d", want, got)
	}
}

func TestGenericCall_ForwardsExactly63Of64OfTheRemainingGas(t *testing.T) {
	for _, available := range []figaro.Gas{64, 65, 128, 6400, 1000000} {
		ctrl := gomock.NewController(t)
		runContext := figaro.NewMockRunContext(ctrl)

		c := getEmptyContext()
		c.context = runContext
		c.gas = available
		// request more than can be forwarded
		for _, value := range []uint64{0, 0, 0, 0, 0, 0} {
			c.stack.pushEmpty().SetUint64(value)
		}
		c.stack.push(new(uint256.Int).SetAllOne())

		want := available - available/64
		runContext.EXPECT().
			Call(figaro.Call, gomock.Any()).
			DoAndReturn(func(_ figaro.CallKind, parameters figaro.CallParameters) (figaro.CallResult, error) {
				if parameters.Gas != want {
					t.Errorf("available %d: unexpected nested gas, wanted %d, got %d",
						available, want, parameters.Gas)
				}
				return figaro.CallResult{Success: true}, nil
			})

		if err := opCall(&c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := c.gas; got != available/64 {
			t.Errorf("available %d: unexpected remaining gas, wanted %d, got %d",
				available, available/64, got)
		}
		ReturnStack(c.stack)
	}
}

func TestGenericCall_InsufficientBalancePushesZeroWithoutCalling(t *testing.T) {
	ctrl := gomock.NewController(t)
	runContext := figaro.NewMockRunContext(ctrl)

	c := getEmptyContext()
	defer ReturnStack(c.stack)
	c.context = runContext
	c.gas = 100000
	for _, value := range []uint64{0, 0, 0, 0, 1 /* value */, 0, 100000} {
		c.stack.pushEmpty().SetUint64(value)
	}

	runContext.EXPECT().AccountExists(gomock.Any()).Return(true)
	runContext.EXPECT().GetBalance(gomock.Any()).Return(figaro.Value{})

	if err := opCall(&c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := uint64(0), c.stack.pop().Uint64(); want != got {
		t.Errorf("unexpected call result on stack, wanted %d, got %d", want, got)
	}
	// the forwarded gas including the stipend is returned, only the value
	// transfer cost minus the stipend is lost
	if want, got := figaro.Gas(100000)-CallValueTransferGas+CallStipend, c.gas; want != got {
		t.Errorf("unexpected remaining gas, wanted %d, got %d", want, got)
	}
	if c.returnData != nil {
		t.Errorf("return data was not cleared")
	}
}

func TestGenericCall_DepthLimitPushesZeroWithoutCalling(t *testing.T) {
	c := getEmptyContext()
	defer ReturnStack(c.stack)
	c.gas = 100000
	c.params.Depth = maxCallDepth
	for _, value := range []uint64{0, 0, 0, 0, 0, 0, 100} {
		c.stack.pushEmpty().SetUint64(value)
	}

	if err := opCall(&c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := uint64(0), c.stack.pop().Uint64(); want != got {
		t.Errorf("unexpected call result on stack, wanted %d, got %d", want, got)
	}
	if want, got := figaro.Gas(100000), c.gas; want != got {
		t.Errorf("unexpected remaining gas, wanted %d, got %d", want, got)
	}
}

func TestGenericCall_DelegateCallKeepsSenderAndValue(t *testing.T) {
	ctrl := gomock.NewController(t)
	runContext := figaro.NewMockRunContext(ctrl)

	sender := figaro.Address{0x01}
	recipient := figaro.Address{0x02}
	target := figaro.Address{0x03}
	value := figaro.NewValue(42)

	c := getEmptyContext()
	defer ReturnStack(c.stack)
	c.context = runContext
	c.gas = 100000
	c.params.Sender = sender
	c.params.Recipient = recipient
	c.params.Value = value
	for _, push := range []uint64{0, 0, 0, 0} {
		c.stack.pushEmpty().SetUint64(push)
	}
	c.stack.pushEmpty().SetBytes20(target[:]) // code address
	c.stack.pushEmpty().SetUint64(100)        // gas limit

	runContext.EXPECT().
		Call(figaro.DelegateCall, gomock.Any()).
		DoAndReturn(func(_ figaro.CallKind, parameters figaro.CallParameters) (figaro.CallResult, error) {
			if parameters.Sender != sender {
				t.Errorf("unexpected sender: %v", parameters.Sender)
			}
			if parameters.Recipient != recipient {
				t.Errorf("unexpected recipient: %v", parameters.Recipient)
			}
			if parameters.CodeAddress != target {
				t.Errorf("unexpected code address: %v", parameters.CodeAddress)
			}
			if parameters.Value != value {
				t.Errorf("unexpected value: %v", parameters.Value)
			}
			return figaro.CallResult{Success: true}, nil
		})

	if err := opDelegateCall(&c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGenericCall_SuccessfulChildOutputIsCopiedToMemory(t *testing.T) {
	ctrl := gomock.NewController(t)
	runContext := figaro.NewMockRunContext(ctrl)

	c := getEmptyContext()
	defer ReturnStack(c.stack)
	c.context = runContext
	c.gas = 100000
	// request a 4-byte result window at offset 0
	for _, value := range []uint64{4, 0, 0, 0, 0, 0, 100} {
		c.stack.pushEmpty().SetUint64(value)
	}

	output := []byte{0xde, 0xad, 0xbe, 0xef, 0x99}
	runContext.EXPECT().
		Call(figaro.Call, gomock.Any()).
		Return(figaro.CallResult{Output: output, Success: true}, nil)

	if err := opCall(&c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(c.memory.store[0:4], output[0:4]) {
		t.Errorf("unexpected memory content: %x", c.memory.store[0:4])
	}
	if !bytes.Equal(c.returnData, output) {
		t.Errorf("unexpected return data: %x", c.returnData)
	}
}

func TestGenericCreate_RevertedInitCodePropagatesOutputAndGas(t *testing.T) {
	ctrl := gomock.NewController(t)
	runContext := figaro.NewMockRunContext(ctrl)

	c := getEmptyContext()
	defer ReturnStack(c.stack)
	c.context = runContext
	c.gas = 6400
	for _, value := range []uint64{0 /* size */, 0 /* offset */, 0 /* value */} {
		c.stack.pushEmpty().SetUint64(value)
	}

	revertData := []byte{0x01, 0x02}
	runContext.EXPECT().GetBalance(gomock.Any()).Return(figaro.Value{})
	runContext.EXPECT().
		Call(figaro.Create, gomock.Any()).
		DoAndReturn(func(_ figaro.CallKind, parameters figaro.CallParameters) (figaro.CallResult, error) {
			if want := figaro.Gas(6400 - 100); parameters.Gas != want {
				t.Errorf("unexpected nested gas, wanted %d, got %d", want, parameters.Gas)
			}
			return figaro.CallResult{
				Output:  revertData,
				GasLeft: 500,
				Success: false,
			}, nil
		})

	if err := opCreate(&c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := uint64(0), c.stack.pop().Uint64(); want != got {
		t.Errorf("unexpected created address on stack, wanted %d, got %d", want, got)
	}
	if !bytes.Equal(c.returnData, revertData) {
		t.Errorf("unexpected return data: %x", c.returnData)
	}
	if want, got := figaro.Gas(100+500), c.gas; want != got {
		t.Errorf("unexpected remaining gas, wanted %d, got %d", want, got)
	}
}

func TestGenericCreate_SuccessPushesTheCreatedAddress(t *testing.T) {
	ctrl := gomock.NewController(t)
	runContext := figaro.NewMockRunContext(ctrl)

	created := figaro.Address{0xab, 0xcd}

	c := getEmptyContext()
	defer ReturnStack(c.stack)
	c.context = runContext
	c.gas = 6400
	for _, value := range []uint64{0, 0, 0} {
		c.stack.pushEmpty().SetUint64(value)
	}

	runContext.EXPECT().GetBalance(gomock.Any()).Return(figaro.Value{})
	runContext.EXPECT().
		Call(figaro.Create, gomock.Any()).
		Return(figaro.CallResult{CreatedAddress: created, Success: true}, nil)

	if err := opCreate(&c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := created, figaro.Address(c.stack.pop().Bytes20()); want != got {
		t.Errorf("unexpected created address, wanted %v, got %v", want, got)
	}
	if c.returnData != nil {
		t.Errorf("successful deployment leaked return data: %x", c.returnData)
	}
}

func TestGenericCreate_InitCodeSizeIsLimitedSinceShanghai(t *testing.T) {
	c := getEmptyContext()
	defer ReturnStack(c.stack)
	c.table = getInstructionSet(figaro.R12_Shanghai)
	c.params.Revision = figaro.R12_Shanghai
	for _, value := range []uint64{MaxInitCodeSize + 1 /* size */, 0, 0} {
		c.stack.pushEmpty().SetUint64(value)
	}

	if err := opCreate(&c); err != errInitCodeTooLarge {
		t.Errorf("expected init code size error, got %v", err)
	}
}

func TestOpSstore_ChargesByStorageEffect(t *testing.T) {
	tests := map[string]struct {
		revision figaro.Revision
		access   figaro.AccessStatus
		effect   figaro.StorageStatus
		cost     figaro.Gas
		refund   figaro.Gas
	}{
		"istanbul fresh slot": {
			figaro.R07_Istanbul, figaro.WarmAccess, figaro.StorageAdded, 20000, 0,
		},
		"berlin cold added": {
			figaro.R09_Berlin, figaro.ColdAccess, figaro.StorageAdded, 2100 + 20000, 0,
		},
		"berlin warm deleted": {
			figaro.R09_Berlin, figaro.WarmAccess, figaro.StorageDeleted, 2900, 15000,
		},
		"london warm deleted": {
			figaro.R10_London, figaro.WarmAccess, figaro.StorageDeleted, 2900, 4800,
		},
		"london warm assigned": {
			figaro.R10_London, figaro.WarmAccess, figaro.StorageAssigned, 100, 0,
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			runContext := figaro.NewMockRunContext(ctrl)

			c := getEmptyContext()
			defer ReturnStack(c.stack)
			c.table = getInstructionSet(test.revision)
			c.params.Revision = test.revision
			c.context = runContext
			c.gas = 100000
			c.stack.pushEmpty().SetUint64(2) // value
			c.stack.pushEmpty().SetUint64(1) // key

			if test.revision >= figaro.R09_Berlin {
				runContext.EXPECT().
					AccessStorage(gomock.Any(), gomock.Any()).
					Return(test.access)
			}
			runContext.EXPECT().
				SetStorage(gomock.Any(), gomock.Any(), gomock.Any()).
				Return(test.effect)

			if err := opSstore(&c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if want, got := figaro.Gas(100000)-test.cost, c.gas; want != got {
				t.Errorf("unexpected remaining gas, wanted %d, got %d", want, got)
			}
			if want, got := test.refund, c.refund; want != got {
				t.Errorf("unexpected refund, wanted %d, got %d", want, got)
			}
		})
	}
}

func TestOpSstore_FailsBelowTheGasSentry(t *testing.T) {
	c := getEmptyContext()
	defer ReturnStack(c.stack)
	c.gas = SstoreSentryGas
	c.stack.pushEmpty().SetUint64(2)
	c.stack.pushEmpty().SetUint64(1)

	if err := opSstore(&c); err != errOutOfGas {
		t.Errorf("expected out-of-gas, got %v", err)
	}
}

func TestOpSload_ChargesForColdAndWarmAccess(t *testing.T) {
	tests := map[string]struct {
		access figaro.AccessStatus
		cost   figaro.Gas
	}{
		"cold": {figaro.ColdAccess, ColdSloadCost},
		"warm": {figaro.WarmAccess, WarmStorageReadCost},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			runContext := figaro.NewMockRunContext(ctrl)

			c := getEmptyContext()
			defer ReturnStack(c.stack)
			c.table = getInstructionSet(figaro.R09_Berlin)
			c.params.Revision = figaro.R09_Berlin
			c.context = runContext
			c.gas = 10000
			c.stack.pushEmpty().SetUint64(1)

			runContext.EXPECT().
				AccessStorage(gomock.Any(), gomock.Any()).
				Return(test.access)
			runContext.EXPECT().
				GetStorage(gomock.Any(), gomock.Any()).
				Return(figaro.Word{31: 0x42})

			if err := opSload(&c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if want, got := figaro.Gas(10000)-test.cost, c.gas; want != got {
				t.Errorf("unexpected remaining gas, wanted %d, got %d", want, got)
			}
			if want, got := uint64(0x42), c.stack.pop().Uint64(); want != got {
				t.Errorf("unexpected loaded value, wanted %d, got %d", want, got)
			}
		})
	}
}

func TestOpSelfDestruct_RefundsOnlyBeforeLondon(t *testing.T) {
	tests := map[string]struct {
		revision figaro.Revision
		refund   figaro.Gas
	}{
		"istanbul": {figaro.R07_Istanbul, SelfdestructRefundGas},
		"berlin":   {figaro.R09_Berlin, SelfdestructRefundGas},
		"london":   {figaro.R10_London, 0},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			runContext := figaro.NewMockRunContext(ctrl)

			c := getEmptyContext()
			defer ReturnStack(c.stack)
			c.table = getInstructionSet(test.revision)
			c.params.Revision = test.revision
			c.context = runContext
			c.stack.pushEmpty().SetUint64(0x42) // beneficiary

			if test.revision >= figaro.R09_Berlin {
				runContext.EXPECT().
					AccessAccount(gomock.Any()).
					Return(figaro.WarmAccess)
			}
			runContext.EXPECT().AccountExists(gomock.Any()).Return(true)
			runContext.EXPECT().GetBalance(gomock.Any()).Return(figaro.Value{})
			runContext.EXPECT().
				SelfDestruct(gomock.Any(), gomock.Any()).
				Return(true)

			if err := opSelfDestruct(&c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.status != statusSelfDestructed {
				t.Errorf("unexpected status: %v", c.status)
			}
			if want, got := test.refund, c.refund; want != got {
				t.Errorf("unexpected refund, wanted %d, got %d", want, got)
			}
		})
	}
}

func TestOpReturnDataCopy_OutOfBoundsReadsAreRejected(t *testing.T) {
	c := getEmptyContext()
	defer ReturnStack(c.stack)
	c.returnData = make([]byte, 10)
	// read [8, 12) of a 10-byte return data buffer
	c.stack.pushEmpty().SetUint64(4) // size
	c.stack.pushEmpty().SetUint64(8) // data offset
	c.stack.pushEmpty().SetUint64(0) // memory offset

	if err := opReturnDataCopy(&c); err != errReturnDataOutOfBounds {
		t.Errorf("expected out-of-bounds error, got %v", err)
	}
}

func TestOpExp_ChargesPerExponentByte(t *testing.T) {
	c := getEmptyContext()
	defer ReturnStack(c.stack)
	c.gas = 100
	c.stack.pushEmpty().SetUint64(0x0100) // exponent, two bytes
	c.stack.pushEmpty().SetUint64(2)      // base

	if err := opExp(&c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := figaro.Gas(100-2*50), c.gas; want != got {
		t.Errorf("unexpected remaining gas, wanted %d, got %d", want, got)
	}
	// 2^256 wraps around to zero
	if got := c.stack.pop(); !got.IsZero() {
		t.Errorf("unexpected result, wanted 0, got %v", got)
	}
}

func TestOpSha3_HashesTheSelectedMemoryRange(t *testing.T) {
	for _, withCache := range []bool{true, false} {
		c := getEmptyContext()
		c.withShaCache = withCache
		c.stack.pushEmpty().SetUint64(32) // size
		c.stack.pushEmpty().SetUint64(0)  // offset

		if err := opSha3(&c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := figaro.Keccak256(make([]byte, 32))
		if got := figaro.Hash(c.stack.pop().Bytes32()); want != got {
			t.Errorf("unexpected hash, wanted %x, got %x", want, got)
		}
		ReturnStack(c.stack)
	}
}

func TestMakeLog_EmitsTopicsInStackOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	runContext := figaro.NewMockRunContext(ctrl)

	c := getEmptyContext()
	defer ReturnStack(c.stack)
	c.context = runContext
	c.params.Recipient = figaro.Address{0x42}

	// stack from bottom to top: topic2, topic1, size, offset
	c.stack.pushEmpty().SetUint64(0x0202)
	c.stack.pushEmpty().SetUint64(0x0101)
	c.stack.pushEmpty().SetUint64(0) // size
	c.stack.pushEmpty().SetUint64(0) // offset

	runContext.EXPECT().
		EmitLog(gomock.Any()).
		Do(func(log figaro.Log) {
			if log.Address != (figaro.Address{0x42}) {
				t.Errorf("unexpected log address: %v", log.Address)
			}
			if len(log.Topics) != 2 {
				t.Fatalf("unexpected number of topics: %d", len(log.Topics))
			}
			if log.Topics[0] != (figaro.Hash{30: 0x01, 31: 0x01}) {
				t.Errorf("unexpected first topic: %x", log.Topics[0])
			}
			if log.Topics[1] != (figaro.Hash{30: 0x02, 31: 0x02}) {
				t.Errorf("unexpected second topic: %x", log.Topics[1])
			}
		})

	if err := makeLog(2)(&c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOpBlockHash_OnlyTheLast256BlocksAreAvailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	runContext := figaro.NewMockRunContext(ctrl)

	c := getEmptyContext()
	defer ReturnStack(c.stack)
	c.context = runContext
	c.params.BlockNumber = 1000

	hash := figaro.Hash{0x11}
	runContext.EXPECT().GetBlockHash(int64(999)).Return(hash)

	c.stack.pushEmpty().SetUint64(999)
	if err := opBlockHash(&c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := figaro.Hash(c.stack.pop().Bytes32()); got != hash {
		t.Errorf("unexpected hash: %x", got)
	}

	// out of the window, no lookup happens
	for _, number := range []uint64{1000, 1001, 743, 0} {
		c.stack.pushEmpty().SetUint64(number)
		if err := opBlockHash(&c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := c.stack.pop(); !got.IsZero() {
			t.Errorf("block %d: expected zero, got %v", number, got)
		}
	}
}

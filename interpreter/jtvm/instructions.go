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
	"math"

	"github.com/figaro-vm/figaro"
	"github.com/holiman/uint256"
)

func opStop(c *context) error {
	c.status = statusStopped
	return nil
}

func opAdd(c *context) error {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Add(a, b)
	return nil
}

func opMul(c *context) error {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Mul(a, b)
	return nil
}

func opSub(c *context) error {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Sub(a, b)
	return nil
}

func opDiv(c *context) error {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Div(a, b)
	return nil
}

func opSDiv(c *context) error {
	a := c.stack.pop()
	b := c.stack.peek()
	b.SDiv(a, b)
	return nil
}

func opMod(c *context) error {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Mod(a, b)
	return nil
}

func opSMod(c *context) error {
	a := c.stack.pop()
	b := c.stack.peek()
	b.SMod(a, b)
	return nil
}

func opAddMod(c *context) error {
	a := c.stack.pop()
	b := c.stack.pop()
	n := c.stack.peek()
	n.AddMod(a, b, n)
	return nil
}

func opMulMod(c *context) error {
	a := c.stack.pop()
	b := c.stack.pop()
	n := c.stack.peek()
	n.MulMod(a, b, n)
	return nil
}

func opExp(c *context) error {
	base := c.stack.pop()
	exponent := c.stack.peek()
	if err := c.useGas(ExpByteGas * figaro.Gas(exponent.ByteLen())); err != nil {
		return err
	}
	exponent.Exp(base, exponent)
	return nil
}

func opSignExtend(c *context) error {
	back := c.stack.pop()
	num := c.stack.peek()
	num.ExtendSign(num, back)
	return nil
}

func opLt(c *context) error {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.Lt(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
	return nil
}

func opGt(c *context) error {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.Gt(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
	return nil
}

func opSlt(c *context) error {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.Slt(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
	return nil
}

func opSgt(c *context) error {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.Sgt(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
	return nil
}

func opEq(c *context) error {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.Eq(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
	return nil
}

func opIsZero(c *context) error {
	a := c.stack.peek()
	if a.IsZero() {
		a.SetOne()
	} else {
		a.Clear()
	}
	return nil
}

func opAnd(c *context) error {
	a := c.stack.pop()
	b := c.stack.peek()
	b.And(a, b)
	return nil
}

func opOr(c *context) error {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Or(a, b)
	return nil
}

func opXor(c *context) error {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Xor(a, b)
	return nil
}

func opNot(c *context) error {
	a := c.stack.peek()
	a.Not(a)
	return nil
}

func opByte(c *context) error {
	index := c.stack.pop()
	value := c.stack.peek()
	value.Byte(index)
	return nil
}

func opShl(c *context) error {
	shift := c.stack.pop()
	value := c.stack.peek()
	if shift.LtUint64(256) {
		value.Lsh(value, uint(shift.Uint64()))
	} else {
		value.Clear()
	}
	return nil
}

func opShr(c *context) error {
	shift := c.stack.pop()
	value := c.stack.peek()
	if shift.LtUint64(256) {
		value.Rsh(value, uint(shift.Uint64()))
	} else {
		value.Clear()
	}
	return nil
}

func opSar(c *context) error {
	shift := c.stack.pop()
	value := c.stack.peek()
	if shift.GtUint64(255) {
		if value.Sign() >= 0 {
			value.Clear()
		} else {
			value.SetAllOne()
		}
		return nil
	}
	value.SRsh(value, uint(shift.Uint64()))
	return nil
}

func opSha3(c *context) error {
	offset := c.stack.pop()
	size := c.stack.peek()
	if err := checkSizeOffsetUint64Overflow(offset, size); err != nil {
		return err
	}
	if err := c.useGas(Sha3WordGas * figaro.Gas(sizeInWords(size.Uint64()))); err != nil {
		return err
	}
	data, err := c.memory.getSlice(offset.Uint64(), size.Uint64(), c)
	if err != nil {
		return err
	}
	var hash figaro.Hash
	if c.withShaCache {
		hash = sha3Cache.hash(data)
	} else {
		hash = figaro.Keccak256(data)
	}
	size.SetBytes32(hash[:])
	return nil
}

func opAddress(c *context) error {
	c.stack.pushEmpty().SetBytes20(c.params.Recipient[:])
	return nil
}

func opBalance(c *context) error {
	top := c.stack.peek()
	address := figaro.Address(top.Bytes20())
	if c.isAtLeast(figaro.R09_Berlin) {
		if err := c.useGas(getAccessCost(c.context.AccessAccount(address))); err != nil {
			return err
		}
	}
	balance := c.context.GetBalance(address)
	top.SetBytes32(balance[:])
	return nil
}

func opOrigin(c *context) error {
	c.stack.pushEmpty().SetBytes20(c.params.Origin[:])
	return nil
}

func opCaller(c *context) error {
	c.stack.pushEmpty().SetBytes20(c.params.Sender[:])
	return nil
}

func opCallValue(c *context) error {
	c.stack.pushEmpty().SetBytes32(c.params.Value[:])
	return nil
}

func opCallDataLoad(c *context) error {
	top := c.stack.peek()
	if !top.IsUint64() {
		top.Clear()
		return nil
	}
	top.SetBytes32(getData(c.params.Input, top.Uint64(), 32))
	return nil
}

func opCallDataSize(c *context) error {
	c.stack.pushEmpty().SetUint64(uint64(len(c.params.Input)))
	return nil
}

func opCallDataCopy(c *context) error {
	return genericDataCopy(c, c.params.Input)
}

func opCodeSize(c *context) error {
	c.stack.pushEmpty().SetUint64(uint64(len(c.code)))
	return nil
}

func opCodeCopy(c *context) error {
	return genericDataCopy(c, c.code)
}

// genericDataCopy copies a section of the given transaction-constant data
// into memory, padding reads beyond the data end with zeros.
func genericDataCopy(c *context, data []byte) error {
	memOffset := c.stack.pop()
	dataOffset := c.stack.pop()
	size := c.stack.pop()

	if err := checkSizeOffsetUint64Overflow(memOffset, size); err != nil {
		return err
	}
	if size.IsZero() {
		return nil
	}
	if err := c.useGas(CopyGas * figaro.Gas(sizeInWords(size.Uint64()))); err != nil {
		return err
	}

	start := uint64(math.MaxUint64)
	if dataOffset.IsUint64() {
		start = dataOffset.Uint64()
	}
	return c.memory.set(memOffset.Uint64(), size.Uint64(), getData(data, start, size.Uint64()), c)
}

func opGasPrice(c *context) error {
	c.stack.pushEmpty().SetBytes32(c.params.GasPrice[:])
	return nil
}

func opExtCodeSize(c *context) error {
	top := c.stack.peek()
	address := figaro.Address(top.Bytes20())
	if c.isAtLeast(figaro.R09_Berlin) {
		if err := c.useGas(getAccessCost(c.context.AccessAccount(address))); err != nil {
			return err
		}
	}
	top.SetUint64(uint64(c.context.GetCodeSize(address)))
	return nil
}

func opExtCodeCopy(c *context) error {
	address := figaro.Address(c.stack.pop().Bytes20())
	memOffset := c.stack.pop()
	dataOffset := c.stack.pop()
	size := c.stack.pop()

	if err := checkSizeOffsetUint64Overflow(memOffset, size); err != nil {
		return err
	}
	if c.isAtLeast(figaro.R09_Berlin) {
		if err := c.useGas(getAccessCost(c.context.AccessAccount(address))); err != nil {
			return err
		}
	}
	if size.IsZero() {
		return nil
	}
	if err := c.useGas(CopyGas * figaro.Gas(sizeInWords(size.Uint64()))); err != nil {
		return err
	}

	start := uint64(math.MaxUint64)
	if dataOffset.IsUint64() {
		start = dataOffset.Uint64()
	}
	code := c.context.GetCode(address)
	return c.memory.set(memOffset.Uint64(), size.Uint64(), getData(code, start, size.Uint64()), c)
}

func opReturnDataSize(c *context) error {
	c.stack.pushEmpty().SetUint64(uint64(len(c.returnData)))
	return nil
}

func opReturnDataCopy(c *context) error {
	memOffset := c.stack.pop()
	dataOffset := c.stack.pop()
	size := c.stack.pop()

	// reads beyond the return data are a hard error, not zero padded
	if !dataOffset.IsUint64() || !size.IsUint64() {
		return errReturnDataOutOfBounds
	}
	end := dataOffset.Uint64() + size.Uint64()
	if end < dataOffset.Uint64() || end > uint64(len(c.returnData)) {
		return errReturnDataOutOfBounds
	}

	if err := checkSizeOffsetUint64Overflow(memOffset, size); err != nil {
		return err
	}
	if size.IsZero() {
		return nil
	}
	if err := c.useGas(CopyGas * figaro.Gas(sizeInWords(size.Uint64()))); err != nil {
		return err
	}
	return c.memory.set(memOffset.Uint64(), size.Uint64(), c.returnData[dataOffset.Uint64():end], c)
}

func opExtCodeHash(c *context) error {
	top := c.stack.peek()
	address := figaro.Address(top.Bytes20())
	if c.isAtLeast(figaro.R09_Berlin) {
		if err := c.useGas(getAccessCost(c.context.AccessAccount(address))); err != nil {
			return err
		}
	}
	hash := c.context.GetCodeHash(address)
	top.SetBytes32(hash[:])
	return nil
}

func opBlockHash(c *context) error {
	top := c.stack.peek()
	current := uint64(c.params.BlockNumber)
	if !top.IsUint64() {
		top.Clear()
		return nil
	}
	number := top.Uint64()
	// only the 256 most recent blocks are available
	if number >= current || number+256 < current {
		top.Clear()
		return nil
	}
	hash := c.context.GetBlockHash(int64(number))
	top.SetBytes32(hash[:])
	return nil
}

func opCoinbase(c *context) error {
	c.stack.pushEmpty().SetBytes20(c.params.Coinbase[:])
	return nil
}

func opTimestamp(c *context) error {
	c.stack.pushEmpty().SetUint64(uint64(c.params.Timestamp))
	return nil
}

func opNumber(c *context) error {
	c.stack.pushEmpty().SetUint64(uint64(c.params.BlockNumber))
	return nil
}

func opPrevRandao(c *context) error {
	c.stack.pushEmpty().SetBytes32(c.params.PrevRandao[:])
	return nil
}

func opGasLimit(c *context) error {
	c.stack.pushEmpty().SetUint64(uint64(c.params.GasLimit))
	return nil
}

func opChainId(c *context) error {
	c.stack.pushEmpty().SetBytes32(c.params.ChainID[:])
	return nil
}

func opSelfBalance(c *context) error {
	balance := c.context.GetBalance(c.params.Recipient)
	c.stack.pushEmpty().SetBytes32(balance[:])
	return nil
}

func opBaseFee(c *context) error {
	c.stack.pushEmpty().SetBytes32(c.params.BaseFee[:])
	return nil
}

func opBlobHash(c *context) error {
	top := c.stack.peek()
	hashes := c.params.BlobHashes
	if top.IsUint64() && top.Uint64() < uint64(len(hashes)) {
		top.SetBytes32(hashes[top.Uint64()][:])
	} else {
		top.Clear()
	}
	return nil
}

func opBlobBaseFee(c *context) error {
	c.stack.pushEmpty().SetBytes32(c.params.BlobBaseFee[:])
	return nil
}

func opPop(c *context) error {
	c.stack.pop()
	return nil
}

func opMload(c *context) error {
	top := c.stack.peek()
	if !top.IsUint64() {
		return errOverflow
	}
	return c.memory.readWord(top.Uint64(), top, c)
}

func opMstore(c *context) error {
	offset := c.stack.pop()
	value := c.stack.pop()
	if !offset.IsUint64() {
		return errOverflow
	}
	return c.memory.setWord(offset.Uint64(), value, c)
}

func opMstore8(c *context) error {
	offset := c.stack.pop()
	value := c.stack.pop()
	if !offset.IsUint64() {
		return errOverflow
	}
	return c.memory.setByte(offset.Uint64(), byte(value.Uint64()), c)
}

func opSload(c *context) error {
	top := c.stack.peek()
	key := figaro.Key(top.Bytes32())
	if c.isAtLeast(figaro.R09_Berlin) {
		cost := WarmStorageReadCost
		if c.context.AccessStorage(c.params.Recipient, key) == figaro.ColdAccess {
			cost = ColdSloadCost
		}
		if err := c.useGas(cost); err != nil {
			return err
		}
	}
	value := c.context.GetStorage(c.params.Recipient, key)
	top.SetBytes32(value[:])
	return nil
}

func opSstore(c *context) error {
	if c.params.Static {
		return errStaticContextViolation
	}
	// EIP-2200 sentry, a write needs more than the stipend left
	if c.gas <= SstoreSentryGas {
		return errOutOfGas
	}

	key := figaro.Key(c.stack.pop().Bytes32())
	value := figaro.Word(c.stack.pop().Bytes32())

	if c.isAtLeast(figaro.R09_Berlin) {
		if c.context.AccessStorage(c.params.Recipient, key) == figaro.ColdAccess {
			if err := c.useGas(ColdSloadCost); err != nil {
				return err
			}
		}
	}

	status := c.context.SetStorage(c.params.Recipient, key, value)
	c.refund += getRefundForSstore(c.params.Revision, status)
	return c.useGas(getDynamicCostsForSstore(c.params.Revision, status))
}

func opJump(c *context) error {
	return c.jumpTo(c.stack.pop())
}

func opJumpi(c *context) error {
	destination := c.stack.pop()
	condition := c.stack.pop()
	if condition.IsZero() {
		return nil
	}
	return c.jumpTo(destination)
}

// jumpTo validates the destination and positions the program counter so
// that the step loop continues at the jump destination.
func (c *context) jumpTo(destination *uint256.Int) error {
	if !destination.IsUint64() || !c.isValidJumpDest(destination.Uint64()) {
		return errInvalidJump
	}
	c.pc = int32(destination.Uint64()) - 1
	return nil
}

func (c *context) isValidJumpDest(destination uint64) bool {
	if destination >= uint64(len(c.code)) {
		return false
	}
	if OpCode(c.code[destination]) != JUMPDEST {
		return false
	}
	// immediate data of a push is not a valid destination
	return !c.jumpDests.isData(destination)
}

func opPc(c *context) error {
	c.stack.pushEmpty().SetUint64(uint64(c.pc))
	return nil
}

func opMsize(c *context) error {
	c.stack.pushEmpty().SetUint64(c.memory.length())
	return nil
}

func opGas(c *context) error {
	c.stack.pushEmpty().SetUint64(uint64(c.gas))
	return nil
}

func opJumpDest(c *context) error {
	return nil
}

func opTload(c *context) error {
	top := c.stack.peek()
	key := figaro.Key(top.Bytes32())
	value := c.context.GetTransientStorage(c.params.Recipient, key)
	top.SetBytes32(value[:])
	return nil
}

func opTstore(c *context) error {
	if c.params.Static {
		return errStaticContextViolation
	}
	key := figaro.Key(c.stack.pop().Bytes32())
	value := figaro.Word(c.stack.pop().Bytes32())
	c.context.SetTransientStorage(c.params.Recipient, key, value)
	return nil
}

func opMcopy(c *context) error {
	destOffset := c.stack.pop()
	srcOffset := c.stack.pop()
	size := c.stack.pop()

	if err := checkSizeOffsetUint64Overflow(destOffset, size); err != nil {
		return err
	}
	if err := checkSizeOffsetUint64Overflow(srcOffset, size); err != nil {
		return err
	}
	if size.IsZero() {
		return nil
	}
	if err := c.useGas(CopyGas * figaro.Gas(sizeInWords(size.Uint64()))); err != nil {
		return err
	}

	dest := destOffset.Uint64()
	src := srcOffset.Uint64()
	length := size.Uint64()
	if err := c.memory.expandMemory(dest, length, c); err != nil {
		return err
	}
	if err := c.memory.expandMemory(src, length, c); err != nil {
		return err
	}
	copy(c.memory.store[dest:dest+length], c.memory.store[src:src+length])
	return nil
}

func opPush0(c *context) error {
	c.stack.pushEmpty().Clear()
	return nil
}

func makePush(n int) func(c *context) error {
	return func(c *context) error {
		data := c.code[c.pc+1:]
		if len(data) >= n {
			c.stack.pushEmpty().SetBytes(data[:n])
			return nil
		}
		// the code is implicitly zero padded beyond its end
		var padded [32]byte
		copy(padded[32-n:], data)
		c.stack.pushEmpty().SetBytes32(padded[:])
		return nil
	}
}

func makeDup(n int) func(c *context) error {
	return func(c *context) error {
		c.stack.dup(n)
		return nil
	}
}

func makeSwap(n int) func(c *context) error {
	return func(c *context) error {
		c.stack.swap(n)
		return nil
	}
}

func makeLog(n int) func(c *context) error {
	return func(c *context) error {
		if c.params.Static {
			return errStaticContextViolation
		}
		offset := c.stack.pop()
		size := c.stack.pop()
		topics := make([]figaro.Hash, n)
		for i := 0; i < n; i++ {
			topics[i] = figaro.Hash(c.stack.pop().Bytes32())
		}

		if err := checkSizeOffsetUint64Overflow(offset, size); err != nil {
			return err
		}
		if size.Uint64() > math.MaxInt64/uint64(LogDataGas) {
			return errOutOfGas
		}
		if err := c.useGas(LogDataGas * figaro.Gas(size.Uint64())); err != nil {
			return err
		}

		data, err := c.memory.getSlice(offset.Uint64(), size.Uint64(), c)
		if err != nil {
			return err
		}
		c.context.EmitLog(figaro.Log{
			Address: c.params.Recipient,
			Topics:  topics,
			Data:    bytes.Clone(data),
		})
		return nil
	}
}

func opCreate(c *context) error {
	return genericCreate(c, figaro.Create)
}

func opCreate2(c *context) error {
	return genericCreate(c, figaro.Create2)
}

func genericCreate(c *context, kind figaro.CallKind) error {
	if c.params.Static {
		return errStaticContextViolation
	}

	value := c.stack.pop()
	offset := c.stack.pop()
	size := c.stack.pop()
	var salt *uint256.Int
	if kind == figaro.Create2 {
		salt = c.stack.pop()
	}

	if err := checkSizeOffsetUint64Overflow(offset, size); err != nil {
		return err
	}
	initCodeSize := size.Uint64()

	if c.isAtLeast(figaro.R12_Shanghai) {
		if initCodeSize > MaxInitCodeSize {
			return errInitCodeTooLarge
		}
		if err := c.useGas(InitCodeWordGas * figaro.Gas(sizeInWords(initCodeSize))); err != nil {
			return err
		}
	}
	if kind == figaro.Create2 {
		// hashing the init code for the address derivation
		if err := c.useGas(Sha3WordGas * figaro.Gas(sizeInWords(initCodeSize))); err != nil {
			return err
		}
	}

	input, err := c.memory.getSlice(offset.Uint64(), initCodeSize, c)
	if err != nil {
		return err
	}

	c.returnData = nil

	balance := c.context.GetBalance(c.params.Recipient)
	if balance.ToUint256().Lt(value) {
		c.stack.pushEmpty().Clear()
		return nil
	}
	if c.params.Depth >= maxCallDepth {
		c.stack.pushEmpty().Clear()
		return nil
	}

	nestedGas := c.gas - c.gas/64
	if err := c.useGas(nestedGas); err != nil {
		return err
	}

	parameters := figaro.CallParameters{
		Sender: c.params.Recipient,
		Value:  figaro.ValueFromUint256(value),
		Input:  input,
		Gas:    nestedGas,
	}
	if salt != nil {
		parameters.Salt = figaro.Hash(salt.Bytes32())
	}

	result, err := c.context.Call(kind, parameters)
	if err != nil {
		return err
	}

	if result.Success {
		c.stack.pushEmpty().SetBytes20(result.CreatedAddress[:])
	} else {
		c.stack.pushEmpty().Clear()
		// only revert data of a failed deployment is observable
		c.returnData = result.Output
	}
	c.gas += result.GasLeft
	c.refund += result.GasRefund
	return nil
}

func opCall(c *context) error {
	return genericCall(c, figaro.Call)
}

func opCallCode(c *context) error {
	return genericCall(c, figaro.CallCode)
}

func opDelegateCall(c *context) error {
	return genericCall(c, figaro.DelegateCall)
}

func opStaticCall(c *context) error {
	return genericCall(c, figaro.StaticCall)
}

func genericCall(c *context, kind figaro.CallKind) error {
	gasLimit := c.stack.pop()
	addressInt := c.stack.pop()
	var value *uint256.Int
	if kind == figaro.Call || kind == figaro.CallCode {
		value = c.stack.pop()
	}
	inOffset := c.stack.pop()
	inSize := c.stack.pop()
	retOffset := c.stack.pop()
	retSize := c.stack.pop()

	if kind == figaro.Call && c.params.Static && value != nil && !value.IsZero() {
		return errStaticContextViolation
	}

	if err := checkSizeOffsetUint64Overflow(inOffset, inSize); err != nil {
		return err
	}
	if err := checkSizeOffsetUint64Overflow(retOffset, retSize); err != nil {
		return err
	}

	toAddress := figaro.Address(addressInt.Bytes20())

	// memory expansion for argument and result windows is charged up front
	input, err := c.memory.getSlice(inOffset.Uint64(), inSize.Uint64(), c)
	if err != nil {
		return err
	}
	output, err := c.memory.getSlice(retOffset.Uint64(), retSize.Uint64(), c)
	if err != nil {
		return err
	}

	baseGas := figaro.Gas(0)
	if c.isAtLeast(figaro.R09_Berlin) {
		baseGas += getAccessCost(c.context.AccessAccount(toAddress))
	}
	if value != nil && !value.IsZero() {
		baseGas += CallValueTransferGas
		if kind == figaro.Call && !c.context.AccountExists(toAddress) {
			baseGas += CallNewAccountGas
		}
	}
	if err := c.useGas(baseGas); err != nil {
		return err
	}

	// at most 63/64 of the remaining gas can be forwarded
	requested := figaro.Gas(math.MaxInt64)
	if gasLimit.IsUint64() && gasLimit.Uint64() <= math.MaxInt64 {
		requested = figaro.Gas(gasLimit.Uint64())
	}
	nestedGas := callGas(c.gas, requested)
	if err := c.useGas(nestedGas); err != nil {
		return err
	}
	if value != nil && !value.IsZero() {
		nestedGas += CallStipend
	}

	abort := func() error {
		// a failed setup is not an error, the frame continues with a 0
		// on the stack and the unused gas returned
		c.gas += nestedGas
		c.returnData = nil
		c.stack.pushEmpty().Clear()
		return nil
	}

	if value != nil && !value.IsZero() {
		balance := c.context.GetBalance(c.params.Recipient)
		if balance.ToUint256().Lt(value) {
			return abort()
		}
	}
	if c.params.Depth >= maxCallDepth {
		return abort()
	}

	parameters := figaro.CallParameters{
		Input: input,
		Gas:   nestedGas,
	}
	if value != nil {
		parameters.Value = figaro.ValueFromUint256(value)
	}
	switch kind {
	case figaro.Call, figaro.StaticCall:
		parameters.Sender = c.params.Recipient
		parameters.Recipient = toAddress
	case figaro.CallCode:
		parameters.Sender = c.params.Recipient
		parameters.Recipient = c.params.Recipient
		parameters.CodeAddress = toAddress
	case figaro.DelegateCall:
		// the identity of the calling frame is preserved
		parameters.Sender = c.params.Sender
		parameters.Recipient = c.params.Recipient
		parameters.Value = c.params.Value
		parameters.CodeAddress = toAddress
	}
	if kind == figaro.Call && c.params.Static {
		// static restrictions are inherited by all nested frames
		kind = figaro.StaticCall
	}

	result, err := c.context.Call(kind, parameters)
	if err != nil {
		return err
	}

	copy(output, result.Output)
	c.gas += result.GasLeft
	c.refund += result.GasRefund
	c.returnData = result.Output
	if result.Success {
		c.stack.pushEmpty().SetOne()
	} else {
		c.stack.pushEmpty().Clear()
	}
	return nil
}

func opReturn(c *context) error {
	offset := c.stack.pop()
	size := c.stack.pop()
	if err := checkSizeOffsetUint64Overflow(offset, size); err != nil {
		return err
	}
	data, err := c.memory.getSlice(offset.Uint64(), size.Uint64(), c)
	if err != nil {
		return err
	}
	c.returnData = data
	c.status = statusReturned
	return nil
}

func opRevert(c *context) error {
	offset := c.stack.pop()
	size := c.stack.pop()
	if err := checkSizeOffsetUint64Overflow(offset, size); err != nil {
		return err
	}
	data, err := c.memory.getSlice(offset.Uint64(), size.Uint64(), c)
	if err != nil {
		return err
	}
	c.returnData = data
	c.status = statusReverted
	return nil
}

func opInvalid(c *context) error {
	return errInvalidInstruction
}

func opSelfDestruct(c *context) error {
	if c.params.Static {
		return errStaticContextViolation
	}
	beneficiary := figaro.Address(c.stack.pop().Bytes20())

	cost := figaro.Gas(0)
	if c.isAtLeast(figaro.R09_Berlin) {
		if c.context.AccessAccount(beneficiary) == figaro.ColdAccess {
			cost += ColdAccountAccessCost
		}
	}
	balance := c.context.GetBalance(c.params.Recipient)
	if !c.context.AccountExists(beneficiary) && balance != (figaro.Value{}) {
		cost += CreateBySelfdestructGas
	}
	if err := c.useGas(cost); err != nil {
		return err
	}

	destructed := c.context.SelfDestruct(c.params.Recipient, beneficiary)
	c.refund += selfDestructRefund(destructed, c.params.Revision)
	c.status = statusSelfDestructed
	return nil
}

// ---- helpers ----

// checkSizeOffsetUint64Overflow rejects memory ranges whose bounds do not
// fit into a uint64. A range of size zero is always fine.
func checkSizeOffsetUint64Overflow(offset, size *uint256.Int) error {
	if size.IsZero() {
		return nil
	}
	if !size.IsUint64() || !offset.IsUint64() || offset.Uint64() > math.MaxUint64-size.Uint64() {
		return errOverflow
	}
	return nil
}

// getData returns a slice of the given size based on data at the given
// start position, padded with zeros if the requested range reaches beyond
// the data.
func getData(data []byte, start, size uint64) []byte {
	length := uint64(len(data))
	if start > length {
		start = length
	}
	end := start + size
	if end < start || end > length {
		end = length
	}
	result := make([]byte, size)
	copy(result, data[start:end])
	return result
}

// sizeInWords computes the number of 32-byte words needed to hold size
// bytes.
func sizeInWords(size uint64) uint64 {
	return (size + 31) / 32
}

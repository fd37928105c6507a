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
	"math"

	"github.com/figaro-vm/figaro"
	"github.com/holiman/uint256"
)

// Memory is the volatile, byte addressable scratch space of an execution
// frame. It grows on demand in 32-byte words and charges the convex
// expansion cost difference before any access.
type Memory struct {
	store             []byte
	currentMemoryCost figaro.Gas
}

func NewMemory() *Memory {
	return &Memory{}
}

// maxMemoryExpansionSize is the largest memory size whose expansion cost
// still fits into the gas counter. Larger requests are mapped to an
// unaffordable cost instead of being computed.
const maxMemoryExpansionSize = 0x1FFFFFFFE0

func (m *Memory) length() uint64 {
	return uint64(len(m.store))
}

// toValidMemorySize rounds the given size up to the next multiple of 32.
func toValidMemorySize(size uint64) uint64 {
	fullWordsSize := ((size + 31) / 32) * 32
	if fullWordsSize < size {
		// overflow, size is too close to 2^64
		return math.MaxUint64
	}
	return fullWordsSize
}

// getExpansionCosts returns the gas required to grow the memory to hold
// size bytes. The result is 0 if the memory is already large enough.
func (m *Memory) getExpansionCosts(size uint64) figaro.Gas {
	if m.length() >= size {
		return 0
	}
	size = toValidMemorySize(size)
	if size > maxMemoryExpansionSize {
		return figaro.Gas(math.MaxInt64)
	}
	words := figaro.Gas(size / 32)
	newCost := words*words/512 + 3*words
	return newCost - m.currentMemoryCost
}

// expandMemory charges the expansion cost for accessing the range
// [offset, offset+size) and grows the memory accordingly. The frame runs
// out of gas before any growth happens if the cost is not covered.
func (m *Memory) expandMemory(offset, size uint64, c *context) error {
	if size == 0 {
		return nil
	}
	needed := offset + size
	if needed < offset {
		return errOverflow
	}
	if fee := m.getExpansionCosts(needed); fee > 0 {
		if err := c.useGas(fee); err != nil {
			return err
		}
		m.currentMemoryCost += fee
	}
	m.expandMemoryWithoutCharging(needed)
	return nil
}

// expandMemoryWithoutCharging grows the memory to hold needed bytes without
// touching the gas counter. Callers must have charged the expansion first.
func (m *Memory) expandMemoryWithoutCharging(needed uint64) {
	needed = toValidMemorySize(needed)
	if size := m.length(); size < needed {
		m.store = append(m.store, make([]byte, needed-size)...)
	}
}

// getSlice obtains a mutable slice of the memory covering the range
// [offset, offset+size), expanding and charging as necessary.
func (m *Memory) getSlice(offset, size uint64, c *context) ([]byte, error) {
	if err := m.expandMemory(offset, size, c); err != nil {
		return nil, err
	}
	return m.store[offset : offset+size], nil
}

// copyData copies the range [offset, offset+len(target)) into target,
// zero-padding everything past the current memory size. The memory is
// neither expanded nor charged.
func (m *Memory) copyData(offset uint64, target []byte) {
	size := m.length()
	if offset > size {
		offset = size
	}
	n := copy(target, m.store[offset:])
	for i := n; i < len(target); i++ {
		target[i] = 0
	}
}

// readWord reads the 32-byte word at the given offset into target.
func (m *Memory) readWord(offset uint64, target *uint256.Int, c *context) error {
	data, err := m.getSlice(offset, 32, c)
	if err != nil {
		return err
	}
	target.SetBytes32(data)
	return nil
}

func (m *Memory) setWord(offset uint64, value *uint256.Int, c *context) error {
	data, err := m.getSlice(offset, 32, c)
	if err != nil {
		return err
	}
	value.PutUint256(data)
	return nil
}

func (m *Memory) setByte(offset uint64, value byte, c *context) error {
	data, err := m.getSlice(offset, 1, c)
	if err != nil {
		return err
	}
	data[0] = value
	return nil
}

func (m *Memory) set(offset, size uint64, data []byte, c *context) error {
	if size == 0 {
		return nil
	}
	target, err := m.getSlice(offset, size, c)
	if err != nil {
		return err
	}
	copy(target, data)
	return nil
}

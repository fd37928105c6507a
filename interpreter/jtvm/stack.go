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
	"fmt"
	"strings"
	"sync"

	"github.com/holiman/uint256"
)

// maxStackSize is the maximum number of words the stack of a single
// execution frame can hold.
const maxStackSize = 1024

type stack struct {
	data         [maxStackSize]uint256.Int
	stackPointer int
}

var stackPool = sync.Pool{
	New: func() any {
		return &stack{}
	},
}

// NewStack fetches a cleared stack from an internal pool. Stacks obtained
// this way should be handed back through ReturnStack when no longer needed.
func NewStack() *stack {
	return stackPool.Get().(*stack)
}

func ReturnStack(s *stack) {
	s.stackPointer = 0
	stackPool.Put(s)
}

func (s *stack) len() int {
	return s.stackPointer
}

func (s *stack) push(d *uint256.Int) {
	s.data[s.stackPointer] = *d
	s.stackPointer++
}

// pushEmpty reserves a slot on the top of the stack and returns a pointer to
// it. The slot may hold stale data and must be overwritten by the caller.
func (s *stack) pushEmpty() *uint256.Int {
	s.stackPointer++
	return &s.data[s.stackPointer-1]
}

func (s *stack) pop() *uint256.Int {
	s.stackPointer--
	return &s.data[s.stackPointer]
}

// peek returns a pointer to the top element of the stack.
func (s *stack) peek() *uint256.Int {
	return &s.data[s.stackPointer-1]
}

// peekN returns a pointer to the n-th element below the top of the stack,
// with peekN(0) being the top element.
func (s *stack) peekN(n int) *uint256.Int {
	return &s.data[s.stackPointer-1-n]
}

func (s *stack) swap(n int) {
	top := s.stackPointer - 1
	s.data[top], s.data[top-n] = s.data[top-n], s.data[top]
}

func (s *stack) dup(n int) {
	s.data[s.stackPointer] = s.data[s.stackPointer-n]
	s.stackPointer++
}

func (s *stack) String() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("stack of size %d:", s.stackPointer))
	for i := s.stackPointer - 1; i >= 0; i-- {
		b.WriteString(fmt.Sprintf("\n  [%d] %v", i, s.data[i].String()))
	}
	return b.String()
}

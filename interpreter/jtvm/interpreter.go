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

	"github.com/figaro-vm/figaro"
)

// status is the execution state of a single interpretation frame.
type status byte

const (
	statusRunning        status = iota
	statusStopped               // stopped execution successfully
	statusReturned              // finished successfully, returned data
	statusReverted              // finished with revert, discard changes, keep gas
	statusSelfDestructed        // finished successfully, account scheduled for destruction
	statusError                 // failed, consume all gas
)

func (s status) String() string {
	switch s {
	case statusRunning:
		return "running"
	case statusStopped:
		return "stopped"
	case statusReturned:
		return "returned"
	case statusReverted:
		return "reverted"
	case statusSelfDestructed:
		return "self-destructed"
	case statusError:
		return "error"
	}
	return fmt.Sprintf("status(%d)", byte(s))
}

// context holds the mutable state of one interpretation frame.
type context struct {
	// Inputs, fixed for the lifetime of the frame.
	params    figaro.Parameters
	context   figaro.RunContext
	code      []byte
	jumpDests bitvec
	table     *instructionSet

	// Execution state.
	pc     int32
	gas    figaro.Gas
	refund figaro.Gas
	stack  *stack
	memory *Memory
	status status
	err    error

	// Intermediate data.
	returnData []byte

	// Configuration.
	withShaCache bool
}

// useGas reduces the remaining gas of the frame by the given amount. If
// the amount exceeds the remaining gas, the gas counter is exhausted and
// an out-of-gas error is returned.
func (c *context) useGas(amount figaro.Gas) error {
	if c.gas < 0 || amount < 0 || c.gas < amount {
		c.gas = 0
		return errOutOfGas
	}
	c.gas -= amount
	return nil
}

// signalError aborts the frame. All remaining gas is consumed.
func (c *context) signalError(err error) {
	c.status = statusError
	c.err = err
	c.gas = 0
}

func (c *context) isAtLeast(revision figaro.Revision) bool {
	return c.params.Revision >= revision
}

// runner abstracts the step loop so that an instrumented implementation
// can be swapped in for debugging.
type runner interface {
	run(*context)
}

type vanillaRunner struct{}

func (r vanillaRunner) run(c *context) {
	steps(c, false)
}

// loggingRunner prints every executed instruction together with the frame
// state to stdout. Slow, only intended for debugging sessions.
type loggingRunner struct{}

func (r loggingRunner) run(c *context) {
	var word [32]byte
	for c.status == statusRunning {
		if int(c.pc) < len(c.code) {
			op := OpCode(c.code[c.pc])
			c.memory.copyData(0, word[:])
			fmt.Printf("%5d: %-12v gas: %d, top of stack: %v, mem[0:32]: %x\n", c.pc, op, c.gas, topOfStack(c.stack), word)
		}
		steps(c, true)
	}
}

func topOfStack(s *stack) string {
	if s.len() == 0 {
		return "<empty>"
	}
	return s.peek().String()
}

func steps(c *context, oneStepOnly bool) {
	for c.status == statusRunning {
		if int(c.pc) >= len(c.code) {
			// reaching the end of the code is an implicit stop
			c.status = statusStopped
			return
		}

		op := OpCode(c.code[c.pc])
		entry := &c.table[op]

		// The base cost is charged before the stack boundaries are
		// checked, an underpaid instruction fails with out-of-gas even
		// on a malformed stack.
		if entry.gas > 0 {
			if err := c.useGas(entry.gas); err != nil {
				c.signalError(err)
				return
			}
		}

		if height := c.stack.len(); height < entry.minStack {
			c.signalError(errStackUnderflow)
			return
		} else if height > entry.maxStack {
			c.signalError(errStackOverflow)
			return
		}

		if err := entry.execute(c); err != nil {
			c.signalError(err)
			return
		}

		c.pc += int32(entry.immediates) + 1

		if oneStepOnly {
			return
		}
	}
}

// runConfig carries the per-run effective settings derived from the
// instance configuration.
type runConfig struct {
	WithShaCache bool
	runner       runner
}

func run(config runConfig, params figaro.Parameters, jumpDests bitvec) (figaro.Result, error) {
	ctxt := context{
		params:       params,
		context:      params.Context,
		code:         params.Code,
		jumpDests:    jumpDests,
		table:        getInstructionSet(params.Revision),
		gas:          params.Gas,
		stack:        NewStack(),
		memory:       NewMemory(),
		status:       statusRunning,
		withShaCache: config.WithShaCache,
	}
	defer ReturnStack(ctxt.stack)

	runner := config.runner
	if runner == nil {
		runner = vanillaRunner{}
	}
	runner.run(&ctxt)

	return generateResult(&ctxt)
}

// generateResult converts the final state of an execution frame into a
// result visible to the caller.
func generateResult(ctxt *context) (figaro.Result, error) {
	switch ctxt.status {
	case statusStopped, statusSelfDestructed:
		return figaro.Result{
			Success:   true,
			GasLeft:   ctxt.gas,
			GasRefund: ctxt.refund,
		}, nil
	case statusReturned:
		return figaro.Result{
			Success:   true,
			Output:    ctxt.returnData,
			GasLeft:   ctxt.gas,
			GasRefund: ctxt.refund,
		}, nil
	case statusReverted:
		return figaro.Result{
			Success: false,
			Output:  ctxt.returnData,
			GasLeft: ctxt.gas,
		}, nil
	case statusError:
		// all gas is consumed, state changes are discarded by the caller
		return figaro.Result{Success: false}, nil
	default:
		return figaro.Result{}, fmt.Errorf("unexpected execution status: %v", ctxt.status)
	}
}

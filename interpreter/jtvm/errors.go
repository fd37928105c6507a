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

const (
	errOutOfGas               = figaro.ConstError("out of gas")
	errStackUnderflow         = figaro.ConstError("stack underflow")
	errStackOverflow          = figaro.ConstError("stack overflow")
	errInvalidInstruction     = figaro.ConstError("invalid instruction")
	errInvalidJump            = figaro.ConstError("invalid jump destination")
	errStaticContextViolation = figaro.ConstError("write protection")
	errReturnDataOutOfBounds  = figaro.ConstError("return data out of bounds")
	errInitCodeTooLarge       = figaro.ConstError("init code larger than allowed")
	errOverflow               = figaro.ConstError("overflow")
)

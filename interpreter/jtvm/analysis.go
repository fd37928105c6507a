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
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/figaro-vm/figaro"
)

// bitvec marks the positions in a code sequence that are immediate data
// of push instructions. A set bit means data, a cleared bit means code.
type bitvec []byte

func (bits bitvec) isData(pos uint64) bool {
	return bits[pos/8]&(1<<(pos%8)) != 0
}

// codeBitmap collects the instruction boundary information of the given
// code needed to validate jump destinations.
func codeBitmap(code []byte) bitvec {
	bits := make(bitvec, (len(code)+7)/8)
	for pc := 0; pc < len(code); {
		op := OpCode(code[pc])
		pc++
		for i := 0; i < pushSize(op) && pc < len(code); i++ {
			bits[pc/8] |= 1 << (pc % 8)
			pc++
		}
	}
	return bits
}

// maxCachedCodeLength is the largest code for which analysis results are
// retained. This is the deployment size limit, only init code of a
// create transaction can be longer.
const maxCachedCodeLength = 24576

// analyzer caches code analysis results keyed by code hash.
type analyzer struct {
	cache *lru.Cache[figaro.Hash, bitvec]
}

func newAnalyzer(capacity int) *analyzer {
	cache, err := lru.New[figaro.Hash, bitvec](capacity)
	if err != nil {
		panic(err) // can only fail for non-positive capacities
	}
	return &analyzer{cache: cache}
}

// getJumpDests obtains the jump destination bitmap for the given code,
// reusing a cached result when the code hash is known.
func (a *analyzer) getJumpDests(code []byte, hash *figaro.Hash) bitvec {
	if hash == nil || len(code) > maxCachedCodeLength {
		return codeBitmap(code)
	}
	if bits, found := a.cache.Get(*hash); found {
		return bits
	}
	bits := codeBitmap(code)
	a.cache.Add(*hash, bits)
	return bits
}

// Copyright (c) 2025 The Figaro Authors
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at figaro.dev/bsl11.
//
// Change Date: 2029-1-1
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package figaro

import (
	"sync"

	"golang.org/x/crypto/sha3"
)

var keccakHasherPool = sync.Pool{New: func() any { return sha3.NewLegacyKeccak256() }}

type keccakHasher interface {
	Reset()
	Write(in []byte) (int, error)
	Read(out []byte) (int, error)
}

// Keccak256 computes the Keccak-256 hash of the given data. Hasher instances
// are pooled, making this function safe and cheap to call concurrently.
func Keccak256(data []byte) Hash {
	hasher := keccakHasherPool.Get().(keccakHasher)
	hasher.Reset()
	hasher.Write(data)
	var res Hash
	hasher.Read(res[:])
	keccakHasherPool.Put(hasher)
	return res
}

var emptyKeccak256Hash = Keccak256([]byte{})

// Keccak256ForCode computes the code hash of the given contract code,
// short-cutting the empty-code case.
func Keccak256ForCode(code Code) Hash {
	if len(code) == 0 {
		return emptyKeccak256Hash
	}
	return Keccak256(code)
}

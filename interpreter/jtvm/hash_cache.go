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
	"sync"

	"github.com/figaro-vm/figaro"
)

// sha3Cache memorizes hashes of frequently hashed inputs. Contracts hash
// the same 32-byte keys and 64-byte key pairs over and over when working
// with mapping-shaped storage layouts, which makes those two input sizes
// worth caching.
var sha3Cache = sha3HashCache{
	cache32: newHashCache[[32]byte](1 << 16),
	cache64: newHashCache[[64]byte](1 << 18),
}

type sha3HashCache struct {
	cache32 *hashCache[[32]byte]
	cache64 *hashCache[[64]byte]
}

func (s *sha3HashCache) hash(data []byte) figaro.Hash {
	if len(data) == 32 {
		return s.cache32.getHash([32]byte(data), func(key [32]byte) figaro.Hash {
			return figaro.Keccak256(key[:])
		})
	}
	if len(data) == 64 {
		return s.cache64.getHash([64]byte(data), func(key [64]byte) figaro.Hash {
			return figaro.Keccak256(key[:])
		})
	}
	return figaro.Keccak256(data)
}

// hashCache is a fixed-capacity LRU cache mapping hash inputs to their
// hashes. All entries are pre-allocated in a single slice and linked into
// an LRU order, so a full cache operates allocation free.
type hashCache[K comparable] struct {
	entries  []hashCacheEntry[K]
	index    map[K]*hashCacheEntry[K]
	head     *hashCacheEntry[K]
	tail     *hashCacheEntry[K]
	nextFree int
	lock     sync.Mutex
}

type hashCacheEntry[K comparable] struct {
	key  K
	hash figaro.Hash
	pred *hashCacheEntry[K]
	succ *hashCacheEntry[K]
}

func newHashCache[K comparable](capacity int) *hashCache[K] {
	return &hashCache[K]{
		entries: make([]hashCacheEntry[K], capacity),
		index:   make(map[K]*hashCacheEntry[K], capacity),
	}
}

// getHash looks up the hash of the given key, computing and inserting it
// on a miss. The hash computation runs without holding the cache lock.
func (h *hashCache[K]) getHash(key K, compute func(K) figaro.Hash) figaro.Hash {
	h.lock.Lock()
	if entry, found := h.index[key]; found {
		h.touch(entry)
		hash := entry.hash
		h.lock.Unlock()
		return hash
	}
	h.lock.Unlock()

	hash := compute(key)

	h.lock.Lock()
	defer h.lock.Unlock()
	// another goroutine may have inserted the entry in the meantime
	if entry, found := h.index[key]; found {
		h.touch(entry)
		return entry.hash
	}

	var entry *hashCacheEntry[K]
	if h.nextFree < len(h.entries) {
		entry = &h.entries[h.nextFree]
		h.nextFree++
	} else {
		// evict the least recently used entry
		entry = h.tail
		h.tail = entry.pred
		if h.tail != nil {
			h.tail.succ = nil
		}
		delete(h.index, entry.key)
	}

	entry.key = key
	entry.hash = hash
	entry.pred = nil
	entry.succ = h.head
	if h.head != nil {
		h.head.pred = entry
	}
	h.head = entry
	if h.tail == nil {
		h.tail = entry
	}
	h.index[key] = entry
	return hash
}

// touch moves the given entry to the front of the LRU order. The caller
// must hold the lock.
func (h *hashCache[K]) touch(entry *hashCacheEntry[K]) {
	if h.head == entry {
		return
	}
	entry.pred.succ = entry.succ
	if entry.succ != nil {
		entry.succ.pred = entry.pred
	} else {
		h.tail = entry.pred
	}
	entry.pred = nil
	entry.succ = h.head
	h.head.pred = entry
	h.head = entry
}

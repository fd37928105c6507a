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

import "math"

// GetStorageStatus obtains the status code to be returned by a
// TransactionContext implementation when mutating a storage slot with
// the given original (=committed), current, and new value.
func GetStorageStatus(original, current, new Word) StorageStatus {
	var zero = Word{}

	if current == new {
		return StorageAssigned
	}

	// 0 -> 0 -> Z
	if original == zero && current == zero && new != zero {
		return StorageAdded
	}

	// X -> X -> 0
	if original != zero && current == original && new == zero {
		return StorageDeleted
	}

	// X -> X -> Z
	if original != zero && current == original && new != zero && new != original {
		return StorageModified
	}

	// X -> 0 -> Z
	if original != zero && current == zero && new != original && new != zero {
		return StorageDeletedAdded
	}

	// X -> Y -> 0
	if original != zero && current != original && current != zero && new == zero {
		return StorageModifiedDeleted
	}

	// X -> 0 -> X
	if original != zero && current == zero && new == original {
		return StorageDeletedRestored
	}

	// 0 -> Y -> 0
	if original == zero && current != zero && new == zero {
		return StorageAddedDeleted
	}

	// X -> Y -> X
	if original != zero && current != original && current != zero && new == original {
		return StorageModifiedRestored
	}

	// Default
	return StorageAssigned
}

// SizeInWords returns the number of 32-byte words required to store the given
// number of bytes, checking that size+31 does not overflow uint64.
func SizeInWords(size uint64) uint64 {
	if size > math.MaxUint64-31 {
		return math.MaxUint64/32 + 1
	}
	return (size + 31) / 32
}

func IsPrecompiledContract(recipient Address) bool {
	// the addresses 1-9 are reserved for precompiled contracts
	for i := 0; i < 19; i++ {
		if recipient[i] != 0 {
			return false
		}
	}
	return 1 <= recipient[19] && recipient[19] <= 9
}

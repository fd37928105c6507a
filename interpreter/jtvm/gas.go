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
	"github.com/figaro-vm/figaro"
)

const (
	// CallNewAccountGas is the extra cost of a value-bearing call that
	// brings a previously non-existing account into existence.
	CallNewAccountGas figaro.Gas = 25000
	// CallValueTransferGas is the extra cost paid by a call transferring
	// a non-zero value.
	CallValueTransferGas figaro.Gas = 9000
	// CallStipend is the free gas granted to the callee of a
	// value-bearing call on top of the forwarded gas.
	CallStipend figaro.Gas = 2300

	// ColdSloadCost is the cost of a storage read whose slot has not been
	// accessed yet in the current transaction.
	ColdSloadCost figaro.Gas = 2100
	// ColdAccountAccessCost is the cost of touching an account that has
	// not been accessed yet in the current transaction.
	ColdAccountAccessCost figaro.Gas = 2600
	// WarmStorageReadCost is the cost of accessing an already warm
	// account or storage slot.
	WarmStorageReadCost figaro.Gas = 100

	// SloadGasEIP2200 is the cost of a storage read before the
	// introduction of access lists.
	SloadGasEIP2200 figaro.Gas = 800

	// SstoreSetGas is the cost of writing a non-zero value into a slot
	// that held zero at the start of the transaction.
	SstoreSetGas figaro.Gas = 20000
	// SstoreResetGas is the cost of overwriting a non-zero slot.
	SstoreResetGas figaro.Gas = 5000
	// SstoreSentryGas is the minimum gas a frame must hold for a storage
	// write to be attempted at all.
	SstoreSentryGas figaro.Gas = 2300

	// SstoreClearsScheduleRefund is the refund for clearing a slot before
	// the refund schedule reduction.
	SstoreClearsScheduleRefund figaro.Gas = 15000
	// SstoreClearsScheduleRefundEIP3529 is the reduced clearing refund.
	SstoreClearsScheduleRefundEIP3529 figaro.Gas = 4800

	// SelfdestructGas is the base cost of a self-destruct.
	SelfdestructGas figaro.Gas = 5000
	// SelfdestructRefundGas is refunded for the first self-destruct of an
	// account, until the refund was abolished.
	SelfdestructRefundGas figaro.Gas = 24000
	// CreateBySelfdestructGas is the extra cost of a self-destruct that
	// sends the remaining balance to a non-existing account.
	CreateBySelfdestructGas figaro.Gas = 25000

	// CreateGas is the base cost of spawning a new contract.
	CreateGas figaro.Gas = 32000
	// CreateDataGas is the deposit cost per byte of deployed code.
	CreateDataGas figaro.Gas = 200
	// InitCodeWordGas is the per-word charge on init code size introduced
	// with the init code size limit.
	InitCodeWordGas figaro.Gas = 2
	// MaxInitCodeSize is the largest accepted init code.
	MaxInitCodeSize = 2 * MaxCodeSize
	// MaxCodeSize is the largest code a contract deployment may produce.
	MaxCodeSize = 24576

	// ExpByteGas is the charge per byte of a non-zero exponent.
	ExpByteGas figaro.Gas = 50
	// Sha3WordGas is the hashing charge per 32-byte word.
	Sha3WordGas figaro.Gas = 6
	// CopyGas is the charge per 32-byte word moved by a copy instruction.
	CopyGas figaro.Gas = 3
	// LogDataGas is the charge per byte of log payload.
	LogDataGas figaro.Gas = 8
)

// maxCallDepth is the deepest nesting of call frames accepted before
// nested calls fail without executing.
const maxCallDepth = 1024

// callGas computes the amount of gas passed to a nested call. At most
// 63/64 of the remaining gas is forwarded, capped by the requested amount.
func callGas(available figaro.Gas, requested figaro.Gas) figaro.Gas {
	forwardable := available - available/64
	if forwardable < requested {
		return forwardable
	}
	return requested
}

// getAccessCost returns the gas charged for touching an account after the
// introduction of access lists.
func getAccessCost(status figaro.AccessStatus) figaro.Gas {
	if status == figaro.ColdAccess {
		return ColdAccountAccessCost
	}
	return WarmStorageReadCost
}

// getDynamicCostsForSstore returns the gas to be charged for a storage
// write on top of the cold-access cost, depending on the effect the write
// had on the slot.
func getDynamicCostsForSstore(revision figaro.Revision, status figaro.StorageStatus) figaro.Gas {
	resetCost := SstoreResetGas
	dirtyCost := SloadGasEIP2200
	if revision >= figaro.R09_Berlin {
		// the cold-access cost is charged separately
		resetCost = SstoreResetGas - ColdSloadCost
		dirtyCost = WarmStorageReadCost
	}
	switch status {
	case figaro.StorageAdded:
		return SstoreSetGas
	case figaro.StorageDeleted, figaro.StorageModified:
		return resetCost
	default:
		return dirtyCost
	}
}

// getRefundForSstore returns the refund counter adjustment caused by a
// storage write. The result may be negative when an earlier refund is
// taken back.
func getRefundForSstore(revision figaro.Revision, status figaro.StorageStatus) figaro.Gas {
	clearingRefund := SstoreClearsScheduleRefund
	if revision >= figaro.R10_London {
		clearingRefund = SstoreClearsScheduleRefundEIP3529
	}
	sloadCost := SloadGasEIP2200
	resetCost := SstoreResetGas
	if revision >= figaro.R09_Berlin {
		sloadCost = WarmStorageReadCost
		resetCost = SstoreResetGas - ColdSloadCost
	}
	switch status {
	case figaro.StorageDeleted, figaro.StorageModifiedDeleted:
		return clearingRefund
	case figaro.StorageDeletedAdded:
		return -clearingRefund
	case figaro.StorageDeletedRestored:
		return -clearingRefund + resetCost - sloadCost
	case figaro.StorageAddedDeleted:
		return SstoreSetGas - sloadCost
	case figaro.StorageModifiedRestored:
		return resetCost - sloadCost
	default:
		return 0
	}
}

// selfDestructRefund returns the refund granted for the first
// self-destruct of an account. The refund was abolished with the refund
// schedule reduction.
func selfDestructRefund(destructed bool, revision figaro.Revision) figaro.Gas {
	if destructed && revision < figaro.R10_London {
		return SelfdestructRefundGas
	}
	return 0
}

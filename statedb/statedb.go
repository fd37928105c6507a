// Copyright (c) 2025 The Figaro Authors
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at figaro.dev/bsl11.
//
// Change Date: 2029-1-1
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package statedb provides an in-memory, journal-based implementation of the
// figaro.TransactionContext interface. Every mutation appends an undo record
// to a journal, snapshots are journal lengths, and a rollback replays the
// journal tail in reverse. The cost of a rollback is proportional to the
// number of changes made since the snapshot, not to the size of the state.
package statedb

import (
	"encoding/binary"

	"github.com/figaro-vm/figaro"
)

type slotId struct {
	address figaro.Address
	key     figaro.Key
}

type account struct {
	balance figaro.Value
	nonce   uint64
	code    figaro.Code
}

// StateDB is a self-contained world state for a single transaction. It is not
// safe for concurrent use.
type StateDB struct {
	accounts       map[figaro.Address]*account
	storage        map[slotId]figaro.Word
	committed      map[slotId]figaro.Word
	transient      map[slotId]figaro.Word
	warmAccounts   map[figaro.Address]struct{}
	warmSlots      map[slotId]struct{}
	selfDestructed map[figaro.Address]struct{}
	logs           []figaro.Log

	// undo operations to be executed in reverse order on a rollback
	journal []func()

	// optional source for block hashes, defaults to a synthetic derivation
	blockHashSource func(number int64) figaro.Hash
}

func New() *StateDB {
	return &StateDB{
		accounts:       map[figaro.Address]*account{},
		storage:        map[slotId]figaro.Word{},
		committed:      map[slotId]figaro.Word{},
		transient:      map[slotId]figaro.Word{},
		warmAccounts:   map[figaro.Address]struct{}{},
		warmSlots:      map[slotId]struct{}{},
		selfDestructed: map[figaro.Address]struct{}{},
	}
}

// WithBlockHashSource installs a source for block hashes queried by contract
// code. Without one, hashes are derived from the block number.
func (s *StateDB) WithBlockHashSource(source func(number int64) figaro.Hash) *StateDB {
	s.blockHashSource = source
	return s
}

// CreateAccount seeds an account with the given properties. Intended for
// setting up the pre-transaction state, it bypasses the journal.
func (s *StateDB) CreateAccount(address figaro.Address, balance figaro.Value, nonce uint64, code figaro.Code) {
	s.accounts[address] = &account{
		balance: balance,
		nonce:   nonce,
		code:    code,
	}
}

// SetCommittedStorage seeds the original value of a storage slot as it was at
// the start of the transaction. It bypasses the journal.
func (s *StateDB) SetCommittedStorage(address figaro.Address, key figaro.Key, value figaro.Word) {
	id := slotId{address, key}
	s.committed[id] = value
	s.storage[id] = value
}

func (s *StateDB) AccountExists(address figaro.Address) bool {
	_, exists := s.accounts[address]
	return exists
}

func (s *StateDB) GetBalance(address figaro.Address) figaro.Value {
	if account, exists := s.accounts[address]; exists {
		return account.balance
	}
	return figaro.Value{}
}

func (s *StateDB) SetBalance(address figaro.Address, balance figaro.Value) {
	account := s.getOrCreateAccount(address)
	previous := account.balance
	s.journal = append(s.journal, func() { account.balance = previous })
	account.balance = balance
}

func (s *StateDB) GetNonce(address figaro.Address) uint64 {
	if account, exists := s.accounts[address]; exists {
		return account.nonce
	}
	return 0
}

func (s *StateDB) SetNonce(address figaro.Address, nonce uint64) {
	account := s.getOrCreateAccount(address)
	previous := account.nonce
	s.journal = append(s.journal, func() { account.nonce = previous })
	account.nonce = nonce
}

func (s *StateDB) GetCode(address figaro.Address) figaro.Code {
	if account, exists := s.accounts[address]; exists {
		return account.code
	}
	return nil
}

func (s *StateDB) GetCodeHash(address figaro.Address) figaro.Hash {
	if account, exists := s.accounts[address]; exists {
		return figaro.Keccak256ForCode(account.code)
	}
	return figaro.Hash{}
}

func (s *StateDB) GetCodeSize(address figaro.Address) int {
	if account, exists := s.accounts[address]; exists {
		return len(account.code)
	}
	return 0
}

func (s *StateDB) SetCode(address figaro.Address, code figaro.Code) {
	account := s.getOrCreateAccount(address)
	previous := account.code
	s.journal = append(s.journal, func() { account.code = previous })
	account.code = code
}

func (s *StateDB) GetStorage(address figaro.Address, key figaro.Key) figaro.Word {
	return s.storage[slotId{address, key}]
}

func (s *StateDB) SetStorage(address figaro.Address, key figaro.Key, value figaro.Word) figaro.StorageStatus {
	id := slotId{address, key}
	original := s.committed[id]
	current := s.storage[id]
	s.journal = append(s.journal, func() { s.storage[id] = current })
	s.storage[id] = value
	return figaro.GetStorageStatus(original, current, value)
}

func (s *StateDB) SelfDestruct(address figaro.Address, beneficiary figaro.Address) bool {
	balance := s.GetBalance(address)
	if address != beneficiary {
		s.SetBalance(beneficiary, figaro.Add(s.GetBalance(beneficiary), balance))
	}
	s.SetBalance(address, figaro.Value{})

	if _, destroyed := s.selfDestructed[address]; destroyed {
		return false
	}
	s.journal = append(s.journal, func() { delete(s.selfDestructed, address) })
	s.selfDestructed[address] = struct{}{}
	return true
}

func (s *StateDB) HasSelfDestructed(address figaro.Address) bool {
	_, destroyed := s.selfDestructed[address]
	return destroyed
}

func (s *StateDB) CreateSnapshot() figaro.Snapshot {
	return figaro.Snapshot(len(s.journal))
}

func (s *StateDB) RestoreSnapshot(snapshot figaro.Snapshot) {
	for len(s.journal) > int(snapshot) {
		last := len(s.journal) - 1
		s.journal[last]()
		s.journal[last] = nil
		s.journal = s.journal[:last]
	}
}

func (s *StateDB) GetTransientStorage(address figaro.Address, key figaro.Key) figaro.Word {
	return s.transient[slotId{address, key}]
}

func (s *StateDB) SetTransientStorage(address figaro.Address, key figaro.Key, value figaro.Word) {
	id := slotId{address, key}
	previous := s.transient[id]
	s.journal = append(s.journal, func() { s.transient[id] = previous })
	s.transient[id] = value
}

func (s *StateDB) AccessAccount(address figaro.Address) figaro.AccessStatus {
	if _, warm := s.warmAccounts[address]; warm {
		return figaro.WarmAccess
	}
	s.journal = append(s.journal, func() { delete(s.warmAccounts, address) })
	s.warmAccounts[address] = struct{}{}
	return figaro.ColdAccess
}

func (s *StateDB) AccessStorage(address figaro.Address, key figaro.Key) figaro.AccessStatus {
	id := slotId{address, key}
	if _, warm := s.warmSlots[id]; warm {
		return figaro.WarmAccess
	}
	s.journal = append(s.journal, func() { delete(s.warmSlots, id) })
	s.warmSlots[id] = struct{}{}
	return figaro.ColdAccess
}

func (s *StateDB) EmitLog(log figaro.Log) {
	s.journal = append(s.journal, func() { s.logs = s.logs[:len(s.logs)-1] })
	s.logs = append(s.logs, log)
}

func (s *StateDB) GetLogs() []figaro.Log {
	return s.logs
}

func (s *StateDB) GetBlockHash(number int64) figaro.Hash {
	if s.blockHashSource != nil {
		return s.blockHashSource(number)
	}
	var encoded [8]byte
	binary.BigEndian.PutUint64(encoded[:], uint64(number))
	return figaro.Keccak256(encoded[:])
}

// SelfDestructedAccounts lists the accounts marked for destruction in the
// current transaction. Their removal from the state is up to the caller,
// since it must only happen once the enclosing transaction is final.
func (s *StateDB) SelfDestructedAccounts() []figaro.Address {
	accounts := make([]figaro.Address, 0, len(s.selfDestructed))
	for address := range s.selfDestructed {
		accounts = append(accounts, address)
	}
	return accounts
}

// EndTransaction applies the transaction-final effects, deleting the accounts
// marked for destruction, and resets all transaction-scoped tracking so the
// instance can serve the next transaction against the resulting state.
func (s *StateDB) EndTransaction() {
	for address := range s.selfDestructed {
		delete(s.accounts, address)
		for id := range s.storage {
			if id.address == address {
				delete(s.storage, id)
			}
		}
		for id := range s.committed {
			if id.address == address {
				delete(s.committed, id)
			}
		}
	}

	for id, value := range s.storage {
		if value == (figaro.Word{}) {
			delete(s.committed, id)
			delete(s.storage, id)
		} else {
			s.committed[id] = value
		}
	}

	s.transient = map[slotId]figaro.Word{}
	s.warmAccounts = map[figaro.Address]struct{}{}
	s.warmSlots = map[slotId]struct{}{}
	s.selfDestructed = map[figaro.Address]struct{}{}
	s.logs = nil
	s.journal = nil
}

func (s *StateDB) getOrCreateAccount(address figaro.Address) *account {
	if existing, exists := s.accounts[address]; exists {
		return existing
	}
	created := &account{}
	s.journal = append(s.journal, func() { delete(s.accounts, address) })
	s.accounts[address] = created
	return created
}

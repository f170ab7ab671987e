// Package state holds the process-wide, replay-reconstructed state every
// reducer reads and mutates: a flat collection of maps keyed by id, per
// design note "mutable nested state with cross-references" — contracts,
// orders and reputation records refer to each other by string id, never by
// object handle, so no subsystem can form an ownership cycle with another.
//
// Store is the single-writer working copy the validate-apply pipeline
// mutates in place, one envelope at a time. Snapshot is the immutable,
// point-in-time read view handed to concurrent query callers between
// reducer steps; it never changes after it is taken.
package state

import (
	"sync"

	ctypes "github.com/clawnet/clawnet/core/types"
	"github.com/clawnet/clawnet/contracts"
	"github.com/clawnet/clawnet/dao"
	"github.com/clawnet/clawnet/identity"
	"github.com/clawnet/clawnet/markets"
	"github.com/clawnet/clawnet/reputation"
	"github.com/clawnet/clawnet/wallet"
)

// Store is the mutable, single-writer process state. All fields are
// protected by mu; only the engine's single validate-apply goroutine may
// take the write path (Lock), any number of readers may take Snapshot
// (which internally takes a brief RLock to copy references).
type Store struct {
	mu sync.RWMutex

	// Ordering ledgers (engine-level, not a reducer's business).
	nonces        map[ctypes.NonceKey]uint64
	resourceChain map[string]string // resource key -> last mutating envelope hash
	applied       map[string]bool   // envelope hash -> applied (idempotence / duplicate detection)

	// Subsystem state, one map set per reducer.
	Identities identity.State
	Wallet     wallet.State
	Markets    markets.State
	Contracts  contracts.State
	Reputation reputation.State
	DAO        dao.State
}

// New constructs an empty store, the genesis state before any envelope has
// been applied. treasuryAddress seeds the DAO's treasury account; it must
// match the address wallet.transfer events use to deposit into and
// dao.timelock.execute's treasury-spend action debits from.
func New(treasuryAddress string) *Store {
	daoState := dao.NewState()
	daoState.TreasuryAddress = treasuryAddress
	return &Store{
		nonces:        make(map[ctypes.NonceKey]uint64),
		resourceChain: make(map[string]string),
		applied:       make(map[string]bool),
		Identities:    identity.NewState(),
		Wallet:        wallet.NewState(),
		Markets:       markets.NewState(),
		Contracts:     contracts.NewState(),
		Reputation:    reputation.NewState(),
		DAO:           daoState,
	}
}

// Lock/Unlock expose the single-writer critical section to the engine
// package, which serializes all validate-apply steps through it.
func (s *Store) Lock()   { s.mu.Lock() }
func (s *Store) Unlock() { s.mu.Unlock() }

// LastNonce returns the last accepted nonce for key, and whether any
// envelope has been accepted for it yet. Caller must hold the write lock.
func (s *Store) LastNonce(key ctypes.NonceKey) (uint64, bool) {
	n, ok := s.nonces[key]
	return n, ok
}

// SetNonce records the latest accepted nonce for key. Caller must hold the
// write lock.
func (s *Store) SetNonce(key ctypes.NonceKey, n uint64) {
	s.nonces[key] = n
}

// LastResourceHash returns the hash of the last envelope that mutated
// resource, and whether any envelope has mutated it yet. Caller must hold
// the write lock.
func (s *Store) LastResourceHash(resource string) (string, bool) {
	h, ok := s.resourceChain[resource]
	return h, ok
}

// SetResourceHash records the latest mutating envelope hash for resource.
// Caller must hold the write lock.
func (s *Store) SetResourceHash(resource, hash string) {
	s.resourceChain[resource] = hash
}

// HasApplied reports whether an envelope with this hash has already been
// applied, the idempotence check underlying duplicate-event handling.
func (s *Store) HasApplied(hash string) bool {
	return s.applied[hash]
}

// MarkApplied records hash as applied.
func (s *Store) MarkApplied(hash string) {
	s.applied[hash] = true
}

// Snapshot is an immutable, point-in-time read view of process state. It is
// safe for any number of concurrent readers because nothing mutates it once
// taken; readers such as the local API call Store.Snapshot() to take a
// fresh one.
type Snapshot struct {
	Identities identity.State
	Wallet     wallet.State
	Markets    markets.State
	Contracts  contracts.State
	Reputation reputation.State
	DAO        dao.State
}

// Snapshot deep-copies the current state for concurrent read-only queries.
// Readers never block the single writer and vice versa beyond the copy
// itself.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Identities: s.Identities.Clone(),
		Wallet:     s.Wallet.Clone(),
		Markets:    s.Markets.Clone(),
		Contracts:  s.Contracts.Clone(),
		Reputation: s.Reputation.Clone(),
		DAO:        s.DAO.Clone(),
	}
}

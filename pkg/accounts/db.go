// Package accounts provides the ledger account store used by the runtime.
package accounts

import (
	"errors"

	"github.com/naviprotocol/pyth-crosschain/pkg/types"
)

// ErrStaleAccount is returned by CommitAccounts when an account changed
// between the time a transaction loaded it and the time it is committed.
var ErrStaleAccount = errors.New("account modified by a concurrent commit")

// AccountsDB defines the interface for account storage.
type AccountsDB interface {
	// GetAccount retrieves an account by pubkey.
	// Returns nil, nil if account does not exist.
	GetAccount(pubkey types.Pubkey) (*types.Account, error)

	// SetAccount stores an account.
	SetAccount(pubkey types.Pubkey, account *types.Account) error

	// DeleteAccount removes an account.
	DeleteAccount(pubkey types.Pubkey) error

	// HasAccount returns true if the account exists.
	HasAccount(pubkey types.Pubkey) bool

	// GetAccountsCount returns the total number of accounts.
	GetAccountsCount() uint64

	// CommitAccounts applies all deltas or none of them. A delta with a
	// non-nil OldAccount must still match the stored state, otherwise the
	// whole commit fails with ErrStaleAccount. A nil NewAccount deletes.
	CommitAccounts(deltas []types.AccountDelta) error

	// Close closes the database.
	Close() error
}

// storedMatches reports whether the stored state equals the state a delta
// was computed against. A zero-lamport, data-less old account is treated
// the same as a missing one.
func storedMatches(stored, old *types.Account) bool {
	if old.IsEmpty() && old.Owner == types.SystemProgramID {
		return stored == nil || stored.Equal(old)
	}
	return stored.Equal(old)
}

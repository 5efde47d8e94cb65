package accounts

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"k8s.io/klog/v2"

	"github.com/naviprotocol/pyth-crosschain/pkg/types"
)

const (
	// accountKeyPrefix is the prefix for account keys in BadgerDB.
	accountKeyPrefix = "account:"
)

// BadgerDB is a persistent implementation of AccountsDB using BadgerDB.
type BadgerDB struct {
	db    *badger.DB
	count atomic.Uint64
}

// NewBadgerDB creates a new BadgerDB account database at the specified path.
func NewBadgerDB(path string) (*BadgerDB, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable badger logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	bdb := &BadgerDB{
		db: db,
	}

	count, err := bdb.countAccounts()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to count accounts: %w", err)
	}
	bdb.count.Store(count)
	klog.V(2).Infof("opened account store at %s with %d accounts", path, count)

	return bdb, nil
}

// makeAccountKey creates the key for an account.
func makeAccountKey(pubkey types.Pubkey) []byte {
	key := make([]byte, len(accountKeyPrefix)+32)
	copy(key, accountKeyPrefix)
	copy(key[len(accountKeyPrefix):], pubkey[:])
	return key
}

// getInTxn loads an account inside an open transaction.
func getInTxn(txn *badger.Txn, key []byte) (*types.Account, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var account *types.Account
	err = item.Value(func(val []byte) error {
		var deserErr error
		account, deserErr = DeserializeAccount(val)
		return deserErr
	})
	return account, err
}

// GetAccount retrieves an account by pubkey.
// Returns nil, nil if account does not exist.
func (db *BadgerDB) GetAccount(pubkey types.Pubkey) (*types.Account, error) {
	key := makeAccountKey(pubkey)
	var account *types.Account

	err := db.db.View(func(txn *badger.Txn) error {
		var err error
		account, err = getInTxn(txn, key)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return account, nil
}

// SetAccount stores an account.
func (db *BadgerDB) SetAccount(pubkey types.Pubkey, account *types.Account) error {
	return db.CommitAccounts([]types.AccountDelta{{Pubkey: pubkey, NewAccount: account, OldAccount: nil}})
}

// DeleteAccount removes an account.
func (db *BadgerDB) DeleteAccount(pubkey types.Pubkey) error {
	key := makeAccountKey(pubkey)

	err := db.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil // Already deleted
		}
		if err != nil {
			return err
		}

		if err := txn.Delete(key); err != nil {
			return err
		}

		db.count.Add(^uint64(0)) // Decrement by 1
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	return nil
}

// HasAccount returns true if the account exists.
func (db *BadgerDB) HasAccount(pubkey types.Pubkey) bool {
	key := makeAccountKey(pubkey)
	var exists bool

	_ = db.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		exists = err == nil
		return nil
	})

	return exists
}

// GetAccountsCount returns the total number of accounts.
func (db *BadgerDB) GetAccountsCount() uint64 {
	return db.count.Load()
}

// CommitAccounts applies deltas inside a single badger transaction. Deltas
// built by SetAccount carry no OldAccount and overwrite unconditionally.
func (db *BadgerDB) CommitAccounts(deltas []types.AccountDelta) error {
	var added, removed uint64

	err := db.db.Update(func(txn *badger.Txn) error {
		for _, d := range deltas {
			key := makeAccountKey(d.Pubkey)
			stored, err := getInTxn(txn, key)
			if err != nil {
				return err
			}
			if d.OldAccount != nil && !storedMatches(stored, d.OldAccount) {
				return fmt.Errorf("%w: %s", ErrStaleAccount, d.Pubkey.String())
			}

			// Classify against what is stored, not the caller's snapshot.
			applied := types.AccountDelta{Pubkey: d.Pubkey, OldAccount: stored, NewAccount: d.NewAccount}
			switch {
			case applied.IsDeletion():
				if err := txn.Delete(key); err != nil {
					return err
				}
				removed++
			case applied.IsCreation(), applied.IsModification():
				data, err := SerializeAccount(d.NewAccount)
				if err != nil {
					return fmt.Errorf("failed to serialize account: %w", err)
				}
				if err := txn.Set(key, data); err != nil {
					return err
				}
				if applied.IsCreation() {
					added++
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to commit accounts: %w", err)
	}

	db.count.Add(added)
	db.count.Add(-removed)
	return nil
}

// Close closes the database.
func (db *BadgerDB) Close() error {
	return db.db.Close()
}

// countAccounts counts all accounts in the database.
func (db *BadgerDB) countAccounts() (uint64, error) {
	var count uint64
	prefix := []byte(accountKeyPrefix)

	err := db.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false // Only need keys for counting
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})

	return count, err
}

// Ensure BadgerDB implements AccountsDB.
var _ AccountsDB = (*BadgerDB)(nil)

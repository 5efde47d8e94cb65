package accounts

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/naviprotocol/pyth-crosschain/pkg/types"
)

// Helper function to create test pubkeys
func testPubkey(seed string) types.Pubkey {
	hash := sha256.Sum256([]byte(seed))
	var pk types.Pubkey
	copy(pk[:], hash[:])
	return pk
}

// Helper function to create test accounts
func testAccount(lamports types.Lamports, data []byte, owner types.Pubkey) *types.Account {
	return &types.Account{
		Lamports:   lamports,
		Data:       data,
		Owner:      owner,
		Executable: false,
		RentEpoch:  0,
	}
}

func TestStores_SetGetDelete(t *testing.T) {
	for name, db := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			pubkey := testPubkey("test_account")
			account := testAccount(1_000_000_000, []byte("test_data"), types.SystemProgramID)

			if got, err := db.GetAccount(pubkey); err != nil || got != nil {
				t.Fatalf("GetAccount on empty store = %v, %v; want nil, nil", got, err)
			}
			if err := db.SetAccount(pubkey, account); err != nil {
				t.Fatalf("SetAccount failed: %v", err)
			}
			if !db.HasAccount(pubkey) {
				t.Error("HasAccount should return true for existing account")
			}

			retrieved, err := db.GetAccount(pubkey)
			if err != nil {
				t.Fatalf("GetAccount failed: %v", err)
			}
			if retrieved.Lamports != account.Lamports {
				t.Errorf("expected lamports %d, got %d", account.Lamports, retrieved.Lamports)
			}
			if !bytes.Equal(retrieved.Data, account.Data) {
				t.Errorf("expected data %v, got %v", account.Data, retrieved.Data)
			}

			// Overwrite keeps the count at one.
			_ = db.SetAccount(pubkey, testAccount(7, []byte("data2"), types.MessageBufferProgramID))
			if db.GetAccountsCount() != 1 {
				t.Errorf("account count should still be 1, got %d", db.GetAccountsCount())
			}

			if err := db.DeleteAccount(pubkey); err != nil {
				t.Fatalf("DeleteAccount failed: %v", err)
			}
			if db.HasAccount(pubkey) || db.GetAccountsCount() != 0 {
				t.Error("account should be deleted")
			}
			if err := db.DeleteAccount(pubkey); err != nil {
				t.Errorf("DeleteAccount should not error for nonexistent account: %v", err)
			}
		})
	}
}

func TestMemoryDB_DataIsolation(t *testing.T) {
	db := NewMemoryDB()
	pubkey := testPubkey("test_account")
	originalData := []byte("original_data")
	_ = db.SetAccount(pubkey, testAccount(1000, originalData, types.SystemProgramID))

	originalData[0] = 'X'
	retrieved, _ := db.GetAccount(pubkey)
	if retrieved.Data[0] == 'X' {
		t.Error("modifying original data should not affect stored data")
	}

	retrieved.Data[0] = 'Y'
	retrieved2, _ := db.GetAccount(pubkey)
	if retrieved2.Data[0] == 'Y' {
		t.Error("modifying retrieved data should not affect stored data")
	}
}

func TestMemoryDB_Concurrent(t *testing.T) {
	db := NewMemoryDB()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			pubkey := testPubkey(fmt.Sprintf("account_%d", i))
			_ = db.SetAccount(pubkey, testAccount(types.Lamports(i*1000), nil, types.SystemProgramID))
		}(i)
		go func(i int) {
			defer wg.Done()
			_, _ = db.GetAccount(testPubkey(fmt.Sprintf("account_%d", i)))
		}(i)
	}
	wg.Wait()

	if count := db.GetAccountsCount(); count != 100 {
		t.Errorf("expected 100 accounts, got %d", count)
	}
}

// openStores returns every AccountsDB implementation under test.
func openStores(t *testing.T) map[string]AccountsDB {
	t.Helper()
	bdb, err := NewBadgerDB(t.TempDir())
	if err != nil {
		t.Fatalf("NewBadgerDB failed: %v", err)
	}
	t.Cleanup(func() { _ = bdb.Close() })
	return map[string]AccountsDB{
		"memory": NewMemoryDB(),
		"badger": bdb,
	}
}

func TestCommitAccounts_AppliesAllDeltas(t *testing.T) {
	for name, db := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			payer := testPubkey("payer")
			buffer := testPubkey("buffer")
			stale := testPubkey("to_delete")

			payerOld := testAccount(1000, nil, types.SystemProgramID)
			staleOld := testAccount(5, []byte{1}, types.MessageBufferProgramID)
			_ = db.SetAccount(payer, payerOld)
			_ = db.SetAccount(stale, staleOld)

			deltas := []types.AccountDelta{
				{Pubkey: payer, OldAccount: payerOld, NewAccount: testAccount(400, nil, types.SystemProgramID)},
				{
					Pubkey:     buffer,
					OldAccount: testAccount(0, nil, types.SystemProgramID),
					NewAccount: testAccount(600, make([]byte, 64), types.MessageBufferProgramID),
				},
				{Pubkey: stale, OldAccount: staleOld, NewAccount: nil},
			}
			if err := db.CommitAccounts(deltas); err != nil {
				t.Fatalf("CommitAccounts failed: %v", err)
			}

			got, _ := db.GetAccount(payer)
			if got.Lamports != 400 {
				t.Errorf("payer lamports = %d, want 400", got.Lamports)
			}
			got, _ = db.GetAccount(buffer)
			if got == nil || len(got.Data) != 64 || got.Owner != types.MessageBufferProgramID {
				t.Errorf("buffer not created correctly: %+v", got)
			}
			if db.HasAccount(stale) {
				t.Error("deleted account still present")
			}
			if db.GetAccountsCount() != 2 {
				t.Errorf("expected 2 accounts, got %d", db.GetAccountsCount())
			}
		})
	}
}

func TestCommitAccounts_StaleRejectsWholeBatch(t *testing.T) {
	for name, db := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			a := testPubkey("a")
			b := testPubkey("b")
			_ = db.SetAccount(a, testAccount(100, nil, types.SystemProgramID))
			_ = db.SetAccount(b, testAccount(200, nil, types.SystemProgramID))

			deltas := []types.AccountDelta{
				{Pubkey: a, OldAccount: testAccount(100, nil, types.SystemProgramID), NewAccount: testAccount(50, nil, types.SystemProgramID)},
				// b was loaded at 999 lamports, which no longer matches.
				{Pubkey: b, OldAccount: testAccount(999, nil, types.SystemProgramID), NewAccount: testAccount(1049, nil, types.SystemProgramID)},
			}
			err := db.CommitAccounts(deltas)
			if !errors.Is(err, ErrStaleAccount) {
				t.Fatalf("expected ErrStaleAccount, got %v", err)
			}

			got, _ := db.GetAccount(a)
			if got.Lamports != 100 {
				t.Errorf("account a modified by failed commit: %d lamports", got.Lamports)
			}
		})
	}
}

func TestBadgerDB_Reopen(t *testing.T) {
	dir := t.TempDir()
	db, err := NewBadgerDB(dir)
	if err != nil {
		t.Fatalf("NewBadgerDB failed: %v", err)
	}
	pubkey := testPubkey("persisted")
	if err := db.SetAccount(pubkey, testAccount(42, []byte("hdr"), types.MessageBufferProgramID)); err != nil {
		t.Fatalf("SetAccount failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	db, err = NewBadgerDB(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()

	if db.GetAccountsCount() != 1 {
		t.Errorf("expected 1 account after reopen, got %d", db.GetAccountsCount())
	}
	got, err := db.GetAccount(pubkey)
	if err != nil || got == nil {
		t.Fatalf("GetAccount after reopen: %v, %v", got, err)
	}
	if got.Lamports != 42 || string(got.Data) != "hdr" {
		t.Errorf("unexpected account after reopen: %+v", got)
	}
}

func TestSerializeAccount_CompressesLargeData(t *testing.T) {
	data := make([]byte, 64*1024)
	copy(data, []byte("message buffer header"))
	account := testAccount(123456, data, types.MessageBufferProgramID)
	account.RentEpoch = 7

	encoded, err := SerializeAccount(account)
	if err != nil {
		t.Fatalf("SerializeAccount failed: %v", err)
	}
	if len(encoded) >= len(data) {
		t.Errorf("expected compressed encoding, got %d bytes for %d bytes of data", len(encoded), len(data))
	}

	decoded, err := DeserializeAccount(encoded)
	if err != nil {
		t.Fatalf("DeserializeAccount failed: %v", err)
	}
	if !decoded.Equal(account) {
		t.Error("decoded account differs from original")
	}
}

func TestDeserializeAccount_Truncated(t *testing.T) {
	encoded, _ := SerializeAccount(testAccount(1, []byte("abc"), types.SystemProgramID))
	if _, err := DeserializeAccount(encoded[:len(encoded)-10]); !errors.Is(err, ErrInvalidAccountData) {
		t.Errorf("expected ErrInvalidAccountData, got %v", err)
	}
}

func TestCommitAccounts_Count(t *testing.T) {
	a := testPubkey("a")
	b := testPubkey("b")

	tests := []struct {
		name   string
		deltas []types.AccountDelta
		want   uint64
	}{
		{"overwrite", []types.AccountDelta{{Pubkey: a, NewAccount: testAccount(7, nil, types.SystemProgramID)}}, 1},
		{"create", []types.AccountDelta{{Pubkey: b, NewAccount: testAccount(7, nil, types.SystemProgramID)}}, 2},
		{"delete", []types.AccountDelta{{Pubkey: a, NewAccount: nil}}, 0},
		{"delete absent", []types.AccountDelta{{Pubkey: b, OldAccount: testAccount(0, nil, types.SystemProgramID)}}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for name, db := range openStores(t) {
				if err := db.SetAccount(a, testAccount(1, nil, types.SystemProgramID)); err != nil {
					t.Fatalf("%s: SetAccount: %v", name, err)
				}
				if err := db.CommitAccounts(tt.deltas); err != nil {
					t.Fatalf("%s: CommitAccounts: %v", name, err)
				}
				if got := db.GetAccountsCount(); got != tt.want {
					t.Errorf("%s: count = %d, want %d", name, got, tt.want)
				}
			}
		})
	}
}

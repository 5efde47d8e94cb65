package types

import (
	"errors"
	"testing"
)

func key(b byte) Pubkey {
	var pk Pubkey
	pk[0] = b
	return pk
}

func TestNewTransactionOrdering(t *testing.T) {
	payer, signer, writable, readonly, program := key(1), key(2), key(3), key(4), key(5)

	tx, err := NewTransaction(payer, SHA256([]byte("blockhash")), Instruction{
		ProgramID: program,
		Accounts: []AccountMeta{
			NewAccountMeta(readonly, false, false),
			NewAccountMeta(writable, false, true),
			NewAccountMeta(signer, true, false),
			NewAccountMeta(payer, true, true),
			NewAccountMeta(readonly, false, true),
		},
		Data: []byte{9},
	})
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}

	msg := &tx.Message
	want := []Pubkey{payer, signer, readonly, writable, program}
	if len(msg.AccountKeys) != len(want) {
		t.Fatalf("expected %d keys, got %d", len(want), len(msg.AccountKeys))
	}
	for i, pk := range want {
		if msg.AccountKeys[i] != pk {
			t.Errorf("key %d = %x, want %x", i, msg.AccountKeys[i][0], pk[0])
		}
	}

	h := msg.Header
	if h.NumRequiredSignatures != 2 || h.NumReadonlySignedAccounts != 1 || h.NumReadonlyUnsignedAccounts != 1 {
		t.Errorf("unexpected header %+v", h)
	}
	if len(tx.Signatures) != 2 || tx.FeePayer() != payer {
		t.Errorf("unexpected signatures %d / payer %s", len(tx.Signatures), tx.FeePayer())
	}

	flags := []struct{ signer, writable bool }{
		{true, true}, {true, false}, {false, true}, {false, true}, {false, false},
	}
	for i, f := range flags {
		if msg.IsSigner(i) != f.signer || msg.IsWritable(i) != f.writable {
			t.Errorf("key %d: signer %v writable %v, want %v %v",
				i, msg.IsSigner(i), msg.IsWritable(i), f.signer, f.writable)
		}
	}

	ix := msg.Instructions[0]
	if ix.ProgramIDIndex != 4 {
		t.Errorf("program index = %d, want 4", ix.ProgramIDIndex)
	}
	wantIdx := []uint8{2, 3, 1, 0, 2}
	for i, idx := range wantIdx {
		if ix.AccountIndices[i] != idx {
			t.Errorf("account index %d = %d, want %d", i, ix.AccountIndices[i], idx)
		}
	}
}

func TestNewTransactionNoPayer(t *testing.T) {
	if _, err := NewTransaction(ZeroPubkey, ZeroHash); !errors.Is(err, ErrNoFeePayer) {
		t.Errorf("expected ErrNoFeePayer, got %v", err)
	}
}

func TestMessageSerialize(t *testing.T) {
	tx, err := NewTransaction(key(1), ZeroHash, Instruction{ProgramID: key(2), Data: make([]byte, 200)})
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	b, err := tx.Message.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	// header(3) + len(1) + 2 keys + blockhash + len(1) + program index(1)
	// + accounts len(1) + data len(2, compact) + data
	want := 3 + 1 + 64 + 32 + 1 + 1 + 1 + 2 + 200
	if len(b) != want {
		t.Errorf("serialized length = %d, want %d", len(b), want)
	}
	if b[0] != 1 || b[3] != 2 {
		t.Errorf("unexpected header bytes %v", b[:4])
	}
}

func TestPubkeyBase58(t *testing.T) {
	pk, err := PubkeyFromBase58(MessageBufferProgramID.String())
	if err != nil || pk != MessageBufferProgramID {
		t.Fatalf("round trip failed: %v", err)
	}
	if _, err := PubkeyFromBase58("0OIl"); err == nil {
		t.Error("expected error for invalid base58")
	}
	if !SystemProgramID.IsSystemProgram() || SystemProgramID.String() != "11111111111111111111111111111111" {
		t.Error("unexpected system program id")
	}
}

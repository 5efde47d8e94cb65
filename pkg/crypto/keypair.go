package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os"

	"github.com/segmentio/encoding/json"

	"github.com/naviprotocol/pyth-crosschain/pkg/types"
)

// Keypair is an Ed25519 signing key.
type Keypair struct {
	private ed25519.PrivateKey
}

// GenerateKeypair creates a random keypair.
func GenerateKeypair() (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("crypto: generating key: %w", err)
	}
	return &Keypair{private: priv}, nil
}

// KeypairFromPrivateKey wraps a 64-byte private key, checking that its
// public half matches its seed.
func KeypairFromPrivateKey(b []byte) (*Keypair, error) {
	if len(b) != PrivateKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPrivateKey, PrivateKeySize, len(b))
	}
	priv := ed25519.NewKeyFromSeed(b[:ed25519.SeedSize])
	if !priv.Public().(ed25519.PublicKey).Equal(ed25519.PublicKey(b[ed25519.SeedSize:])) {
		return nil, fmt.Errorf("%w: public key does not match seed", ErrInvalidPrivateKey)
	}
	return &Keypair{private: priv}, nil
}

// Pubkey returns the keypair's public key.
func (k *Keypair) Pubkey() types.Pubkey {
	var pk types.Pubkey
	copy(pk[:], k.private[ed25519.SeedSize:])
	return pk
}

// Sign signs message.
func (k *Keypair) Sign(message []byte) types.Signature {
	var sig types.Signature
	copy(sig[:], ed25519.Sign(k.private, message))
	return sig
}

// SignTransaction fills every required signature of tx from keypairs.
func SignTransaction(tx *types.Transaction, keypairs ...*Keypair) error {
	if tx == nil {
		return ErrMissingMessage
	}
	message, err := tx.Message.Serialize()
	if err != nil {
		return fmt.Errorf("crypto: serializing message: %w", err)
	}
	byKey := make(map[types.Pubkey]*Keypair, len(keypairs))
	for _, kp := range keypairs {
		byKey[kp.Pubkey()] = kp
	}
	signers := tx.Message.Signers()
	tx.Signatures = make([]types.Signature, len(signers))
	for i, signer := range signers {
		kp, ok := byKey[signer]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingSigner, signer.String())
		}
		tx.Signatures[i] = kp.Sign(message)
	}
	return nil
}

// LoadKeypair reads a JSON byte-array keypair file.
func LoadKeypair(path string) (*Keypair, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("crypto: reading keypair: %w", err)
	}
	var ints []int
	if err := json.Unmarshal(raw, &ints); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPrivateKey, path, err)
	}
	b := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("%w: %s: byte %d out of range", ErrInvalidPrivateKey, path, i)
		}
		b[i] = byte(v)
	}
	return KeypairFromPrivateKey(b)
}

// SaveKeypair writes the keypair as a JSON byte array readable only by the
// owner.
func SaveKeypair(path string, k *Keypair) error {
	ints := make([]int, len(k.private))
	for i, v := range k.private {
		ints[i] = int(v)
	}
	raw, err := json.Marshal(ints)
	if err != nil {
		return fmt.Errorf("crypto: encoding keypair: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("crypto: writing keypair: %w", err)
	}
	return nil
}

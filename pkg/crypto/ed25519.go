package crypto

import (
	"crypto/ed25519"
	"fmt"

	"github.com/naviprotocol/pyth-crosschain/pkg/types"
)

// VerifySignature verifies a single Ed25519 signature. It returns false if
// the public key or signature have invalid lengths.
func VerifySignature(pubkey, message, signature []byte) bool {
	if len(pubkey) != PublicKeySize {
		return false
	}
	if len(signature) != SignatureSize {
		return false
	}
	return ed25519.Verify(pubkey, message, signature)
}

// VerifyTransaction verifies every signature of tx against the serialized
// message and the corresponding signer key.
func VerifyTransaction(tx *types.Transaction) error {
	if tx == nil {
		return ErrMissingMessage
	}

	numSignatures := len(tx.Signatures)
	if numSignatures == 0 {
		return ErrNoSignatures
	}

	numRequired := int(tx.Message.Header.NumRequiredSignatures)
	if numSignatures != numRequired {
		return fmt.Errorf("%w: expected %d signatures, got %d",
			ErrSignatureCountMismatch, numRequired, numSignatures)
	}

	messageBytes, err := tx.Message.Serialize()
	if err != nil {
		return fmt.Errorf("crypto: serializing message: %w", err)
	}

	accountKeys := tx.Message.AccountKeys
	if len(accountKeys) < numSignatures {
		return fmt.Errorf("%w: not enough account keys for signatures", ErrInvalidSignerIndex)
	}

	for i := 0; i < numSignatures; i++ {
		pubkey := accountKeys[i]
		signature := tx.Signatures[i]
		if !ed25519.Verify(pubkey[:], messageBytes, signature[:]) {
			return &TransactionVerificationError{
				SignatureIndex: i,
				SignerPubkey:   pubkey.String(),
				Err:            ErrVerificationFailed,
			}
		}
	}

	return nil
}

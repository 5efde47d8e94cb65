package types

import (
	"errors"
	"fmt"
)

// ErrNoFeePayer is returned when a transaction is compiled without a payer.
var ErrNoFeePayer = errors.New("transaction has no fee payer")

// Transaction represents a complete transaction with signatures.
type Transaction struct {
	Signatures []Signature
	Message    Message
}

// Message represents a transaction message (the part that gets signed).
type Message struct {
	Header          MessageHeader
	AccountKeys     []Pubkey
	RecentBlockhash Hash
	Instructions    []CompiledInstruction
}

// MessageHeader contains counts for account types.
type MessageHeader struct {
	NumRequiredSignatures       uint8
	NumReadonlySignedAccounts   uint8
	NumReadonlyUnsignedAccounts uint8
}

// CompiledInstruction is an instruction with account indices.
type CompiledInstruction struct {
	ProgramIDIndex uint8
	AccountIndices []uint8
	Data           []byte
}

// Instruction is an expanded instruction with full account info.
type Instruction struct {
	ProgramID Pubkey
	Accounts  []AccountMeta
	Data      []byte
}

// NewTransaction compiles instructions into an unsigned transaction. The
// payer is always the first account key; the remaining keys are ordered
// signer-writable, signer-readonly, writable, readonly.
func NewTransaction(payer Pubkey, recentBlockhash Hash, instructions ...Instruction) (*Transaction, error) {
	if payer.IsZero() {
		return nil, ErrNoFeePayer
	}

	type keyFlags struct {
		signer   bool
		writable bool
	}
	flags := map[Pubkey]*keyFlags{payer: {signer: true, writable: true}}
	order := []Pubkey{payer}
	touch := func(pk Pubkey, signer, writable bool) {
		f, ok := flags[pk]
		if !ok {
			f = &keyFlags{}
			flags[pk] = f
			order = append(order, pk)
		}
		f.signer = f.signer || signer
		f.writable = f.writable || writable
	}
	for _, ix := range instructions {
		for _, meta := range ix.Accounts {
			touch(meta.Pubkey, meta.IsSigner, meta.IsWritable)
		}
		touch(ix.ProgramID, false, false)
	}

	var sw, sr, uw, ur []Pubkey
	for _, pk := range order {
		f := flags[pk]
		switch {
		case f.signer && f.writable:
			sw = append(sw, pk)
		case f.signer:
			sr = append(sr, pk)
		case f.writable:
			uw = append(uw, pk)
		default:
			ur = append(ur, pk)
		}
	}
	keys := make([]Pubkey, 0, len(order))
	keys = append(keys, sw...)
	keys = append(keys, sr...)
	keys = append(keys, uw...)
	keys = append(keys, ur...)
	if len(keys) > 256 {
		return nil, fmt.Errorf("too many account keys: %d", len(keys))
	}

	index := make(map[Pubkey]uint8, len(keys))
	for i, pk := range keys {
		index[pk] = uint8(i)
	}

	compiled := make([]CompiledInstruction, len(instructions))
	for i, ix := range instructions {
		indices := make([]uint8, len(ix.Accounts))
		for j, meta := range ix.Accounts {
			indices[j] = index[meta.Pubkey]
		}
		compiled[i] = CompiledInstruction{
			ProgramIDIndex: index[ix.ProgramID],
			AccountIndices: indices,
			Data:           ix.Data,
		}
	}

	numSigners := len(sw) + len(sr)
	return &Transaction{
		Signatures: make([]Signature, numSigners),
		Message: Message{
			Header: MessageHeader{
				NumRequiredSignatures:       uint8(numSigners),
				NumReadonlySignedAccounts:   uint8(len(sr)),
				NumReadonlyUnsignedAccounts: uint8(len(ur)),
			},
			AccountKeys:     keys,
			RecentBlockhash: recentBlockhash,
			Instructions:    compiled,
		},
	}, nil
}

// IsSigner reports whether the account key at index i must sign.
func (m *Message) IsSigner(i int) bool {
	return i < int(m.Header.NumRequiredSignatures)
}

// IsWritable reports whether the account key at index i is writable.
func (m *Message) IsWritable(i int) bool {
	numSigners := int(m.Header.NumRequiredSignatures)
	if i < numSigners {
		return i < numSigners-int(m.Header.NumReadonlySignedAccounts)
	}
	numUnsignedWritable := len(m.AccountKeys) - numSigners - int(m.Header.NumReadonlyUnsignedAccounts)
	return i-numSigners < numUnsignedWritable
}

// Signers returns the account keys that must sign the message.
func (m *Message) Signers() []Pubkey {
	numSigners := int(m.Header.NumRequiredSignatures)
	if numSigners > len(m.AccountKeys) {
		numSigners = len(m.AccountKeys)
	}
	return m.AccountKeys[:numSigners]
}

// Serialize serializes the message for signing.
func (m *Message) Serialize() ([]byte, error) {
	buf := make([]byte, 0, 256)

	buf = append(buf, m.Header.NumRequiredSignatures)
	buf = append(buf, m.Header.NumReadonlySignedAccounts)
	buf = append(buf, m.Header.NumReadonlyUnsignedAccounts)

	buf = appendCompactU16(buf, len(m.AccountKeys))
	for _, key := range m.AccountKeys {
		buf = append(buf, key[:]...)
	}

	buf = append(buf, m.RecentBlockhash[:]...)

	buf = appendCompactU16(buf, len(m.Instructions))
	for _, ix := range m.Instructions {
		buf = append(buf, ix.ProgramIDIndex)

		buf = appendCompactU16(buf, len(ix.AccountIndices))
		buf = append(buf, ix.AccountIndices...)

		buf = appendCompactU16(buf, len(ix.Data))
		buf = append(buf, ix.Data...)
	}

	return buf, nil
}

// appendCompactU16 appends a compact u16 encoding.
func appendCompactU16(buf []byte, val int) []byte {
	if val < 0x80 {
		return append(buf, byte(val))
	}
	if val < 0x4000 {
		return append(buf, byte(val&0x7f|0x80), byte(val>>7))
	}
	return append(buf, byte(val&0x7f|0x80), byte((val>>7)&0x7f|0x80), byte(val>>14))
}

// FeePayer returns the fee payer (first signer).
func (tx *Transaction) FeePayer() Pubkey {
	if len(tx.Message.AccountKeys) == 0 {
		return ZeroPubkey
	}
	return tx.Message.AccountKeys[0]
}

// ID returns the transaction signature (first signature).
func (tx *Transaction) ID() Signature {
	if len(tx.Signatures) == 0 {
		return ZeroSignature
	}
	return tx.Signatures[0]
}

// TransactionResult represents the result of executing a transaction.
type TransactionResult struct {
	ExecutionID   string
	Success       bool
	Error         error
	Logs          []string
	ComputeUnits  ComputeUnits
	AccountDeltas []AccountDelta
}

// Package sysvar implements the runtime sysvars the message buffer programs
// read. Only the rent sysvar is served.
package sysvar

import (
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"

	"github.com/naviprotocol/pyth-crosschain/pkg/types"
)

// Rent defaults (mainnet values).
const (
	DefaultLamportsPerByteYear = 3480
	DefaultExemptionThreshold  = 2.0
	DefaultBurnPercent         = 50

	// AccountStorageOverhead is the number of bytes every account is charged
	// for on top of its data.
	AccountStorageOverhead = 128

	// RentSize is the serialized size of the rent sysvar.
	RentSize = 8 + 8 + 1
)

// ErrInvalidRentData is returned when the rent sysvar account cannot be decoded.
var ErrInvalidRentData = errors.New("invalid rent sysvar data")

// Rent is the rent sysvar: the parameters deciding the minimum balance an
// account of a given size must hold to be rent exempt.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionThreshold  float64
	BurnPercent         uint8
}

// DefaultRent returns the default rent parameters.
func DefaultRent() Rent {
	return Rent{
		LamportsPerByteYear: DefaultLamportsPerByteYear,
		ExemptionThreshold:  DefaultExemptionThreshold,
		BurnPercent:         DefaultBurnPercent,
	}
}

// MinimumBalance returns the minimum lamports an account with dataLen bytes
// of data must hold to be rent exempt.
func (r Rent) MinimumBalance(dataLen uint64) types.Lamports {
	bytes := AccountStorageOverhead + dataLen
	return types.Lamports(float64(bytes*r.LamportsPerByteYear) * r.ExemptionThreshold)
}

// IsExempt reports whether balance covers the minimum for dataLen bytes.
func (r Rent) IsExempt(balance types.Lamports, dataLen uint64) bool {
	return balance >= r.MinimumBalance(dataLen)
}

// Marshal encodes the rent sysvar in its account layout.
func (r Rent) Marshal() ([]byte, error) {
	return bin.MarshalBorsh(r)
}

// UnmarshalRent decodes the rent sysvar account data.
func UnmarshalRent(data []byte) (Rent, error) {
	var r Rent
	if len(data) < RentSize {
		return r, fmt.Errorf("%w: need %d bytes, got %d", ErrInvalidRentData, RentSize, len(data))
	}
	if err := bin.NewBorshDecoder(data).Decode(&r); err != nil {
		return r, fmt.Errorf("%w: %v", ErrInvalidRentData, err)
	}
	return r, nil
}

// NewRentAccount builds the rent sysvar account holding r.
func NewRentAccount(r Rent) (*types.Account, error) {
	data, err := r.Marshal()
	if err != nil {
		return nil, err
	}
	return types.NewAccountWithData(r.MinimumBalance(uint64(len(data))), data, types.SysvarOwnerID), nil
}

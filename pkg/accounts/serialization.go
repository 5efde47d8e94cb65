package accounts

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/naviprotocol/pyth-crosschain/pkg/types"
)

// Serialization format:
// - lamports:   8 bytes (little-endian uint64)
// - data_len:   4 bytes (little-endian uint32, length of the data as stored)
// - flags:      1 byte  (bit 0: data is zstd-compressed)
// - data:       data_len bytes
// - owner:      32 bytes
// - executable: 1 byte (0 or 1)
// - rent_epoch: 8 bytes (little-endian uint64)
//
// Total fixed size: 8 + 4 + 1 + 32 + 1 + 8 = 54 bytes + variable data

const (
	serializationHeaderSize = 8 + 4 + 1  // lamports + data_len + flags
	serializationFooterSize = 32 + 1 + 8 // owner + executable + rent_epoch
	serializationMinSize    = serializationHeaderSize + serializationFooterSize

	flagCompressed byte = 1 << 0

	// compressThreshold is the data size from which account data is stored
	// zstd-compressed. Grown message buffers are mostly zero padding.
	compressThreshold = 4 * 1024
)

var (
	// ErrInvalidAccountData is returned when account data is malformed.
	ErrInvalidAccountData = errors.New("invalid account data")
)

var (
	codecOnce sync.Once
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	codecErr  error
)

func zstdCodec() (*zstd.Encoder, *zstd.Decoder, error) {
	codecOnce.Do(func() {
		encoder, codecErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if codecErr != nil {
			return
		}
		decoder, codecErr = zstd.NewReader(nil)
	})
	return encoder, decoder, codecErr
}

// SerializeAccount serializes an account to binary format.
func SerializeAccount(account *types.Account) ([]byte, error) {
	if account == nil {
		return nil, errors.New("cannot serialize nil account")
	}

	payload := account.Data
	var flags byte
	if len(payload) >= compressThreshold {
		enc, _, err := zstdCodec()
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		compressed := enc.EncodeAll(payload, nil)
		if len(compressed) < len(payload) {
			payload = compressed
			flags |= flagCompressed
		}
	}

	dataLen := len(payload)
	buf := make([]byte, serializationMinSize+dataLen)
	offset := 0

	binary.LittleEndian.PutUint64(buf[offset:], uint64(account.Lamports))
	offset += 8

	binary.LittleEndian.PutUint32(buf[offset:], uint32(dataLen))
	offset += 4

	buf[offset] = flags
	offset++

	copy(buf[offset:], payload)
	offset += dataLen

	copy(buf[offset:], account.Owner[:])
	offset += 32

	if account.Executable {
		buf[offset] = 1
	}
	offset++

	binary.LittleEndian.PutUint64(buf[offset:], uint64(account.RentEpoch))

	return buf, nil
}

// DeserializeAccount deserializes an account from binary format.
func DeserializeAccount(data []byte) (*types.Account, error) {
	if len(data) < serializationMinSize {
		return nil, fmt.Errorf("%w: data too short, need at least %d bytes, got %d",
			ErrInvalidAccountData, serializationMinSize, len(data))
	}

	offset := 0

	lamports := types.Lamports(binary.LittleEndian.Uint64(data[offset:]))
	offset += 8

	dataLen := binary.LittleEndian.Uint32(data[offset:])
	offset += 4

	flags := data[offset]
	offset++

	expectedSize := serializationMinSize + int(dataLen)
	if len(data) < expectedSize {
		return nil, fmt.Errorf("%w: data length mismatch, expected %d bytes, got %d",
			ErrInvalidAccountData, expectedSize, len(data))
	}

	var accountData []byte
	if dataLen > 0 {
		raw := data[offset : offset+int(dataLen)]
		if flags&flagCompressed != 0 {
			_, dec, err := zstdCodec()
			if err != nil {
				return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
			}
			accountData, err = dec.DecodeAll(raw, nil)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidAccountData, err)
			}
		} else {
			accountData = make([]byte, dataLen)
			copy(accountData, raw)
		}
		offset += int(dataLen)
	}

	var owner types.Pubkey
	copy(owner[:], data[offset:offset+32])
	offset += 32

	executable := data[offset] != 0
	offset++

	rentEpoch := types.Epoch(binary.LittleEndian.Uint64(data[offset:]))

	return &types.Account{
		Lamports:   lamports,
		Data:       accountData,
		Owner:      owner,
		Executable: executable,
		RentEpoch:  rentEpoch,
	}, nil
}

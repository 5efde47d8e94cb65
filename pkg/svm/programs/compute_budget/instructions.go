package compute_budget

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"

	"github.com/naviprotocol/pyth-crosschain/pkg/types"
)

// Compute Budget Program instruction types (first byte of instruction data)
const (
	InstructionRequestHeapFrame               uint8 = 1
	InstructionSetComputeUnitLimit            uint8 = 2
	InstructionSetComputeUnitPrice            uint8 = 3
	InstructionSetLoadedAccountsDataSizeLimit uint8 = 4
)

// Heap frame limits
const (
	MaxHeapFrameSize     uint32 = 256 * 1024
	DefaultHeapFrameSize uint32 = 32 * 1024
	HeapFrameAlignment   uint32 = 1024
)

// DefaultLoadedAccountsDataSizeLimit is the default limit for loaded account data.
const DefaultLoadedAccountsDataSizeLimit uint32 = 64 * 1024 * 1024

// Instruction is a decoded compute budget instruction. Value holds the
// single argument, widened to 64 bits.
type Instruction struct {
	Type  uint8
	Value uint64
}

// DecodeInstruction decodes compute budget instruction data.
func DecodeInstruction(data []byte) (Instruction, error) {
	if len(data) < 1 {
		return Instruction{}, fmt.Errorf("%w: instruction data too short", ErrInvalidInstructionData)
	}
	inst := Instruction{Type: data[0]}
	dec := bin.NewBinDecoder(data[1:])

	var err error
	switch inst.Type {
	case InstructionRequestHeapFrame, InstructionSetComputeUnitLimit, InstructionSetLoadedAccountsDataSizeLimit:
		var v uint32
		v, err = dec.ReadUint32(bin.LE)
		inst.Value = uint64(v)
	case InstructionSetComputeUnitPrice:
		inst.Value, err = dec.ReadUint64(bin.LE)
	default:
		return inst, fmt.Errorf("%w: %d", ErrUnknownInstruction, inst.Type)
	}
	if err != nil {
		return inst, fmt.Errorf("%w: type %d: %v", ErrInvalidInstructionData, inst.Type, err)
	}
	return inst, nil
}

func newInstruction(data []byte) types.Instruction {
	return types.Instruction{ProgramID: ProgramID, Data: data}
}

// encode writes kind followed by v in little endian, four bytes wide for
// uint32 values and eight for uint64.
func encode(kind uint8, v interface{}) []byte {
	buf := bytes.NewBuffer([]byte{kind})
	enc := bin.NewBinEncoder(buf)
	switch v := v.(type) {
	case uint32:
		_ = enc.WriteUint32(v, bin.LE)
	case uint64:
		_ = enc.WriteUint64(v, bin.LE)
	}
	return buf.Bytes()
}

// NewRequestHeapFrameInstruction requests a heap of size bytes.
func NewRequestHeapFrameInstruction(size uint32) types.Instruction {
	return newInstruction(encode(InstructionRequestHeapFrame, size))
}

// NewSetComputeUnitLimitInstruction sets the transaction's compute budget.
func NewSetComputeUnitLimitInstruction(limit uint32) types.Instruction {
	return newInstruction(encode(InstructionSetComputeUnitLimit, limit))
}

// NewSetComputeUnitPriceInstruction sets the priority fee in micro-lamports
// per compute unit.
func NewSetComputeUnitPriceInstruction(microLamports uint64) types.Instruction {
	return newInstruction(encode(InstructionSetComputeUnitPrice, microLamports))
}

// NewSetLoadedAccountsDataSizeLimitInstruction caps the bytes of account
// data the transaction may load.
func NewSetLoadedAccountsDataSizeLimitInstruction(limit uint32) types.Instruction {
	return newInstruction(encode(InstructionSetLoadedAccountsDataSizeLimit, limit))
}

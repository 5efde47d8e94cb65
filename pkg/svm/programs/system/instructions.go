package system

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"

	"github.com/naviprotocol/pyth-crosschain/pkg/svm/syscall"
	"github.com/naviprotocol/pyth-crosschain/pkg/types"
)

// System Program instruction discriminators (first 4 bytes of instruction data)
const (
	InstructionCreateAccount uint32 = 0
	InstructionAssign        uint32 = 1
	InstructionTransfer      uint32 = 2
	InstructionAllocate      uint32 = 8
)

// CreateAccountInstruction creates a new account with the specified lamports,
// space, and owner.
type CreateAccountInstruction struct {
	Lamports uint64
	Space    uint64
	Owner    types.Pubkey
}

// AssignInstruction changes the owner of an account.
type AssignInstruction struct {
	Owner types.Pubkey
}

// TransferInstruction transfers lamports between accounts.
type TransferInstruction struct {
	Lamports uint64
}

// AllocateInstruction allocates zeroed data for an account.
type AllocateInstruction struct {
	Space uint64
}

func checkWithinDeserializationLimit(decoder *bin.Decoder) error {
	if decoder.Position() > syscall.MaxInstructionData {
		return ErrInvalidInstructionData
	}
	return nil
}

func readPubkey(decoder *bin.Decoder, pk *types.Pubkey) error {
	b, err := decoder.ReadBytes(len(pk))
	if err != nil {
		return err
	}
	copy(pk[:], b)
	return nil
}

func (inst *CreateAccountInstruction) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	if inst.Lamports, err = decoder.ReadUint64(bin.LE); err != nil {
		return err
	}
	if inst.Space, err = decoder.ReadUint64(bin.LE); err != nil {
		return err
	}
	if err = readPubkey(decoder, &inst.Owner); err != nil {
		return err
	}
	return checkWithinDeserializationLimit(decoder)
}

func (inst *CreateAccountInstruction) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.WriteUint32(InstructionCreateAccount, bin.LE); err != nil {
		return err
	}
	if err := encoder.WriteUint64(inst.Lamports, bin.LE); err != nil {
		return err
	}
	if err := encoder.WriteUint64(inst.Space, bin.LE); err != nil {
		return err
	}
	return encoder.WriteBytes(inst.Owner[:], false)
}

func (inst *AssignInstruction) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	if err := readPubkey(decoder, &inst.Owner); err != nil {
		return err
	}
	return checkWithinDeserializationLimit(decoder)
}

func (inst *AssignInstruction) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.WriteUint32(InstructionAssign, bin.LE); err != nil {
		return err
	}
	return encoder.WriteBytes(inst.Owner[:], false)
}

func (inst *TransferInstruction) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	if inst.Lamports, err = decoder.ReadUint64(bin.LE); err != nil {
		return err
	}
	return checkWithinDeserializationLimit(decoder)
}

func (inst *TransferInstruction) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.WriteUint32(InstructionTransfer, bin.LE); err != nil {
		return err
	}
	return encoder.WriteUint64(inst.Lamports, bin.LE)
}

func (inst *AllocateInstruction) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	if inst.Space, err = decoder.ReadUint64(bin.LE); err != nil {
		return err
	}
	return checkWithinDeserializationLimit(decoder)
}

func (inst *AllocateInstruction) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.WriteUint32(InstructionAllocate, bin.LE); err != nil {
		return err
	}
	return encoder.WriteUint64(inst.Space, bin.LE)
}

type encoderMarshaler interface {
	MarshalWithEncoder(encoder *bin.Encoder) error
}

func encode(m encoderMarshaler) []byte {
	buf := new(bytes.Buffer)
	if err := m.MarshalWithEncoder(bin.NewBinEncoder(buf)); err != nil {
		panic(fmt.Sprintf("system: encoding into memory buffer: %v", err))
	}
	return buf.Bytes()
}

// NewCreateAccountInstruction builds a CreateAccount instruction.
func NewCreateAccountInstruction(from, to types.Pubkey, lamports, space uint64, owner types.Pubkey) types.Instruction {
	return types.Instruction{
		ProgramID: types.SystemProgramID,
		Accounts: []types.AccountMeta{
			types.NewAccountMeta(from, true, true),
			types.NewAccountMeta(to, true, true),
		},
		Data: encode(&CreateAccountInstruction{Lamports: lamports, Space: space, Owner: owner}),
	}
}

// NewTransferInstruction builds a Transfer instruction.
func NewTransferInstruction(from, to types.Pubkey, lamports uint64) types.Instruction {
	return types.Instruction{
		ProgramID: types.SystemProgramID,
		Accounts: []types.AccountMeta{
			types.NewAccountMeta(from, true, true),
			types.NewAccountMeta(to, false, true),
		},
		Data: encode(&TransferInstruction{Lamports: lamports}),
	}
}

// NewAssignInstruction builds an Assign instruction.
func NewAssignInstruction(pubkey, owner types.Pubkey) types.Instruction {
	return types.Instruction{
		ProgramID: types.SystemProgramID,
		Accounts:  []types.AccountMeta{types.NewAccountMeta(pubkey, true, true)},
		Data:      encode(&AssignInstruction{Owner: owner}),
	}
}

// NewAllocateInstruction builds an Allocate instruction.
func NewAllocateInstruction(pubkey types.Pubkey, space uint64) types.Instruction {
	return types.Instruction{
		ProgramID: types.SystemProgramID,
		Accounts:  []types.AccountMeta{types.NewAccountMeta(pubkey, true, true)},
		Data:      encode(&AllocateInstruction{Space: space}),
	}
}

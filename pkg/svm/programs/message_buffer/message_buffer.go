// Package message_buffer implements the message buffer program: a whitelist
// of program authorities, each of which may own message buffer accounts
// derived from [authority, "message", base account]. The whitelist admin
// creates, resizes and deletes those buffers and funds their rent.
package message_buffer

import (
	"errors"
	"fmt"

	"github.com/naviprotocol/pyth-crosschain/pkg/svm/syscall"
	"github.com/naviprotocol/pyth-crosschain/pkg/types"
)

// MessageBufferProgram implements the message buffer program.
type MessageBufferProgram struct {
	ProgramID types.Pubkey
}

// New creates a message buffer program deployed at programID.
func New(programID types.Pubkey) *MessageBufferProgram {
	return &MessageBufferProgram{ProgramID: programID}
}

// GetProgramID returns the program's public key.
func (p *MessageBufferProgram) GetProgramID() types.Pubkey {
	return p.ProgramID
}

type instructionHandler struct {
	label  string
	handle func(ctx *syscall.ExecutionContext, args []byte) error
}

var instructionHandlers = map[[DiscriminatorLen]byte]instructionHandler{
	InstructionDiscriminator(InstructionInitialize):           {"Initialize", handleInitialize},
	InstructionDiscriminator(InstructionSetAllowedPrograms):   {"SetAllowedPrograms", handleSetAllowedPrograms},
	InstructionDiscriminator(InstructionUpdateWhitelistAdmin): {"UpdateWhitelistAdmin", handleUpdateWhitelistAdmin},
	InstructionDiscriminator(InstructionCreateBuffer):         {"CreateBuffer", handleCreateBuffer},
	InstructionDiscriminator(InstructionResizeBuffer):         {"ResizeBuffer", handleResizeBuffer},
	InstructionDiscriminator(InstructionDeleteBuffer):         {"DeleteBuffer", handleDeleteBuffer},
}

// Execute dispatches on the 8-byte instruction discriminator. Returned
// errors carry the program error code.
func (p *MessageBufferProgram) Execute(ctx *syscall.ExecutionContext, instruction []byte) error {
	if len(instruction) < DiscriminatorLen {
		return toProgramError(fmt.Errorf("%w: %d bytes of instruction data", ErrInstructionFallbackNotFound, len(instruction)))
	}
	var disc [DiscriminatorLen]byte
	copy(disc[:], instruction)
	h, ok := instructionHandlers[disc]
	if !ok {
		return toProgramError(fmt.Errorf("%w: discriminator %x", ErrInstructionFallbackNotFound, disc))
	}

	ctx.Logf("Instruction: %s", h.label)
	err := toProgramError(h.handle(ctx, instruction[DiscriminatorLen:]))
	var pe *ProgramError
	if errors.As(err, &pe) {
		ctx.Logf("Error Code: %s. Error Number: %d. Error Message: %v.", pe.Name, pe.Code, pe.Err)
	}
	return err
}

func accountAt(ctx *syscall.ExecutionContext, index int, role string) (*syscall.AccountInfo, error) {
	acc, err := ctx.GetAccountByIndex(index)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotEnoughAccountKeys, role)
	}
	return acc, nil
}

// bufferAccounts is the account list shared by create_buffer, resize_buffer
// and delete_buffer:
//
//	[0] whitelist
//	[1] admin (signer, writable)
//	[2] system program
//	[3..] remaining accounts; the first is the message buffer
type bufferAccounts struct {
	whitelist *Whitelist
	admin     *syscall.AccountInfo
}

// loadBufferAccounts validates the fixed accounts before any instruction
// logic runs: the whitelist must be the program's PDA, the admin must be the
// whitelist admin and have signed.
func loadBufferAccounts(ctx *syscall.ExecutionContext) (*bufferAccounts, error) {
	whitelistInfo, err := accountAt(ctx, 0, "whitelist")
	if err != nil {
		return nil, err
	}
	admin, err := accountAt(ctx, 1, "admin")
	if err != nil {
		return nil, err
	}
	systemProgram, err := accountAt(ctx, 2, "system program")
	if err != nil {
		return nil, err
	}

	w, err := loadWhitelist(ctx, whitelistInfo)
	if err != nil {
		return nil, err
	}
	if err := checkAdmin(w, admin); err != nil {
		return nil, err
	}
	if !admin.IsWritable {
		return nil, fmt.Errorf("%w: admin", ErrAccountNotMutable)
	}
	if systemProgram.Pubkey != types.SystemProgramID {
		return nil, fmt.Errorf("%w: %s", ErrInvalidProgramID, systemProgram.Pubkey.String())
	}
	return &bufferAccounts{whitelist: w, admin: admin}, nil
}

// messageBuffer returns the first remaining account.
func messageBuffer(ctx *syscall.ExecutionContext) (*syscall.AccountInfo, error) {
	acc, err := ctx.GetAccountByIndex(3)
	if err != nil {
		return nil, ErrMessageBufferNotProvided
	}
	return acc, nil
}

package message_buffer

import (
	"errors"
	"fmt"
)

// Message buffer program errors
var (
	ErrUnauthorized                    = errors.New("caller is not authorized")
	ErrDuplicateAllowedProgram         = errors.New("allowed program listed more than once")
	ErrTooManyAllowedPrograms          = errors.New("too many allowed programs")
	ErrMessageBufferNotProvided        = errors.New("message buffer account not provided")
	ErrMessageBufferTooSmall           = errors.New("message buffer target size smaller than header")
	ErrMessageBufferTooLarge           = errors.New("message buffer initial size exceeds permitted increase")
	ErrTargetSizeDeltaExceeded         = errors.New("target size delta exceeds permitted data increase")
	ErrInvalidPDA                      = errors.New("invalid program derived address")
	ErrFundsTransferFailed             = errors.New("funds transfer failed")
	ErrReallocFailed                   = errors.New("account realloc failed")
	ErrMessageBufferAlreadyInitialized = errors.New("message buffer already initialized")

	// Account validation errors raised before an instruction body runs.
	ErrInstructionFallbackNotFound  = errors.New("unknown instruction")
	ErrInstructionDidNotDeserialize = errors.New("instruction arguments did not deserialize")
	ErrNotEnoughAccountKeys         = errors.New("not enough account keys")
	ErrAccountNotMutable            = errors.New("account is not mutable")
	ErrConstraintSeeds              = errors.New("account does not match its seeds")
	ErrInvalidProgramID             = errors.New("account is not the expected program")
	ErrAccountOwnedByWrongProgram   = errors.New("account owned by the wrong program")
	ErrAccountDiscriminatorMismatch = errors.New("account discriminator did not match")
	ErrAccountDidNotDeserialize     = errors.New("account data did not deserialize")
)

type errorInfo struct {
	err  error
	code uint32
	name string
}

// errorTable is ordered: the first entry an error wraps decides its code.
// Program errors come first so a program sentinel wrapping a framework one
// keeps its own code.
var errorTable = []errorInfo{
	{ErrUnauthorized, 6000, "Unauthorized"},
	{ErrDuplicateAllowedProgram, 6001, "DuplicateAllowedProgram"},
	{ErrTooManyAllowedPrograms, 6002, "TooManyAllowedPrograms"},
	{ErrMessageBufferNotProvided, 6003, "MessageBufferNotProvided"},
	{ErrMessageBufferTooSmall, 6004, "MessageBufferTooSmall"},
	{ErrMessageBufferTooLarge, 6005, "MessageBufferTooLarge"},
	{ErrTargetSizeDeltaExceeded, 6006, "TargetSizeDeltaExceeded"},
	{ErrInvalidPDA, 6007, "InvalidPDA"},
	{ErrFundsTransferFailed, 6008, "FundsTransferFailed"},
	{ErrReallocFailed, 6009, "ReallocFailed"},
	{ErrMessageBufferAlreadyInitialized, 6010, "MessageBufferAlreadyInitialized"},
	{ErrInstructionFallbackNotFound, 101, "InstructionFallbackNotFound"},
	{ErrInstructionDidNotDeserialize, 102, "InstructionDidNotDeserialize"},
	{ErrAccountNotMutable, 2000, "ConstraintMut"},
	{ErrConstraintSeeds, 2006, "ConstraintSeeds"},
	{ErrAccountDiscriminatorMismatch, 3002, "AccountDiscriminatorMismatch"},
	{ErrAccountDidNotDeserialize, 3003, "AccountDidNotDeserialize"},
	{ErrNotEnoughAccountKeys, 3005, "AccountNotEnoughKeys"},
	{ErrAccountOwnedByWrongProgram, 3007, "AccountOwnedByWrongProgram"},
	{ErrInvalidProgramID, 3008, "InvalidProgramId"},
}

// ProgramError is the error returned by the program's entry point. Code is
// the number reported as "custom program error".
type ProgramError struct {
	Code uint32
	Name string
	Err  error
}

func (e *ProgramError) Error() string {
	return fmt.Sprintf("custom program error: 0x%x (%s: %v)", e.Code, e.Name, e.Err)
}

func (e *ProgramError) Unwrap() error {
	return e.Err
}

// toProgramError attaches the program error code to err. Errors that do not
// wrap one of the program's sentinels pass through unchanged.
func toProgramError(err error) error {
	if err == nil {
		return nil
	}
	var pe *ProgramError
	if errors.As(err, &pe) {
		return err
	}
	for _, info := range errorTable {
		if errors.Is(err, info.err) {
			return &ProgramError{Code: info.code, Name: info.name, Err: err}
		}
	}
	return err
}

// ErrorCode returns the program error code carried by err, if any.
func ErrorCode(err error) (uint32, bool) {
	var pe *ProgramError
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	return 0, false
}

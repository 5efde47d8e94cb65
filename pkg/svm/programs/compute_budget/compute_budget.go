// Package compute_budget implements the Compute Budget Program.
//
// Its instructions are read before execution to size the transaction's
// compute budget. When executed they only validate their data and change no
// state.
package compute_budget

import (
	"fmt"

	"github.com/naviprotocol/pyth-crosschain/pkg/svm/syscall"
	"github.com/naviprotocol/pyth-crosschain/pkg/types"
)

// ProgramID is the program ID for the Compute Budget Program.
var ProgramID = types.MustPubkeyFromBase58("ComputeBudget111111111111111111111111111111")

// ExecuteCost is the compute cost of a compute budget instruction.
const ExecuteCost = 150

// ComputeBudgetProgram implements the Compute Budget Program.
type ComputeBudgetProgram struct{}

// New creates a new ComputeBudgetProgram instance.
func New() *ComputeBudgetProgram {
	return &ComputeBudgetProgram{}
}

// Execute validates a compute budget instruction.
func (p *ComputeBudgetProgram) Execute(ctx *syscall.ExecutionContext, instruction []byte) error {
	if err := ctx.ConsumeComputeUnits(ExecuteCost); err != nil {
		return err
	}
	inst, err := DecodeInstruction(instruction)
	if err != nil {
		return err
	}
	return validate(inst)
}

func validate(inst Instruction) error {
	if inst.Type != InstructionRequestHeapFrame {
		return nil
	}
	if uint32(inst.Value)%HeapFrameAlignment != 0 {
		return fmt.Errorf("%w: got %d bytes", ErrInvalidHeapFrameSize, inst.Value)
	}
	if uint32(inst.Value) > MaxHeapFrameSize {
		return fmt.Errorf("%w: got %d bytes (max %d)", ErrHeapFrameSizeTooLarge, inst.Value, MaxHeapFrameSize)
	}
	return nil
}

// Budget holds the compute budget parameters requested by a transaction.
type Budget struct {
	// ComputeUnitLimit is zero when the transaction did not set one.
	ComputeUnitLimit            types.ComputeUnits
	ComputeUnitPrice            uint64
	HeapFrameSize               uint32
	LoadedAccountsDataSizeLimit uint32
}

// DefaultBudget returns the budget of a transaction without compute budget
// instructions.
func DefaultBudget() Budget {
	return Budget{
		HeapFrameSize:               DefaultHeapFrameSize,
		LoadedAccountsDataSizeLimit: DefaultLoadedAccountsDataSizeLimit,
	}
}

// ParseBudget collects the compute budget instructions of ixs. Each
// instruction type may appear at most once. The compute unit limit is
// clamped to the per-transaction maximum.
func ParseBudget(ixs []types.Instruction) (Budget, error) {
	budget := DefaultBudget()
	seen := make(map[uint8]bool)
	for _, ix := range ixs {
		if ix.ProgramID != ProgramID {
			continue
		}
		inst, err := DecodeInstruction(ix.Data)
		if err != nil {
			return budget, err
		}
		if seen[inst.Type] {
			return budget, fmt.Errorf("%w: type %d", ErrDuplicateInstruction, inst.Type)
		}
		seen[inst.Type] = true
		if err := validate(inst); err != nil {
			return budget, err
		}

		switch inst.Type {
		case InstructionRequestHeapFrame:
			budget.HeapFrameSize = uint32(inst.Value)
		case InstructionSetComputeUnitLimit:
			budget.ComputeUnitLimit = types.ComputeUnits(inst.Value)
			if budget.ComputeUnitLimit > types.MaxComputeUnitsPerTransaction {
				budget.ComputeUnitLimit = types.MaxComputeUnitsPerTransaction
			}
		case InstructionSetComputeUnitPrice:
			budget.ComputeUnitPrice = inst.Value
		case InstructionSetLoadedAccountsDataSizeLimit:
			budget.LoadedAccountsDataSizeLimit = uint32(inst.Value)
		}
	}
	return budget, nil
}

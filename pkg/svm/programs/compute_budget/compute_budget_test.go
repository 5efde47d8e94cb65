package compute_budget

import (
	"errors"
	"testing"

	"github.com/naviprotocol/pyth-crosschain/pkg/svm/syscall"
	"github.com/naviprotocol/pyth-crosschain/pkg/types"
)

func TestDecodeInstruction(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    Instruction
		wantErr error
	}{
		{"limit", NewSetComputeUnitLimitInstruction(300_000).Data, Instruction{InstructionSetComputeUnitLimit, 300_000}, nil},
		{"price", NewSetComputeUnitPriceInstruction(1 << 40).Data, Instruction{InstructionSetComputeUnitPrice, 1 << 40}, nil},
		{"heap", NewRequestHeapFrameInstruction(64 * 1024).Data, Instruction{InstructionRequestHeapFrame, 64 * 1024}, nil},
		{"data size", NewSetLoadedAccountsDataSizeLimitInstruction(4096).Data, Instruction{InstructionSetLoadedAccountsDataSizeLimit, 4096}, nil},
		{"empty", nil, Instruction{}, ErrInvalidInstructionData},
		{"short", []byte{InstructionSetComputeUnitLimit, 1, 2}, Instruction{}, ErrInvalidInstructionData},
		{"unknown", []byte{9, 0, 0, 0, 0}, Instruction{}, ErrUnknownInstruction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeInstruction(tt.data)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeInstruction: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}

	if n := len(NewSetComputeUnitLimitInstruction(1).Data); n != 5 {
		t.Errorf("limit instruction is %d bytes, want 5", n)
	}
	if n := len(NewSetComputeUnitPriceInstruction(1).Data); n != 9 {
		t.Errorf("price instruction is %d bytes, want 9", n)
	}
}

func TestParseBudget(t *testing.T) {
	other := types.Instruction{ProgramID: types.SystemProgramID, Data: []byte{2, 0, 0, 0, 0}}

	budget, err := ParseBudget([]types.Instruction{other})
	if err != nil {
		t.Fatalf("ParseBudget: %v", err)
	}
	if budget != DefaultBudget() {
		t.Errorf("expected default budget, got %+v", budget)
	}

	budget, err = ParseBudget([]types.Instruction{
		NewSetComputeUnitLimitInstruction(50_000),
		other,
		NewSetComputeUnitPriceInstruction(10),
		NewRequestHeapFrameInstruction(64 * 1024),
	})
	if err != nil {
		t.Fatalf("ParseBudget: %v", err)
	}
	want := Budget{
		ComputeUnitLimit:            50_000,
		ComputeUnitPrice:            10,
		HeapFrameSize:               64 * 1024,
		LoadedAccountsDataSizeLimit: DefaultLoadedAccountsDataSizeLimit,
	}
	if budget != want {
		t.Errorf("got %+v, want %+v", budget, want)
	}

	budget, err = ParseBudget([]types.Instruction{NewSetComputeUnitLimitInstruction(5_000_000)})
	if err != nil || budget.ComputeUnitLimit != types.MaxComputeUnitsPerTransaction {
		t.Errorf("expected clamped limit, got %d (%v)", budget.ComputeUnitLimit, err)
	}

	errTests := []struct {
		name    string
		ixs     []types.Instruction
		wantErr error
	}{
		{"duplicate", []types.Instruction{NewSetComputeUnitLimitInstruction(1), NewSetComputeUnitLimitInstruction(2)}, ErrDuplicateInstruction},
		{"unaligned heap", []types.Instruction{NewRequestHeapFrameInstruction(1000)}, ErrInvalidHeapFrameSize},
		{"oversized heap", []types.Instruction{NewRequestHeapFrameInstruction(512 * 1024)}, ErrHeapFrameSizeTooLarge},
		{"malformed", []types.Instruction{{ProgramID: ProgramID, Data: []byte{3, 1}}}, ErrInvalidInstructionData},
	}
	for _, tt := range errTests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseBudget(tt.ixs); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestExecute(t *testing.T) {
	p := New()

	ctx := syscall.NewExecutionContext(ProgramID, nil, nil, 1000, nil)
	if err := p.Execute(ctx, NewSetComputeUnitLimitInstruction(10).Data); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if ctx.GetComputeUnitsConsumed() != ExecuteCost {
		t.Errorf("consumed %d, want %d", ctx.GetComputeUnitsConsumed(), ExecuteCost)
	}

	if err := p.Execute(ctx, NewRequestHeapFrameInstruction(100).Data); !errors.Is(err, ErrInvalidHeapFrameSize) {
		t.Errorf("expected ErrInvalidHeapFrameSize, got %v", err)
	}

	ctx = syscall.NewExecutionContext(ProgramID, nil, nil, 100, nil)
	if err := p.Execute(ctx, NewSetComputeUnitLimitInstruction(10).Data); !errors.Is(err, syscall.ErrComputeExhausted) {
		t.Errorf("expected ErrComputeExhausted, got %v", err)
	}
}

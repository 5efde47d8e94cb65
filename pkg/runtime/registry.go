package runtime

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/naviprotocol/pyth-crosschain/pkg/svm/programs/compute_budget"
	"github.com/naviprotocol/pyth-crosschain/pkg/svm/programs/message_buffer"
	"github.com/naviprotocol/pyth-crosschain/pkg/svm/programs/system"
	"github.com/naviprotocol/pyth-crosschain/pkg/svm/syscall"
	"github.com/naviprotocol/pyth-crosschain/pkg/types"
)

// ErrProgramNotFound indicates the program is not registered.
var ErrProgramNotFound = errors.New("program not found")

// Program is a native program. It receives the instruction data; accounts
// are reached through the execution context.
type Program interface {
	Execute(ctx *syscall.ExecutionContext, instruction []byte) error
}

// ProgramFunc is a function adapter for Program.
type ProgramFunc func(ctx *syscall.ExecutionContext, instruction []byte) error

// Execute implements Program.
func (f ProgramFunc) Execute(ctx *syscall.ExecutionContext, instruction []byte) error {
	return f(ctx, instruction)
}

// ProgramRegistry maps program IDs to native programs. It is also the
// dispatcher for cross-program invocations.
type ProgramRegistry struct {
	mu       sync.RWMutex
	programs map[types.Pubkey]Program
	names    map[types.Pubkey]string
}

// NewProgramRegistry creates an empty program registry.
func NewProgramRegistry() *ProgramRegistry {
	return &ProgramRegistry{
		programs: make(map[types.Pubkey]Program),
		names:    make(map[types.Pubkey]string),
	}
}

// NewDefaultRegistry registers the system and compute budget programs and
// the message buffer program deployed at messageBufferID.
func NewDefaultRegistry(messageBufferID types.Pubkey) *ProgramRegistry {
	r := NewProgramRegistry()
	r.RegisterProgramWithName(types.SystemProgramID, "system_program", system.New())
	r.RegisterProgramWithName(compute_budget.ProgramID, "compute_budget", compute_budget.New())
	r.RegisterProgramWithName(messageBufferID, "message_buffer", message_buffer.New(messageBufferID))
	return r
}

// RegisterProgram registers a program for the given program ID.
func (r *ProgramRegistry) RegisterProgram(id types.Pubkey, program Program) {
	r.RegisterProgramWithName(id, id.String(), program)
}

// RegisterProgramWithName registers a program with a name for logging.
func (r *ProgramRegistry) RegisterProgramWithName(id types.Pubkey, name string, program Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.programs[id] = program
	r.names[id] = name
}

// GetProgram returns the program registered for id.
func (r *ProgramRegistry) GetProgram(id types.Pubkey) (Program, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.programs[id]
	return p, ok
}

// GetProgramName returns the name the program was registered with.
func (r *ProgramRegistry) GetProgramName(id types.Pubkey) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.names[id]
	return name, ok
}

// HasProgram checks if a program is registered.
func (r *ProgramRegistry) HasProgram(id types.Pubkey) bool {
	_, ok := r.GetProgram(id)
	return ok
}

// ListPrograms returns all registered program IDs in base58 order.
func (r *ProgramRegistry) ListPrograms() []types.Pubkey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]types.Pubkey, 0, len(r.programs))
	for id := range r.programs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// ProgramAccount returns the executable account the ledger presents for a
// registered native program, or nil if id is not registered.
func (r *ProgramRegistry) ProgramAccount(id types.Pubkey) *types.Account {
	name, ok := r.GetProgramName(id)
	if !ok {
		return nil
	}
	return &types.Account{
		Lamports:   1,
		Data:       []byte(name),
		Owner:      types.NativeLoaderID,
		Executable: true,
	}
}

// ExecuteProgram implements syscall.ProgramExecutor by running the program
// the context currently points at.
func (r *ProgramRegistry) ExecuteProgram(ctx *syscall.ExecutionContext) error {
	p, ok := r.GetProgram(ctx.ProgramID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrProgramNotFound, ctx.ProgramID.String())
	}
	return p.Execute(ctx, ctx.InstructionData)
}

var _ syscall.ProgramExecutor = (*ProgramRegistry)(nil)

// Package syscall provides the execution context native programs run in:
// account access, lamport movement, account data reallocation, program
// derived addresses, the compute meter and cross-program invocation.
package syscall

// Compute unit costs charged by the context.
const (
	CUCreatePDA      uint64 = 1500
	CUFindPDA        uint64 = 1500
	CUFindPDAPerIter uint64 = 50
	CUInvoke         uint64 = 1000
	CULog            uint64 = 100
)

// Limits for execution
const (
	MaxCPIDepth         = 4
	MaxLogMessages      = 64
	MaxLogMessageLength = 10000
	MaxInstructionData  = 1232
	MaxAccountDataSize  = 10 * 1024 * 1024 // 10MB

	// MaxPermittedDataIncrease is the most an account's data may grow
	// within one top-level instruction.
	MaxPermittedDataIncrease = 10 * 1024
)

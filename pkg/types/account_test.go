package types

import "testing"

func TestAccountDeltaKind(t *testing.T) {
	acc := NewAccount(1, SystemProgramID)

	tests := []struct {
		name                          string
		delta                         AccountDelta
		creation, deletion, modifying bool
	}{
		{"creation", AccountDelta{NewAccount: acc}, true, false, false},
		{"deletion", AccountDelta{OldAccount: acc}, false, true, false},
		{"modification", AccountDelta{OldAccount: acc, NewAccount: acc}, false, false, true},
		{"noop", AccountDelta{}, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.delta.IsCreation(); got != tt.creation {
				t.Errorf("IsCreation = %v", got)
			}
			if got := tt.delta.IsDeletion(); got != tt.deletion {
				t.Errorf("IsDeletion = %v", got)
			}
			if got := tt.delta.IsModification(); got != tt.modifying {
				t.Errorf("IsModification = %v", got)
			}
		})
	}

	if (*Account)(nil).DataLen() != 0 || NewAccountWithData(1, make([]byte, 9), SystemProgramID).DataLen() != 9 {
		t.Error("unexpected DataLen")
	}
	if got := Lamports(1_500_000_000).SOL(); got != 1.5 {
		t.Errorf("SOL = %v, want 1.5", got)
	}
}

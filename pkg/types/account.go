package types

// Account represents a ledger account.
type Account struct {
	Lamports   Lamports // Balance in lamports
	Data       []byte   // Account data
	Owner      Pubkey   // Program that owns this account
	Executable bool     // Is this a program account?
	RentEpoch  Epoch    // Last epoch rent was collected (deprecated)
}

// NewAccount creates a new account.
func NewAccount(lamports Lamports, owner Pubkey) *Account {
	return &Account{
		Lamports: lamports,
		Owner:    owner,
	}
}

// NewAccountWithData creates a new account with data.
func NewAccountWithData(lamports Lamports, data []byte, owner Pubkey) *Account {
	return &Account{
		Lamports: lamports,
		Data:     data,
		Owner:    owner,
	}
}

// Clone creates a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := &Account{
		Lamports:   a.Lamports,
		Owner:      a.Owner,
		Executable: a.Executable,
		RentEpoch:  a.RentEpoch,
	}
	if a.Data != nil {
		clone.Data = make([]byte, len(a.Data))
		copy(clone.Data, a.Data)
	}
	return clone
}

// DataLen returns the length of account data.
func (a *Account) DataLen() uint64 {
	if a == nil {
		return 0
	}
	return uint64(len(a.Data))
}

// IsEmpty returns true if the account has zero lamports and no data.
func (a *Account) IsEmpty() bool {
	return a.Lamports == 0 && len(a.Data) == 0
}

// Equal reports whether two accounts hold the same state.
func (a *Account) Equal(b *Account) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Lamports != b.Lamports || a.Owner != b.Owner ||
		a.Executable != b.Executable || a.RentEpoch != b.RentEpoch {
		return false
	}
	if len(a.Data) != len(b.Data) {
		return false
	}
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			return false
		}
	}
	return true
}

// AccountMeta describes an account in an instruction.
type AccountMeta struct {
	Pubkey     Pubkey
	IsSigner   bool
	IsWritable bool
}

// NewAccountMeta is a shorthand constructor for AccountMeta.
func NewAccountMeta(pubkey Pubkey, isSigner, isWritable bool) AccountMeta {
	return AccountMeta{Pubkey: pubkey, IsSigner: isSigner, IsWritable: isWritable}
}

// AccountDelta represents a change to an account.
type AccountDelta struct {
	Pubkey     Pubkey
	OldAccount *Account // nil if new account
	NewAccount *Account // nil if deleted
}

// IsCreation returns true if this is a new account.
func (d *AccountDelta) IsCreation() bool {
	return d.OldAccount == nil && d.NewAccount != nil
}

// IsDeletion returns true if this account was deleted.
func (d *AccountDelta) IsDeletion() bool {
	return d.OldAccount != nil && d.NewAccount == nil
}

// IsModification returns true if this account was modified.
func (d *AccountDelta) IsModification() bool {
	return d.OldAccount != nil && d.NewAccount != nil
}

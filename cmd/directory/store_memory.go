package directory

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is a mutex-guarded in-memory Directory. It backs local
// development when no database is configured, and the service tests.
// All methods copy accounts on the way in and out so callers can never
// alias internal state.
type MemoryStore struct {
	mu       sync.Mutex
	byID     map[string]*Account
	idByMail map[string]string // normalized email -> id
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:     make(map[string]*Account),
		idByMail: make(map[string]string),
	}
}

func cloneAccount(a *Account) Account {
	out := *a
	out.RefreshTokens = append([]string(nil), a.RefreshTokens...)
	if a.VerificationCode != nil {
		v := *a.VerificationCode
		out.VerificationCode = &v
	}
	if a.VerificationExpiry != nil {
		v := *a.VerificationExpiry
		out.VerificationExpiry = &v
	}
	if a.PasswordResetCode != nil {
		v := *a.PasswordResetCode
		out.PasswordResetCode = &v
	}
	if a.PasswordResetExpiry != nil {
		v := *a.PasswordResetExpiry
		out.PasswordResetExpiry = &v
	}
	return out
}

// FindByEmail looks an account up by its normalized email.
func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (Account, error) {
	const op = "directory.FindByEmail"
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	norm := NormalizeEmail(email)
	if norm == "" {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "empty email"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.idByMail[norm]
	if !ok {
		return Account{}, OpError{Op: op, Kind: ErrNotFound}
	}
	return cloneAccount(s.byID[id]), nil
}

// FindByID looks an account up by its ULID.
func (s *MemoryStore) FindByID(ctx context.Context, id string) (Account, error) {
	const op = "directory.FindByID"
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	if strings.TrimSpace(id) == "" {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "empty id"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return Account{}, OpError{Op: op, Kind: ErrNotFound}
	}
	return cloneAccount(a), nil
}

// FindByPendingCode matches the stored code for the given purpose.
func (s *MemoryStore) FindByPendingCode(ctx context.Context, purpose CodePurpose, code string) (Account, error) {
	const op = "directory.FindByPendingCode"
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	if strings.TrimSpace(code) == "" {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "empty code"}
	}
	if purpose != PurposeVerification && purpose != PurposePasswordReset {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "unknown purpose"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.byID {
		var stored *string
		switch purpose {
		case PurposeVerification:
			stored = a.VerificationCode
		case PurposePasswordReset:
			stored = a.PasswordResetCode
		}
		if stored != nil && *stored == code {
			return cloneAccount(a), nil
		}
	}
	return Account{}, OpError{Op: op, Kind: ErrNotFound}
}

// FindByRefreshToken returns the account holding the token.
func (s *MemoryStore) FindByRefreshToken(ctx context.Context, refreshToken string) (Account, error) {
	const op = "directory.FindByRefreshToken"
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	if strings.TrimSpace(refreshToken) == "" {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "empty token"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.byID {
		for _, tok := range a.RefreshTokens {
			if tok == refreshToken {
				return cloneAccount(a), nil
			}
		}
	}
	return Account{}, OpError{Op: op, Kind: ErrNotFound}
}

// Create inserts a new unverified account.
func (s *MemoryStore) Create(ctx context.Context, draft Draft) (Account, error) {
	const op = "directory.Create"
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	norm := NormalizeEmail(draft.Email)
	if norm == "" {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "email is required"}
	}
	if _, ok := ParseRole(string(draft.Role)); !ok {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "invalid role"}
	}
	if strings.TrimSpace(draft.PasswordHash) == "" {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "password hash is required"}
	}

	now := draft.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := NewID(now)
	if err != nil {
		return Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.idByMail[norm]; taken {
		return Account{}, ConflictError{Op: op, Field: "email"}
	}

	code := draft.VerificationCode
	exp := draft.VerificationExpiry
	a := &Account{
		ID:                 id,
		Email:              norm,
		Role:               draft.Role,
		PasswordHash:       draft.PasswordHash,
		IsVerified:         false,
		VerificationCode:   &code,
		VerificationExpiry: &exp,
		RefreshTokens:      []string{},
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	s.byID[id] = a
	s.idByMail[norm] = id
	return cloneAccount(a), nil
}

// Update applies a partial update and returns the fresh account.
func (s *MemoryStore) Update(ctx context.Context, id string, patch Patch) (Account, error) {
	const op = "directory.Update"
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	if strings.TrimSpace(id) == "" {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "empty id"}
	}

	now := patch.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return Account{}, OpError{Op: op, Kind: ErrNotFound}
	}

	if patch.PasswordHash != nil {
		a.PasswordHash = *patch.PasswordHash
	}
	if patch.IsVerified != nil {
		a.IsVerified = *patch.IsVerified
	}
	if patch.IsActive != nil {
		a.IsActive = *patch.IsActive
	}
	if patch.FullName != nil {
		a.FullName = strings.TrimSpace(*patch.FullName)
	}
	if patch.ClearVerification {
		a.VerificationCode = nil
		a.VerificationExpiry = nil
	} else {
		if patch.VerificationCode != nil {
			v := *patch.VerificationCode
			a.VerificationCode = &v
		}
		if patch.VerificationExpiry != nil {
			v := *patch.VerificationExpiry
			a.VerificationExpiry = &v
		}
	}
	if patch.ClearPasswordReset {
		a.PasswordResetCode = nil
		a.PasswordResetExpiry = nil
	} else {
		if patch.PasswordResetCode != nil {
			v := *patch.PasswordResetCode
			a.PasswordResetCode = &v
		}
		if patch.PasswordResetExpiry != nil {
			v := *patch.PasswordResetExpiry
			a.PasswordResetExpiry = &v
		}
	}
	a.UpdatedAt = now

	return cloneAccount(a), nil
}

// AppendRefreshToken atomically adds a token to the live list.
func (s *MemoryStore) AppendRefreshToken(ctx context.Context, id, refreshToken string) error {
	const op = "directory.AppendRefreshToken"
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" || refreshToken == "" {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing argument"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return OpError{Op: op, Kind: ErrNotFound}
	}
	a.RefreshTokens = append(a.RefreshTokens, refreshToken)
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// ReplaceRefreshToken atomically swaps oldToken for newToken.
func (s *MemoryStore) ReplaceRefreshToken(ctx context.Context, id, oldToken, newToken string) error {
	const op = "directory.ReplaceRefreshToken"
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" || oldToken == "" || newToken == "" {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing argument"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return OpError{Op: op, Kind: ErrNotFound}
	}
	replaced := false
	for i, tok := range a.RefreshTokens {
		if tok == oldToken {
			a.RefreshTokens[i] = newToken
			replaced = true
		}
	}
	if !replaced {
		return OpError{Op: op, Kind: ErrNotFound}
	}
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// RemoveRefreshToken atomically removes one token.
func (s *MemoryStore) RemoveRefreshToken(ctx context.Context, id, refreshToken string) error {
	const op = "directory.RemoveRefreshToken"
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" || refreshToken == "" {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing argument"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return OpError{Op: op, Kind: ErrNotFound}
	}
	kept := a.RefreshTokens[:0]
	removed := false
	for _, tok := range a.RefreshTokens {
		if tok == refreshToken {
			removed = true
			continue
		}
		kept = append(kept, tok)
	}
	if !removed {
		return OpError{Op: op, Kind: ErrNotFound}
	}
	a.RefreshTokens = kept
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// ClearRefreshTokens removes every live token for the account.
func (s *MemoryStore) ClearRefreshTokens(ctx context.Context, id string) error {
	const op = "directory.ClearRefreshTokens"
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "empty id"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return OpError{Op: op, Kind: ErrNotFound}
	}
	a.RefreshTokens = []string{}
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// CompleteProfile writes the base fields and the role record atomically.
func (s *MemoryStore) CompleteProfile(ctx context.Context, id string, fullName string, data RoleData) (Account, error) {
	const op = "directory.CompleteProfile"
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	if strings.TrimSpace(id) == "" {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "empty id"}
	}
	dataRole, ok := DataRole(data)
	if !ok {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing role data"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, found := s.byID[id]
	if !found {
		return Account{}, OpError{Op: op, Kind: ErrNotFound}
	}
	if a.Role != dataRole {
		return Account{}, OpError{Op: op, Kind: ErrRoleMismatch, Msg: string(a.Role)}
	}

	a.FullName = strings.TrimSpace(fullName)
	a.RoleData = data
	a.UpdatedAt = time.Now().UTC()
	return cloneAccount(a), nil
}

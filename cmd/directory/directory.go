package directory

import "context"

// Directory is the account persistence boundary.
//
// The refresh-token mutators must be atomic at the statement level:
// concurrent logins for one account race to append distinct tokens, and
// an append implemented as read-modify-write over the whole list can lose
// one of them.
type Directory interface {
	FindByEmail(ctx context.Context, email string) (Account, error)
	FindByID(ctx context.Context, id string) (Account, error)

	// FindByPendingCode matches the stored (unexpired or not) code for the
	// given purpose. Expiry is the caller's concern (lazy expiry).
	FindByPendingCode(ctx context.Context, purpose CodePurpose, code string) (Account, error)

	// FindByRefreshToken returns the account whose live token list
	// contains the token.
	FindByRefreshToken(ctx context.Context, refreshToken string) (Account, error)

	Create(ctx context.Context, draft Draft) (Account, error)
	Update(ctx context.Context, id string, patch Patch) (Account, error)

	// AppendRefreshToken atomically adds a token to the live list.
	AppendRefreshToken(ctx context.Context, id, refreshToken string) error
	// ReplaceRefreshToken atomically swaps oldToken for newToken.
	// Returns ErrNotFound if oldToken is not in the list.
	ReplaceRefreshToken(ctx context.Context, id, oldToken, newToken string) error
	// RemoveRefreshToken atomically removes one token (single-session logout).
	RemoveRefreshToken(ctx context.Context, id, refreshToken string) error
	// ClearRefreshTokens removes every token (logout everywhere).
	ClearRefreshTokens(ctx context.Context, id string) error

	// CompleteProfile writes the base profile fields and the role-specific
	// record in one atomic step. The variant must match the account role.
	CompleteProfile(ctx context.Context, id string, fullName string, data RoleData) (Account, error)
}

package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Directory over PostgreSQL.
//
// Design notes:
//   - The pgx pool is owned by the caller; this store must NOT close it.
//   - Schema/table identifiers are safely quoted to avoid SQL injection
//     via identifiers.
//   - Refresh-token mutations are single UPDATE statements over a text[]
//     column (array_append/array_replace/array_remove), which makes them
//     atomic without explicit locking.
//   - CompleteProfile runs account + role-record writes in one transaction.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the Postgres schema (default "lerniqo").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("directory: empty schema")
		}
		for i, r := range schema {
			ok := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (i > 0 && r >= '0' && r <= '9')
			if !ok {
				return fmt.Errorf("directory: invalid schema identifier")
			}
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore with secure defaults.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: "lerniqo"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("directory: nil pool")
	}
	return st, nil
}

const accountColumns = `id, email, role, password_hash, full_name, is_verified,
	verification_code, verification_expires_at,
	password_reset_code, password_reset_expires_at,
	refresh_tokens, is_active, created_at, updated_at`

// FindByEmail looks an account up by its normalized email.
func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (Account, error) {
	const op = "directory.FindByEmail"
	norm := NormalizeEmail(email)
	if norm == "" {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "empty email"}
	}
	return s.findOne(ctx, op, `email_norm = $1`, norm)
}

// FindByID looks an account up by its ULID.
func (s *PostgresStore) FindByID(ctx context.Context, id string) (Account, error) {
	const op = "directory.FindByID"
	if strings.TrimSpace(id) == "" {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "empty id"}
	}
	return s.findOne(ctx, op, `id = $1`, id)
}

// FindByPendingCode matches the stored code for the given purpose.
// Expiry is not evaluated here (lazy expiry is the service's concern).
func (s *PostgresStore) FindByPendingCode(ctx context.Context, purpose CodePurpose, code string) (Account, error) {
	const op = "directory.FindByPendingCode"
	if strings.TrimSpace(code) == "" {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "empty code"}
	}
	switch purpose {
	case PurposeVerification:
		return s.findOne(ctx, op, `verification_code = $1`, code)
	case PurposePasswordReset:
		return s.findOne(ctx, op, `password_reset_code = $1`, code)
	default:
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "unknown purpose"}
	}
}

// FindByRefreshToken returns the account holding the token.
func (s *PostgresStore) FindByRefreshToken(ctx context.Context, refreshToken string) (Account, error) {
	const op = "directory.FindByRefreshToken"
	if strings.TrimSpace(refreshToken) == "" {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "empty token"}
	}
	return s.findOne(ctx, op, `$1 = ANY(refresh_tokens)`, refreshToken)
}

func (s *PostgresStore) findOne(ctx context.Context, op, where string, arg any) (Account, error) {
	if s == nil || s.pool == nil {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	accounts := s.ident("accounts")

	var a Account
	err := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM `+accounts+` WHERE `+where, arg,
	).Scan(
		&a.ID, &a.Email, &a.Role, &a.PasswordHash, &a.FullName, &a.IsVerified,
		&a.VerificationCode, &a.VerificationExpiry,
		&a.PasswordResetCode, &a.PasswordResetExpiry,
		&a.RefreshTokens, &a.IsActive, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, OpError{Op: op, Kind: ErrNotFound}
		}
		return Account{}, err
	}

	if err := s.loadRoleData(ctx, &a); err != nil {
		return Account{}, err
	}
	return a, nil
}

func (s *PostgresStore) loadRoleData(ctx context.Context, a *Account) error {
	var (
		table string
		scan  func(row pgx.Row) (RoleData, error)
	)

	switch a.Role {
	case RoleLearner:
		table = "learners"
		scan = func(row pgx.Row) (RoleData, error) {
			var d LearnerData
			err := row.Scan(&d.GradeLevel, &d.LearningGoals)
			return d, err
		}
	case RoleEducator:
		table = "educators"
		scan = func(row pgx.Row) (RoleData, error) {
			var d EducatorData
			err := row.Scan(&d.Qualifications, &d.ShortBio)
			return d, err
		}
	case RoleAdministrator:
		table = "administrators"
		scan = func(row pgx.Row) (RoleData, error) {
			var d AdministratorData
			err := row.Scan(&d.Department)
			return d, err
		}
	default:
		return nil
	}

	cols := map[string]string{
		"learners":       "grade_level, learning_goals",
		"educators":      "qualifications, short_bio",
		"administrators": "department",
	}[table]

	row := s.pool.QueryRow(ctx,
		`SELECT `+cols+` FROM `+s.ident(table)+` WHERE account_id = $1`, a.ID)
	data, err := scan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			a.RoleData = nil // profile not completed yet
			return nil
		}
		return err
	}
	a.RoleData = data
	return nil
}

// Create inserts a new unverified account.
func (s *PostgresStore) Create(ctx context.Context, draft Draft) (Account, error) {
	const op = "directory.Create"
	if s == nil || s.pool == nil {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
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

	accounts := s.ident("accounts")
	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+accounts+` (
		     id, email, email_norm, role, password_hash, full_name, is_verified,
		     verification_code, verification_expires_at,
		     refresh_tokens, is_active, created_at, updated_at
		   ) VALUES ($1, $2, $3, $4, $5, '', FALSE, $6, $7, '{}', TRUE, $8, $8)`,
		id, strings.TrimSpace(draft.Email), norm, draft.Role, draft.PasswordHash,
		draft.VerificationCode, draft.VerificationExpiry, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return Account{}, ConflictError{Op: op, Field: "email"}
		}
		return Account{}, err
	}

	code := draft.VerificationCode
	exp := draft.VerificationExpiry
	return Account{
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
	}, nil
}

// Update applies a partial update and returns the fresh row.
func (s *PostgresStore) Update(ctx context.Context, id string, patch Patch) (Account, error) {
	const op = "directory.Update"
	if s == nil || s.pool == nil {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
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

	set := []string{}
	args := []any{}
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if patch.PasswordHash != nil {
		add("password_hash", *patch.PasswordHash)
	}
	if patch.IsVerified != nil {
		add("is_verified", *patch.IsVerified)
	}
	if patch.IsActive != nil {
		add("is_active", *patch.IsActive)
	}
	if patch.FullName != nil {
		add("full_name", strings.TrimSpace(*patch.FullName))
	}
	if patch.ClearVerification {
		set = append(set, "verification_code = NULL", "verification_expires_at = NULL")
	} else {
		if patch.VerificationCode != nil {
			add("verification_code", *patch.VerificationCode)
		}
		if patch.VerificationExpiry != nil {
			add("verification_expires_at", *patch.VerificationExpiry)
		}
	}
	if patch.ClearPasswordReset {
		set = append(set, "password_reset_code = NULL", "password_reset_expires_at = NULL")
	} else {
		if patch.PasswordResetCode != nil {
			add("password_reset_code", *patch.PasswordResetCode)
		}
		if patch.PasswordResetExpiry != nil {
			add("password_reset_expires_at", *patch.PasswordResetExpiry)
		}
	}

	add("updated_at", now)
	args = append(args, id)

	accounts := s.ident("accounts")
	ct, err := s.pool.Exec(ctx,
		`UPDATE `+accounts+` SET `+strings.Join(set, ", ")+
			fmt.Sprintf(` WHERE id = $%d`, len(args)),
		args...,
	)
	if err != nil {
		return Account{}, err
	}
	if ct.RowsAffected() == 0 {
		return Account{}, OpError{Op: op, Kind: ErrNotFound}
	}

	return s.findOne(ctx, op, `id = $1`, id)
}

// AppendRefreshToken atomically adds a token to the live list.
func (s *PostgresStore) AppendRefreshToken(ctx context.Context, id, refreshToken string) error {
	const op = "directory.AppendRefreshToken"
	return s.tokenUpdate(ctx, op,
		`refresh_tokens = array_append(refresh_tokens, $2)`,
		`id = $1`,
		id, refreshToken)
}

// ReplaceRefreshToken atomically swaps oldToken for newToken (rotation).
func (s *PostgresStore) ReplaceRefreshToken(ctx context.Context, id, oldToken, newToken string) error {
	const op = "directory.ReplaceRefreshToken"
	if s == nil || s.pool == nil {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if strings.TrimSpace(id) == "" || oldToken == "" || newToken == "" {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing argument"}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	accounts := s.ident("accounts")
	ct, err := s.pool.Exec(ctx,
		`UPDATE `+accounts+`
		    SET refresh_tokens = array_replace(refresh_tokens, $2, $3),
		        updated_at = now()
		  WHERE id = $1
		    AND $2 = ANY(refresh_tokens)`,
		id, oldToken, newToken,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return OpError{Op: op, Kind: ErrNotFound}
	}
	return nil
}

// RemoveRefreshToken atomically removes one token.
func (s *PostgresStore) RemoveRefreshToken(ctx context.Context, id, refreshToken string) error {
	const op = "directory.RemoveRefreshToken"
	return s.tokenUpdate(ctx, op,
		`refresh_tokens = array_remove(refresh_tokens, $2)`,
		`id = $1 AND $2 = ANY(refresh_tokens)`,
		id, refreshToken)
}

// ClearRefreshTokens removes every live token for the account.
func (s *PostgresStore) ClearRefreshTokens(ctx context.Context, id string) error {
	const op = "directory.ClearRefreshTokens"
	if s == nil || s.pool == nil {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if strings.TrimSpace(id) == "" {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "empty id"}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	accounts := s.ident("accounts")
	ct, err := s.pool.Exec(ctx,
		`UPDATE `+accounts+` SET refresh_tokens = '{}', updated_at = now() WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return OpError{Op: op, Kind: ErrNotFound}
	}
	return nil
}

func (s *PostgresStore) tokenUpdate(ctx context.Context, op, set, where, id, tok string) error {
	if s == nil || s.pool == nil {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if strings.TrimSpace(id) == "" || tok == "" {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing argument"}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	accounts := s.ident("accounts")
	ct, err := s.pool.Exec(ctx,
		`UPDATE `+accounts+` SET `+set+`, updated_at = now() WHERE `+where,
		id, tok,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return OpError{Op: op, Kind: ErrNotFound}
	}
	return nil
}

// CompleteProfile writes base fields and the role record in one transaction.
func (s *PostgresStore) CompleteProfile(ctx context.Context, id string, fullName string, data RoleData) (Account, error) {
	const op = "directory.CompleteProfile"
	if s == nil || s.pool == nil {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
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

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return Account{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	accounts := s.ident("accounts")

	// Lock the row so the role check and the role-record write are a unit.
	var role Role
	err = tx.QueryRow(ctx,
		`SELECT role FROM `+accounts+` WHERE id = $1 FOR UPDATE`, id,
	).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, OpError{Op: op, Kind: ErrNotFound}
		}
		return Account{}, err
	}
	if role != dataRole {
		return Account{}, OpError{Op: op, Kind: ErrRoleMismatch, Msg: string(role)}
	}

	_, err = tx.Exec(ctx,
		`UPDATE `+accounts+` SET full_name = $2, updated_at = now() WHERE id = $1`,
		id, strings.TrimSpace(fullName),
	)
	if err != nil {
		return Account{}, err
	}

	switch d := data.(type) {
	case LearnerData:
		_, err = tx.Exec(ctx,
			`INSERT INTO `+s.ident("learners")+` (account_id, grade_level, learning_goals)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (account_id) DO UPDATE
			   SET grade_level = EXCLUDED.grade_level,
			       learning_goals = EXCLUDED.learning_goals`,
			id, d.GradeLevel, d.LearningGoals,
		)
	case EducatorData:
		_, err = tx.Exec(ctx,
			`INSERT INTO `+s.ident("educators")+` (account_id, qualifications, short_bio)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (account_id) DO UPDATE
			   SET qualifications = EXCLUDED.qualifications,
			       short_bio = EXCLUDED.short_bio`,
			id, d.Qualifications, d.ShortBio,
		)
	case AdministratorData:
		_, err = tx.Exec(ctx,
			`INSERT INTO `+s.ident("administrators")+` (account_id, department)
			 VALUES ($1, $2)
			 ON CONFLICT (account_id) DO UPDATE
			   SET department = EXCLUDED.department`,
			id, d.Department,
		)
	}
	if err != nil {
		return Account{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Account{}, err
	}

	return s.findOne(ctx, op, `id = $1`, id)
}

// ---- helpers ----

func (s *PostgresStore) ident(name string) string {
	return pgx.Identifier{s.schema, name}.Sanitize()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505"
}

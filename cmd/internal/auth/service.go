package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"github.com/Lerniqo/user-service/cmd/directory"
	"github.com/Lerniqo/user-service/cmd/internal/events"
	"github.com/Lerniqo/user-service/cmd/internal/metrics"
	"github.com/Lerniqo/user-service/cmd/security/password"
	"github.com/Lerniqo/user-service/cmd/security/token"
)

// Service implements the account lifecycle over a Directory.
//
// Operations that mint or redeem time-boxed material take the current
// time explicitly so tests can pin the clock.
type Service struct {
	log   *slog.Logger
	cfg   Config
	dir   directory.Directory
	pwd   password.Config
	codec *token.Codec
	pub   events.Publisher
	met   *metrics.Metrics

	dummyHash string
}

// NewService wires a Service. Publisher and metrics may be nil-equivalent
// (NoopPublisher, nil *Metrics); directory and codec are required.
func NewService(log *slog.Logger, cfg Config, dir directory.Directory, pwd password.Config, codec *token.Codec, pub events.Publisher, met *metrics.Metrics) (*Service, error) {
	if log == nil {
		log = slog.Default()
	}
	if dir == nil {
		return nil, errors.New("auth: nil directory")
	}
	if codec == nil {
		return nil, errors.New("auth: nil token codec")
	}
	if pub == nil {
		pub = events.NoopPublisher{}
	}

	s := &Service{
		log:   log,
		cfg:   cfg.withDefaults(),
		dir:   dir,
		pwd:   pwd,
		codec: codec,
		pub:   pub,
		met:   met,
	}

	// Dummy hash for timing-resistant login checks.
	if hash, err := pwd.Hash("dummy-password-for-timing-only"); err == nil {
		s.dummyHash = hash
	}

	return s, nil
}

// RegisterResult carries the new account plus the one-time verification
// code, which the transport layer emails and must never log or return
// to the client.
type RegisterResult struct {
	Account          directory.Account
	VerificationCode string
}

// Register creates an unverified account and mints its verification code.
func (s *Service) Register(ctx context.Context, now time.Time, email, plainPassword, role string) (RegisterResult, error) {
	parsedRole, ok := directory.ParseRole(role)
	if !ok {
		return RegisterResult{}, directory.OpError{Op: "auth.Register", Kind: directory.ErrInvalidInput, Msg: "invalid role"}
	}
	if err := s.pwd.Validate(plainPassword); err != nil {
		return RegisterResult{}, err
	}

	hash, err := s.pwd.Hash(plainPassword)
	if err != nil {
		return RegisterResult{}, err
	}
	code, err := token.VerificationCode()
	if err != nil {
		return RegisterResult{}, err
	}

	account, err := s.dir.Create(ctx, directory.Draft{
		Email:              email,
		Role:               parsedRole,
		PasswordHash:       hash,
		VerificationCode:   code,
		VerificationExpiry: now.Add(s.cfg.VerificationTTL),
		Now:                now,
	})
	if err != nil {
		if directory.IsConflict(err) {
			return RegisterResult{}, ErrEmailTaken
		}
		return RegisterResult{}, err
	}

	s.countCode(directory.PurposeVerification)
	s.publish(ctx, events.TopicUserCreated, map[string]any{
		"userId": account.ID,
		"email":  account.Email,
		"role":   string(account.Role),
	})

	return RegisterResult{Account: account, VerificationCode: code}, nil
}

// Verify redeems a verification code for the given email. The code is
// single-use: success consumes it atomically with the verified flag, so
// a replay falls through to the same failure as a wrong code. Callers
// never learn the account's verification status from this path.
func (s *Service) Verify(ctx context.Context, now time.Time, email, code string) (directory.Account, error) {
	account, err := s.dir.FindByEmail(ctx, email)
	if err != nil {
		if directory.IsNotFound(err) {
			return directory.Account{}, ErrInvalidOrExpiredCode
		}
		return directory.Account{}, err
	}
	if !codeMatches(account.VerificationCode, account.VerificationExpiry, code, now) {
		return directory.Account{}, ErrInvalidOrExpiredCode
	}

	verified := true
	updated, err := s.dir.Update(ctx, account.ID, directory.Patch{
		IsVerified:        &verified,
		ClearVerification: true,
		Now:               now,
	})
	if err != nil {
		return directory.Account{}, err
	}

	s.publish(ctx, events.TopicUserVerified, map[string]any{
		"userId": updated.ID,
		"email":  updated.Email,
	})
	return updated, nil
}

// ResendVerification replaces the pending code with a fresh one. The old
// code stops working immediately.
func (s *Service) ResendVerification(ctx context.Context, now time.Time, email string) (RegisterResult, error) {
	account, err := s.dir.FindByEmail(ctx, email)
	if err != nil {
		return RegisterResult{}, err
	}
	if account.IsVerified {
		return RegisterResult{}, ErrAlreadyVerified
	}

	code, err := token.VerificationCode()
	if err != nil {
		return RegisterResult{}, err
	}
	expiry := now.Add(s.cfg.VerificationTTL)
	updated, err := s.dir.Update(ctx, account.ID, directory.Patch{
		VerificationCode:   &code,
		VerificationExpiry: &expiry,
		Now:                now,
	})
	if err != nil {
		return RegisterResult{}, err
	}

	s.countCode(directory.PurposeVerification)
	return RegisterResult{Account: updated, VerificationCode: code}, nil
}

// Session is an issued token pair plus the account it belongs to.
type Session struct {
	Account      directory.Account
	AccessToken  string
	RefreshToken string
}

// Login authenticates and opens a session. The checks run in a fixed
// order: existence, verification, active flag, then password. An unknown
// email still pays for a hash verification so response timing does not
// reveal which accounts exist.
func (s *Service) Login(ctx context.Context, now time.Time, email, plainPassword string) (Session, error) {
	account, err := s.dir.FindByEmail(ctx, email)
	if err != nil {
		if directory.IsNotFound(err) {
			if s.dummyHash != "" {
				_, _ = s.pwd.Verify(s.dummyHash, plainPassword)
			}
			s.countLogin(metrics.LoginResultRejected)
			return Session{}, ErrInvalidCredentials
		}
		s.countLogin(metrics.LoginResultError)
		return Session{}, err
	}

	if !account.IsVerified {
		s.countLogin(metrics.LoginResultUnverified)
		return Session{}, ErrEmailNotVerified
	}
	if !account.IsActive {
		s.countLogin(metrics.LoginResultInactive)
		return Session{}, ErrAccountInactive
	}

	ok, err := s.pwd.Verify(account.PasswordHash, plainPassword)
	if err != nil || !ok {
		s.countLogin(metrics.LoginResultRejected)
		return Session{}, ErrInvalidCredentials
	}

	sess, err := s.issueSession(ctx, now, account)
	if err != nil {
		s.countLogin(metrics.LoginResultError)
		return Session{}, err
	}

	s.countLogin(metrics.LoginResultSuccess)
	s.publish(ctx, events.TopicUserLogin, map[string]any{
		"userId": account.ID,
		"email":  account.Email,
	})
	return sess, nil
}

// Refresh rotates a refresh token and issues a fresh access token. The
// presented token is atomically replaced; replaying it afterwards fails.
func (s *Service) Refresh(ctx context.Context, now time.Time, refreshToken string) (Session, error) {
	account, err := s.dir.FindByRefreshToken(ctx, refreshToken)
	if err != nil {
		if directory.IsNotFound(err) {
			return Session{}, ErrInvalidRefreshToken
		}
		return Session{}, err
	}
	if !account.IsActive {
		return Session{}, ErrAccountInactive
	}

	next, err := token.OpaqueTokenHex(s.cfg.RefreshTokenBytes)
	if err != nil {
		return Session{}, err
	}
	if err := s.dir.ReplaceRefreshToken(ctx, account.ID, refreshToken, next); err != nil {
		// A concurrent rotation or logout consumed the token first.
		if directory.IsNotFound(err) {
			return Session{}, ErrInvalidRefreshToken
		}
		return Session{}, err
	}

	access, err := s.codec.Encode(token.Claims{
		AccountID: account.ID,
		Email:     account.Email,
		Role:      string(account.Role),
		IssuedAt:  now.UnixMilli(),
	})
	if err != nil {
		return Session{}, err
	}

	s.countToken("access")
	s.countToken("refresh")
	return Session{Account: account, AccessToken: access, RefreshToken: next}, nil
}

// Logout revokes the single session behind the presented refresh token.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	account, err := s.dir.FindByRefreshToken(ctx, refreshToken)
	if err != nil {
		if directory.IsNotFound(err) {
			return ErrInvalidRefreshToken
		}
		return err
	}
	if err := s.dir.RemoveRefreshToken(ctx, account.ID, refreshToken); err != nil {
		if directory.IsNotFound(err) {
			return ErrInvalidRefreshToken
		}
		return err
	}

	s.publish(ctx, events.TopicUserLogout, map[string]any{
		"userId": account.ID,
	})
	return nil
}

// LogoutAll revokes every session of the account.
func (s *Service) LogoutAll(ctx context.Context, accountID string) error {
	if err := s.dir.ClearRefreshTokens(ctx, accountID); err != nil {
		return err
	}
	s.publish(ctx, events.TopicUserLogout, map[string]any{
		"userId": accountID,
		"all":    true,
	})
	return nil
}

// ResetResult carries the reset code for the transport layer to email.
// A zero Requested means no matching account; the caller must respond
// exactly as if one existed.
type ResetResult struct {
	Requested bool
	Account   directory.Account
	ResetCode string
}

// RequestPasswordReset mints a reset code for the account, if any. It
// never reports whether the email is registered.
func (s *Service) RequestPasswordReset(ctx context.Context, now time.Time, email string) (ResetResult, error) {
	account, err := s.dir.FindByEmail(ctx, email)
	if err != nil {
		if directory.IsNotFound(err) {
			return ResetResult{}, nil
		}
		return ResetResult{}, err
	}

	code, err := token.OpaqueTokenHex(16)
	if err != nil {
		return ResetResult{}, err
	}
	expiry := now.Add(s.cfg.ResetTTL)
	updated, err := s.dir.Update(ctx, account.ID, directory.Patch{
		PasswordResetCode:   &code,
		PasswordResetExpiry: &expiry,
		Now:                 now,
	})
	if err != nil {
		return ResetResult{}, err
	}

	s.countCode(directory.PurposePasswordReset)
	return ResetResult{Requested: true, Account: updated, ResetCode: code}, nil
}

// ResetPassword redeems a reset code and installs the new password.
// Every live session is revoked: a reset usually means the old password
// leaked.
func (s *Service) ResetPassword(ctx context.Context, now time.Time, code, newPassword string) error {
	if err := s.pwd.Validate(newPassword); err != nil {
		return err
	}

	account, err := s.dir.FindByPendingCode(ctx, directory.PurposePasswordReset, code)
	if err != nil {
		if directory.IsNotFound(err) {
			return ErrInvalidOrExpiredCode
		}
		return err
	}
	if !codeMatches(account.PasswordResetCode, account.PasswordResetExpiry, code, now) {
		return ErrInvalidOrExpiredCode
	}

	hash, err := s.pwd.Hash(newPassword)
	if err != nil {
		return err
	}
	if _, err := s.dir.Update(ctx, account.ID, directory.Patch{
		PasswordHash:       &hash,
		ClearPasswordReset: true,
		Now:                now,
	}); err != nil {
		return err
	}
	if err := s.dir.ClearRefreshTokens(ctx, account.ID); err != nil {
		return err
	}

	s.publish(ctx, events.TopicUserPasswordReset, map[string]any{
		"userId": account.ID,
		"email":  account.Email,
	})
	return nil
}

// Authenticate resolves an access token to its live account. A valid
// token for a deactivated account is rejected.
func (s *Service) Authenticate(ctx context.Context, now time.Time, accessToken string) (directory.Account, error) {
	claims, err := s.codec.Decode(accessToken, now)
	if err != nil {
		return directory.Account{}, err
	}
	account, err := s.dir.FindByID(ctx, claims.AccountID)
	if err != nil {
		if directory.IsNotFound(err) {
			return directory.Account{}, token.ErrInvalidOrExpiredToken
		}
		return directory.Account{}, err
	}
	if !account.IsActive {
		return directory.Account{}, ErrAccountInactive
	}
	return account, nil
}

// GetAccount loads an account by ID.
func (s *Service) GetAccount(ctx context.Context, id string) (directory.Account, error) {
	return s.dir.FindByID(ctx, id)
}

// CompleteProfile fills in the base profile and the role-specific record.
func (s *Service) CompleteProfile(ctx context.Context, id, fullName string, data directory.RoleData) (directory.Account, error) {
	return s.dir.CompleteProfile(ctx, id, fullName, data)
}

// Deactivate disables the account and revokes every session.
func (s *Service) Deactivate(ctx context.Context, now time.Time, id string) (directory.Account, error) {
	inactive := false
	account, err := s.dir.Update(ctx, id, directory.Patch{
		IsActive: &inactive,
		Now:      now,
	})
	if err != nil {
		return directory.Account{}, err
	}
	if err := s.dir.ClearRefreshTokens(ctx, id); err != nil {
		return directory.Account{}, err
	}
	return account, nil
}

// ---- internals ----

func (s *Service) issueSession(ctx context.Context, now time.Time, account directory.Account) (Session, error) {
	access, err := s.codec.Encode(token.Claims{
		AccountID: account.ID,
		Email:     account.Email,
		Role:      string(account.Role),
		IssuedAt:  now.UnixMilli(),
	})
	if err != nil {
		return Session{}, err
	}
	refresh, err := token.OpaqueTokenHex(s.cfg.RefreshTokenBytes)
	if err != nil {
		return Session{}, err
	}
	if err := s.dir.AppendRefreshToken(ctx, account.ID, refresh); err != nil {
		return Session{}, err
	}

	s.countToken("access")
	s.countToken("refresh")
	return Session{Account: account, AccessToken: access, RefreshToken: refresh}, nil
}

// codeMatches checks a pending one-time code: present, unexpired at now,
// and equal in constant time.
func codeMatches(stored *string, expiry *time.Time, presented string, now time.Time) bool {
	if stored == nil || expiry == nil || presented == "" {
		return false
	}
	if now.After(*expiry) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*stored), []byte(presented)) == 1
}

// publish is best-effort: failures are logged and counted, never surfaced.
func (s *Service) publish(ctx context.Context, topic string, data any) {
	if err := s.pub.Publish(ctx, topic, data); err != nil {
		s.log.Error("auth.event.publish.fail", "topic", topic, "err", err)
		if s.met != nil {
			s.met.EventsFailed.WithLabelValues(topic).Inc()
		}
	}
}

func (s *Service) countLogin(result string) {
	if s.met != nil {
		s.met.Logins.WithLabelValues(result).Inc()
	}
}

func (s *Service) countToken(kind string) {
	if s.met != nil {
		s.met.TokensIssued.WithLabelValues(kind).Inc()
	}
}

func (s *Service) countCode(purpose directory.CodePurpose) {
	if s.met != nil {
		s.met.CodesIssued.WithLabelValues(string(purpose)).Inc()
	}
}

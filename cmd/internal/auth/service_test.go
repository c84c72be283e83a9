package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Lerniqo/user-service/cmd/directory"
	"github.com/Lerniqo/user-service/cmd/security/password"
	"github.com/Lerniqo/user-service/cmd/security/token"
)

const testSecret = "unit-test-secret-key-0123456789"

// cheapPassword keeps hashing fast in tests; production params live in
// password.DefaultConfig.
func cheapPassword() password.Config {
	return password.Config{
		Params: password.Argon2idParams{
			MemoryKiB:   8 * 1024,
			Iterations:  1,
			Parallelism: 1,
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: password.Policy{MinLength: 8, MaxLength: 256},
	}
}

func newTestService(t *testing.T) (*Service, *directory.MemoryStore) {
	t.Helper()

	codec, err := token.NewCodec(testSecret, 24*time.Hour)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	store := directory.NewMemoryStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc, err := NewService(log, DefaultConfig(), store, cheapPassword(), codec, nil, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, store
}

func mustRegister(t *testing.T, svc *Service, now time.Time, email string) RegisterResult {
	t.Helper()
	res, err := svc.Register(context.Background(), now, email, "correct horse battery", "Learner")
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return res
}

func mustVerify(t *testing.T, svc *Service, now time.Time, res RegisterResult) {
	t.Helper()
	if _, err := svc.Verify(context.Background(), now, res.Account.Email, res.VerificationCode); err != nil {
		t.Fatalf("verify %s: %v", res.Account.Email, err)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	mustRegister(t, svc, now, "dup@example.com")

	_, err := svc.Register(ctx, now, "DUP@example.com", "another password", "Educator")
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("duplicate register err = %v, want ErrEmailTaken", err)
	}
}

func TestRegister_RejectsBadInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := svc.Register(ctx, now, "a@example.com", "correct horse battery", "Wizard"); !errors.Is(err, directory.ErrInvalidInput) {
		t.Fatalf("bad role err = %v", err)
	}
	if _, err := svc.Register(ctx, now, "a@example.com", "short", "Learner"); !errors.Is(err, password.ErrPasswordTooShort) {
		t.Fatalf("weak password err = %v", err)
	}
}

func TestLogin_RequiresVerification(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	res := mustRegister(t, svc, now, "new@example.com")

	// Unverified accounts are refused before the password is even checked:
	// a wrong password reports the same unverified failure.
	if _, err := svc.Login(ctx, now, "new@example.com", "correct horse battery"); !errors.Is(err, ErrEmailNotVerified) {
		t.Fatalf("unverified login err = %v", err)
	}
	if _, err := svc.Login(ctx, now, "new@example.com", "wrong password entirely"); !errors.Is(err, ErrEmailNotVerified) {
		t.Fatalf("unverified login with wrong password err = %v, want ErrEmailNotVerified", err)
	}

	mustVerify(t, svc, now, res)
	if _, err := svc.Login(ctx, now, "new@example.com", "correct horse battery"); err != nil {
		t.Fatalf("verified login: %v", err)
	}
}

func TestVerify_CodeRules(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	res := mustRegister(t, svc, now, "codes@example.com")

	if _, err := svc.Verify(ctx, now, "codes@example.com", "000000"); !errors.Is(err, ErrInvalidOrExpiredCode) {
		t.Fatalf("wrong code err = %v", err)
	}
	if _, err := svc.Verify(ctx, now, "other@example.com", res.VerificationCode); !errors.Is(err, ErrInvalidOrExpiredCode) {
		t.Fatalf("wrong email err = %v", err)
	}

	// Redeeming one minute past the 24h window fails.
	late := now.Add(24*time.Hour + time.Minute)
	if _, err := svc.Verify(ctx, late, "codes@example.com", res.VerificationCode); !errors.Is(err, ErrInvalidOrExpiredCode) {
		t.Fatalf("expired code err = %v", err)
	}

	got, err := svc.Verify(ctx, now.Add(time.Hour), "codes@example.com", res.VerificationCode)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !got.IsVerified || got.VerificationCode != nil {
		t.Fatalf("code not consumed: %+v", got)
	}

	// A replayed code is indistinguishable from a wrong one.
	if _, err := svc.Verify(ctx, now, "codes@example.com", res.VerificationCode); !errors.Is(err, ErrInvalidOrExpiredCode) {
		t.Fatalf("replayed code err = %v, want ErrInvalidOrExpiredCode", err)
	}
}

func TestResendVerification_InvalidatesOldCode(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	res := mustRegister(t, svc, now, "resend@example.com")

	fresh, err := svc.ResendVerification(ctx, now, "resend@example.com")
	if err != nil {
		t.Fatalf("resend: %v", err)
	}
	if fresh.VerificationCode == res.VerificationCode {
		t.Fatal("resend returned the same code")
	}

	if _, err := svc.Verify(ctx, now, "resend@example.com", res.VerificationCode); !errors.Is(err, ErrInvalidOrExpiredCode) {
		t.Fatalf("old code still redeemable: %v", err)
	}
	mustVerify(t, svc, now, fresh)

	if _, err := svc.ResendVerification(ctx, now, "resend@example.com"); !errors.Is(err, ErrAlreadyVerified) {
		t.Fatalf("resend after verify err = %v", err)
	}
}

func TestLogin_CredentialFailuresAreUniform(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	res := mustRegister(t, svc, now, "alice@example.com")
	mustVerify(t, svc, now, res)

	_, unknownErr := svc.Login(ctx, now, "ghost@example.com", "correct horse battery")
	_, badPwErr := svc.Login(ctx, now, "alice@example.com", "wrong password entirely")

	if !errors.Is(unknownErr, ErrInvalidCredentials) || !errors.Is(badPwErr, ErrInvalidCredentials) {
		t.Fatalf("unknown=%v badpw=%v, want both ErrInvalidCredentials", unknownErr, badPwErr)
	}
}

func TestLogin_IssuesDecodableSession(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	res := mustRegister(t, svc, now, "bob@example.com")
	mustVerify(t, svc, now, res)

	sess, err := svc.Login(ctx, now, "bob@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	codec, err := token.NewCodec(testSecret, 24*time.Hour)
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	claims, err := codec.Decode(sess.AccessToken, now)
	if err != nil {
		t.Fatalf("decode access token: %v", err)
	}
	if claims.AccountID != sess.Account.ID || claims.Email != "bob@example.com" || claims.Role != "Learner" {
		t.Fatalf("claims = %+v", claims)
	}

	stored, err := store.FindByRefreshToken(ctx, sess.RefreshToken)
	if err != nil || stored.ID != sess.Account.ID {
		t.Fatalf("refresh token not persisted: %v", err)
	}
}

func TestRefresh_RotatesAndRejectsReplay(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	res := mustRegister(t, svc, now, "rot@example.com")
	mustVerify(t, svc, now, res)
	sess, err := svc.Login(ctx, now, "rot@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	next, err := svc.Refresh(ctx, now, sess.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if next.RefreshToken == sess.RefreshToken {
		t.Fatal("refresh token not rotated")
	}

	// The pre-rotation token is dead.
	if _, err := svc.Refresh(ctx, now, sess.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("replayed refresh err = %v", err)
	}
	// The rotated token keeps working.
	if _, err := svc.Refresh(ctx, now, next.RefreshToken); err != nil {
		t.Fatalf("second rotation: %v", err)
	}
}

func TestLogout_RevokesOnlyOneSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	res := mustRegister(t, svc, now, "two@example.com")
	mustVerify(t, svc, now, res)

	s1, err := svc.Login(ctx, now, "two@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("login 1: %v", err)
	}
	s2, err := svc.Login(ctx, now, "two@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("login 2: %v", err)
	}

	if err := svc.Logout(ctx, s1.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.Refresh(ctx, now, s1.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("logged-out token err = %v", err)
	}
	if _, err := svc.Refresh(ctx, now, s2.RefreshToken); err != nil {
		t.Fatalf("other session revoked: %v", err)
	}
	if err := svc.Logout(ctx, s1.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("double logout err = %v", err)
	}
}

func TestLogoutAll_RevokesEverySession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	res := mustRegister(t, svc, now, "all@example.com")
	mustVerify(t, svc, now, res)

	s1, _ := svc.Login(ctx, now, "all@example.com", "correct horse battery")
	s2, _ := svc.Login(ctx, now, "all@example.com", "correct horse battery")

	if err := svc.LogoutAll(ctx, res.Account.ID); err != nil {
		t.Fatalf("logout all: %v", err)
	}
	for _, tok := range []string{s1.RefreshToken, s2.RefreshToken} {
		if _, err := svc.Refresh(ctx, now, tok); !errors.Is(err, ErrInvalidRefreshToken) {
			t.Fatalf("token survived logout-all: %v", err)
		}
	}
}

func TestPasswordReset_FullFlow(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	res := mustRegister(t, svc, now, "reset@example.com")
	mustVerify(t, svc, now, res)
	sess, err := svc.Login(ctx, now, "reset@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	// Unknown emails get the same non-answer as known ones.
	ghost, err := svc.RequestPasswordReset(ctx, now, "ghost@example.com")
	if err != nil || ghost.Requested {
		t.Fatalf("unknown email request = %+v, %v", ghost, err)
	}

	req, err := svc.RequestPasswordReset(ctx, now, "reset@example.com")
	if err != nil || !req.Requested {
		t.Fatalf("request reset = %+v, %v", req, err)
	}
	if len(req.ResetCode) != 32 {
		t.Fatalf("reset code %q is not 16 bytes of hex", req.ResetCode)
	}

	if err := svc.ResetPassword(ctx, now, req.ResetCode, "a brand new password"); err != nil {
		t.Fatalf("reset password: %v", err)
	}

	// Old password dead, new one live, all sessions revoked, code consumed.
	if _, err := svc.Login(ctx, now, "reset@example.com", "correct horse battery"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password err = %v", err)
	}
	if _, err := svc.Login(ctx, now, "reset@example.com", "a brand new password"); err != nil {
		t.Fatalf("new password login: %v", err)
	}
	if _, err := svc.Refresh(ctx, now, sess.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("session survived reset: %v", err)
	}
	if err := svc.ResetPassword(ctx, now, req.ResetCode, "yet another password"); !errors.Is(err, ErrInvalidOrExpiredCode) {
		t.Fatalf("replayed reset code err = %v", err)
	}
}

func TestPasswordReset_CodeExpiresAfterOneHour(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	res := mustRegister(t, svc, now, "slow@example.com")
	mustVerify(t, svc, now, res)

	req, err := svc.RequestPasswordReset(ctx, now, "slow@example.com")
	if err != nil || !req.Requested {
		t.Fatalf("request reset: %v", err)
	}

	late := now.Add(61 * time.Minute)
	if err := svc.ResetPassword(ctx, late, req.ResetCode, "a brand new password"); !errors.Is(err, ErrInvalidOrExpiredCode) {
		t.Fatalf("expired reset err = %v", err)
	}

	// The expired attempt changed nothing; the original password still works.
	if _, err := svc.Login(ctx, late, "slow@example.com", "correct horse battery"); err != nil {
		t.Fatalf("original password login after expired reset: %v", err)
	}
	if _, err := svc.Login(ctx, late, "slow@example.com", "a brand new password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("rejected password login err = %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	res := mustRegister(t, svc, now, "me@example.com")
	mustVerify(t, svc, now, res)
	sess, err := svc.Login(ctx, now, "me@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	got, err := svc.Authenticate(ctx, now, sess.AccessToken)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != sess.Account.ID {
		t.Fatalf("authenticated wrong account: %q", got.ID)
	}

	if _, err := svc.Authenticate(ctx, now, "not-a-token"); !errors.Is(err, token.ErrInvalidOrExpiredToken) {
		t.Fatalf("garbage token err = %v", err)
	}
	if _, err := svc.Authenticate(ctx, now.Add(25*time.Hour), sess.AccessToken); !errors.Is(err, token.ErrInvalidOrExpiredToken) {
		t.Fatalf("expired token err = %v", err)
	}
}

func TestDeactivate_LocksTheAccountOut(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	res := mustRegister(t, svc, now, "gone@example.com")
	mustVerify(t, svc, now, res)
	sess, err := svc.Login(ctx, now, "gone@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if _, err := svc.Deactivate(ctx, now, res.Account.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	if _, err := svc.Login(ctx, now, "gone@example.com", "correct horse battery"); !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("inactive login err = %v", err)
	}
	if _, err := svc.Refresh(ctx, now, sess.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("inactive refresh err = %v", err)
	}
	if _, err := svc.Authenticate(ctx, now, sess.AccessToken); !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("inactive authenticate err = %v", err)
	}
}

package authapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Lerniqo/user-service/cmd/directory"
	"github.com/Lerniqo/user-service/cmd/internal/auth"
	"github.com/Lerniqo/user-service/cmd/security/password"
	"github.com/Lerniqo/user-service/cmd/security/token"
)

// Handler wires the HTTP auth endpoints to the lifecycle service.
type Handler struct {
	log *slog.Logger
	cfg Config
	svc *auth.Service

	emailSender  EmailSender
	accessMaxAge time.Duration
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handler)

// WithEmailSender overrides the default no-op email sender.
func WithEmailSender(sender EmailSender) HandlerOption {
	return func(h *Handler) {
		if h == nil || sender == nil {
			return
		}
		h.emailSender = sender
	}
}

// NewHandler constructs an auth API handler.
func NewHandler(log *slog.Logger, cfg Config, svc *auth.Service, accessMaxAge time.Duration, opts ...HandlerOption) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if svc == nil {
		return nil, errors.New("authapi: nil service")
	}
	if accessMaxAge <= 0 {
		accessMaxAge = token.DefaultMaxAge
	}

	h := &Handler{
		log:          log,
		cfg:          cfg,
		svc:          svc,
		emailSender:  NoopEmailSender{},
		accessMaxAge: accessMaxAge,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/auth/register", h.handleRegister)
	mux.HandleFunc("/auth/verify-email", h.handleVerifyEmail)
	mux.HandleFunc("/auth/resend-verification", h.handleResendVerification)
	mux.HandleFunc("/auth/login", h.handleLogin)
	mux.HandleFunc("/auth/refresh", h.handleRefresh)
	mux.HandleFunc("/auth/logout", h.handleLogout)
	mux.HandleFunc("/auth/forgot-password", h.handleForgotPassword)
	mux.HandleFunc("/auth/reset-password", h.handleResetPassword)

	mux.Handle("/auth/logout-all", h.Authenticate(http.HandlerFunc(h.handleLogoutAll)))
	mux.Handle("/auth/me", h.Authenticate(http.HandlerFunc(h.handleMe)))
	mux.Handle("/users/complete-profile", h.Authenticate(http.HandlerFunc(h.handleCompleteProfile)))
	mux.Handle("/admin/accounts/deactivate",
		h.Authenticate(h.RequireRole(directory.RoleAdministrator)(http.HandlerFunc(h.handleDeactivate))))
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" || strings.TrimSpace(req.Role) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email, password and role are required")
		return
	}

	ctx := r.Context()
	res, err := h.svc.Register(ctx, time.Now().UTC(), req.Email, req.Password, req.Role)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	if err := h.emailSender.SendVerificationCode(ctx, res.Account.Email, res.VerificationCode); err != nil {
		h.log.Error("auth.register.email.fail", "err", err)
	}

	writeJSON(w, http.StatusCreated, userEnvelope{User: toAccountResponse(res.Account)})
}

func (h *Handler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req verifyEmailRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and code are required")
		return
	}

	account, err := h.svc.Verify(r.Context(), time.Now().UTC(), req.Email, strings.TrimSpace(req.Code))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, userEnvelope{User: toAccountResponse(account)})
}

func (h *Handler) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req emailRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	ctx := r.Context()
	res, err := h.svc.ResendVerification(ctx, time.Now().UTC(), req.Email)
	if err != nil {
		// Unknown emails get the success message; resend must not confirm
		// which addresses hold accounts.
		if directory.IsNotFound(err) {
			writeJSON(w, http.StatusOK, messageResponse{Message: "verification code sent"})
			return
		}
		h.writeServiceError(w, err)
		return
	}

	if err := h.emailSender.SendVerificationCode(ctx, res.Account.Email, res.VerificationCode); err != nil {
		h.log.Error("auth.resend.email.fail", "err", err)
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "verification code sent"})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	now := time.Now().UTC()
	sess, err := h.svc.Login(r.Context(), now, req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.setSessionCookies(w, sess.AccessToken, sess.RefreshToken, now)
	writeJSON(w, http.StatusOK, loginResponse{
		User: toAccountResponse(sess.Account),
		Session: sessionResponse{
			AccessToken:  sess.AccessToken,
			RefreshToken: sess.RefreshToken,
		},
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	refreshToken := h.refreshTokenFromRequest(w, r)
	if refreshToken == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "refreshToken is required")
		return
	}

	now := time.Now().UTC()
	sess, err := h.svc.Refresh(r.Context(), now, refreshToken)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.setSessionCookies(w, sess.AccessToken, sess.RefreshToken, now)
	writeJSON(w, http.StatusOK, sessionResponse{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	refreshToken := h.refreshTokenFromRequest(w, r)
	// The cookies go regardless; a dead session must not leave live tokens
	// in the browser.
	h.clearSessionCookies(w)

	if refreshToken == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "refreshToken is required")
		return
	}
	if err := h.svc.Logout(r.Context(), refreshToken); err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "logged out"})
}

func (h *Handler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	account, ok := AccountFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing access token")
		return
	}

	h.clearSessionCookies(w)
	if err := h.svc.LogoutAll(r.Context(), account.ID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "logged out everywhere"})
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req emailRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email is required")
		return
	}

	ctx := r.Context()
	res, err := h.svc.RequestPasswordReset(ctx, time.Now().UTC(), req.Email)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if res.Requested {
		if err := h.emailSender.SendPasswordResetCode(ctx, res.Account.Email, res.ResetCode); err != nil {
			h.log.Error("auth.forgot.email.fail", "err", err)
		}
	}

	// Identical answer whether or not the email is registered.
	writeJSON(w, http.StatusOK, messageResponse{Message: "if the email is registered, a reset code has been sent"})
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req resetPasswordRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Code) == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "code and newPassword are required")
		return
	}

	if err := h.svc.ResetPassword(r.Context(), time.Now().UTC(), strings.TrimSpace(req.Code), req.NewPassword); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "password updated"})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	account, ok := AccountFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing access token")
		return
	}
	writeJSON(w, http.StatusOK, userEnvelope{User: toAccountResponse(account)})
}

func (h *Handler) handleCompleteProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	account, ok := AccountFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing access token")
		return
	}

	var req completeProfileRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.FullName) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "fullName is required")
		return
	}

	var data directory.RoleData
	switch account.Role {
	case directory.RoleLearner:
		data = directory.LearnerData{GradeLevel: req.GradeLevel, LearningGoals: req.LearningGoals}
	case directory.RoleEducator:
		data = directory.EducatorData{Qualifications: req.Qualifications, ShortBio: req.ShortBio}
	case directory.RoleAdministrator:
		data = directory.AdministratorData{Department: req.Department}
	}

	updated, err := h.svc.CompleteProfile(r.Context(), account.ID, req.FullName, data)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userEnvelope{User: toAccountResponse(updated)})
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req deactivateRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "userId is required")
		return
	}

	account, err := h.svc.Deactivate(r.Context(), time.Now().UTC(), strings.TrimSpace(req.UserID))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userEnvelope{User: toAccountResponse(account)})
}

// ---- helpers ----

func (h *Handler) refreshTokenFromRequest(w http.ResponseWriter, r *http.Request) string {
	var req refreshRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
			return ""
		}
	}
	tok := strings.TrimSpace(req.RefreshToken)
	if tok == "" {
		if cookieToken, ok := h.refreshTokenFromCookie(r); ok {
			tok = cookieToken
		}
	}
	return tok
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email_taken", "email already registered")
	case errors.Is(err, auth.ErrAlreadyVerified):
		writeError(w, http.StatusConflict, "already_verified", "email already verified")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
	case errors.Is(err, auth.ErrEmailNotVerified):
		writeError(w, http.StatusForbidden, "email_not_verified", "email verification required")
	case errors.Is(err, auth.ErrAccountInactive):
		writeError(w, http.StatusForbidden, "account_inactive", "account is deactivated")
	case errors.Is(err, auth.ErrInvalidOrExpiredCode):
		writeError(w, http.StatusBadRequest, "invalid_code", "invalid or expired code")
	case errors.Is(err, auth.ErrInvalidRefreshToken):
		writeError(w, http.StatusUnauthorized, "invalid_refresh_token", "invalid refresh token")
	case errors.Is(err, token.ErrInvalidOrExpiredToken):
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid or expired access token")
	case errors.Is(err, password.ErrPasswordTooShort), errors.Is(err, password.ErrPasswordTooLong):
		writeError(w, http.StatusBadRequest, "weak_password", "password does not meet the policy")
	case errors.Is(err, directory.ErrRoleMismatch):
		writeError(w, http.StatusBadRequest, "role_mismatch", "profile data does not match the account role")
	case errors.Is(err, directory.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request")
	case directory.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", "account not found")
	default:
		h.log.Error("auth.api.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

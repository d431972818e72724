package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"github.com/soficodes/bloghub/internal/auth"
	"github.com/soficodes/bloghub/internal/config"
	"github.com/soficodes/bloghub/internal/domain/identity"
	"github.com/soficodes/bloghub/internal/http/middlewares"
	"github.com/soficodes/bloghub/internal/repo/postgres"
	"github.com/soficodes/bloghub/internal/security"
)

type UserReader interface {
	GetByEmail(ctx context.Context, email string) (identity.Identity, error)
	GetByID(ctx context.Context, id string) (identity.Identity, error)
}

type UserWriter interface {
	Create(ctx context.Context, email, passwordHash, name string, role identity.Role) (identity.Identity, error)
	UpdateName(ctx context.Context, id, name string) (identity.Identity, error)
}

type RefreshTokenStore interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	Create(ctx context.Context, tx pgx.Tx, row postgres.RefreshTokenRow) error
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (postgres.RefreshTokenRow, error)
	Revoke(ctx context.Context, tx pgx.Tx, id string, replacedBy *string) error
}

// AccessRevoker puts a logged-out access token on the denylist.
type AccessRevoker interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
}

// redirect targets the client navigates to after auth transitions
const (
	RedirectAdminHome = "/admin/dashboard"
	RedirectBlogHome  = "/blogs"
	RedirectLanding   = "/"
)

// LoginRedirectFor picks the post-login landing page by role.
func LoginRedirectFor(role identity.Role) string {
	if role == identity.RoleAdmin {
		return RedirectAdminHome
	}
	return RedirectBlogHome
}

type AuthHandler struct {
	users        UserReader
	userWriter   UserWriter
	jwt          *auth.Manager
	refreshStore RefreshTokenStore
	revoker      AccessRevoker
	cfg          config.Config
}

// NewAuthHandler wires the auth endpoints. refreshStore is nil on the memory
// backend (no refresh cookie is issued, /auth/refresh answers 401) and
// revoker is nil without redis (logout skips the denylist). Both degrade,
// never fail.
func NewAuthHandler(users UserReader, userWriter UserWriter, jwtManager *auth.Manager, refreshStore RefreshTokenStore, revoker AccessRevoker, cfg config.Config) *AuthHandler {
	return &AuthHandler{
		users:        users,
		userWriter:   userWriter,
		jwt:          jwtManager,
		refreshStore: refreshStore,
		revoker:      revoker,
		cfg:          cfg,
	}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}
type SignUpRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

func (h *AuthHandler) SignUp(ctx *gin.Context) {
	var req SignUpRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		RespondInternal(ctx, "Could not create account")
		return
	}

	// self-service signup always produces a regular user

	u, err := h.userWriter.Create(cctx, req.Email, hash, req.Name, identity.RoleUser)

	if err != nil {
		if errors.Is(err, identity.ErrEmailTaken) {
			RespondConflict(ctx, "email_taken", "Email is already in use.")
			return
		}

		RespondInternal(ctx, "Could not create account")
		return
	}

	h.issueSession(ctx, cctx, u, http.StatusCreated)
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}
	// short timeout for DB lookup
	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	foundUser, err := h.users.GetByEmail(cctx, req.Email)
	if err != nil {
		RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	err = security.CheckPassword(foundUser.PasswordHash, req.Password)

	if err != nil {
		RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	h.issueSession(ctx, cctx, foundUser, http.StatusOK)
}

// issueSession mints the token pair, persists the refresh token and writes
// the response body shared by login and signup.
func (h *AuthHandler) issueSession(ctx *gin.Context, cctx context.Context, u identity.Identity, status int) {
	accessToken, err := h.jwt.GenerateAccessToken(u.ID, u.Email, string(u.Role))

	if err != nil {
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	if h.refreshStore != nil {
		rawRefreshToken, jti, expiresAt, err := h.jwt.GenerateRefreshToken(u.ID, u.Email, string(u.Role))

		if err != nil {
			RespondInternal(ctx, "Could not generate refresh token")
			return
		}

		if err := h.storeRefreshToken(cctx, u.ID, jti, rawRefreshToken, expiresAt); err != nil {
			RespondInternal(ctx, "Could not create session")
			return
		}

		h.setRefreshCookie(ctx, rawRefreshToken, expiresAt)
	}

	ctx.JSON(status, gin.H{
		"accessToken": accessToken,
		"user":        u,
		"redirectTo":  LoginRedirectFor(u.Role),
	})
}

func (h *AuthHandler) Refresh(ctx *gin.Context) {
	if h.refreshStore == nil {
		RespondUnAuthorized(ctx, "no_refresh", "Refresh sessions are not enabled")
		return
	}

	raw, err := ctx.Cookie(h.refreshCookieName())

	if err != nil || raw == "" {
		RespondUnAuthorized(ctx, "no_refresh", "Missing refresh token")
		return
	}

	claims, err := h.jwt.VerifyRefreshToken(raw)

	if err != nil {
		RespondUnAuthorized(ctx, "invalid_refresh", "Invalid refresh token")
		return
	}

	// rotation with a tx with row lock

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	tx, err := h.refreshStore.BeginTx(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	defer func() { _ = tx.Rollback(cctx) }()

	row, err := h.refreshStore.GetForUpdate(cctx, tx, claims.JTI)

	if err != nil {
		RespondUnAuthorized(ctx, "invalid_refresh", "Invalid refresh token")
		return
	}

	//  check if it is revoked/expired

	if row.RevokedAt != nil {
		RespondUnAuthorized(ctx, "invalid_refresh", "Invalid refresh token")
		return
	}

	if time.Now().UTC().After(row.ExpiresAt) {
		RespondUnAuthorized(ctx, "expired_refresh", "Refresh token expired.")
		return
	}

	// verify hash matches the presented token (prevents token substitution)

	if row.TokenHash != h.jwt.HashRefreshToken(raw) {
		RespondUnAuthorized(ctx, "invalid_refresh", "Invalid refresh token.")
		return
	}

	// checks passed, rotate: revoke old, insert new

	newRaw, newJTI, newExpiresAt, err := h.jwt.GenerateRefreshToken(row.UserID, claims.Email, claims.Role)
	if err != nil {
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	err = h.refreshStore.Revoke(cctx, tx, row.ID, &newJTI)

	if err != nil {
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	newRow := postgres.RefreshTokenRow{
		ID:        newJTI,
		UserID:    row.UserID,
		TokenHash: h.jwt.HashRefreshToken(newRaw),
		ExpiresAt: newExpiresAt,
		CreatedAt: time.Now().UTC(),
	}

	err = h.refreshStore.Create(cctx, tx, newRow)

	if err != nil {
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	err = tx.Commit(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	accessToken, err := h.jwt.GenerateAccessToken(row.UserID, claims.Email, claims.Role)
	if err != nil {
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	h.setRefreshCookie(ctx, newRaw, newExpiresAt)

	ctx.JSON(http.StatusOK, gin.H{
		"accessToken": accessToken,
	})
}

// Logout revokes what it can reach but always answers 204: the client
// clears its local session regardless, so there is nothing useful to
// report back on partial failure.
func (h *AuthHandler) Logout(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	// put the presented access token on the denylist for its remaining
	// lifetime, best-effort
	if h.revoker != nil {
		if jti, ok := middlewares.JTIFromContext(ctx); ok && jti != "" {
			if exp, ok := middlewares.TokenExpiryFromContext(ctx); ok {
				_ = h.revoker.Revoke(cctx, jti, time.Until(exp))
			}
		}
	}

	raw, err := ctx.Cookie(h.refreshCookieName())

	if err != nil || raw == "" || h.refreshStore == nil {
		// still clear cookie to be safe
		h.clearRefreshCookie(ctx)
		ctx.Status(http.StatusNoContent)
		return
	}

	claims, err := h.jwt.VerifyRefreshToken(raw)
	if err != nil {
		h.clearRefreshCookie(ctx)
		ctx.Status(http.StatusNoContent)
		return
	}

	tx, err := h.refreshStore.BeginTx(cctx)
	if err != nil {
		h.clearRefreshCookie(ctx)
		ctx.Status(http.StatusNoContent)
		return
	}
	defer func() { _ = tx.Rollback(cctx) }()

	// revoke that one token (idempotent)
	_ = h.refreshStore.Revoke(cctx, tx, claims.JTI, nil)
	_ = tx.Commit(cctx)

	h.clearRefreshCookie(ctx)
	ctx.Status(http.StatusNoContent)
}

// Profile resolves the verified token subject to a profile row. A valid
// credential with no row gets a default profile provisioned for it, so
// resolving is idempotent from the client's point of view.
func (h *AuthHandler) Profile(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	u, err := h.users.GetByID(cctx, userID)

	if err != nil {
		if !errors.Is(err, identity.ErrNotFound) {
			RespondInternal(ctx, "Could not load profile")
			return
		}

		// credential is valid but the profile row is missing; provision
		// the default profile (role=user, name from the email local-part)
		u, err = h.provisionDefaultProfile(cctx, ctx)

		if err != nil {
			RespondInternal(ctx, "Could not load profile")
			return
		}
	}

	ctx.JSON(http.StatusOK, u)
}

func (h *AuthHandler) provisionDefaultProfile(cctx context.Context, ctx *gin.Context) (identity.Identity, error) {
	claimsEmail, _ := middlewares.EmailFromContext(ctx)

	u, err := h.userWriter.Create(cctx, claimsEmail, "", identity.NameFromEmail(claimsEmail), identity.RoleUser)

	if err != nil && errors.Is(err, identity.ErrEmailTaken) {
		// lost a race with another resolve; read the winner
		return h.users.GetByEmail(cctx, claimsEmail)
	}

	return u, err
}

// UpdateProfile lets an identity rename itself. Email and role are not
// editable here; role changes go through the admin endpoint only.
func (h *AuthHandler) UpdateProfile(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	var req identity.UpdateProfileRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	u, err := h.userWriter.UpdateName(cctx, userID, req.Name)

	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			RespondNotFound(ctx, "Profile not found")
			return
		}

		RespondInternal(ctx, "Could not update profile")
		return
	}

	ctx.JSON(http.StatusOK, u)
}

// Helper functions

func (h *AuthHandler) storeRefreshToken(ctx context.Context, userID, jti, raw string, expiresAt time.Time) error {
	tx, err := h.refreshStore.BeginTx(ctx)

	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	row := postgres.RefreshTokenRow{
		ID:        jti,
		UserID:    userID,
		TokenHash: h.jwt.HashRefreshToken(raw),
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}

	err = h.refreshStore.Create(ctx, tx, row)

	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (h *AuthHandler) refreshCookieName() string {
	return "refresh_token"
}

func (h *AuthHandler) setRefreshCookie(ctx *gin.Context, raw string, expiresAt time.Time) {
	secure := h.cfg.Env == "prod"

	maxAge := int(time.Until(expiresAt).Seconds())

	ctx.SetSameSite(http.SameSiteStrictMode)

	ctx.SetCookie(
		h.refreshCookieName(),
		raw,
		maxAge,
		"/auth",
		"",
		secure,
		true, // HttpOnly.
	)
}

func (h *AuthHandler) clearRefreshCookie(ctx *gin.Context) {
	secure := h.cfg.Env == "prod"
	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(
		h.refreshCookieName(),
		"",
		-1,
		"/auth",
		"",
		secure,
		true,
	)
}

package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/soficodes/bloghub/internal/config"
	"github.com/soficodes/bloghub/internal/domain/identity"
	"github.com/soficodes/bloghub/internal/http/middlewares"
)

type AdminUsersRepo interface {
	List(ctx context.Context, limit, offset int) ([]identity.Identity, int, error)
	UpdateRole(ctx context.Context, id string, role identity.Role) (identity.Identity, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

type PostsCounter interface {
	Count(ctx context.Context) (int, error)
}

// SessionsRevoker ends every refresh session a user holds. Used when an
// admin changes a role or removes an account, so stale sessions cannot
// outlive the decision.
type SessionsRevoker interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	RevokeAllForUser(ctx context.Context, tx pgx.Tx, userID string) error
}

// AdminHandler backs the user-management endpoints. Route-level RBAC
// already gates these to admins; the self-targeting checks here are the
// only per-request rules left.
type AdminHandler struct {
	users    AdminUsersRepo
	posts    PostsCounter
	sessions SessionsRevoker
}

// NewAdminHandler wires the admin endpoints. sessions is nil on the memory
// backend, in which case role changes and deletes skip refresh revocation.
func NewAdminHandler(users AdminUsersRepo, posts PostsCounter, sessions SessionsRevoker) *AdminHandler {
	return &AdminHandler{users: users, posts: posts, sessions: sessions}
}

// revokeSessions is best-effort: the admin action itself already
// succeeded, a failed revocation only delays the effect until the
// refresh token expires.
func (h *AdminHandler) revokeSessions(ctx context.Context, userID string) {
	if h.sessions == nil {
		return
	}

	tx, err := h.sessions.BeginTx(ctx)

	if err != nil {
		return
	}

	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.sessions.RevokeAllForUser(ctx, tx, userID); err != nil {
		return
	}

	_ = tx.Commit(ctx)
}

func (h *AdminHandler) ListUsers(ctx *gin.Context) {
	limit := defaultPageSize
	offset := 0

	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)

		if err != nil || n < 1 {
			RespondBadRequest(ctx, "limit must be a positive integer", nil)
			return
		}

		if n > maxPageSize {
			n = maxPageSize
		}

		limit = n
	}

	if raw := ctx.Query("offset"); raw != "" {
		n, err := strconv.Atoi(raw)

		if err != nil || n < 0 {
			RespondBadRequest(ctx, "offset must be a non-negative integer", nil)
			return
		}

		offset = n
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	users, total, err := h.users.List(cctx, limit, offset)

	if err != nil {
		RespondInternal(ctx, "Could not list users")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"users":  users,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *AdminHandler) ChangeRole(ctx *gin.Context) {
	id := ctx.Param("id")

	if uuid.Validate(id) != nil {
		RespondBadRequest(ctx, "User id must be a UUID", nil)
		return
	}

	var req identity.ChangeRoleRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// an admin cannot demote themselves; that would lock the last admin
	// out mid-session
	if callerID, ok := middlewares.UserIDFromContext(ctx); ok && callerID == id {
		RespondConflict(ctx, "self_role_change", "You cannot change your own role.")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	u, err := h.users.UpdateRole(cctx, id, identity.ParseRole(req.Role))

	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		RespondInternal(ctx, "Could not change role")
		return
	}

	// the old role may still be baked into live tokens; end those
	// sessions so the change takes effect at the next login
	h.revokeSessions(cctx, id)

	ctx.JSON(http.StatusOK, u)
}

func (h *AdminHandler) DeleteUser(ctx *gin.Context) {
	id := ctx.Param("id")

	if uuid.Validate(id) != nil {
		RespondBadRequest(ctx, "User id must be a UUID", nil)
		return
	}

	if callerID, ok := middlewares.UserIDFromContext(ctx); ok && callerID == id {
		RespondConflict(ctx, "self_delete", "You cannot delete your own account.")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	h.revokeSessions(cctx, id)

	if err := h.users.Delete(cctx, id); err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		RespondInternal(ctx, "Could not delete user")
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *AdminHandler) Stats(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	userCount, err := h.users.Count(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not load stats")
		return
	}

	postCount := 0

	if h.posts != nil {
		postCount, err = h.posts.Count(cctx)

		if err != nil {
			RespondInternal(ctx, "Could not load stats")
			return
		}
	}

	ctx.JSON(http.StatusOK, gin.H{
		"users": userCount,
		"posts": postCount,
	})
}

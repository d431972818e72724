package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/soficodes/bloghub/internal/authz"
	"github.com/soficodes/bloghub/internal/cache"
	"github.com/soficodes/bloghub/internal/config"
	"github.com/soficodes/bloghub/internal/domain/identity"
	"github.com/soficodes/bloghub/internal/domain/post"
	"github.com/soficodes/bloghub/internal/http/middlewares"
	"github.com/soficodes/bloghub/internal/observability"
)

type PostsRepo interface {
	Create(ctx context.Context, req post.CreatePostRequest, author identity.Identity) (post.Post, error)
	List(ctx context.Context, filter post.ListPostsFilter) ([]post.Post, int, error)
	GetByID(ctx context.Context, id string) (post.Post, error)
	Update(ctx context.Context, id string, req post.UpdatePostRequest) (post.Post, error)
	Delete(ctx context.Context, id string) error
}

type PostsHandler struct {
	repo  PostsRepo
	users UserReader
	cache *cache.Cache
	prom  *observability.Prom
}

func NewPostsHandler(repo PostsRepo, users UserReader, c *cache.Cache, prom *observability.Prom) *PostsHandler {
	return &PostsHandler{repo: repo, users: users, cache: c, prom: prom}
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// List serves the public feed. Results are cached per filter and served
// with an ETag so unchanged feeds cost a 304.
func (h *PostsHandler) List(ctx *gin.Context) {
	filter, ok := h.parseListFilter(ctx)

	if !ok {
		return
	}

	cacheKey := listCacheKey(filter)

	if h.cache != nil {
		if cached, hit := h.cache.Get(cacheKey); hit {
			RespondJSONWithETag(ctx, http.StatusOK, cached)
			return
		}
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	posts, total, err := h.repo.List(cctx, filter)

	if err != nil {
		RespondInternal(ctx, "Could not list posts")
		return
	}

	payload := gin.H{
		"posts":  posts,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	}

	if h.cache != nil {
		h.cache.Set(cacheKey, payload)
	}

	RespondJSONWithETag(ctx, http.StatusOK, payload)
}

func (h *PostsHandler) GetByID(ctx *gin.Context) {
	id := ctx.Param("id")

	if uuid.Validate(id) != nil {
		RespondBadRequest(ctx, "Post id must be a UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	p, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, post.ErrNotFound) {
			RespondNotFound(ctx, "Post not found")
			return
		}

		RespondInternal(ctx, "Could not load post")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, p)
}

func (h *PostsHandler) Create(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	var req post.CreatePostRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	// author name and role are denormalized onto the post, so load the
	// full profile rather than trusting the token claims alone
	author, err := h.users.GetByID(cctx, userID)

	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			RespondUnAuthorized(ctx, "unauthorized", "Unknown identity")
			return
		}

		RespondInternal(ctx, "Could not create post")
		return
	}

	created, err := h.repo.Create(cctx, req, author)

	if err != nil {
		RespondInternal(ctx, "Could not create post")
		return
	}

	h.invalidateListCache()

	ctx.JSON(http.StatusCreated, created)
}

func (h *PostsHandler) Update(ctx *gin.Context) {
	id := ctx.Param("id")

	if uuid.Validate(id) != nil {
		RespondBadRequest(ctx, "Post id must be a UUID", nil)
		return
	}

	var req post.UpdatePostRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	existing, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, post.ErrNotFound) {
			RespondNotFound(ctx, "Post not found")
			return
		}

		RespondInternal(ctx, "Could not update post")
		return
	}

	ident := middlewares.IdentityFromContext(ctx)

	allowed := authz.CanEdit(ident, &existing)

	if h.prom != nil {
		h.prom.ObserveAuthz("owner", allowed)
	}

	if !allowed {
		RespondForbidden(ctx, "You cannot edit this post")
		return
	}

	updated, err := h.repo.Update(cctx, id, req)

	if err != nil {
		if errors.Is(err, post.ErrNotFound) {
			RespondNotFound(ctx, "Post not found")
			return
		}

		RespondInternal(ctx, "Could not update post")
		return
	}

	h.invalidateListCache()

	ctx.JSON(http.StatusOK, updated)
}

func (h *PostsHandler) Delete(ctx *gin.Context) {
	id := ctx.Param("id")

	if uuid.Validate(id) != nil {
		RespondBadRequest(ctx, "Post id must be a UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	existing, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, post.ErrNotFound) {
			RespondNotFound(ctx, "Post not found")
			return
		}

		RespondInternal(ctx, "Could not delete post")
		return
	}

	ident := middlewares.IdentityFromContext(ctx)

	allowed := authz.CanDelete(ident, &existing)

	if h.prom != nil {
		h.prom.ObserveAuthz("owner", allowed)
	}

	if !allowed {
		RespondForbidden(ctx, "You cannot delete this post")
		return
	}

	if err := h.repo.Delete(cctx, id); err != nil {
		if errors.Is(err, post.ErrNotFound) {
			RespondNotFound(ctx, "Post not found")
			return
		}

		RespondInternal(ctx, "Could not delete post")
		return
	}

	h.invalidateListCache()

	ctx.Status(http.StatusNoContent)
}

// helpers

func (h *PostsHandler) parseListFilter(ctx *gin.Context) (post.ListPostsFilter, bool) {
	filter := post.ListPostsFilter{
		Limit: defaultPageSize,
	}

	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)

		if err != nil || n < 1 {
			RespondBadRequest(ctx, "limit must be a positive integer", nil)
			return filter, false
		}

		if n > maxPageSize {
			n = maxPageSize
		}

		filter.Limit = n
	}

	if raw := ctx.Query("offset"); raw != "" {
		n, err := strconv.Atoi(raw)

		if err != nil || n < 0 {
			RespondBadRequest(ctx, "offset must be a non-negative integer", nil)
			return filter, false
		}

		filter.Offset = n
	}

	if category := ctx.Query("category"); category != "" {
		filter.Category = &category
	}

	if author := ctx.Query("author"); author != "" {
		if uuid.Validate(author) != nil {
			RespondBadRequest(ctx, "author must be a UUID", nil)
			return filter, false
		}

		filter.AuthorID = &author
	}

	if q := ctx.Query("q"); q != "" {
		filter.Query = &q
	}

	return filter, true
}

func listCacheKey(f post.ListPostsFilter) string {
	cat, author, q := "", "", ""

	if f.Category != nil {
		cat = *f.Category
	}

	if f.AuthorID != nil {
		author = *f.AuthorID
	}

	if f.Query != nil {
		q = *f.Query
	}

	return fmt.Sprintf("posts:%s:%s:%s:%d:%d", cat, author, q, f.Limit, f.Offset)
}

func (h *PostsHandler) invalidateListCache() {
	if h.cache != nil {
		h.cache.Clear()
	}
}

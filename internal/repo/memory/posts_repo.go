package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/soficodes/bloghub/internal/domain/identity"
	"github.com/soficodes/bloghub/internal/domain/post"
)

type PostsRepo struct {
	mu    sync.RWMutex
	items map[string]post.Post
}

func NewPostsRepo() *PostsRepo {
	return &PostsRepo{
		items: make(map[string]post.Post),
	}
}

func (r *PostsRepo) Create(ctx context.Context, req post.CreatePostRequest, author identity.Identity) (post.Post, error) {
	p := post.NewFromCreateRequest(req, author)

	r.mu.Lock()
	r.items[p.ID] = p
	r.mu.Unlock()

	return p, nil
}

func matches(p post.Post, filter post.ListPostsFilter) bool {
	if filter.Category != nil && p.Category != *filter.Category {
		return false
	}

	if filter.AuthorID != nil && p.AuthorID != *filter.AuthorID {
		return false
	}

	if filter.Query != nil {
		q := strings.ToLower(*filter.Query)
		if !strings.Contains(strings.ToLower(p.Title), q) &&
			!strings.Contains(strings.ToLower(p.Excerpt), q) {
			return false
		}
	}

	return true
}

func (r *PostsRepo) List(ctx context.Context, filter post.ListPostsFilter) ([]post.Post, int, error) {
	r.mu.RLock()

	all := make([]post.Post, 0, len(r.items))
	for _, p := range r.items {
		if matches(p, filter) {
			all = append(all, p)
		}
	}

	r.mu.RUnlock()

	// newest first, same order as the postgres repo
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)

	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	if offset >= len(all) {
		return []post.Post{}, total, nil
	}

	all = all[offset:]

	if filter.Limit > 0 && filter.Limit < len(all) {
		all = all[:filter.Limit]
	}

	return all, total, nil
}

func (r *PostsRepo) GetByID(ctx context.Context, id string) (post.Post, error) {
	r.mu.RLock()
	p, ok := r.items[id]
	r.mu.RUnlock()

	if !ok {
		return post.Post{}, post.ErrNotFound
	}

	return p, nil
}

func (r *PostsRepo) Update(ctx context.Context, id string, req post.UpdatePostRequest) (post.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.items[id]

	if !ok {
		return post.Post{}, post.ErrNotFound
	}

	p.Title = req.Title
	p.Excerpt = req.Excerpt
	p.Content = req.Content
	p.Category = req.Category
	p.UpdatedAt = time.Now().UTC()

	r.items[id] = p

	return p, nil
}

func (r *PostsRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return post.ErrNotFound
	}

	delete(r.items, id)

	return nil
}

func (r *PostsRepo) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.items), nil
}

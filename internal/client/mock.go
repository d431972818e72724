package client

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soficodes/bloghub/internal/authz"
	"github.com/soficodes/bloghub/internal/domain/identity"
	"github.com/soficodes/bloghub/internal/domain/post"
)

// Mock implements API in memory with the server's semantics: same
// sentinels, same redirect targets, same ownership rules on posts. The
// session store tests and blogctl's offline mode run against it.
type Mock struct {
	mu        sync.Mutex
	users     map[string]identity.Identity // by id
	passwords map[string]string            // user id -> password
	tokens    map[string]string            // token -> user id
	posts     map[string]post.Post
	seq       int
}

func NewMock() *Mock {
	return &Mock{
		users:     make(map[string]identity.Identity),
		passwords: make(map[string]string),
		tokens:    make(map[string]string),
		posts:     make(map[string]post.Post),
	}
}

// SeedUser registers an account directly, bypassing signup rules. Tests
// use it to create admins.
func (m *Mock) SeedUser(name, email, password string, role identity.Role) identity.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := identity.Identity{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     strings.ToLower(email),
		Role:      role,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	m.users[u.ID] = u
	m.passwords[u.ID] = password

	return u
}

// SeedPost inserts a post owned by the given author.
func (m *Mock) SeedPost(author identity.Identity, title, content string) post.Post {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := post.NewFromCreateRequest(post.CreatePostRequest{Title: title, Content: content}, author)
	m.posts[p.ID] = p

	return p
}

func (m *Mock) Authenticate(ctx context.Context, email, password string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.findByEmail(email)

	if !ok || m.passwords[u.ID] != password {
		return Session{}, ErrInvalidCredentials
	}

	return m.issue(u), nil
}

func (m *Mock) Register(ctx context.Context, name, email, password string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.findByEmail(email); ok {
		return Session{}, ErrDuplicateEmail
	}

	u := identity.Identity{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     strings.ToLower(email),
		Role:      identity.RoleUser,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	m.users[u.ID] = u
	m.passwords[u.ID] = password

	return m.issue(u), nil
}

func (m *Mock) FetchProfile(ctx context.Context, token string) (identity.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, err := m.subject(token)

	if err != nil {
		return identity.Identity{}, err
	}

	return u, nil
}

func (m *Mock) UpdateProfile(ctx context.Context, token, name string) (identity.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, err := m.subject(token)

	if err != nil {
		return identity.Identity{}, err
	}

	u.Name = name
	u.UpdatedAt = time.Now().UTC()
	m.users[u.ID] = u

	return u, nil
}

func (m *Mock) RevokeSession(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.tokens, token)

	return nil
}

func (m *Mock) ListPosts(ctx context.Context, filter post.ListPostsFilter) (PostPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]post.Post, 0, len(m.posts))

	for _, p := range m.posts {
		if filter.Category != nil && p.Category != *filter.Category {
			continue
		}

		if filter.AuthorID != nil && p.AuthorID != *filter.AuthorID {
			continue
		}

		if filter.Query != nil {
			q := strings.ToLower(*filter.Query)
			if !strings.Contains(strings.ToLower(p.Title), q) && !strings.Contains(strings.ToLower(p.Excerpt), q) {
				continue
			}
		}

		all = append(all, p)
	}

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	total := len(all)

	limit := filter.Limit

	if limit <= 0 {
		limit = 20
	}

	offset := filter.Offset

	if offset < 0 {
		offset = 0
	}

	if offset > total {
		offset = total
	}

	end := offset + limit

	if end > total {
		end = total
	}

	return PostPage{Posts: all[offset:end], Total: total, Limit: limit, Offset: offset}, nil
}

func (m *Mock) FetchPost(ctx context.Context, id string) (post.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.posts[id]

	if !ok {
		return post.Post{}, ErrNotFound
	}

	return p, nil
}

func (m *Mock) CreatePost(ctx context.Context, token string, req post.CreatePostRequest) (post.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, err := m.subject(token)

	if err != nil {
		return post.Post{}, err
	}

	p := post.NewFromCreateRequest(req, u)
	m.posts[p.ID] = p

	return p, nil
}

func (m *Mock) UpdatePost(ctx context.Context, token, id string, req post.UpdatePostRequest) (post.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, err := m.subject(token)

	if err != nil {
		return post.Post{}, err
	}

	p, ok := m.posts[id]

	if !ok {
		return post.Post{}, ErrNotFound
	}

	if !authz.CanEdit(&u, &p) {
		return post.Post{}, ErrForbidden
	}

	p.Title = req.Title
	p.Content = req.Content
	p.Excerpt = req.Excerpt
	p.Category = req.Category
	p.UpdatedAt = time.Now().UTC()
	m.posts[id] = p

	return p, nil
}

func (m *Mock) DeletePost(ctx context.Context, token, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, err := m.subject(token)

	if err != nil {
		return err
	}

	p, ok := m.posts[id]

	if !ok {
		return ErrNotFound
	}

	if !authz.CanDelete(&u, &p) {
		return ErrForbidden
	}

	delete(m.posts, id)

	return nil
}

// internals, callers hold the lock

func (m *Mock) findByEmail(email string) (identity.Identity, bool) {
	email = strings.ToLower(email)

	for _, u := range m.users {
		if u.Email == email {
			return u, true
		}
	}

	return identity.Identity{}, false
}

func (m *Mock) issue(u identity.Identity) Session {
	m.seq++
	token := fmt.Sprintf("mock-token-%d", m.seq)
	m.tokens[token] = u.ID

	redirect := "/blogs"

	if u.Role == identity.RoleAdmin {
		redirect = "/admin/dashboard"
	}

	return Session{AccessToken: token, User: u, RedirectTo: redirect}
}

func (m *Mock) subject(token string) (identity.Identity, error) {
	id, ok := m.tokens[token]

	if !ok {
		return identity.Identity{}, ErrUnauthorized
	}

	u, ok := m.users[id]

	if !ok {
		return identity.Identity{}, ErrUnauthorized
	}

	return u, nil
}

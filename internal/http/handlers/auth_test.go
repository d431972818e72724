package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/soficodes/bloghub/internal/auth"
	"github.com/soficodes/bloghub/internal/config"
	"github.com/soficodes/bloghub/internal/domain/identity"
	"github.com/soficodes/bloghub/internal/http/handlers"
	"github.com/soficodes/bloghub/internal/security"
)

func newAuthHandler(users *fakeUsersRepo, revoker handlers.AccessRevoker) *handlers.AuthHandler {
	jwt := auth.NewManager("test-secret", 15*time.Minute, 30*24*time.Hour)

	return handlers.NewAuthHandler(users, users, jwt, nil, revoker, config.Config{Env: "test"})
}

type sessionBody struct {
	AccessToken string            `json:"accessToken"`
	User        identity.Identity `json:"user"`
	RedirectTo  string            `json:"redirectTo"`
}

func TestLogin(t *testing.T) {
	hash, err := security.HashPassword("password1")

	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	account := identity.Identity{
		ID:           newUUID(),
		Name:         "Ada",
		Email:        "ada@example.com",
		Role:         identity.RoleUser,
		PasswordHash: hash,
	}

	admin := account
	admin.ID = newUUID()
	admin.Email = "root@example.com"
	admin.Role = identity.RoleAdmin

	tests := []struct {
		name         string
		body         string
		account      *identity.Identity
		wantStatus   int
		wantRedirect string
	}{
		{
			name:         "user lands on the feed",
			body:         `{"email":"ada@example.com","password":"password1"}`,
			account:      &account,
			wantStatus:   http.StatusOK,
			wantRedirect: handlers.RedirectBlogHome,
		},
		{
			name:         "admin lands on the dashboard",
			body:         `{"email":"root@example.com","password":"password1"}`,
			account:      &admin,
			wantStatus:   http.StatusOK,
			wantRedirect: handlers.RedirectAdminHome,
		},
		{
			name:       "wrong password",
			body:       `{"email":"ada@example.com","password":"nope-nope"}`,
			account:    &account,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unknown email",
			body:       `{"email":"ghost@example.com","password":"password1"}`,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed payload",
			body:       `{"email":"not-an-email"}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			users := &fakeUsersRepo{}

			if tc.account != nil {
				acct := *tc.account
				users.getByEmailFn = func(ctx context.Context, email string) (identity.Identity, error) {
					if email == acct.Email {
						return acct, nil
					}
					return identity.Identity{}, identity.ErrNotFound
				}
			}

			h := newAuthHandler(users, nil)

			r := setupRouter(http.MethodPost, "/auth/login", nil, h.Login)

			req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(tc.body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d, body %s", w.Code, tc.wantStatus, w.Body.String())
			}

			if tc.wantStatus != http.StatusOK {
				return
			}

			var body sessionBody

			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}

			if body.AccessToken == "" {
				t.Fatal("missing accessToken")
			}

			if body.RedirectTo != tc.wantRedirect {
				t.Fatalf("redirectTo = %q, want %q", body.RedirectTo, tc.wantRedirect)
			}

			if body.User.PasswordHash != "" {
				t.Fatal("password hash leaked into the response")
			}
		})
	}
}

func TestSignUp(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setup      func(*fakeUsersRepo)
		wantStatus int
	}{
		{
			name: "success creates a regular user",
			body: `{"name":"Ada","email":"ada@example.com","password":"password1"}`,
			setup: func(f *fakeUsersRepo) {
				f.createFn = func(ctx context.Context, email, passwordHash, name string, role identity.Role) (identity.Identity, error) {
					if role != identity.RoleUser {
						t.Fatalf("role = %q, want user", role)
					}
					if passwordHash == "" || passwordHash == "password1" {
						t.Fatal("password stored unhashed")
					}
					return identity.Identity{ID: newUUID(), Name: name, Email: email, Role: role}, nil
				}
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "duplicate email",
			body: `{"name":"Ada","email":"ada@example.com","password":"password1"}`,
			setup: func(f *fakeUsersRepo) {
				f.createFn = func(ctx context.Context, email, passwordHash, name string, role identity.Role) (identity.Identity, error) {
					return identity.Identity{}, identity.ErrEmailTaken
				}
			},
			wantStatus: http.StatusConflict,
		},
		{
			name:       "short password",
			body:       `{"name":"Ada","email":"ada@example.com","password":"short"}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			users := &fakeUsersRepo{}

			if tc.setup != nil {
				tc.setup(users)
			}

			h := newAuthHandler(users, nil)

			r := setupRouter(http.MethodPost, "/auth/signup", nil, h.SignUp)

			req := httptest.NewRequest(http.MethodPost, "/auth/signup", bytes.NewBufferString(tc.body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d, body %s", w.Code, tc.wantStatus, w.Body.String())
			}

			if tc.wantStatus != http.StatusCreated {
				return
			}

			var body sessionBody

			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}

			// self-service accounts never land on the admin dashboard
			if body.RedirectTo != handlers.RedirectBlogHome {
				t.Fatalf("redirectTo = %q, want %q", body.RedirectTo, handlers.RedirectBlogHome)
			}
		})
	}
}

func TestProfileResolvesExistingRow(t *testing.T) {
	subject := identity.Identity{ID: newUUID(), Name: "Ada", Email: "ada@example.com", Role: identity.RoleUser}

	users := &fakeUsersRepo{
		getByIDFn: func(ctx context.Context, id string) (identity.Identity, error) {
			if id != subject.ID {
				t.Fatalf("id = %q, want %q", id, subject.ID)
			}
			return subject, nil
		},
	}

	h := newAuthHandler(users, nil)

	r := setupRouter(http.MethodGet, "/auth/profile", &subject, h.Profile)

	req := httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
}

func TestProfileProvisionsMissingRow(t *testing.T) {
	subject := identity.Identity{ID: newUUID(), Email: "new.user@example.com", Role: identity.RoleUser}

	provisioned := false

	users := &fakeUsersRepo{
		getByIDFn: func(ctx context.Context, id string) (identity.Identity, error) {
			return identity.Identity{}, identity.ErrNotFound
		},
		createFn: func(ctx context.Context, email, passwordHash, name string, role identity.Role) (identity.Identity, error) {
			provisioned = true

			if role != identity.RoleUser {
				t.Fatalf("role = %q, want user", role)
			}

			if name != "new.user" {
				t.Fatalf("name = %q, want the email local-part", name)
			}

			return identity.Identity{ID: subject.ID, Name: name, Email: email, Role: role}, nil
		},
	}

	h := newAuthHandler(users, nil)

	r := setupRouter(http.MethodGet, "/auth/profile", &subject, h.Profile)

	req := httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}

	if !provisioned {
		t.Fatal("default profile was not provisioned")
	}
}

func TestProfileProvisionLosesRaceGracefully(t *testing.T) {
	subject := identity.Identity{ID: newUUID(), Email: "new.user@example.com", Role: identity.RoleUser}
	winner := identity.Identity{ID: subject.ID, Name: "new.user", Email: subject.Email, Role: identity.RoleUser}

	users := &fakeUsersRepo{
		getByIDFn: func(ctx context.Context, id string) (identity.Identity, error) {
			return identity.Identity{}, identity.ErrNotFound
		},
		createFn: func(ctx context.Context, email, passwordHash, name string, role identity.Role) (identity.Identity, error) {
			return identity.Identity{}, identity.ErrEmailTaken
		},
		getByEmailFn: func(ctx context.Context, email string) (identity.Identity, error) {
			return winner, nil
		},
	}

	h := newAuthHandler(users, nil)

	r := setupRouter(http.MethodGet, "/auth/profile", &subject, h.Profile)

	req := httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
}

func TestUpdateProfile(t *testing.T) {
	subject := identity.Identity{ID: newUUID(), Name: "Ada", Email: "ada@example.com", Role: identity.RoleUser}

	tests := []struct {
		name       string
		body       string
		setup      func(*fakeUsersRepo)
		wantStatus int
	}{
		{
			name: "rename succeeds",
			body: `{"name":"Ada L."}`,
			setup: func(f *fakeUsersRepo) {
				f.updateNameFn = func(ctx context.Context, id, name string) (identity.Identity, error) {
					renamed := subject
					renamed.Name = name
					return renamed, nil
				}
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "empty name rejected",
			body:       `{"name":""}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "row gone",
			body: `{"name":"Ada L."}`,
			setup: func(f *fakeUsersRepo) {
				f.updateNameFn = func(ctx context.Context, id, name string) (identity.Identity, error) {
					return identity.Identity{}, identity.ErrNotFound
				}
			},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			users := &fakeUsersRepo{}

			if tc.setup != nil {
				tc.setup(users)
			}

			h := newAuthHandler(users, nil)

			r := setupRouter(http.MethodPut, "/auth/profile", &subject, h.UpdateProfile)

			req := httptest.NewRequest(http.MethodPut, "/auth/profile", bytes.NewBufferString(tc.body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d, body %s", w.Code, tc.wantStatus, w.Body.String())
			}
		})
	}
}

type fakeRevoker struct {
	jti string
	ttl time.Duration
	err error
}

func (f *fakeRevoker) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	f.jti = jti
	f.ttl = ttl
	return f.err
}

func TestLogoutAlwaysSucceeds(t *testing.T) {
	subject := identity.Identity{ID: newUUID(), Email: "ada@example.com", Role: identity.RoleUser}

	tests := []struct {
		name    string
		revoker *fakeRevoker
	}{
		{name: "denylists the access token", revoker: &fakeRevoker{}},
		{name: "still 204 when the denylist write fails", revoker: &fakeRevoker{err: context.DeadlineExceeded}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newAuthHandler(&fakeUsersRepo{}, tc.revoker)

			r := setupRouter(http.MethodPost, "/auth/logout", &subject, h.Logout)

			req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != http.StatusNoContent {
				t.Fatalf("status = %d, want 204", w.Code)
			}

			if tc.revoker.jti == "" {
				t.Fatal("access token was not denylisted")
			}

			if tc.revoker.ttl <= 0 {
				t.Fatalf("ttl = %v, want the token's remaining lifetime", tc.revoker.ttl)
			}
		})
	}
}

package session

import (
	"context"
	"testing"
	"time"

	"github.com/soficodes/bloghub/internal/client"
	"github.com/soficodes/bloghub/internal/domain/identity"
)

func anonymousStore(t *testing.T) *Store {
	t.Helper()

	store := NewStore(&fakeAPI{}, NewMemoryStorage(), nil)

	if err := store.Restore(context.Background()); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	return store
}

func authenticatedStore(t *testing.T, role identity.Role) *Store {
	t.Helper()

	u := testUser(role)

	api := &fakeAPI{
		authenticate: func(ctx context.Context, email, password string) (client.Session, error) {
			return client.Session{AccessToken: "tok-1", User: u, RedirectTo: "/blogs"}, nil
		},
	}

	store := NewStore(api, NewMemoryStorage(), nil)

	if _, err := store.Login(context.Background(), u.Email, "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	return store
}

func TestRequireAuth(t *testing.T) {
	tests := []struct {
		name  string
		store func(t *testing.T) *Store
		want  DecisionKind
	}{
		{
			name:  "uninitialized session is pending",
			store: func(t *testing.T) *Store { return NewStore(&fakeAPI{}, NewMemoryStorage(), nil) },
			want:  DecisionPending,
		},
		{
			name:  "anonymous session redirects to login",
			store: anonymousStore,
			want:  DecisionRedirect,
		},
		{
			name:  "authenticated session is allowed",
			store: func(t *testing.T) *Store { return authenticatedStore(t, identity.RoleUser) },
			want:  DecisionAllow,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			guard := NewGuard(tc.store(t))

			got := guard.RequireAuth()

			if got.Kind != tc.want {
				t.Fatalf("Kind = %v, want %v", got.Kind, tc.want)
			}

			if tc.want == DecisionRedirect && got.Target != TargetLogin {
				t.Fatalf("Target = %q, want %q", got.Target, TargetLogin)
			}
		})
	}
}

func TestRequireAuthPendingWhileRestoring(t *testing.T) {
	release := make(chan struct{})

	api := &fakeAPI{
		fetchProfile: func(ctx context.Context, token string) (identity.Identity, error) {
			<-release
			return testUser(identity.RoleUser), nil
		},
	}

	storage := NewMemoryStorage()
	_ = storage.Save("tok-1")

	store := NewStore(api, storage, nil)
	guard := NewGuard(store)

	done := make(chan struct{})

	go func() {
		defer close(done)
		_ = store.Restore(context.Background())
	}()

	for store.State() != StateRestoring {
		time.Sleep(time.Millisecond)
	}

	if got := guard.RequireAuth(); got.Kind != DecisionPending {
		t.Fatalf("Kind = %v while restoring, want pending", got.Kind)
	}

	close(release)
	<-done

	if got := guard.RequireAuth(); got.Kind != DecisionAllow {
		t.Fatalf("Kind = %v after restore, want allow", got.Kind)
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name       string
		store      func(t *testing.T) *Store
		required   identity.Role
		want       DecisionKind
		wantTarget string
	}{
		{
			name:     "admin reaches admin pages",
			store:    func(t *testing.T) *Store { return authenticatedStore(t, identity.RoleAdmin) },
			required: identity.RoleAdmin,
			want:     DecisionAllow,
		},
		{
			name:       "regular user is bounced to the feed",
			store:      func(t *testing.T) *Store { return authenticatedStore(t, identity.RoleUser) },
			required:   identity.RoleAdmin,
			want:       DecisionRedirect,
			wantTarget: TargetBlogHome,
		},
		{
			name:       "anonymous visitor goes to login",
			store:      anonymousStore,
			required:   identity.RoleAdmin,
			want:       DecisionRedirect,
			wantTarget: TargetLogin,
		},
		{
			name:     "user role gate admits users",
			store:    func(t *testing.T) *Store { return authenticatedStore(t, identity.RoleUser) },
			required: identity.RoleUser,
			want:     DecisionAllow,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			guard := NewGuard(tc.store(t))

			got := guard.RequireRole(tc.required)

			if got.Kind != tc.want {
				t.Fatalf("Kind = %v, want %v", got.Kind, tc.want)
			}

			if tc.wantTarget != "" && got.Target != tc.wantTarget {
				t.Fatalf("Target = %q, want %q", got.Target, tc.wantTarget)
			}
		})
	}
}

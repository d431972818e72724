package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/soficodes/bloghub/internal/client"
	"github.com/soficodes/bloghub/internal/domain/identity"
)

type fakeAPI struct {
	authenticate  func(ctx context.Context, email, password string) (client.Session, error)
	register      func(ctx context.Context, name, email, password string) (client.Session, error)
	fetchProfile  func(ctx context.Context, token string) (identity.Identity, error)
	updateProfile func(ctx context.Context, token, name string) (identity.Identity, error)
	revokeSession func(ctx context.Context, token string) error
}

func (f *fakeAPI) Authenticate(ctx context.Context, email, password string) (client.Session, error) {
	if f.authenticate == nil {
		return client.Session{}, errors.New("unexpected Authenticate call")
	}
	return f.authenticate(ctx, email, password)
}

func (f *fakeAPI) Register(ctx context.Context, name, email, password string) (client.Session, error) {
	if f.register == nil {
		return client.Session{}, errors.New("unexpected Register call")
	}
	return f.register(ctx, name, email, password)
}

func (f *fakeAPI) FetchProfile(ctx context.Context, token string) (identity.Identity, error) {
	if f.fetchProfile == nil {
		return identity.Identity{}, errors.New("unexpected FetchProfile call")
	}
	return f.fetchProfile(ctx, token)
}

func (f *fakeAPI) UpdateProfile(ctx context.Context, token, name string) (identity.Identity, error) {
	if f.updateProfile == nil {
		return identity.Identity{}, errors.New("unexpected UpdateProfile call")
	}
	return f.updateProfile(ctx, token, name)
}

func (f *fakeAPI) RevokeSession(ctx context.Context, token string) error {
	if f.revokeSession == nil {
		return errors.New("unexpected RevokeSession call")
	}
	return f.revokeSession(ctx, token)
}

func testUser(role identity.Role) identity.Identity {
	return identity.Identity{
		ID:    "11111111-1111-1111-1111-111111111111",
		Name:  "Ada",
		Email: "ada@example.com",
		Role:  role,
	}
}

func TestRestoreWithoutTokenStaysOffNetwork(t *testing.T) {
	calls := 0

	api := &fakeAPI{
		fetchProfile: func(ctx context.Context, token string) (identity.Identity, error) {
			calls++
			return identity.Identity{}, nil
		},
	}

	store := NewStore(api, NewMemoryStorage(), nil)

	if err := store.Restore(context.Background()); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	if state, _ := store.Snapshot(); state != StateAnonymous {
		t.Fatalf("state = %v, want anonymous", state)
	}

	if calls != 0 {
		t.Fatalf("FetchProfile called %d times, want 0", calls)
	}
}

func TestRestoreWithValidToken(t *testing.T) {
	want := testUser(identity.RoleUser)

	api := &fakeAPI{
		fetchProfile: func(ctx context.Context, token string) (identity.Identity, error) {
			if token != "tok-1" {
				t.Fatalf("token = %q, want tok-1", token)
			}
			return want, nil
		},
	}

	storage := NewMemoryStorage()
	_ = storage.Save("tok-1")

	store := NewStore(api, storage, nil)

	if err := store.Restore(context.Background()); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	state, user := store.Snapshot()

	if state != StateAuthenticated {
		t.Fatalf("state = %v, want authenticated", state)
	}

	if user == nil || user.ID != want.ID {
		t.Fatalf("user = %+v, want %+v", user, want)
	}

	if store.Token() != "tok-1" {
		t.Fatalf("Token() = %q, want tok-1", store.Token())
	}
}

func TestRestoreClearsDeadToken(t *testing.T) {
	api := &fakeAPI{
		fetchProfile: func(ctx context.Context, token string) (identity.Identity, error) {
			return identity.Identity{}, client.ErrUnauthorized
		},
	}

	storage := NewMemoryStorage()
	_ = storage.Save("stale")

	store := NewStore(api, storage, nil)

	if err := store.Restore(context.Background()); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	if state, _ := store.Snapshot(); state != StateAnonymous {
		t.Fatalf("state = %v, want anonymous", state)
	}

	if tok, _ := storage.Load(); tok != "" {
		t.Fatalf("stored token = %q, want cleared", tok)
	}
}

func TestRestoreKeepsTokenOnTransientFailure(t *testing.T) {
	api := &fakeAPI{
		fetchProfile: func(ctx context.Context, token string) (identity.Identity, error) {
			return identity.Identity{}, errors.New("connection refused")
		},
	}

	storage := NewMemoryStorage()
	_ = storage.Save("tok-1")

	store := NewStore(api, storage, nil)

	if err := store.Restore(context.Background()); err == nil {
		t.Fatal("Restore returned nil, want error")
	}

	if state, _ := store.Snapshot(); state != StateAnonymous {
		t.Fatalf("state = %v, want anonymous", state)
	}

	if tok, _ := storage.Load(); tok != "tok-1" {
		t.Fatalf("stored token = %q, want kept for next start", tok)
	}
}

func TestRestoreRunsOnce(t *testing.T) {
	calls := 0

	api := &fakeAPI{
		fetchProfile: func(ctx context.Context, token string) (identity.Identity, error) {
			calls++
			return testUser(identity.RoleUser), nil
		},
	}

	storage := NewMemoryStorage()
	_ = storage.Save("tok-1")

	store := NewStore(api, storage, nil)

	_ = store.Restore(context.Background())
	_ = store.Restore(context.Background())

	if calls != 1 {
		t.Fatalf("FetchProfile called %d times, want 1", calls)
	}
}

func TestLoginRedirectsByRole(t *testing.T) {
	tests := []struct {
		name     string
		role     identity.Role
		redirect string
	}{
		{name: "regular user lands on the feed", role: identity.RoleUser, redirect: "/blogs"},
		{name: "admin lands on the dashboard", role: identity.RoleAdmin, redirect: "/admin/dashboard"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			u := testUser(tc.role)

			api := &fakeAPI{
				authenticate: func(ctx context.Context, email, password string) (client.Session, error) {
					return client.Session{AccessToken: "tok-1", User: u, RedirectTo: tc.redirect}, nil
				},
			}

			storage := NewMemoryStorage()
			store := NewStore(api, storage, nil)

			target, err := store.Login(context.Background(), u.Email, "pw")

			if err != nil {
				t.Fatalf("Login: %v", err)
			}

			if target != tc.redirect {
				t.Fatalf("redirect = %q, want %q", target, tc.redirect)
			}

			state, got := store.Snapshot()

			if state != StateAuthenticated || got == nil || got.Role != tc.role {
				t.Fatalf("state = %v user = %+v", state, got)
			}

			if tok, _ := storage.Load(); tok != "tok-1" {
				t.Fatalf("stored token = %q, want tok-1", tok)
			}
		})
	}
}

func TestLoginFailureLeavesAnonymous(t *testing.T) {
	api := &fakeAPI{
		authenticate: func(ctx context.Context, email, password string) (client.Session, error) {
			return client.Session{}, client.ErrInvalidCredentials
		},
	}

	store := NewStore(api, NewMemoryStorage(), nil)

	_, err := store.Login(context.Background(), "ada@example.com", "wrong")

	if !errors.Is(err, client.ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}

	if state, user := store.Snapshot(); state != StateAnonymous || user != nil {
		t.Fatalf("state = %v user = %+v, want anonymous/nil", state, user)
	}
}

func TestSignupLandsOnFeed(t *testing.T) {
	api := &fakeAPI{
		register: func(ctx context.Context, name, email, password string) (client.Session, error) {
			u := testUser(identity.RoleUser)
			return client.Session{AccessToken: "tok-1", User: u, RedirectTo: "/blogs"}, nil
		},
	}

	store := NewStore(api, NewMemoryStorage(), nil)

	target, err := store.Signup(context.Background(), "Ada", "ada@example.com", "password1")

	if err != nil {
		t.Fatalf("Signup: %v", err)
	}

	if target != "/blogs" {
		t.Fatalf("redirect = %q, want /blogs", target)
	}
}

func TestLogoutClearsLocallyEvenWhenRevocationFails(t *testing.T) {
	revoked := ""

	api := &fakeAPI{
		authenticate: func(ctx context.Context, email, password string) (client.Session, error) {
			return client.Session{AccessToken: "tok-1", User: testUser(identity.RoleUser), RedirectTo: "/blogs"}, nil
		},
		revokeSession: func(ctx context.Context, token string) error {
			revoked = token
			return errors.New("server unreachable")
		},
	}

	storage := NewMemoryStorage()
	store := NewStore(api, storage, nil)

	if _, err := store.Login(context.Background(), "ada@example.com", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	target := store.Logout(context.Background())

	if target != TargetLanding {
		t.Fatalf("redirect = %q, want %q", target, TargetLanding)
	}

	if state, user := store.Snapshot(); state != StateAnonymous || user != nil {
		t.Fatalf("state = %v user = %+v, want anonymous/nil", state, user)
	}

	if store.Token() != "" {
		t.Fatalf("Token() = %q, want empty", store.Token())
	}

	if tok, _ := storage.Load(); tok != "" {
		t.Fatalf("stored token = %q, want cleared", tok)
	}

	if revoked != "tok-1" {
		t.Fatalf("revoked token = %q, want tok-1", revoked)
	}
}

func TestStaleRestoreDoesNotClobberLogin(t *testing.T) {
	loginUser := testUser(identity.RoleAdmin)
	restoreUser := testUser(identity.RoleUser)

	release := make(chan struct{})

	api := &fakeAPI{
		fetchProfile: func(ctx context.Context, token string) (identity.Identity, error) {
			<-release
			return restoreUser, nil
		},
		authenticate: func(ctx context.Context, email, password string) (client.Session, error) {
			return client.Session{AccessToken: "fresh", User: loginUser, RedirectTo: "/admin/dashboard"}, nil
		},
	}

	storage := NewMemoryStorage()
	_ = storage.Save("stale")

	store := NewStore(api, storage, nil)

	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		_ = store.Restore(context.Background())
	}()

	// wait for the restore to be in flight
	for store.State() != StateRestoring {
		time.Sleep(time.Millisecond)
	}

	if _, err := store.Login(context.Background(), loginUser.Email, "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	close(release)
	wg.Wait()

	state, user := store.Snapshot()

	if state != StateAuthenticated || user == nil || user.Role != identity.RoleAdmin {
		t.Fatalf("state = %v user = %+v, want the login outcome to stand", state, user)
	}

	if store.Token() != "fresh" {
		t.Fatalf("Token() = %q, want fresh", store.Token())
	}
}

func TestFailedLoginKeepsExistingSession(t *testing.T) {
	attempts := 0

	api := &fakeAPI{
		authenticate: func(ctx context.Context, email, password string) (client.Session, error) {
			attempts++
			if attempts == 1 {
				return client.Session{AccessToken: "tok-1", User: testUser(identity.RoleUser), RedirectTo: "/blogs"}, nil
			}
			return client.Session{}, client.ErrInvalidCredentials
		},
	}

	store := NewStore(api, NewMemoryStorage(), nil)

	if _, err := store.Login(context.Background(), "ada@example.com", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if _, err := store.Login(context.Background(), "other@example.com", "wrong"); err == nil {
		t.Fatal("second Login returned nil, want error")
	}

	state, user := store.Snapshot()

	if state != StateAuthenticated || user == nil {
		t.Fatalf("state = %v user = %+v, want the original session intact", state, user)
	}
}

func TestIsLoading(t *testing.T) {
	store := NewStore(&fakeAPI{}, NewMemoryStorage(), nil)

	if !store.IsLoading() {
		t.Fatal("IsLoading = false before Restore, want true")
	}

	if err := store.Restore(context.Background()); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	if store.IsLoading() {
		t.Fatal("IsLoading = true after settling, want false")
	}
}

func TestUpdateNameRequiresAuthentication(t *testing.T) {
	store := NewStore(&fakeAPI{}, NewMemoryStorage(), nil)

	_, err := store.UpdateName(context.Background(), "New Name")

	if !errors.Is(err, client.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

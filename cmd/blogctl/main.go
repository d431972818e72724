// blogctl drives the bloghub API from the terminal. It carries the same
// session core a UI would embed: credentials live in the session store,
// navigation-style checks go through the guard, and every request goes
// through the typed API client. With -mock it runs against an in-process
// fake instead of a server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/soficodes/bloghub/internal/client"
	"github.com/soficodes/bloghub/internal/domain/identity"
	"github.com/soficodes/bloghub/internal/domain/post"
	"github.com/soficodes/bloghub/internal/notifications"
	"github.com/soficodes/bloghub/internal/observability"
	"github.com/soficodes/bloghub/internal/session"
)

const usage = `usage: blogctl [flags] <command> [args]

commands:
  signup <name> <email> <password>   create an account and sign in
  login <email> <password>           sign in
  logout                             sign out
  whoami                             show the signed-in profile
  rename <name>                      change the profile name
  posts list [flags]                 list posts
  posts get <id>                     show one post
  posts create [flags]               write a post (signed in)
  posts update <id> [flags]          edit a post (author or admin)
  posts delete <id>                  delete a post (author or admin)

flags:
  -server URL     API base URL (default http://localhost:8080)
  -mock           run against an in-process fake with seeded data
  -token-file P   where the session token lives (default ~/.bloghub/token)
`

type app struct {
	api   client.API
	store *session.Store
	guard *session.Guard
}

func main() {
	server := flag.String("server", "http://localhost:8080", "API base URL")
	mock := flag.Bool("mock", false, "use an in-process fake API")
	tokenFile := flag.String("token-file", defaultTokenPath(), "session token file")

	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	logger := observability.NewLogger("dev")

	var (
		api     client.API
		storage session.TokenStorage
	)

	if *mock {
		m := client.NewMock()
		seedMock(m)
		api = m
		storage = session.NewMemoryStorage()
	} else {
		api = client.NewHTTPClient(*server)
		storage = session.NewFileStorage(*tokenFile)
	}

	store := session.NewStore(api, storage, notifications.NewLogNotifier(logger))

	a := &app{
		api:   api,
		store: store,
		guard: session.NewGuard(store),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := store.Restore(ctx); err != nil {
		// already noticed via the notifier; commands decide what a
		// signed-out session means for them
		_ = err
	}

	if err := a.run(ctx, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	switch args[0] {
	case "signup":
		return a.signup(ctx, args[1:])
	case "login":
		return a.login(ctx, args[1:])
	case "logout":
		a.store.Logout(ctx)
		fmt.Println("signed out")
		return nil
	case "whoami":
		return a.whoami()
	case "rename":
		return a.rename(ctx, args[1:])
	case "posts":
		if len(args) < 2 {
			return fmt.Errorf("posts needs a subcommand")
		}
		return a.posts(ctx, args[1], args[2:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func (a *app) signup(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("signup needs <name> <email> <password>")
	}

	target, err := a.store.Signup(ctx, args[0], args[1], args[2])

	if err != nil {
		return err
	}

	fmt.Println("account created, next stop:", target)

	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("login needs <email> <password>")
	}

	target, err := a.store.Login(ctx, args[0], args[1])

	if err != nil {
		return err
	}

	fmt.Println("signed in, next stop:", target)

	return nil
}

func (a *app) whoami() error {
	state, user := a.store.Snapshot()

	if state != session.StateAuthenticated {
		fmt.Println("not signed in")
		return nil
	}

	return printJSON(user)
}

func (a *app) rename(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("rename needs <name>")
	}

	if err := a.requireAuth(); err != nil {
		return err
	}

	u, err := a.store.UpdateName(ctx, args[0])

	if err != nil {
		return err
	}

	return printJSON(u)
}

func (a *app) posts(ctx context.Context, sub string, args []string) error {
	switch sub {
	case "list":
		return a.listPosts(ctx, args)
	case "get":
		if len(args) != 1 {
			return fmt.Errorf("posts get needs <id>")
		}

		p, err := a.api.FetchPost(ctx, args[0])

		if err != nil {
			return err
		}

		return printJSON(p)
	case "create":
		return a.createPost(ctx, args)
	case "update":
		return a.updatePost(ctx, args)
	case "delete":
		if len(args) != 1 {
			return fmt.Errorf("posts delete needs <id>")
		}

		if err := a.requireAuth(); err != nil {
			return err
		}

		if err := a.api.DeletePost(ctx, a.store.Token(), args[0]); err != nil {
			return err
		}

		fmt.Println("deleted")

		return nil
	default:
		return fmt.Errorf("unknown posts subcommand %q", sub)
	}
}

func (a *app) listPosts(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("posts list", flag.ContinueOnError)
	category := fs.String("category", "", "filter by category")
	author := fs.String("author", "", "filter by author id")
	query := fs.String("q", "", "full-text filter")
	limit := fs.Int("limit", 20, "page size")
	offset := fs.Int("offset", 0, "page offset")

	if err := fs.Parse(args); err != nil {
		return err
	}

	filter := post.ListPostsFilter{Limit: *limit, Offset: *offset}

	if *category != "" {
		filter.Category = category
	}

	if *author != "" {
		filter.AuthorID = author
	}

	if *query != "" {
		filter.Query = query
	}

	page, err := a.api.ListPosts(ctx, filter)

	if err != nil {
		return err
	}

	return printJSON(page)
}

func (a *app) createPost(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("posts create", flag.ContinueOnError)
	title := fs.String("title", "", "post title")
	content := fs.String("content", "", "post body")
	excerpt := fs.String("excerpt", "", "short summary")
	category := fs.String("category", "", "category")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := a.requireAuth(); err != nil {
		return err
	}

	p, err := a.api.CreatePost(ctx, a.store.Token(), post.CreatePostRequest{
		Title:    *title,
		Content:  *content,
		Excerpt:  *excerpt,
		Category: *category,
	})

	if err != nil {
		return err
	}

	return printJSON(p)
}

func (a *app) updatePost(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("posts update needs <id>")
	}

	id := args[0]

	fs := flag.NewFlagSet("posts update", flag.ContinueOnError)
	title := fs.String("title", "", "post title")
	content := fs.String("content", "", "post body")
	excerpt := fs.String("excerpt", "", "short summary")
	category := fs.String("category", "", "category")

	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	if err := a.requireAuth(); err != nil {
		return err
	}

	p, err := a.api.UpdatePost(ctx, a.store.Token(), id, post.UpdatePostRequest{
		Title:    *title,
		Content:  *content,
		Excerpt:  *excerpt,
		Category: *category,
	})

	if err != nil {
		return err
	}

	return printJSON(p)
}

// requireAuth maps the guard's navigation verdict onto a CLI error.
func (a *app) requireAuth() error {
	switch d := a.guard.RequireAuth(); d.Kind {
	case session.DecisionAllow:
		return nil
	case session.DecisionRedirect:
		return fmt.Errorf("%s (try: blogctl login)", d.Notice)
	default:
		return fmt.Errorf("session not ready, try again")
	}
}

func seedMock(m *client.Mock) {
	admin := m.SeedUser("Site Admin", "admin@example.com", "admin123", identity.RoleAdmin)
	writer := m.SeedUser("Ada", "ada@example.com", "password1", identity.RoleUser)

	m.SeedPost(admin, "Welcome to bloghub", "This instance is seeded with demo data.")
	m.SeedPost(writer, "First post", "Hello from the mock backend.")
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")

	if err != nil {
		return err
	}

	fmt.Println(string(out))

	return nil
}

func defaultTokenPath() string {
	home, err := os.UserHomeDir()

	if err != nil {
		return ".bloghub-token"
	}

	return filepath.Join(home, ".bloghub", "token")
}

package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/soficodes/bloghub/internal/domain/identity"
	"github.com/soficodes/bloghub/internal/domain/post"
)

func author(name string) identity.Identity {
	return identity.Identity{
		ID:    "author-" + name,
		Name:  name,
		Email: name + "@example.com",
		Role:  identity.RoleUser,
	}
}

func TestPostsRepoCreateDenormalizesAuthor(t *testing.T) {
	r := NewPostsRepo()
	ctx := context.Background()

	ada := author("ada")

	p, err := r.Create(ctx, post.CreatePostRequest{Title: "Hello Go", Content: "body"}, ada)

	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if p.AuthorID != ada.ID || p.Author.Name != "ada" || p.Author.Role != identity.RoleUser {
		t.Fatalf("author fields = %+v, want denormalized from %+v", p, ada)
	}

	got, err := r.GetByID(ctx, p.ID)

	if err != nil || got.Title != "Hello Go" {
		t.Fatalf("GetByID = %+v, %v", got, err)
	}
}

func TestPostsRepoListFilters(t *testing.T) {
	r := NewPostsRepo()
	ctx := context.Background()

	ada := author("ada")
	bob := author("bob")

	seed := []struct {
		author   identity.Identity
		title    string
		category string
	}{
		{ada, "Channels in practice", "go"},
		{ada, "Gardening notes", "life"},
		{bob, "Goroutine leaks", "go"},
	}

	for _, s := range seed {
		req := post.CreatePostRequest{Title: s.title, Content: "body", Category: s.category}
		if _, err := r.Create(ctx, req, s.author); err != nil {
			t.Fatalf("Create %q: %v", s.title, err)
		}
	}

	goCat := "go"

	posts, total, err := r.List(ctx, post.ListPostsFilter{Category: &goCat, Limit: 10})

	if err != nil || total != 2 || len(posts) != 2 {
		t.Fatalf("category filter: len = %d total = %d err = %v", len(posts), total, err)
	}

	posts, total, err = r.List(ctx, post.ListPostsFilter{AuthorID: &ada.ID, Limit: 10})

	if err != nil || total != 2 {
		t.Fatalf("author filter: total = %d err = %v", total, err)
	}

	for _, p := range posts {
		if p.AuthorID != ada.ID {
			t.Fatalf("author filter leaked %+v", p)
		}
	}

	q := "goroutine"

	posts, total, err = r.List(ctx, post.ListPostsFilter{Query: &q, Limit: 10})

	if err != nil || total != 1 || posts[0].Title != "Goroutine leaks" {
		t.Fatalf("query filter: %+v total = %d err = %v", posts, total, err)
	}

	posts, total, err = r.List(ctx, post.ListPostsFilter{Offset: -1, Limit: 10})

	if err != nil || total != 3 || len(posts) != 3 {
		t.Fatalf("negative offset: len = %d total = %d err = %v, want full page", len(posts), total, err)
	}
}

func TestPostsRepoUpdateKeepsAuthor(t *testing.T) {
	r := NewPostsRepo()
	ctx := context.Background()

	ada := author("ada")

	p, err := r.Create(ctx, post.CreatePostRequest{Title: "Draft title", Content: "v1"}, ada)

	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := r.Update(ctx, p.ID, post.UpdatePostRequest{Title: "Final title", Content: "v2"})

	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if updated.Title != "Final title" || updated.Content != "v2" {
		t.Fatalf("Update = %+v", updated)
	}

	if updated.AuthorID != ada.ID || !updated.CreatedAt.Equal(p.CreatedAt) {
		t.Fatalf("Update touched immutable fields: %+v", updated)
	}
}

func TestPostsRepoDelete(t *testing.T) {
	r := NewPostsRepo()
	ctx := context.Background()

	p, err := r.Create(ctx, post.CreatePostRequest{Title: "Hello Go", Content: "body"}, author("ada"))

	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := r.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := r.GetByID(ctx, p.ID); !errors.Is(err, post.ErrNotFound) {
		t.Fatalf("GetByID after delete = %v, want ErrNotFound", err)
	}

	if err := r.Delete(ctx, p.ID); !errors.Is(err, post.ErrNotFound) {
		t.Fatalf("second Delete = %v, want ErrNotFound", err)
	}
}

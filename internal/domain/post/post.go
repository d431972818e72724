package post

import (
	"errors"
	"time"

	"github.com/soficodes/bloghub/internal/domain/identity"
)

// Author is the slice of a profile that list pages render next to a post.
type Author struct {
	Name string        `json:"name"`
	Role identity.Role `json:"role"`
}

type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Excerpt   string    `json:"excerpt,omitempty"`
	Content   string    `json:"content"`
	Category  string    `json:"category,omitempty"`
	AuthorID  string    `json:"authorId"` // set once at creation, immutable
	Author    Author    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// with pointers if optional, it will be nil
type ListPostsFilter struct {
	Category *string
	AuthorID *string
	Query    *string
	Limit    int
	Offset   int
}

var ErrNotFound = errors.New("post not found")

type CreatePostRequest struct {
	Title    string `json:"title" binding:"required,min=3,max=200"`
	Excerpt  string `json:"excerpt" binding:"omitempty,max=500"`
	Content  string `json:"content" binding:"required"`
	Category string `json:"category" binding:"omitempty,min=2,max=80"`
}

// a full update payload; authorId and createdAt are never updatable.
type UpdatePostRequest struct {
	Title    string `json:"title" binding:"required,min=3,max=200"`
	Excerpt  string `json:"excerpt" binding:"omitempty,max=500"`
	Content  string `json:"content" binding:"required"`
	Category string `json:"category" binding:"omitempty,min=2,max=80"`
}

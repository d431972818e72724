package post

import (
	"time"

	"github.com/google/uuid"

	"github.com/soficodes/bloghub/internal/domain/identity"
)

func NewFromCreateRequest(req CreatePostRequest, author identity.Identity) Post {
	now := time.Now().UTC()

	return Post{
		ID:       uuid.NewString(),
		Title:    req.Title,
		Excerpt:  req.Excerpt,
		Content:  req.Content,
		Category: req.Category,
		AuthorID: author.ID,
		Author: Author{
			Name: author.Name,
			Role: author.Role,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

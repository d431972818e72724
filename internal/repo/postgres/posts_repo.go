package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soficodes/bloghub/internal/domain/identity"
	"github.com/soficodes/bloghub/internal/domain/post"
	"github.com/soficodes/bloghub/internal/observability"
)

type PostsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewPostsRepo(pool *pgxpool.Pool, prom *observability.Prom) *PostsRepo {
	return &PostsRepo{
		pool: pool,
		prom: prom,
	}
}

func (r *PostsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

const postSelect = `
	SELECT p.id,
		p.title,
		p.excerpt,
		p.content,
		p.category,
		p.author_id,
		COALESCE(u.name, ''),
		COALESCE(u.role, 'user'),
		p.created_at,
		p.updated_at
	FROM posts p
	LEFT JOIN users u ON u.id = p.author_id
`

func scanPost(row pgx.Row) (post.Post, error) {
	var p post.Post

	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Excerpt,
		&p.Content,
		&p.Category,
		&p.AuthorID,
		&p.Author.Name,
		&p.Author.Role,
		&p.CreatedAt,
		&p.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return post.Post{}, post.ErrNotFound
		}

		return post.Post{}, err
	}

	return p, nil
}

func (r *PostsRepo) Create(ctx context.Context, req post.CreatePostRequest, author identity.Identity) (post.Post, error) {
	p := post.NewFromCreateRequest(req, author)

	err := r.observe("posts.create", func() error {
		_, e := r.pool.Exec(ctx,
			`INSERT INTO posts (id, title, excerpt, content, category, author_id, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			p.ID, p.Title, p.Excerpt, p.Content, p.Category, p.AuthorID, p.CreatedAt, p.UpdatedAt,
		)
		return e
	})

	if err != nil {
		return post.Post{}, err
	}

	return p, nil
}

func (r *PostsRepo) List(ctx context.Context, filter post.ListPostsFilter) ([]post.Post, int, error) {
	var conds []string
	var args []interface{}

	argsPosition := 1

	if filter.Category != nil {
		conds = append(conds, fmt.Sprintf("p.category = $%d", argsPosition))
		args = append(args, *filter.Category)
		argsPosition++
	}

	if filter.AuthorID != nil {
		conds = append(conds, fmt.Sprintf("p.author_id = $%d", argsPosition))
		args = append(args, *filter.AuthorID)
		argsPosition++
	}

	if filter.Query != nil {
		conds = append(conds, fmt.Sprintf("(p.title ILIKE '%%' || $%d || '%%' OR p.excerpt ILIKE '%%' || $%d || '%%')", argsPosition, argsPosition))
		args = append(args, *filter.Query)
		argsPosition++
	}

	query := strings.Replace(postSelect, "SELECT p.id,", "SELECT p.id, COUNT(*) OVER() AS total,", 1)

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	// newest first, matching the blog listing order
	query += fmt.Sprintf(" ORDER BY p.created_at DESC, p.id DESC LIMIT $%d OFFSET $%d", argsPosition, argsPosition+1)

	args = append(args, filter.Limit, filter.Offset)

	var out []post.Post
	total := 0

	err := r.observe("posts.list", func() error {
		rows, err := r.pool.Query(ctx, query, args...)

		if err != nil {
			return err
		}

		defer rows.Close()

		out = make([]post.Post, 0, filter.Limit)

		for rows.Next() {
			var p post.Post
			var t int

			err = rows.Scan(
				&p.ID,
				&t,
				&p.Title,
				&p.Excerpt,
				&p.Content,
				&p.Category,
				&p.AuthorID,
				&p.Author.Name,
				&p.Author.Role,
				&p.CreatedAt,
				&p.UpdatedAt,
			)

			if err != nil {
				return err
			}

			total = t
			out = append(out, p)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, 0, err
	}

	return out, total, nil
}

func (r *PostsRepo) GetByID(ctx context.Context, id string) (post.Post, error) {
	var p post.Post

	err := r.observe("posts.get_by_id", func() error {
		var e error
		p, e = scanPost(r.pool.QueryRow(ctx, postSelect+` WHERE p.id = $1`, id))
		return e
	})

	if err != nil {
		return post.Post{}, err
	}

	return p, nil
}

func (r *PostsRepo) Update(ctx context.Context, id string, req post.UpdatePostRequest) (post.Post, error) {
	var p post.Post

	err := r.observe("posts.update", func() error {
		tag, e := r.pool.Exec(ctx,
			`UPDATE posts
			 SET title = $2,
				 excerpt = $3,
				 content = $4,
				 category = $5,
				 updated_at = NOW()
			 WHERE id = $1`,
			id, req.Title, req.Excerpt, req.Content, req.Category,
		)

		if e != nil {
			return e
		}

		if tag.RowsAffected() == 0 {
			return post.ErrNotFound
		}

		// re-read through the join so the author fields stay populated
		p, e = scanPost(r.pool.QueryRow(ctx, postSelect+` WHERE p.id = $1`, id))
		return e
	})

	if err != nil {
		return post.Post{}, err
	}

	return p, nil
}

func (r *PostsRepo) Delete(ctx context.Context, id string) error {
	return r.observe("posts.delete", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)

		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return post.ErrNotFound
		}

		return nil
	})
}

func (r *PostsRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.observe("posts.count", func() error {
		return r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM posts`).Scan(&n)
	})
	return n, err
}

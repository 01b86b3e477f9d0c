package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BorisDmv/blog-platform/internal/models"
)

const pgUniqueViolation = "23505"

type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	const usersTableSQL = `CREATE TABLE IF NOT EXISTS users (
	    id UUID PRIMARY KEY,
	    username TEXT NOT NULL UNIQUE,
	    email TEXT NOT NULL UNIQUE,
	    password_hash TEXT NOT NULL,
	    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`
	if _, err := s.pool.Exec(ctx, usersTableSQL); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}

	const postsTableSQL = `CREATE TABLE IF NOT EXISTS posts (
	    id UUID PRIMARY KEY,
	    title TEXT NOT NULL,
	    content TEXT NOT NULL,
	    slug TEXT NOT NULL UNIQUE,
	    owner UUID NOT NULL REFERENCES users(id),
	    author TEXT NOT NULL,
	    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`
	if _, err := s.pool.Exec(ctx, postsTableSQL); err != nil {
		return fmt.Errorf("create posts table: %w", err)
	}

	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS posts_owner_idx ON posts (owner)`,
		`CREATE INDEX IF NOT EXISTS posts_created_at_idx ON posts (created_at DESC)`,
	} {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create posts index: %w", err)
		}
	}

	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	const query = `
		INSERT INTO users (id, username, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id::text, username, email, password_hash, created_at
	`

	var created models.User
	err := s.pool.QueryRow(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.CreatedAt,
	).Scan(
		&created.ID,
		&created.Username,
		&created.Email,
		&created.PasswordHash,
		&created.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", pgConstraint(err))
	}
	return &created, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if uuid.Validate(id) != nil {
		return nil, nil
	}
	return s.getUser(ctx, "id", id)
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, "username", username)
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "email", email)
}

func (s *PostgresStore) getUser(ctx context.Context, column, value string) (*models.User, error) {
	query := `
		SELECT id::text, username, email, password_hash, created_at
		FROM users
		WHERE ` + column + ` = $1
	`
	var user models.User
	err := s.pool.QueryRow(ctx, query, value).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by %s: %w", column, err)
	}
	return &user, nil
}

const pgPostColumns = `id::text, title, content, slug, owner::text, author, created_at, updated_at`

func (s *PostgresStore) ListPosts(ctx context.Context) ([]models.Post, error) {
	return s.queryPosts(ctx, `
		SELECT `+pgPostColumns+`
		FROM posts
		ORDER BY created_at DESC, id DESC
	`)
}

func (s *PostgresStore) ListPostsByOwner(ctx context.Context, owner string) ([]models.Post, error) {
	if uuid.Validate(owner) != nil {
		return []models.Post{}, nil
	}
	return s.queryPosts(ctx, `
		SELECT `+pgPostColumns+`
		FROM posts
		WHERE owner = $1
		ORDER BY created_at DESC, id DESC
	`, owner)
}

func (s *PostgresStore) queryPosts(ctx context.Context, query string, args ...any) ([]models.Post, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := make([]models.Post, 0)
	for rows.Next() {
		post, err := scanPgPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return posts, nil
}

func scanPgPost(row pgx.Row) (*models.Post, error) {
	var post models.Post
	if err := row.Scan(
		&post.ID,
		&post.Title,
		&post.Content,
		&post.Slug,
		&post.Owner,
		&post.Author,
		&post.CreatedAt,
		&post.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("scan post: %w", err)
	}
	return &post, nil
}

func (s *PostgresStore) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	if uuid.Validate(id) != nil {
		return nil, nil
	}
	return s.getPost(ctx, "id", id)
}

func (s *PostgresStore) GetPostBySlug(ctx context.Context, slug string) (*models.Post, error) {
	return s.getPost(ctx, "slug", slug)
}

func (s *PostgresStore) getPost(ctx context.Context, column, value string) (*models.Post, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+pgPostColumns+`
		FROM posts
		WHERE `+column+` = $1
	`, value)

	post, err := scanPgPost(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get post by %s: %w", column, err)
	}
	return post, nil
}

func (s *PostgresStore) CreatePost(ctx context.Context, post models.Post) (*models.Post, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO posts (id, title, content, slug, owner, author, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+pgPostColumns,
		post.ID,
		post.Title,
		post.Content,
		post.Slug,
		post.Owner,
		post.Author,
		post.CreatedAt,
		post.UpdatedAt,
	)

	created, err := scanPgPost(row)
	if err != nil {
		return nil, fmt.Errorf("create post: %w", pgConstraint(err))
	}
	return created, nil
}

func (s *PostgresStore) UpdatePost(ctx context.Context, post models.Post) (*models.Post, error) {
	if uuid.Validate(post.ID) != nil {
		return nil, nil
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE posts
		SET title = $2, content = $3, updated_at = $4
		WHERE id = $1
		RETURNING `+pgPostColumns,
		post.ID,
		post.Title,
		post.Content,
		post.UpdatedAt,
	)

	updated, err := scanPgPost(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("update post: %w", err)
	}
	return updated, nil
}

func (s *PostgresStore) DeletePost(ctx context.Context, id string) (bool, error) {
	if uuid.Validate(id) != nil {
		return false, nil
	}

	tag, err := s.pool.Exec(ctx, "DELETE FROM posts WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("delete post: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func pgConstraint(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return errors.Join(models.ErrDuplicate, err)
	}
	return err
}

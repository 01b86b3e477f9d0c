package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/BorisDmv/blog-platform/internal/models"
)

// SQLiteStore implements Store on an embedded SQLite database. Timestamps
// are stored as unix nanoseconds.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// a single connection serialises writes and keeps :memory: databases
	// shared across calls
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err := migrateSQLite(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func migrateSQLite(ctx context.Context, db *sql.DB) error {
	const schema = `
		PRAGMA busy_timeout = 5000;
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT    PRIMARY KEY,
			username      TEXT    NOT NULL UNIQUE,
			email         TEXT    NOT NULL UNIQUE,
			password_hash TEXT    NOT NULL,
			created_at    INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS posts (
			id         TEXT    PRIMARY KEY,
			title      TEXT    NOT NULL,
			content    TEXT    NOT NULL,
			slug       TEXT    NOT NULL UNIQUE,
			owner      TEXT    NOT NULL REFERENCES users(id),
			author     TEXT    NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS posts_owner_idx ON posts (owner);
		CREATE INDEX IF NOT EXISTS posts_created_at_idx ON posts (created_at);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, username, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)",
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.CreatedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", sqliteConstraint(err))
	}
	return &user, nil
}

func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, "id", id)
}

func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, "username", username)
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "email", email)
}

// getUser looks a user up by a fixed column name; column is never user input.
func (s *SQLiteStore) getUser(ctx context.Context, column, value string) (*models.User, error) {
	var (
		user    models.User
		created int64
	)

	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, email, password_hash, created_at FROM users WHERE "+column+" = ?",
		value,
	).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user by %s: %w", column, err)
	}
	user.CreatedAt = time.Unix(0, created).UTC()

	return &user, nil
}

const sqlitePostColumns = "id, title, content, slug, owner, author, created_at, updated_at"

func (s *SQLiteStore) ListPosts(ctx context.Context) ([]models.Post, error) {
	return s.queryPosts(ctx,
		"SELECT "+sqlitePostColumns+" FROM posts ORDER BY created_at DESC, id DESC")
}

func (s *SQLiteStore) ListPostsByOwner(ctx context.Context, owner string) ([]models.Post, error) {
	return s.queryPosts(ctx,
		"SELECT "+sqlitePostColumns+" FROM posts WHERE owner = ? ORDER BY created_at DESC, id DESC", owner)
}

func (s *SQLiteStore) queryPosts(ctx context.Context, query string, args ...any) ([]models.Post, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := make([]models.Post, 0)
	for rows.Next() {
		post, err := scanSQLitePost(rows)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLitePost(row rowScanner) (*models.Post, error) {
	var (
		post             models.Post
		created, updated int64
	)

	if err := row.Scan(
		&post.ID,
		&post.Title,
		&post.Content,
		&post.Slug,
		&post.Owner,
		&post.Author,
		&created,
		&updated,
	); err != nil {
		return nil, fmt.Errorf("scan post: %w", err)
	}
	post.CreatedAt = time.Unix(0, created).UTC()
	post.UpdatedAt = time.Unix(0, updated).UTC()

	return &post, nil
}

func (s *SQLiteStore) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	return s.getPost(ctx, "id", id)
}

func (s *SQLiteStore) GetPostBySlug(ctx context.Context, slug string) (*models.Post, error) {
	return s.getPost(ctx, "slug", slug)
}

func (s *SQLiteStore) getPost(ctx context.Context, column, value string) (*models.Post, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+sqlitePostColumns+" FROM posts WHERE "+column+" = ?", value)

	post, err := scanSQLitePost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get post by %s: %w", column, err)
	}
	return post, nil
}

func (s *SQLiteStore) CreatePost(ctx context.Context, post models.Post) (*models.Post, error) {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO posts ("+sqlitePostColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		post.ID,
		post.Title,
		post.Content,
		post.Slug,
		post.Owner,
		post.Author,
		post.CreatedAt.UnixNano(),
		post.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert post: %w", sqliteConstraint(err))
	}
	return &post, nil
}

func (s *SQLiteStore) UpdatePost(ctx context.Context, post models.Post) (*models.Post, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE posts SET title = ?, content = ?, updated_at = ? WHERE id = ?",
		post.Title,
		post.Content,
		post.UpdatedAt.UnixNano(),
		post.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}
	if n == 0 {
		return nil, nil
	}

	return s.GetPostByID(ctx, post.ID)
}

func (s *SQLiteStore) DeletePost(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM posts WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete post: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete post: %w", err)
	}
	return n > 0, nil
}

func sqliteConstraint(err error) error {
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return errors.Join(models.ErrDuplicate, err)
		}
	}
	return err
}

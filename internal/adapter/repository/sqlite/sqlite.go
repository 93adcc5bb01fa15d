// Package sqlite provides a URL repository backed by a SQLite database,
// suitable for single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/vadimbarashkov/shorturl/internal/entity"
)

const schema = `CREATE TABLE IF NOT EXISTS urls (
	short_code INTEGER PRIMARY KEY CHECK (short_code > 0),
	original_url TEXT NOT NULL UNIQUE,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

func isUniqueViolationError(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// Open connects to the database at dsn and creates the urls table if needed.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	const op = "adapter.repository.sqlite.Open"

	db, err := sqlx.ConnectContext(ctx, "sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}

	// SQLite has a single writer, and every connection to ":memory:" is a
	// separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: failed to create urls table: %w", op, err)
	}

	return db, nil
}

type urlDB struct {
	ShortCode   int64     `db:"short_code"`
	OriginalURL string    `db:"original_url"`
	CreatedAt   time.Time `db:"created_at"`
}

func (u *urlDB) toEntity() *entity.URL {
	return &entity.URL{
		ShortCode:   u.ShortCode,
		OriginalURL: u.OriginalURL,
		CreatedAt:   u.CreatedAt.UTC(),
	}
}

type URLRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewURLRepository(db *sqlx.DB) *URLRepository {
	return &URLRepository{
		db:  db,
		now: time.Now,
	}
}

func (r *URLRepository) FindByOriginalURL(ctx context.Context, originalURL string) (*entity.URL, error) {
	const op = "adapter.repository.sqlite.URLRepository.FindByOriginalURL"
	const query = `SELECT short_code, original_url, created_at FROM urls WHERE original_url = ?`

	var url urlDB

	if err := r.db.GetContext(ctx, &url, query, originalURL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get row from urls table: %w", op, err)
	}

	return url.toEntity(), nil
}

func (r *URLRepository) FindMaxShortCode(ctx context.Context) (int64, error) {
	const op = "adapter.repository.sqlite.URLRepository.FindMaxShortCode"
	const query = `SELECT COALESCE(MAX(short_code), 0) FROM urls`

	var maxCode int64

	if err := r.db.GetContext(ctx, &maxCode, query); err != nil {
		return 0, fmt.Errorf("%s: failed to get max short code from urls table: %w", op, err)
	}

	return maxCode, nil
}

func (r *URLRepository) Insert(ctx context.Context, originalURL string, shortCode int64) (*entity.URL, error) {
	const op = "adapter.repository.sqlite.URLRepository.Insert"
	const query = `INSERT INTO urls(short_code, original_url, created_at) VALUES (?, ?, ?)`

	url := urlDB{
		ShortCode:   shortCode,
		OriginalURL: originalURL,
		CreatedAt:   r.now().UTC(),
	}

	if _, err := r.db.ExecContext(ctx, query, url.ShortCode, url.OriginalURL, url.CreatedAt); err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrDuplicateKey)
		}

		return nil, fmt.Errorf("%s: failed to insert into urls table: %w", op, err)
	}

	return url.toEntity(), nil
}

func (r *URLRepository) FindByShortCode(ctx context.Context, shortCode int64) (*entity.URL, error) {
	const op = "adapter.repository.sqlite.URLRepository.FindByShortCode"
	const query = `SELECT short_code, original_url, created_at FROM urls WHERE short_code = ?`

	var url urlDB

	if err := r.db.GetContext(ctx, &url, query, shortCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get row from urls table: %w", op, err)
	}

	return url.toEntity(), nil
}

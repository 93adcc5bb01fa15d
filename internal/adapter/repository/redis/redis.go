// Package redis provides a read-through cache for short code lookups.
//
// Records are never mutated or deleted once stored, so a cached entry cannot
// go stale. Only FindByShortCode is cached; allocation always goes to the
// underlying store.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vadimbarashkov/shorturl/internal/entity"
)

const (
	keyPrefix  = "short:"
	defaultTTL = time.Hour
)

type urlRepository interface {
	FindByOriginalURL(ctx context.Context, originalURL string) (*entity.URL, error)
	FindMaxShortCode(ctx context.Context) (int64, error)
	Insert(ctx context.Context, originalURL string, shortCode int64) (*entity.URL, error)
	FindByShortCode(ctx context.Context, shortCode int64) (*entity.URL, error)
}

type cachedURL struct {
	OriginalURL string    `json:"original_url"`
	CreatedAt   time.Time `json:"created_at"`
}

type Option func(*URLRepository)

func WithTTL(ttl time.Duration) Option {
	return func(r *URLRepository) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *URLRepository) {
		r.logger = logger
	}
}

// URLRepository wraps another repository and caches short code lookups in Redis.
// Cache failures are logged and never fail a lookup.
type URLRepository struct {
	next   urlRepository
	client redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

func NewURLRepository(next urlRepository, client redis.Cmdable, opts ...Option) *URLRepository {
	r := &URLRepository{
		next:   next,
		client: client,
		ttl:    defaultTTL,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func cacheKey(shortCode int64) string {
	return keyPrefix + strconv.FormatInt(shortCode, 10)
}

func (r *URLRepository) FindByOriginalURL(ctx context.Context, originalURL string) (*entity.URL, error) {
	return r.next.FindByOriginalURL(ctx, originalURL)
}

func (r *URLRepository) FindMaxShortCode(ctx context.Context) (int64, error) {
	return r.next.FindMaxShortCode(ctx)
}

func (r *URLRepository) Insert(ctx context.Context, originalURL string, shortCode int64) (*entity.URL, error) {
	return r.next.Insert(ctx, originalURL, shortCode)
}

func (r *URLRepository) FindByShortCode(ctx context.Context, shortCode int64) (*entity.URL, error) {
	const op = "adapter.repository.redis.URLRepository.FindByShortCode"

	key := cacheKey(shortCode)

	if url, err := r.get(ctx, key, shortCode); err == nil {
		return url, nil
	} else if !errors.Is(err, redis.Nil) {
		r.logger.WarnContext(ctx, "failed to read cached url",
			slog.String("op", op),
			slog.String("key", key),
			slog.Any("err", err),
		)
	}

	url, err := r.next.FindByShortCode(ctx, shortCode)
	if err != nil {
		return nil, err
	}

	if err := r.set(ctx, key, url); err != nil {
		r.logger.WarnContext(ctx, "failed to cache url",
			slog.String("op", op),
			slog.String("key", key),
			slog.Any("err", err),
		)
	}

	return url, nil
}

func (r *URLRepository) get(ctx context.Context, key string, shortCode int64) (*entity.URL, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}

	var cached cachedURL
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, fmt.Errorf("failed to decode cached url: %w", err)
	}

	return &entity.URL{
		ShortCode:   shortCode,
		OriginalURL: cached.OriginalURL,
		CreatedAt:   cached.CreatedAt,
	}, nil
}

func (r *URLRepository) set(ctx context.Context, key string, url *entity.URL) error {
	data, err := json.Marshal(cachedURL{
		OriginalURL: url.OriginalURL,
		CreatedAt:   url.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode url: %w", err)
	}

	return r.client.Set(ctx, key, data, r.ttl).Err()
}

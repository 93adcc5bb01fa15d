// Package memory provides a process-local URL repository. It honours the same
// uniqueness contract as the database adapters and is meant for development
// runs and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vadimbarashkov/shorturl/internal/entity"
)

type URLRepository struct {
	mu      sync.RWMutex
	byURL   map[string]entity.URL
	byCode  map[int64]entity.URL
	maxCode int64
	now     func() time.Time
}

func NewURLRepository() *URLRepository {
	return &URLRepository{
		byURL:  make(map[string]entity.URL),
		byCode: make(map[int64]entity.URL),
		now:    time.Now,
	}
}

func (r *URLRepository) FindByOriginalURL(_ context.Context, originalURL string) (*entity.URL, error) {
	const op = "adapter.repository.memory.URLRepository.FindByOriginalURL"

	r.mu.RLock()
	defer r.mu.RUnlock()

	url, ok := r.byURL[originalURL]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	return &url, nil
}

func (r *URLRepository) FindMaxShortCode(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.maxCode, nil
}

func (r *URLRepository) Insert(ctx context.Context, originalURL string, shortCode int64) (*entity.URL, error) {
	const op = "adapter.repository.memory.URLRepository.Insert"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byURL[originalURL]; ok {
		return nil, fmt.Errorf("%s: original url: %w", op, entity.ErrDuplicateKey)
	}
	if _, ok := r.byCode[shortCode]; ok {
		return nil, fmt.Errorf("%s: short code: %w", op, entity.ErrDuplicateKey)
	}

	url := entity.URL{
		OriginalURL: originalURL,
		ShortCode:   shortCode,
		CreatedAt:   r.now().UTC(),
	}
	r.byURL[originalURL] = url
	r.byCode[shortCode] = url
	r.maxCode = max(r.maxCode, shortCode)

	return &url, nil
}

func (r *URLRepository) FindByShortCode(_ context.Context, shortCode int64) (*entity.URL, error) {
	const op = "adapter.repository.memory.URLRepository.FindByShortCode"

	r.mu.RLock()
	defer r.mu.RUnlock()

	url, ok := r.byCode[shortCode]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	return &url, nil
}

// Len returns the number of stored records.
func (r *URLRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byURL)
}

package usecase

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadimbarashkov/shorturl/internal/adapter/repository/memory"
	"github.com/vadimbarashkov/shorturl/internal/entity"
	"github.com/vadimbarashkov/shorturl/internal/metrics"
	"golang.org/x/sync/errgroup"
)

func TestURLUseCase_Scenario(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewURLRepository()
	uc := New(repo)

	url, err := uc.ShortenURL(ctx, "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", url.OriginalURL)
	assert.Equal(t, int64(1), url.ShortCode)

	url, err = uc.ShortenURL(ctx, "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", url.OriginalURL)
	assert.Equal(t, int64(1), url.ShortCode)

	url, err = uc.ShortenURL(ctx, "https://other.com")
	require.NoError(t, err)
	assert.Equal(t, int64(2), url.ShortCode)

	url, err = uc.ResolveShortCode(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "https://other.com", url.OriginalURL)

	url, err = uc.ResolveShortCode(ctx, "3")
	assert.ErrorIs(t, err, entity.ErrURLNotFound)
	assert.Nil(t, url)

	assert.Equal(t, 2, repo.Len())
}

func TestURLUseCase_Idempotence(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewURLRepository()
	uc := New(repo)

	urls := []string{
		"https://example.com",
		"http://example.com",
		"https://example.com/path?q=1#frag",
		"http://localhost:8080",
		"http://127.0.0.1:65535/x",
		"http://[::1]:3000",
	}

	for _, u := range urls {
		first, err := uc.ShortenURL(ctx, u)
		require.NoError(t, err)

		second, err := uc.ShortenURL(ctx, u)
		require.NoError(t, err)

		assert.Equal(t, first.OriginalURL, second.OriginalURL)
		assert.Equal(t, first.ShortCode, second.ShortCode)
	}

	assert.Equal(t, len(urls), repo.Len())
}

func TestURLUseCase_UniqueCodesAndRoundTrip(t *testing.T) {
	ctx := context.Background()
	uc := New(memory.NewURLRepository())

	seen := make(map[int64]string)

	for i := range 50 {
		u := fmt.Sprintf("https://example.com/%d", i)

		url, err := uc.ShortenURL(ctx, u)
		require.NoError(t, err)

		assert.Positive(t, url.ShortCode)
		assert.NotContains(t, seen, url.ShortCode)
		seen[url.ShortCode] = u

		resolved, err := uc.ResolveShortCode(ctx, strconv.FormatInt(url.ShortCode, 10))
		require.NoError(t, err)
		assert.Equal(t, u, resolved.OriginalURL)
	}
}

func TestURLUseCase_InvalidURLCreatesNothing(t *testing.T) {
	repo := memory.NewURLRepository()
	uc := New(repo)

	for _, raw := range []string{"not a url", "https://.", "http://-.-", "https://example.com:99999"} {
		url, err := uc.ShortenURL(context.Background(), raw)

		assert.ErrorIs(t, err, entity.ErrInvalidURL, raw)
		assert.Nil(t, url, raw)
	}

	assert.Zero(t, repo.Len())
}

func TestURLUseCase_NotFound(t *testing.T) {
	uc := New(memory.NewURLRepository())

	url, err := uc.ResolveShortCode(context.Background(), "999999")

	assert.ErrorIs(t, err, entity.ErrURLNotFound)
	assert.Nil(t, url)
}

// racingRepository holds the first n readers of the maximum code until all of
// them have read it, so every one of them computes the same candidate.
type racingRepository struct {
	*memory.URLRepository
	n       int64
	reads   atomic.Int64
	arrived sync.WaitGroup
}

func newRacingRepository(n int) *racingRepository {
	r := &racingRepository{
		URLRepository: memory.NewURLRepository(),
		n:             int64(n),
	}
	r.arrived.Add(n)

	return r
}

func (r *racingRepository) FindMaxShortCode(ctx context.Context) (int64, error) {
	maxCode, err := r.URLRepository.FindMaxShortCode(ctx)

	if r.reads.Add(1) <= r.n {
		r.arrived.Done()
		r.arrived.Wait()
	}

	return maxCode, err
}

func TestURLUseCase_ConcurrentAllocation(t *testing.T) {
	const n = 16

	repo := newRacingRepository(n)
	m := metrics.New(prometheus.NewRegistry())
	uc := New(repo, WithMaxAttempts(n), WithMetrics(m))

	codes := make([]int64, n)

	g, ctx := errgroup.WithContext(context.Background())
	for i := range n {
		g.Go(func() error {
			url, err := uc.ShortenURL(ctx, fmt.Sprintf("https://example.com/%d", i))
			if err != nil {
				return err
			}
			codes[i] = url.ShortCode
			return nil
		})
	}
	require.NoError(t, g.Wait())

	seen := make(map[int64]struct{}, n)
	for _, code := range codes {
		assert.Positive(t, code)
		assert.LessOrEqual(t, code, int64(n))
		seen[code] = struct{}{}
	}
	assert.Len(t, seen, n)
	assert.Equal(t, n, repo.Len())

	assert.GreaterOrEqual(t, testutil.ToFloat64(m.AllocationConflicts), float64(n-1))
	assert.Equal(t, float64(n), testutil.ToFloat64(m.Allocated))
	assert.Zero(t, testutil.ToFloat64(m.AllocationExhausted))
}

func TestURLUseCase_ConcurrentSameURL(t *testing.T) {
	const n = 8

	repo := newRacingRepository(n)
	uc := New(repo, WithMaxAttempts(n))

	codes := make([]int64, n)

	g, ctx := errgroup.WithContext(context.Background())
	for i := range n {
		g.Go(func() error {
			url, err := uc.ShortenURL(ctx, "https://example.com")
			if err != nil {
				return err
			}
			codes[i] = url.ShortCode
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for _, code := range codes {
		assert.Equal(t, int64(1), code)
	}
	assert.Equal(t, 1, repo.Len())
}

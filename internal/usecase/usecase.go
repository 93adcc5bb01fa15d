package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/shorturl/internal/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const defaultMaxAttempts = 5

type urlRepository interface {
	FindByOriginalURL(ctx context.Context, originalURL string) (*entity.URL, error)
	FindMaxShortCode(ctx context.Context) (int64, error)
	Insert(ctx context.Context, originalURL string, shortCode int64) (*entity.URL, error)
	FindByShortCode(ctx context.Context, shortCode int64) (*entity.URL, error)
}

type urlMetrics interface {
	Shorten()
	Allocate()
	Resolve()
	Conflict()
	Exhaust()
}

type nopMetrics struct{}

func (nopMetrics) Shorten()  {}
func (nopMetrics) Allocate() {}
func (nopMetrics) Resolve()  {}
func (nopMetrics) Conflict() {}
func (nopMetrics) Exhaust()  {}

type Option func(*URLUseCase)

// WithMaxAttempts bounds the number of lookup-then-allocate rounds of ShortenURL.
// Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(uc *URLUseCase) {
		if n > 0 {
			uc.maxAttempts = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(uc *URLUseCase) {
		uc.logger = logger
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(uc *URLUseCase) {
		uc.tracer = tracer
	}
}

func WithMetrics(m urlMetrics) Option {
	return func(uc *URLUseCase) {
		uc.metrics = m
	}
}

// URLUseCase allocates numeric short codes for URLs and resolves them back.
// It keeps no state between calls: the next code is always derived from the
// maximum currently stored, so several instances may share one store.
type URLUseCase struct {
	urlRepo     urlRepository
	validate    *validator.Validate
	maxAttempts int
	logger      *slog.Logger
	tracer      trace.Tracer
	metrics     urlMetrics
}

func New(urlRepo urlRepository, opts ...Option) *URLUseCase {
	uc := &URLUseCase{
		urlRepo:     urlRepo,
		validate:    validator.New(),
		maxAttempts: defaultMaxAttempts,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:      noop.NewTracerProvider().Tracer(""),
		metrics:     nopMetrics{},
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// ShortenURL returns the record for originalURL, allocating the next short code
// when the URL has not been seen before.
//
// Allocation reads the current maximum and inserts max+1. A concurrent submitter
// may win the same candidate, in which case the store rejects the insert with
// entity.ErrDuplicateKey and the whole round is repeated from a fresh read.
func (uc *URLUseCase) ShortenURL(ctx context.Context, originalURL string) (*entity.URL, error) {
	const op = "usecase.URLUseCase.ShortenURL"

	ctx, span := uc.tracer.Start(ctx, op)
	defer span.End()

	if err := uc.validateURL(originalURL); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for attempt := 1; attempt <= uc.maxAttempts; attempt++ {
		url, err := uc.urlRepo.FindByOriginalURL(ctx, originalURL)
		if err == nil {
			uc.metrics.Shorten()
			span.SetAttributes(attribute.Int64("short_code", url.ShortCode))
			return url, nil
		}
		if !errors.Is(err, entity.ErrURLNotFound) {
			return nil, uc.storageError(span, op, "failed to find url", err)
		}

		maxCode, err := uc.urlRepo.FindMaxShortCode(ctx)
		if err != nil {
			return nil, uc.storageError(span, op, "failed to find max short code", err)
		}
		candidate := maxCode + 1

		url, err = uc.urlRepo.Insert(ctx, originalURL, candidate)
		if err == nil {
			uc.metrics.Allocate()
			uc.metrics.Shorten()
			span.SetAttributes(
				attribute.Int64("short_code", url.ShortCode),
				attribute.Int("attempts", attempt),
			)
			uc.logger.InfoContext(ctx, "short code allocated",
				slog.String("op", op),
				slog.Int64("short_code", url.ShortCode),
			)
			return url, nil
		}
		if !errors.Is(err, entity.ErrDuplicateKey) {
			return nil, uc.storageError(span, op, "failed to insert url", err)
		}

		uc.metrics.Conflict()
		uc.logger.DebugContext(ctx, "short code taken concurrently, retrying",
			slog.String("op", op),
			slog.Int64("candidate", candidate),
			slog.Int("attempt", attempt),
		)

		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	uc.metrics.Exhaust()
	span.SetStatus(codes.Error, entity.ErrAllocationConflict.Error())

	return nil, fmt.Errorf("%s: %w after %d attempts", op, entity.ErrAllocationConflict, uc.maxAttempts)
}

// ResolveShortCode parses shortCode and returns the record stored under it.
func (uc *URLUseCase) ResolveShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "usecase.URLUseCase.ResolveShortCode"

	ctx, span := uc.tracer.Start(ctx, op)
	defer span.End()

	code, err := parseShortCode(shortCode)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	span.SetAttributes(attribute.Int64("short_code", code))

	url, err := uc.urlRepo.FindByShortCode(ctx, code)
	if err != nil {
		if errors.Is(err, entity.ErrURLNotFound) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		return nil, uc.storageError(span, op, "failed to find url", err)
	}

	uc.metrics.Resolve()

	return url, nil
}

func (uc *URLUseCase) validateURL(rawURL string) error {
	if err := uc.validate.Var(rawURL, "required,http_url"); err != nil {
		return entity.ErrInvalidURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return entity.ErrInvalidURL
	}

	switch u.Scheme {
	case "http", "https":
	default:
		return entity.ErrInvalidURL
	}

	if err := uc.validate.Var(u.Hostname(), "required,hostname_rfc1123|ip"); err != nil {
		return entity.ErrInvalidURL
	}

	if port := u.Port(); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil || n < 1 || n > 65535 {
			return entity.ErrInvalidURL
		}
	}

	return nil
}

func (uc *URLUseCase) storageError(span trace.Span, op, msg string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)

	return fmt.Errorf("%s: %s: %w: %w", op, msg, entity.ErrStorageUnavailable, err)
}

// parseShortCode accepts plain base-10 digits only; signs, spaces and
// trailing characters are rejected with entity.ErrInvalidShortCode. A numeric
// code too large for int64 can never have been allocated, so it reports
// entity.ErrURLNotFound without a store lookup.
func parseShortCode(s string) (int64, error) {
	n, err := strconv.ParseUint(s, 10, 63)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, entity.ErrURLNotFound
		}
		return 0, entity.ErrInvalidShortCode
	}

	return int64(n), nil
}

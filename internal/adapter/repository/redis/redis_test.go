package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"github.com/vadimbarashkov/shorturl/internal/entity"
	"github.com/vadimbarashkov/shorturl/mocks/usecase"
)

type URLRepositoryTestSuite struct {
	suite.Suite
	errUnknown error
	createdAt  time.Time
	ttl        time.Duration
	nextMock   *usecase.MockUrlRepository
	redisMock  redismock.ClientMock
	repo       *URLRepository
}

func (suite *URLRepositoryTestSuite) SetupSuite() {
	suite.errUnknown = errors.New("unknown error")
	suite.createdAt = time.Date(2024, time.October, 1, 12, 0, 0, 0, time.UTC)
	suite.ttl = 10 * time.Minute
}

func (suite *URLRepositoryTestSuite) SetupSubTest() {
	client, redisMock := redismock.NewClientMock()

	suite.nextMock = usecase.NewMockUrlRepository(suite.T())
	suite.redisMock = redisMock
	suite.repo = NewURLRepository(suite.nextMock, client, WithTTL(suite.ttl))
}

func (suite *URLRepositoryTestSuite) TearDownSubTest() {
	suite.NoError(suite.redisMock.ExpectationsWereMet())
	suite.nextMock.AssertExpectations(suite.T())
}

func (suite *URLRepositoryTestSuite) payload(originalURL string) []byte {
	data, err := json.Marshal(cachedURL{OriginalURL: originalURL, CreatedAt: suite.createdAt})
	suite.Require().NoError(err)
	return data
}

func (suite *URLRepositoryTestSuite) TestFindByShortCode() {
	suite.Run("cache hit", func() {
		suite.redisMock.ExpectGet("short:1").SetVal(string(suite.payload("https://example.com")))

		url, err := suite.repo.FindByShortCode(context.Background(), 1)

		suite.NoError(err)
		suite.Equal(&entity.URL{
			ShortCode:   1,
			OriginalURL: "https://example.com",
			CreatedAt:   suite.createdAt,
		}, url)
	})

	suite.Run("cache miss", func() {
		suite.redisMock.ExpectGet("short:2").RedisNil()
		suite.nextMock.
			On("FindByShortCode", mock.Anything, int64(2)).
			Once().
			Return(&entity.URL{OriginalURL: "https://other.com", ShortCode: 2, CreatedAt: suite.createdAt}, nil)
		suite.redisMock.ExpectSet("short:2", suite.payload("https://other.com"), suite.ttl).SetVal("OK")

		url, err := suite.repo.FindByShortCode(context.Background(), 2)

		suite.NoError(err)
		suite.Equal("https://other.com", url.OriginalURL)
		suite.Equal(int64(2), url.ShortCode)
	})

	suite.Run("cache unavailable", func() {
		suite.redisMock.ExpectGet("short:3").SetErr(suite.errUnknown)
		suite.nextMock.
			On("FindByShortCode", mock.Anything, int64(3)).
			Once().
			Return(&entity.URL{OriginalURL: "https://example.com", ShortCode: 3, CreatedAt: suite.createdAt}, nil)
		suite.redisMock.ExpectSet("short:3", suite.payload("https://example.com"), suite.ttl).SetErr(suite.errUnknown)

		url, err := suite.repo.FindByShortCode(context.Background(), 3)

		suite.NoError(err)
		suite.Equal("https://example.com", url.OriginalURL)
	})

	suite.Run("corrupted entry", func() {
		suite.redisMock.ExpectGet("short:4").SetVal("{")
		suite.nextMock.
			On("FindByShortCode", mock.Anything, int64(4)).
			Once().
			Return(&entity.URL{OriginalURL: "https://example.com", ShortCode: 4, CreatedAt: suite.createdAt}, nil)
		suite.redisMock.ExpectSet("short:4", suite.payload("https://example.com"), suite.ttl).SetVal("OK")

		url, err := suite.repo.FindByShortCode(context.Background(), 4)

		suite.NoError(err)
		suite.Equal(int64(4), url.ShortCode)
	})

	suite.Run("url not found is not cached", func() {
		suite.redisMock.ExpectGet("short:5").RedisNil()
		suite.nextMock.
			On("FindByShortCode", mock.Anything, int64(5)).
			Once().
			Return(nil, entity.ErrURLNotFound)

		url, err := suite.repo.FindByShortCode(context.Background(), 5)

		suite.Error(err)
		suite.ErrorIs(err, entity.ErrURLNotFound)
		suite.Nil(url)
	})

	suite.Run("storage error", func() {
		suite.redisMock.ExpectGet("short:6").RedisNil()
		suite.nextMock.
			On("FindByShortCode", mock.Anything, int64(6)).
			Once().
			Return(nil, suite.errUnknown)

		url, err := suite.repo.FindByShortCode(context.Background(), 6)

		suite.Error(err)
		suite.ErrorIs(err, suite.errUnknown)
		suite.Nil(url)
	})
}

func (suite *URLRepositoryTestSuite) TestDelegation() {
	suite.Run("find by original url", func() {
		suite.nextMock.
			On("FindByOriginalURL", mock.Anything, "https://example.com").
			Once().
			Return(nil, entity.ErrURLNotFound)

		url, err := suite.repo.FindByOriginalURL(context.Background(), "https://example.com")

		suite.ErrorIs(err, entity.ErrURLNotFound)
		suite.Nil(url)
	})

	suite.Run("find max short code", func() {
		suite.nextMock.
			On("FindMaxShortCode", mock.Anything).
			Once().
			Return(int64(9), nil)

		maxCode, err := suite.repo.FindMaxShortCode(context.Background())

		suite.NoError(err)
		suite.Equal(int64(9), maxCode)
	})

	suite.Run("insert", func() {
		suite.nextMock.
			On("Insert", mock.Anything, "https://example.com", int64(10)).
			Once().
			Return(nil, entity.ErrDuplicateKey)

		url, err := suite.repo.Insert(context.Background(), "https://example.com", 10)

		suite.ErrorIs(err, entity.ErrDuplicateKey)
		suite.Nil(url)
	})
}

func TestURLRepository(t *testing.T) {
	suite.Run(t, new(URLRepositoryTestSuite))
}

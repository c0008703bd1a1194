//go:build integration

package cache_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rollscan/internal/domain"
	"rollscan/internal/verify/cache"
	"rollscan/pkg/testutil/containers"
)

type PayloadCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *cache.PayloadCache
}

func TestPayloadCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PayloadCacheSuite))
}

func (s *PayloadCacheSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.cache = cache.New(s.redis.Client, time.Minute)
}

func (s *PayloadCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *PayloadCacheSuite) TestRoundTrip() {
	ctx := context.Background()
	key := domain.RecordKey{EpicID: "WB/12/345/00000001", ACNumber: 253, PartNumber: 1, SerialNo: "12"}
	payload := json.RawMessage(`[{"applicantFullName":"RAM KUMAR DAS","age":52}]`)

	_, ok, err := s.cache.Get(ctx, key)
	s.Require().NoError(err)
	s.False(ok)

	s.Require().NoError(s.cache.Set(ctx, key, payload))

	got, ok, err := s.cache.Get(ctx, key)
	s.Require().NoError(err)
	s.True(ok)
	s.JSONEq(string(payload), string(got))
}

func (s *PayloadCacheSuite) TestKeysAreScopedToRecord() {
	ctx := context.Background()
	a := domain.RecordKey{EpicID: "WB/A", ACNumber: 253, PartNumber: 1, SerialNo: "1"}
	b := domain.RecordKey{EpicID: "WB/A", ACNumber: 253, PartNumber: 1, SerialNo: "2"}

	s.Require().NoError(s.cache.Set(ctx, a, json.RawMessage(`[]`)))

	_, ok, err := s.cache.Get(ctx, b)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *PayloadCacheSuite) TestExpiry() {
	ctx := context.Background()
	short := cache.New(s.redis.Client, 50*time.Millisecond)
	key := domain.RecordKey{EpicID: "WB/A", ACNumber: 253, PartNumber: 1, SerialNo: "1"}

	s.Require().NoError(short.Set(ctx, key, json.RawMessage(`[]`)))
	time.Sleep(100 * time.Millisecond)

	_, ok, err := short.Get(ctx, key)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *PayloadCacheSuite) TestNilCacheIsDisabled() {
	var disabled *cache.PayloadCache
	ctx := context.Background()
	key := domain.RecordKey{EpicID: "WB/A"}

	s.Require().NoError(disabled.Set(ctx, key, json.RawMessage(`[]`)))
	_, ok, err := disabled.Get(ctx, key)
	s.Require().NoError(err)
	s.False(ok)
}

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
)

type record struct {
	Name  string `msgpack:"name"`
	Count int    `msgpack:"count"`
}

type CacheTestSuite struct {
	suite.Suite
	conn   redis.UniversalClient
	client *Client
}

func TestCacheSuite(t *testing.T) {
	conn := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379", DB: 9})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := conn.Ping(ctx).Err(); err != nil {
		conn.Close()
		t.Skipf("redis not available: %v", err)
	}
	suite.Run(t, &CacheTestSuite{conn: conn})
}

func (s *CacheTestSuite) SetupTest() {
	s.Require().NoError(s.conn.FlushDB(context.Background()).Err())
	client, err := New(s.conn, "test")
	s.Require().NoError(err)
	s.client = client
}

func (s *CacheTestSuite) TearDownSuite() {
	s.conn.Close()
}

func (s *CacheTestSuite) TestSetNXOnlyOnce() {
	ctx := context.Background()
	ok, err := s.client.SetNX(ctx, "k", record{Name: "a", Count: 1}, time.Minute)
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.client.SetNX(ctx, "k", record{Name: "b", Count: 2}, time.Minute)
	s.Require().NoError(err)
	s.False(ok)

	var got record
	found, err := s.client.Get(ctx, "k", &got)
	s.Require().NoError(err)
	s.True(found)
	s.Equal(record{Name: "a", Count: 1}, got)
}

func (s *CacheTestSuite) TestUpdateKeepsTTL() {
	ctx := context.Background()
	updated, err := s.client.Update(ctx, "missing", record{})
	s.Require().NoError(err)
	s.False(updated)

	_, err = s.client.SetNX(ctx, "k", record{Name: "a"}, time.Hour)
	s.Require().NoError(err)
	updated, err = s.client.Update(ctx, "k", record{Name: "b"})
	s.Require().NoError(err)
	s.True(updated)

	ttl, err := s.conn.TTL(ctx, s.client.store("k")).Result()
	s.Require().NoError(err)
	s.Greater(ttl, 59*time.Minute)

	var got record
	_, err = s.client.Get(ctx, "k", &got)
	s.Require().NoError(err)
	s.Equal("b", got.Name)
}

func (s *CacheTestSuite) TestGetMissingAndInvalidate() {
	ctx := context.Background()
	var got record
	found, err := s.client.Get(ctx, "nope", &got)
	s.Require().NoError(err)
	s.False(found)

	_, err = s.client.SetNX(ctx, "k", "raw", 0)
	s.Require().NoError(err)
	var raw string
	found, err = s.client.Get(ctx, "k", &raw)
	s.Require().NoError(err)
	s.True(found)
	s.Equal("raw", raw)

	s.Require().NoError(s.client.Invalidate(ctx, "k"))
	found, err = s.client.Get(ctx, "k", &raw)
	s.Require().NoError(err)
	s.False(found)
}

package oracle_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CedricPei/MAS-RAG/internal/oracle"
	"github.com/CedricPei/MAS-RAG/internal/oracle/oracletest"
)

func TestCachedServesDeterministicRequests(t *testing.T) {
	fake := oracletest.Texts(`{"doc":"first"}`, `{"doc":"second"}`)
	cache := oracletest.NewMemoryCache()
	c := oracle.NewCached(fake, cache, "openai:test", nil)
	ctx := context.Background()
	req := oracle.Request{System: "s", User: "u", Format: oracle.FormatJSONObject}

	first, err := c.Generate(ctx, req)
	require.NoError(t, err)
	second, err := c.Generate(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, `{"doc":"first"}`, first)
	assert.Equal(t, first, second)
	assert.Len(t, fake.Requests(), 1)
	assert.Equal(t, 1, cache.Len())
}

func TestCachedBypassesSampledRequests(t *testing.T) {
	fake := oracletest.Texts("a", "b")
	cache := oracletest.NewMemoryCache()
	c := oracle.NewCached(fake, cache, "ns", nil)
	req := oracle.Request{User: "u", Temperature: 0.4}

	first, _ := c.Generate(context.Background(), req)
	second, _ := c.Generate(context.Background(), req)

	assert.Equal(t, "a", first)
	assert.Equal(t, "b", second)
	assert.Equal(t, 0, cache.Len())
}

func TestCachedDoesNotStoreFailuresOrBlanks(t *testing.T) {
	fake := oracletest.New(
		oracletest.Reply{Err: errors.New("down")},
		oracletest.Reply{Text: "  "},
	)
	cache := oracletest.NewMemoryCache()
	c := oracle.NewCached(fake, cache, "ns", nil)
	req := oracle.Request{User: "u"}

	_, err := c.Generate(context.Background(), req)
	assert.Error(t, err)
	_, err = c.Generate(context.Background(), req)
	assert.NoError(t, err)
	assert.Equal(t, 0, cache.Len())
}

func TestCacheKeyDependsOnEveryPart(t *testing.T) {
	base := oracle.Request{System: "s", User: "u", Format: oracle.FormatJSONObject}
	other := base
	other.User = "v"

	assert.NotEqual(t, oracle.CacheKey("a", base), oracle.CacheKey("b", base))
	assert.NotEqual(t, oracle.CacheKey("a", base), oracle.CacheKey("a", other))
}

func TestFakeExhausted(t *testing.T) {
	_, err := oracletest.New().Generate(context.Background(), oracle.Request{})
	assert.ErrorIs(t, err, oracletest.ErrExhausted)
}

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/CedricPei/MAS-RAG/internal/oracle"
	"github.com/CedricPei/MAS-RAG/pkg/config"
)

var _ oracle.ResponseCache = (*Client)(nil)

func TestNewClientUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewClient(ctx, config.RedisConfig{Host: "127.0.0.1", Port: 1})
	assert.Error(t, err)
}

// Package oracletest provides a scripted oracle for tests.
package oracletest

import (
	"context"
	"errors"
	"sync"

	"github.com/CedricPei/MAS-RAG/internal/oracle"
)

// ErrExhausted is returned once every scripted reply has been consumed.
var ErrExhausted = errors.New("oracletest: script exhausted")

type Reply struct {
	Text string
	Err  error
}

// Fake replays Replies in order and records every request it receives.
type Fake struct {
	mu       sync.Mutex
	replies  []Reply
	requests []oracle.Request
}

func New(replies ...Reply) *Fake {
	return &Fake{replies: replies}
}

// Texts builds a Fake that answers with each text in turn.
func Texts(texts ...string) *Fake {
	replies := make([]Reply, len(texts))
	for i, t := range texts {
		replies[i] = Reply{Text: t}
	}
	return New(replies...)
}

func (f *Fake) Push(replies ...Reply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, replies...)
}

func (f *Fake) Generate(ctx context.Context, req oracle.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(f.replies) == 0 {
		return "", ErrExhausted
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r.Text, r.Err
}

func (f *Fake) Requests() []oracle.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]oracle.Request(nil), f.requests...)
}

// MemoryCache is an in-process oracle.ResponseCache.
type MemoryCache struct {
	mu    sync.Mutex
	items map[string]string
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]string)}
}

func (m *MemoryCache) GetResponse(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *MemoryCache) SetResponse(ctx context.Context, key, raw string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = raw
	return nil
}

func (m *MemoryCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

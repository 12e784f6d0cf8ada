package blobstore

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"
)

// MemoryStore keeps objects in process. Used when no object store endpoint
// is configured and in tests. Setting Err makes every PutObject fail.
type MemoryStore struct {
	Err error

	mu      sync.RWMutex
	objects map[string]memObject
}

type memObject struct {
	data        []byte
	contentType string
}

func NewMemory() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memObject)}
}

func (m *MemoryStore) PutObject(_ context.Context, data []byte, key, contentType string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memObject{data: append([]byte(nil), data...), contentType: contentType}
	return key, nil
}

func (m *MemoryStore) GetObject(_ context.Context, ref string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[ref]
	if !ok {
		return nil, fmt.Errorf("%s: %w", ref, ErrNoObject)
	}
	return append([]byte(nil), o.data...), nil
}

// Object returns a stored object's bytes.
func (m *MemoryStore) Object(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[key]
	return o.data, ok
}

func (m *MemoryStore) AuthorizeRead(_ context.Context, prefix string, ttl time.Duration) (Token, error) {
	if ttl <= 0 {
		return Token{}, fmt.Errorf("ttl must be positive")
	}
	return Token{Prefix: prefix, ExpiresAt: time.Now().Add(ttl)}, nil
}

func (m *MemoryStore) SignedURL(_ context.Context, ref string, tok Token) (string, error) {
	if err := tok.allows(ref, time.Now()); err != nil {
		return "", err
	}
	m.mu.RLock()
	_, ok := m.objects[ref]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("object %s not found", ref)
	}
	q := url.Values{"expires": {fmt.Sprint(tok.ExpiresAt.Unix())}}
	return "mem://" + ref + "?" + q.Encode(), nil
}

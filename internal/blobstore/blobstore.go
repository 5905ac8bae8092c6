// Package blobstore keeps the uploaded proof images. The stored reference is
// what TravelProof.ProofImageRef records.
package blobstore

import (
	"context"
	"errors"
	"mime"
	"path"
	"strings"
	"sync"
)

// Errors returned by stores.
var (
	ErrNotFound = errors.New("object not found")
	ErrEmptyKey = errors.New("object key is required")
)

// Store persists proof images.
type Store interface {
	// Put stores data under key and returns a reference to it.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// ProofImageKey builds the object key for a proof image.
func ProofImageKey(userID, proofID, format string) string {
	ext := ""
	if format != "" {
		ext = "." + strings.ToLower(format)
	}
	return path.Join("proofs", userID, proofID+ext)
}

// ContentType returns the MIME type for a decoded image format name.
func ContentType(format string) string {
	if format == "" {
		return "application/octet-stream"
	}
	if t := mime.TypeByExtension("." + strings.ToLower(format)); t != "" {
		return t
	}
	return "image/" + strings.ToLower(format)
}

// Object is a stored blob.
type Object struct {
	Data        []byte
	ContentType string
}

// Memory is an in-process Store used in tests and local runs.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]Object
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string]Object)}
}

// Put stores a copy of data. The reference is prefixed with mem://.
func (m *Memory) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = Object{Data: append([]byte(nil), data...), ContentType: contentType}
	return "mem://" + key, nil
}

// Get returns a stored object by reference or key.
func (m *Memory) Get(ref string) (Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[strings.TrimPrefix(ref, "mem://")]
	if !ok {
		return Object{}, ErrNotFound
	}
	return obj, nil
}

// Len returns the number of stored objects.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

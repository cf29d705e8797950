// Package auth defines API key authentication types for the settlement API.
package auth

import "context"

// APIKeyInfo describes a stored API key. Keys are stored as HMAC-SHA256
// hashes; the plaintext never touches the database.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
}

// Repository provides API key lookups.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}

// Package store provides a small document store over Postgres, DynamoDB, or
// process memory. Documents are JSON blobs addressed by collection and key;
// the contract is deliberately narrow so every backend can honor it exactly.
package store

import (
	"context"
	"errors"
	"regexp"
)

// ErrNotFound is returned when no document exists for a key.
var ErrNotFound = errors.New("document not found")

// Document is one stored record.
type Document struct {
	Collection string `json:"collection"`
	Key        string `json:"key"`
	Data       []byte `json:"data"` // raw JSON
}

// Provider is the contract every document store backend implements.
type Provider interface {
	Name() string
	Initialize(ctx context.Context) error
	Put(ctx context.Context, doc Document) error
	Get(ctx context.Context, collection, key string) (*Document, error)
	Delete(ctx context.Context, collection, key string) error
	Probe(ctx context.Context) error
	Close() error
}

var identifierRe = regexp.MustCompile(`^[a-zA-Z0-9_.:-]{1,128}$`)

// ValidateRef rejects collection or key values that could not address a
// document in any backend.
func ValidateRef(collection, key string) error {
	if !identifierRe.MatchString(collection) {
		return errors.New("invalid collection name")
	}
	if !identifierRe.MatchString(key) {
		return errors.New("invalid document key")
	}
	return nil
}

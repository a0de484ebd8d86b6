// Package storage abstracts the durable object stores backing the
// pipeline: landing, intermediate, and dead-letter areas all live in
// one bucket under distinct key prefixes.
package storage

import (
	"context"
	"fmt"
	"strings"
)

// Ref identifies a stored object. It is the unit the trigger boundary
// passes between stages.
type Ref struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

func (r Ref) String() string {
	return r.Bucket + "/" + r.Key
}

// ParseRef parses "bucket/key" into a Ref.
func ParseRef(s string) (Ref, error) {
	bucket, key, ok := strings.Cut(s, "/")
	if !ok || bucket == "" || key == "" {
		return Ref{}, fmt.Errorf("malformed object ref %q", s)
	}
	return Ref{Bucket: bucket, Key: key}, nil
}

// ObjectStore is the mutation discipline the pipeline needs from its
// stores: write-once for landing objects, overwrite-by-key for
// intermediate and dead-letter objects, read by reference.
type ObjectStore interface {
	// CreateIfAbsent writes the object only when the key does not yet
	// exist. It reports whether this call created the object; a false
	// return with nil error means the key was already present and the
	// existing object is untouched.
	CreateIfAbsent(ctx context.Context, key string, data []byte, metadata map[string]string) (bool, error)

	// Put writes the object unconditionally, replacing any previous
	// content under the key.
	Put(ctx context.Context, key string, data []byte, metadata map[string]string) error

	// Get returns the object's content, or pipeline.ErrNotFound if the
	// key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// List returns keys under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Bucket returns the bucket this store is bound to.
	Bucket() string

	// Close releases client resources.
	Close() error
}

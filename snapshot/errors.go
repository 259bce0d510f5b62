package snapshot

import (
	"errors"
	"fmt"
)

// Sentinel errors for snapshot store operations.
// Use errors.Is() to check for these errors as they may be wrapped.
var (
	// ErrNotFound is returned when a snapshot key does not exist.
	ErrNotFound = errors.New("snapshot: key not found")

	// ErrInvalidKey is returned when a snapshot key is empty or malformed.
	ErrInvalidKey = errors.New("snapshot: invalid key")

	// ErrInvalidNamespace is returned when a namespace is malformed.
	ErrInvalidNamespace = errors.New("snapshot: invalid namespace")

	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("snapshot: store closed")

	// ErrKeyExists is returned when a create-only write hits an existing key.
	ErrKeyExists = errors.New("snapshot: key already exists")

	// ErrCodecNotFound is returned when a snapshot names an unregistered
	// byte codec.
	ErrCodecNotFound = errors.New("snapshot: codec not found")

	// ErrManagerClosed is returned when operating on a closed manager.
	ErrManagerClosed = errors.New("snapshot: manager closed")
)

// KeyNotFoundError provides details about a missing snapshot.
type KeyNotFoundError struct {
	Key       string
	Namespace string
}

func (e *KeyNotFoundError) Error() string {
	if e.Namespace != "" {
		return fmt.Sprintf("snapshot: key %q not found in namespace %q", e.Key, e.Namespace)
	}
	return fmt.Sprintf("snapshot: key %q not found", e.Key)
}

func (e *KeyNotFoundError) Unwrap() error {
	return ErrNotFound
}

// IsNotFound checks if an error indicates a missing snapshot.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// KeyExistsError provides details about a key that already exists.
type KeyExistsError struct {
	Key       string
	Namespace string
}

func (e *KeyExistsError) Error() string {
	if e.Namespace != "" {
		return fmt.Sprintf("snapshot: key %q already exists in namespace %q", e.Key, e.Namespace)
	}
	return fmt.Sprintf("snapshot: key %q already exists", e.Key)
}

func (e *KeyExistsError) Unwrap() error {
	return ErrKeyExists
}

// IsKeyExists checks if an error indicates a key already exists.
func IsKeyExists(err error) bool {
	return errors.Is(err, ErrKeyExists)
}

// InvalidKeyError provides details about an invalid key.
type InvalidKeyError struct {
	Key    string
	Reason string
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("snapshot: invalid key %q: %s", e.Key, e.Reason)
}

func (e *InvalidKeyError) Unwrap() error {
	return ErrInvalidKey
}

// IsInvalidKey checks if an error indicates an invalid key.
func IsInvalidKey(err error) bool {
	return errors.Is(err, ErrInvalidKey)
}

// StoreError wraps backend-specific errors with domain context.
type StoreError struct {
	Op      string // Operation that failed
	Key     string // Key involved (if applicable)
	Backend string // Backend name (memory, sqlite, postgres, mongodb, file)
	Err     error  // Underlying error
}

func (e *StoreError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("snapshot: %s [%s] key=%q: %v", e.Op, e.Backend, e.Key, e.Err)
	}
	return fmt.Sprintf("snapshot: %s [%s]: %v", e.Op, e.Backend, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// WrapStoreError creates a StoreError from a backend error.
func WrapStoreError(op, backend, key string, err error) error {
	if err == nil {
		return nil
	}
	// Don't double-wrap
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Backend: backend, Key: key, Err: err}
}

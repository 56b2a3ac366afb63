// Package persist provides the string keyed storage that backs query caches,
// plus a typed layer that encodes values to and from their stored form.
package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// Persistor is a string keyed store. Implementations must tolerate concurrent
// calls for independent keys.
type Persistor interface {
	// GetItem returns the stored value and whether the key exists.
	GetItem(ctx context.Context, key string) (string, bool, error)
	// SetItem stores value under key, replacing any previous value.
	SetItem(ctx context.Context, key, value string) error
	// RemoveItem deletes key. Removing a missing key is not an error.
	RemoveItem(ctx context.Context, key string) error
	// Clear deletes every entry owned by this Persistor.
	Clear(ctx context.Context) error
	io.Closer
}

// Codec converts values to and from the Persistor's string representation.
type Codec[T any] interface {
	Encode(value T) (string, error)
	Decode(data string) (T, error)
}

// JSONCodec encodes values with encoding/json.
type JSONCodec[T any] struct{}

// Encode marshals value to JSON.
func (JSONCodec[T]) Encode(value T) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("failed to marshal value: %w", err)
	}
	return string(data), nil
}

// Decode unmarshals JSON into a new T.
func (JSONCodec[T]) Decode(data string) (T, error) {
	var value T
	if err := json.Unmarshal([]byte(data), &value); err != nil {
		return value, fmt.Errorf("failed to unmarshal value: %w", err)
	}
	return value, nil
}

// DecodeError reports a stored entry that could not be decoded.
type DecodeError struct {
	Key string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// GetObject reads and decodes key. A missing entry reports ok == false with a
// nil error. An entry that fails to decode also reports ok == false, and the
// returned error is a *DecodeError so callers may log it and treat it as a
// miss. Read failures are returned as is.
func GetObject[T any](ctx context.Context, p Persistor, codec Codec[T], key string) (value T, ok bool, err error) {
	raw, found, err := p.GetItem(ctx, key)
	if err != nil || !found {
		return value, false, err
	}
	decoded, err := codec.Decode(raw)
	if err != nil {
		return value, false, &DecodeError{Key: key, Err: err}
	}
	return decoded, true, nil
}

// SetObject encodes value and stores it under key. A nil value removes the
// entry instead.
func SetObject[T any](ctx context.Context, p Persistor, codec Codec[T], key string, value *T) error {
	if value == nil {
		return p.RemoveItem(ctx, key)
	}
	encoded, err := codec.Encode(*value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return p.SetItem(ctx, key, encoded)
}

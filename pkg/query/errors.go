package query

import "fmt"

// FetchError is published on a query's Error observable when the fetcher
// failed on every attempt and no cached data could be served instead.
type FetchError struct {
	StorageKey string
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.StorageKey, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// PersistenceError wraps a Persistor failure. The engine never retries these.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

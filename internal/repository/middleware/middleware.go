// Package middleware decorates a repository.RecordStore with cross-cutting concerns
// (logging, metrics, tracing) without touching the backends.
package middleware

import "quarklog/internal/repository"

// Middleware wraps a RecordStore.
type Middleware func(next repository.RecordStore) repository.RecordStore

// Chain applies mws so that the first one is the outermost wrapper.
func Chain(store repository.RecordStore, mws ...Middleware) repository.RecordStore {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			store = mws[i](store)
		}
	}
	return store
}

// Noop returns the store unchanged.
func Noop() Middleware {
	return func(next repository.RecordStore) repository.RecordStore { return next }
}

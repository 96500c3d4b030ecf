// Package catalog keeps decoded orbital elements. Names are not unique, so
// every stored element gets its own ID.
package catalog

import (
	"context"
	"errors"

	"github.com/signalsfoundry/orbit-tracer/model"
)

// ErrNotFound is returned when no element has the requested ID.
var ErrNotFound = errors.New("element not found")

// Entry is a stored element and its catalog ID.
type Entry struct {
	ID      int64
	Element model.OrbitalElement
}

// Store is implemented by the in-memory and SQLite catalogs.
type Store interface {
	// Put stores elements in order and returns them with their new IDs.
	Put(ctx context.Context, elements ...model.OrbitalElement) ([]Entry, error)
	Get(ctx context.Context, id int64) (Entry, error)
	FindByName(ctx context.Context, name string) ([]Entry, error)
	// List returns every entry ordered by ID.
	List(ctx context.Context) ([]Entry, error)
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
	Close() error
}

// SizeRecorder receives the catalog size after each change.
type SizeRecorder interface {
	SetCatalogSize(n int)
}

// Notifier is implemented by stores that report changes as they happen.
type Notifier interface {
	Subscribe(fn func(Event)) (unsubscribe func())
}

// Package testutil provides shared test helpers for stores, hosts and loggers.
package testutil

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/starford/asterisk/internal/host"
	"github.com/starford/asterisk/internal/kv"
)

// ErrInjected is returned by FaultyStore for operations configured to fail.
var ErrInjected = errors.New("injected failure")

// FaultyStore wraps a kv.Store and fails selected operations.
type FaultyStore struct {
	kv.Store
	FailGet  func(key string) bool
	FailSet  func(key string) bool
	FailDel  func(key string) bool
	FailKeys bool
}

func (f *FaultyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if f.FailGet != nil && f.FailGet(key) {
		return nil, ErrInjected
	}
	return f.Store.Get(ctx, key)
}

func (f *FaultyStore) Set(ctx context.Context, key string, value []byte) error {
	if f.FailSet != nil && f.FailSet(key) {
		return ErrInjected
	}
	return f.Store.Set(ctx, key, value)
}

func (f *FaultyStore) Delete(ctx context.Context, key string) error {
	if f.FailDel != nil && f.FailDel(key) {
		return ErrInjected
	}
	return f.Store.Delete(ctx, key)
}

func (f *FaultyStore) Keys(ctx context.Context) ([]string, error) {
	if f.FailKeys {
		return nil, ErrInjected
	}
	return f.Store.Keys(ctx)
}

// TestStore creates a temporary SQLite-backed store that is closed on cleanup.
func TestStore(t *testing.T) kv.Store {
	t.Helper()
	s, err := kv.OpenSQLite(filepath.Join(t.TempDir(), "asterisk-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// Logger returns a logger that discards output.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestCanvas creates an in-memory host document with two pages:
//
//	page "0:1" (Cover): elements "1:1" Button, "1:2" Card, "1:3" (unnamed)
//	page "0:2" (Icons): elements "2:1" Star
func TestCanvas(t *testing.T) *host.Canvas {
	t.Helper()
	c, err := host.NewCanvas(host.DocumentSpec{
		ID: "design",
		Pages: []host.PageSpec{
			{ID: "0:1", Name: "Cover", Elements: []host.ElementSpec{
				{ID: "1:1", Name: "Button"},
				{ID: "1:2", Name: "Card"},
				{ID: "1:3"},
			}},
			{ID: "0:2", Name: "Icons", Elements: []host.ElementSpec{
				{ID: "2:1", Name: "Star"},
			}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

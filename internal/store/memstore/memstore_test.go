package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Makepad-fr/tada/internal/query"
	"github.com/Makepad-fr/tada/internal/store"
	"github.com/Makepad-fr/tada/internal/store/storetest"
)

func TestBackendContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Backend {
		s := New()
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestRegistered(t *testing.T) {
	b, err := store.Open(store.Options{Driver: DriverName})
	require.NoError(t, err)
	defer b.Close()
	assert.IsType(t, &Store{}, b)
}

func TestFetchHonoursCancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Fetch(ctx, nil, query.DefaultOrder)
	assert.ErrorIs(t, err, context.Canceled)
}

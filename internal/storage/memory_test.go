package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSaveAndObject(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()

	require.NoError(t, s.Save(context.Background(), "24CV000100/Complaint.pdf", "application/pdf", []byte("%PDF-1.4")))
	require.Equal(t, 1, s.Len())

	data, ok := s.Object("24CV000100/Complaint.pdf")
	require.True(t, ok)
	require.Equal(t, []byte("%PDF-1.4"), data)

	_, ok = s.Object("missing")
	require.False(t, ok)
}

func TestMemoryStoreInjectedError(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	s.Err = errors.New("bucket unavailable")

	require.Error(t, s.Save(context.Background(), "obj", "application/pdf", nil))
	require.Zero(t, s.Len())
}

func TestNoOpStoreDiscards(t *testing.T) {
	t.Parallel()
	require.NoError(t, NoOpStore{}.Save(context.Background(), "obj", "application/pdf", []byte("data")))
}

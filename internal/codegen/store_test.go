package codegen

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSaveLoad(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	got, err := s.Load(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	j := &Job{JobID: "j1", Username: "alice", Status: StatusReady, ArtifactKey: "codegen/alice/j1.tar.gz"}
	require.NoError(t, s.Save(ctx, j))
	assert.False(t, j.CreatedAt.IsZero())

	got, err = s.Load(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, "codegen/alice/j1.tar.gz", got.ArtifactKey)

	created := got.CreatedAt
	require.NoError(t, s.Save(ctx, &Job{JobID: "j1", Username: "alice", Status: StatusError, Message: "boom"}))
	got, err = s.Load(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, StatusError, got.Status)
	assert.Equal(t, created, got.CreatedAt)

	require.Error(t, s.Save(ctx, &Job{}))
}

func TestMemoryStoreListForUser(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	require.NoError(t, s.Save(ctx, &Job{JobID: "old", Username: "alice", CreatedAt: base}))
	require.NoError(t, s.Save(ctx, &Job{JobID: "new", Username: "alice", CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, s.Save(ctx, &Job{JobID: "other", Username: "bob"}))

	jobs, err := s.ListForUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "new", jobs[0].JobID)
	assert.Equal(t, "old", jobs[1].JobID)
}

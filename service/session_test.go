package service

import (
	"testing"
	"time"

	"github.com/darshanvss/image-clipper/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionCreateAndGet(t *testing.T) {
	store := NewSessionStore()
	store.Create("s1", "/tmp/s1.png", "abc", 640, 480)

	sess, err := store.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/s1.png", sess.FilePath)
	assert.Equal(t, 640, sess.Width)
	assert.Equal(t, 480, sess.Height)

	_, err = store.Get("missing")
	assert.ErrorIs(t, err, model.ErrSessionNotFound)
}

func TestSessionResultBeforeSegment(t *testing.T) {
	store := NewSessionStore()
	store.Create("s1", "", "", 1, 1)

	_, err := store.Result("s1")
	assert.ErrorIs(t, err, model.ErrNotSegmented)
}

func TestSessionCommitAndResult(t *testing.T) {
	store := NewSessionStore()
	store.Create("s1", "", "", 1, 1)

	token, err := store.BeginRequest("s1")
	require.NoError(t, err)

	result := &model.SegmentationResult{ImageWidth: 1, ImageHeight: 1}
	require.NoError(t, store.Commit("s1", token, result))

	got, err := store.Result("s1")
	require.NoError(t, err)
	assert.Same(t, result, got)
}

func TestSessionStaleTokenSuperseded(t *testing.T) {
	store := NewSessionStore()
	store.Create("s1", "", "", 1, 1)

	stale, err := store.BeginRequest("s1")
	require.NoError(t, err)
	fresh, err := store.BeginRequest("s1")
	require.NoError(t, err)

	// 旧令牌的在途结果被丢弃，新令牌正常提交
	err = store.Commit("s1", stale, &model.SegmentationResult{})
	assert.ErrorIs(t, err, model.ErrSuperseded)
	assert.NoError(t, store.Commit("s1", fresh, &model.SegmentationResult{}))
}

func TestSessionDeleteInvalidates(t *testing.T) {
	store := NewSessionStore()
	store.Create("s1", "/tmp/s1.png", "", 1, 1)

	token, err := store.BeginRequest("s1")
	require.NoError(t, err)

	snap, err := store.Delete("s1")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/s1.png", snap.FilePath)

	_, err = store.Get("s1")
	assert.ErrorIs(t, err, model.ErrSessionNotFound)

	err = store.Commit("s1", token, &model.SegmentationResult{})
	assert.ErrorIs(t, err, model.ErrSessionNotFound)
}

func TestSessionExpired(t *testing.T) {
	store := NewSessionStore()
	old := store.Create("old", "", "", 1, 1)
	old.CreatedAt = time.Now().Add(-48 * time.Hour)
	store.Create("new", "", "", 1, 1)

	expired := store.Expired(24 * time.Hour)
	require.Len(t, expired, 1)
	assert.Equal(t, "old", expired[0].ID)
}

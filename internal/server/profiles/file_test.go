package profiles

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newFileRepo(t *testing.T) *FileRepository {
	t.Helper()
	return NewFileRepository(filepath.Join(t.TempDir(), "profiles.json"))
}

func TestFileRepository_EmptyOnFirstUse(t *testing.T) {
	repo := newFileRepo(t)

	list, err := repo.LoadAll(context.Background())
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestFileRepository_UpsertAppendsAndReplaces(t *testing.T) {
	repo := newFileRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, repo.Upsert(ctx, Profile{Username: "alice", Score: 80, Accuracy: 95, Timestamp: now, Region: "LV"}))
	require.NoError(t, repo.Upsert(ctx, Profile{Username: "bob", Score: 70, Accuracy: 90, Timestamp: now, Region: "LV"}))

	// case-insensitive replace, not append
	require.NoError(t, repo.Upsert(ctx, Profile{Username: "ALICE", Score: 85, Accuracy: 96, Timestamp: now, Region: "LV"}))

	list, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, 85, list[0].Score)
	require.Equal(t, "ALICE", list[0].Username)
}

func TestFileRepository_SaveAllOverwrites(t *testing.T) {
	repo := newFileRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, Profile{Username: "alice", Score: 80}))
	require.NoError(t, repo.Upsert(ctx, Profile{Username: "bob", Score: 70}))

	require.NoError(t, repo.SaveAll(ctx, []Profile{{Username: "bob", Score: 71}}))

	list, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "bob", list[0].Username)
}

func TestSortLeaderboard_Ordering(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	t3 := t1.Add(2 * time.Hour)

	list := []Profile{
		{Username: "a", Score: 80, Accuracy: 95.0, Timestamp: t1},
		{Username: "b", Score: 80, Accuracy: 97.0, Timestamp: t2},
		{Username: "c", Score: 90, Accuracy: 90.0, Timestamp: t3},
	}

	SortLeaderboard(list)

	require.Equal(t, "c", list[0].Username)
	require.Equal(t, "b", list[1].Username)
	require.Equal(t, "a", list[2].Username)
}

func TestSortLeaderboard_TimestampBreaksFullTie(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	list := []Profile{
		{Username: "older", Score: 80, Accuracy: 95.0, Timestamp: t1},
		{Username: "newer", Score: 80, Accuracy: 95.0, Timestamp: t2},
	}

	SortLeaderboard(list)

	require.Equal(t, "newer", list[0].Username)
}

func TestClampScore(t *testing.T) {
	require.Equal(t, 0, ClampScore(-5))
	require.Equal(t, MaxScore, ClampScore(5000))
	require.Equal(t, 81, ClampScore(80.6))
	require.Equal(t, 80, ClampScore(80.4))
}

func TestClampAccuracy(t *testing.T) {
	require.Equal(t, 100.0, ClampAccuracy(150))
	require.Equal(t, 0.0, ClampAccuracy(-1))
	require.Equal(t, 97.56, ClampAccuracy(97.559))
}

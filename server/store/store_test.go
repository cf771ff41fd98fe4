package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whr-ladder/server/whr"
)

// openTestDB skips unless TEST_DATABASE_URL points at a scratch database.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(context.Background()) })
	require.NoError(t, Migrate(context.Background(), db))
	return db
}

func TestSaveAndLoadBaseRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	base := whr.NewBase(whr.Config{W2: 14, Uncased: true})
	err := base.LoadGames([]string{
		"shusaku; shusai; B; 1",
		"shusaku;shusai;W;2;0",
		`shusaku;shusai;W;3;{"komi":0.5}`,
		`shusaku;nobody;B;3;0;{"komi":5.5}`,
	}, ";")
	require.NoError(t, err)
	require.NoError(t, base.Iterate(20))

	// A probability query registers its unknown side; the snapshot must keep
	// such gameless registry entries too.
	_, _, err = base.ProbabilityFutureMatch("shusai", "challenger", 0)
	require.NoError(t, err)

	require.NoError(t, db.SaveBase(ctx, base))
	loaded, err := db.LoadBase(ctx)
	require.NoError(t, err)

	assert.Equal(t, base.Config(), loaded.Config())
	require.Len(t, loaded.Games(), len(base.Games()))

	require.Len(t, loaded.Players(), len(base.Players()))
	for i, p := range base.Players() {
		assert.Equal(t, p.Name, loaded.Players()[i].Name)
	}
	assert.Empty(t, loaded.PlayerByName("challenger").Days())

	// Inspection strings cover winner, komi, handicap and both ratings, so
	// equality here means the reconstruction is exact.
	for i, g := range base.Games() {
		assert.Equal(t, g.String(), loaded.Games()[i].String())
	}
	for _, name := range []string{"shusaku", "shusai", "nobody"} {
		want := base.PlayerByName(name).Days()
		got := loaded.PlayerByName(name).Days()
		require.Len(t, got, len(want))
		for i := range want {
			assert.Equal(t, want[i].Day, got[i].Day)
			assert.Equal(t, want[i].R, got[i].R)
			assert.Equal(t, want[i].Uncertainty, got[i].Uncertainty)
			assert.Equal(t, want[i].IsFirstDay, got[i].IsFirstDay)
		}
	}

	// A reloaded base keeps iterating from where it stopped.
	require.NoError(t, loaded.Iterate(1))
}

func TestLoadBaseWithoutSnapshotFails(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.Exec(ctx, "DELETE FROM whr_ratings")
	require.NoError(t, err)
	_, err = db.Exec(ctx, "DELETE FROM whr_games")
	require.NoError(t, err)
	_, err = db.Exec(ctx, "DELETE FROM whr_players")
	require.NoError(t, err)
	_, err = db.Exec(ctx, "DELETE FROM whr_config")
	require.NoError(t, err)

	_, err = db.LoadBase(ctx)
	assert.Error(t, err)
}

package sqlstore

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/festival/pkg/api"
	"github.com/platinummonkey/festival/pkg/auth"
	"github.com/platinummonkey/festival/pkg/storage"
)

// openSQLite returns a migrated in-memory database private to the test
func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	cfg := storage.DefaultConfig()
	cfg.URL = "file::memory:?_foreign_keys=on"
	// a single connection keeps the in-memory database alive
	cfg.MaxOpenConns = 1

	db, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLiteRoundTrip(t *testing.T) {
	exerciseStores(t, openSQLite(t))
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, Migrate(context.Background(), db, storage.DriverSQLite))
}

func TestSQLiteSearch_UnicodeCaseFolding(t *testing.T) {
	ctx := context.Background()
	festivals := NewFestivalStore(openSQLite(t), nil)

	require.NoError(t, festivals.Create(ctx, &api.Festival{Name: "ÉTÉ Fest", Venue: "Place d'Armes", StartDate: api.NewDate(2026, 6, 21), EndDate: api.NewDate(2026, 6, 22)}))
	require.NoError(t, festivals.Create(ctx, &api.Festival{Name: "Winter Fest", Venue: "Straße am See", StartDate: api.NewDate(2026, 12, 1), EndDate: api.NewDate(2026, 12, 2)}))

	for _, query := range []string{"été", "ÉTÉ", "Été"} {
		page, total, err := festivals.Search(ctx, query, api.PageRequest{Page: 0, Size: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total, query)
		require.Len(t, page, 1, query)
		assert.Equal(t, "ÉTÉ Fest", page[0].Name)
	}

	page, _, err := festivals.Search(ctx, "STRASSE", api.PageRequest{Page: 0, Size: 10})
	require.NoError(t, err)
	assert.Empty(t, page, "lower() folds case without expanding ß")

	page, _, err = festivals.Search(ctx, "STRAßE", api.PageRequest{Page: 0, Size: 10})
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

// exerciseStores runs the store contract against a migrated database
func exerciseStores(t *testing.T, db *sql.DB) {
	ctx := context.Background()
	users := NewUserStore(db, nil)
	festivals := NewFestivalStore(db, nil)
	performances := NewPerformanceStore(db, nil)

	t.Run("users", func(t *testing.T) {
		alice := &auth.User{Username: "alice", Email: "alice@example.com", PasswordHash: "h1", Roles: auth.Roles{auth.RoleArtist}}
		require.NoError(t, users.Create(ctx, alice))
		assert.NotZero(t, alice.ID)
		assert.False(t, alice.CreatedAt.IsZero())

		bob := &auth.User{Username: "bob", Email: "bob@local", PasswordHash: "h2"}
		require.NoError(t, users.Create(ctx, bob))
		assert.Equal(t, auth.Roles{auth.DefaultRole}, bob.Roles)

		err := users.Create(ctx, &auth.User{Username: "alice", Email: "other@example.com", PasswordHash: "h3"})
		assert.ErrorIs(t, err, storage.ErrConflict)
		err = users.Create(ctx, &auth.User{Username: "carol", Email: "alice@example.com", PasswordHash: "h3"})
		assert.ErrorIs(t, err, storage.ErrConflict)

		found, err := users.FindByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, found.ID)
		assert.Equal(t, "h1", found.PasswordHash, "stored hash unchanged by rejected duplicate")
		assert.Equal(t, auth.Roles{auth.RoleArtist}, found.Roles)

		_, err = users.FindByUsername(ctx, "Alice")
		assert.ErrorIs(t, err, auth.ErrNotFound, "usernames are case-sensitive")

		ok, err := users.ExistsByUsername(ctx, "bob")
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = users.ExistsByEmail(ctx, "nobody@local")
		require.NoError(t, err)
		assert.False(t, ok)

		all, err := users.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "alice", all[0].Username)
	})

	var rockID int64
	t.Run("festivals", func(t *testing.T) {
		for _, f := range []*api.Festival{
			{Name: "Rock Fest", Venue: "Arena", State: api.FestivalScheduling, StartDate: api.NewDate(2026, 7, 1), EndDate: api.NewDate(2026, 7, 3)},
			{Name: "Jazz Nights", Venue: "Blue Club", Description: "Smooth rock-adjacent sets", StartDate: api.NewDate(2026, 8, 1), EndDate: api.NewDate(2026, 8, 1)},
			{Name: "Folk 100%", Venue: "Meadow", StartDate: api.NewDate(2026, 9, 1), EndDate: api.NewDate(2026, 9, 2)},
		} {
			require.NoError(t, festivals.Create(ctx, f))
			assert.NotZero(t, f.ID)
			assert.False(t, f.CreatedAt.IsZero())
			if f.Name == "Rock Fest" {
				rockID = f.ID
			}
		}

		err := festivals.Create(ctx, &api.Festival{Name: "Rock Fest", Venue: "Elsewhere", StartDate: api.NewDate(2026, 1, 1), EndDate: api.NewDate(2026, 1, 1)})
		assert.ErrorIs(t, err, storage.ErrConflict)

		got, err := festivals.Get(ctx, rockID)
		require.NoError(t, err)
		assert.Equal(t, "Arena", got.Venue)
		assert.Equal(t, api.FestivalScheduling, got.State)
		assert.Equal(t, "2026-07-01", got.StartDate.String())
		assert.Equal(t, "2026-07-03", got.EndDate.String())

		_, err = festivals.Get(ctx, 9999)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		page, total, err := festivals.List(ctx, api.PageRequest{Page: 1, Size: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, page, 1)
		assert.Equal(t, "Folk 100%", page[0].Name)

		page, total, err = festivals.List(ctx, api.PageRequest{Page: 5, Size: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Empty(t, page)

		page, total, err = festivals.List(ctx, api.PageRequest{Page: 1 << 62, Size: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Empty(t, page, "an offset past the int range never wraps to the first rows")

		page, total, err = festivals.Search(ctx, "ROCK", api.PageRequest{Page: 0, Size: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total, "name and description both match")
		require.Len(t, page, 2)
		assert.True(t, page[0].ID < page[1].ID)

		page, _, err = festivals.Search(ctx, "meadow", api.PageRequest{Page: 0, Size: 10})
		require.NoError(t, err)
		require.Len(t, page, 1)

		page, _, err = festivals.Search(ctx, "%", api.PageRequest{Page: 0, Size: 10})
		require.NoError(t, err)
		require.Len(t, page, 1, "wildcards are matched literally")
	})

	t.Run("performances", func(t *testing.T) {
		p := &api.Performance{
			FestivalID:  rockID,
			Name:        "Opening Act",
			Genre:       "rock",
			Duration:    45,
			MainArtist:  "alice",
			BandMembers: []string{"bob"},
			Setlist:     []string{"Intro", "Anthem"},
		}
		rehearsal := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
		p.PreferredRehearsalTimes = []time.Time{rehearsal}
		require.NoError(t, performances.Create(ctx, p))
		assert.Equal(t, api.PerformanceCreated, p.Status)

		err := performances.Create(ctx, &api.Performance{FestivalID: 9999, Name: "Orphan", Genre: "rock", Duration: 10, MainArtist: "bob"})
		assert.ErrorIs(t, err, storage.ErrNotFound, "missing festival is reported as not found")

		err = performances.Create(ctx, &api.Performance{FestivalID: rockID, Name: "Opening Act", Genre: "rock", Duration: 10, MainArtist: "bob"})
		assert.ErrorIs(t, err, storage.ErrConflict)

		got, err := performances.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"Intro", "Anthem"}, got.Setlist)
		assert.Equal(t, []string{"bob"}, got.BandMembers)
		assert.Equal(t, []string{}, got.MerchandiseItems)
		require.Len(t, got.PreferredRehearsalTimes, 1)
		assert.True(t, rehearsal.Equal(got.PreferredRehearsalTimes[0]))
		assert.Equal(t, []time.Time{}, got.PreferredPerformanceSlots)
		assert.Equal(t, 45, got.Duration)

		list, total, err := performances.ListByFestival(ctx, rockID, api.PageRequest{Page: 0, Size: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, list, 1)

		_, err = performances.Get(ctx, 9999)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

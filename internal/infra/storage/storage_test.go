package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRamiBalles/CookieClicker/internal/events"
	"github.com/MRamiBalles/CookieClicker/internal/platform/metrics"
)

func openTestDB(t *testing.T) (*SQLiteSaveRepository, *SQLiteEventRepository) {
	t.Helper()
	db, err := InitSQLite(filepath.Join(t.TempDir(), "nested", "cookie.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLiteSaveRepository(db), NewSQLiteEventRepository(db)
}

func saveRepos(t *testing.T) map[string]SaveRepository {
	sqliteSaves, _ := openTestDB(t)
	return map[string]SaveRepository{
		"sqlite": sqliteSaves,
		"memory": NewMemorySaveRepository(),
	}
}

func eventRepos(t *testing.T) map[string]EventRepository {
	_, sqliteEvents := openTestDB(t)
	return map[string]EventRepository{
		"sqlite": sqliteEvents,
		"memory": NewMemoryEventRepository(),
	}
}

func TestSaveRepository(t *testing.T) {
	ctx := context.Background()
	for name, repo := range saveRepos(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := repo.Load(ctx, "slot")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, repo.Store(ctx, "slot", []byte(`{"currency":1}`)))
			require.NoError(t, repo.Store(ctx, "slot", []byte(`{"currency":2}`)))
			blob, ok, err := repo.Load(ctx, "slot")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.JSONEq(t, `{"currency":2}`, string(blob))

			require.NoError(t, repo.Delete(ctx, "slot"))
			require.NoError(t, repo.Delete(ctx, "slot"))
			_, ok, err = repo.Load(ctx, "slot")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestEventRepository(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for name, repo := range eventRepos(t) {
		t.Run(name, func(t *testing.T) {
			seed := []GameEvent{
				{ID: "e1", GameID: "g", SessionID: "s", Timestamp: base, EventType: eventClick, ActorID: "PLAYER", Payload: map[string]interface{}{"amount": 1.0}},
				{ID: "e2", GameID: "g", SessionID: "s", Timestamp: base.Add(time.Second), EventType: eventPurchase, ActorID: "PLAYER", TargetID: "grandma", Payload: map[string]interface{}{"cost": 100.0}},
				{ID: "e3", GameID: "g", SessionID: "s", Timestamp: base.Add(2 * time.Second), EventType: eventClick, ActorID: "PLAYER", Payload: map[string]interface{}{"amount": 2.0}},
				{ID: "x1", GameID: "other", SessionID: "s", Timestamp: base, EventType: eventClick, ActorID: "PLAYER", Payload: map[string]interface{}{}},
			}
			for _, e := range seed {
				require.NoError(t, repo.Append(ctx, e))
			}

			all, err := repo.GetByGameID(ctx, "g")
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, []string{"e1", "e2", "e3"}, ids(all))
			assert.True(t, base.Equal(all[0].Timestamp))
			assert.Equal(t, 1.0, all[0].Payload["amount"])
			assert.Equal(t, "grandma", all[1].TargetID)

			clicks, err := repo.GetByEventType(ctx, "g", eventClick)
			require.NoError(t, err)
			assert.Equal(t, []string{"e1", "e3"}, ids(clicks))

			since, err := repo.GetSince(ctx, "g", base.Add(time.Second))
			require.NoError(t, err)
			assert.Equal(t, []string{"e2", "e3"}, ids(since))

			unbounded, err := repo.GetSince(ctx, "g", time.Time{})
			require.NoError(t, err)
			assert.Equal(t, []string{"e1", "e2", "e3"}, ids(unbounded))

			ancient, err := repo.GetSince(ctx, "g", time.Date(1500, 1, 1, 0, 0, 0, 0, time.UTC))
			require.NoError(t, err)
			assert.Equal(t, []string{"e1", "e2", "e3"}, ids(ancient))

			future, err := repo.GetSince(ctx, "g", time.Date(3000, 1, 1, 0, 0, 0, 0, time.UTC))
			require.NoError(t, err)
			assert.Empty(t, future)
		})
	}
}

func TestMemoryEventRepositoryKeepsNewest(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	repo := NewMemoryEventRepository()
	repo.SetLimit(3)

	for i := 0; i < 10; i++ {
		require.NoError(t, repo.Append(ctx, GameEvent{
			ID:        fmt.Sprintf("e%d", i),
			GameID:    "g",
			Timestamp: base.Add(time.Duration(i) * time.Second),
			EventType: eventClick,
		}))
	}

	all, err := repo.GetByGameID(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, []string{"e7", "e8", "e9"}, ids(all))

	repo.SetLimit(1)
	all, err = repo.GetByGameID(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, []string{"e9"}, ids(all))

	repo.SetLimit(0)
	require.NoError(t, repo.Append(ctx, GameEvent{ID: "e10", GameID: "g", Timestamp: base.Add(time.Minute)}))
	all, err = repo.GetByGameID(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, []string{"e9", "e10"}, ids(all))
}

func TestSQLiteDuplicateEventRejected(t *testing.T) {
	_, repo := openTestDB(t)
	ev := GameEvent{ID: "dup", GameID: "g", Timestamp: time.Now(), EventType: eventClick}
	require.NoError(t, repo.Append(context.Background(), ev))
	assert.Error(t, repo.Append(context.Background(), ev))
}

func TestPersisterAdapterBacksEventLog(t *testing.T) {
	repo := NewMemoryEventRepository()
	el := events.NewEventLog(NewPersisterAdapter(repo, "cookieClickerSave"))

	el.Append(events.GameEvent{
		Type:     events.EventTypePurchase,
		ActorID:  events.ActorPlayer,
		TargetID: "grandma",
		Payload:  events.PurchasePayload{Kind: "grandma", Cost: 100, NextCost: 150, Count: 1},
	})
	el.Append(events.GameEvent{Type: events.EventTypeGameReset})

	stored, err := repo.GetByGameID(context.Background(), "cookieClickerSave")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "PURCHASE", stored[0].EventType)
	assert.Equal(t, el.SessionID(), stored[0].SessionID)
	assert.Equal(t, 100.0, stored[0].Payload["cost"])
	assert.Equal(t, 150.0, stored[0].Payload["next_cost"])
	assert.Empty(t, stored[1].Payload)
}

func TestPersisterAdapterCountsWrites(t *testing.T) {
	_, repo := openTestDB(t)
	m := metrics.New()
	adapter := NewPersisterAdapter(repo, "g").WithMetrics(m)

	ev := events.GameEvent{ID: "same", Type: events.EventTypeClick, Timestamp: time.Now()}
	require.NoError(t, adapter.Append(ev))
	assert.Error(t, adapter.Append(ev))

	stats := m.Snapshot().Persistence
	assert.Equal(t, int64(1), stats.EventsWritten)
	assert.Equal(t, int64(1), stats.EventErrors)
}

func TestRecap(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	repo := NewMemoryEventRepository()
	add := func(offset time.Duration, typ, target string, payload map[string]interface{}) {
		require.NoError(t, repo.Append(ctx, GameEvent{
			ID: typ + offset.String(), GameID: "g", Timestamp: now.Add(offset),
			EventType: typ, TargetID: target, Payload: payload,
		}))
	}

	add(-3*time.Hour, eventClick, "", map[string]interface{}{"amount": 1.0})
	add(-2*time.Hour, eventClick, "", map[string]interface{}{"amount": 1.0})
	for i := 0; i < 1000; i++ {
		add(-2*time.Hour+time.Duration(i+1)*time.Second, eventClick, "", map[string]interface{}{"amount": 2.0})
	}
	add(-90*time.Minute, eventPurchase, "grandma", map[string]interface{}{"cost": 100.0, "count": 1.0})
	add(-80*time.Minute, eventPurchase, "grandma", map[string]interface{}{"cost": 150.0, "count": 2.0})
	add(-70*time.Minute, eventPurchaseRejected, "grandma", map[string]interface{}{"cost": 225.0})
	add(-60*time.Minute, eventPassiveTick, "", map[string]interface{}{"earned": 10.0})
	add(-59*time.Minute, eventPassiveTick, "", map[string]interface{}{"earned": 10.5})
	add(-30*time.Minute, eventGameSaved, "cookieClickerSave", nil)
	add(-20*time.Minute, eventGameReset, "cookieClickerSave", nil)
	add(-10*time.Minute, eventSaveCorrupt, "cookieClickerSave", nil)

	rec := NewReconstructor(repo)
	rec.now = func() time.Time { return now }

	full, err := rec.Recap(ctx, "g", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(1002), full.Clicks)
	assert.Equal(t, 2002.0, full.CookiesClicked)
	assert.Equal(t, 20.5, full.CookiesGenerated)
	assert.Equal(t, int64(2), full.Purchases["grandma"])
	assert.Equal(t, int64(250), full.Spent["grandma"])
	assert.Equal(t, int64(1), full.Rejected)
	assert.Equal(t, int64(1), full.Saves)
	assert.Equal(t, int64(1), full.Resets)
	assert.Equal(t, int64(1), full.CorruptSaves)

	require.NotEmpty(t, full.Lines)
	assert.Equal(t, "1,002 clicks baked 2,002 cookies since the beginning.", full.Lines[0].Summary)
	assert.Contains(t, summaries(full.Lines), "grandma: 2 bought, 250 cookies spent.")
	assert.Contains(t, summaries(full.Lines), "Bought grandma #2 for 150 cookies.")
	assert.Contains(t, summaries(full.Lines), "All progress was reset.")

	recent, err := rec.Recap(ctx, "g", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, recent.Clicks)
	assert.Equal(t, 20.5, recent.CookiesGenerated)
	assert.Equal(t, int64(1), recent.Resets)
	assert.Contains(t, recent.Lines[0].Summary, "since 1 hour ago")
}

func ids(evs []GameEvent) []string {
	out := make([]string, len(evs))
	for i, e := range evs {
		out[i] = e.ID
	}
	return out
}

func summaries(lines []RecapEvent) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Summary
	}
	return out
}

func TestOpen(t *testing.T) {
	b, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "open.db"))
	require.NoError(t, err)
	require.NoError(t, b.Saves.Store(context.Background(), "k", []byte("{}")))
	assert.NoError(t, b.Close())

	m, err := Open(DriverMemory, "")
	require.NoError(t, err)
	assert.IsType(t, &MemorySaveRepository{}, m.Saves)
	m.SetEventLimit(2)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, m.Events.Append(context.Background(), GameEvent{ID: id, GameID: "g"}))
	}
	kept, err := m.Events.GetByGameID(context.Background(), "g")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, ids(kept))
	assert.NoError(t, m.Close())

	_, err = Open("redis", "")
	assert.Error(t, err)
}

func TestInitSQLiteReopensAndVersions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookie.db")
	db, err := InitSQLite(path)
	require.NoError(t, err)
	require.NoError(t, NewSQLiteSaveRepository(db).Store(context.Background(), "k", []byte(`{"currency":3}`)))
	require.NoError(t, db.Close())

	db, err = InitSQLite(path)
	require.NoError(t, err)
	blob, ok, err := NewSQLiteSaveRepository(db).Load(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"currency":3}`, string(blob))

	var version int
	require.NoError(t, db.QueryRow(`PRAGMA user_version`).Scan(&version))
	assert.Equal(t, schemaVersion, version)

	_, err = db.Exec(`PRAGMA user_version = 99`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = InitSQLite(path)
	assert.ErrorContains(t, err, "newer than supported")
}

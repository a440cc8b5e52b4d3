package repositories

import (
	"chat-salas/domain"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	// Reduced value log for testing (avoid gigabytes of preallocated storage)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testMessage(room, author, content string, at time.Time) domain.Message {
	return domain.Message{
		ID:      uuid.New(),
		Room:    room,
		Author:  author,
		Content: content,
		At:      at,
	}
}

func TestHistoryRepository_AppendAndHistory_OldestFirst(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewHistoryRepository(db, slog.New(slog.DiscardHandler), nil)

	base := time.Now().UTC()

	// Given three messages appended out of room order
	req.NoError(repo.Append(testMessage("General", "alice", "primero", base)))
	req.NoError(repo.Append(testMessage("Deportes", "bob", "otro tema", base.Add(time.Millisecond))))
	req.NoError(repo.Append(testMessage("General", "bob", "segundo", base.Add(2*time.Millisecond))))
	req.NoError(repo.Append(testMessage("General", "alice", "tercero", base.Add(3*time.Millisecond))))

	// When reading one room back
	messages, err := repo.History("General")
	req.NoError(err)

	// Then only that room's records come back, oldest first
	req.Len(messages, 3)
	req.Equal([]string{"primero", "segundo", "tercero"},
		lo.Map(messages, func(m domain.Message, _ int) string { return m.Content }))
	req.Equal("alice", messages[0].Author)
	req.Equal("General", messages[0].Room)
}

func TestHistoryRepository_UnknownRoomIsEmpty(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewHistoryRepository(db, slog.New(slog.DiscardHandler), nil)

	messages, err := repo.History("NoExiste")

	req.NoError(err)
	req.Empty(messages)
}

func TestHistoryRepository_ReplayLimitKeepsMostRecent(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewHistoryRepository(db, slog.New(slog.DiscardHandler), lo.ToPtr(2))

	base := time.Now().UTC()
	req.NoError(repo.Append(testMessage("General", "alice", "viejo", base)))
	req.NoError(repo.Append(testMessage("General", "alice", "medio", base.Add(time.Millisecond))))
	req.NoError(repo.Append(testMessage("General", "alice", "nuevo", base.Add(2*time.Millisecond))))

	messages, err := repo.History("General")
	req.NoError(err)

	// The two most recent records, still in chronological order
	req.Equal([]string{"medio", "nuevo"},
		lo.Map(messages, func(m domain.Message, _ int) string { return m.Content }))
}

func TestHistoryRepository_RoomNameWithSeparatorDoesNotLeak(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewHistoryRepository(db, slog.New(slog.DiscardHandler), nil)

	base := time.Now().UTC()
	req.NoError(repo.Append(testMessage("Gen", "alice", "en Gen", base)))
	req.NoError(repo.Append(testMessage("Gen:extra", "bob", "en Gen:extra", base.Add(time.Millisecond))))

	messages, err := repo.History("Gen")
	req.NoError(err)

	req.Len(messages, 1)
	req.Equal("en Gen", messages[0].Content)
}

//go:generate go run go.uber.org/mock/mockgen -source=history.go -destination=../mocks/mock_history_repository.go -package=mocks
package repositories

import (
	"chat-salas/domain"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IHistoryRepository interface {
	Append(message domain.Message) error
	History(room string) ([]domain.Message, error)
}

// HistoryRepository persists room history in BadgerDB.
type HistoryRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewHistoryRepository(db *badger.DB, log *slog.Logger, limitMessages *int) HistoryRepository {
	return HistoryRepository{db: db, log: log, limitMessages: limitMessages}
}

// storedMessage is the on-disk JSON shape of a history record.
type storedMessage struct {
	ID      string `json:"id"`
	Room    string `json:"sala"`
	Author  string `json:"usuario"`
	Content string `json:"texto"`
	Lang    string `json:"lang,omitempty"`
	At      int64  `json:"at"`
}

// Append persists a message under the key "msg:{room}:{timestamp_padded}:{uuid}":
//  1. The 19-digit zero-padded timestamp makes lexicographical order match
//     chronological order within a room.
//  2. The UUID suffix disambiguates two messages appended in the same
//     nanosecond, so no record is ever overwritten.
func (h HistoryRepository) Append(message domain.Message) error {
	key := messageKey(message.Room, message.At, message.ID)
	bytes, err := json.Marshal(fromMessage(message))
	if err != nil {
		return fmt.Errorf("encoding history record: %w", err)
	}
	return h.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
}

// History returns the room's records ordered oldest-first. When a replay
// limit is configured, only the most recent records are returned, still
// oldest-first. An unknown room yields an empty slice, not an error.
//
// The scan walks the key space newest-first so the limit can cut off early,
// and the result is reversed afterwards.
func (h HistoryRepository) History(room string) ([]domain.Message, error) {
	var rawValues [][]byte
	prefixStr := fmt.Sprintf("msg:%s:", room)
	prefix := []byte(prefixStr)

	err := h.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the last possible timestamp for this room, then walk back.
		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if h.limitMessages != nil && len(rawValues) == *h.limitMessages {
				h.log.Debug(fmt.Sprintf("Replay limit of %d messages reached", *h.limitMessages))
				break
			}
			item := it.Item()
			// A room name may itself contain ':', which would make
			// "msg:Gen:" a prefix of another room's keys. The segment right
			// after the prefix must be the padded timestamp; skip otherwise.
			if !timestampSegment(item.Key()[len(prefix):]) {
				continue
			}
			err := item.Value(func(value []byte) error {
				rawValues = append(rawValues, append([]byte{}, value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// rawValues is newest-first; decode into chronological order.
	messages := make([]domain.Message, 0, len(rawValues))
	for i := len(rawValues) - 1; i >= 0; i-- {
		message, err := toMessage(rawValues[i])
		if err != nil {
			return nil, err
		}
		if message.Room != room {
			// Prefix collision from a room name embedding the separator.
			continue
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func messageKey(room string, at time.Time, id uuid.UUID) string {
	return fmt.Sprintf("msg:%s:%019d:%s", room, at.UnixNano(), id)
}

// timestampSegment reports whether the key remainder starts with the
// 19-digit padded timestamp followed by ':'.
func timestampSegment(rest []byte) bool {
	if len(rest) < 20 || rest[19] != ':' {
		return false
	}
	for _, b := range rest[:19] {
		if b < '0' || b > '9' {
			return false
		}
	}
	return true
}

func fromMessage(message domain.Message) storedMessage {
	return storedMessage{
		ID:      message.ID.String(),
		Room:    message.Room,
		Author:  message.Author,
		Content: message.Content,
		Lang:    message.Lang,
		At:      message.At.UnixNano(),
	}
}

func toMessage(raw []byte) (domain.Message, error) {
	var stored storedMessage
	if err := json.Unmarshal(raw, &stored); err != nil {
		return domain.Message{}, fmt.Errorf("decoding history record: %w", err)
	}
	parsedID, err := uuid.Parse(stored.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:      parsedID,
		Room:    stored.Room,
		Author:  stored.Author,
		Content: stored.Content,
		Lang:    stored.Lang,
		At:      time.Unix(0, stored.At).UTC(),
	}, nil
}

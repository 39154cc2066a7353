package repositories

import (
	"chat-realtime/contract"
	"chat-realtime/domain"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) contract.MessageRepository {
	return &MessageRepository{db: db, log: log}
}

// storedMessage only keeps the sender id; profiles are hydrated by the service.
type storedMessage struct {
	ID          string             `json:"id"`
	RoomID      domain.RoomID      `json:"roomId"`
	SenderID    domain.UserID      `json:"senderId"`
	Content     string             `json:"content"`
	MessageType domain.MessageType `json:"messageType"`
	ReplyToID   *string            `json:"replyToId,omitempty"`
	IsEdited    bool               `json:"isEdited"`
	IsDeleted   bool               `json:"isDeleted"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// messageKey is formatted as "msg:{room_id}:{timestamp_padded}:{id}" so that
// a prefix scan returns the messages of a room in chronological order.
// The id disambiguates two messages stored at the same nanosecond.
func messageKey(message domain.Message) string {
	return fmt.Sprintf("%s%s:%019d:%s", messagePrefix, message.RoomID, message.CreatedAt.UnixNano(), message.ID)
}

func replyKey(parentID string, message domain.Message) string {
	return fmt.Sprintf("%s%s:%019d:%s", replyPrefix, parentID, message.CreatedAt.UnixNano(), message.ID)
}

// StoreMessage persists a message with its id lookup and, for a reply,
// its thread entry.
func (m MessageRepository) StoreMessage(ctx context.Context, message domain.Message) error {
	key := messageKey(message)
	return update(ctx, m.db, func(txn *badger.Txn) error {
		if err := setJSON(txn, key, fromMessage(message)); err != nil {
			return err
		}
		if err := txn.Set([]byte(messageIDPrefix+message.ID), []byte(key)); err != nil {
			return err
		}
		if message.ReplyToID != nil {
			return txn.Set([]byte(replyKey(*message.ReplyToID, message)), []byte(key))
		}
		return nil
	})
}

func (m MessageRepository) GetMessage(ctx context.Context, id string) (domain.Message, error) {
	var stored storedMessage
	err := view(ctx, m.db, func(txn *badger.Txn) error {
		key, err := getString(txn, messageIDPrefix+id)
		if err != nil {
			return err
		}
		return getJSON(txn, key, &stored)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return toMessage(stored), nil
}

// UpdateMessage overwrites the content and flags of an existing message.
// Room, sender and creation time are immutable.
func (m MessageRepository) UpdateMessage(ctx context.Context, message domain.Message) error {
	return update(ctx, m.db, func(txn *badger.Txn) error {
		key, err := getString(txn, messageIDPrefix+message.ID)
		if err != nil {
			return err
		}
		var stored storedMessage
		if err := getJSON(txn, key, &stored); err != nil {
			return err
		}
		stored.Content = message.Content
		stored.IsEdited = message.IsEdited
		stored.IsDeleted = message.IsDeleted
		stored.UpdatedAt = message.UpdatedAt
		return setJSON(txn, key, stored)
	})
}

// GetRoomMessages returns up to limit visible messages of a room created
// strictly before the cursor (or the latest ones without a cursor),
// in chronological order.
func (m MessageRepository) GetRoomMessages(ctx context.Context, roomID domain.RoomID, before *time.Time, limit int) ([]domain.Message, error) {
	var messages []domain.Message
	err := view(ctx, m.db, func(txn *badger.Txn) error {
		prefix := []byte(messagePrefix + string(roomID) + ":")
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch before {
		case nil:
			// Start past the newest possible key then walk back in time
			seekKey = append(append([]byte{}, prefix...), 0xFF)
		default:
			seekKey = append(append([]byte{}, prefix...), []byte(fmt.Sprintf("%019d", before.UnixNano()))...)
		}

		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(messages) == limit {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", limit))
				break
			}
			var stored storedMessage
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &stored)
			})
			if err != nil {
				return err
			}
			if stored.IsDeleted {
				continue
			}
			messages = append(messages, toMessage(stored))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lo.Reverse(messages), nil
}

// GetReplies returns the visible replies to a message, oldest first.
func (m MessageRepository) GetReplies(ctx context.Context, messageID string) ([]domain.Message, error) {
	var replies []domain.Message
	err := view(ctx, m.db, func(txn *badger.Txn) error {
		keys, err := scanReplyKeys(txn, replyPrefix+messageID+":")
		if err != nil {
			return err
		}
		for _, key := range keys {
			var stored storedMessage
			if err := getJSON(txn, key, &stored); err != nil {
				return err
			}
			if !stored.IsDeleted {
				replies = append(replies, toMessage(stored))
			}
		}
		return nil
	})
	return replies, err
}

func scanReplyKeys(txn *badger.Txn, prefix string) ([]string, error) {
	var keys []string
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	p := []byte(prefix)
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		value, err := it.Item().ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		keys = append(keys, string(value))
	}
	return keys, nil
}

// DeleteRoomMessages removes every message of a room with its lookups.
// A write batch is used since a busy room does not fit in one transaction.
func (m MessageRepository) DeleteRoomMessages(ctx context.Context, roomID domain.RoomID) error {
	var stored []storedMessage
	err := view(ctx, m.db, func(txn *badger.Txn) error {
		var err error
		stored, err = scanPrefix[storedMessage](txn, messagePrefix+string(roomID)+":")
		return err
	})
	if err != nil {
		return err
	}

	batch := m.db.NewWriteBatch()
	defer batch.Cancel()
	for _, s := range stored {
		message := toMessage(s)
		deletes := [][]byte{[]byte(messageKey(message)), []byte(messageIDPrefix + message.ID)}
		if message.ReplyToID != nil {
			deletes = append(deletes, []byte(replyKey(*message.ReplyToID, message)))
		}
		for _, key := range deletes {
			if err := batch.Delete(key); err != nil {
				return err
			}
		}
	}
	if err := batch.Flush(); err != nil {
		return err
	}
	m.log.Debug("Room messages deleted", "room_id", roomID, "count", len(stored))
	return nil
}

func fromMessage(message domain.Message) storedMessage {
	return storedMessage{
		ID:          message.ID,
		RoomID:      message.RoomID,
		SenderID:    message.Sender.ID,
		Content:     message.Content,
		MessageType: message.MessageType,
		ReplyToID:   message.ReplyToID,
		IsEdited:    message.IsEdited,
		IsDeleted:   message.IsDeleted,
		CreatedAt:   message.CreatedAt,
		UpdatedAt:   message.UpdatedAt,
	}
}

func toMessage(stored storedMessage) domain.Message {
	return domain.Message{
		ID:          stored.ID,
		RoomID:      stored.RoomID,
		Sender:      domain.Profile{ID: stored.SenderID},
		Content:     stored.Content,
		MessageType: stored.MessageType,
		ReplyToID:   stored.ReplyToID,
		IsEdited:    stored.IsEdited,
		IsDeleted:   stored.IsDeleted,
		CreatedAt:   stored.CreatedAt,
		UpdatedAt:   stored.UpdatedAt,
	}
}

package repositories

import (
	"chat-realtime/contract"
	"chat-realtime/domain"
	"context"
	"fmt"
	"log/slog"

	"github.com/blugelabs/bluge"
	"github.com/blugelabs/bluge/analysis/analyzer"
)

const (
	contentField = "content"
	roomField    = "room"
	idField      = "_id"
)

var contentAnalyzer = analyzer.NewStandardAnalyzer()

// MessageIndex is the Bluge full-text index over message contents.
// Documents are keyed by message id; the room is an exact-match keyword.
type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewMessageIndex(writer *bluge.Writer, log *slog.Logger) contract.MessageIndex {
	return &MessageIndex{writer: writer, log: log}
}

// OpenBluge opens the index writer at path.
func OpenBluge(path string) (*bluge.Writer, error) {
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(path))
	if err != nil {
		return nil, fmt.Errorf("open bluge at %s: %w", path, err)
	}
	return writer, nil
}

// Index adds or replaces the document of a message.
func (i MessageIndex) Index(ctx context.Context, message domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := bluge.NewDocument(message.ID).
		AddField(bluge.NewTextField(contentField, message.Content).WithAnalyzer(contentAnalyzer)).
		AddField(bluge.NewKeywordField(roomField, string(message.RoomID)))
	if err := i.writer.Update(doc.ID(), doc); err != nil {
		return fmt.Errorf("index message %s: %w", message.ID, err)
	}
	return nil
}

func (i MessageIndex) Remove(ctx context.Context, messageID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := i.writer.Delete(bluge.Identifier(messageID)); err != nil {
		return fmt.Errorf("unindex message %s: %w", messageID, err)
	}
	return nil
}

// Search returns the ids of the best matching messages of a room, by relevance.
func (i MessageIndex) Search(ctx context.Context, roomID domain.RoomID, query string, limit int) ([]string, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("open index reader: %w", err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Warn("Unable to close index reader", "error", err)
		}
	}()

	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(query).SetField(contentField).SetAnalyzer(contentAnalyzer)).
		AddMust(bluge.NewTermQuery(string(roomID)).SetField(roomField))
	matches, err := reader.Search(ctx, bluge.NewTopNSearch(limit, q))
	if err != nil {
		return nil, fmt.Errorf("search room %s: %w", roomID, err)
	}

	var ids []string
	match, err := matches.Next()
	for err == nil && match != nil {
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == idField {
				ids = append(ids, string(value))
			}
			return true
		})
		if err != nil {
			break
		}
		match, err = matches.Next()
	}
	if err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return ids, nil
}

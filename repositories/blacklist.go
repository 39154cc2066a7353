package repositories

import (
	"context"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

const blacklistPrefix = "blacklist:"

// BlacklistRepository keeps the censored words; each word is a key with no value.
type BlacklistRepository struct {
	db *badger.DB
}

func NewBlacklistRepository(db *badger.DB) *BlacklistRepository {
	return &BlacklistRepository{db: db}
}

// AddWords stores words, lower-cased. Blank words are skipped.
func (b BlacklistRepository) AddWords(ctx context.Context, words ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	batch := b.db.NewWriteBatch()
	defer batch.Cancel()
	for _, word := range words {
		word = strings.ToLower(strings.TrimSpace(word))
		if word == "" {
			continue
		}
		if err := batch.Set([]byte(blacklistPrefix+word), nil); err != nil {
			return err
		}
	}
	return batch.Flush()
}

func (b BlacklistRepository) RemoveWord(ctx context.Context, word string) error {
	return update(ctx, b.db, func(txn *badger.Txn) error {
		return txn.Delete([]byte(blacklistPrefix + strings.ToLower(strings.TrimSpace(word))))
	})
}

// ListWords returns every censored word in key order.
func (b BlacklistRepository) ListWords(ctx context.Context) ([]string, error) {
	var words []string
	err := view(ctx, b.db, func(txn *badger.Txn) error {
		for _, key := range keysWithPrefix(txn, blacklistPrefix) {
			words = append(words, string(key[len(blacklistPrefix):]))
		}
		return nil
	})
	return words, err
}

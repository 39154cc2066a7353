package repositories

import (
	"chat-realtime/errors"
	"context"
	"encoding/json"
	goerrors "errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Key layout shared by the repositories.
const (
	userPrefix      = "user:"
	userEmailPrefix = "user_email:"
	userNamePrefix  = "user_name:"
	roomPrefix      = "room:"
	memberPrefix    = "member:"
	userRoomPrefix  = "user_room:"
	messagePrefix   = "msg:"
	messageIDPrefix = "msgid:"
	replyPrefix     = "reply:"
)

// OpenBadger opens the store at path with the logging level used everywhere in the service.
func OpenBadger(path string) (*badger.DB, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	return db, nil
}

func view(ctx context.Context, db *badger.DB, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return db.View(fn)
}

func update(ctx context.Context, db *badger.DB, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return db.Update(fn)
}

// getJSON decodes the value stored at key into v.
// A missing key is reported as errors.ErrNotFound.
func getJSON(txn *badger.Txn, key string, v any) error {
	item, err := txn.Get([]byte(key))
	if goerrors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%s: %w", key, errors.ErrNotFound)
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key string, v any) error {
	bytes, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return txn.Set([]byte(key), bytes)
}

func exists(txn *badger.Txn, key string) (bool, error) {
	_, err := txn.Get([]byte(key))
	switch {
	case err == nil:
		return true, nil
	case goerrors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, err
	}
}

func getString(txn *badger.Txn, key string) (string, error) {
	item, err := txn.Get([]byte(key))
	if goerrors.Is(err, badger.ErrKeyNotFound) {
		return "", fmt.Errorf("%s: %w", key, errors.ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	value, err := item.ValueCopy(nil)
	return string(value), err
}

// scanPrefix decodes every value under prefix, in key order.
func scanPrefix[T any](txn *badger.Txn, prefix string) ([]T, error) {
	var values []T
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	p := []byte(prefix)
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		var value T
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &value)
		})
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

// keysWithPrefix returns a copy of every key under prefix.
func keysWithPrefix(txn *badger.Txn, prefix string) [][]byte {
	var keys [][]byte
	options := badger.DefaultIteratorOptions
	options.PrefetchValues = false
	it := txn.NewIterator(options)
	defer it.Close()

	p := []byte(prefix)
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys
}

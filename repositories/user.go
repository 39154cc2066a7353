package repositories

import (
	"chat-realtime/contract"
	"chat-realtime/domain"
	"chat-realtime/errors"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) contract.UserRepository {
	return &UserRepository{db: db}
}

// storedUser is the persisted form of a user; the password hash is kept,
// unlike in the JSON form of domain.User.
type storedUser struct {
	ID           domain.UserID `json:"id"`
	Username     string        `json:"username"`
	Email        string        `json:"email"`
	PasswordHash string        `json:"passwordHash"`
	Avatar       *string       `json:"avatar,omitempty"`
	IsOnline     bool          `json:"isOnline"`
	LastSeen     *time.Time    `json:"lastSeen,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// CreateUser persists a new user. Email and username are unique, case-insensitively.
func (u UserRepository) CreateUser(ctx context.Context, user domain.User) error {
	return update(ctx, u.db, func(txn *badger.Txn) error {
		for _, key := range []string{emailKey(user.Email), usernameKey(user.Username)} {
			taken, err := exists(txn, key)
			if err != nil {
				return err
			}
			if taken {
				return errors.ErrUserAlreadyExists
			}
		}
		if err := txn.Set([]byte(emailKey(user.Email)), []byte(user.ID)); err != nil {
			return err
		}
		if err := txn.Set([]byte(usernameKey(user.Username)), []byte(user.ID)); err != nil {
			return err
		}
		return setJSON(txn, userPrefix+string(user.ID), fromUser(user))
	})
}

func (u UserRepository) GetUserByID(ctx context.Context, id domain.UserID) (domain.User, error) {
	var stored storedUser
	err := view(ctx, u.db, func(txn *badger.Txn) error {
		return getJSON(txn, userPrefix+string(id), &stored)
	})
	if err != nil {
		return domain.User{}, err
	}
	return toUser(stored), nil
}

func (u UserRepository) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var stored storedUser
	err := view(ctx, u.db, func(txn *badger.Txn) error {
		id, err := getString(txn, emailKey(email))
		if err != nil {
			return err
		}
		return getJSON(txn, userPrefix+id, &stored)
	})
	if err != nil {
		return domain.User{}, err
	}
	return toUser(stored), nil
}

// UpdateUser overwrites an existing user and keeps the username index in sync.
func (u UserRepository) UpdateUser(ctx context.Context, user domain.User) error {
	return update(ctx, u.db, func(txn *badger.Txn) error {
		var previous storedUser
		if err := getJSON(txn, userPrefix+string(user.ID), &previous); err != nil {
			return err
		}
		if !strings.EqualFold(previous.Username, user.Username) {
			taken, err := exists(txn, usernameKey(user.Username))
			if err != nil {
				return err
			}
			if taken {
				return errors.ErrUserAlreadyExists
			}
			if err := txn.Delete([]byte(usernameKey(previous.Username))); err != nil {
				return err
			}
			if err := txn.Set([]byte(usernameKey(user.Username)), []byte(user.ID)); err != nil {
				return err
			}
		}
		stored := fromUser(user)
		stored.Email = previous.Email
		stored.PasswordHash = lo.Ternary(user.PasswordHash == "", previous.PasswordHash, user.PasswordHash)
		return setJSON(txn, userPrefix+string(user.ID), stored)
	})
}

// SetUserOnlineStatus flips the online flag. Going offline records the last-seen time.
func (u UserRepository) SetUserOnlineStatus(ctx context.Context, id domain.UserID, online bool) error {
	return update(ctx, u.db, func(txn *badger.Txn) error {
		var stored storedUser
		if err := getJSON(txn, userPrefix+string(id), &stored); err != nil {
			return fmt.Errorf("set online status: %w", err)
		}
		stored.IsOnline = online
		if !online {
			stored.LastSeen = lo.ToPtr(time.Now().UTC())
		}
		return setJSON(txn, userPrefix+string(id), stored)
	})
}

func emailKey(email string) string {
	return userEmailPrefix + strings.ToLower(strings.TrimSpace(email))
}

func usernameKey(username string) string {
	return userNamePrefix + strings.ToLower(strings.TrimSpace(username))
}

func fromUser(user domain.User) storedUser {
	return storedUser{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Avatar:       user.Avatar,
		IsOnline:     user.IsOnline,
		LastSeen:     user.LastSeen,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func toUser(stored storedUser) domain.User {
	return domain.User{
		ID:           stored.ID,
		Username:     stored.Username,
		Email:        stored.Email,
		PasswordHash: stored.PasswordHash,
		Avatar:       stored.Avatar,
		IsOnline:     stored.IsOnline,
		LastSeen:     stored.LastSeen,
		CreatedAt:    stored.CreatedAt,
		UpdatedAt:    stored.UpdatedAt,
	}
}

package services

import (
	"chat-realtime/contract"
	"chat-realtime/domain"
	"chat-realtime/errors"
	"context"
	goerrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 100
	DefaultSearchLimit  = 20
	MaxSearchLimit      = 50
)

type IMessageService interface {
	CreateMessage(ctx context.Context, message domain.NewMessage) (domain.Message, error)
	GetMessage(ctx context.Context, messageID string, userID domain.UserID) (domain.Message, error)
	RoomMessages(ctx context.Context, roomID domain.RoomID, userID domain.UserID, before *time.Time, limit int) ([]domain.Message, error)
	EditMessage(ctx context.Context, messageID string, userID domain.UserID, content string) (domain.Message, error)
	DeleteMessage(ctx context.Context, messageID string, userID domain.UserID) (domain.Message, error)
	Replies(ctx context.Context, messageID string, userID domain.UserID) ([]domain.Message, error)
	Search(ctx context.Context, roomID domain.RoomID, userID domain.UserID, query string, limit int) ([]domain.Message, error)
}

type MessageService struct {
	log              *slog.Logger
	messages         contract.MessageRepository
	users            contract.UserRepository
	authorizer       contract.MembershipAuthorizer
	index            contract.MessageIndex
	censor           contract.Censor
	maxContentLength int
	historyLimit     int
}

func NewMessageService(
	log *slog.Logger,
	messages contract.MessageRepository,
	users contract.UserRepository,
	authorizer contract.MembershipAuthorizer,
	index contract.MessageIndex,
	censor contract.Censor,
	maxContentLength int,
	historyLimit int,
) *MessageService {
	return &MessageService{
		log:              log,
		messages:         messages,
		users:            users,
		authorizer:       authorizer,
		index:            index,
		censor:           censor,
		maxContentLength: maxContentLength,
		historyLimit:     historyLimit,
	}
}

// CreateMessage implements contract.MessageCreator. The sender must durably
// belong to the room and a reply must target a message of the same room.
func (s *MessageService) CreateMessage(ctx context.Context, message domain.NewMessage) (domain.Message, error) {
	content, err := s.checkContent(message.Content)
	if err != nil {
		return domain.Message{}, err
	}
	messageType := lo.Ternary(message.MessageType == "", domain.MessageText, message.MessageType)
	if !lo.Contains([]domain.MessageType{domain.MessageText, domain.MessageImage, domain.MessageFile}, messageType) {
		return domain.Message{}, fmt.Errorf("%w: unknown message type %q", errors.ErrInvalidInput, messageType)
	}
	if err := s.requireMember(ctx, message.RoomID, message.SenderID); err != nil {
		return domain.Message{}, err
	}
	if message.ReplyToID != nil {
		parent, err := s.messages.GetMessage(ctx, *message.ReplyToID)
		if err != nil {
			return domain.Message{}, fmt.Errorf("reply target: %w", err)
		}
		if parent.RoomID != message.RoomID {
			return domain.Message{}, fmt.Errorf("%w: reply target belongs to another room", errors.ErrInvalidInput)
		}
	}

	now := time.Now().UTC()
	created := domain.Message{
		ID:          uuid.NewString(),
		RoomID:      message.RoomID,
		Sender:      domain.Profile{ID: message.SenderID},
		Content:     content,
		MessageType: messageType,
		ReplyToID:   message.ReplyToID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.messages.StoreMessage(ctx, created); err != nil {
		return domain.Message{}, fmt.Errorf("store message: %w", err)
	}
	if err := s.index.Index(ctx, created); err != nil {
		s.log.Warn("Message not indexed", "message_id", created.ID, "error", err)
	}
	return s.hydrateOne(ctx, created), nil
}

func (s *MessageService) GetMessage(ctx context.Context, messageID string, userID domain.UserID) (domain.Message, error) {
	message, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return domain.Message{}, err
	}
	if err := s.requireMember(ctx, message.RoomID, userID); err != nil {
		return domain.Message{}, err
	}
	return s.hydrateOne(ctx, message), nil
}

// RoomMessages pages through the history of a room, oldest first within the page.
func (s *MessageService) RoomMessages(ctx context.Context, roomID domain.RoomID, userID domain.UserID, before *time.Time, limit int) ([]domain.Message, error) {
	if err := s.requireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}
	messages, err := s.messages.GetRoomMessages(ctx, roomID, before, clamp(limit, s.historyLimit, MaxHistoryLimit))
	if err != nil {
		return nil, err
	}
	return s.hydrate(ctx, messages), nil
}

// EditMessage replaces the content of a message. Only its sender may edit it,
// and a deleted message stays deleted.
func (s *MessageService) EditMessage(ctx context.Context, messageID string, userID domain.UserID, content string) (domain.Message, error) {
	content, err := s.checkContent(content)
	if err != nil {
		return domain.Message{}, err
	}
	message, err := s.ownedMessage(ctx, messageID, userID)
	if err != nil {
		return domain.Message{}, err
	}
	if message.IsDeleted {
		return domain.Message{}, fmt.Errorf("%w: cannot edit a deleted message", errors.ErrInvalidInput)
	}

	message.Content = content
	message.IsEdited = true
	message.UpdatedAt = time.Now().UTC()
	if err := s.messages.UpdateMessage(ctx, message); err != nil {
		return domain.Message{}, err
	}
	if err := s.index.Index(ctx, message); err != nil {
		s.log.Warn("Message not reindexed", "message_id", message.ID, "error", err)
	}
	return s.hydrateOne(ctx, message), nil
}

// DeleteMessage soft deletes a message of the caller.
func (s *MessageService) DeleteMessage(ctx context.Context, messageID string, userID domain.UserID) (domain.Message, error) {
	message, err := s.ownedMessage(ctx, messageID, userID)
	if err != nil {
		return domain.Message{}, err
	}

	message.IsDeleted = true
	message.Content = domain.DeletedContent
	message.UpdatedAt = time.Now().UTC()
	if err := s.messages.UpdateMessage(ctx, message); err != nil {
		return domain.Message{}, err
	}
	if err := s.index.Remove(ctx, message.ID); err != nil {
		s.log.Warn("Message not unindexed", "message_id", message.ID, "error", err)
	}
	return s.hydrateOne(ctx, message), nil
}

func (s *MessageService) Replies(ctx context.Context, messageID string, userID domain.UserID) ([]domain.Message, error) {
	if _, err := s.GetMessage(ctx, messageID, userID); err != nil {
		return nil, err
	}
	replies, err := s.messages.GetReplies(ctx, messageID)
	if err != nil {
		return nil, err
	}
	return s.hydrate(ctx, replies), nil
}

// Search runs a full-text query over the visible messages of a room.
func (s *MessageService) Search(ctx context.Context, roomID domain.RoomID, userID domain.UserID, query string, limit int) ([]domain.Message, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", errors.ErrInvalidInput)
	}
	if err := s.requireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}
	ids, err := s.index.Search(ctx, roomID, query, clamp(limit, DefaultSearchLimit, MaxSearchLimit))
	if err != nil {
		return nil, err
	}

	var found []domain.Message
	for _, id := range ids {
		message, err := s.messages.GetMessage(ctx, id)
		if goerrors.Is(err, errors.ErrNotFound) {
			continue // indexed before its room was deleted
		}
		if err != nil {
			return nil, err
		}
		if !message.IsDeleted && message.RoomID == roomID {
			found = append(found, message)
		}
	}
	return s.hydrate(ctx, found), nil
}

func (s *MessageService) checkContent(content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%w: empty content", errors.ErrInvalidInput)
	}
	if s.maxContentLength > 0 && utf8.RuneCountInString(content) > s.maxContentLength {
		return "", fmt.Errorf("%w: content longer than %d characters", errors.ErrInvalidInput, s.maxContentLength)
	}
	censored, words := s.censor.Censor(content)
	if len(words) > 0 {
		s.log.Debug("Content censored", "words", len(words))
	}
	return censored, nil
}

func (s *MessageService) ownedMessage(ctx context.Context, messageID string, userID domain.UserID) (domain.Message, error) {
	message, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return domain.Message{}, err
	}
	if message.Sender.ID != userID {
		return domain.Message{}, fmt.Errorf("%w: not the sender of this message", errors.ErrForbidden)
	}
	return message, nil
}

func (s *MessageService) requireMember(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	member, err := s.authorizer.IsRoomMember(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if !member {
		return fmt.Errorf("%w: not a member of room %s", errors.ErrForbidden, roomID)
	}
	return nil
}

// hydrate replaces sender ids with the current profiles of the senders.
func (s *MessageService) hydrate(ctx context.Context, messages []domain.Message) []domain.Message {
	profiles := make(map[domain.UserID]domain.Profile)
	for _, senderID := range lo.Uniq(lo.Map(messages, func(m domain.Message, _ int) domain.UserID { return m.Sender.ID })) {
		user, err := s.users.GetUserByID(ctx, senderID)
		if err != nil {
			s.log.Debug("Sender not found", "user_id", senderID, "error", err)
			continue
		}
		profiles[senderID] = user.Profile()
	}
	return lo.Map(messages, func(m domain.Message, _ int) domain.Message {
		if profile, ok := profiles[m.Sender.ID]; ok {
			m.Sender = profile
		}
		return m
	})
}

func (s *MessageService) hydrateOne(ctx context.Context, message domain.Message) domain.Message {
	return s.hydrate(ctx, []domain.Message{message})[0]
}

// clamp applies the fallback to a missing limit and caps it at ceiling.
func clamp(limit, fallback, ceiling int) int {
	if limit <= 0 {
		limit = fallback
	}
	return min(limit, ceiling)
}

package services

import (
	"chat-realtime/auth"
	"chat-realtime/contract"
	"chat-realtime/domain"
	"chat-realtime/errors"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type IAuthService interface {
	Register(ctx context.Context, username, email, password string) (AuthResult, error)
	Login(ctx context.Context, email, password string) (AuthResult, error)
	Profile(ctx context.Context, userID domain.UserID) (domain.User, error)
	UpdateProfile(ctx context.Context, userID domain.UserID, update ProfileUpdate) (domain.User, error)
}

// AuthResult is what a client receives after authenticating.
type AuthResult struct {
	User  domain.User `json:"user"`
	Token string      `json:"token"`
}

type ProfileUpdate struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=50,alphanum"`
	Avatar   *string `json:"avatar" validate:"omitempty,url,max=500"`
}

type AuthService struct {
	userRepository contract.UserRepository
	tokens         *auth.TokenManager
}

func NewAuthService(repo contract.UserRepository, tokens *auth.TokenManager) IAuthService {
	return &AuthService{userRepository: repo, tokens: tokens}
}

func (s *AuthService) Register(ctx context.Context, username, email, password string) (AuthResult, error) {
	valReq := auth.RegisterRequest{
		Username: strings.TrimSpace(username),
		Email:    strings.TrimSpace(email),
		Password: password,
	}

	// Business rules are checked before any expensive cryptographic operation
	if err := auth.ValidateRegister(valReq); err != nil {
		return AuthResult{}, err
	}

	// Hashing happens here so the repository never sees plain passwords
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return AuthResult{}, fmt.Errorf("hashing failed: %w", err)
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:           domain.UserID(uuid.NewString()),
		Username:     valReq.Username,
		Email:        valReq.Email,
		PasswordHash: hashedPassword,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepository.CreateUser(ctx, user); err != nil {
		return AuthResult{}, err // ErrUserAlreadyExists when email or username is taken
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{User: user, Token: token}, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (AuthResult, error) {
	user, err := s.userRepository.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		// Generic error to prevent user enumeration attacks
		return AuthResult{}, errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return AuthResult{}, errors.ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{User: user, Token: token}, nil
}

func (s *AuthService) Profile(ctx context.Context, userID domain.UserID) (domain.User, error) {
	return s.userRepository.GetUserByID(ctx, userID)
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID domain.UserID, update ProfileUpdate) (domain.User, error) {
	if err := auth.Validate(update); err != nil {
		return domain.User{}, err
	}
	user, err := s.userRepository.GetUserByID(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	if update.Username != nil {
		user.Username = *update.Username
	}
	if update.Avatar != nil {
		user.Avatar = update.Avatar
	}
	user.UpdatedAt = time.Now().UTC()
	if err := s.userRepository.UpdateUser(ctx, user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

package errors

import (
	goerrors "errors"
	"fmt"
	"net/http"
)

// Realtime taxonomy.
var (
	ErrUnauthorized     = fmt.Errorf("unauthorized")
	ErrForbidden        = fmt.Errorf("forbidden")
	ErrNotFound         = fmt.Errorf("not found")
	ErrProtocol         = fmt.Errorf("protocol error")
	ErrDeliveryFailure  = fmt.Errorf("delivery failure")
	ErrNotInRoom        = fmt.Errorf("not in room")
	ErrSessionClosed    = fmt.Errorf("session closed")
	ErrCapacityReached  = fmt.Errorf("connection capacity reached")
	ErrConnectionClosed = fmt.Errorf("connection closed")
	ErrIdleTimeout      = fmt.Errorf("idle timeout")
)

// Store and account errors.
var (
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrInvalidInput       = fmt.Errorf("invalid input")
	ErrAlreadyMember      = fmt.Errorf("already a member of this room")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
)

// Background workers.
var ErrWorkerPanic = fmt.Errorf("worker panicked")

// HTTPStatus maps a domain error to the status code returned by the REST layer.
// Unknown errors are reported as internal errors.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case goerrors.Is(err, ErrUnauthorized), goerrors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case goerrors.Is(err, ErrForbidden), goerrors.Is(err, ErrNotInRoom):
		return http.StatusForbidden
	case goerrors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case goerrors.Is(err, ErrUserAlreadyExists), goerrors.Is(err, ErrAlreadyMember):
		return http.StatusConflict
	case goerrors.Is(err, ErrInvalidInput), goerrors.Is(err, ErrInvalidPassword), goerrors.Is(err, ErrProtocol):
		return http.StatusBadRequest
	case goerrors.Is(err, ErrCapacityReached):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns a short description safe to send to a client.
// Wrapped details are never exposed.
func PublicMessage(err error) string {
	switch {
	case goerrors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case goerrors.Is(err, ErrInvalidCredentials):
		return ErrInvalidCredentials.Error()
	case goerrors.Is(err, ErrNotInRoom):
		return "not in room"
	case goerrors.Is(err, ErrForbidden):
		return "forbidden"
	case goerrors.Is(err, ErrNotFound):
		return "not found"
	case goerrors.Is(err, ErrUserAlreadyExists):
		return ErrUserAlreadyExists.Error()
	case goerrors.Is(err, ErrAlreadyMember):
		return ErrAlreadyMember.Error()
	case goerrors.Is(err, ErrInvalidPassword):
		return ErrInvalidPassword.Error()
	case goerrors.Is(err, ErrInvalidInput), goerrors.Is(err, ErrProtocol):
		return "invalid request"
	case goerrors.Is(err, ErrCapacityReached):
		return "server is full, try again later"
	default:
		return "internal error"
	}
}

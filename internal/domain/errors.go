package domain

import "errors"

var (
	ErrInvalidRoomID = errors.New("room id must be numeric")
	ErrInvalidParams = errors.New("invalid room parameters")
	ErrDuplicateRoom = errors.New("room already exists")
	ErrRoomNotFound  = errors.New("room not found")

	ErrWrongPassword = errors.New("wrong password")
	ErrInvalidToken  = errors.New("invalid token")
	ErrTokenExpired  = errors.New("token expired")
	ErrRoomMismatch  = errors.New("token issued for another room")

	ErrMalformedMessage = errors.New("malformed signal message")
	ErrNotMember        = errors.New("session is not a member of the room")
)

// IsUnauthorized groups every failure that is reported to callers as a plain 401.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrWrongPassword) ||
		errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrRoomMismatch)
}

package errors

import "fmt"

var (
	// Identity
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrUserNotFound       = fmt.Errorf("user not found")

	// Rooms and membership
	ErrRoomAlreadyExists = fmt.Errorf("room already exists")
	ErrRoomNotFound      = fmt.Errorf("room not found")
	ErrNotAMember        = fmt.Errorf("not a member of the room")

	// Ingestion
	ErrEmptyContent     = fmt.Errorf("message content is empty")
	ErrContentTooLong   = fmt.Errorf("message content exceeds the maximum length")
	ErrMalformedFrame   = fmt.Errorf("malformed inbound frame")
	ErrStoreUnavailable = fmt.Errorf("message store unavailable")

	// Fanout
	ErrSlowConsumer  = fmt.Errorf("outbound queue saturated")
	ErrSessionClosed = fmt.Errorf("session closed")

	// Supervision
	ErrWorkerPanic = fmt.Errorf("worker panic")
)

package dialogue

import "errors"

var (
	// ErrUserAbort is returned by Session.Run when the user issued an
	// exit command.
	ErrUserAbort = errors.New("user ended the conversation")
	// ErrEmptyUtterance is returned by Submit for blank input without an image.
	ErrEmptyUtterance = errors.New("empty utterance")
)

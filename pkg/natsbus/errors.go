package natsbus

import "errors"

var (
	ErrInvalidSubject = errors.New("invalid subject")
	ErrNoSession      = errors.New("server did not open a session")
)

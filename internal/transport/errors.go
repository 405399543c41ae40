package transport

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected      = errors.New("not connected")
	ErrClosed            = errors.New("connection closed")
	ErrAlreadyConnected  = errors.New("already connected")
	ErrAlreadySubscribed = errors.New("already subscribed")
	ErrUnsubscribed      = errors.New("subscription is not active")
	ErrBrokerError       = errors.New("broker error")
)

type Error struct {
	Op      string
	Channel string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Channel != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Channel, e.Err)
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

func NewChannelError(op, channel string, err error) *Error {
	return &Error{Op: op, Channel: channel, Err: err}
}

func WrapError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}

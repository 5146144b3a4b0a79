package errors

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid")
	ErrInternal = errors.New("internal")
)

func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

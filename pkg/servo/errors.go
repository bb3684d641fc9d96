package servo

import "errors"

var (
	ErrInvalidIdentifier = errors.New("motor id must be between 0 and 255")
	ErrOutOfRange        = errors.New("command parameter out of range")
)

package pipeline

import "errors"

var ErrInvalidOptions = errors.New("invalid pipeline options")

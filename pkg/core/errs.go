package core

import "errors"

var ErrInvalidRange = errors.New("invalid range")

package tohost

import (
	"errors"
)

// ErrConfig is a generic error for configuration issues, like unknown handler references
// or duplicate stage names.
var ErrConfig = errors.New("errConfig")

// ErrBind is a generic error for bind issues, like not finding a requested device at initialization
// time when nonexistent devices are not allowed.
var ErrBind = errors.New("errBind")

// ErrHandler is a generic error for handler issues, such as an unknown handler name or a
// handler that failed.
var ErrHandler = errors.New("errHandler")

// ErrSink is a generic error for issues opening or writing to a delivery sink.
var ErrSink = errors.New("errSink")

// ErrUnsupported is returned when the current platform cannot provide something, like packet
// sockets.
var ErrUnsupported = errors.New("errUnsupported")

// internal/error/error.go

package error

import (
	"errors"
	"fmt"
)

type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

type ErrorType int

const (
	ConfigError ErrorType = iota
	ConnectionError
	AuthError
	ProtocolError
	CryptoError
	ClipboardError
	ValidationError
)

func (t ErrorType) String() string {
	switch t {
	case ConfigError:
		return "config"
	case ConnectionError:
		return "connection"
	case AuthError:
		return "auth"
	case ProtocolError:
		return "protocol"
	case CryptoError:
		return "crypto"
	case ClipboardError:
		return "clipboard"
	case ValidationError:
		return "validation"
	default:
		return "unknown"
	}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(errType ErrorType, message string, err error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// Is reports whether err carries an AppError of the given type anywhere in
// its chain.
func Is(err error, errType ErrorType) bool {
	var appErr *AppError
	for err != nil {
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Type == errType {
			return true
		}
		err = appErr.Err
	}
	return false
}

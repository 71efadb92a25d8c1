package session

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/ovaphlow/pitchfork/zippora-client-go/internal/gateway"
)

// HashPassword returns the lowercase md5 hex digest the backend stores and
// compares. Plain passwords never leave the device.
func HashPassword(plain string) string {
	sum := md5.Sum([]byte(plain))
	return hex.EncodeToString(sum[:])
}

const (
	msgNetwork      = "Network error, please try again later."
	msgSessionEnded = "Your session has expired, please log in again."
	msgNotLoggedIn  = "Please log in first."
)

// UserMessage renders err as text fit for the member. Server messages are
// passed through as sent.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ended *SessionEndedError
	if errors.As(err, &ended) {
		return msgSessionEnded
	}
	switch {
	case errors.Is(err, ErrNotLoggedIn):
		return msgNotLoggedIn
	case errors.Is(err, ErrMissingIdentifier):
		return "Please enter your email or phone number."
	case errors.Is(err, ErrPasswordMismatch):
		return "The two passwords are different."
	}
	var be *gateway.BusinessError
	if errors.As(err, &be) {
		if be.Message != "" {
			return be.Message
		}
		switch {
		case errors.Is(err, ErrEmailRegistered):
			return "This email has already been registered."
		case errors.Is(err, ErrWrongVcode):
			return "The verification code is wrong."
		case errors.Is(err, ErrPhoneRegistered):
			return "This phone number has already been registered."
		}
		return fmt.Sprintf("Request failed (code %d).", be.Code)
	}
	var te *gateway.TransportError
	if errors.As(err, &te) {
		return msgNetwork
	}
	return err.Error()
}

package gateway

import (
	"errors"
	"fmt"
)

// Documented business codes. Codes are scoped to the operation that returned
// them: 3 means "email registered" for registration but "unsupported code"
// for a QR scan.
const (
	CodeEmailRegistered = 3
	CodeWrongVcode      = 7
	CodePhoneRegistered = 8

	CodeQREmpty       = 2
	CodeQRUnsupported = 3
	CodeQRExpired     = 4
)

// ErrMalformedResponse marks a body that is not a {ret,data,msg} envelope.
var ErrMalformedResponse = errors.New("malformed response envelope")

// BusinessError is a request the backend understood and rejected.
type BusinessError struct {
	Op      string
	Code    int
	Message string
}

func (e *BusinessError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: ret=%d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s (ret=%d)", e.Op, e.Message, e.Code)
}

// TokenExpiredError is the business failure telling the client its access
// token is no longer accepted.
type TokenExpiredError struct {
	*BusinessError
}

func (e *TokenExpiredError) Error() string { return "token expired: " + e.BusinessError.Error() }

func (e *TokenExpiredError) Unwrap() error { return e.BusinessError }

// TransportError covers everything that prevented a usable envelope from
// arriving: network failure, timeout, cancellation, garbage body.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: transport failure (http %d): %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ResultKind is the three-way classification of a gateway call.
type ResultKind int

const (
	KindSuccess ResultKind = iota
	KindBusiness
	KindTransport
)

func (k ResultKind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindBusiness:
		return "business_failure"
	case KindTransport:
		return "transport_failure"
	default:
		return "unknown"
	}
}

// Kind classifies err as returned by any Client method. Errors that did not
// come from the gateway are treated as transport failures.
func Kind(err error) ResultKind {
	if err == nil {
		return KindSuccess
	}
	var be *BusinessError
	if errors.As(err, &be) {
		return KindBusiness
	}
	return KindTransport
}

// IsTokenExpired reports whether err carries a TokenExpiredError.
func IsTokenExpired(err error) bool {
	var te *TokenExpiredError
	return errors.As(err, &te)
}

// BusinessCode returns the operation and ret code of a business failure.
func BusinessCode(err error) (op string, code int, ok bool) {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Op, be.Code, true
	}
	return "", 0, false
}

package forwarder

import (
	"errors"
	"fmt"
)

// Kind classifies why a forward failed.
type Kind string

const (
	KindEncode    Kind = "encode"    // payload could not be serialised
	KindTransport Kind = "transport" // request not built, not delivered or no response read
	KindStatus    Kind = "status"    // backend answered with a status other than 200
	KindDecode    Kind = "decode"    // backend answered 200 with a body that is not JSON
	KindInternal  Kind = "internal"  // unexpected panic inside the operation
)

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrEncode    = errors.New("encode payload")
	ErrTransport = errors.New("deliver payload")
	ErrStatus    = errors.New("unexpected backend status")
	ErrDecode    = errors.New("decode backend response")
	ErrInternal  = errors.New("internal failure")
)

// Error is the typed failure returned by Forwarder.Send.
type Error struct {
	Kind       Kind
	StatusCode int    // set for KindStatus and KindDecode
	Body       []byte // raw response body for KindStatus and KindDecode
	Err        error
}

func (e *Error) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("%v: HTTP %d", ErrStatus, e.StatusCode)
	}
	if e.Err == nil {
		return e.Kind.sentinel().Error()
	}
	return fmt.Sprintf("%v: %v", e.Kind.sentinel(), e.Err)
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	errs := []error{e.Kind.sentinel()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func (k Kind) sentinel() error {
	switch k {
	case KindEncode:
		return ErrEncode
	case KindTransport:
		return ErrTransport
	case KindStatus:
		return ErrStatus
	case KindDecode:
		return ErrDecode
	default:
		return ErrInternal
	}
}

// KindOf reports the Kind carried by err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

package remote

import (
	"errors"
)

// 远端交互的三类错误，均不致命，由 status.Board 展示给操作员。
var (
	ErrNetwork           = errors.New("network error")
	ErrMalformedResponse = errors.New("malformed response")
	ErrActionRejected    = errors.New("action rejected")
)

// Error 携带操作员可见的文案；errors.Is 可匹配 Kind 以及底层错误。
type Error struct {
	Kind    error
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.Error()
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// KindOf 将任意错误归类为 network / malformed / rejected，未知归为 internal。
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, ErrActionRejected):
		return "rejected"
	default:
		return "internal"
	}
}

func networkErr(op string, err error) *Error {
	return &Error{Kind: ErrNetwork, Op: op, Err: err}
}

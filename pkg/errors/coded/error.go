package coded

import (
	"go.ytsaurus.tech/library/go/core/xerrors"
)

type CodedError interface {
	error
	Code() Code
	Unwrap() error
}

type codedError struct {
	code Code
	err  error
}

func (e *codedError) Error() string {
	return e.err.Error()
}

func (e *codedError) Code() Code {
	return e.code
}

func (e *codedError) Unwrap() error {
	return e.err
}

func Errorf(code Code, format string, args ...any) error {
	return &codedError{code: code, err: xerrors.Errorf(format, args...)}
}

// Wrap attaches code to err. A nil err stays nil.
func Wrap(code Code, err error) error {
	if err == nil {
		return nil
	}
	return &codedError{code: code, err: err}
}

// CodeOf returns the outermost code in the chain of err.
func CodeOf(err error) (Code, bool) {
	var codedErr CodedError
	if xerrors.As(err, &codedErr) {
		return codedErr.Code(), true
	}
	return "", false
}

// Package apperrors holds the error taxonomy shared by the monitoring engine.
//
// Upstream errors are surfaced to the immediate caller and never retried.
// Cache errors are logged and swallowed. Dispatch errors leave the cooldown
// untouched so the next sweep retries. Configuration errors reject only the
// offending call.
package apperrors

import (
	"errors"
	"fmt"
)

type AppError struct {
	Code Code
	Op   string
	Err  error
}

func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Code, e.Op, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func WrapWithCode(code Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Code: code,
		Op:   op,
		Err:  err,
	}
}

func Upstream(op string, err error) error {
	return WrapWithCode(CodeUpstream, op, err)
}

func Cache(op string, err error) error {
	return WrapWithCode(CodeCache, op, err)
}

func Dispatch(op string, err error) error {
	return WrapWithCode(CodeDispatch, op, err)
}

func Configuration(op, msg string) error {
	return WrapWithCode(CodeConfiguration, op, errors.New(msg))
}

func NotFound(op, msg string) error {
	return WrapWithCode(CodeNotFound, op, errors.New(msg))
}

// CodeOf returns the code of the outermost AppError in the chain, or "" if none.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

func IsUpstream(err error) bool      { return HasCode(err, CodeUpstream) }
func IsCache(err error) bool         { return HasCode(err, CodeCache) }
func IsDispatch(err error) bool      { return HasCode(err, CodeDispatch) }
func IsConfiguration(err error) bool { return HasCode(err, CodeConfiguration) }
func IsNotFound(err error) bool      { return HasCode(err, CodeNotFound) }

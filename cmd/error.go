/*
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 The LibreGraph Authors.
 */

package cmd

import (
	"errors"
	"fmt"
	"os"
)

const (
	ExitCodeError         = 1
	ExitCodeInvalidFilter = 3
	ExitCodeStartupError  = 64
)

type ErrorWithExitCode struct {
	Code int
	Err  error
}

func (e *ErrorWithExitCode) Error() string {
	return e.Err.Error()
}

func (e *ErrorWithExitCode) Unwrap() error {
	return e.Err
}

func WrapErrorWithExitCode(err error, code int) error {
	return &ErrorWithExitCode{
		Err:  err,
		Code: code,
	}
}

func StartupError(err error) error {
	return WrapErrorWithExitCode(err, ExitCodeStartupError)
}

func InvalidFilterError(err error) error {
	return WrapErrorWithExitCode(err, ExitCodeInvalidFilter)
}

// ExitCode returns the process exit code for err.
func ExitCode(err error) int {
	var exitCodeErr *ErrorWithExitCode
	if errors.As(err, &exitCodeErr) {
		return exitCodeErr.Code
	}
	return ExitCodeError
}

// ExitOnError prints err and exits the process if err is not nil.
func ExitOnError(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(ExitCode(err))
}

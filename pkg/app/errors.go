/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package app

import (
	"errors"
	"fmt"
)

var (
	ErrApp = errors.New("app error")

	// ErrNotStarted is returned by operations that need a successful Start.
	ErrNotStarted = errors.New("app has not started")

	// ErrNoAuthorizedPersons means the service reports nobody authorized
	// this app yet.
	ErrNoAuthorizedPersons = errors.New("no authorized persons")
)

func ErrGenericError(text string) error {
	return fmt.Errorf("%w : %s", ErrApp, text)
}

func ErrGenericErrorWrap(text string, err error) error {
	return fmt.Errorf("%w : %s", err, text)
}

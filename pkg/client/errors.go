/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package client

import (
	"errors"
	"fmt"
)

var (
	ErrClient = errors.New("client error")

	// ErrNotProvisioned is returned by calls that need an app instance
	// before provisioning has completed.
	ErrNotProvisioned = errors.New("app is not provisioned")

	// ErrNoCredentials is returned when a signed call is attempted without
	// a session credential.
	ErrNoCredentials = errors.New("no session credentials")
)

func ErrGenericError(text string) error {
	return fmt.Errorf("%w : %s", ErrClient, text)
}

func ErrGenericErrorWrap(text string, err error) error {
	return fmt.Errorf("%w : %s", err, text)
}

// SPDX-License-Identifier: Apache-2.0

package cmd

import "errors"

var (
	errNotInitialized     = errors.New("butane is not initialized in this directory, run 'butane init <connection-uri>' first")
	errAlreadyInitialized = errors.New("butane is already initialized in this directory")
)

/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package main

import "github.com/microsoft/healthvault-client-go/cmd"

func main() {
	cmd.Execute()
}

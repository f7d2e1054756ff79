// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/mlbe/mlbe-runner/cmd/mlbe"

func main() {
	cmd.Execute()
}

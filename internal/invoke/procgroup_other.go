// SPDX-License-Identifier: MPL-2.0

//go:build !unix

package invoke

import "os/exec"

// configureProcessGroup is a no-op where process groups are unavailable;
// exec.CommandContext still kills the direct child on cancellation.
func configureProcessGroup(_ *exec.Cmd) {}

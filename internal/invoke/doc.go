// SPDX-License-Identifier: MPL-2.0

// Package invoke runs external binaries (git, docker, podman) and captures their output.
//
// Invoker is the only place in the module that spawns processes. It resolves the binary
// before spawning so a missing tool (ToolMissingError) is never confused with a tool that
// ran and failed (InvocationFailedError). A non-existent working directory is reported as
// PathMissingError. Each call is a single attempt; retry policy belongs to callers.
//
// On unix the child runs in its own process group and the whole group is killed when the
// context is cancelled, so a timed-out `docker run` does not leave its client orphaned.
package invoke

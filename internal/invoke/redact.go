// SPDX-License-Identifier: MPL-2.0

package invoke

import (
	"net/url"
	"strings"
)

// redactedUser replaces any userinfo found in a URL argument.
const redactedUser = "REDACTED"

// RedactURL hides the userinfo (token or user:password) of a URL.
// Strings that are not URLs with userinfo are returned unchanged.
func RedactURL(raw string) string {
	if !strings.Contains(raw, "@") || !strings.Contains(raw, "://") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = url.User(redactedUser)
	return u.String()
}

// RedactArgs returns a copy of args with every URL credential hidden.
func RedactArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = RedactURL(a)
	}
	return out
}

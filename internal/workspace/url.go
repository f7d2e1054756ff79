// SPDX-License-Identifier: MPL-2.0

package workspace

import (
	"net/url"
	"strings"

	"github.com/mlbe/mlbe-runner/internal/invoke"
)

// IsRemoteURL reports whether raw names a network remote rather than a local repository.
func IsRemoteURL(raw string) bool {
	for _, prefix := range []string{"https://", "http://", "ssh://", "git://", "git@"} {
		if strings.HasPrefix(raw, prefix) {
			return true
		}
	}
	return false
}

// NormalizeURL trims trailing slashes from network remotes and ensures a .git suffix.
// Local paths and file:// URLs are returned trimmed but otherwise unchanged.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if !IsRemoteURL(u) {
		return u
	}
	u = strings.TrimRight(u, "/")
	if !strings.HasSuffix(u, ".git") {
		u += ".git"
	}
	return u
}

// InjectToken embeds token as the userinfo of an https URL.
// URLs that already carry userinfo, non-https URLs and empty tokens are returned unchanged.
func InjectToken(raw, token string) string {
	if token == "" || !strings.HasPrefix(raw, "https://") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.User != nil {
		return raw
	}
	u.User = url.User(token)
	return u.String()
}

// RedactURL hides credentials embedded in a URL.
func RedactURL(raw string) string {
	return invoke.RedactURL(raw)
}

// redactToken removes every occurrence of token from s.
func redactToken(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "REDACTED")
}

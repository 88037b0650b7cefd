// Package report writes the JSONL event log of a verification run.
package report

import (
	"net"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// UnknownSite is the default site name for unknown or invalid URLs.
const UnknownSite = "unknown"

// NewRunID returns a fresh identifier for one verification run.
func NewRunID() string {
	return uuid.New().String()
}

var unsafeChars = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	" ", "_",
)

// SanitizeSiteName converts a host or host:port into a safe directory name.
// The port is kept only for loopback hosts. It never returns "".
func SanitizeSiteName(hostport string) string {
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		host, port = strings.Trim(hostport, "[]"), ""
	}

	name := host
	if port != "" && isLoopback(host) {
		name = host + "_" + port
	}

	result := unsafeChars.Replace(name)
	if result == "" {
		return UnknownSite
	}

	// Filesystem name limit
	if len(result) > 255 {
		result = result[:255]
	}

	return result
}

// ExtractSite extracts and sanitizes the site name from a URL.
func ExtractSite(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return UnknownSite
	}

	host := u.Hostname()
	if host == "" {
		if u.Scheme != "" && u.Opaque != "" {
			return SanitizeSiteName(u.Scheme + "_" + u.Opaque)
		}
		return UnknownSite
	}

	if port := u.Port(); port != "" {
		return SanitizeSiteName(net.JoinHostPort(host, port))
	}
	return SanitizeSiteName(host)
}

// EventsPath returns the JSONL file for a run: <baseDir>/<site>/<runID>.jsonl.
func EventsPath(baseDir, site, runID string) string {
	if site == "" {
		site = UnknownSite
	}
	return filepath.Join(baseDir, site, runID+".jsonl")
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && (ip.IsLoopback() || ip.IsUnspecified())
}

// Package identity derives the coordinating-instance identity used to
// partition projects across hosts and to stamp lock files.
package identity

import (
	"fmt"
	"os"
	"os/user"
	"strings"
)

// Hostname returns the short, lowercased hostname of this machine with
// any domain suffix stripped. Lock-file ownership checks compare this
// value against the host recorded in the file.
func Hostname() (string, error) {
	host, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("failed to resolve hostname: %w", err)
	}
	short, _, _ := strings.Cut(host, ".")
	return strings.ToLower(short), nil
}

// Instance returns the identity string for this coordinating instance,
// in the form "user@host". Projects in the remote registry are assigned
// to exactly one instance by this string; there is no central
// assignment table.
func Instance() (string, error) {
	host, err := Hostname()
	if err != nil {
		return "", err
	}

	username := os.Getenv("USER")
	if username == "" {
		u, err := user.Current()
		if err != nil {
			return "", fmt.Errorf("failed to resolve current user: %w", err)
		}
		username = u.Username
	}

	return fmt.Sprintf("%s@%s", username, host), nil
}

// LockOwner returns the lock-file content for the current process,
// in the form "host-pid".
func LockOwner() (string, error) {
	host, err := Hostname()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid()), nil
}

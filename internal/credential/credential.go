// Package credential defines the CredentialStore contract the core
// consumes (§1 Non-goals: OAuth flows and credential storage are external
// collaborators). Lookup order is fixed: environment first, then the
// store; absence is never an error at this layer, per §6.
package credential

import (
	"os"
	"strings"
)

// Store is the read/write contract for named secrets (API keys, OAuth
// tokens). Implementations decide their own backing (file, OS keychain,
// settings table); the core only ever talks to this interface.
type Store interface {
	Get(name string) (string, bool)
	Set(name, value string) error
	Delete(name string) error
}

// EnvFirst resolves name by checking envVar in the process environment,
// then falling back to store. It returns ("", false) if neither has a
// value — the caller decides whether that's an error.
func EnvFirst(store Store, envVar, name string) (string, bool) {
	if v := strings.TrimSpace(os.Getenv(envVar)); v != "" {
		return v, true
	}
	if store == nil {
		return "", false
	}
	return store.Get(name)
}

// Source reports where a credential would resolve from, for display
// purposes ("env", "store", or "").
func Source(store Store, envVar, name string) string {
	if strings.TrimSpace(os.Getenv(envVar)) != "" {
		return "env"
	}
	if store != nil {
		if v, ok := store.Get(name); ok && v != "" {
			return "store"
		}
	}
	return ""
}

// Mask returns a display form of a secret: its last 4 characters preceded
// by asterisks, or all asterisks if too short to mask meaningfully.
func Mask(secret string) string {
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}

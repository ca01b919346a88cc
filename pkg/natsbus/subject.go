// Package natsbus carries hermes calls and socket sessions over NATS.
//
// Endpoint requests are NATS request/reply messages on
// "<prefix>.<address>.endpoint". A socket session starts with a request on
// "<prefix>.<address>.socket"; afterwards each side publishes to the other's
// inbox, and a message carrying the Hermes-Close header ends the session.
package natsbus

import (
	"fmt"
	"strings"

	"github.com/LLIEPJIOK/hermes/pkg/hermes"
)

const (
	DefaultPrefix = "hermes"

	headerReplyTo = "Hermes-Reply-To"
	headerSession = "Hermes-Session"
	headerClose   = "Hermes-Close"

	transportName = "nats"
)

// Subject returns the subject requests of kind for address are published on.
func Subject(prefix, address string, kind hermes.Kind) string {
	return prefix + "." + address + "." + string(kind)
}

// ValidateToken reports whether s can be used as a single subject token.
func ValidateToken(s string) error {
	if s == "" {
		return fmt.Errorf("%w: empty subject token", ErrInvalidSubject)
	}

	if strings.ContainsAny(s, ".*> \t\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidSubject, s)
	}

	return nil
}

// addressFromSubject extracts the address token from a request subject.
func addressFromSubject(subject string) string {
	parts := strings.Split(subject, ".")
	if len(parts) < 3 {
		return ""
	}

	return parts[len(parts)-2]
}

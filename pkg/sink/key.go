package sink

import (
	"strings"
)

// DefaultPrefix is the key prefix used when none is configured.
const DefaultPrefix = "collector"

// Key identifies a stored record.
type Key struct {
	// Prefix namespaces every key (e.g. "collector").
	Prefix string

	// Provider is the provider the record came from (e.g. "aws").
	Provider string

	// Kind is the resource kind (e.g. "ec2.instances").
	Kind string

	// ID is the resource id within the kind.
	ID string
}

// String generates the record key.
// Format: prefix:provider:kind:id
//
// Example:
//
//	collector:aws:ec2.instances:i-0abc
func (k Key) String() string {
	return join(k.prefix(), k.Provider, k.Kind, k.ID)
}

// IndexKey is the set holding every id stored for the key's kind.
func (k Key) IndexKey() string {
	return join(k.prefix(), k.Provider, "idx", k.Kind)
}

// KindsKey is the set holding every kind stored for the key's provider.
func (k Key) KindsKey() string {
	return join(k.prefix(), k.Provider, "kinds")
}

func (k Key) prefix() string {
	if k.Prefix == "" {
		return DefaultPrefix
	}
	return k.Prefix
}

// join skips empty parts so a missing provider does not leave "::" behind.
func join(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.Trim(p, ":"); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ":")
}

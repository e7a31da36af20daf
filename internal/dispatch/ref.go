package dispatch

import (
	"fmt"
	"strings"
)

// Ref is a parsed symbolic plugin reference. A qualified reference names
// both namespace and name ("text/uppercase"); an unqualified one carries
// the bare name and resolves only when a single namespace provides it.
type Ref struct {
	Namespace string
	Name      string
}

// ParseRef parses "namespace/name" or bare "name" form.
func ParseRef(s string) (Ref, error) {
	if s == "" {
		return Ref{}, fmt.Errorf("empty plugin reference")
	}
	parts := strings.Split(s, "/")
	switch len(parts) {
	case 1:
		return Ref{Name: parts[0]}, nil
	case 2:
		if parts[0] == "" || parts[1] == "" {
			return Ref{}, fmt.Errorf("malformed plugin reference %q", s)
		}
		return Ref{Namespace: parts[0], Name: parts[1]}, nil
	default:
		return Ref{}, fmt.Errorf("malformed plugin reference %q: at most one slash", s)
	}
}

// Qualified reports whether the reference names a namespace.
func (r Ref) Qualified() bool {
	return r.Namespace != ""
}

// String renders the reference back to its textual form.
func (r Ref) String() string {
	if r.Namespace == "" {
		return r.Name
	}
	return r.Namespace + "/" + r.Name
}

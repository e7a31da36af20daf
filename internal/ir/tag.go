package ir

import "fmt"

// Tag names the semantic shape of a representation ("text", "json",
// "pair.v1"). Tags are opaque to the store; the registry and resolver
// compare them for exact equality when checking call signatures.
type Tag string

// Validate checks tag syntax: non-empty, lowercase letters, digits, and
// '_' '.' '-' '/', starting with a letter. Enforced at registration so
// descriptor signatures stay printable and diffable; the store only
// requires tags to be non-empty.
func (t Tag) Validate() error {
	if t == "" {
		return fmt.Errorf("tag must not be empty")
	}
	for i := 0; i < len(t); i++ {
		c := t[i]
		switch {
		case c >= 'a' && c <= 'z':
		case i > 0 && (c >= '0' && c <= '9'):
		case i > 0 && (c == '_' || c == '.' || c == '-' || c == '/'):
		default:
			return fmt.Errorf("tag %q: invalid character %q at position %d", string(t), c, i)
		}
	}
	return nil
}

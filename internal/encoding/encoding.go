// Package encoding resolves a SourceConfig's configured character
// encoding to a decoder, and transcodes raw lines to UTF-8 before they
// reach the Assembler.
package encoding

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// Codec decodes lines from a source's configured encoding to UTF-8. A
// Codec for "utf-8" (or the empty string) is a no-op pass-through.
type Codec struct {
	name string
	enc  encoding.Encoding // nil for the UTF-8 pass-through codec
}

// Resolve looks up name in the IANA encoding registry. An empty name
// or "utf-8" resolves to the pass-through codec. An unresolvable name
// is the EncodingUnknown error from the spec's error taxonomy.
func Resolve(name string) (*Codec, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" || normalized == "utf-8" || normalized == "utf8" {
		return &Codec{name: "utf-8"}, nil
	}
	enc, err := htmlindex.Get(normalized)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	return &Codec{name: normalized, enc: enc}, nil
}

// Decode transcodes one line to UTF-8. Lines are decoded independently
// since the Follower's contract is line-at-a-time; encodings with
// stateful shift sequences spanning line breaks are not supported.
func (c *Codec) Decode(line string) (string, error) {
	if c.enc == nil {
		return line, nil
	}
	out, err := c.enc.NewDecoder().String(line)
	if err != nil {
		return "", fmt.Errorf("decode as %s: %w", c.name, err)
	}
	return out, nil
}

// Equal reports whether two encoding names denote the same codec,
// per the spec's Design Note: "encoding change requires restart" is
// implemented as name equality, not object identity.
func Equal(a, b string) bool {
	normalize := func(s string) string {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			s = "utf-8"
		}
		return s
	}
	return normalize(a) == normalize(b)
}

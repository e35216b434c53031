package codec

import (
	"fmt"
	"strings"
)

// SigningFields are the decoded fields of a signing string.
type SigningFields struct {
	Key    string
	IV     string
	Digest string
	Text   string
}

// HasKey reports whether the signing string carried AES key material.
func (f *SigningFields) HasKey() bool { return f.Key != "" || f.IV != "" }

// ParseSigningString decodes "[k=<key>&i=<iv>&]h=<digest>&s=<text>".
// The text is taken verbatim and may itself contain '&' or '='.
func ParseSigningString(s string) (*SigningFields, error) {
	var f SigningFields
	if rest, ok := strings.CutPrefix(s, "k="); ok {
		key, rest, ok := strings.Cut(rest, "&i=")
		if !ok {
			return nil, fmt.Errorf("codec: malformed signing string: missing iv")
		}
		iv, rest, ok := strings.Cut(rest, "&")
		if !ok {
			return nil, fmt.Errorf("codec: malformed signing string: missing digest")
		}
		f.Key, f.IV, s = key, iv, rest
	}
	rest, ok := strings.CutPrefix(s, "h=")
	if !ok {
		return nil, fmt.Errorf("codec: malformed signing string: missing digest")
	}
	digest, text, ok := strings.Cut(rest, "&s=")
	if !ok {
		return nil, fmt.Errorf("codec: malformed signing string: missing text")
	}
	f.Digest, f.Text = digest, text
	return &f, nil
}

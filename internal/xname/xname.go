package xname

import "strings"

const maxLength = 255

// Sanitize makes the filename safe to echo back in headers and listings:
// path separators, characters illegal on common filesystems and control
// characters become underscores, trailing dots and spaces are trimmed, and
// the result is capped at 255 bytes. An empty result means the name is
// unusable and the upload must be rejected.
func Sanitize(filename string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '?', '<', '>', ':', '*', '|', '"':
			return '_'
		}
		if r < 0x20 || r == 0x7f {
			return '_'
		}
		return r
	}, filename)

	sanitized = strings.TrimRight(sanitized, ". ")
	if len(sanitized) > maxLength {
		sanitized = sanitized[:maxLength]
	}
	return sanitized
}

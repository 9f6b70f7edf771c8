package utils

import (
	"bytes"
	"unicode/utf8"
)

// sniffLength defines the maximum number of bytes inspected when detecting binary content.
const sniffLength = 8000

// IsBinary reports whether the provided byte slice appears to contain binary data.
// Only the first sniffLength bytes are inspected; a multi-byte rune cut at the
// sniff boundary is not treated as invalid UTF-8.
func IsBinary(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	prefix := data
	if len(prefix) > sniffLength {
		prefix = prefix[:sniffLength]
		for trimmed := 0; trimmed < utf8.UTFMax && len(prefix) > 0 && !utf8.Valid(prefix); trimmed++ {
			prefix = prefix[:len(prefix)-1]
		}
	}
	if bytes.IndexByte(prefix, 0) >= 0 {
		return true
	}
	return !utf8.Valid(prefix)
}

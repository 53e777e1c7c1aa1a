package uploads

import "strings"

// SanitizeFilename reduces a user-supplied filename to a filesystem-safe
// form: path separators and whitespace become underscores, everything outside
// [A-Za-z0-9._-] is dropped, and leading dots and dashes are stripped. An
// unusable result falls back to "attachment".
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		case r == ' ' || r == '/' || r == '\\':
			b.WriteRune('_')
		}
	}
	cleaned := strings.Trim(b.String(), "._-")
	if cleaned == "" {
		return "attachment"
	}
	return cleaned
}

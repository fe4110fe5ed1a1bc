// Package cryptoutil holds small helpers shared by the audit signing and
// configuration code.
package cryptoutil

// IsHexString reports whether s contains only hexadecimal digits. The empty
// string counts as hex; callers enforcing a minimum key length check that
// themselves.
func IsHexString(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

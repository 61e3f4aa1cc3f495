package ledger

import "fmt"

// ValidIdentity reports whether addr is a well-formed ledger identity:
// a 0x prefix followed by exactly 40 hex digits.
func ValidIdentity(addr string) bool {
	if len(addr) != 42 {
		return false
	}
	if addr[0] != '0' || (addr[1] != 'x' && addr[1] != 'X') {
		return false
	}
	for _, c := range addr[2:] {
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

// CheckIdentity returns ErrInvalidIdentity for a malformed address.
func CheckIdentity(addr string) error {
	if !ValidIdentity(addr) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentity, addr)
	}
	return nil
}

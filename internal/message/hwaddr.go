package message

import (
	"regexp"
	"strings"

	"growrack/internal/apperr"
)

// Six hex octets separated by colons or hyphens, any case.
var hwAddrPattern = regexp.MustCompile(`^[0-9A-Fa-f]{2}([:-][0-9A-Fa-f]{2}){5}$`)

// IsValidHardwareAddr reports whether s is a 6-octet hardware address
// in colon or hyphen notation, case-insensitively.
func IsValidHardwareAddr(s string) bool {
	return hwAddrPattern.MatchString(s)
}

// NormalizeHardwareAddr converts a valid hardware address to the
// canonical uppercase colon form. Normalizing an already-canonical
// address returns it unchanged.
func NormalizeHardwareAddr(s string) (string, error) {
	if !IsValidHardwareAddr(s) {
		return "", apperr.Newf(apperr.KindBadRequest, "invalid hardware address %q", s)
	}

	return strings.ToUpper(strings.ReplaceAll(s, "-", ":")), nil
}

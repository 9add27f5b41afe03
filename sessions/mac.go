package sessions

import (
	"fmt"
	"regexp"
	"strings"
)

var macHexRegex = regexp.MustCompile(`^[0-9a-f]{12}$`)
var macSeparators = strings.NewReplacer(":", "", "-", "", ".", "")

// Normalizes a MAC address to the canonical form used everywhere in the store:
// lowercase octets separated by colons. Accepts the common NAS renditions:
// "AA-BB-CC-DD-EE-FF", "aabb.ccdd.eeff", "aabbccddeeff" and the canonical form
// itself
func NormalizeMac(macAddress string) (string, error) {

	stripped := macSeparators.Replace(strings.ToLower(strings.TrimSpace(macAddress)))
	if !macHexRegex.MatchString(stripped) {
		return "", fmt.Errorf("not a mac address: %s", macAddress)
	}

	var parts [6]string
	for i := 0; i < 6; i++ {
		parts[i] = stripped[2*i : 2*i+2]
	}
	return strings.Join(parts[:], ":"), nil
}

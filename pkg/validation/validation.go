package validation

import (
	"fmt"
	"strings"
)

const MaxProfileNameLength = 64

// ValidateProfileName checks that a profile name is safe to use as part of a
// file name in the credential store.
func ValidateProfileName(name string) error {
	if name == "" {
		return fmt.Errorf("profile name cannot be empty")
	}
	if len(name) > MaxProfileNameLength {
		return fmt.Errorf("profile name too long: %d characters (max %d)", len(name), MaxProfileNameLength)
	}
	for _, r := range name {
		if !isProfileNameRune(r) {
			return fmt.Errorf("invalid profile name %q: only letters, digits, '.', '-' and '_' are allowed", name)
		}
	}
	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid profile name %q: must not start with '.'", name)
	}
	return nil
}

func isProfileNameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '.' || r == '-' || r == '_':
		return true
	}
	return false
}

func ValidateNonEmptyString(fieldName, value string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	return nil
}

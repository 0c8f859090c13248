package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

func validateID(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%s ID is required", kind)
	}
	if len(id) > 100 {
		return fmt.Errorf("%s ID is too long (max 100 characters)", kind)
	}
	if !idRegex.MatchString(id) {
		return fmt.Errorf("invalid %s ID format", kind)
	}
	return nil
}

func ValidateRoomID(id string) error   { return validateID("room", id) }
func ValidateUserID(id string) error   { return validateID("user", id) }
func ValidateAssetID(id string) error  { return validateID("asset", id) }
func ValidateStreamID(id string) error { return validateID("stream", id) }

// ValidateRoomName checks the user-facing room name.
func ValidateRoomName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("room name is required")
	}
	if len(name) > 100 {
		return fmt.Errorf("room name is too long (max 100 characters)")
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("room name contains invalid characters")
	}
	return nil
}

// ValidateAccessCode checks a private-room access code.
func ValidateAccessCode(code string) error {
	if code == "" {
		return nil
	}
	if len(code) < 4 {
		return fmt.Errorf("access code must be at least 4 characters")
	}
	if len(code) > 64 {
		return fmt.Errorf("access code is too long (max 64 characters)")
	}
	return nil
}

// ValidateAssetRef checks the external asset reference attached to a room
// asset. The reference is opaque to the coordinator beyond basic shape.
func ValidateAssetRef(ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return fmt.Errorf("asset reference is required")
	}
	if len(ref) > 512 {
		return fmt.Errorf("asset reference is too long (max 512 characters)")
	}
	return nil
}

package entity

import (
	"errors"
	"strings"
)

// ErrInvalidName is returned for household names the wire format cannot
// carry (empty, or containing the list separator).
var ErrInvalidName = errors.New("invalid household member name")

const householdSeparator = ","

// ParseHousehold splits the backend's comma joined householderMember value.
func ParseHousehold(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, householdSeparator) {
		if name := strings.TrimSpace(part); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// JoinHousehold renders the list in the backend's wire form.
func JoinHousehold(names []string) string {
	return strings.Join(names, householdSeparator+" ")
}

// ValidateHouseholdName rejects names that would corrupt the joined form.
func ValidateHouseholdName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.Contains(name, householdSeparator) {
		return "", ErrInvalidName
	}
	return name, nil
}

// WithHouseholdMember returns a copy of names with name appended, unless an
// equal (case-insensitive) entry already exists.
func WithHouseholdMember(names []string, name string) []string {
	out := append([]string(nil), names...)
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return out
		}
	}
	return append(out, name)
}

// WithoutHouseholdMember returns a copy of names with every entry equal to
// name (case-insensitive) removed.
func WithoutHouseholdMember(names []string, name string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !strings.EqualFold(n, strings.TrimSpace(name)) {
			out = append(out, n)
		}
	}
	return out
}

// Package address parses the free-text property addresses the locker
// backend returns into the structured fields of a member profile.
package address

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnparsable is returned (wrapped with the reason) when an address does
// not follow a recognised layout. Parse never returns a partial Address.
var ErrUnparsable = errors.New("address not parsable")

type Address struct {
	Line1   string
	City    string
	State   string
	Zipcode string
}

var (
	stateZip = regexp.MustCompile(`^([A-Za-z]{2})(?:\s+(\d{5}(?:-\d{4})?))?$`)
	zipOnly  = regexp.MustCompile(`^\d{5}(?:-\d{4})?$`)
	spaces   = regexp.MustCompile(`\s+`)
)

var countries = map[string]bool{
	"usa":                      true,
	"us":                       true,
	"u.s.":                     true,
	"u.s.a.":                   true,
	"united states":            true,
	"united states of america": true,
	"america":                  true,
}

// Parse accepts layouts such as
//
//	123 Main St, Austin, TX 78701, USA
//	123 Main St, Suite 4, Austin, TX, 78701
//	500 Elm Ave, Dallas, tx
func Parse(s string) (Address, error) {
	var parts []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(spaces.ReplaceAllString(p, " "))
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return Address{}, fmt.Errorf("%w: empty", ErrUnparsable)
	}

	if countries[strings.ToLower(parts[len(parts)-1])] {
		parts = parts[:len(parts)-1]
	}

	var zip string
	if n := len(parts); n >= 2 && zipOnly.MatchString(parts[n-1]) {
		zip = parts[n-1]
		parts = parts[:n-1]
	}
	if len(parts) < 3 {
		return Address{}, fmt.Errorf("%w: %q needs street, city and state", ErrUnparsable, s)
	}

	m := stateZip.FindStringSubmatch(parts[len(parts)-1])
	if m == nil {
		return Address{}, fmt.Errorf("%w: no state code in %q", ErrUnparsable, parts[len(parts)-1])
	}
	if m[2] != "" {
		if zip != "" {
			return Address{}, fmt.Errorf("%w: two zip codes in %q", ErrUnparsable, s)
		}
		zip = m[2]
	}

	return Address{
		Line1:   strings.Join(parts[:len(parts)-2], ", "),
		City:    parts[len(parts)-2],
		State:   strings.ToUpper(m[1]),
		Zipcode: zip,
	}, nil
}

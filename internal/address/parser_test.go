package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want Address
	}{
		{
			name: "state and zip with country",
			in:   "123 Main St, Austin, TX 78701, USA",
			want: Address{Line1: "123 Main St", City: "Austin", State: "TX", Zipcode: "78701"},
		},
		{
			name: "separate zip segment",
			in:   "123 Main St, Austin, TX, 78701",
			want: Address{Line1: "123 Main St", City: "Austin", State: "TX", Zipcode: "78701"},
		},
		{
			name: "two street lines and zip+4",
			in:   "1 Loop Rd, Building C, Houston, TX 77002-1234, United States",
			want: Address{Line1: "1 Loop Rd, Building C", City: "Houston", State: "TX", Zipcode: "77002-1234"},
		},
		{
			name: "lower case state without zip",
			in:   "500 Elm Ave,  Dallas , tx",
			want: Address{Line1: "500 Elm Ave", City: "Dallas", State: "TX"},
		},
		{
			name: "collapses inner whitespace",
			in:   "77   Ocean   Dr, Miami Beach, FL   33139, us",
			want: Address{Line1: "77 Ocean Dr", City: "Miami Beach", State: "FL", Zipcode: "33139"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseRejects(t *testing.T) {
	for _, in := range []string{
		"",
		" , ,",
		"Austin, TX",
		"123 Main St, Austin, Texas 78701",
		"123 Main St, Austin, TX 787",
		"123 Main St, Austin, TX 78701, 78702",
		"somewhere without commas",
	} {
		t.Run(in, func(t *testing.T) {
			got, err := Parse(in)
			require.ErrorIs(t, err, ErrUnparsable)
			assert.Equal(t, Address{}, got)
		})
	}
}

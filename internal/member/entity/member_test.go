package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func TestCapitalizeFirst(t *testing.T) {
	assert.Equal(t, "", CapitalizeFirst(""))
	assert.Equal(t, "Annie", CapitalizeFirst("aNNIE"))
	assert.Equal(t, "Émile", CapitalizeFirst("émile"))
}

func TestFormatPhone(t *testing.T) {
	assert.Equal(t, "512-555-0100", FormatPhone("5125550100"))
	assert.Equal(t, "512-555-0100", FormatPhone("(512) 555 0100"))
	assert.Equal(t, "555-0100", FormatPhone("555-0100"))
}

func TestPatchNormalizedLeavesOriginal(t *testing.T) {
	list := []string{"bo"}
	p := ProfilePatch{NickName: ptr("annie"), Phone: ptr("5125550100"), HouseholdMembers: &list}
	n := p.Normalized()

	assert.Equal(t, "Annie", *n.NickName)
	assert.Equal(t, "512-555-0100", *n.Phone)
	assert.Equal(t, "annie", *p.NickName)
	assert.Nil(t, n.City)

	(*n.HouseholdMembers)[0] = "changed"
	assert.Equal(t, "bo", list[0])
}

func TestPatchApplyTo(t *testing.T) {
	assert.True(t, ProfilePatch{}.Empty())

	profile := Profile{NickName: "Old", City: "Austin"}
	m := Member{Email: "old@example.com"}
	ProfilePatch{NickName: ptr("New"), Email: ptr("new@example.com")}.ApplyTo(&profile, &m)

	assert.Equal(t, "New", profile.NickName)
	assert.Equal(t, "Austin", profile.City)
	assert.Equal(t, "new@example.com", m.Email)
}

func TestHousehold(t *testing.T) {
	names := ParseHousehold(" Bo ,, Cy,")
	assert.Equal(t, []string{"Bo", "Cy"}, names)
	assert.Equal(t, "Bo, Cy", JoinHousehold(names))
	assert.Nil(t, ParseHousehold(""))

	_, err := ValidateHouseholdName("Lee, Bo")
	require.ErrorIs(t, err, ErrInvalidName)
	_, err = ValidateHouseholdName("  ")
	require.ErrorIs(t, err, ErrInvalidName)
	name, err := ValidateHouseholdName(" Dee ")
	require.NoError(t, err)
	assert.Equal(t, "Dee", name)

	added := WithHouseholdMember(names, "bo")
	assert.Equal(t, names, added)
	added = WithHouseholdMember(names, "Dee")
	assert.Equal(t, []string{"Bo", "Cy", "Dee"}, added)
	assert.Len(t, names, 2)

	assert.Equal(t, []string{"Cy"}, WithoutHouseholdMember(names, " BO "))
}

func TestProfileCloneIsDeep(t *testing.T) {
	p := Profile{HouseholdMembers: []string{"Bo"}}
	c := p.Clone()
	c.HouseholdMembers[0] = "Cy"
	assert.Equal(t, "Bo", p.HouseholdMembers[0])
}

package entity

import (
	"strings"
	"unicode"
)

// Member is the account record returned by member/getMember. It is replaced
// wholesale on every fetch.
type Member struct {
	MemberID     string       `json:"memberId"`
	Email        string       `json:"email"`
	Phone        string       `json:"phone"`
	Status       string       `json:"status"`
	StatusText   string       `json:"statusText"`
	StatusDetail StatusDetail `json:"statusDetail"`
}

// StatusDetail holds the onboarding completion flags.
type StatusDetail struct {
	EmailVerified    bool `json:"isEmailVerified"`
	ProfileCompleted bool `json:"isProfileCompleted"`
	HasCreditCard    bool `json:"hasCreditCard"`
	HasBindAddress   bool `json:"hasBindAddress"`
	HasBindCabinet   bool `json:"hasBindCabinet"`
}

// Profile is the member's personal data. HouseholdMembers is kept as a list
// here and only joined into the backend's comma separated form on the wire.
type Profile struct {
	NickName         string   `json:"nickName"`
	FirstName        string   `json:"firstName"`
	LastName         string   `json:"lastName"`
	HouseholdMembers []string `json:"householdMembers"`
	Avatar           string   `json:"avatar"`
	Sex              string   `json:"sex"`
	AddressLine1     string   `json:"addressLine1"`
	AddressLine2     string   `json:"addressLine2"`
	City             string   `json:"city"`
	State            string   `json:"state"`
	Zipcode          string   `json:"zipcode"`
	Birth            string   `json:"birth"`
}

// Clone returns a deep copy.
func (p Profile) Clone() Profile {
	out := p
	if p.HouseholdMembers != nil {
		out.HouseholdMembers = append([]string(nil), p.HouseholdMembers...)
	}
	return out
}

// ProfilePatch is a partial profile update. Nil fields are not sent and not
// merged. Phone and Email belong to Member but travel on the same call.
type ProfilePatch struct {
	NickName         *string   `json:"nickName,omitempty"`
	FirstName        *string   `json:"firstName,omitempty"`
	LastName         *string   `json:"lastName,omitempty"`
	HouseholdMembers *[]string `json:"householdMembers,omitempty"`
	Avatar           *string   `json:"avatar,omitempty"`
	Sex              *string   `json:"sex,omitempty"`
	AddressLine1     *string   `json:"addressLine1,omitempty"`
	AddressLine2     *string   `json:"addressLine2,omitempty"`
	City             *string   `json:"city,omitempty"`
	State            *string   `json:"state,omitempty"`
	Zipcode          *string   `json:"zipcode,omitempty"`
	Birth            *string   `json:"birth,omitempty"`
	Phone            *string   `json:"phone,omitempty"`
	Email            *string   `json:"email,omitempty"`
}

// Empty reports whether the patch carries no field at all.
func (p ProfilePatch) Empty() bool {
	return p.NickName == nil && p.FirstName == nil && p.LastName == nil &&
		p.HouseholdMembers == nil && p.Avatar == nil && p.Sex == nil &&
		p.AddressLine1 == nil && p.AddressLine2 == nil && p.City == nil &&
		p.State == nil && p.Zipcode == nil && p.Birth == nil &&
		p.Phone == nil && p.Email == nil
}

// Normalized returns the patch as the backend should store it: names and city
// capitalized, ten digit phone numbers formatted as xxx-xxx-xxxx.
func (p ProfilePatch) Normalized() ProfilePatch {
	out := p
	out.NickName = mapStr(p.NickName, CapitalizeFirst)
	out.FirstName = mapStr(p.FirstName, CapitalizeFirst)
	out.LastName = mapStr(p.LastName, CapitalizeFirst)
	out.City = mapStr(p.City, CapitalizeFirst)
	out.Phone = mapStr(p.Phone, FormatPhone)
	if p.HouseholdMembers != nil {
		list := append([]string(nil), (*p.HouseholdMembers)...)
		out.HouseholdMembers = &list
	}
	return out
}

// ApplyTo merges the non-nil fields of the patch into profile and member.
func (p ProfilePatch) ApplyTo(profile *Profile, member *Member) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&profile.NickName, p.NickName)
	set(&profile.FirstName, p.FirstName)
	set(&profile.LastName, p.LastName)
	set(&profile.Avatar, p.Avatar)
	set(&profile.Sex, p.Sex)
	set(&profile.AddressLine1, p.AddressLine1)
	set(&profile.AddressLine2, p.AddressLine2)
	set(&profile.City, p.City)
	set(&profile.State, p.State)
	set(&profile.Zipcode, p.Zipcode)
	set(&profile.Birth, p.Birth)
	if p.HouseholdMembers != nil {
		profile.HouseholdMembers = append([]string(nil), (*p.HouseholdMembers)...)
	}
	if member != nil {
		set(&member.Phone, p.Phone)
		set(&member.Email, p.Email)
	}
}

func mapStr(v *string, fn func(string) string) *string {
	if v == nil {
		return nil
	}
	s := fn(*v)
	return &s
}

// CapitalizeFirst upper-cases the first letter and lower-cases the rest.
func CapitalizeFirst(s string) string {
	if s == "" {
		return ""
	}
	r := []rune(strings.ToLower(s))
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// FormatPhone formats a ten digit number as xxx-xxx-xxxx; anything else is
// returned unchanged.
func FormatPhone(phone string) string {
	var digits []rune
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) != 10 {
		return phone
	}
	d := string(digits)
	return d[:3] + "-" + d[3:6] + "-" + d[6:]
}

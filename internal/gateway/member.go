package gateway

import (
	"context"

	member "github.com/ovaphlow/pitchfork/zippora-client-go/internal/member/entity"
)

// GetMember fetches the member record and profile.
func (c *Client) GetMember(ctx context.Context, auth Auth) (member.Member, member.Profile, error) {
	var data memberData
	if err := c.get(ctx, PathGetMember, auth.params(), &data); err != nil {
		return member.Member{}, member.Profile{}, err
	}
	return data.Member.entity(), data.Profile.entity(), nil
}

// UpdateProfile submits only the fields set in patch.
func (c *Client) UpdateProfile(ctx context.Context, auth Auth, patch member.ProfilePatch) error {
	return c.postForm(ctx, PathUpdateProfile, withAuth(auth, patchForm(patch)), nil)
}

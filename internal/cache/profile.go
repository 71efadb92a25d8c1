package cache

import (
	"context"

	"github.com/ovaphlow/pitchfork/zippora-client-go/internal/gateway"
	member "github.com/ovaphlow/pitchfork/zippora-client-go/internal/member/entity"
)

// Refresh fetches the profile and then the apartment tree, one after the
// other, stopping at the first failure.
func (c *Cache) Refresh(ctx context.Context) error {
	if err := c.RefreshProfile(ctx); err != nil {
		return err
	}
	return c.RefreshApartments(ctx)
}

// RefreshProfile replaces Member and Profile with the server's copy.
func (c *Cache) RefreshProfile(ctx context.Context) error {
	gen := c.currentGeneration()
	var (
		m member.Member
		p member.Profile
	)
	err := c.runner.Do(ctx, func(ctx context.Context, auth gateway.Auth) error {
		var err error
		m, p, err = c.backend.GetMember(ctx, auth)
		return err
	})
	if err != nil {
		c.logger.Debugw("refresh profile failed", "err", err)
		return err
	}
	return c.commit(ctx, gen, TopicProfile, func() {
		c.member = &m
		c.profile = &p
	})
}

// UpdateProfile normalizes patch, submits it and merges what was submitted
// into the cached profile once the server accepts it. Nothing is re-fetched.
func (c *Cache) UpdateProfile(ctx context.Context, patch member.ProfilePatch) error {
	if patch.Empty() {
		return ErrEmptyPatch
	}
	patch = patch.Normalized()
	if patch.HouseholdMembers != nil {
		for _, n := range *patch.HouseholdMembers {
			if _, err := member.ValidateHouseholdName(n); err != nil {
				return err
			}
		}
	}
	return c.submitPatch(ctx, patch)
}

func (c *Cache) submitPatch(ctx context.Context, patch member.ProfilePatch) error {
	gen := c.currentGeneration()
	err := c.runner.Do(ctx, func(ctx context.Context, auth gateway.Auth) error {
		return c.backend.UpdateProfile(ctx, auth, patch)
	})
	if err != nil {
		c.logger.Debugw("update profile failed", "err", err)
		return err
	}
	return c.commit(ctx, gen, TopicProfile, func() {
		if c.profile == nil {
			c.profile = &member.Profile{}
		}
		patch.ApplyTo(c.profile, c.member)
	})
}

// household returns the cached household list, fetching the profile first
// if it was never loaded.
func (c *Cache) household(ctx context.Context) ([]string, error) {
	if p, ok := c.Profile(); ok {
		return p.HouseholdMembers, nil
	}
	if err := c.RefreshProfile(ctx); err != nil {
		return nil, err
	}
	p, _ := c.Profile()
	return p.HouseholdMembers, nil
}

// AddHouseholdMember submits the household list with name appended. The
// cached list changes only after the server accepts it. Adding a name that
// is already listed is a no-op.
func (c *Cache) AddHouseholdMember(ctx context.Context, name string) error {
	name, err := member.ValidateHouseholdName(name)
	if err != nil {
		return err
	}
	current, err := c.household(ctx)
	if err != nil {
		return err
	}
	next := member.WithHouseholdMember(current, name)
	if len(next) == len(current) {
		return nil
	}
	return c.submitPatch(ctx, member.ProfilePatch{HouseholdMembers: &next})
}

// RemoveHouseholdMember submits the household list without name.
func (c *Cache) RemoveHouseholdMember(ctx context.Context, name string) error {
	current, err := c.household(ctx)
	if err != nil {
		return err
	}
	next := member.WithoutHouseholdMember(current, name)
	if len(next) == len(current) {
		return nil
	}
	return c.submitPatch(ctx, member.ProfilePatch{HouseholdMembers: &next})
}

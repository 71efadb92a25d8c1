package cache

import (
	"context"
	"fmt"
	"strings"

	"github.com/ovaphlow/pitchfork/zippora-client-go/internal/address"
	"github.com/ovaphlow/pitchfork/zippora-client-go/internal/gateway"
	member "github.com/ovaphlow/pitchfork/zippora-client-go/internal/member/entity"
	zippora "github.com/ovaphlow/pitchfork/zippora-client-go/internal/zippora/entity"
)

// RefreshApartments replaces the apartment, locker and store tree and the
// self-store list.
func (c *Cache) RefreshApartments(ctx context.Context) error {
	gen := c.currentGeneration()
	var list gateway.ZipporaList
	err := c.runner.Do(ctx, func(ctx context.Context, auth gateway.Auth) error {
		var err error
		list, err = c.backend.GetZipporaList(ctx, auth)
		return err
	})
	if err != nil {
		c.logger.Debugw("refresh apartments failed", "err", err)
		return err
	}
	return c.commit(ctx, gen, TopicApartments, func() {
		c.apartments = list.Apartments
		c.selfStores = list.SelfStores
	})
}

// RefreshLogs replaces the store history.
func (c *Cache) RefreshLogs(ctx context.Context) error {
	gen := c.currentGeneration()
	var logs []zippora.LogEntry
	err := c.runner.Do(ctx, func(ctx context.Context, auth gateway.Auth) error {
		var err error
		logs, err = c.backend.GetStoreList(ctx, auth)
		return err
	})
	if err != nil {
		c.logger.Debugw("refresh logs failed", "err", err)
		return err
	}
	return c.commit(ctx, gen, TopicLogs, func() { c.logs = logs })
}

// ValidZipcode reports whether s is exactly five ASCII digits.
func ValidZipcode(s string) bool {
	if len(s) != 5 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// SearchApartments looks up properties by zipcode. Anything but five digits
// clears the results at once, without a request, and returns
// ErrInvalidZipcode. Results of an older search never replace a newer one.
func (c *Cache) SearchApartments(ctx context.Context, zipcode string) ([]zippora.ApartmentCandidate, error) {
	c.mu.Lock()
	c.searchSeq++
	seq := c.searchSeq
	gen := c.generation
	if !ValidZipcode(zipcode) {
		c.candidates = nil
		c.searchZip = ""
		c.mu.Unlock()
		c.publish(TopicCandidates)
		return nil, ErrInvalidZipcode
	}
	c.mu.Unlock()

	var found []zippora.ApartmentCandidate
	err := c.runner.Do(ctx, func(ctx context.Context, auth gateway.Auth) error {
		var err error
		found, err = c.backend.GetApartmentList(ctx, auth, zipcode)
		return err
	})
	if err != nil {
		return nil, err
	}
	stale := false
	err = c.commit(ctx, gen, TopicCandidates, func() {
		if seq != c.searchSeq {
			stale = true
			return
		}
		c.candidates = found
		c.searchZip = zipcode
	})
	if err != nil {
		return nil, err
	}
	if stale {
		return nil, ErrStale
	}
	return append([]zippora.ApartmentCandidate(nil), found...), nil
}

// FetchUnits loads and caches the units of a property.
func (c *Cache) FetchUnits(ctx context.Context, apartmentID string) ([]zippora.Unit, error) {
	gen := c.currentGeneration()
	var units []zippora.Unit
	err := c.runner.Do(ctx, func(ctx context.Context, auth gateway.Auth) error {
		var err error
		units, err = c.backend.GetUnitList(ctx, auth, apartmentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := c.commit(ctx, gen, TopicUnits, func() { c.units[apartmentID] = units }); err != nil {
		return nil, err
	}
	return append([]zippora.Unit(nil), units...), nil
}

// SubscribeResult reports what happened after a successful binding.
type SubscribeResult struct {
	ApartmentID string `json:"apartmentId"`
	UnitID      string `json:"unitId"`
	UnitName    string `json:"unitName"`
	// Address is set when the property address was parsed and saved to the
	// profile.
	Address *address.Address `json:"address,omitempty"`
	// AddressErr explains why the profile address was left unchanged.
	AddressErr error `json:"-"`
	// RefreshErr is the failure of the apartment refresh that follows.
	RefreshErr error `json:"-"`
}

// SubscribeToApartment binds the member to a unit, then copies the
// property's address into the profile. The binding stands even when the
// address cannot be parsed or saved; the result says why.
func (c *Cache) SubscribeToApartment(ctx context.Context, apartmentID, unitID string) (SubscribeResult, error) {
	res := SubscribeResult{ApartmentID: apartmentID, UnitID: unitID, UnitName: unitID}

	if _, ok := c.Units(apartmentID); !ok {
		if _, err := c.FetchUnits(ctx, apartmentID); err != nil {
			c.logger.Debugw("unit list unavailable", "apartment_id", apartmentID, "err", err)
		}
	}
	units, _ := c.Units(apartmentID)
	for _, u := range units {
		if u.UnitID == unitID {
			res.UnitName = u.UnitName
		}
	}

	err := c.runner.Do(ctx, func(ctx context.Context, auth gateway.Auth) error {
		return c.backend.BindApartment(ctx, auth, apartmentID, unitID)
	})
	if err != nil {
		return res, err
	}
	c.logger.Infow("apartment subscribed", "apartment_id", apartmentID, "unit_id", unitID)

	addr, err := c.candidateAddress(apartmentID)
	if err == nil {
		line2 := "Apt " + res.UnitName
		err = c.submitPatch(ctx, member.ProfilePatch{
			AddressLine1: &addr.Line1,
			AddressLine2: &line2,
			City:         &addr.City,
			State:        &addr.State,
			Zipcode:      &addr.Zipcode,
		})
	}
	if err != nil {
		c.logger.Warnw("subscription address not saved", "apartment_id", apartmentID, "err", err)
		res.AddressErr = err
	} else {
		res.Address = &addr
	}

	res.RefreshErr = c.RefreshApartments(ctx)
	return res, nil
}

func (c *Cache) candidateAddress(apartmentID string) (address.Address, error) {
	c.mu.RLock()
	var raw string
	found := false
	for _, cand := range c.candidates {
		if cand.ApartmentID == apartmentID {
			raw, found = cand.Address, true
		}
	}
	searchZip := c.searchZip
	c.mu.RUnlock()
	if !found {
		return address.Address{}, fmt.Errorf("%w: %s", ErrUnknownApartment, apartmentID)
	}
	addr, err := address.Parse(raw)
	if err != nil {
		return address.Address{}, err
	}
	if addr.Zipcode == "" {
		addr.Zipcode = searchZip
	}
	return addr, nil
}

// UnsubscribeApartment removes the binding and reloads the apartment tree.
func (c *Cache) UnsubscribeApartment(ctx context.Context, apartmentID string) error {
	err := c.runner.Do(ctx, func(ctx context.Context, auth gateway.Auth) error {
		return c.backend.CancelBindApartment(ctx, auth, apartmentID)
	})
	if err != nil {
		return err
	}
	c.logger.Infow("apartment unsubscribed", "apartment_id", apartmentID)
	return c.RefreshApartments(ctx)
}

// ScanQRCode submits the text of a scanned locker code. The scan codes come
// back as ErrQREmpty, ErrQRUnsupported and ErrQRExpired with the gateway
// error kept in the chain. A successful scan reloads the apartment tree.
func (c *Cache) ScanQRCode(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrQREmpty
	}
	err := c.runner.Do(ctx, func(ctx context.Context, auth gateway.Auth) error {
		return c.backend.ScanQRCode(ctx, auth, text)
	})
	if err != nil {
		return scanError(err)
	}
	if err := c.RefreshApartments(ctx); err != nil {
		c.logger.Warnw("refresh after scan failed", "err", err)
	}
	return nil
}

func scanError(err error) error {
	op, code, ok := gateway.BusinessCode(err)
	if !ok || op != gateway.PathQRCodeScan {
		return err
	}
	switch code {
	case gateway.CodeQREmpty:
		return fmt.Errorf("%w: %w", ErrQREmpty, err)
	case gateway.CodeQRUnsupported:
		return fmt.Errorf("%w: %w", ErrQRUnsupported, err)
	case gateway.CodeQRExpired:
		return fmt.Errorf("%w: %w", ErrQRExpired, err)
	}
	return err
}

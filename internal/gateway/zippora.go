package gateway

import (
	"context"

	zippora "github.com/ovaphlow/pitchfork/zippora-client-go/internal/zippora/entity"
)

// ZipporaList is the member's apartment tree plus the stores addressed to
// the member directly.
type ZipporaList struct {
	Apartments []zippora.Apartment
	SelfStores []zippora.SelfStore
}

// GetApartmentList searches properties by zipcode.
func (c *Client) GetApartmentList(ctx context.Context, auth Auth, zipcode string) ([]zippora.ApartmentCandidate, error) {
	var data apartmentListData
	if err := c.get(ctx, PathGetApartmentList, withAuth(auth, map[string]string{"zipcode": zipcode}), &data); err != nil {
		return nil, err
	}
	out := make([]zippora.ApartmentCandidate, 0, len(data.ApartmentList))
	for _, a := range data.ApartmentList {
		out = append(out, zippora.ApartmentCandidate{
			ApartmentID:   a.ApartmentID,
			ApartmentName: a.ApartmentName,
			Address:       a.Address,
			HasBound:      bool(a.HasBinded),
		})
	}
	return out, nil
}

func (c *Client) GetUnitList(ctx context.Context, auth Auth, apartmentID string) ([]zippora.Unit, error) {
	var data unitListData
	if err := c.get(ctx, PathGetUnitList, withAuth(auth, map[string]string{"apartmentId": apartmentID}), &data); err != nil {
		return nil, err
	}
	if data.UnitList == nil {
		return []zippora.Unit{}, nil
	}
	return data.UnitList, nil
}

func (c *Client) BindApartment(ctx context.Context, auth Auth, apartmentID, unitID string) error {
	return c.get(ctx, PathBindApartment, withAuth(auth, map[string]string{
		"apartmentId": apartmentID,
		"unitId":      unitID,
	}), nil)
}

func (c *Client) CancelBindApartment(ctx context.Context, auth Auth, apartmentID string) error {
	return c.get(ctx, PathCancelBindApartment, withAuth(auth, map[string]string{"apartmentId": apartmentID}), nil)
}

// GetZipporaList fetches the full apartment, locker and store tree.
func (c *Client) GetZipporaList(ctx context.Context, auth Auth) (ZipporaList, error) {
	var data zipporaListData
	if err := c.get(ctx, PathGetZipporaList, auth.params(), &data); err != nil {
		return ZipporaList{}, err
	}
	return data.entity(), nil
}

// GetStoreList fetches the member's store history.
func (c *Client) GetStoreList(ctx context.Context, auth Auth) ([]zippora.LogEntry, error) {
	var data storeListData
	if err := c.get(ctx, PathGetStoreList, auth.params(), &data); err != nil {
		return nil, err
	}
	out := make([]zippora.LogEntry, 0, len(data.StoreList))
	for _, s := range data.StoreList {
		out = append(out, zippora.LogEntry{
			StoreID:            s.StoreID,
			CabinetID:          s.CabinetID,
			CourierCompanyName: s.CourierCompanyName,
			PickCode:           s.PickCode,
			StoreTime:          s.StoreTime,
			PickupTime:         s.pickTime(),
		})
	}
	return out, nil
}

// ScanQRCode submits scanned text. Failures carry the scan codes
// CodeQREmpty, CodeQRUnsupported and CodeQRExpired.
func (c *Client) ScanQRCode(ctx context.Context, auth Auth, text string) error {
	return c.get(ctx, PathQRCodeScan, withAuth(auth, map[string]string{"text": text}), nil)
}

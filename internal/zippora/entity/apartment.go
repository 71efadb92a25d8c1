package entity

// Apartment is one subscription binding between the member and a unit.
type Apartment struct {
	MemberID      string   `json:"memberId"`
	ApartmentID   string   `json:"apartmentId"`
	ApartmentName string   `json:"apartmentName"`
	UnitName      string   `json:"unitName"`
	ChargeDay     string   `json:"chargeDay"`
	ApproveStatus string   `json:"approveStatus"`
	ZipporaCount  int      `json:"zipporaCount"`
	Lockers       []Locker `json:"zipporaList"`
}

// Approved reports whether the property manager approved the binding.
func (a Apartment) Approved() bool { return a.ApproveStatus != "0" }

// Locker is a Zippora cabinet at the property.
type Locker struct {
	CabinetID  string  `json:"cabinetId"`
	Latitude   string  `json:"latitude"`
	Longitude  string  `json:"longitude"`
	Address    string  `json:"address"`
	AddressURL string  `json:"addressUrl"`
	StoreCount int     `json:"storeCount"`
	Stores     []Store `json:"storeList"`
}

// Store is one package deposit waiting in (or picked from) a locker.
type Store struct {
	StoreID            string `json:"storeId"`
	PickCode           string `json:"pickCode"`
	StoreTime          string `json:"storeTime"`
	CourierCompanyName string `json:"courierCompanyName"`
	PickTime           string `json:"pickTime,omitempty"`
}

// PickedUp reports the terminal state of a store event.
func (s Store) PickedUp() bool { return s.PickTime != "" }

// SelfStore is a store addressed to the member, listed alongside the tree.
type SelfStore struct {
	StoreID            string `json:"storeId"`
	CabinetID          string `json:"cabinetId"`
	Address            string `json:"address"`
	CourierCompanyName string `json:"courierCompanyName"`
	PickCode           string `json:"pickCode"`
	StoreTime          string `json:"storeTime"`
}

// LogEntry is one row of the member's store history.
type LogEntry struct {
	StoreID            string `json:"storeId"`
	CabinetID          string `json:"cabinetId"`
	CourierCompanyName string `json:"courierCompanyName"`
	PickCode           string `json:"pickCode"`
	StoreTime          string `json:"storeTime"`
	PickupTime         string `json:"pickupTime"`
}

// ApartmentCandidate is a property found by zipcode search.
type ApartmentCandidate struct {
	ApartmentID   string `json:"apartmentId"`
	ApartmentName string `json:"apartmentName"`
	Address       string `json:"address"`
	HasBound      bool   `json:"hasBinded"`
}

// Unit is a subscribable unit of a property.
type Unit struct {
	UnitID   string `json:"unitId"`
	UnitName string `json:"unitName"`
}

// CloneApartments deep copies an apartment tree.
func CloneApartments(in []Apartment) []Apartment {
	if in == nil {
		return nil
	}
	out := make([]Apartment, len(in))
	for i, a := range in {
		out[i] = a
		if a.Lockers != nil {
			out[i].Lockers = make([]Locker, len(a.Lockers))
			for j, l := range a.Lockers {
				out[i].Lockers[j] = l
				out[i].Lockers[j].Stores = append([]Store(nil), l.Stores...)
			}
		}
	}
	return out
}

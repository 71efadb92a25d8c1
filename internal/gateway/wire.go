package gateway

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	member "github.com/ovaphlow/pitchfork/zippora-client-go/internal/member/entity"
	zippora "github.com/ovaphlow/pitchfork/zippora-client-go/internal/zippora/entity"
)

// flexInt accepts 3, "3" and "" (as 0).
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*f = flexInt(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// flag decodes the backend's boolean-like values: "1", 1, true, "true".
type flag bool

func (f *flag) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	switch strings.ToLower(s) {
	case "1", "true", "yes", "y":
		*f = true
	default:
		*f = false
	}
	return nil
}

type loginData struct {
	AccessToken string `json:"accessToken"`
	MemberID    string `json:"memberId"`
}

type memberData struct {
	Member  wireMember  `json:"member"`
	Profile wireProfile `json:"profile"`
}

type wireMember struct {
	MemberID     string `json:"memberId"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Status       string `json:"status"`
	StatusText   string `json:"statusText"`
	StatusDetail struct {
		IsEmailVerified    flag `json:"isEmailVerified"`
		IsProfileCompleted flag `json:"isProfileCompleted"`
		HasCreditCard      flag `json:"hasCreditCard"`
		HasBindAddress     flag `json:"hasBindAddress"`
		HasBindCabinet     flag `json:"hasBindCabinet"`
	} `json:"statusDetail"`
}

func (w wireMember) entity() member.Member {
	return member.Member{
		MemberID:   w.MemberID,
		Email:      w.Email,
		Phone:      w.Phone,
		Status:     w.Status,
		StatusText: w.StatusText,
		StatusDetail: member.StatusDetail{
			EmailVerified:    bool(w.StatusDetail.IsEmailVerified),
			ProfileCompleted: bool(w.StatusDetail.IsProfileCompleted),
			HasCreditCard:    bool(w.StatusDetail.HasCreditCard),
			HasBindAddress:   bool(w.StatusDetail.HasBindAddress),
			HasBindCabinet:   bool(w.StatusDetail.HasBindCabinet),
		},
	}
}

type wireProfile struct {
	NickName          string `json:"nickName"`
	FirstName         string `json:"firstName"`
	LastName          string `json:"lastName"`
	HouseholderMember string `json:"householderMember"`
	Avatar            string `json:"avatar"`
	Sex               string `json:"sex"`
	AddressLine1      string `json:"addressline1"`
	AddressLine2      string `json:"addressline2"`
	City              string `json:"city"`
	State             string `json:"state"`
	Zipcode           string `json:"zipcode"`
	Birth             string `json:"birth"`
}

func (w wireProfile) entity() member.Profile {
	return member.Profile{
		NickName:         w.NickName,
		FirstName:        w.FirstName,
		LastName:         w.LastName,
		HouseholdMembers: member.ParseHousehold(w.HouseholderMember),
		Avatar:           w.Avatar,
		Sex:              w.Sex,
		AddressLine1:     w.AddressLine1,
		AddressLine2:     w.AddressLine2,
		City:             w.City,
		State:            w.State,
		Zipcode:          w.Zipcode,
		Birth:            w.Birth,
	}
}

// patchForm renders a profile patch as insertAddress form fields.
func patchForm(p member.ProfilePatch) map[string]string {
	form := map[string]string{}
	put := func(key string, v *string) {
		if v != nil {
			form[key] = *v
		}
	}
	put("nickName", p.NickName)
	put("firstName", p.FirstName)
	put("lastName", p.LastName)
	put("avatar", p.Avatar)
	put("sex", p.Sex)
	put("addressline1", p.AddressLine1)
	put("addressline2", p.AddressLine2)
	put("city", p.City)
	put("state", p.State)
	put("zipcode", p.Zipcode)
	put("birth", p.Birth)
	put("phone", p.Phone)
	put("email", p.Email)
	if p.HouseholdMembers != nil {
		form["householderMember"] = member.JoinHousehold(*p.HouseholdMembers)
	}
	return form
}

type apartmentListData struct {
	ApartmentList []struct {
		ApartmentID   string `json:"apartmentId"`
		ApartmentName string `json:"apartmentName"`
		Address       string `json:"address"`
		HasBinded     flag   `json:"hasBinded"`
	} `json:"apartmentList"`
}

type unitListData struct {
	UnitList []zippora.Unit `json:"unitList"`
}

type wireStore struct {
	StoreID            string `json:"storeId"`
	PickCode           string `json:"pickCode"`
	StoreTime          string `json:"storeTime"`
	CourierCompanyName string `json:"courierCompanyName"`
	PickTime           string `json:"pickTime"`
	PickupTime         string `json:"pickupTime"`
	CabinetID          string `json:"cabinetId"`
	Address            string `json:"address"`
}

func (w wireStore) pickTime() string {
	if w.PickTime != "" {
		return w.PickTime
	}
	return w.PickupTime
}

type wireLocker struct {
	CabinetID  string      `json:"cabinetId"`
	Latitude   string      `json:"latitude"`
	Longitude  string      `json:"longitude"`
	Address    string      `json:"address"`
	AddressURL string      `json:"addressUrl"`
	StoreCount flexInt     `json:"storeCount"`
	StoreList  []wireStore `json:"storeList"`
}

type wireApartment struct {
	MemberID      string       `json:"memberId"`
	ApartmentID   string       `json:"apartmentId"`
	ApartmentName string       `json:"apartmentName"`
	UnitName      string       `json:"unitName"`
	ChargeDay     string       `json:"chargeDay"`
	ApproveStatus string       `json:"approveStatus"`
	ZipporaCount  flexInt      `json:"zipporaCount"`
	ZipporaList   []wireLocker `json:"zipporaList"`
}

type zipporaListData struct {
	ApartmentList []wireApartment `json:"apartmentList"`
	StoreList     []wireStore     `json:"StoreList"`
}

func (d zipporaListData) entity() ZipporaList {
	out := ZipporaList{Apartments: []zippora.Apartment{}, SelfStores: []zippora.SelfStore{}}
	for _, a := range d.ApartmentList {
		apt := zippora.Apartment{
			MemberID:      a.MemberID,
			ApartmentID:   a.ApartmentID,
			ApartmentName: a.ApartmentName,
			UnitName:      a.UnitName,
			ChargeDay:     a.ChargeDay,
			ApproveStatus: a.ApproveStatus,
			ZipporaCount:  int(a.ZipporaCount),
			Lockers:       []zippora.Locker{},
		}
		for _, l := range a.ZipporaList {
			locker := zippora.Locker{
				CabinetID:  l.CabinetID,
				Latitude:   l.Latitude,
				Longitude:  l.Longitude,
				Address:    l.Address,
				AddressURL: l.AddressURL,
				StoreCount: int(l.StoreCount),
				Stores:     []zippora.Store{},
			}
			for _, s := range l.StoreList {
				locker.Stores = append(locker.Stores, zippora.Store{
					StoreID:            s.StoreID,
					PickCode:           s.PickCode,
					StoreTime:          s.StoreTime,
					CourierCompanyName: s.CourierCompanyName,
					PickTime:           s.pickTime(),
				})
			}
			apt.Lockers = append(apt.Lockers, locker)
		}
		out.Apartments = append(out.Apartments, apt)
	}
	for _, s := range d.StoreList {
		out.SelfStores = append(out.SelfStores, zippora.SelfStore{
			StoreID:            s.StoreID,
			CabinetID:          s.CabinetID,
			Address:            s.Address,
			CourierCompanyName: s.CourierCompanyName,
			PickCode:           s.PickCode,
			StoreTime:          s.StoreTime,
		})
	}
	return out
}

type storeListData struct {
	StoreList []wireStore `json:"storeList"`
}

package gateway_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/zippora-client-go/internal/gateway"
	member "github.com/ovaphlow/pitchfork/zippora-client-go/internal/member/entity"
)

type captured struct {
	mu     sync.Mutex
	method string
	path   string
	form   map[string]string
	query  map[string]string
	ctype  string
}

func newServer(t *testing.T, body string, c *captured) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c != nil {
			c.mu.Lock()
			c.method = r.Method
			c.path = r.URL.Path
			c.ctype = r.Header.Get("Content-Type")
			c.query = map[string]string{}
			for k := range r.URL.Query() {
				c.query[k] = r.URL.Query().Get(k)
			}
			c.form = map[string]string{}
			if r.Method == http.MethodPost {
				_ = r.ParseMultipartForm(1 << 20)
				if r.MultipartForm != nil {
					for k, v := range r.MultipartForm.Value {
						c.form[k] = v[0]
					}
				}
			}
			c.mu.Unlock()
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(baseURL string, timeout time.Duration) *gateway.Client {
	return gateway.New(gateway.Config{BaseURL: baseURL + "/zpi/", Timeout: timeout}, zap.NewNop().Sugar())
}

func TestLogin_SendsMultipartAndReturnsCredentials(t *testing.T) {
	var c captured
	srv := newServer(t, `{"ret":0,"data":{"accessToken":"tok-1","memberId":"m-1"},"msg":null}`, &c)
	cl := newClient(srv.URL, time.Second)

	res, err := cl.Login(context.Background(), gateway.LoginRequest{Email: "a@b.com", Password: "hash", DeviceID: "dev"})
	require.NoError(t, err)
	require.Equal(t, "tok-1", res.AccessToken)
	require.Equal(t, "m-1", res.MemberID)

	require.Equal(t, http.MethodPost, c.method)
	require.Equal(t, "/zpi/login/login", c.path)
	require.Contains(t, c.ctype, "multipart/form-data")
	require.Equal(t, "a@b.com", c.form["email"])
	require.Equal(t, "hash", c.form["psd"])
	require.Equal(t, "dev", c.form["deviceId"])
	_, hasPhone := c.form["phoneNum"]
	require.False(t, hasPhone)
}

func TestBusinessFailure_PassesCodeAndMessageThrough(t *testing.T) {
	srv := newServer(t, `{"ret":7,"data":null,"msg":"Wrong verification code"}`, nil)
	cl := newClient(srv.URL, time.Second)

	_, err := cl.Register(context.Background(), gateway.RegisterRequest{Email: "a@b.com"})
	require.Error(t, err)
	require.Equal(t, gateway.KindBusiness, gateway.Kind(err))

	var be *gateway.BusinessError
	require.True(t, errors.As(err, &be))
	require.Equal(t, 7, be.Code)
	require.Equal(t, "Wrong verification code", be.Message)
	require.Equal(t, gateway.PathRegister, be.Op)
	require.False(t, gateway.IsTokenExpired(err))
}

func TestNeedLogin_IsClassifiedAsTokenExpired(t *testing.T) {
	srv := newServer(t, `{"ret":1,"data":null,"msg":"Need login!"}`, nil)
	cl := newClient(srv.URL, time.Second)

	_, _, err := cl.GetMember(context.Background(), gateway.Auth{AccessToken: "old", MemberID: "m"})
	require.True(t, gateway.IsTokenExpired(err))
	require.Equal(t, gateway.KindBusiness, gateway.Kind(err))
}

func TestTransportFailures(t *testing.T) {
	t.Run("malformed body", func(t *testing.T) {
		srv := newServer(t, `<html>bad gateway</html>`, nil)
		cl := newClient(srv.URL, time.Second)
		err := cl.SendVcode(context.Background(), "a@b.com", "")
		require.Equal(t, gateway.KindTransport, gateway.Kind(err))
		require.ErrorIs(t, err, gateway.ErrMalformedResponse)
	})

	t.Run("missing ret", func(t *testing.T) {
		srv := newServer(t, `{"data":{}}`, nil)
		cl := newClient(srv.URL, time.Second)
		err := cl.SendVcode(context.Background(), "a@b.com", "")
		require.ErrorIs(t, err, gateway.ErrMalformedResponse)
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		cl := newClient(url, time.Second)
		err := cl.Logout(context.Background(), gateway.Auth{AccessToken: "t", MemberID: "m"})
		require.Equal(t, gateway.KindTransport, gateway.Kind(err))
		var te *gateway.TransportError
		require.True(t, errors.As(err, &te))
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
			_, _ = w.Write([]byte(`{"ret":0}`))
		}))
		defer srv.Close()
		cl := newClient(srv.URL, 50*time.Millisecond)
		err := cl.Logout(context.Background(), gateway.Auth{AccessToken: "t", MemberID: "m"})
		require.Equal(t, gateway.KindTransport, gateway.Kind(err))
	})

	t.Run("cancelled context", func(t *testing.T) {
		srv := newServer(t, `{"ret":0}`, nil)
		cl := newClient(srv.URL, time.Second)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := cl.SendVcode(ctx, "a@b.com", "")
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestGetMember_DecodesFlagsAndHousehold(t *testing.T) {
	var c captured
	body := `{"ret":0,"msg":"","data":{
		"member":{"memberId":"m-9","email":"x@y.z","phone":"512-555-0100","status":"1","statusText":"Active",
			"statusDetail":{"isEmailVerified":"1","isProfileCompleted":"0","hasCreditCard":0,"hasBindAddress":"1","hasBindCabinet":true}},
		"profile":{"firstName":"John","lastName":"Doe","householderMember":"John Doe, Jane Doe",
			"addressline1":"123 Main St","addressline2":"Apt 4B","city":"Austin","state":"TX","zipcode":"78701"}}}`
	srv := newServer(t, body, &c)
	cl := newClient(srv.URL, time.Second)

	m, p, err := cl.GetMember(context.Background(), gateway.Auth{AccessToken: "tok", MemberID: "m-9"})
	require.NoError(t, err)
	require.Equal(t, http.MethodGet, c.method)
	require.Equal(t, "tok", c.query["_accessToken"])
	require.Equal(t, "m-9", c.query["_memberId"])

	require.Equal(t, "m-9", m.MemberID)
	require.True(t, m.StatusDetail.EmailVerified)
	require.False(t, m.StatusDetail.ProfileCompleted)
	require.False(t, m.StatusDetail.HasCreditCard)
	require.True(t, m.StatusDetail.HasBindAddress)
	require.True(t, m.StatusDetail.HasBindCabinet)

	require.Equal(t, []string{"John Doe", "Jane Doe"}, p.HouseholdMembers)
	require.Equal(t, "123 Main St", p.AddressLine1)
	require.Equal(t, "Apt 4B", p.AddressLine2)
}

func TestUpdateProfile_SendsOnlyPatchFields(t *testing.T) {
	var c captured
	srv := newServer(t, `{"ret":0,"data":null,"msg":"ok"}`, &c)
	cl := newClient(srv.URL, time.Second)

	city := "Austin"
	household := []string{"Jane Doe", "Jim Doe"}
	err := cl.UpdateProfile(context.Background(), gateway.Auth{AccessToken: "tok", MemberID: "m"},
		member.ProfilePatch{City: &city, HouseholdMembers: &household})
	require.NoError(t, err)

	require.Equal(t, map[string]string{
		"_accessToken":      "tok",
		"_memberId":         "m",
		"city":              "Austin",
		"householderMember": "Jane Doe, Jim Doe",
	}, c.form)
}

func TestGetZipporaList_BuildsTree(t *testing.T) {
	body := `{"ret":0,"data":{
		"apartmentList":[{"apartmentId":"a1","apartmentName":"Lake View","unitName":"4B","approveStatus":"0","zipporaCount":"1",
			"zipporaList":[{"cabinetId":"c1","address":"Lobby","storeCount":2,"storeList":[
				{"storeId":"s1","pickCode":"1234","storeTime":"2024-01-01 10:00","courierCompanyName":"UPS"},
				{"storeId":"s2","pickCode":"5678","storeTime":"2024-01-02 10:00","pickTime":"2024-01-02 18:00"}]}]}],
		"StoreList":[{"storeId":"s1","cabinetId":"c1","pickCode":"1234"}]}}`
	srv := newServer(t, body, nil)
	cl := newClient(srv.URL, time.Second)

	list, err := cl.GetZipporaList(context.Background(), gateway.Auth{AccessToken: "t", MemberID: "m"})
	require.NoError(t, err)
	require.Len(t, list.Apartments, 1)
	apt := list.Apartments[0]
	require.False(t, apt.Approved())
	require.Equal(t, 1, apt.ZipporaCount)
	require.Len(t, apt.Lockers, 1)
	require.Equal(t, 2, apt.Lockers[0].StoreCount)
	require.False(t, apt.Lockers[0].Stores[0].PickedUp())
	require.True(t, apt.Lockers[0].Stores[1].PickedUp())
	require.Len(t, list.SelfStores, 1)
}

func TestScanQRCode_Codes(t *testing.T) {
	cases := []struct {
		body string
		code int
	}{
		{`{"ret":2,"msg":"Empty Scan text"}`, gateway.CodeQREmpty},
		{`{"ret":3,"msg":"Not Supported QR code"}`, gateway.CodeQRUnsupported},
		{`{"ret":4,"msg":"QR code Expired"}`, gateway.CodeQRExpired},
	}
	for _, tc := range cases {
		srv := newServer(t, tc.body, nil)
		cl := newClient(srv.URL, time.Second)
		err := cl.ScanQRCode(context.Background(), gateway.Auth{AccessToken: "t", MemberID: "m"}, "payload")
		op, code, ok := gateway.BusinessCode(err)
		require.True(t, ok)
		require.Equal(t, gateway.PathQRCodeScan, op)
		require.Equal(t, tc.code, code)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("ZIPPORA_API_BASE_URL", "")
	t.Setenv("ZIPPORA_API_TEST", "1")
	t.Setenv("ZIPPORA_API_TIMEOUT", "5s")
	cfg := gateway.ConfigFromEnv()
	require.Equal(t, gateway.TestBaseURL, cfg.BaseURL)
	require.Equal(t, 5*time.Second, cfg.Timeout)

	t.Setenv("ZIPPORA_API_TEST", "")
	t.Setenv("ZIPPORA_API_TIMEOUT", "")
	cfg = gateway.ConfigFromEnv()
	require.Equal(t, gateway.ProductionBaseURL, cfg.BaseURL)
	require.Equal(t, gateway.DefaultTimeout, cfg.Timeout)
}

// Package fakebackend runs an in-process imitation of the ZipcodeXpress API.
// It keeps accounts, tokens, properties and bindings in memory and lets tests
// count calls, expire tokens, hold requests at a barrier and inject failures.
package fakebackend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	zippora "github.com/ovaphlow/pitchfork/zippora-client-go/internal/zippora/entity"
)

// Vcode is the verification code every sendvcode / forgetPsd call issues.
const Vcode = "123456"

// NeedLogin is the message returned for a missing or revoked token.
const NeedLogin = "Need login!"

type account struct {
	memberID string
	email    string
	phone    string
	password string
	deviceID string
	profile  map[string]string
	bindings []binding
	self     []zippora.SelfStore
	logs     []zippora.LogEntry
}

type binding struct {
	apartmentID string
	unitID      string
}

// Property is a subscribable apartment building.
type Property struct {
	ApartmentID   string
	ApartmentName string
	Address       string
	Zipcode       string
	ApproveStatus string
	Units         []zippora.Unit
	Lockers       []zippora.Locker
}

type failure struct {
	ret    int
	msg    string
	status int
	raw    string
	times  int
}

type barrier struct {
	n       int
	arrived int
	release chan struct{}
}

// Server is the fake. Construct with New and Close when done.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	seq        int
	accounts   map[string]*account
	tokens     map[string]string
	properties map[string]*Property
	vcodes     map[string]string
	qr         map[string]int
	calls      map[string]int
	lastForm   map[string]map[string]string
	barriers   map[string]*barrier
	delays     map[string]time.Duration
	failures   map[string]*failure
}

// New starts the fake on a loopback port.
func New() *Server {
	s := &Server{
		accounts:   map[string]*account{},
		tokens:     map[string]string{},
		properties: map[string]*Property{},
		vcodes:     map[string]string{},
		qr:         map[string]int{},
		calls:      map[string]int{},
		lastForm:   map[string]map[string]string{},
		barriers:   map[string]*barrier{},
		delays:     map[string]time.Duration{},
		failures:   map[string]*failure{},
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

// BaseURL is the value to configure the gateway with.
func (s *Server) BaseURL() string { return s.URL + "/zpi/" }

// AddAccount registers a member and returns its id. password is the hashed
// form the client sends.
func (s *Server) AddAccount(email, phone, password string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addAccountLocked(email, phone, password, nil).memberID
}

func (s *Server) addAccountLocked(email, phone, password string, profile map[string]string) *account {
	s.seq++
	a := &account{
		memberID: fmt.Sprintf("%d", 1000+s.seq),
		email:    email,
		phone:    phone,
		password: password,
		profile:  map[string]string{},
	}
	for k, v := range profile {
		a.profile[k] = v
	}
	s.accounts[a.memberID] = a
	return a
}

// SetProfileField sets a stored profile field by its wire name.
func (s *Server) SetProfileField(memberID, key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.accounts[memberID]; a != nil {
		a.profile[key] = value
	}
}

// ProfileField returns a stored profile field by its wire name.
func (s *Server) ProfileField(memberID, key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.accounts[memberID]; a != nil {
		return a.profile[key]
	}
	return ""
}

// Password returns the stored hashed password of a member.
func (s *Server) Password(memberID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.accounts[memberID]; a != nil {
		return a.password
	}
	return ""
}

// DeviceID returns the push token sent with the member's last login.
func (s *Server) DeviceID(memberID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.accounts[memberID]; a != nil {
		return a.deviceID
	}
	return ""
}

// AddProperty makes a building searchable by its zipcode.
func (s *Server) AddProperty(p Property) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ApproveStatus == "" {
		p.ApproveStatus = "1"
	}
	s.properties[p.ApartmentID] = &p
}

// Bound reports whether the member is subscribed to the apartment.
func (s *Server) Bound(memberID, apartmentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.accounts[memberID]; a != nil {
		for _, b := range a.bindings {
			if b.apartmentID == apartmentID {
				return true
			}
		}
	}
	return false
}

// SetSelfStores sets the stores addressed to the member directly.
func (s *Server) SetSelfStores(memberID string, stores []zippora.SelfStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.accounts[memberID]; a != nil {
		a.self = stores
	}
}

// SetLogs sets the member's store history.
func (s *Server) SetLogs(memberID string, logs []zippora.LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.accounts[memberID]; a != nil {
		a.logs = logs
	}
}

// SetQRResult sets the ret code returned for a scanned text. Unknown texts
// get 3 (unsupported), empty text gets 2.
func (s *Server) SetQRResult(text string, ret int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.qr[text] = ret
}

// ExpireTokens revokes every issued token.
func (s *Server) ExpireTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = map[string]string{}
}

// TokenValid reports whether token is currently accepted.
func (s *Server) TokenValid(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tokens[token]
	return ok
}

// Calls returns how many requests arrived for path (e.g. "login/login").
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// LastForm returns the parameters of the most recent request to path.
func (s *Server) LastForm(path string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]string{}
	for k, v := range s.lastForm[path] {
		out[k] = v
	}
	return out
}

// SetBarrier holds the next n requests to path until all n have arrived.
func (s *Server) SetBarrier(path string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.barriers[path] = &barrier{n: n, release: make(chan struct{})}
}

// SetDelay delays every response to path.
func (s *Server) SetDelay(path string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[path] = d
}

// FailBusiness makes the next times requests to path return ret/msg.
func (s *Server) FailBusiness(path string, ret int, msg string, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = &failure{ret: ret, msg: msg, times: times}
}

// FailTransport makes the next times requests to path answer with an HTTP
// 502 and a body that is not an envelope.
func (s *Server) FailTransport(path string, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = &failure{status: http.StatusBadGateway, raw: "<html>bad gateway</html>", times: times}
}

// ClearFailures removes every injected failure.
func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = map[string]*failure{}
}

type reply struct {
	Ret  int     `json:"ret"`
	Data any     `json:"data"`
	Msg  *string `json:"msg"`
}

func writeOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(reply{Data: data})
}

func writeFail(w http.ResponseWriter, ret int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(reply{Ret: ret, Msg: &msg})
}

// params flattens query and multipart values.
func params(r *http.Request) map[string]string {
	_ = r.ParseMultipartForm(1 << 20)
	out := map[string]string{}
	for k, v := range r.URL.Query() {
		out[k] = v[0]
	}
	if r.MultipartForm != nil {
		for k, v := range r.MultipartForm.Value {
			out[k] = v[0]
		}
	}
	return out
}

// intercept runs the bookkeeping every request goes through. It returns
// false when the response has already been written.
func (s *Server) intercept(w http.ResponseWriter, r *http.Request, path string, p map[string]string) bool {
	s.mu.Lock()
	s.calls[path]++
	s.lastForm[path] = p
	b := s.barriers[path]
	if b != nil {
		b.arrived++
		if b.arrived >= b.n {
			close(b.release)
			delete(s.barriers, path)
		}
	}
	delay := s.delays[path]
	f := s.failures[path]
	if f != nil {
		f.times--
		if f.times <= 0 {
			delete(s.failures, path)
		}
	}
	s.mu.Unlock()

	if b != nil {
		select {
		case <-b.release:
		case <-r.Context().Done():
			return false
		}
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return false
		}
	}
	if f != nil {
		if f.status != 0 {
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(f.raw))
			return false
		}
		writeFail(w, f.ret, f.msg)
		return false
	}
	return true
}

type handlerFunc func(w http.ResponseWriter, p map[string]string)
type authedFunc func(w http.ResponseWriter, a *account, p map[string]string)

func (s *Server) open(path string, fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := params(r)
		if !s.intercept(w, r, path, p) {
			return
		}
		fn(w, p)
	}
}

func (s *Server) authed(path string, fn authedFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := params(r)
		if !s.intercept(w, r, path, p) {
			return
		}
		s.mu.Lock()
		memberID, ok := s.tokens[p["_accessToken"]]
		a := s.accounts[memberID]
		s.mu.Unlock()
		if !ok || a == nil || memberID != p["_memberId"] {
			writeFail(w, 1, NeedLogin)
			return
		}
		fn(w, a, p)
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /zpi/login/login", s.open("login/login", s.login))
	mux.HandleFunc("POST /zpi/login/registern", s.open("login/registern", s.register))
	mux.HandleFunc("POST /zpi/login/sendvcode", s.open("login/sendvcode", s.sendVcode))
	mux.HandleFunc("POST /zpi/login/forgetPsd", s.open("login/forgetPsd", s.forgetPassword))
	mux.HandleFunc("POST /zpi/login/resetPsd", s.open("login/resetPsd", s.resetPassword))
	mux.HandleFunc("POST /zpi/login/changePsd", s.authed("login/changePsd", s.changePassword))
	mux.HandleFunc("POST /zpi/login/logout", s.authed("login/logout", s.logout))
	mux.HandleFunc("GET /zpi/member/getMember", s.authed("member/getMember", s.getMember))
	mux.HandleFunc("POST /zpi/Address/insertAddress", s.authed("Address/insertAddress", s.insertAddress))
	mux.HandleFunc("GET /zpi/zippora/getApartmentList", s.authed("zippora/getApartmentList", s.apartmentList))
	mux.HandleFunc("GET /zpi/zippora/getUnitList", s.authed("zippora/getUnitList", s.unitList))
	mux.HandleFunc("GET /zpi/zippora/bindApartment", s.authed("zippora/bindApartment", s.bind))
	mux.HandleFunc("GET /zpi/zippora/cancelBindApartment", s.authed("zippora/cancelBindApartment", s.unbind))
	mux.HandleFunc("GET /zpi/zippora/getZipporaList", s.authed("zippora/getZipporaList", s.zipporaList))
	mux.HandleFunc("GET /zpi/store/getStoreList", s.authed("store/getStoreList", s.storeList))
	mux.HandleFunc("GET /zpi/QrCode/scan", s.authed("QrCode/scan", s.scan))
	return mux
}

func (s *Server) issueTokenLocked(a *account) map[string]string {
	s.seq++
	token := fmt.Sprintf("tok-%s-%d", a.memberID, s.seq)
	s.tokens[token] = a.memberID
	return map[string]string{"accessToken": token, "memberId": a.memberID}
}

func (s *Server) findLocked(match func(*account) bool) *account {
	for _, a := range s.accounts {
		if match(a) {
			return a
		}
	}
	return nil
}

func (s *Server) login(w http.ResponseWriter, p map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var a *account
	switch {
	case p["email"] != "":
		a = s.findLocked(func(x *account) bool { return strings.EqualFold(x.email, p["email"]) })
	case p["phoneNum"] != "":
		a = s.findLocked(func(x *account) bool { return x.phone == p["phoneNum"] })
	case p["memberId"] != "":
		a = s.accounts[p["memberId"]]
	}
	if a == nil || a.password != p["psd"] {
		writeFail(w, 1, "Wrong account or password")
		return
	}
	if p["deviceId"] != "" {
		a.deviceID = p["deviceId"]
	}
	writeOK(w, s.issueTokenLocked(a))
}

func (s *Server) register(w http.ResponseWriter, p map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findLocked(func(x *account) bool { return strings.EqualFold(x.email, p["email"]) }) != nil {
		writeFail(w, 3, "Email has been registered")
		return
	}
	if p["phone"] != "" && s.findLocked(func(x *account) bool { return x.phone == p["phone"] }) != nil {
		writeFail(w, 8, "Phone number has been registered")
		return
	}
	if code, ok := s.vcodes[strings.ToLower(p["email"])]; !ok || code != p["vcode"] {
		writeFail(w, 7, "Wrong verification code")
		return
	}
	if p["psd1"] == "" || p["psd1"] != p["psd2"] {
		writeFail(w, 1, "The two passwords are different")
		return
	}
	a := s.addAccountLocked(p["email"], p["phone"], p["psd1"], map[string]string{
		"firstName": p["firstName"],
		"lastName":  p["lastName"],
	})
	delete(s.vcodes, strings.ToLower(p["email"]))
	writeOK(w, s.issueTokenLocked(a))
}

func (s *Server) sendVcode(w http.ResponseWriter, p map[string]string) {
	if p["email"] == "" {
		writeFail(w, 1, "Email is required")
		return
	}
	s.mu.Lock()
	s.vcodes[strings.ToLower(p["email"])] = Vcode
	s.mu.Unlock()
	writeOK(w, nil)
}

func (s *Server) forgetPassword(w http.ResponseWriter, p map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.findLocked(func(x *account) bool { return strings.EqualFold(x.email, p["email"]) })
	if a == nil {
		writeFail(w, 1, "Email is not registered")
		return
	}
	s.vcodes[strings.ToLower(a.email)] = Vcode
	writeOK(w, map[string]string{"memberId": a.memberID})
}

func (s *Server) resetPassword(w http.ResponseWriter, p map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accounts[p["memberId"]]
	if a == nil {
		writeFail(w, 1, "Member not found")
		return
	}
	if s.vcodes[strings.ToLower(a.email)] != p["vcode"] {
		writeFail(w, 7, "Wrong verification code")
		return
	}
	if p["psd1"] == "" || p["psd1"] != p["psd2"] {
		writeFail(w, 1, "The two passwords are different")
		return
	}
	a.password = p["psd1"]
	delete(s.vcodes, strings.ToLower(a.email))
	writeOK(w, nil)
}

func (s *Server) changePassword(w http.ResponseWriter, a *account, p map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.password != p["oldPsd"] {
		writeFail(w, 1, "Old password is wrong")
		return
	}
	if p["psd1"] == "" || p["psd1"] != p["psd2"] {
		writeFail(w, 1, "The two passwords are different")
		return
	}
	a.password = p["psd1"]
	writeOK(w, nil)
}

func (s *Server) logout(w http.ResponseWriter, a *account, p map[string]string) {
	s.mu.Lock()
	delete(s.tokens, p["_accessToken"])
	s.mu.Unlock()
	writeOK(w, nil)
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (s *Server) getMember(w http.ResponseWriter, a *account, p map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile := map[string]string{}
	for k, v := range a.profile {
		profile[k] = v
	}
	writeOK(w, map[string]any{
		"member": map[string]any{
			"memberId":   a.memberID,
			"email":      a.email,
			"phone":      a.phone,
			"status":     "1",
			"statusText": "Active",
			"statusDetail": map[string]string{
				"isEmailVerified":    "1",
				"isProfileCompleted": flag(a.profile["firstName"] != "" && a.profile["lastName"] != ""),
				"hasCreditCard":      "0",
				"hasBindAddress":     flag(a.profile["addressline1"] != ""),
				"hasBindCabinet":     flag(len(a.bindings) > 0),
			},
		},
		"profile": profile,
	})
}

func (s *Server) insertAddress(w http.ResponseWriter, a *account, p map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range p {
		switch {
		case strings.HasPrefix(k, "_"):
		case k == "phone":
			a.phone = v
		case k == "email":
			a.email = v
		default:
			a.profile[k] = v
		}
	}
	writeOK(w, nil)
}

func (s *Server) apartmentList(w http.ResponseWriter, a *account, p map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := []zippora.ApartmentCandidate{}
	for _, prop := range s.properties {
		if prop.Zipcode != p["zipcode"] {
			continue
		}
		bound := false
		for _, b := range a.bindings {
			bound = bound || b.apartmentID == prop.ApartmentID
		}
		list = append(list, zippora.ApartmentCandidate{
			ApartmentID:   prop.ApartmentID,
			ApartmentName: prop.ApartmentName,
			Address:       prop.Address,
			HasBound:      bound,
		})
	}
	writeOK(w, map[string]any{"apartmentList": list})
}

func (s *Server) unitList(w http.ResponseWriter, a *account, p map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prop := s.properties[p["apartmentId"]]
	if prop == nil {
		writeFail(w, 1, "Apartment not found")
		return
	}
	writeOK(w, map[string]any{"unitList": prop.Units})
}

func unitName(prop *Property, unitID string) (string, bool) {
	for _, u := range prop.Units {
		if u.UnitID == unitID {
			return u.UnitName, true
		}
	}
	return "", false
}

func (s *Server) bind(w http.ResponseWriter, a *account, p map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prop := s.properties[p["apartmentId"]]
	if prop == nil {
		writeFail(w, 1, "Apartment not found")
		return
	}
	if _, ok := unitName(prop, p["unitId"]); !ok {
		writeFail(w, 1, "Unit not found")
		return
	}
	for _, b := range a.bindings {
		if b.apartmentID == prop.ApartmentID {
			writeFail(w, 1, "Already subscribed")
			return
		}
	}
	a.bindings = append(a.bindings, binding{apartmentID: prop.ApartmentID, unitID: p["unitId"]})
	writeOK(w, nil)
}

func (s *Server) unbind(w http.ResponseWriter, a *account, p map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, b := range a.bindings {
		if b.apartmentID == p["apartmentId"] {
			a.bindings = append(a.bindings[:i], a.bindings[i+1:]...)
			writeOK(w, nil)
			return
		}
	}
	writeFail(w, 1, "Not subscribed")
}

func (s *Server) zipporaList(w http.ResponseWriter, a *account, p map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	apts := []zippora.Apartment{}
	for _, b := range a.bindings {
		prop := s.properties[b.apartmentID]
		if prop == nil {
			continue
		}
		unit, _ := unitName(prop, b.unitID)
		lockers := prop.Lockers
		if lockers == nil {
			lockers = []zippora.Locker{}
		}
		apts = append(apts, zippora.Apartment{
			MemberID:      a.memberID,
			ApartmentID:   prop.ApartmentID,
			ApartmentName: prop.ApartmentName,
			UnitName:      unit,
			ApproveStatus: prop.ApproveStatus,
			ZipporaCount:  len(lockers),
			Lockers:       lockers,
		})
	}
	self := a.self
	if self == nil {
		self = []zippora.SelfStore{}
	}
	writeOK(w, map[string]any{"apartmentList": apts, "StoreList": self})
}

func (s *Server) storeList(w http.ResponseWriter, a *account, p map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	logs := a.logs
	if logs == nil {
		logs = []zippora.LogEntry{}
	}
	writeOK(w, map[string]any{"storeList": logs})
}

func (s *Server) scan(w http.ResponseWriter, a *account, p map[string]string) {
	text := p["text"]
	if text == "" {
		writeFail(w, 2, "QR code is empty")
		return
	}
	s.mu.Lock()
	ret, ok := s.qr[text]
	s.mu.Unlock()
	switch {
	case !ok || ret == 3:
		writeFail(w, 3, "QR code is not supported")
	case ret == 0:
		writeOK(w, nil)
	case ret == 4:
		writeFail(w, 4, "QR code has expired")
	default:
		writeFail(w, ret, "QR code rejected")
	}
}

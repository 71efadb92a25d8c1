// Package cache holds the member's server derived data between fetches and
// tells subscribers when it changes. Every list is replaced as a whole on a
// successful fetch; a failed fetch leaves the previous snapshot in place.
package cache

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/zippora-client-go/internal/gateway"
	member "github.com/ovaphlow/pitchfork/zippora-client-go/internal/member/entity"
	zippora "github.com/ovaphlow/pitchfork/zippora-client-go/internal/zippora/entity"
)

var (
	ErrInvalidZipcode = errors.New("zipcode must be exactly five digits")
	ErrEmptyPatch     = errors.New("profile patch has no fields")
	ErrQREmpty        = errors.New("qr code is empty")
	ErrQRUnsupported  = errors.New("qr code is not supported")
	ErrQRExpired      = errors.New("qr code has expired")
	// ErrStale is returned when the session changed while a request was in
	// flight; the response was discarded.
	ErrStale = errors.New("session changed, response discarded")
	// ErrUnknownApartment means the apartment is not among the last search
	// results, so its address is not known.
	ErrUnknownApartment = errors.New("apartment not in search results")
)

// Runner executes authenticated calls, renewing the session when needed.
type Runner interface {
	Do(ctx context.Context, call func(ctx context.Context, auth gateway.Auth) error) error
}

// Backend is the part of the gateway the cache reads and writes through.
type Backend interface {
	GetMember(ctx context.Context, auth gateway.Auth) (member.Member, member.Profile, error)
	UpdateProfile(ctx context.Context, auth gateway.Auth, patch member.ProfilePatch) error
	GetApartmentList(ctx context.Context, auth gateway.Auth, zipcode string) ([]zippora.ApartmentCandidate, error)
	GetUnitList(ctx context.Context, auth gateway.Auth, apartmentID string) ([]zippora.Unit, error)
	BindApartment(ctx context.Context, auth gateway.Auth, apartmentID, unitID string) error
	CancelBindApartment(ctx context.Context, auth gateway.Auth, apartmentID string) error
	GetZipporaList(ctx context.Context, auth gateway.Auth) (gateway.ZipporaList, error)
	GetStoreList(ctx context.Context, auth gateway.Auth) ([]zippora.LogEntry, error)
	ScanQRCode(ctx context.Context, auth gateway.Auth, text string) error
}

// Cache is safe for concurrent use.
type Cache struct {
	runner  Runner
	backend Backend
	logger  *zap.SugaredLogger
	hub     *hub

	mu         sync.RWMutex
	generation uint64
	memberID   string
	member     *member.Member
	profile    *member.Profile
	apartments []zippora.Apartment
	selfStores []zippora.SelfStore
	logs       []zippora.LogEntry
	candidates []zippora.ApartmentCandidate
	searchZip  string
	searchSeq  uint64
	units      map[string][]zippora.Unit
}

func New(runner Runner, backend Backend, logger *zap.SugaredLogger) *Cache {
	return &Cache{
		runner:  runner,
		backend: backend,
		logger:  logger,
		hub:     newHub(),
		units:   map[string][]zippora.Unit{},
	}
}

// Subscribe returns a subscription to change events.
func (c *Cache) Subscribe() *Subscription {
	return c.hub.add()
}

// Close ends every subscription.
func (c *Cache) Close() {
	c.hub.closeAll()
}

func (c *Cache) publish(topic Topic) {
	if dropped := c.hub.publish(topic); dropped > 0 {
		c.logger.Debugw("slow subscribers missed event", "topic", string(topic), "dropped", dropped)
	}
}

func (c *Cache) currentGeneration() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// commit applies fn unless the caller gave up or the session changed since
// gen was read.
func (c *Cache) commit(ctx context.Context, gen uint64, topic Topic, fn func()) error {
	c.mu.Lock()
	if err := ctx.Err(); err != nil {
		c.mu.Unlock()
		c.logger.Debugw("discarding response after cancellation", "topic", string(topic))
		return err
	}
	if gen != c.generation {
		c.mu.Unlock()
		return ErrStale
	}
	fn()
	c.mu.Unlock()
	c.publish(topic)
	return nil
}

func (c *Cache) resetLocked() {
	c.generation++
	c.member = nil
	c.profile = nil
	c.apartments = nil
	c.selfStores = nil
	c.logs = nil
	c.candidates = nil
	c.searchZip = ""
	c.searchSeq++
	c.units = map[string][]zippora.Unit{}
}

// SessionStarted drops the data of a previous member.
func (c *Cache) SessionStarted(memberID string) {
	c.mu.Lock()
	if c.memberID == memberID {
		c.mu.Unlock()
		return
	}
	c.resetLocked()
	c.memberID = memberID
	c.mu.Unlock()
	c.publish(TopicCleared)
}

// SessionEnded drops everything.
func (c *Cache) SessionEnded() {
	c.mu.Lock()
	c.resetLocked()
	c.memberID = ""
	c.mu.Unlock()
	c.publish(TopicCleared)
}

// Member returns the cached member record; ok is false before the first
// successful fetch.
func (c *Cache) Member() (m member.Member, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.member == nil {
		return member.Member{}, false
	}
	return *c.member, true
}

func (c *Cache) Profile() (p member.Profile, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.profile == nil {
		return member.Profile{}, false
	}
	return c.profile.Clone(), true
}

func (c *Cache) Apartments() []zippora.Apartment {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return zippora.CloneApartments(c.apartments)
}

func (c *Cache) SelfStores() []zippora.SelfStore {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]zippora.SelfStore(nil), c.selfStores...)
}

func (c *Cache) Logs() []zippora.LogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]zippora.LogEntry(nil), c.logs...)
}

// Candidates returns the last apartment search results and their zipcode.
func (c *Cache) Candidates() ([]zippora.ApartmentCandidate, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]zippora.ApartmentCandidate(nil), c.candidates...), c.searchZip
}

func (c *Cache) Units(apartmentID string) ([]zippora.Unit, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok := c.units[apartmentID]
	return append([]zippora.Unit(nil), u...), ok
}

// Snapshot is a copy of everything cached.
type Snapshot struct {
	MemberID   string                       `json:"memberId"`
	Member     *member.Member               `json:"member"`
	Profile    *member.Profile              `json:"profile"`
	Apartments []zippora.Apartment          `json:"apartments"`
	SelfStores []zippora.SelfStore          `json:"selfStores"`
	Logs       []zippora.LogEntry           `json:"logs"`
	Candidates []zippora.ApartmentCandidate `json:"candidates"`
	SearchZip  string                       `json:"searchZipcode,omitempty"`
}

func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := Snapshot{
		MemberID:   c.memberID,
		Apartments: zippora.CloneApartments(c.apartments),
		SelfStores: append([]zippora.SelfStore(nil), c.selfStores...),
		Logs:       append([]zippora.LogEntry(nil), c.logs...),
		Candidates: append([]zippora.ApartmentCandidate(nil), c.candidates...),
		SearchZip:  c.searchZip,
	}
	if c.member != nil {
		m := *c.member
		s.Member = &m
	}
	if c.profile != nil {
		p := c.profile.Clone()
		s.Profile = &p
	}
	return s
}

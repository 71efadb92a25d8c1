package credential

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Credential is the persisted secret set of one signed-in member.
type Credential struct {
	AccessToken string
	MemberID    string
	Password    string
	DeviceToken string
}

// Keychain groups the credential keys and serializes writes that touch more
// than one of them, so readers never observe a token without its member id.
type Keychain struct {
	mu    sync.Mutex
	store Store
}

func NewKeychain(store Store) *Keychain {
	return &Keychain{store: store}
}

// Store exposes the underlying store for non-credential keys.
func (k *Keychain) Store() Store { return k.store }

// SaveSession persists a freshly issued session. An empty password leaves
// the saved one untouched. On a failed write the token pair is removed.
func (k *Keychain) SaveSession(ctx context.Context, accessToken, memberID, password string) error {
	if accessToken == "" || memberID == "" {
		return errors.New("access token and member id are both required")
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	err := k.store.Save(ctx, KeyMemberID, memberID)
	if err == nil {
		err = k.store.Save(ctx, KeyAccessToken, accessToken)
	}
	if err == nil && password != "" {
		err = k.store.Save(ctx, KeyPassword, password)
	}
	if err != nil {
		_ = k.store.Delete(ctx, KeyAccessToken)
		_ = k.store.Delete(ctx, KeyMemberID)
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// UpdateToken replaces the access token of the current session.
func (k *Keychain) UpdateToken(ctx context.Context, accessToken string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, err := k.store.Read(ctx, KeyMemberID); err != nil {
		return fmt.Errorf("update token: %w", err)
	}
	return k.store.Save(ctx, KeyAccessToken, accessToken)
}

// SavePassword replaces the saved hashed password.
func (k *Keychain) SavePassword(ctx context.Context, password string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.store.Save(ctx, KeyPassword, password)
}

// LoadSession returns the persisted session. ErrNotFound unless both the
// access token and member id are present.
func (k *Keychain) LoadSession(ctx context.Context) (Credential, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	var c Credential
	var err error
	if c.AccessToken, err = k.store.Read(ctx, KeyAccessToken); err != nil {
		return Credential{}, err
	}
	if c.MemberID, err = k.store.Read(ctx, KeyMemberID); err != nil {
		return Credential{}, err
	}
	c.Password, _ = k.readOptional(ctx, KeyPassword)
	c.DeviceToken, _ = k.readOptional(ctx, KeyDeviceToken)
	return c, nil
}

// SavedLogin returns what re-login needs: the member id and hashed password.
func (k *Keychain) SavedLogin(ctx context.Context) (memberID, password string, err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if memberID, err = k.store.Read(ctx, KeyMemberID); err != nil {
		return "", "", err
	}
	if password, err = k.store.Read(ctx, KeyPassword); err != nil {
		return "", "", err
	}
	if memberID == "" || password == "" {
		return "", "", ErrNotFound
	}
	return memberID, password, nil
}

// DeviceToken returns the push token registered for this device, or "".
func (k *Keychain) DeviceToken(ctx context.Context) string {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, _ := k.readOptional(ctx, KeyDeviceToken)
	return v
}

func (k *Keychain) SaveDeviceToken(ctx context.Context, token string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.store.Save(ctx, KeyDeviceToken, token)
}

// Clear deletes every credential key. It keeps going after a failed delete
// and reports all failures.
func (k *Keychain) Clear(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	var errs []error
	for _, key := range []string{KeyAccessToken, KeyMemberID, KeyPassword, KeyDeviceToken} {
		if err := k.store.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func (k *Keychain) readOptional(ctx context.Context, key string) (string, error) {
	v, err := k.store.Read(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return v, err
}

package credential

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"
)

var errCorrupt = errors.New("credential entry cannot be opened")

// FileStore persists secrets in a JSON file, each value sealed with
// nacl/secretbox under a key kept in a separate 0600 file. It plays the part
// the platform keychain plays on mobile.
type FileStore struct {
	mu   sync.Mutex
	path string
	key  [32]byte
}

// NewFileStore opens (or initializes) the store at path, with its sealing
// key at keyPath.
func NewFileStore(path, keyPath string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create credential dir: %w", err)
	}
	key, err := loadOrCreateKey(keyPath)
	if err != nil {
		return nil, err
	}
	return &FileStore{path: path, key: key}, nil
}

func loadOrCreateKey(keyPath string) ([32]byte, error) {
	var key [32]byte
	raw, err := os.ReadFile(keyPath)
	if err == nil {
		if len(raw) != len(key) {
			return key, fmt.Errorf("credential key %s: unexpected length %d", keyPath, len(raw))
		}
		copy(key[:], raw)
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return key, fmt.Errorf("read credential key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(keyPath), 0o700); err != nil {
		return key, fmt.Errorf("create key dir: %w", err)
	}
	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		return key, fmt.Errorf("generate credential key: %w", err)
	}
	if err := os.WriteFile(keyPath, key[:], 0o600); err != nil {
		return key, fmt.Errorf("write credential key: %w", err)
	}
	return key, nil
}

func (f *FileStore) Save(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries, err := f.load()
	if err != nil {
		return err
	}
	sealed, err := f.seal([]byte(value))
	if err != nil {
		return err
	}
	entries[key] = sealed
	return f.write(entries)
}

func (f *FileStore) Read(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries, err := f.load()
	if err != nil {
		return "", err
	}
	sealed, ok := entries[key]
	if !ok {
		return "", ErrNotFound
	}
	plain, err := f.open(sealed)
	if err != nil {
		return "", fmt.Errorf("%s: %w", key, err)
	}
	return string(plain), nil
}

func (f *FileStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return f.write(entries)
}

func (f *FileStore) load() (map[string]string, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credential file: %w", err)
	}
	entries := map[string]string{}
	if len(raw) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode credential file: %w", err)
	}
	return entries, nil
}

// write replaces the file atomically.
func (f *FileStore) write(entries map[string]string) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".credentials-*")
	if err != nil {
		return fmt.Errorf("create temp credential file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, f.path)
}

func (f *FileStore) seal(plain []byte) (string, error) {
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	out := secretbox.Seal(nonce[:], plain, &nonce, &f.key)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (f *FileStore) open(sealed string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(raw) < 24+secretbox.Overhead {
		return nil, errCorrupt
	}
	var nonce [24]byte
	copy(nonce[:], raw[:24])
	plain, ok := secretbox.Open(nil, raw[24:], &nonce, &f.key)
	if !ok {
		return nil, errCorrupt
	}
	return plain, nil
}

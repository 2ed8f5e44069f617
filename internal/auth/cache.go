package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/99designs/keyring"
	"golang.org/x/oauth2"
)

// ErrTokenNotCached is returned by TokenCache.Load when nothing is stored.
var ErrTokenNotCached = errors.New("auth: no cached token")

// TokenCache persists the OAuth grant between runs so later sign-ins can be
// silent.
type TokenCache interface {
	Load() (*oauth2.Token, error)
	Save(tok *oauth2.Token) error
	Clear() error
}

// FileCache stores the token as JSON in a single file.
type FileCache struct {
	path string
}

func NewFileCache(path string) *FileCache {
	return &FileCache{path: path}
}

func (c *FileCache) Load() (*oauth2.Token, error) {
	f, err := os.Open(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrTokenNotCached
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var tok oauth2.Token
	if err := json.NewDecoder(f).Decode(&tok); err != nil {
		return nil, fmt.Errorf("decode token %s: %w", c.path, err)
	}
	return &tok, nil
}

// Save writes through a temp file and rename so a crash never leaves a
// truncated token behind.
func (c *FileCache) Save(tok *oauth2.Token) error {
	tmp := c.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}

func (c *FileCache) Clear() error {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

const keyringService = "outlookterm"

// KeyringCache stores the token in the OS credential store.
type KeyringCache struct {
	ring keyring.Keyring
	key  string
}

// OpenKeyringCache opens the system keyring, falling back to an encrypted
// file under dir on systems without a credential service.
func OpenKeyringCache(dir, key string) (*KeyringCache, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: keyringService,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  filepath.Join(dir, "credentials"),
		FilePasswordFunc:         keyring.FixedStringPrompt("outlookterm-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewKeyringCache(ring, key), nil
}

func NewKeyringCache(ring keyring.Keyring, key string) *KeyringCache {
	return &KeyringCache{ring: ring, key: key}
}

func (c *KeyringCache) Load() (*oauth2.Token, error) {
	item, err := c.ring.Get(c.key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, ErrTokenNotCached
	}
	if err != nil {
		return nil, fmt.Errorf("getting token %q: %w", c.key, err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(item.Data, &tok); err != nil {
		return nil, fmt.Errorf("decode token %q: %w", c.key, err)
	}
	return &tok, nil
}

func (c *KeyringCache) Save(tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	err = c.ring.Set(keyring.Item{
		Key:   c.key,
		Data:  data,
		Label: "outlookterm sign-in",
	})
	if err != nil {
		return fmt.Errorf("setting token %q: %w", c.key, err)
	}
	return nil
}

func (c *KeyringCache) Clear() error {
	if err := c.ring.Remove(c.key); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting token %q: %w", c.key, err)
	}
	return nil
}

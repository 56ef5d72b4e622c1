// Package secrets stores connector credentials encrypted at rest.
//
// The vault is a single JSON file of sealed entries plus a key file
// holding the 256-bit vault key, both created on first use. Values are
// sealed with ChaCha20-Poly1305 under a random per-value nonce; the
// plaintext only ever exists in memory while a connector resolves it.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20poly1305"
)

// Credential is the public (unsealed-metadata) view of a vault entry.
type Credential struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Purpose   string    `json:"purpose,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type sealedEntry struct {
	Credential
	Nonce  string `json:"nonce"`
	Sealed string `json:"sealed"`
}

type vaultFile struct {
	Entries []sealedEntry `json:"entries"`
}

// Vault holds credentials for connectors. All methods are safe for
// concurrent use.
type Vault struct {
	mu   sync.Mutex
	path string
	key  []byte
}

// Open loads (or initializes) the vault at path. The key file lives next
// to the vault with a .key suffix and restrictive permissions.
func Open(path string) (*Vault, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create vault directory: %w", err)
	}

	key, err := loadOrCreateKey(path + ".key")
	if err != nil {
		return nil, err
	}

	v := &Vault{path: path, key: key}
	if _, err := v.load(); err != nil {
		return nil, err
	}
	return v, nil
}

func loadOrCreateKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		key, decErr := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
		if decErr != nil || len(key) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("vault key file %s is corrupt", path)
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read vault key: %w", err)
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate vault key: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(key) + "\n"
	if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write vault key: %w", err)
	}
	return key, nil
}

// Create seals value and persists a new credential, returning its public
// metadata.
func (v *Vault) Create(name, purpose, value string) (*Credential, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("credential name is required")
	}
	if value == "" {
		return nil, fmt.Errorf("credential value is required")
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	file, err := v.load()
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.New(v.key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := aead.Seal(nil, nonce, []byte(value), nil)

	entry := sealedEntry{
		Credential: Credential{
			ID:        uuid.NewString(),
			Name:      strings.TrimSpace(name),
			Purpose:   strings.TrimSpace(purpose),
			CreatedAt: time.Now().UTC(),
		},
		Nonce:  base64.StdEncoding.EncodeToString(nonce),
		Sealed: base64.StdEncoding.EncodeToString(sealed),
	}
	file.Entries = append(file.Entries, entry)

	if err := v.save(file); err != nil {
		return nil, err
	}
	cred := entry.Credential
	return &cred, nil
}

// List returns the public metadata of every credential.
func (v *Vault) List() ([]Credential, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	file, err := v.load()
	if err != nil {
		return nil, err
	}
	creds := make([]Credential, 0, len(file.Entries))
	for _, e := range file.Entries {
		creds = append(creds, e.Credential)
	}
	return creds, nil
}

// Delete removes a credential by ID.
func (v *Vault) Delete(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	file, err := v.load()
	if err != nil {
		return err
	}

	kept := file.Entries[:0]
	found := false
	for _, e := range file.Entries {
		if e.ID == id {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	if !found {
		return fmt.Errorf("credential %s not found", id)
	}
	file.Entries = kept
	return v.save(file)
}

// TryResolve unseals the credential with the given ID. Returns ("",
// false) when the ID is empty or unknown so callers can fall back to a
// plaintext setting.
func (v *Vault) TryResolve(id string) (string, bool) {
	if id == "" {
		return "", false
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	file, err := v.load()
	if err != nil {
		return "", false
	}
	for _, e := range file.Entries {
		if e.ID != id {
			continue
		}
		value, err := v.unseal(e)
		if err != nil {
			return "", false
		}
		return value, true
	}
	return "", false
}

func (v *Vault) unseal(e sealedEntry) (string, error) {
	nonce, err := base64.StdEncoding.DecodeString(e.Nonce)
	if err != nil {
		return "", err
	}
	sealed, err := base64.StdEncoding.DecodeString(e.Sealed)
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.New(v.key)
	if err != nil {
		return "", err
	}
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("failed to unseal credential %s: %w", e.ID, err)
	}
	return string(plain), nil
}

func (v *Vault) load() (*vaultFile, error) {
	data, err := os.ReadFile(v.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &vaultFile{}, nil
		}
		return nil, fmt.Errorf("failed to read vault: %w", err)
	}

	var file vaultFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse vault: %w", err)
	}
	return &file, nil
}

func (v *Vault) save(file *vaultFile) error {
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode vault: %w", err)
	}
	if err := os.WriteFile(v.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write vault: %w", err)
	}
	return nil
}

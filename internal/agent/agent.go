// Package agent manages remote-agent enrollment tokens and validates
// signed observation submissions.
package agent

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Requests signed more than this far from server time are rejected.
const maxClockSkew = 300 * time.Second

// Token is one enrolled agent credential. The secret only leaves the
// server once, in the create response.
type Token struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Secret    string    `json:"secret"`
	CreatedAt time.Time `json:"createdAt"`
}

// TokenInfo is the listing view of a token, with the secret withheld.
type TokenInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// TokenStore persists agent tokens to a JSON file.
type TokenStore struct {
	mu     sync.RWMutex
	path   string
	tokens []Token

	// now is swapped out in tests.
	now func() time.Time
}

// NewTokenStore loads tokens from path, starting empty when the file
// does not exist yet.
func NewTokenStore(path string) (*TokenStore, error) {
	s := &TokenStore{path: path, now: time.Now}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read agent tokens: %w", err)
	}
	var file struct {
		Tokens []Token `json:"tokens"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse agent tokens: %w", err)
	}
	s.tokens = file.Tokens
	return s, nil
}

// Create mints a new token with a random 24-byte hex secret.
func (s *TokenStore) Create(name string) (Token, error) {
	if name == "" {
		return Token{}, fmt.Errorf("token name is required")
	}

	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return Token{}, fmt.Errorf("failed to generate token secret: %w", err)
	}

	token := Token{
		ID:        uuid.NewString(),
		Name:      name,
		Secret:    hex.EncodeToString(raw),
		CreatedAt: s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = append(s.tokens, token)
	if err := s.save(); err != nil {
		s.tokens = s.tokens[:len(s.tokens)-1]
		return Token{}, err
	}
	return token, nil
}

// List returns all tokens without their secrets.
func (s *TokenStore) List() []TokenInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TokenInfo, 0, len(s.tokens))
	for _, t := range s.tokens {
		out = append(out, TokenInfo{ID: t.ID, Name: t.Name, CreatedAt: t.CreatedAt})
	}
	return out
}

// Delete revokes a token by ID.
func (s *TokenStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, t := range s.tokens {
		if t.ID == id {
			s.tokens = append(s.tokens[:i], s.tokens[i+1:]...)
			return s.save()
		}
	}
	return fmt.Errorf("agent token %q not found", id)
}

// Validate checks a signed request. The signature covers
// method, path, unix timestamp, and raw body, newline separated, keyed
// with any enrolled secret. Timestamps outside the skew window fail
// before any signature work.
func (s *TokenStore) Validate(method, path, timestamp, signature string, body []byte) error {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp")
	}
	skew := s.now().UTC().Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > maxClockSkew {
		return fmt.Errorf("timestamp outside allowed window")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	payload := method + "\n" + path + "\n" + timestamp + "\n" + string(body)
	for _, t := range s.tokens {
		expected := Sign(t.Secret, payload)
		if hmac.Equal([]byte(expected), []byte(signature)) {
			return nil
		}
	}
	return fmt.Errorf("signature does not match any enrolled agent")
}

// Sign computes the lowercase hex HMAC-SHA256 of payload under secret.
// Agents use the same construction on their side.
func Sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignRequest builds the signature for a request the way Validate
// expects it.
func SignRequest(secret, method, path, timestamp string, body []byte) string {
	return Sign(secret, method+"\n"+path+"\n"+timestamp+"\n"+string(body))
}

func (s *TokenStore) save() error {
	data, err := json.MarshalIndent(struct {
		Tokens []Token `json:"tokens"`
	}{Tokens: s.tokens}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode agent tokens: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write agent tokens: %w", err)
	}
	return nil
}

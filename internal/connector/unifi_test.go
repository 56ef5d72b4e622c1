package connector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeUniFiController serves the classic-controller login endpoint and a
// client list, tracking which login endpoints were hit.
func fakeUniFiController(t *testing.T, classicOnly bool) (*httptest.Server, *[]string) {
	t.Helper()
	var logins []string

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		logins = append(logins, r.URL.Path)
		if classicOnly {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		logins = append(logins, r.URL.Path)
		var creds map[string]string
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds["username"] == "" || creds["password"] == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/proxy/network/api/s/default/stat/sta", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": [
			{"mac": "aa:bb:cc:dd:ee:10", "ip": "10.0.0.30", "hostname": "host-a", "name": "Living Room TV", "oui": "Samsung"},
			{"mac": "aa:bb:cc:dd:ee:11", "ip": "10.0.0.31", "hostname": "host-b", "oui": "Apple"},
			{"oui": "Ghost"}
		]}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &logins
}

func newTestUniFi(t *testing.T, sink Sink, resolver Resolver) *UniFiConnector {
	t.Helper()
	c := NewUniFiConnector(sink, resolver, zerolog.Nop())
	c.newClient = func(bool) (*http.Client, error) {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		return &http.Client{Jar: jar, Timeout: 2 * time.Second}, nil
	}
	return c
}

func TestUniFiFetchesClients(t *testing.T) {
	server, _ := fakeUniFiController(t, false)
	sink := &captureSink{}
	c := newTestUniFi(t, sink, nil)

	settings := DefaultSettings()
	settings.UniFi = UniFiSettings{BaseURL: server.URL, Username: "admin", Password: "secret", Site: "default"}
	assertNoError(t, c.Run(context.Background(), settings))

	obs := sink.observations()
	if len(obs) != 2 {
		t.Fatalf("station without ip and mac should be skipped, got %d", len(obs))
	}
	first := obs[0]
	if first.Hostname != "Living Room TV" {
		t.Fatalf("name should win over hostname: %q", first.Hostname)
	}
	if first.Vendor != "Samsung" || first.TypeHint != "client" || first.Source != KeyUniFi {
		t.Fatalf("unexpected observation: %+v", first)
	}
	if obs[1].Hostname != "host-b" {
		t.Fatalf("hostname fallback not applied: %q", obs[1].Hostname)
	}
}

func TestUniFiFallsBackToClassicLogin(t *testing.T) {
	server, logins := fakeUniFiController(t, true)
	sink := &captureSink{}
	c := newTestUniFi(t, sink, nil)

	settings := DefaultSettings()
	settings.UniFi = UniFiSettings{BaseURL: server.URL, Username: "admin", Password: "secret", Site: "default"}
	assertNoError(t, c.Run(context.Background(), settings))

	if len(*logins) != 2 || (*logins)[0] != "/api/auth/login" || (*logins)[1] != "/api/login" {
		t.Fatalf("expected fallback login sequence, got %v", *logins)
	}
}

func TestUniFiResolvesVaultPassword(t *testing.T) {
	server, _ := fakeUniFiController(t, false)
	sink := &captureSink{}
	c := newTestUniFi(t, sink, staticResolver{"cred-unifi": "vault-pass"})

	settings := DefaultSettings()
	settings.UniFi = UniFiSettings{
		BaseURL:              server.URL,
		Username:             "admin",
		PasswordCredentialID: "cred-unifi",
		Site:                 "default",
	}
	assertNoError(t, c.Run(context.Background(), settings))
}

func TestUniFiRequiresConfiguration(t *testing.T) {
	sink := &captureSink{}
	c := newTestUniFi(t, sink, nil)

	assertNoError(t, c.Run(context.Background(), DefaultSettings()))
	if len(sink.observations()) != 0 {
		t.Fatal("unconfigured connector should be a no-op")
	}

	settings := DefaultSettings()
	settings.UniFi = UniFiSettings{BaseURL: "https://unifi.local", Username: "admin"}
	if err := c.Run(context.Background(), settings); err == nil {
		t.Fatal("expected error when no password is configured")
	}
}

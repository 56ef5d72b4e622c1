package connector

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultSettingsEnablesOnlyUPnP(t *testing.T) {
	settings := DefaultSettings()

	if !settings.IsEnabled(KeyUPnPIGD) {
		t.Fatal("upnp-igd should be enabled by default")
	}
	for _, key := range []string{KeySNMP, KeyDHCPHTTP, KeyUniFi, KeyTPLink, KeyNetgear, KeyOrbi, KeyOmada, KeyAsus} {
		if settings.IsEnabled(key) {
			t.Fatalf("%s should be disabled by default", key)
		}
	}
	if settings.IsEnabled("not-a-connector") {
		t.Fatal("unknown keys should never report enabled")
	}
}

func TestUpdateNormalizesSNMPSettings(t *testing.T) {
	store := newSettingsFixture(t)

	updated, err := store.Update(Settings{
		SNMP: SNMPSettings{
			Hosts:          []string{"192.168.1.1", " 192.168.1.1 ", "ROUTER.local", "router.LOCAL", ""},
			TimeoutSeconds: 99,
		},
	})
	assertNoError(t, err)

	if got := updated.SNMP.Hosts; len(got) != 2 || got[0] != "192.168.1.1" || got[1] != "ROUTER.local" {
		t.Fatalf("hosts not deduplicated: %v", got)
	}
	if updated.SNMP.TimeoutSeconds != 15 {
		t.Fatalf("timeout not clamped: %d", updated.SNMP.TimeoutSeconds)
	}
	if updated.SNMP.Port != 161 {
		t.Fatalf("port not defaulted: %d", updated.SNMP.Port)
	}
	if updated.SNMP.Community != "public" || updated.SNMP.SnmpWalkPath != "snmpwalk" {
		t.Fatalf("defaults not applied: %+v", updated.SNMP)
	}
}

func TestUpdateNormalizesUniFiAndLeaseSettings(t *testing.T) {
	store := newSettingsFixture(t)

	updated, err := store.Update(Settings{
		UniFi: UniFiSettings{BaseURL: "https://unifi.local///", Username: " admin "},
		TPLink: LeaseHTTPSettings{
			URL:        "http://router/leases",
			Format:     "XML",
			IPColumn:   99,
			MACColumn:  -1,
			HostColumn: 3,
		},
	})
	assertNoError(t, err)

	if updated.UniFi.BaseURL != "https://unifi.local" {
		t.Fatalf("base url not trimmed: %q", updated.UniFi.BaseURL)
	}
	if updated.UniFi.Site != "default" {
		t.Fatalf("site not defaulted: %q", updated.UniFi.Site)
	}
	if updated.UniFi.Username != "admin" {
		t.Fatalf("username not trimmed: %q", updated.UniFi.Username)
	}

	tplink := updated.TPLink
	if tplink.Format != "json" {
		t.Fatalf("unknown format not defaulted: %q", tplink.Format)
	}
	if tplink.IPField != "ipAddress" || tplink.MACField != "macAddress" || tplink.HostField != "hostname" {
		t.Fatalf("field defaults not applied: %+v", tplink)
	}
	if tplink.CSVDelimiter != "," {
		t.Fatalf("delimiter not defaulted: %q", tplink.CSVDelimiter)
	}
	if tplink.IPColumn != 50 || tplink.MACColumn != 0 || tplink.HostColumn != 3 {
		t.Fatalf("columns not clamped: ip=%d mac=%d host=%d", tplink.IPColumn, tplink.MACColumn, tplink.HostColumn)
	}
}

func TestUpdateDefaultsAllZeroColumnsToStandardLayout(t *testing.T) {
	store := newSettingsFixture(t)

	updated, err := store.Update(Settings{
		Netgear: LeaseHTTPSettings{URL: "http://router/leases", Format: "csv"},
	})
	assertNoError(t, err)

	n := updated.Netgear
	if n.IPColumn != 0 || n.MACColumn != 1 || n.HostColumn != 2 {
		t.Fatalf("standard column layout not applied: ip=%d mac=%d host=%d", n.IPColumn, n.MACColumn, n.HostColumn)
	}
}

func TestUpdateIgnoresUnknownEnabledKeys(t *testing.T) {
	store := newSettingsFixture(t)

	updated, err := store.Update(Settings{
		Enabled: map[string]bool{
			"SNMP":     true,
			"made-up":  true,
			KeyUPnPIGD: false,
		},
	})
	assertNoError(t, err)

	if !updated.IsEnabled(KeySNMP) {
		t.Fatal("snmp should be enabled after update")
	}
	if updated.IsEnabled(KeyUPnPIGD) {
		t.Fatal("upnp-igd should be disabled after update")
	}
	if _, ok := updated.Enabled["made-up"]; ok {
		t.Fatal("unknown key should be dropped")
	}
}

func TestSettingsPersistAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "connectors.json")

	store := NewSettingsStore(path, zerolog.Nop())
	_, err := store.Update(Settings{
		SNMP: SNMPSettings{Hosts: []string{"10.0.0.1"}},
	})
	assertNoError(t, err)

	reopened := NewSettingsStore(path, zerolog.Nop())
	if got := reopened.Get().SNMP.Hosts; len(got) != 1 || got[0] != "10.0.0.1" {
		t.Fatalf("settings not persisted: %v", got)
	}
}

func TestSettingsKeepDefaultsOnMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "connectors.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	store := NewSettingsStore(path, zerolog.Nop())
	if got := store.Get(); !reflect.DeepEqual(got, DefaultSettings()) {
		t.Fatalf("malformed file should keep defaults, got %+v", got)
	}
}

func newSettingsFixture(t *testing.T) *SettingsStore {
	t.Helper()
	return NewSettingsStore(filepath.Join(t.TempDir(), "connectors.json"), zerolog.Nop())
}

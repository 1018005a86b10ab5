package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"badc0de.net/pkg/gamenet/ttesting"
)

func TestLoadMissingGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), FileName))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ttesting.AssertEqualString(t, "host", cfg.Host, "127.0.0.1")
	ttesting.AssertEqualInt(t, "port", cfg.Port, 7171)
	if cfg.HeartbeatInterval != 30*time.Second {
		t.Errorf("heartbeat interval %v", cfg.HeartbeatInterval)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	data := "host: game.example\ntls: true\naccount: alice\nheartbeat_interval: 5s\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ttesting.AssertEqualString(t, "host", cfg.Host, "game.example")
	ttesting.AssertEqualInt(t, "port kept default", cfg.Port, 7171)
	ttesting.AssertEqualString(t, "account", cfg.Account, "alice")
	if !cfg.TLS || cfg.HeartbeatInterval != 5*time.Second {
		t.Errorf("tls=%v heartbeat=%v", cfg.TLS, cfg.HeartbeatInterval)
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	os.WriteFile(path, []byte("port: [1, 2"), 0o600)
	if _, err := Load(path); err == nil {
		t.Errorf("bad yaml loaded")
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", FileName)
	cfg := Default()
	cfg.Account = "bob"
	cfg.ReconnectCode = "r-1"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	st, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if st.Mode().Perm() != 0o600 {
		t.Errorf("permissions %v; want 0600", st.Mode().Perm())
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ttesting.AssertEqualString(t, "reconnect code", got.ReconnectCode, "r-1")
	if got.HandshakeTimeout != cfg.HandshakeTimeout {
		t.Errorf("handshake timeout %v; want %v", got.HandshakeTimeout, cfg.HandshakeTimeout)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	ttesting.AssertEqualInt(t, "no temporary files left", len(entries), 1)
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"reconnect only", func(c *Config) { c.Account = ""; c.ReconnectCode = "x" }, true},
		{"no host", func(c *Config) { c.Host = "" }, false},
		{"port zero", func(c *Config) { c.Port = 0 }, false},
		{"port too big", func(c *Config) { c.Port = 70000 }, false},
		{"no credentials", func(c *Config) { c.Account = "" }, false},
		{"ca without tls", func(c *Config) { c.CAFile = "ca.pem" }, false},
		{"negative heartbeat", func(c *Config) { c.HeartbeatInterval = -1 }, false},
	} {
		cfg := Default()
		cfg.Account = "alice"
		tc.mutate(cfg)
		if err := cfg.Validate(); (err == nil) != tc.ok {
			t.Errorf("%s: Validate() = %v; want ok=%v", tc.name, err, tc.ok)
		}
	}
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	cfg := Default()
	s := NewFileStore(path, cfg)
	ttesting.AssertEqualString(t, "empty at first", s.ReconnectCode(), "")

	if err := s.SetReconnectCode("code-7"); err != nil {
		t.Fatalf("SetReconnectCode: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	ttesting.AssertEqualString(t, "persisted", got.ReconnectCode, "code-7")
	ttesting.AssertEqualString(t, "in memory", s.ReconnectCode(), "code-7")

	s.SetReconnectCode("")
	got, _ = Load(path)
	ttesting.AssertEqualString(t, "cleared", got.ReconnectCode, "")
}

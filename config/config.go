// Package config holds the client's persisted configuration, including the
// reconnect code the server hands out.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// FileName is the name the configuration file is looked up under.
const FileName = "gamenet.yaml"

// Config is the client configuration, as stored in YAML.
type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	TLS bool `yaml:"tls"`
	// CAFile is the PEM trust store the server certificate is checked
	// against. Empty means the system roots.
	CAFile     string `yaml:"ca_file,omitempty"`
	ServerName string `yaml:"server_name,omitempty"`

	Account       string `yaml:"account"`
	Password      string `yaml:"password"`
	ClientVersion uint16 `yaml:"client_version"`

	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	DrainPlaintext    bool          `yaml:"drain_plaintext,omitempty"`

	// ReconnectCode is written back whenever the server issues a new one.
	ReconnectCode string `yaml:"reconnect_code,omitempty"`
}

// Default returns the configuration used for missing values.
func Default() *Config {
	return &Config{
		Host:              "127.0.0.1",
		Port:              7171,
		ClientVersion:     1,
		HeartbeatInterval: 30 * time.Second,
		HandshakeTimeout:  10 * time.Second,
	}
}

// Load reads the configuration at path on top of the defaults. A missing
// file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			glog.Infof("config %s does not exist; using defaults", path)
			return cfg, nil
		}
		return nil, errors.Wrap(err, "reading config")
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}
	return cfg, nil
}

// Save writes cfg to path. The file is replaced atomically, so a crash never
// leaves a half-written configuration behind.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "encoding config")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "creating config directory")
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(err, "creating temporary config")
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return errors.Wrap(err, "writing temporary config")
	}
	// The password lives here.
	if err := f.Chmod(0o600); err != nil {
		f.Close()
		return errors.Wrap(err, "setting config permissions")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "closing temporary config")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, "replacing config")
	}
	glog.V(1).Infof("saved config to %s", path)
	return nil
}

// Validate reports the first problem that would make connecting impossible.
func (c *Config) Validate() error {
	switch {
	case c.Host == "":
		return errors.New("config: host is empty")
	case c.Port <= 0 || c.Port > 0xFFFF:
		return errors.Errorf("config: port %d out of range", c.Port)
	case c.Account == "" && c.ReconnectCode == "":
		return errors.New("config: neither account nor reconnect code is set")
	case c.HeartbeatInterval < 0:
		return errors.Errorf("config: negative heartbeat interval %v", c.HeartbeatInterval)
	case c.HandshakeTimeout < 0:
		return errors.Errorf("config: negative handshake timeout %v", c.HandshakeTimeout)
	case !c.TLS && (c.CAFile != "" || c.ServerName != ""):
		return errors.New("config: ca_file and server_name need tls")
	}
	return nil
}

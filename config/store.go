package config

import (
	"sync"

	"github.com/golang/glog"
)

// FileStore keeps the reconnect code in the configuration file it was
// loaded from.
type FileStore struct {
	mu   sync.Mutex
	path string
	cfg  *Config
}

// NewFileStore wraps a loaded configuration. cfg is updated in place.
func NewFileStore(path string, cfg *Config) *FileStore {
	return &FileStore{path: path, cfg: cfg}
}

func (s *FileStore) ReconnectCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.ReconnectCode
}

// SetReconnectCode records code and saves the configuration. An empty code
// forgets the stored one.
func (s *FileStore) SetReconnectCode(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.ReconnectCode == code {
		return nil
	}
	prev := s.cfg.ReconnectCode
	s.cfg.ReconnectCode = code
	if err := Save(s.path, s.cfg); err != nil {
		s.cfg.ReconnectCode = prev
		return err
	}
	glog.V(1).Infof("reconnect code updated in %s", s.path)
	return nil
}

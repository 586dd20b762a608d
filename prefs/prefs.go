package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/xxxsen/davconnector/utils"
)

// Keys of the client side state remembered between runs.
const (
	KeyLatestURL         = "webdav.latestUrl"
	KeyLatestRootURL     = "webdav.latestRootUrl"
	KeyLatestEnforcedURL = "webdav.latestEnforcedURL"
	KeyUser              = "webdav.user"
)

// AllKeys lists every key owned by the connector.
var AllKeys = []string{KeyLatestURL, KeyLatestRootURL, KeyLatestEnforcedURL, KeyUser}

type IStore interface {
	Get(key string) (string, bool)
	Set(key string, value string) error
	Remove(keys ...string) error
}

type memStore struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewMemStore returns a store that lives as long as the process.
func NewMemStore() IStore {
	return &memStore{m: make(map[string]string)}
}

func (s *memStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok
}

func (s *memStore) Set(key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}

func (s *memStore) Remove(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.m, k)
	}
	return nil
}

type fileStore struct {
	mu   sync.Mutex
	file string
	m    map[string]string
}

// NewFileStore opens a json backed key-value file. A missing file is an empty store.
func NewFileStore(file string) (IStore, error) {
	s := &fileStore{file: file, m: make(map[string]string)}
	raw, err := os.ReadFile(file)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file failed, file:%s, err:%w", file, err)
	}
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s.m); err != nil {
		return nil, fmt.Errorf("decode state file failed, file:%s, err:%w", file, err)
	}
	return s, nil
}

func (s *fileStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok
}

func (s *fileStore) Set(key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.m[key]; ok && old == value {
		return nil
	}
	s.m[key] = value
	return s.flush()
}

func (s *fileStore) Remove(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.m, k)
	}
	return s.flush()
}

func (s *fileStore) flush() error {
	raw, err := json.MarshalIndent(s.m, "", "  ")
	if err != nil {
		return err
	}
	return utils.SafeSaveBytesToFile(s.file, raw, 0600)
}

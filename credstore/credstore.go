package credstore

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	explru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/davconnector/cacheapi"
	"github.com/xxxsen/davconnector/cacheapi/cachewrap"
	"go.uber.org/zap"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	defaultMaxSessions = 10000
	defaultSessionTTL  = 12 * time.Hour
	nonceSize          = 24
)

var errOpenSealed = errors.New("open sealed password failed")

type Credential struct {
	Username string
	Password string
}

type ICredentialStore interface {
	Put(ctx context.Context, sessionID string, serverID string, c *Credential) error
	PutIfAbsent(ctx context.Context, sessionID string, serverID string, c *Credential) (bool, error)
	Get(ctx context.Context, sessionID string, serverID string) (*Credential, bool, error)
	Invalidate(ctx context.Context, sessionID string) error
}

type sealedCredential struct {
	username string
	sealed   []byte
}

type sessionEntry struct {
	mu    sync.Mutex
	creds map[uint64]*sealedCredential
}

type config struct {
	maxSessions int
	ttl         time.Duration
}

type Option func(c *config)

func WithMaxSessions(n int) Option {
	return func(c *config) {
		c.maxSessions = n
	}
}

func WithSessionTTL(ttl time.Duration) Option {
	return func(c *config) {
		c.ttl = ttl
	}
}

type memCredentialStore struct {
	c     *config
	key   [32]byte
	mu    sync.Mutex
	cache cacheapi.ICache[string, *sessionEntry]
}

// New creates an in-memory credential store. Passwords are sealed with a key generated at
// startup, so they never survive a restart.
func New(opts ...Option) (ICredentialStore, error) {
	c := &config{
		maxSessions: defaultMaxSessions,
		ttl:         defaultSessionTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	s := &memCredentialStore{c: c}
	if _, err := io.ReadFull(rand.Reader, s.key[:]); err != nil {
		return nil, fmt.Errorf("generate seal key failed, err:%w", err)
	}
	s.cache = cachewrap.WrapExpirableLruCache(explru.NewLRU[string, *sessionEntry](c.maxSessions, nil, c.ttl))
	return s, nil
}

func credentialKey(serverID string) uint64 {
	return xxhash.Sum64String("webdav.creds." + serverID)
}

func (s *memCredentialStore) seal(password string) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, err
	}
	return secretbox.Seal(nonce[:], []byte(password), &nonce, &s.key), nil
}

func (s *memCredentialStore) open(sealed []byte) (string, error) {
	if len(sealed) < nonceSize {
		return "", errOpenSealed
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	raw, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", errOpenSealed
	}
	return string(raw), nil
}

func (s *memCredentialStore) entry(ctx context.Context, sessionID string, create bool) (*sessionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ent, err := s.cache.Get(ctx, sessionID)
	if err == nil {
		return ent, nil
	}
	if !errors.Is(err, cacheapi.ErrCacheKeyNotExist) || !create {
		return nil, err
	}
	ent = &sessionEntry{creds: make(map[uint64]*sealedCredential, 1)}
	if err := s.cache.Set(ctx, sessionID, ent); err != nil {
		return nil, err
	}
	return ent, nil
}

func (s *memCredentialStore) put(ctx context.Context, sessionID string, serverID string, c *Credential, onlyAbsent bool) (bool, error) {
	ent, err := s.entry(ctx, sessionID, true)
	if err != nil {
		return false, err
	}
	sealed, err := s.seal(c.Password)
	if err != nil {
		return false, fmt.Errorf("seal password failed, err:%w", err)
	}
	ent.mu.Lock()
	defer ent.mu.Unlock()
	k := credentialKey(serverID)
	if _, ok := ent.creds[k]; ok && onlyAbsent {
		return false, nil
	}
	ent.creds[k] = &sealedCredential{username: c.Username, sealed: sealed}
	logutil.GetLogger(ctx).Debug("credentials stored", zap.String("server", serverID), zap.String("user", c.Username))
	return true, nil
}

func (s *memCredentialStore) Put(ctx context.Context, sessionID string, serverID string, c *Credential) error {
	_, err := s.put(ctx, sessionID, serverID, c, false)
	return err
}

func (s *memCredentialStore) PutIfAbsent(ctx context.Context, sessionID string, serverID string, c *Credential) (bool, error) {
	return s.put(ctx, sessionID, serverID, c, true)
}

func (s *memCredentialStore) Get(ctx context.Context, sessionID string, serverID string) (*Credential, bool, error) {
	ent, err := s.entry(ctx, sessionID, false)
	if errors.Is(err, cacheapi.ErrCacheKeyNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	ent.mu.Lock()
	sc, ok := ent.creds[credentialKey(serverID)]
	ent.mu.Unlock()
	if !ok {
		return nil, false, nil
	}
	passwd, err := s.open(sc.sealed)
	if err != nil {
		return nil, false, err
	}
	return &Credential{Username: sc.username, Password: passwd}, true, nil
}

func (s *memCredentialStore) Invalidate(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Del(ctx, sessionID)
}

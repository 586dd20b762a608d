package document

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/xxxsen/common/idgen"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/retry"
	"github.com/xxxsen/davconnector/credstore"
	"github.com/xxxsen/davconnector/davclient"
	"github.com/xxxsen/davconnector/davurl"
	"go.uber.org/zap"
)

const (
	defaultLockTimeout   = 10 * time.Minute
	defaultLockRetry     = 3
	defaultLockRetryWait = time.Second
	defaultMaxDocSize    = 16 * 1024 * 1024
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrReadOnly         = errors.New("document is locked by another user")
	ErrDocumentTooLarge = errors.New("document too large")
	ErrNotWebdavURL     = errors.New("not a webdav url")
)

type Document struct {
	ID        string
	SessionID string
	URL       string
	ServerID  string
	Content   []byte
	LockToken string
	LockedAt  time.Time
	ReadOnly  bool
	Mtime     time.Time
}

type IManager interface {
	Open(ctx context.Context, sessionID string, u string, userName string) (*Document, error)
	Get(ctx context.Context, sessionID string, id string) (*Document, error)
	Sync(ctx context.Context, sessionID string, id string, content []byte) error
	Save(ctx context.Context, sessionID string, id string) error
	Close(ctx context.Context, sessionID string, id string) error
}

type config struct {
	lockEnabled bool
	lockTimeout time.Duration
	maxDocSize  int
	idgen       func() string
}

type Option func(c *config)

func WithLockEnabled(v bool) Option {
	return func(c *config) {
		c.lockEnabled = v
	}
}

func WithLockTimeout(t time.Duration) Option {
	return func(c *config) {
		c.lockTimeout = t
	}
}

func WithMaxDocSize(sz int) Option {
	return func(c *config) {
		c.maxDocSize = sz
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(c *config) {
		c.idgen = fn
	}
}

type defaultManager struct {
	c     *config
	dav   davclient.IClient
	creds credstore.ICredentialStore

	mu   sync.Mutex
	docs map[string]*Document
}

func NewManager(dav davclient.IClient, creds credstore.ICredentialStore, opts ...Option) IManager {
	c := &config{
		lockEnabled: true,
		lockTimeout: defaultLockTimeout,
		maxDocSize:  defaultMaxDocSize,
		idgen: func() string {
			return strconv.FormatUint(idgen.NextId(), 10)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return &defaultManager{
		c:     c,
		dav:   dav,
		creds: creds,
		docs:  make(map[string]*Document),
	}
}

func (m *defaultManager) credential(ctx context.Context, sessionID string, serverID string) (*credstore.Credential, error) {
	cred, ok, err := m.creds.Get(ctx, sessionID, serverID)
	if err != nil {
		return nil, fmt.Errorf("read credentials failed, err:%w", err)
	}
	if !ok {
		return nil, nil
	}
	return cred, nil
}

func (m *defaultManager) Open(ctx context.Context, sessionID string, u string, userName string) (*Document, error) {
	if !davurl.IsWebdavURL(u) {
		return nil, fmt.Errorf("%w, url:%s", ErrNotWebdavURL, u)
	}
	serverID, err := davurl.ServerID(u)
	if err != nil {
		return nil, err
	}
	if len(userName) > 0 {
		//identify the lock owner even when the server does not ask for authentication
		if _, err := m.creds.PutIfAbsent(ctx, sessionID, serverID, &credstore.Credential{Username: userName}); err != nil {
			return nil, err
		}
	}
	cred, err := m.credential(ctx, sessionID, serverID)
	if err != nil {
		return nil, err
	}
	data, err := m.dav.Get(ctx, u, cred)
	if err != nil {
		return nil, fmt.Errorf("read document failed, url:%s, err:%w", u, err)
	}
	doc := &Document{
		ID:        m.c.idgen(),
		SessionID: sessionID,
		URL:       u,
		ServerID:  serverID,
		Content:   data,
		Mtime:     time.Now(),
	}
	if m.c.lockEnabled {
		if err := m.lock(ctx, doc, cred); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	m.docs[doc.ID] = doc
	m.mu.Unlock()
	logutil.GetLogger(ctx).Info("document opened", zap.String("id", doc.ID), zap.String("url", u),
		zap.String("size", humanize.IBytes(uint64(len(data)))), zap.Bool("read_only", doc.ReadOnly))
	return doc, nil
}

func (m *defaultManager) lock(ctx context.Context, doc *Document, cred *credstore.Credential) error {
	owner := lockOwner(cred)
	var finalErr error
	err := retry.RetryDo(ctx, defaultLockRetry, defaultLockRetryWait, func(ctx context.Context) error {
		token, err := m.dav.Lock(ctx, doc.URL, cred, owner, m.c.lockTimeout)
		if err == nil {
			doc.LockToken = token
			finalErr = nil
			return nil
		}
		if errors.Is(err, davclient.ErrUnauthorized) || davclient.IsStatus(err, http.StatusLocked) {
			finalErr = err
			return nil
		}
		logutil.GetLogger(ctx).Error("lock document failed, wait retry", zap.String("url", doc.URL), zap.Error(err))
		return err
	})
	if err != nil {
		return fmt.Errorf("lock document failed, url:%s, err:%w", doc.URL, err)
	}
	if davclient.IsStatus(finalErr, http.StatusLocked) {
		doc.ReadOnly = true
		return nil
	}
	if finalErr != nil {
		return fmt.Errorf("lock document failed, url:%s, err:%w", doc.URL, finalErr)
	}
	return nil
}

func lockOwner(cred *credstore.Credential) string {
	if cred != nil && len(cred.Username) > 0 {
		return cred.Username
	}
	return "Anonymous"
}

func (m *defaultManager) find(sessionID string, id string) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok || doc.SessionID != sessionID {
		return nil, fmt.Errorf("%w, id:%s", ErrDocumentNotFound, id)
	}
	return doc, nil
}

// Get returns a snapshot of the document, the content is shared and must not be modified.
func (m *defaultManager) Get(ctx context.Context, sessionID string, id string) (*Document, error) {
	doc, err := m.find(sessionID, id)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *doc
	return &cp, nil
}

// Sync replaces the server side copy with the content edited on the client.
func (m *defaultManager) Sync(ctx context.Context, sessionID string, id string, content []byte) error {
	if len(content) > m.c.maxDocSize {
		return fmt.Errorf("%w, size:%d", ErrDocumentTooLarge, len(content))
	}
	doc, err := m.find(sessionID, id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	doc.Content = append([]byte(nil), content...)
	doc.Mtime = time.Now()
	m.mu.Unlock()
	return nil
}

func (m *defaultManager) Save(ctx context.Context, sessionID string, id string) error {
	doc, err := m.find(sessionID, id)
	if err != nil {
		return err
	}
	cred, err := m.credential(ctx, sessionID, doc.ServerID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	data := doc.Content
	token := doc.LockToken
	lockedAt := doc.LockedAt
	readOnly := doc.ReadOnly
	m.mu.Unlock()
	if readOnly {
		return ErrReadOnly
	}
	if len(token) > 0 && time.Since(lockedAt) >= m.c.lockTimeout/2 {
		if token, err = m.renewLock(ctx, doc, cred, token); err != nil {
			return err
		}
	}
	start := time.Now()
	err = m.dav.Put(ctx, doc.URL, cred, data, contentType(doc.URL, data), token)
	if len(token) > 0 && davclient.IsStatus(err, http.StatusPreconditionFailed) {
		logutil.GetLogger(ctx).Warn("document lock lost, lock again", zap.String("id", id), zap.String("url", doc.URL))
		if token, err = m.relock(ctx, doc, cred); err != nil {
			return err
		}
		err = m.dav.Put(ctx, doc.URL, cred, data, contentType(doc.URL, data), token)
	}
	if err != nil {
		return fmt.Errorf("save document failed, url:%s, err:%w", doc.URL, err)
	}
	logutil.GetLogger(ctx).Info("document saved", zap.String("id", id), zap.String("url", doc.URL),
		zap.String("size", humanize.IBytes(uint64(len(data)))), zap.Duration("cost", time.Since(start)))
	return nil
}

// renewLock refreshes the lock before it runs out, a lock already gone is taken again.
func (m *defaultManager) renewLock(ctx context.Context, doc *Document, cred *credstore.Credential, token string) (string, error) {
	err := m.dav.RefreshLock(ctx, doc.URL, cred, token, m.c.lockTimeout)
	if err == nil {
		m.mu.Lock()
		doc.LockedAt = time.Now()
		m.mu.Unlock()
		return token, nil
	}
	if !davclient.IsStatus(err, http.StatusPreconditionFailed) {
		return "", fmt.Errorf("refresh document lock failed, url:%s, err:%w", doc.URL, err)
	}
	logutil.GetLogger(ctx).Warn("document lock expired, lock again", zap.String("id", doc.ID), zap.String("url", doc.URL))
	return m.relock(ctx, doc, cred)
}

// relock takes a new lock for a document whose lock was lost. Someone else holding the
// document turns it read only.
func (m *defaultManager) relock(ctx context.Context, doc *Document, cred *credstore.Credential) (string, error) {
	token, err := m.dav.Lock(ctx, doc.URL, cred, lockOwner(cred), m.c.lockTimeout)
	if davclient.IsStatus(err, http.StatusLocked) {
		m.mu.Lock()
		doc.ReadOnly = true
		doc.LockToken = ""
		m.mu.Unlock()
		return "", ErrReadOnly
	}
	if err != nil {
		return "", fmt.Errorf("lock document failed, url:%s, err:%w", doc.URL, err)
	}
	m.mu.Lock()
	doc.LockToken = token
	doc.LockedAt = time.Now()
	m.mu.Unlock()
	return token, nil
}

func (m *defaultManager) Close(ctx context.Context, sessionID string, id string) error {
	doc, err := m.find(sessionID, id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.docs, id)
	token := doc.LockToken
	m.mu.Unlock()
	if len(token) == 0 {
		return nil
	}
	cred, err := m.credential(ctx, sessionID, doc.ServerID)
	if err != nil {
		return err
	}
	if err := m.dav.Unlock(ctx, doc.URL, cred, token); err != nil {
		logutil.GetLogger(ctx).Error("unlock document failed", zap.String("url", doc.URL), zap.Error(err))
		return err
	}
	return nil
}

func contentType(name string, data []byte) string {
	if ct := mime.TypeByExtension(path.Ext(name)); len(ct) > 0 {
		return ct
	}
	return mimetype.Detect(data).String()
}

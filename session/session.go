// Package session keeps track of the webdav repository the user works with: the server root,
// the browse position and the login state.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/davconnector/davc/client"
	"github.com/xxxsen/davconnector/davurl"
	"github.com/xxxsen/davconnector/prefs"
	"github.com/xxxsen/davconnector/server/model"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	urlTypeFile      = "FILE"
	urlTypeFolder    = "FOLDER"
	urlTypeNonWebdav = "NON_WEBDAV"
	loginFlightKey   = "login"
)

type RepositoryRoot struct {
	RootURL    string
	CurrentURL string
}

// Credential only lives for the duration of a login submit.
type Credential struct {
	Username string
	Password string
}

type IPrompter interface {
	// PromptCredential asks the user for credentials of serverURL. lastErr is the failure of the
	// previous submit, if any. Returning ErrLoginCanceled aborts the login.
	PromptCredential(ctx context.Context, serverURL string, userName string, lastErr error) (*Credential, error)
}

type IRemote interface {
	Login(ctx context.Context, user string, passwd string, server string) error
	Logout(ctx context.Context) error
	URLInfo(ctx context.Context, u string) (*model.URLInfoResponse, error)
}

type config struct {
	enforced   []string
	builtinURL string
}

type Option func(c *config)

func WithEnforcedURLs(urls ...string) Option {
	return func(c *config) {
		c.enforced = append(c.enforced, urls...)
	}
}

// WithBuiltinServerURL sets the server proposed when nothing was used before.
func WithBuiltinServerURL(u string) Option {
	return func(c *config) {
		c.builtinURL = u
	}
}

type Manager struct {
	remote   IRemote
	store    prefs.IStore
	prompter IPrompter
	builtin  string

	loginGroup singleflight.Group

	mu          sync.Mutex
	enforced    []string
	enforcedURL string
	root        RepositoryRoot
}

func New(remote IRemote, store prefs.IStore, prompter IPrompter, opts ...Option) *Manager {
	c := &config{}
	for _, opt := range opts {
		opt(c)
	}
	m := &Manager{
		remote:   remote,
		store:    store,
		prompter: prompter,
	}
	if len(c.builtinURL) > 0 {
		m.builtin = davurl.ProcessURL(c.builtinURL)
	}
	for _, u := range c.enforced {
		m.AddEnforcedURL(u)
	}
	return m
}

// AddEnforcedURL registers a mandatory server root, duplicates are ignored.
func (m *Manager) AddEnforcedURL(u string) {
	u = strings.TrimSpace(u)
	if len(u) == 0 {
		return
	}
	u = davurl.ProcessURL(u)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.enforced {
		if e == u {
			return
		}
	}
	m.enforced = append(m.enforced, u)
}

func (m *Manager) EnforcedURLs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.enforced...)
}

// CanEditServerURL is false when a single server is enforced.
func (m *Manager) CanEditServerURL() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.enforced) != 1
}

func (m *Manager) Current() RepositoryRoot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.root
}

// UserName returns the user remembered from the last successful login.
func (m *Manager) UserName() string {
	v, _ := m.store.Get(prefs.KeyUser)
	return v
}

func (m *Manager) persist(ctx context.Context, kvs ...string) {
	for i := 0; i+1 < len(kvs); i += 2 {
		if err := m.store.Set(kvs[i], kvs[i+1]); err != nil {
			logutil.GetLogger(ctx).Error("save session state failed", zap.String("key", kvs[i]), zap.Error(err))
		}
	}
}

// ResolveURL asks the connector what rawURL points to and makes it the current location.
// An authentication request runs the login flow and then asks again.
func (m *Manager) ResolveURL(ctx context.Context, rawURL string) (*RepositoryRoot, error) {
	rawURL = strings.TrimSpace(rawURL)
	if !davurl.IsAcceptable(rawURL) {
		return nil, fmt.Errorf("%w, url:%s", ErrInvalidURL, rawURL)
	}
	u := davurl.ProcessURL(rawURL)
	for {
		info, err := m.remote.URLInfo(ctx, u)
		if errors.Is(err, client.ErrAuthRequired) {
			if err := m.Login(ctx, u); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w, url:%s, err:%w", ErrCannotOpen, u, err)
		}
		if info.Type == urlTypeNonWebdav {
			return nil, fmt.Errorf("%w, url:%s, not a webdav resource", ErrCannotOpen, u)
		}
		return m.applyURLInfo(ctx, u, info), nil
	}
}

func (m *Manager) applyURLInfo(ctx context.Context, u string, info *model.URLInfoResponse) *RepositoryRoot {
	if info.Type != urlTypeFile {
		u = davurl.FolderURL(u)
	}
	root := davurl.FolderURL(davurl.ParentFolderURL(u))
	if len(info.RootURL) > 0 {
		root = davurl.ProcessURL(info.RootURL)
	}
	m.persist(ctx, prefs.KeyLatestURL, davurl.ParentFolderURL(u), prefs.KeyLatestRootURL, root)
	r := RepositoryRoot{RootURL: root, CurrentURL: u}
	m.mu.Lock()
	m.root = r
	m.mu.Unlock()
	logutil.GetLogger(ctx).Debug("repository location resolved", zap.String("root", root), zap.String("url", u))
	return &r
}

// Login prompts for credentials of serverURL until the connector accepts them or the user
// cancels. Concurrent callers share the same prompt.
func (m *Manager) Login(ctx context.Context, serverURL string) error {
	serverURL = davurl.ProcessURL(serverURL)
	//the prompt outlives the caller that opened it, every caller waits on its own ctx
	ch := m.loginGroup.DoChan(loginFlightKey, func() (interface{}, error) {
		return nil, m.doLogin(context.WithoutCancel(ctx), serverURL)
	})
	select {
	case res := <-ch:
		if res.Shared {
			logutil.GetLogger(ctx).Debug("reuse pending login prompt", zap.String("server", serverURL))
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) doLogin(ctx context.Context, serverURL string) error {
	user := m.UserName()
	var lastErr error
	for {
		cred, err := m.prompter.PromptCredential(ctx, serverURL, user, lastErr)
		if err != nil {
			return err
		}
		user = strings.TrimSpace(cred.Username)
		err = m.remote.Login(ctx, user, cred.Password, serverURL)
		if err == nil {
			break
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		logutil.GetLogger(ctx).Error("submit credentials failed", zap.String("server", serverURL), zap.String("user", user), zap.Error(err))
		lastErr = err
	}
	m.persist(ctx, prefs.KeyUser, user)
	logutil.GetLogger(ctx).Info("login succ", zap.String("server", serverURL), zap.String("user", user))
	return nil
}

// Logout drops the credentials held by the connector and forgets every remembered location.
// The local state is cleared even when the connector call fails.
func (m *Manager) Logout(ctx context.Context) error {
	rpcErr := m.remote.Logout(ctx)
	if err := m.store.Remove(prefs.AllKeys...); err != nil {
		logutil.GetLogger(ctx).Error("clear session state failed", zap.Error(err))
	}
	m.mu.Lock()
	m.root = RepositoryRoot{}
	m.enforcedURL = ""
	m.mu.Unlock()
	if rpcErr != nil {
		return fmt.Errorf("logout failed, err:%w", rpcErr)
	}
	logutil.GetLogger(ctx).Info("logout succ")
	return nil
}

// InitialLocation returns where browsing starts. With several enforced servers and nothing
// remembered it returns a SelectionRequiredError and makes no network call.
func (m *Manager) InitialLocation(ctx context.Context) (*RepositoryRoot, error) {
	latest, _ := m.store.Get(prefs.KeyLatestURL)
	enforced := m.EnforcedURLs()
	if len(enforced) == 0 {
		root, _ := m.store.Get(prefs.KeyLatestRootURL)
		if len(latest) == 0 {
			latest = m.builtin
		}
		if len(root) == 0 {
			root = m.builtin
		}
		if len(latest) == 0 && len(root) == 0 {
			return nil, ErrNoRepository
		}
		if len(latest) == 0 {
			latest = root
		}
		r := RepositoryRoot{RootURL: root, CurrentURL: latest}
		m.mu.Lock()
		m.root = r
		m.mu.Unlock()
		return &r, nil
	}
	selected := ""
	for _, e := range enforced {
		if len(latest) > 0 && strings.HasPrefix(latest, e) {
			selected = e
			break
		}
	}
	if len(selected) == 0 && len(enforced) == 1 {
		selected = enforced[0]
		latest = selected
	}
	if len(selected) == 0 {
		pre, _ := m.store.Get(prefs.KeyLatestEnforcedURL)
		return nil, &SelectionRequiredError{Choices: enforced, Preselected: pre}
	}
	m.persist(ctx, prefs.KeyLatestRootURL, selected, prefs.KeyLatestURL, latest)
	r := RepositoryRoot{RootURL: selected, CurrentURL: latest}
	m.mu.Lock()
	m.enforcedURL = selected
	m.root = r
	m.mu.Unlock()
	return &r, nil
}

// OpenRepository handles a server url typed or chosen by the user. An enforced server is used
// as root directly, any other url is resolved through the connector.
func (m *Manager) OpenRepository(ctx context.Context, input string) (*RepositoryRoot, error) {
	input = strings.TrimSpace(input)
	if !davurl.IsAcceptable(input) {
		return nil, fmt.Errorf("%w, url:%s", ErrInvalidURL, input)
	}
	enforced := m.EnforcedURLs()
	if len(enforced) == 0 {
		return m.ResolveURL(ctx, input)
	}
	u := davurl.ProcessURL(input)
	found := false
	for _, e := range enforced {
		if e == u {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w, url:%s, not an enforced server", ErrInvalidURL, input)
	}
	m.mu.Lock()
	m.enforcedURL = u
	m.mu.Unlock()
	m.persist(ctx, prefs.KeyLatestEnforcedURL, u)
	return m.applyURLInfo(ctx, u, &model.URLInfoResponse{Type: urlTypeFolder, RootURL: u}), nil
}

// UseBuiltinServer browses the server advertised by a co-installed server plugin.
func (m *Manager) UseBuiltinServer(ctx context.Context) (*RepositoryRoot, error) {
	if len(m.builtin) == 0 {
		return nil, ErrNoRepository
	}
	return m.applyURLInfo(ctx, m.builtin, &model.URLInfoResponse{Type: urlTypeFolder, RootURL: m.builtin}), nil
}

// RestoreFromDocument recomputes the root when the opened document lives outside the
// remembered one.
func (m *Manager) RestoreFromDocument(ctx context.Context, docURL string) error {
	if !davurl.IsWebdavURL(docURL) {
		return nil
	}
	root, _ := m.store.Get(prefs.KeyLatestRootURL)
	if len(root) > 0 && strings.HasPrefix(docURL, root) {
		return nil
	}
	_, err := m.ResolveURL(ctx, docURL)
	return err
}

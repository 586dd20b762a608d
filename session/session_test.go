package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/davconnector/davc/client"
	"github.com/xxxsen/davconnector/prefs"
	"github.com/xxxsen/davconnector/server/model"
)

type fakeRemote struct {
	mu        sync.Mutex
	loggedIn  bool
	infoCalls int
	logouts   int
	logins    []string
	logoutErr error
}

func (f *fakeRemote) Login(ctx context.Context, user string, passwd string, server string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins = append(f.logins, user+"@"+server)
	if passwd != "secret" {
		return &client.StatusError{API: "login", Code: 500, Message: "bad password"}
	}
	f.loggedIn = true
	return nil
}

func (f *fakeRemote) Logout(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts++
	f.loggedIn = false
	return f.logoutErr
}

func (f *fakeRemote) URLInfo(ctx context.Context, u string) (*model.URLInfoResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infoCalls++
	if !f.loggedIn {
		return nil, &client.AuthRequiredError{URL: u}
	}
	switch {
	case strings.Contains(u, "broken"):
		return nil, &client.StatusError{API: "url-info", Code: 500}
	case strings.Contains(u, "plain"):
		return &model.URLInfoResponse{Type: urlTypeNonWebdav}, nil
	case strings.HasSuffix(u, ".xml"):
		return &model.URLInfoResponse{Type: urlTypeFile, RootURL: "http://dav/root/"}, nil
	}
	return &model.URLInfoResponse{Type: urlTypeFolder, RootURL: "http://dav/root/"}, nil
}

type fakePrompter struct {
	mu       sync.Mutex
	answers  []*Credential
	prompts  int
	users    []string
	lastErrs []error
	block    chan struct{}
}

func (p *fakePrompter) PromptCredential(ctx context.Context, serverURL string, userName string, lastErr error) (*Credential, error) {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts++
	p.users = append(p.users, userName)
	p.lastErrs = append(p.lastErrs, lastErr)
	if len(p.answers) == 0 {
		return nil, ErrLoginCanceled
	}
	c := p.answers[0]
	p.answers = p.answers[1:]
	return c, nil
}

func TestResolveURLLoginRetry(t *testing.T) {
	remote := &fakeRemote{}
	store := prefs.NewMemStore()
	prompter := &fakePrompter{answers: []*Credential{
		{Username: " alice ", Password: "wrong"},
		{Username: "alice", Password: "secret"},
	}}
	m := New(remote, store, prompter)
	ctx := context.Background()

	r, err := m.ResolveURL(ctx, "http://dav/root/docs")
	require.NoError(t, err)
	assert.Equal(t, "webdav-http://dav/root/", r.RootURL)
	assert.Equal(t, "webdav-http://dav/root/docs/", r.CurrentURL)
	assert.Equal(t, 2, prompter.prompts)
	assert.Nil(t, prompter.lastErrs[0])
	assert.Error(t, prompter.lastErrs[1])
	assert.Equal(t, "alice", prompter.users[1])
	assert.Equal(t, 2, remote.infoCalls)
	assert.Equal(t, []string{"alice@webdav-http://dav/root/docs", "alice@webdav-http://dav/root/docs"}, remote.logins)

	v, _ := store.Get(prefs.KeyUser)
	assert.Equal(t, "alice", v)
	v, _ = store.Get(prefs.KeyLatestURL)
	assert.Equal(t, "webdav-http://dav/root/docs/", v)
	v, _ = store.Get(prefs.KeyLatestRootURL)
	assert.Equal(t, "webdav-http://dav/root/", v)
	assert.Equal(t, *r, m.Current())
}

func TestResolveURLIdempotent(t *testing.T) {
	m := New(&fakeRemote{loggedIn: true}, prefs.NewMemStore(), &fakePrompter{})
	ctx := context.Background()
	first, err := m.ResolveURL(ctx, "http://dav/root/docs/a.xml")
	require.NoError(t, err)
	assert.Equal(t, "webdav-http://dav/root/docs/a.xml", first.CurrentURL)
	second, err := m.ResolveURL(ctx, first.CurrentURL)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	folder, err := m.ResolveURL(ctx, "webdav-http://dav/root/docs")
	require.NoError(t, err)
	again, err := m.ResolveURL(ctx, folder.CurrentURL)
	require.NoError(t, err)
	assert.Equal(t, folder, again)
}

func TestResolveURLErrors(t *testing.T) {
	remote := &fakeRemote{}
	m := New(remote, prefs.NewMemStore(), &fakePrompter{})
	ctx := context.Background()

	_, err := m.ResolveURL(ctx, "ftp://dav/root")
	assert.True(t, errors.Is(err, ErrInvalidURL))
	assert.Equal(t, 0, remote.infoCalls)

	_, err = m.ResolveURL(ctx, "http://dav/root/")
	assert.True(t, errors.Is(err, ErrLoginCanceled))

	remote.loggedIn = true
	_, err = m.ResolveURL(ctx, "http://dav/broken/")
	assert.True(t, errors.Is(err, ErrCannotOpen))
	var stErr *client.StatusError
	assert.True(t, errors.As(err, &stErr))

	_, err = m.ResolveURL(ctx, "http://dav/plain/")
	assert.True(t, errors.Is(err, ErrCannotOpen))
}

func TestLoginSinglePrompt(t *testing.T) {
	remote := &fakeRemote{}
	prompter := &fakePrompter{
		answers: []*Credential{{Username: "alice", Password: "secret"}},
		block:   make(chan struct{}),
	}
	m := New(remote, prefs.NewMemStore(), prompter)
	ctx := context.Background()

	var wg sync.WaitGroup
	var failed int32
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.Login(ctx, "http://dav/"); err != nil {
				atomic.AddInt32(&failed, 1)
			}
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(prompter.block)
	wg.Wait()
	assert.Equal(t, int32(0), atomic.LoadInt32(&failed))
	assert.Equal(t, 1, prompter.prompts)
}

func TestLoginPrefill(t *testing.T) {
	store := prefs.NewMemStore()
	require.NoError(t, store.Set(prefs.KeyUser, "bob"))
	prompter := &fakePrompter{answers: []*Credential{{Username: "bob", Password: "secret"}}}
	m := New(&fakeRemote{}, store, prompter)
	require.NoError(t, m.Login(context.Background(), "http://dav/"))
	assert.Equal(t, []string{"bob"}, prompter.users)
	assert.Equal(t, "bob", m.UserName())
}

func TestLogoutClearsState(t *testing.T) {
	remote := &fakeRemote{loggedIn: true}
	store := prefs.NewMemStore()
	m := New(remote, store, &fakePrompter{})
	ctx := context.Background()
	_, err := m.ResolveURL(ctx, "http://dav/root/docs/a.xml")
	require.NoError(t, err)
	require.NoError(t, store.Set(prefs.KeyUser, "alice"))
	require.NoError(t, store.Set(prefs.KeyLatestEnforcedURL, "webdav-http://dav/root/"))

	require.NoError(t, m.Logout(ctx))
	assert.Equal(t, 1, remote.logouts)
	for _, k := range prefs.AllKeys {
		_, ok := store.Get(k)
		assert.False(t, ok, k)
	}
	assert.Equal(t, RepositoryRoot{}, m.Current())
}

func TestLogoutClearsStateOnFailure(t *testing.T) {
	remote := &fakeRemote{loggedIn: true, logoutErr: &client.StatusError{API: "logout", Code: 500}}
	store := prefs.NewMemStore()
	m := New(remote, store, &fakePrompter{})
	ctx := context.Background()
	_, err := m.ResolveURL(ctx, "http://dav/root/docs/a.xml")
	require.NoError(t, err)
	require.NoError(t, store.Set(prefs.KeyUser, "alice"))

	err = m.Logout(ctx)
	var se *client.StatusError
	assert.True(t, errors.As(err, &se))
	for _, k := range prefs.AllKeys {
		_, ok := store.Get(k)
		assert.False(t, ok, k)
	}
	assert.Equal(t, RepositoryRoot{}, m.Current())
}

func TestLoginSharedPromptCallerCanceled(t *testing.T) {
	remote := &fakeRemote{}
	prompter := &fakePrompter{
		answers: []*Credential{{Username: "alice", Password: "secret"}},
		block:   make(chan struct{}),
	}
	m := New(remote, prefs.NewMemStore(), prompter)
	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	secondErr := make(chan error, 1)
	go func() {
		firstErr <- m.Login(firstCtx, "http://dav/")
	}()
	time.Sleep(50 * time.Millisecond)
	go func() {
		secondErr <- m.Login(context.Background(), "http://dav/")
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	assert.True(t, errors.Is(<-firstErr, context.Canceled))

	close(prompter.block)
	assert.NoError(t, <-secondErr)
	assert.Equal(t, 1, prompter.prompts)
	assert.Equal(t, "alice", m.UserName())
}

func TestEnforcedChoice(t *testing.T) {
	remote := &fakeRemote{}
	m := New(remote, prefs.NewMemStore(), &fakePrompter{},
		WithEnforcedURLs("http://a/dav/", "webdav-http://b/dav/", "http://a/dav/"))
	assert.Equal(t, []string{"webdav-http://a/dav/", "webdav-http://b/dav/"}, m.EnforcedURLs())
	assert.True(t, m.CanEditServerURL())

	_, err := m.InitialLocation(context.Background())
	assert.True(t, errors.Is(err, ErrSelectionRequired))
	var selErr *SelectionRequiredError
	require.True(t, errors.As(err, &selErr))
	assert.Equal(t, []string{"webdav-http://a/dav/", "webdav-http://b/dav/"}, selErr.Choices)
	assert.Equal(t, 0, remote.infoCalls)

	r, err := m.OpenRepository(context.Background(), "http://b/dav/")
	require.NoError(t, err)
	assert.Equal(t, "webdav-http://b/dav/", r.RootURL)
	assert.Equal(t, 0, remote.infoCalls)

	_, err = m.OpenRepository(context.Background(), "http://c/dav/")
	assert.True(t, errors.Is(err, ErrInvalidURL))

	//the remembered location now selects b
	r, err = m.InitialLocation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "webdav-http://b/dav/", r.RootURL)
}

func TestEnforcedSingle(t *testing.T) {
	store := prefs.NewMemStore()
	m := New(&fakeRemote{}, store, &fakePrompter{}, WithEnforcedURLs("http://a/dav/"))
	assert.False(t, m.CanEditServerURL())
	r, err := m.InitialLocation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "webdav-http://a/dav/", r.RootURL)
	assert.Equal(t, "webdav-http://a/dav/", r.CurrentURL)
	v, _ := store.Get(prefs.KeyLatestRootURL)
	assert.Equal(t, "webdav-http://a/dav/", v)
}

func TestInitialLocationNoEnforced(t *testing.T) {
	m := New(&fakeRemote{}, prefs.NewMemStore(), &fakePrompter{})
	_, err := m.InitialLocation(context.Background())
	assert.True(t, errors.Is(err, ErrNoRepository))

	m = New(&fakeRemote{}, prefs.NewMemStore(), &fakePrompter{}, WithBuiltinServerURL("http://local/dav/"))
	r, err := m.InitialLocation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "webdav-http://local/dav/", r.RootURL)

	r, err = m.UseBuiltinServer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "webdav-http://local/dav/", r.CurrentURL)
}

func TestRestoreFromDocument(t *testing.T) {
	remote := &fakeRemote{loggedIn: true}
	store := prefs.NewMemStore()
	m := New(remote, store, &fakePrompter{})
	ctx := context.Background()

	assert.NoError(t, m.RestoreFromDocument(ctx, "http://dav/root/a.xml"))
	assert.Equal(t, 0, remote.infoCalls)

	assert.NoError(t, m.RestoreFromDocument(ctx, "webdav-http://dav/root/a.xml"))
	assert.Equal(t, 1, remote.infoCalls)
	assert.NoError(t, m.RestoreFromDocument(ctx, "webdav-http://dav/root/b.xml"))
	assert.Equal(t, 1, remote.infoCalls)
}

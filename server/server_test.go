package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/idgen"
	"github.com/xxxsen/common/webapi/proxyutil"
	"github.com/xxxsen/davconnector/cacheapi/cachewrap"
	"github.com/xxxsen/davconnector/credstore"
	"github.com/xxxsen/davconnector/davclient"
	"github.com/xxxsen/davconnector/davtest"
	"github.com/xxxsen/davconnector/document"
	"github.com/xxxsen/davconnector/server/handler/pluginconfig"
	"github.com/xxxsen/davconnector/server/model"
	"github.com/xxxsen/davconnector/server/trust"
)

func TestMain(m *testing.M) {
	if err := idgen.Init(1); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type testEnv struct {
	dav    *davtest.Server
	svr    *httptest.Server
	client *http.Client
}

func setupEnv(t *testing.T, opts ...Option) *testEnv {
	dav := davtest.New(map[string]string{"alice": "secret"})
	t.Cleanup(dav.Close)
	require.NoError(t, dav.Mkdir("docs"))
	require.NoError(t, dav.WriteFile("docs/a.xml", []byte("<a/>")))

	creds, err := credstore.New()
	require.NoError(t, err)
	davcli := davclient.New()
	rc, err := cachewrap.NewRistrettoCache[string, string](100)
	require.NoError(t, err)
	all := append([]Option{
		WithCredentialStore(creds),
		WithDavClient(davcli),
		WithDocumentManager(document.NewManager(davcli, creds)),
		WithRootCache(rc),
	}, opts...)
	c := applyOpts(all...)
	require.NoError(t, c.validate())
	s := &Server{c: c}

	gin.SetMode(gin.TestMode)
	e := gin.New()
	s.initAPI(&e.RouterGroup)
	svr := httptest.NewServer(e)
	t.Cleanup(svr.Close)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testEnv{dav: dav, svr: svr, client: &http.Client{Jar: jar}}
}

func (e *testEnv) api(p string) string {
	return e.svr.URL + DispatcherPrefix + p
}

func (e *testEnv) login(t *testing.T, user, passwd string) {
	rsp, err := e.client.PostForm(e.api("/login"), url.Values{
		"user":   {user},
		"passwd": {passwd},
		"server": {"webdav-" + e.dav.URL("")},
	})
	require.NoError(t, err)
	defer rsp.Body.Close()
	require.Equal(t, http.StatusOK, rsp.StatusCode)
}

func (e *testEnv) urlInfo(t *testing.T, u string) (int, map[string]string) {
	rsp, err := e.client.Get(e.api("/webdav-url-info?url=" + url.QueryEscape(u)))
	require.NoError(t, err)
	defer rsp.Body.Close()
	m := map[string]string{}
	if rsp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(rsp.Body).Decode(&m))
	}
	return rsp.StatusCode, m
}

func (e *testEnv) post(t *testing.T, p string, in interface{}, out interface{}) int {
	raw, err := json.Marshal(in)
	require.NoError(t, err)
	rsp, err := e.client.Post(e.api(p), "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer rsp.Body.Close()
	if rsp.StatusCode != http.StatusOK {
		if out != nil {
			_ = json.NewDecoder(rsp.Body).Decode(out)
		}
		return rsp.StatusCode
	}
	pkg := &proxyutil.CommonResponse{Data: out}
	require.NoError(t, json.NewDecoder(rsp.Body).Decode(pkg))
	require.Equal(t, 0, int(pkg.Code), pkg.Message)
	return rsp.StatusCode
}

func TestURLInfoLoginLogout(t *testing.T) {
	env := setupEnv(t)
	docURL := "webdav-" + env.dav.URL("docs/a.xml")

	code, _ := env.urlInfo(t, docURL)
	assert.Equal(t, http.StatusUnauthorized, code)

	env.login(t, "alice", "wrong")
	code, _ = env.urlInfo(t, docURL)
	assert.Equal(t, http.StatusUnauthorized, code)

	env.login(t, "alice", "secret")
	code, info := env.urlInfo(t, docURL)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "FILE", info["type"])
	assert.Equal(t, env.dav.URL(""), info["rootUrl"])

	code, info = env.urlInfo(t, "webdav-"+env.dav.URL("docs"))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "FOLDER", info["type"])

	code, info = env.urlInfo(t, "webdav-"+env.dav.URL("docs/missing.xml"))
	assert.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, info["errorMessage"])

	rsp, err := env.client.Post(env.api("/login?action=logout"), "application/x-www-form-urlencoded", strings.NewReader(""))
	require.NoError(t, err)
	rsp.Body.Close()
	assert.Equal(t, http.StatusOK, rsp.StatusCode)
	code, _ = env.urlInfo(t, docURL)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestURLInfoInvalid(t *testing.T) {
	env := setupEnv(t, WithHostPolicy(trust.NewHostPolicy(true, "trusted:80")))
	code, _ := env.urlInfo(t, "ftp://h/a")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = env.urlInfo(t, "webdav-"+env.dav.URL("docs/a.xml"))
	assert.Equal(t, http.StatusForbidden, code)
}

func TestClientOptions(t *testing.T) {
	env := setupEnv(t, WithClientOptions(&pluginconfig.Options{
		AutosaveInterval: 10,
		EnforcedURL:      "webdav-https://dav.example.com/",
		LockOnOpen:       true,
	}))
	rsp, err := env.client.Get(env.api("/webdav-config"))
	require.NoError(t, err)
	defer rsp.Body.Close()
	opts := &model.ClientOptions{}
	require.NoError(t, json.NewDecoder(rsp.Body).Decode(opts))
	assert.Equal(t, "10", opts.WebdavAutosaveInterval)
	assert.Equal(t, "webdav-https://dav.example.com/", opts.EnforcedWebdavServer)
	assert.Equal(t, "on", opts.LockOnOpen)
	assert.Equal(t, "", opts.HideConnectorTab)
}

func TestDocumentFlow(t *testing.T) {
	env := setupEnv(t)
	docURL := "webdav-" + env.dav.URL("docs/a.xml")

	authMsg := &model.AuthRequiredMessage{}
	code := env.post(t, "/documents/open", &model.OpenDocumentRequest{URL: docURL}, authMsg)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, model.AuthContextLoad, authMsg.Context)
	assert.Equal(t, docURL, authMsg.URL)

	env.login(t, "alice", "secret")
	opened := &model.OpenDocumentResponse{}
	code = env.post(t, "/documents/open", &model.OpenDocumentRequest{URL: docURL, UserName: "alice"}, opened)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "<a/>", opened.Content)
	assert.NotEmpty(t, opened.ID)

	code = env.post(t, "/documents/"+opened.ID+"/sync", &model.SyncDocumentRequest{Content: "<b/>"}, &model.SyncDocumentResponse{})
	assert.Equal(t, http.StatusOK, code)
	code = env.post(t, "/documents/"+opened.ID+"/autosave", struct{}{}, &model.SaveDocumentResponse{})
	assert.Equal(t, http.StatusOK, code)
	raw, err := env.dav.ReadFile("docs/a.xml")
	require.NoError(t, err)
	assert.Equal(t, "<b/>", string(raw))

	rsp, err := env.client.Post(env.api("/login?action=logout"), "application/x-www-form-urlencoded", nil)
	require.NoError(t, err)
	rsp.Body.Close()
	authMsg = &model.AuthRequiredMessage{}
	code = env.post(t, "/documents/"+opened.ID+"/autosave", struct{}{}, authMsg)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, model.AuthContextSave, authMsg.Context)
	assert.Equal(t, docURL, authMsg.URL)

	env.login(t, "alice", "secret")
	code = env.post(t, "/documents/"+opened.ID+"/close", struct{}{}, &model.CloseDocumentResponse{})
	assert.Equal(t, http.StatusOK, code)
}

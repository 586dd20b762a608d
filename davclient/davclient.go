package davclient

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/davconnector/credstore"
	"github.com/xxxsen/davconnector/davurl"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultRootProbeTimeout = 3 * time.Second
	defaultRootProbeThread  = 4
	maxErrorBodyLength      = 4 * 1024
)

type ResourceType int

const (
	ResourceTypeNonWebdav ResourceType = iota
	ResourceTypeCollection
	ResourceTypeFile
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeCollection:
		return "FOLDER"
	case ResourceTypeFile:
		return "FILE"
	default:
		return "NON_WEBDAV"
	}
}

type IClient interface {
	ResourceType(ctx context.Context, u string, cred *credstore.Credential) (ResourceType, error)
	FindRoot(ctx context.Context, u string, cred *credstore.Credential) (string, bool)
	Get(ctx context.Context, u string, cred *credstore.Credential) ([]byte, error)
	Put(ctx context.Context, u string, cred *credstore.Credential, data []byte, contentType string, lockToken string) error
	Lock(ctx context.Context, u string, cred *credstore.Credential, owner string, timeout time.Duration) (string, error)
	RefreshLock(ctx context.Context, u string, cred *credstore.Credential, lockToken string, timeout time.Duration) error
	Unlock(ctx context.Context, u string, cred *credstore.Credential, lockToken string) error
}

type config struct {
	httpClient       *http.Client
	rootProbeTimeout time.Duration
	rootProbeThread  int
}

type Option func(c *config)

func WithHTTPClient(cli *http.Client) Option {
	return func(c *config) {
		c.httpClient = cli
	}
}

func WithRootProbeTimeout(t time.Duration) Option {
	return func(c *config) {
		c.rootProbeTimeout = t
	}
}

func WithRootProbeThread(n int) Option {
	return func(c *config) {
		c.rootProbeThread = n
	}
}

type defaultClient struct {
	c *config
}

func New(opts ...Option) IClient {
	c := &config{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				IdleConnTimeout:     20 * time.Second,
				MaxIdleConns:        16,
				MaxIdleConnsPerHost: 4,
			},
		},
		rootProbeTimeout: defaultRootProbeTimeout,
		rootProbeThread:  defaultRootProbeThread,
	}
	for _, opt := range opts {
		opt(c)
	}
	return &defaultClient{c: c}
}

func (d *defaultClient) do(ctx context.Context, method string, u string, cred *credstore.Credential, body []byte, headers map[string]string) (*http.Response, error) {
	target := davurl.StripMarker(u)
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, r)
	if err != nil {
		return nil, err
	}
	if cred != nil && len(cred.Username) > 0 {
		req.SetBasicAuth(cred.Username, cred.Password)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rsp, err := d.c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if rsp.StatusCode == http.StatusUnauthorized {
		_ = rsp.Body.Close()
		return nil, ErrUnauthorized
	}
	if rsp.StatusCode < 200 || rsp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(rsp.Body, maxErrorBodyLength))
		_ = rsp.Body.Close()
		return nil, &StatusError{Method: method, URL: target, Code: rsp.StatusCode}
	}
	return rsp, nil
}

func (d *defaultClient) ResourceType(ctx context.Context, u string, cred *credstore.Credential) (ResourceType, error) {
	rsp, err := d.do(ctx, "PROPFIND", u, cred, []byte(propfindResourceTypeBody), map[string]string{
		"Depth":        "0",
		"Content-Type": "application/xml; charset=utf-8",
	})
	if err != nil {
		return ResourceTypeNonWebdav, err
	}
	defer rsp.Body.Close()
	ms := &Multistatus{}
	if err := xml.NewDecoder(rsp.Body).Decode(ms); err != nil {
		return ResourceTypeNonWebdav, fmt.Errorf("error parsing server response, err:%w", err)
	}
	return detectResourceType(ms), nil
}

// detectResourceType expects exactly one resourcetype property, anything else is not WebDAV.
func detectResourceType(ms *Multistatus) ResourceType {
	found := make([]*ResourceTypeProp, 0, 1)
	for _, r := range ms.Responses {
		for _, ps := range r.Propstats {
			if ps.Prop.ResourceType != nil {
				found = append(found, ps.Prop.ResourceType)
			}
		}
	}
	if len(found) != 1 {
		return ResourceTypeNonWebdav
	}
	if found[0].Collection != nil {
		return ResourceTypeCollection
	}
	return ResourceTypeFile
}

// rootCandidates lists scheme://authority/, then one more path segment at a time.
func rootCandidates(u string) ([]string, error) {
	pu, err := url.Parse(davurl.StripMarker(u))
	if err != nil {
		return nil, err
	}
	pu.User = nil
	base := pu.Scheme + "://" + pu.Host
	parts := strings.Split(pu.Path, "/")
	rs := make([]string, 0, len(parts))
	candidate := base
	for _, part := range parts {
		candidate += part + "/"
		rs = append(rs, candidate)
	}
	return rs, nil
}

// FindRoot looks for the shortest path prefix of u that is a WebDAV collection. It gives up
// after the probe timeout and keeps the best candidate so far. The bool is false when the
// answer depends on a probe that did not finish or failed without a status.
func (d *defaultClient) FindRoot(ctx context.Context, u string, cred *credstore.Credential) (string, bool) {
	logger := logutil.GetLogger(ctx).With(zap.String("url", u))
	fallback := davurl.ClearUserInfo(davurl.StripMarker(u))
	candidates, err := rootCandidates(u)
	if err != nil || len(candidates) == 0 {
		logger.Debug("no root candidates", zap.Error(err))
		return d.keepMarker(u, fallback), false
	}
	probeCtx, cancel := context.WithTimeout(ctx, d.c.rootProbeTimeout)
	defer cancel()

	var mu sync.Mutex
	done := make([]bool, len(candidates))
	reliable := make([]bool, len(candidates))
	types := make([]ResourceType, len(candidates))
	eg, egCtx := errgroup.WithContext(probeCtx)
	eg.SetLimit(d.c.rootProbeThread)
	for i, candidate := range candidates {
		idx, cand := i, candidate
		eg.Go(func() error {
			if egCtx.Err() != nil {
				return nil
			}
			typ, err := d.ResourceType(egCtx, cand, cred)
			if err != nil {
				logger.Debug("probe root candidate failed", zap.String("candidate", cand), zap.Error(err))
			}
			mu.Lock()
			done[idx] = true
			reliable[idx] = err == nil || isDefinite(err)
			types[idx] = typ
			mu.Unlock()
			return nil
		})
	}
	waitCh := make(chan struct{})
	go func() {
		_ = eg.Wait()
		close(waitCh)
	}()
	select {
	case <-waitCh:
	case <-probeCtx.Done():
		logger.Warn("did not manage to determine the server root in the allocated time")
	}

	mu.Lock()
	defer mu.Unlock()
	root := fallback
	complete := true
	for i, cand := range candidates {
		root = cand
		if !done[i] || !reliable[i] {
			complete = false
		}
		if !done[i] {
			break
		}
		if types[i] == ResourceTypeCollection {
			logger.Debug("found server root url", zap.String("root", cand))
			break
		}
	}
	return d.keepMarker(u, root), complete
}

// isDefinite reports whether a probe error is a plain answer of the server, the same for
// every caller. Authentication failures depend on the credentials.
func isDefinite(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}

func (d *defaultClient) keepMarker(origin string, u string) string {
	if davurl.IsWebdavURL(origin) {
		return davurl.ProcessURL(u)
	}
	return u
}

func (d *defaultClient) Get(ctx context.Context, u string, cred *credstore.Credential) ([]byte, error) {
	rsp, err := d.do(ctx, http.MethodGet, u, cred, nil, nil)
	if err != nil {
		return nil, err
	}
	defer rsp.Body.Close()
	return io.ReadAll(rsp.Body)
}

func (d *defaultClient) Put(ctx context.Context, u string, cred *credstore.Credential, data []byte, contentType string, lockToken string) error {
	headers := map[string]string{
		"Content-Type": contentType,
	}
	if len(lockToken) > 0 {
		headers["If"] = "(<" + lockToken + ">)"
	}
	rsp, err := d.do(ctx, http.MethodPut, u, cred, data, headers)
	if err != nil {
		return err
	}
	_ = rsp.Body.Close()
	return nil
}

func (d *defaultClient) Lock(ctx context.Context, u string, cred *credstore.Credential, owner string, timeout time.Duration) (string, error) {
	body := fmt.Sprintf(lockInfoTemplate, xmlEscape(owner))
	rsp, err := d.do(ctx, "LOCK", u, cred, []byte(body), map[string]string{
		"Depth":        "0",
		"Timeout":      fmt.Sprintf("Second-%d", int64(timeout/time.Second)),
		"Content-Type": "application/xml; charset=utf-8",
	})
	if err != nil {
		return "", err
	}
	defer rsp.Body.Close()
	_, _ = io.Copy(io.Discard, rsp.Body)
	token := strings.TrimSuffix(strings.TrimPrefix(rsp.Header.Get("Lock-Token"), "<"), ">")
	if len(token) == 0 {
		return "", fmt.Errorf("no lock token in LOCK response, url:%s", u)
	}
	return token, nil
}

// RefreshLock extends the timeout of a lock held by lockToken. An expired lock answers 412.
func (d *defaultClient) RefreshLock(ctx context.Context, u string, cred *credstore.Credential, lockToken string, timeout time.Duration) error {
	rsp, err := d.do(ctx, "LOCK", u, cred, nil, map[string]string{
		"If":      "(<" + lockToken + ">)",
		"Timeout": fmt.Sprintf("Second-%d", int64(timeout/time.Second)),
	})
	if err != nil {
		return err
	}
	defer rsp.Body.Close()
	_, _ = io.Copy(io.Discard, rsp.Body)
	return nil
}

func (d *defaultClient) Unlock(ctx context.Context, u string, cred *credstore.Credential, lockToken string) error {
	rsp, err := d.do(ctx, "UNLOCK", u, cred, nil, map[string]string{
		"Lock-Token": "<" + lockToken + ">",
	})
	if err != nil {
		return err
	}
	_ = rsp.Body.Close()
	return nil
}

func xmlEscape(s string) string {
	buf := &bytes.Buffer{}
	_ = xml.EscapeText(buf, []byte(s))
	return buf.String()
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi/proxyutil"
	"github.com/xxxsen/davconnector/server/model"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
)

const (
	apiPrefix        = "/plugins-dispatcher"
	apiLogin         = apiPrefix + "/login"
	apiLogout        = apiPrefix + "/login?action=logout"
	apiURLInfo       = apiPrefix + "/webdav-url-info"
	apiClientOptions = apiPrefix + "/webdav-config"
	apiOpenDocument  = apiPrefix + "/documents/open"
	apiDocumentFmt   = apiPrefix + "/documents/%s/%s"
	maxMessageLength = 4 * 1024
)

type defaultClient struct {
	c   *config
	cli *http.Client
}

func New(opts ...Option) (IClient, error) {
	c := &config{
		Schema:  "http",
		Timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if len(c.Host) == 0 {
		return nil, fmt.Errorf("no host found")
	}
	cli := c.HTTPClient
	if cli == nil {
		cli = &http.Client{
			Timeout: c.Timeout,
			Transport: &http.Transport{
				IdleConnTimeout:     20 * time.Second,
				MaxIdleConns:        5,
				MaxIdleConnsPerHost: 1,
			},
		}
	}
	if cli.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("create cookie jar failed, err:%w", err)
		}
		cli.Jar = jar
	}
	return &defaultClient{c: c, cli: cli}, nil
}

func (d *defaultClient) buildUrl(api string) string {
	return fmt.Sprintf("%s://%s%s", d.c.Schema, d.c.Host, api)
}

func (d *defaultClient) do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	rsp, err := d.cli.Do(req)
	if err != nil {
		return nil, err
	}
	logutil.GetLogger(req.Context()).Debug("call connector api", zap.String("method", req.Method),
		zap.String("api", req.URL.Path), zap.Int("code", rsp.StatusCode), zap.Duration("cost", time.Since(start)))
	return rsp, nil
}

func readMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, maxMessageLength))
	return strings.TrimSpace(string(raw))
}

func (d *defaultClient) postForm(ctx context.Context, api string, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.buildUrl(api), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rsp, err := d.do(req)
	if err != nil {
		return err
	}
	defer rsp.Body.Close()
	if rsp.StatusCode != http.StatusOK {
		return &StatusError{API: api, Code: rsp.StatusCode, Message: readMessage(rsp.Body)}
	}
	return nil
}

func (d *defaultClient) Login(ctx context.Context, user string, passwd string, server string) error {
	return d.postForm(ctx, apiLogin, url.Values{
		"user":   {user},
		"passwd": {passwd},
		"server": {server},
	})
}

func (d *defaultClient) Logout(ctx context.Context) error {
	return d.postForm(ctx, apiLogout, url.Values{})
}

func (d *defaultClient) URLInfo(ctx context.Context, u string) (*model.URLInfoResponse, error) {
	api := apiURLInfo + "?url=" + url.QueryEscape(u)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.buildUrl(api), nil)
	if err != nil {
		return nil, err
	}
	rsp, err := d.do(req)
	if err != nil {
		return nil, err
	}
	defer rsp.Body.Close()
	if rsp.StatusCode == http.StatusUnauthorized {
		return nil, &AuthRequiredError{URL: u}
	}
	if rsp.StatusCode != http.StatusOK {
		return nil, &StatusError{API: apiURLInfo, Code: rsp.StatusCode, Message: readMessage(rsp.Body)}
	}
	raw, err := io.ReadAll(rsp.Body)
	if err != nil {
		return nil, err
	}
	errRsp := &model.URLInfoErrorResponse{}
	if err := json.Unmarshal(raw, errRsp); err == nil && len(errRsp.ErrorMessage) > 0 {
		return nil, &StatusError{API: apiURLInfo, Code: rsp.StatusCode, Message: errRsp.ErrorMessage}
	}
	info := &model.URLInfoResponse{}
	if err := json.Unmarshal(raw, info); err != nil {
		return nil, fmt.Errorf("decode url info failed, err:%w", err)
	}
	return info, nil
}

func (d *defaultClient) ClientOptions(ctx context.Context) (*model.ClientOptions, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.buildUrl(apiClientOptions), nil)
	if err != nil {
		return nil, err
	}
	rsp, err := d.do(req)
	if err != nil {
		return nil, err
	}
	defer rsp.Body.Close()
	if rsp.StatusCode != http.StatusOK {
		return nil, &StatusError{API: apiClientOptions, Code: rsp.StatusCode, Message: readMessage(rsp.Body)}
	}
	opts := &model.ClientOptions{}
	if err := json.NewDecoder(rsp.Body).Decode(opts); err != nil {
		return nil, fmt.Errorf("decode client options failed, err:%w", err)
	}
	return opts, nil
}

func (d *defaultClient) callJsonPost(ctx context.Context, api string, in interface{}, out interface{}) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.buildUrl(api), bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	rsp, err := d.do(req)
	if err != nil {
		return err
	}
	defer rsp.Body.Close()
	if rsp.StatusCode == http.StatusUnauthorized {
		msg := &model.AuthRequiredMessage{}
		if err := json.NewDecoder(rsp.Body).Decode(msg); err != nil {
			return &AuthRequiredError{}
		}
		return &AuthRequiredError{Context: msg.Context, URL: msg.URL}
	}
	if rsp.StatusCode != http.StatusOK {
		return &StatusError{API: api, Code: rsp.StatusCode, Message: readMessage(rsp.Body)}
	}
	pkgRsp := &proxyutil.CommonResponse{
		Data: out,
	}
	if err := json.NewDecoder(rsp.Body).Decode(pkgRsp); err != nil {
		return err
	}
	if pkgRsp.Code != 0 {
		return &StatusError{API: api, Code: int(pkgRsp.Code), Message: pkgRsp.Message}
	}
	return nil
}

func documentAPI(id string, op string) string {
	return fmt.Sprintf(apiDocumentFmt, url.PathEscape(id), op)
}

func (d *defaultClient) OpenDocument(ctx context.Context, u string, userName string) (*model.OpenDocumentResponse, error) {
	rsp := &model.OpenDocumentResponse{}
	if err := d.callJsonPost(ctx, apiOpenDocument, &model.OpenDocumentRequest{URL: u, UserName: userName}, rsp); err != nil {
		return nil, err
	}
	return rsp, nil
}

func (d *defaultClient) SyncDocument(ctx context.Context, id string, content []byte) error {
	return d.callJsonPost(ctx, documentAPI(id, "sync"), &model.SyncDocumentRequest{Content: string(content)}, &model.SyncDocumentResponse{})
}

func (d *defaultClient) SaveDocument(ctx context.Context, id string) error {
	return d.callJsonPost(ctx, documentAPI(id, "autosave"), struct{}{}, &model.SaveDocumentResponse{})
}

func (d *defaultClient) CloseDocument(ctx context.Context, id string) error {
	return d.callJsonPost(ctx, documentAPI(id, "close"), struct{}{}, &model.CloseDocumentResponse{})
}

// Package plugin wires the autosave controller and the repository session to the editor
// host: actions, lifecycle events and the authentication retry messages.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/davconnector/autosave"
	"github.com/xxxsen/davconnector/davc/client"
	"github.com/xxxsen/davconnector/davurl"
	"github.com/xxxsen/davconnector/server/model"
	"github.com/xxxsen/davconnector/session"
	"go.uber.org/zap"
)

// IWorkspace is what the host offers to the plugin.
type IWorkspace interface {
	Reload(ctx context.Context) error
	ReloadWithoutURL(ctx context.Context) error
	RefreshReferences(ctx context.Context) error
	ReloadImages(ctx context.Context) error
	ResetRepositoryBrowser(ctx context.Context) error
	SaveAs(ctx context.Context) error
	Download(ctx context.Context) error
	Confirm(ctx context.Context, title string, message string) bool
	ShowStatus(st autosave.Status)
	// ShowRecoveryDialog returns the option picked by the user, false when dismissed.
	ShowRecoveryDialog(ctx context.Context, options []autosave.RecoveryOption) (autosave.RecoveryOption, bool)
}

type config struct {
	interval     int
	autosaveOpts []autosave.Option
}

type Option func(c *config)

// WithAutosaveInterval sets the autosave interval in seconds, <= 0 disables autosaving.
func WithAutosaveInterval(sec int) Option {
	return func(c *config) {
		c.interval = sec
	}
}

func WithAutosaveOptions(opts ...autosave.Option) Option {
	return func(c *config) {
		c.autosaveOpts = append(c.autosaveOpts, opts...)
	}
}

type Plugin struct {
	c       *config
	sess    *session.Manager
	ws      IWorkspace
	actions *ActionRegistry

	mu      sync.Mutex
	ctrl    *autosave.Controller
	docURL  string
	editing bool
	dirty   bool
}

func New(sess *session.Manager, ws IWorkspace, actions *ActionRegistry, opts ...Option) *Plugin {
	c := &config{interval: 5}
	for _, opt := range opts {
		opt(c)
	}
	return &Plugin{c: c, sess: sess, ws: ws, actions: actions}
}

type indicatorFunc func(st autosave.Status)

func (f indicatorFunc) Show(st autosave.Status) {
	f(st)
}

// OnEditorLoading prepares an editor about to load docURL. It returns the user name to open
// the document with and false when the document is not a webdav one.
func (p *Plugin) OnEditorLoading(ctx context.Context, docURL string, saver autosave.ISaver) (string, bool) {
	if !davurl.IsWebdavURL(docURL) {
		return "", false
	}
	p.actions.RegisterAction(ActionLogout, &LogoutAction{p: p})
	var ctrl *autosave.Controller
	if p.c.interval > 0 {
		opts := append([]autosave.Option{
			autosave.WithContext(ctx),
			autosave.WithInterval(time.Duration(p.c.interval) * time.Second),
			autosave.WithIndicator(indicatorFunc(p.ws.ShowStatus)),
			autosave.WithErrorHook(p.onSaveError),
		}, p.c.autosaveOpts...)
		ctrl = autosave.New(saver, opts...)
		base, _ := p.actions.ActionByID(ActionSave)
		p.actions.RegisterAction(ActionSave, NewSaveAction(base, ctrl))
	}
	p.mu.Lock()
	if p.ctrl != nil {
		old := p.ctrl
		defer old.Close()
	}
	p.ctrl = ctrl
	p.docURL = docURL
	p.editing = true
	p.dirty = false
	p.mu.Unlock()
	logutil.GetLogger(ctx).Info("webdav editor loading", zap.String("url", docURL), zap.Bool("autosave", ctrl != nil))
	return p.sess.UserName(), true
}

// OnDashboardLoading registers the logout action outside of any editor.
func (p *Plugin) OnDashboardLoading(ctx context.Context) {
	p.actions.RegisterAction(ActionLogout, &LogoutAction{p: p})
}

func (p *Plugin) OnEditorLoaded(ctx context.Context, docURL string) error {
	return p.sess.RestoreFromDocument(ctx, docURL)
}

func (p *Plugin) controller() *autosave.Controller {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ctrl
}

// Controller returns the autosave controller of the current editor, nil when autosave is off.
func (p *Plugin) Controller() *autosave.Controller {
	return p.controller()
}

func (p *Plugin) OnContentChanged() {
	p.mu.Lock()
	p.dirty = true
	p.mu.Unlock()
	if ctrl := p.controller(); ctrl != nil {
		ctrl.ContentChanged()
	}
}

func (p *Plugin) OnDirtyChanged(dirty bool) {
	p.mu.Lock()
	p.dirty = dirty
	p.mu.Unlock()
	if !dirty {
		return
	}
	if ctrl := p.controller(); ctrl != nil {
		ctrl.ContentChanged()
	}
}

func (p *Plugin) editingState() (bool, bool) {
	p.mu.Lock()
	editing, dirty, ctrl := p.editing, p.dirty, p.ctrl
	p.mu.Unlock()
	if ctrl != nil && ctrl.State() != autosave.StateClean {
		dirty = true
	}
	return editing, dirty
}

func (p *Plugin) markClean() {
	p.mu.Lock()
	p.dirty = false
	ctrl := p.ctrl
	p.mu.Unlock()
	if ctrl != nil {
		ctrl.MarkClean()
	}
}

// OnEditorClosed ends the document session, waiting for the save in flight.
func (p *Plugin) OnEditorClosed() {
	p.mu.Lock()
	ctrl := p.ctrl
	p.ctrl = nil
	p.editing = false
	p.docURL = ""
	p.mu.Unlock()
	if ctrl != nil {
		ctrl.Close()
	}
}

// OnCustomMessage handles an authentication request sent by the connector: the user logs in
// and the operation that failed is retried.
func (p *Plugin) OnCustomMessage(ctx context.Context, authCtx string, u string) error {
	if err := p.sess.Login(ctx, u); err != nil {
		return err
	}
	logutil.GetLogger(ctx).Debug("retry after login", zap.String("context", authCtx), zap.String("url", u))
	switch authCtx {
	case model.AuthContextLoad:
		return p.ws.Reload(ctx)
	case model.AuthContextEditing:
		return p.ws.RefreshReferences(ctx)
	case model.AuthContextSave:
		a, ok := p.actions.ActionByID(ActionSave)
		if !ok {
			return fmt.Errorf("no save action found")
		}
		return a.Perform(ctx)
	case model.AuthContextImage:
		return p.ws.ReloadImages(ctx)
	default:
		return fmt.Errorf("unknown auth context:%s", authCtx)
	}
}

func (p *Plugin) onSaveError(ctx context.Context, err error) {
	var authErr *client.AuthRequiredError
	if !errors.As(err, &authErr) {
		return
	}
	u := authErr.URL
	if len(u) == 0 {
		p.mu.Lock()
		u = p.docURL
		p.mu.Unlock()
	}
	if err := p.OnCustomMessage(ctx, model.AuthContextSave, u); err != nil {
		logutil.GetLogger(ctx).Error("retry save after login failed", zap.Error(err))
	}
}

// OnIndicatorClicked offers the recovery dialog when the last save failed.
func (p *Plugin) OnIndicatorClicked(ctx context.Context) error {
	ctrl := p.controller()
	if ctrl == nil {
		return nil
	}
	options := ctrl.IndicatorClicked()
	if len(options) == 0 {
		return nil
	}
	choice, ok := p.ws.ShowRecoveryDialog(ctx, options)
	if !ok {
		return nil
	}
	switch choice {
	case autosave.RecoveryRetry:
		ctrl.Retry()
		return nil
	case autosave.RecoverySaveAs:
		return p.ws.SaveAs(ctx)
	case autosave.RecoveryDownload:
		return p.ws.Download(ctx)
	default:
		return fmt.Errorf("unknown recovery option:%s", choice)
	}
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/davconnector/autosave"
	"github.com/xxxsen/davconnector/davc/client"
	"github.com/xxxsen/davconnector/davurl"
	"github.com/xxxsen/davconnector/plugin"
	"github.com/xxxsen/davconnector/server/model"
	"github.com/xxxsen/davconnector/utils"
	"go.uber.org/zap"
)

const defaultAutosaveInterval = 5

type editArgs struct {
	url  string
	file string
}

func NewEditCmd(c *Context) *cobra.Command {
	args := &editArgs{}
	ctx := context.Background()
	subc := &cobra.Command{
		Use:   "edit",
		Short: "Edit a webdav document through a local file, saving it automatically",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return onRunEdit(ctx, c, args)
		},
	}
	subc.Flags().StringVarP(&args.url, "url", "u", "", "document url")
	subc.Flags().StringVarP(&args.file, "file", "f", "", "local file to edit")
	return subc
}

// documentSaver pushes the local file to the connector.
type documentSaver struct {
	cli  client.IClient
	file string

	mu       sync.Mutex
	id       string
	lastHash uint64
}

func (s *documentSaver) docID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (s *documentSaver) PreSync(ctx context.Context) error {
	raw, err := os.ReadFile(s.file)
	if err != nil {
		return fmt.Errorf("read local file failed, err:%w", err)
	}
	logutil.GetLogger(ctx).Debug("sync local file", zap.String("size", humanize.IBytes(uint64(len(raw)))))
	return s.cli.SyncDocument(ctx, s.docID(), raw)
}

func (s *documentSaver) Save(ctx context.Context) error {
	return s.cli.SaveDocument(ctx, s.docID())
}

func (s *documentSaver) remember(raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastHash = xxhash.Sum64(raw)
}

// changed reports whether the local file differs from the last content seen.
func (s *documentSaver) changed() bool {
	raw, err := os.ReadFile(s.file)
	if err != nil {
		return false
	}
	h := xxhash.Sum64(raw)
	s.mu.Lock()
	defer s.mu.Unlock()
	if h == s.lastHash {
		return false
	}
	s.lastHash = h
	return true
}

// directSaveAction saves without the autosave controller, it is the host save action the
// autosave one wraps.
type directSaveAction struct {
	saver *documentSaver
}

func (a *directSaveAction) Perform(ctx context.Context) error {
	if err := a.saver.PreSync(ctx); err != nil {
		return err
	}
	return a.saver.Save(ctx)
}

func (a *directSaveAction) DisplayName() string {
	return "Save"
}

func (a *directSaveAction) IsEnabled() bool {
	return true
}

func (a *directSaveAction) RenderIcon() string {
	return ""
}

func autosaveInterval(ctx context.Context, c *Context) int {
	if c.Config.AutosaveInterval != nil {
		return *c.Config.AutosaveInterval
	}
	opts, err := c.Client.ClientOptions(ctx)
	if err != nil {
		logutil.GetLogger(ctx).Debug("read connector options failed, use default interval", zap.Error(err))
		return defaultAutosaveInterval
	}
	c.Session.AddEnforcedURL(opts.EnforcedWebdavServer)
	v, err := strconv.Atoi(opts.WebdavAutosaveInterval)
	if err != nil {
		return defaultAutosaveInterval
	}
	return v
}

func openDocument(ctx context.Context, c *Context, p *plugin.Plugin, u string, userName string) (*model.OpenDocumentResponse, error) {
	for {
		doc, err := c.Client.OpenDocument(ctx, u, userName)
		var authErr *client.AuthRequiredError
		if !errors.As(err, &authErr) {
			return doc, err
		}
		authCtx := authErr.Context
		if len(authCtx) == 0 {
			authCtx = model.AuthContextLoad
		}
		if err := p.OnCustomMessage(ctx, authCtx, u); err != nil {
			return nil, err
		}
	}
}

func onRunEdit(ctx context.Context, c *Context, args *editArgs) error {
	if !davurl.IsAcceptable(args.url) {
		return fmt.Errorf("invalid document url:%s", args.url)
	}
	if len(args.file) == 0 {
		return fmt.Errorf("no local file found")
	}
	file, err := filepath.Abs(args.file)
	if err != nil {
		return err
	}
	u := davurl.ProcessURL(args.url)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	logger := logutil.GetLogger(ctx).With(zap.String("url", u))

	ws := newTerminalWorkspace(c, cancel)
	ws.localFile = file
	actions := plugin.NewActionRegistry()
	p := plugin.New(c.Session, ws, actions, plugin.WithAutosaveInterval(autosaveInterval(ctx, c)))
	saver := &documentSaver{cli: c.Client, file: file}
	actions.RegisterAction(plugin.ActionSave, &directSaveAction{saver: saver})
	userName, _ := p.OnEditorLoading(ctx, u, saver)

	doc, err := openDocument(ctx, c, p, u, userName)
	if err != nil {
		return fmt.Errorf("open document failed, err:%w", err)
	}
	saver.mu.Lock()
	saver.id = doc.ID
	saver.mu.Unlock()
	defer func() {
		if err := c.Client.CloseDocument(context.Background(), doc.ID); err != nil {
			logger.Error("close document failed", zap.Error(err))
		}
	}()
	if err := utils.SafeSaveBytesToFile(file, []byte(doc.Content), 0644); err != nil {
		return fmt.Errorf("write local file failed, err:%w", err)
	}
	saver.remember([]byte(doc.Content))
	if doc.ReadOnly {
		c.Console.Printf("document is locked by another user, changes can not be saved\n")
	}
	if err := p.OnEditorLoaded(ctx, u); err != nil {
		logger.Error("restore repository location failed", zap.Error(err))
	}
	defer p.OnEditorClosed()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher failed, err:%w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(file)); err != nil {
		return fmt.Errorf("watch local file failed, err:%w", err)
	}
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)

	logger.Info("editing document", zap.String("file", file), zap.String("id", doc.ID))
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != file || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)) {
				continue
			}
			if saver.changed() {
				p.OnContentChanged()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watch local file failed", zap.Error(err))
		case st := <-ws.statusCh:
			if st.State != autosave.StateError {
				continue
			}
			ctrl := p.Controller()
			ctrl.Wait()
			if ctrl.State() != autosave.StateError {
				continue
			}
			if err := p.OnIndicatorClicked(ctx); err != nil {
				logger.Error("recover from failed save failed", zap.Error(err))
			}
		case <-sig:
			finalSave(ctx, p, actions, saver)
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// finalSave saves the pending changes before leaving.
func finalSave(ctx context.Context, p *plugin.Plugin, actions *plugin.ActionRegistry, saver *documentSaver) {
	saver.changed()
	ctrl := p.Controller()
	if ctrl != nil && ctrl.State() == autosave.StateClean {
		return
	}
	a, ok := actions.ActionByID(plugin.ActionSave)
	if !ok {
		return
	}
	if err := a.Perform(ctx); err != nil {
		logutil.GetLogger(ctx).Error("save document failed", zap.Error(err))
	}
	if ctrl != nil {
		ctrl.Wait()
	}
}

func init() {
	register(NewEditCmd)
}

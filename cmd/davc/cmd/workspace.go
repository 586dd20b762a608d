package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/davconnector/autosave"
	"github.com/xxxsen/davconnector/utils"
)

// terminalWorkspace is the editor host of davc: statuses are printed and dialogs are asked on
// the console.
type terminalWorkspace struct {
	c         *Context
	leave     func()
	localFile string
	statusCh  chan autosave.Status
}

func newTerminalWorkspace(c *Context, leave func()) *terminalWorkspace {
	return &terminalWorkspace{c: c, leave: leave, statusCh: make(chan autosave.Status, 16)}
}

func (w *terminalWorkspace) Reload(ctx context.Context) error {
	w.c.Console.Printf("reloading document\n")
	return nil
}

func (w *terminalWorkspace) ReloadWithoutURL(ctx context.Context) error {
	w.c.Console.Printf("leaving document\n")
	if w.leave != nil {
		w.leave()
	}
	return nil
}

func (w *terminalWorkspace) RefreshReferences(ctx context.Context) error {
	logutil.GetLogger(ctx).Debug("refresh references requested")
	return nil
}

func (w *terminalWorkspace) ReloadImages(ctx context.Context) error {
	logutil.GetLogger(ctx).Debug("reload images requested")
	return nil
}

func (w *terminalWorkspace) ResetRepositoryBrowser(ctx context.Context) error {
	w.c.Console.Printf("repository selection cleared\n")
	return nil
}

func (w *terminalWorkspace) SaveAs(ctx context.Context) error {
	if len(w.localFile) == 0 {
		return fmt.Errorf("no local file found")
	}
	raw, err := os.ReadFile(w.localFile)
	if err != nil {
		return err
	}
	dst := w.localFile + ".recovered"
	if err := utils.SafeSaveBytesToFile(dst, raw, 0644); err != nil {
		return fmt.Errorf("save copy failed, err:%w", err)
	}
	w.c.Console.Printf("copy saved to %s\n", dst)
	return nil
}

func (w *terminalWorkspace) Download(ctx context.Context) error {
	w.c.Console.Printf("local copy kept at %s\n", w.localFile)
	return nil
}

func (w *terminalWorkspace) Confirm(ctx context.Context, title string, message string) bool {
	return w.c.Console.Confirm(title, message)
}

func (w *terminalWorkspace) ShowStatus(st autosave.Status) {
	if len(st.Marker) > 0 || st.Busy {
		line := st.Marker
		if st.Busy && len(line) == 0 {
			line = "..."
		}
		w.c.Console.Printf("[%s] %s\n", line, st.Tooltip)
	}
	select {
	case w.statusCh <- st:
	default:
	}
}

func (w *terminalWorkspace) ShowRecoveryDialog(ctx context.Context, options []autosave.RecoveryOption) (autosave.RecoveryOption, bool) {
	choices := make([]string, 0, len(options))
	for _, o := range options {
		choices = append(choices, string(o))
	}
	idx, ok := w.c.Console.Choose("Save failed, choose how to recover:", choices, string(autosave.RecoveryRetry))
	if !ok {
		return "", false
	}
	return options[idx], true
}

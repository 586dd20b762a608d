package plugin

import (
	"context"
	"fmt"
)

const (
	logoutTitle        = "Logout"
	logoutConfirmation = "Are you sure you want to logout?"
	logoutLoseChanges  = "All your unsaved changes will be lost"
)

type LogoutAction struct {
	p *Plugin
}

func (a *LogoutAction) Perform(ctx context.Context) error {
	msg := logoutConfirmation
	editing, dirty := a.p.editingState()
	if editing && dirty {
		msg += " " + logoutLoseChanges
	}
	if !a.p.ws.Confirm(ctx, logoutTitle, msg) {
		return nil
	}
	//the local state is gone even when the connector could not be told
	logoutErr := a.p.sess.Logout(ctx)
	if !editing {
		if err := a.p.ws.ResetRepositoryBrowser(ctx); err != nil {
			return err
		}
		return logoutErr
	}
	a.p.markClean()
	if err := a.p.ws.ReloadWithoutURL(ctx); err != nil {
		return fmt.Errorf("reload without url failed, err:%w", err)
	}
	return logoutErr
}

func (a *LogoutAction) DisplayName() string {
	return logoutTitle
}

func (a *LogoutAction) IsEnabled() bool {
	return true
}

func (a *LogoutAction) RenderIcon() string {
	return ""
}

package plugin

import (
	"context"

	"github.com/xxxsen/davconnector/autosave"
)

// SaveAction replaces the host save action, saving through the autosave controller so the
// status indicator follows manual saves too.
type SaveAction struct {
	base Action
	ctrl *autosave.Controller
}

func NewSaveAction(base Action, ctrl *autosave.Controller) *SaveAction {
	return &SaveAction{base: base, ctrl: ctrl}
}

func (a *SaveAction) Perform(ctx context.Context) error {
	a.ctrl.ManualSave()
	return nil
}

func (a *SaveAction) DisplayName() string {
	if a.base != nil {
		return a.base.DisplayName()
	}
	return "Save"
}

func (a *SaveAction) IsEnabled() bool {
	if a.base != nil {
		return a.base.IsEnabled()
	}
	return true
}

func (a *SaveAction) RenderIcon() string {
	if a.base != nil {
		return a.base.RenderIcon()
	}
	return ""
}

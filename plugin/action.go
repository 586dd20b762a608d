package plugin

import (
	"context"
	"sync"
)

const (
	ActionSave   = "Author/Save"
	ActionLogout = "Webdav/Logout"
)

type Action interface {
	Perform(ctx context.Context) error
	DisplayName() string
	IsEnabled() bool
	RenderIcon() string
}

type ActionRegistry struct {
	mu      sync.RWMutex
	actions map[string]Action
}

func NewActionRegistry() *ActionRegistry {
	return &ActionRegistry{actions: make(map[string]Action)}
}

// RegisterAction adds the action or replaces the one registered under the same id.
func (r *ActionRegistry) RegisterAction(id string, a Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[id] = a
}

func (r *ActionRegistry) ActionByID(id string) (Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[id]
	return a, ok
}

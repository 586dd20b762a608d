package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/davconnector/plugin"
)

func NewLogoutCmd(c *Context) *cobra.Command {
	ctx := context.Background()
	subc := &cobra.Command{
		Use:   "logout",
		Short: "Logout and forget the remembered locations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return onRunLogout(ctx, c)
		},
	}
	return subc
}

func onRunLogout(ctx context.Context, c *Context) error {
	ws := newTerminalWorkspace(c, nil)
	actions := plugin.NewActionRegistry()
	p := plugin.New(c.Session, ws, actions)
	p.OnDashboardLoading(ctx)
	a, _ := actions.ActionByID(plugin.ActionLogout)
	if err := a.Perform(ctx); err != nil {
		return fmt.Errorf("logout failed, err:%w", err)
	}
	logutil.GetLogger(ctx).Info("logout finished")
	return nil
}

func init() {
	register(NewLogoutCmd)
}

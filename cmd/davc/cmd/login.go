package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/davconnector/davurl"
	"go.uber.org/zap"
)

func NewLoginCmd(c *Context) *cobra.Command {
	ctx := context.Background()
	subc := &cobra.Command{
		Use:   "login <server-url>",
		Short: "Login to a webdav server through the connector",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return onRunLogin(ctx, c, args[0])
		},
	}
	return subc
}

func onRunLogin(ctx context.Context, c *Context, server string) error {
	if !davurl.IsAcceptable(server) {
		return fmt.Errorf("invalid server url:%s", server)
	}
	if err := c.Session.Login(ctx, server); err != nil {
		return fmt.Errorf("login failed, err:%w", err)
	}
	logutil.GetLogger(ctx).Info("login succ", zap.String("server", server), zap.String("user", c.Session.UserName()))
	return nil
}

func init() {
	register(NewLoginCmd)
}

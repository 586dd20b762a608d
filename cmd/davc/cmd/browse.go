package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/davconnector/session"
	"go.uber.org/zap"
)

type browseArgs struct {
	builtin bool
}

func NewBrowseCmd(c *Context) *cobra.Command {
	args := &browseArgs{}
	ctx := context.Background()
	subc := &cobra.Command{
		Use:   "browse [server-url]",
		Short: "Select the webdav repository to work with",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, pos []string) error {
			input := ""
			if len(pos) > 0 {
				input = pos[0]
			}
			return onRunBrowse(ctx, c, args, input)
		},
	}
	subc.Flags().BoolVar(&args.builtin, "builtin", false, "use the built-in server")
	return subc
}

// applyServerOptions registers the servers enforced by the connector deployment.
func applyServerOptions(ctx context.Context, c *Context) {
	opts, err := c.Client.ClientOptions(ctx)
	if err != nil {
		logutil.GetLogger(ctx).Debug("read connector options failed", zap.Error(err))
		return
	}
	c.Session.AddEnforcedURL(opts.EnforcedWebdavServer)
}

func onRunBrowse(ctx context.Context, c *Context, args *browseArgs, input string) error {
	applyServerOptions(ctx, c)
	var r *session.RepositoryRoot
	var err error
	switch {
	case args.builtin:
		r, err = c.Session.UseBuiltinServer(ctx)
	case len(input) > 0:
		if !c.Session.CanEditServerURL() {
			return fmt.Errorf("server url is enforced to %v", c.Session.EnforcedURLs())
		}
		r, err = c.Session.OpenRepository(ctx, input)
	default:
		r, err = c.Session.InitialLocation(ctx)
		var selErr *session.SelectionRequiredError
		if errors.As(err, &selErr) {
			idx, ok := c.Console.Choose("Server URL:", selErr.Choices, selErr.Preselected)
			if !ok {
				return fmt.Errorf("no server selected")
			}
			r, err = c.Session.OpenRepository(ctx, selErr.Choices[idx])
		}
	}
	if err != nil {
		return fmt.Errorf("open repository failed, err:%w", err)
	}
	c.Console.Printf("root: %s\nurl:  %s\n", r.RootURL, r.CurrentURL)
	return nil
}

func init() {
	register(NewBrowseCmd)
}

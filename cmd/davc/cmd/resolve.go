package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func NewResolveCmd(c *Context) *cobra.Command {
	ctx := context.Background()
	subc := &cobra.Command{
		Use:   "resolve <url>",
		Short: "Resolve a url into its webdav root and browse location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return onRunResolve(ctx, c, args[0])
		},
	}
	return subc
}

func onRunResolve(ctx context.Context, c *Context, u string) error {
	r, err := c.Session.ResolveURL(ctx, u)
	if err != nil {
		return fmt.Errorf("resolve url failed, err:%w", err)
	}
	c.Console.Printf("root: %s\nurl:  %s\n", r.RootURL, r.CurrentURL)
	return nil
}

func init() {
	register(NewResolveCmd)
}

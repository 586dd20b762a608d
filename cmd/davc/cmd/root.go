package cmd

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/davconnector/cmd/davc/config"
	"github.com/xxxsen/davconnector/davc/client"
	"github.com/xxxsen/davconnector/prefs"
	"github.com/xxxsen/davconnector/session"
)

const (
	defaultConfigFileEnv = "DAVC_CONFIG"
)

var cmds []CreateFunc

type Context struct {
	Config  *config.Config
	Client  client.IClient
	Store   prefs.IStore
	Session *session.Manager
	Console *Console
}

type CreateFunc func(ctx *Context) *cobra.Command

func register(cr CreateFunc) {
	cmds = append(cmds, cr)
}

func initContext(ctx *Context, cfgs []string) error {
	var c *config.Config
	var err error
	for _, cfg := range cfgs {
		if len(cfg) == 0 {
			continue
		}
		c, err = config.Parse(cfg)
		if err == nil {
			break
		}
	}
	if c == nil && err == nil {
		return fmt.Errorf("no config file found")
	}
	if c == nil {
		return fmt.Errorf("no valid config file found, last err:%w", err)
	}
	ctx.Config = c
	logger.Init("", c.LogLevel, 0, 0, 0, true)
	su, err := url.Parse(c.Server)
	if err != nil || len(su.Host) == 0 {
		return fmt.Errorf("invalid server:%s", c.Server)
	}
	cli, err := client.New(client.WithSchema(su.Scheme), client.WithHost(su.Host), client.WithTimeout(time.Duration(c.Timeout)*time.Second))
	if err != nil {
		return err
	}
	store, err := prefs.NewFileStore(c.StateFile)
	if err != nil {
		return err
	}
	ctx.Client = cli
	ctx.Store = store
	ctx.Console = NewConsole(os.Stdin, os.Stderr)
	ctx.Session = session.New(cli, store, ctx.Console,
		session.WithEnforcedURLs(c.EnforcedURLs...),
		session.WithBuiltinServerURL(c.BuiltinServerURL),
	)
	return nil
}

func NewRoot() *cobra.Command {
	var configFile string
	ctx := &Context{}
	var rootCmd = &cobra.Command{
		Use:   "davc",
		Short: "WebDAV connector CLI tool",
	}
	for _, cr := range cmds {
		rootCmd.AddCommand(cr(ctx))
	}
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		envConfigFile, _ := os.LookupEnv(defaultConfigFileEnv)
		return initContext(ctx, []string{configFile, envConfigFile, "/etc/davc/davc_config.json", "C:/davc/davc_config.json"})
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file")
	return rootCmd
}

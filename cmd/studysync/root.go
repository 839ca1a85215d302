package main

import (
	"fmt"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/dailyyoga/studysync/app"
	"github.com/dailyyoga/studysync/config"
	"github.com/dailyyoga/studysync/logger"
)

// rootOptions holds the persistent flags shared by every command
type rootOptions struct {
	configFile string
	envFile    string
	token      string
	baseURL    string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "studysync",
		Short:         "Student finance, job board and study tools from the terminal",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: checkUTF8,
	}
	addRootFlags(cmd, opts)

	cmd.AddCommand(
		newExpensesCmd(opts),
		newBudgetsCmd(opts),
		newJobsCmd(opts),
		newMindMapCmd(),
	)
	return cmd
}

// addRootFlags adds shared flags to the root command
func addRootFlags(cmd *cobra.Command, opts *rootOptions) {
	f := cmd.PersistentFlags()
	f.StringVarP(&opts.configFile, "config", "c", "", "config file path")
	f.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the config, ignored when missing")
	f.StringVar(&opts.token, "token", "", "session token (default $"+config.EnvToken+")")
	f.StringVar(&opts.baseURL, "base-url", "", "backend API root (default $"+config.EnvBaseURL+")")
	f.BoolVarP(&opts.debug, "debug", "d", false, "enable debug logging")
}

// checkUTF8 rejects arguments and flag values that are not valid UTF-8;
// they end up in cache keys, which require it.
func checkUTF8(cmd *cobra.Command, args []string) error {
	for _, a := range args {
		if !utf8.ValidString(a) {
			return fmt.Errorf("argument %q is not valid utf-8", a)
		}
	}
	var err error
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if err == nil && !utf8.ValidString(f.Value.String()) {
			err = fmt.Errorf("--%s value %q is not valid utf-8", f.Name, f.Value.String())
		}
	})
	return err
}

// open loads the configuration, applies flag overrides and starts an app
// whose notifications print to the command's output ahead of its result.
func (o *rootOptions) open(cmd *cobra.Command) (*app.App, error) {
	if err := config.LoadEnvFile(o.envFile); err != nil {
		return nil, err
	}
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, err
	}
	a, err := app.New(log, cfg, app.WithOutput(cmd.OutOrStdout()), app.WithSyncNotify())
	if err != nil {
		return nil, err
	}
	if err := a.Start(cmd.Context()); err != nil {
		_ = a.Close()
		return nil, err
	}
	if !a.Auth.Authenticated() {
		log.Warn("no session token, requests are sent anonymously", zap.String("flag", "--token"))
	}
	return a, nil
}

func (o *rootOptions) load() (*config.Config, error) {
	level := ""
	if o.debug {
		level = "debug"
	}
	return config.Load(o.configFile,
		config.WithToken(o.token),
		config.WithBaseURL(o.baseURL),
		config.WithLogLevel(level),
	)
}

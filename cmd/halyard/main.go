// Command halyard is a terminal client for a halyard chat server: log in,
// stream conversational turns, and browse past conversations.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/halyard-ai/halyard/client"
	"github.com/halyard-ai/halyard/config"
	"github.com/halyard-ai/halyard/session"
	"github.com/halyard-ai/halyard/slogger"
)

var (
	flagConfig   string
	flagServer   string
	flagProfile  string
	flagLogLevel string
)

func main() {
	root := &cobra.Command{
		Use:           "halyard",
		Short:         "Terminal client for a halyard chat server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (YAML or JSON)")
	root.PersistentFlags().StringVar(&flagServer, "server", "", "server base URL")
	root.PersistentFlags().StringVar(&flagProfile, "profile", "", "session profile name")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newLoginCommand(),
		newChatCommand(),
		newConversationsCommand(),
		newHistoryCommand(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app bundles everything a command needs: resolved config, logger, session
// store, and the persisted session when one exists.
type app struct {
	cfg    *config.Config
	logger slogger.Logger
	store  session.Store
	sess   *session.Session
}

// loadApp resolves config, flags, and the persisted session. When
// requireSession is set, a missing or unauthenticated session is an error.
func loadApp(cmd *cobra.Command, requireSession bool) (*app, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagServer != "" {
		cfg.ServerURL = flagServer
	}
	if flagProfile != "" {
		cfg.Profile = flagProfile
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}

	logger := slogger.New(slogger.LevelFromString(cfg.LogLevel))

	store, err := session.NewFileStore(cfg.SessionDir)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, store: store}

	sess, err := store.Load(cmd.Context(), cfg.Profile)
	switch {
	case err == nil:
		a.sess = sess
	case err == session.ErrNotFound:
		if requireSession {
			return nil, fmt.Errorf("not logged in (profile %q); run 'halyard login' first", cfg.Profile)
		}
	default:
		return nil, err
	}
	return a, nil
}

// newClient builds an authenticated API client from the loaded session.
func (a *app) newClient() (*client.Client, error) {
	serverURL := a.cfg.ServerURL
	if serverURL == "" && a.sess != nil {
		serverURL = a.sess.ServerURL
	}
	if serverURL == "" {
		return nil, fmt.Errorf("no server URL configured; pass --server or set server_url in the config file")
	}
	opts := []client.Option{client.WithLogger(a.logger)}
	if a.sess != nil {
		opts = append(opts, client.WithToken(a.sess.AccessToken))
	}
	return client.New(serverURL, opts...), nil
}

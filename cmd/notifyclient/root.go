package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/collabhub/notifyclient"
	"github.com/collabhub/notifyclient/httpclient"
	"github.com/collabhub/notifyclient/internal/config"
	"github.com/collabhub/notifyclient/pkg/auth"
	"github.com/collabhub/notifyclient/pkg/connection/rews"
	"github.com/collabhub/notifyclient/pkg/logger"
	"github.com/collabhub/notifyclient/pkg/store"
)

// deps are the collaborators the commands need; tests replace them.
type deps struct {
	openKeyring    func(cfg config.KeyringConfig) (*auth.Keyring, error)
	connectTimeout time.Duration
}

func defaultDeps() *deps {
	return &deps{
		openKeyring: func(cfg config.KeyringConfig) (*auth.Keyring, error) {
			return auth.OpenKeyring(auth.KeyringConfig{
				ServiceName:  cfg.Service,
				FileDir:      cfg.Dir,
				FilePassword: cfg.Password,
			})
		},
		connectTimeout: 10 * time.Second,
	}
}

// app is the state shared by every command of one invocation.
type app struct {
	deps *deps

	configPath string
	logLevel   string

	cfg  *config.Config
	log  *logger.LogData
	ring *auth.Keyring
}

// NewRootCmd creates the command tree with explicit dependencies.
func NewRootCmd(d *deps) *cobra.Command {
	if d == nil {
		panic("NewRootCmd: deps cannot be nil")
	}
	a := &app{deps: d}

	rootCmd := &cobra.Command{
		Use:           "notifyclient",
		Short:         "Follow your collaboration notifications from the terminal",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.log != nil {
				return a.log.Close()
			}
			return nil
		},
	}
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultPath(), "config file")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (overrides log.level)")

	rootCmd.AddCommand(
		NewLoginCmd(a),
		NewLogoutCmd(a),
		NewListCmd(a),
		NewWatchCmd(a),
		NewReadCmd(a),
		NewHideCmd(a),
		NewActionCmd(a),
	)
	return rootCmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := cfg.Log.Level
	if a.logLevel != "" {
		level = a.logLevel
	}
	build := logger.New().Level(level).FromBuffer(cmd.ErrOrStderr())
	if cfg.Log.File != "" {
		build = build.FromPath(cfg.Log.File)
	}
	a.log, err = build.Make()
	if err != nil {
		return fmt.Errorf("opening log: %w", err)
	}

	a.ring, err = a.deps.openKeyring(cfg.Keyring)
	return err
}

func (a *app) restClient() (*httpclient.Client, error) {
	u, err := a.cfg.NotificationsURL()
	if err != nil {
		return nil, err
	}
	return httpclient.New(u, a.ring,
		httpclient.WithAuthScheme(a.cfg.API.AuthScheme),
		httpclient.WithTimeout(a.cfg.API.Timeout),
		httpclient.WithLogger(a.log),
	), nil
}

// withClient runs fn inside a started session. With waitChannel, fn only
// runs once the push channel is open, since intents are never queued.
func (a *app) withClient(ctx context.Context, cmd *cobra.Command, waitChannel bool, fn func(c *notifyclient.Client) error, opts ...notifyclient.Option) error {
	u, err := a.cfg.NotificationsURL()
	if err != nil {
		return err
	}

	states := make(chan rews.State, 16)
	opts = append([]notifyclient.Option{
		notifyclient.WithLogger(a.log),
		notifyclient.WithTokenSource(a.ring),
		notifyclient.WithRetryer(a.cfg.Reconnect.Retryer()),
		notifyclient.WithNavigator(store.NavigatorFunc(func(url string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "Open %s\n", url)
			return nil
		})),
		notifyclient.WithStateListener(func(s rews.State) {
			select {
			case states <- s:
			default:
			}
		}),
	}, opts...)

	c, err := notifyclient.New(notifyclient.Config{
		NotificationsURL: u,
		WSURL:            a.cfg.API.WSURL,
		AuthScheme:       a.cfg.API.AuthScheme,
		HTTPTimeout:      a.cfg.API.Timeout,
	}, opts...)
	if err != nil {
		return err
	}

	if err := c.Start(ctx, notifyclient.Session{}); err != nil {
		if errors.Is(err, errNoToken) {
			return errNotLoggedIn
		}
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = c.Stop(stopCtx)
	}()

	if waitChannel {
		if err := waitConnected(ctx, c, states, a.deps.connectTimeout); err != nil {
			return err
		}
	}
	return fn(c)
}

func waitConnected(ctx context.Context, c *notifyclient.Client, states <-chan rews.State, timeout time.Duration) error {
	if c.State() == rews.StateConnected {
		return nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case s := <-states:
			switch s {
			case rews.StateConnected:
				return nil
			case rews.StateExhausted, rews.StateDisconnected:
				return fmt.Errorf("notification channel unavailable (%s)", s)
			}
		case <-timer.C:
			return fmt.Errorf("notification channel did not open within %s", timeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

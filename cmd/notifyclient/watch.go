package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/collabhub/notifyclient"
	"github.com/collabhub/notifyclient/pkg/store"
)

// NewWatchCmd follows the feed until interrupted.
func NewWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow notifications in real time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			return a.withClient(ctx, cmd, false, func(c *notifyclient.Client) error {
				views := make(chan store.View, 1)
				unsubscribe := c.Store().Subscribe(func(v store.View) {
					// Deliveries are serialized; only the latest view matters.
					select {
					case <-views:
					default:
					}
					views <- v
				})
				defer unsubscribe()

				current := c.Store().View()
				renderView(out, current)
				for {
					select {
					case v := <-views:
						// May predate the view rendered above.
						if v.Seq <= current.Seq {
							continue
						}
						current = v
						renderView(out, v)
					case <-ctx.Done():
						return nil
					}
				}
			}, notifyclient.OnTransportError(func(code int, reason string) {
				fmt.Fprintf(cmd.ErrOrStderr(), "connection lost (%d %s), reconnecting\n", code, reason)
			}))
		},
	}
}

func renderView(w io.Writer, v store.View) {
	fmt.Fprintf(w, "--- %d notifications, %d unread\n", len(v.Notifications), v.Unread)
	if v.Err != nil {
		fmt.Fprintf(w, "!!! %v\n", v.Err)
	}
	renderNotifications(w, v.Notifications)
}

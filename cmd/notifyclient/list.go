package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/collabhub/notifyclient/pkg/models"
)

// NewListCmd prints the current snapshot without opening the push channel.
func NewListCmd(a *app) *cobra.Command {
	var unreadOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rest, err := a.restClient()
			if err != nil {
				return err
			}
			list, err := rest.ListNotifications(cmd.Context())
			if errors.Is(err, errNoToken) {
				return errNotLoggedIn
			}
			if err != nil {
				return fmt.Errorf("list: %w", err)
			}
			if unreadOnly {
				list = filterUnread(list)
			}
			renderNotifications(cmd.OutOrStdout(), list)
			return nil
		},
	}
	cmd.Flags().BoolVar(&unreadOnly, "unread", false, "only show unread notifications")
	return cmd
}

func filterUnread(list []models.Notification) []models.Notification {
	out := list[:0:0]
	for _, n := range list {
		if !n.IsRead {
			out = append(out, n)
		}
	}
	return out
}

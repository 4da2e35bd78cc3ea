package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/collabhub/notifyclient"
	"github.com/collabhub/notifyclient/pkg/models"
)

func parseID(s string) (models.NotificationID, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid notification id %q", s)
	}
	return id, nil
}

// intentArgs accepts exactly one id, or none with --all.
func intentArgs(all *bool) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		switch {
		case *all && len(args) > 0:
			return errors.New("either an id or --all, not both")
		case !*all && len(args) != 1:
			return errors.New("an id or --all is required")
		}
		return nil
	}
}

// NewReadCmd marks one or all notifications as read.
func NewReadCmd(a *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "read <id> | --all",
		Short: "Mark notifications as read",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd.Context(), cmd, true, func(c *notifyclient.Client) error {
				if all {
					if err := c.Store().MarkAllRead(); err != nil {
						return fmt.Errorf("read: %w", err)
					}
					fmt.Fprintln(cmd.OutOrStdout(), "All notifications marked as read")
					return nil
				}
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				if err := c.Store().MarkRead(id); err != nil {
					return fmt.Errorf("read: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Notification %d marked as read\n", id)
				return nil
			})
		},
	}
	cmd.Args = intentArgs(&all)
	cmd.Flags().BoolVar(&all, "all", false, "mark every notification as read")
	return cmd
}

// NewHideCmd hides one or all notifications.
func NewHideCmd(a *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "hide <id> | --all",
		Short: "Hide notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd.Context(), cmd, true, func(c *notifyclient.Client) error {
				if all {
					if err := c.Store().HideAll(); err != nil {
						return fmt.Errorf("hide: %w", err)
					}
					fmt.Fprintln(cmd.OutOrStdout(), "All notifications hidden")
					return nil
				}
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				if err := c.Store().Hide(id); err != nil {
					return fmt.Errorf("hide: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Notification %d hidden\n", id)
				return nil
			})
		},
	}
	cmd.Args = intentArgs(&all)
	cmd.Flags().BoolVar(&all, "all", false, "hide every notification")
	return cmd
}

// NewActionCmd triggers the index-th action of a notification.
func NewActionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "action <id> <index>",
		Short: "Trigger a notification action",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			index, err := strconv.Atoi(args[1])
			if err != nil || index < 0 {
				return fmt.Errorf("invalid action index %q", args[1])
			}
			return a.withClient(cmd.Context(), cmd, false, func(c *notifyclient.Client) error {
				if err := c.Store().TriggerActionAt(cmd.Context(), id, index); err != nil {
					return fmt.Errorf("action: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Done")
				return nil
			})
		},
	}
}

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"dday/internal/app"
	"dday/internal/model"
)

func init() {
	// sort
	sortCmd := &cobra.Command{
		Use:   "sort [asc|desc|user]",
		Short: "Show or change the sort option",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openCLI()
			if err != nil {
				return err
			}
			defer rt.Close()

			if len(args) == 1 {
				opt, err := parseSortArg(args[0])
				if err != nil {
					return err
				}
				if err := rt.svc.SetSortOption(cmd.Context(), opt); err != nil {
					return err
				}
			}
			s, err := rt.svc.Settings(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(os.Stdout, "%s (%s)\n", s.SortOption, s.SortOption.DisplayName())
			return nil
		},
	}
	rootCmd.AddCommand(sortCmd)

	// order
	orderCmd := &cobra.Command{
		Use:   "order ID [ID...]",
		Short: "Move events to the front, in the given order, and switch to user-defined sorting",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]string, 0, len(args))
			for _, a := range args {
				id, err := parseID(a)
				if err != nil {
					return err
				}
				ids = append(ids, id.String())
			}
			rt, err := openCLI()
			if err != nil {
				return err
			}
			defer rt.Close()

			if _, err := rt.svc.Reorder(cmd.Context(), ids); err != nil {
				return err
			}
			rows, err := rt.svc.List(cmd.Context())
			if err != nil {
				return err
			}
			return writeRows(os.Stdout, rows)
		},
	}
	rootCmd.AddCommand(orderCmd)

	// settings
	var autoDelete, notifications string
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change auto-delete and notification settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openCLI()
			if err != nil {
				return err
			}
			defer rt.Close()
			ctx := cmd.Context()

			if autoDelete != "" {
				on, err := parseToggle(autoDelete)
				if err != nil {
					return err
				}
				if err := rt.svc.SetAutoDelete(ctx, on); err != nil {
					return err
				}
			}
			if notifications != "" {
				on, err := parseToggle(notifications)
				if err != nil {
					return err
				}
				s, err := rt.svc.SetNotificationsEnabled(ctx, on)
				if err != nil {
					return err
				}
				if on && !s.NotificationsEnabled {
					_, _ = fmt.Fprintln(os.Stderr, "notifications are not permitted (notifications.permission is denied)")
				}
			}

			s, err := rt.svc.Settings(ctx)
			if err != nil {
				return err
			}
			writeSettings(os.Stdout, s)
			return nil
		},
	}
	settingsCmd.Flags().StringVar(&autoDelete, "auto-delete", "", "Delete past countdown events automatically (on|off)")
	settingsCmd.Flags().StringVar(&notifications, "notifications", "", "Alert on the target day (on|off)")
	rootCmd.AddCommand(settingsCmd)
}

// parseSortArg accepts short names as well as the stored raw values.
func parseSortArg(s string) (model.SortOption, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "ascending", strings.ToLower(string(model.SortAscending)):
		return model.SortAscending, nil
	case "desc", "descending", strings.ToLower(string(model.SortDescending)):
		return model.SortDescending, nil
	case "user", "custom", "manual", strings.ToLower(string(model.SortUserDefined)):
		return model.SortUserDefined, nil
	}
	return "", fmt.Errorf("unknown sort option %q (want asc, desc or user)", s)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func writeSettings(w io.Writer, s app.Settings) {
	_, _ = fmt.Fprintf(w, "sort:           %s (%s)\n", s.SortOption, s.SortOption.DisplayName())
	_, _ = fmt.Fprintf(w, "auto-delete:    %s\n", onOff(s.AutoDeletePast))
	_, _ = fmt.Fprintf(w, "notifications:  %s", onOff(s.NotificationsEnabled))
	if s.NotificationsWanted && !s.Authorized {
		_, _ = fmt.Fprint(w, " (not permitted)")
	}
	_, _ = fmt.Fprintln(w)
	if len(s.UserOrder) > 0 {
		_, _ = fmt.Fprintf(w, "user order:     %d id(s)\n", len(s.UserOrder))
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"dday/internal/app"
	"dday/internal/dday"
	"dday/internal/model"
)

func init() {
	// add
	var addDate, addKind string
	var addIn int
	addCmd := &cobra.Command{
		Use:   "add TITLE",
		Short: "Add a D-day event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openCLI()
			if err != nil {
				return err
			}
			defer rt.Close()

			target, err := resolveTarget(addDate, addIn, cmd.Flags().Changed("in"), rt.clock.Now())
			if err != nil {
				return err
			}
			kind, err := model.ParseEventKind(addKind)
			if err != nil {
				return err
			}
			ev, err := rt.svc.Create(cmd.Context(), args[0], target, kind)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, ev.ID.String())
			return nil
		},
	}
	addCmd.Flags().StringVarP(&addDate, "date", "d", "", "Target date (YYYY-MM-DD, or \"today\")")
	addCmd.Flags().IntVarP(&addIn, "in", "i", 0, "Target date as days from today")
	addCmd.Flags().StringVarP(&addKind, "kind", "k", string(model.KindCountdown), "Event kind: countdown or dateCounter")
	rootCmd.AddCommand(addCmd)

	// list
	var listJSON bool
	listCmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List events in the current sort order",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openCLI()
			if err != nil {
				return err
			}
			defer rt.Close()

			rows, err := rt.svc.List(cmd.Context())
			if err != nil {
				return err
			}
			if listJSON {
				return writeRowsJSON(os.Stdout, rows, rt.clock.Now())
			}
			return writeRows(os.Stdout, rows)
		},
	}
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print rows as JSON")
	rootCmd.AddCommand(listCmd)

	// show
	showCmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show one event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			rt, err := openCLI()
			if err != nil {
				return err
			}
			defer rt.Close()

			ev, err := rt.svc.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			label := dday.LabelsFor(rt.cfg.Locale).Label(ev.TargetDate, rt.clock.Now())
			return writeRows(os.Stdout, []app.Row{{Event: ev, Label: label}})
		},
	}
	rootCmd.AddCommand(showCmd)

	// edit
	var editTitle, editDate, editKind string
	var editIn int
	editCmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Edit an event's title, date or kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			rt, err := openCLI()
			if err != nil {
				return err
			}
			defer rt.Close()

			var p app.Patch
			if cmd.Flags().Changed("title") {
				p.Title = &editTitle
			}
			if editDate != "" || cmd.Flags().Changed("in") {
				t, err := resolveTarget(editDate, editIn, cmd.Flags().Changed("in"), rt.clock.Now())
				if err != nil {
					return err
				}
				p.TargetDate = &t
			}
			if editKind != "" {
				k, err := model.ParseEventKind(editKind)
				if err != nil {
					return err
				}
				p.Kind = &k
			}
			if p.Title == nil && p.TargetDate == nil && p.Kind == nil {
				return fmt.Errorf("nothing to change: pass --title, --date, --in or --kind")
			}

			ev, err := rt.svc.Update(cmd.Context(), id, p)
			if err != nil {
				return err
			}
			label := dday.LabelsFor(rt.cfg.Locale).Label(ev.TargetDate, rt.clock.Now())
			return writeRows(os.Stdout, []app.Row{{Event: ev, Label: label}})
		},
	}
	editCmd.Flags().StringVarP(&editTitle, "title", "t", "", "New title")
	editCmd.Flags().StringVarP(&editDate, "date", "d", "", "New target date (YYYY-MM-DD)")
	editCmd.Flags().IntVarP(&editIn, "in", "i", 0, "New target date as days from today")
	editCmd.Flags().StringVarP(&editKind, "kind", "k", "", "New kind: countdown or dateCounter")
	rootCmd.AddCommand(editCmd)

	// rm
	rmCmd := &cobra.Command{
		Use:     "rm ID [ID...]",
		Aliases: []string{"delete"},
		Short:   "Delete events",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]uuid.UUID, 0, len(args))
			for _, a := range args {
				id, err := parseID(a)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			rt, err := openCLI()
			if err != nil {
				return err
			}
			defer rt.Close()

			for _, id := range ids {
				if err := rt.svc.Delete(cmd.Context(), id); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(os.Stdout, "deleted", id.String())
			}
			return nil
		},
	}
	rootCmd.AddCommand(rmCmd)

	// prune
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete countdown events whose date has passed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openCLI()
			if err != nil {
				return err
			}
			defer rt.Close()

			removed, err := rt.svc.PruneExpired(cmd.Context())
			if err != nil {
				return err
			}
			for _, ev := range removed {
				_, _ = fmt.Fprintf(os.Stdout, "deleted %s %s\n", ev.ID, ev.Title)
			}
			_, _ = fmt.Fprintf(os.Stdout, "%d event(s) pruned\n", len(removed))
			return nil
		},
	}
	rootCmd.AddCommand(pruneCmd)

	// refresh
	refreshCmd := &cobra.Command{
		Use:   "refresh",
		Short: "Recompute every label and rewrite the widget snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openCLI()
			if err != nil {
				return err
			}
			defer rt.Close()
			return rt.svc.Refresh(cmd.Context())
		},
	}
	rootCmd.AddCommand(refreshCmd)
}

// parseID accepts only a full event identifier; titles are not unique.
func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid event id %q: %w", s, err)
	}
	return id, nil
}

// resolveTarget picks the target day from --date or --in (exactly one).
func resolveTarget(date string, in int, inSet bool, now time.Time) (time.Time, error) {
	switch {
	case date != "" && inSet:
		return time.Time{}, fmt.Errorf("use either --date or --in, not both")
	case inSet:
		return dday.StartOfDay(now).AddDate(0, 0, in), nil
	case date != "":
		return parseDate(date, now)
	default:
		return time.Time{}, fmt.Errorf("a target date is required (--date or --in)")
	}
}

// parseDate reads a calendar day in now's location.
func parseDate(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "today", "오늘":
		return dday.StartOfDay(now), nil
	case "tomorrow", "내일":
		return dday.StartOfDay(now).AddDate(0, 0, 1), nil
	}
	for _, layout := range []string{"2006-01-02", "2006.01.02", "20060102"} {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
}

func writeRows(w io.Writer, rows []app.Row) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "LABEL\tTITLE\tDATE\tKIND\tID")
	for _, r := range rows {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.Label,
			r.Event.Title,
			r.Event.TargetDate.Format("2006-01-02"),
			r.Event.Kind,
			r.Event.ID,
		)
	}
	return tw.Flush()
}

type rowJSON struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Label      string `json:"label"`
	TargetDate string `json:"targetDate"`
	Kind       string `json:"kind"`
	DaysLeft   int    `json:"daysLeft"`
}

func writeRowsJSON(w io.Writer, rows []app.Row, now time.Time) error {
	out := make([]rowJSON, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowJSON{
			ID:         r.Event.ID.String(),
			Title:      r.Event.Title,
			Label:      r.Label,
			TargetDate: r.Event.TargetDate.Format("2006-01-02"),
			Kind:       string(r.Event.Kind),
			DaysLeft:   dday.DaysBetween(now, r.Event.TargetDate),
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// parseToggle reads on/off style flag values.
func parseToggle(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "yes", "켜기":
		return true, nil
	case "off", "no", "끄기":
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid toggle %q (want on or off)", s)
	}
	return b, nil
}

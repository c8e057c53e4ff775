package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"dday/internal/ics"
	appLog "dday/internal/log"
	"dday/internal/model"
)

func init() {
	// export
	var exportOut string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export events as an iCalendar file",
		Args:  cobra.NoArgs,
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
			events := make([]model.Event, 0, len(rows))
			for _, r := range rows {
				events = append(events, r.Event)
			}
			body := ics.Export(events, rt.loc, rt.clock.Now())

			if exportOut == "" || exportOut == "-" {
				_, err := io.WriteString(os.Stdout, body)
				return err
			}
			if err := os.WriteFile(exportOut, []byte(body), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", exportOut, err)
			}
			appLog.Info("events exported", "path", exportOut, "count", len(events))
			return nil
		},
	}
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "Output file (default stdout)")
	rootCmd.AddCommand(exportCmd)

	// import
	var dryRun bool
	importCmd := &cobra.Command{
		Use:   "import FILE|URL",
		Short: "Import events from an iCalendar file or subscription URL",
		Long: "Import creates one event per calendar entry. Recurring entries use their next\n" +
			"occurrence from today; entries already present (same id, or same title and date)\n" +
			"are skipped.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openCLI()
			if err != nil {
				return err
			}
			defer rt.Close()

			fetcher := ics.NewFetcher(filepath.Join(rt.cfg.DataDir, "ics-cache"))
			res, err := fetcher.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			parsed, err := ics.ParseICS(res.Source, res.Body, rt.loc)
			if err != nil {
				return err
			}
			drafts := ics.Drafts(parsed, rt.clock.Now())

			created, skipped, err := importDrafts(cmd.Context(), rt, drafts, dryRun, os.Stdout)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(os.Stdout, "%d imported, %d skipped\n", created, skipped)
			return nil
		},
	}
	importCmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would be imported without saving")
	rootCmd.AddCommand(importCmd)
}

// importDrafts creates an event per draft that is not already stored.
func importDrafts(ctx context.Context, rt *runtime, drafts []ics.Draft, dryRun bool, w io.Writer) (created, skipped int, err error) {
	existing, err := rt.store.List(ctx)
	if err != nil {
		return 0, 0, err
	}
	ids := make(map[uuid.UUID]bool, len(existing))
	keys := make(map[string]bool, len(existing))
	for _, ev := range existing {
		ids[ev.ID] = true
		keys[draftKey(ev.Title, ev.TargetDate.Format("2006-01-02"))] = true
	}

	for _, d := range drafts {
		key := draftKey(d.Title, d.TargetDate.Format("2006-01-02"))
		if id, perr := uuid.Parse(d.UID); (perr == nil && ids[id]) || keys[key] {
			appLog.Debug("ics import: already present", "uid", d.UID, "title", d.Title)
			skipped++
			continue
		}
		keys[key] = true

		if dryRun {
			_, _ = fmt.Fprintf(w, "would import %s %s (%s)\n", d.TargetDate.Format("2006-01-02"), d.Title, d.Kind)
			created++
			continue
		}
		ev, cerr := rt.svc.Create(ctx, d.Title, d.TargetDate, d.Kind)
		if cerr != nil {
			return created, skipped, fmt.Errorf("import %q: %w", d.Title, cerr)
		}
		_, _ = fmt.Fprintf(w, "imported %s %s %s\n", ev.ID, ev.TargetDate.Format("2006-01-02"), ev.Title)
		created++
	}
	return created, skipped, nil
}

func draftKey(title, day string) string {
	return strings.ToLower(strings.TrimSpace(title)) + "|" + day
}

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/talentscout/backend/internal/config"
	"github.com/zhouzirui/talentscout/backend/internal/model/candidate"
	"github.com/zhouzirui/talentscout/backend/internal/store"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List saved candidate records",
	Long:  "List the candidate records saved by finished conversations, oldest first, from the configured store.",
	RunE:  runRecords,
}

var recordsJSON bool

func init() {
	recordsCmd.Flags().BoolVar(&recordsJSON, "json", false, "Print the records as a JSON array")

	rootCmd.AddCommand(recordsCmd)
}

func runRecords(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	records, err := store.Open(cmd.Context(), cfg.Store, nil)
	if err != nil {
		return err
	}
	defer records.Close()

	list, err := records.List(cmd.Context())
	if err != nil {
		return err
	}
	return printRecords(cmd.OutOrStdout(), list, recordsJSON)
}

var (
	recordHeaderStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	recordFieldStyle  = lipgloss.NewStyle().Bold(true).Width(22)
)

func printRecords(w io.Writer, list []candidate.Record, asJSON bool) error {
	if asJSON {
		if list == nil {
			list = []candidate.Record{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}

	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No candidate records saved yet.")
		return err
	}

	for i, rec := range list {
		header := fmt.Sprintf("Candidate #%d", i+1)
		if !rec.CompletedAt.IsZero() {
			header += "  " + rec.CompletedAt.UTC().Format(candidate.TimestampLayout)
		}
		if _, err := fmt.Fprintln(w, recordHeaderStyle.Render(header)); err != nil {
			return err
		}
		for _, row := range rec.Snapshot() {
			if _, err := fmt.Fprintln(w, recordFieldStyle.Render(row.Field)+row.Value); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

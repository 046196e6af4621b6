package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/Dosada05/tournament-divisions/brackets"
	"github.com/Dosada05/tournament-divisions/divisions"
	"github.com/Dosada05/tournament-divisions/models"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type rosterFile struct {
	Competitors []models.Competitor `yaml:"competitors"`
}

type classifyOptions struct {
	rosterPath string
	rulesPath  string
	brackets   bool
	asJSON     bool
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "divisionctl",
		Short:         "Inspect rule tables and dry-run division classification",
		SilenceUsage:  true,
	}
	root.AddCommand(newRulesCmd(), newClassifyCmd())
	return root
}

func newRulesCmd() *cobra.Command {
	rules := &cobra.Command{
		Use:   "rules",
		Short: "Work with rule tables",
	}

	validate := &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a rule table file, or the embedded one when no file is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			table, err := loadRules(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rule table %s is valid: %d categories\n", describeSource(path), len(table.Categories))
			return nil
		},
	}

	var rulesPath string
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the active rule table as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			table, err := loadRules(rulesPath)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(table); err != nil {
				return fmt.Errorf("encode rule table: %w", err)
			}
			return enc.Close()
		},
	}
	show.Flags().StringVar(&rulesPath, "rules", "", "rule table file (default: embedded table)")

	rules.AddCommand(validate, show)
	return rules
}

func newClassifyCmd() *cobra.Command {
	var opts classifyOptions
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a roster into divisions and optionally build their brackets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runClassify(cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.rosterPath, "roster", "", "YAML roster file with a top-level competitors list")
	cmd.Flags().StringVar(&opts.rulesPath, "rules", "", "rule table file (default: embedded table)")
	cmd.Flags().BoolVar(&opts.brackets, "brackets", false, "also build the bracket of every ready division")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print machine-readable JSON")
	_ = cmd.MarkFlagRequired("roster")
	return cmd
}

type divisionReport struct {
	Division models.Division  `json:"division"`
	Rounds   []brackets.Round `json:"rounds,omitempty"`
}

type classifyReport struct {
	Divisions []divisionReport `json:"divisions"`
	Skipped   []divisions.Skip `json:"skipped"`
}

func runClassify(out io.Writer, opts classifyOptions) error {
	table, err := loadRules(opts.rulesPath)
	if err != nil {
		return err
	}
	roster, err := loadRoster(opts.rosterPath)
	if err != nil {
		return err
	}

	res, err := divisions.ClassifyWithReasons(roster, table)
	if err != nil {
		return err
	}

	report := classifyReport{Skipped: res.Skipped}
	for i, d := range res.Divisions {
		d.ID = i + 1
		entry := divisionReport{Division: d}
		if opts.brackets && d.Ready {
			matches, err := brackets.Build(d.ID, brackets.Seed(d.Participants))
			if err != nil {
				return fmt.Errorf("build bracket for %q: %w", d.Name, err)
			}
			entry.Rounds = brackets.GroupByRound(matches)
		}
		report.Divisions = append(report.Divisions, entry)
	}

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return printReport(out, report)
}

func printReport(out io.Writer, report classifyReport) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tDIVISION\tPARTICIPANTS\tREADY")
	for _, entry := range report.Divisions {
		d := entry.Division
		fmt.Fprintf(tw, "%d\t%s\t%d\t%t\n", d.ID, d.Name, d.ParticipantCount(), d.Ready)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, entry := range report.Divisions {
		if len(entry.Rounds) == 0 {
			continue
		}
		fmt.Fprintf(out, "\n%s\n", entry.Division.Name)
		for _, round := range entry.Rounds {
			parts := make([]string, 0, len(round.Matches))
			for _, m := range round.Matches {
				parts = append(parts, describeMatch(m))
			}
			fmt.Fprintf(out, "  round %d: %s\n", round.Number, strings.Join(parts, "  "))
		}
	}

	if len(report.Skipped) > 0 {
		fmt.Fprintf(out, "\nskipped %d competitor(s):\n", len(report.Skipped))
		for _, s := range report.Skipped {
			fmt.Fprintf(out, "  %d: %s\n", s.CompetitorID, s.Reason)
		}
	}
	return nil
}

func describeMatch(m models.Match) string {
	slot := func(p *int) string {
		if p == nil {
			return "-"
		}
		return fmt.Sprint(*p)
	}
	s := fmt.Sprintf("%s[%s v %s]", m.UID(), slot(m.Slot1ID), slot(m.Slot2ID))
	if m.IsBye {
		s += "(bye)"
	}
	return s
}

func loadRules(path string) (models.RuleTable, error) {
	if path == "" {
		return divisions.DefaultRuleTable(), nil
	}
	return divisions.LoadRuleTable(path)
}

func describeSource(path string) string {
	if path == "" {
		return "(embedded)"
	}
	return path
}

func loadRoster(path string) ([]models.Competitor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	var roster rosterFile
	if err := yaml.Unmarshal(data, &roster); err != nil {
		return nil, fmt.Errorf("decode roster %s: %w", path, err)
	}
	return roster.Competitors, nil
}

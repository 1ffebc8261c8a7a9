package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/mithaq/backend/matching"
)

var scoreCmd = &cobra.Command{
	Use:   "score <profile-a.json> <profile-b.json>",
	Short: "Score two profile documents against each other",
	Long: `Score two profile documents with the configured factor weights and
print the per-factor breakdown.

Examples:
  mithaq score omar.json aisha.json
  mithaq score -o json omar.json aisha.json`,
	Args: cobra.ExactArgs(2),
	RunE: runScore,
}

var moderateType string

var moderateCmd = &cobra.Command{
	Use:   "moderate [text | -]",
	Short: "Run the moderation filter",
	Long: `Run the moderation filter on text, or on a profile document with
--type profile. "-" reads the content from stdin.

Examples:
  mithaq moderate "some chat message"
  mithaq moderate --type profile - < profile.json`,
	Args: cobra.ExactArgs(1),
	RunE: runModerate,
}

var completenessCmd = &cobra.Command{
	Use:   "completeness <profile.json>",
	Short: "Show the completion status of a profile document",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompleteness,
}

func init() {
	moderateCmd.Flags().StringVarP(&moderateType, "type", "t", matching.ContentTypeMessage,
		"content type (message, profile, or any label)")
	rootCmd.AddCommand(scoreCmd, moderateCmd, completenessCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	scorer, err := matching.NewScorer(cfg.Matching.Weights)
	if err != nil {
		return err
	}
	a, err := readProfile(args[0])
	if err != nil {
		return err
	}
	b, err := readProfile(args[1])
	if err != nil {
		return err
	}

	details := scorer.Details(a, b)
	out := cmd.OutOrStdout()
	if outputFmt == "json" {
		return writeJSONOutput(out, details)
	}
	return compatibilityTable(out, scorer.Calculate(a, b), details)
}

func compatibilityTable(w io.Writer, c matching.Compatibility, d matching.CompatibilityDetails) error {
	table := tablewriter.NewWriter(w)
	table.Header("Factor", "Points", "Possible", "Match")
	for _, f := range c.Factors {
		cat := d.Categories[f.Factor]
		if err := table.Append([]string{
			f.Factor,
			strconv.Itoa(cat.Earned),
			strconv.Itoa(cat.Possible),
			yesNo(f.Match),
		}); err != nil {
			return err
		}
	}
	table.Footer("Score", strconv.Itoa(d.Score), strconv.Itoa(matching.MaxScore), "")
	return table.Render()
}

func runModerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	filter := matching.NewFilter(cfg.Moderation.Words)

	content := args[0]
	if content == "-" {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return err
		}
		content = string(raw)
	}

	report, err := filter.Report(content, moderateType)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if outputFmt == "json" {
		return writeJSONOutput(out, report)
	}

	flagged := report.FlaggedWords
	label := "Flagged words"
	if report.ContentType == matching.ContentTypeProfile {
		flagged, label = report.FlaggedFields, "Flagged fields"
	}
	table := tablewriter.NewWriter(out)
	table.Header("Check", "Result")
	rows := [][]string{
		{"Content type", report.ContentType},
		{"Appropriate", yesNo(report.IsAppropriate)},
		{label, strings.Join(flagged, ", ")},
		{"Score", strconv.FormatFloat(report.ModerationScore, 'f', 2, 64)},
		{"Needs review", yesNo(report.NeedsReview)},
	}
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

func runCompleteness(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	p, err := readProfile(args[0])
	if err != nil {
		return err
	}

	d := matching.GetCompletionDetails(p)
	d.IsComplete = matching.IsProfileComplete(p, cfg.Matching.CompletionThreshold)
	out := cmd.OutOrStdout()
	if outputFmt == "json" {
		return writeJSONOutput(out, d)
	}

	missing := make(map[string]bool, len(d.MissingFields))
	for _, f := range d.MissingFields {
		missing[f] = true
	}
	table := tablewriter.NewWriter(out)
	table.Header("Field", "Status")
	for _, f := range matching.RequiredFields(p) {
		status := "present"
		if missing[f] {
			status = "missing"
		}
		if err := table.Append([]string{f, status}); err != nil {
			return err
		}
	}
	table.Footer(fmt.Sprintf("%d%% (%s)", d.Completeness, d.Tier), yesNo(d.IsComplete))
	if err := table.Render(); err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, d.Message)
	return err
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"stitch/internal/api"
	"stitch/internal/identity"
	"stitch/internal/match"
)

func newDetectCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var outputPath string

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Scan all services and suggest identity mappings",
		Long: `Enumerate users from every enabled service, compare them pairwise, and
print mapping suggestions grouped by confidence. Save the result with
--output and approve it later with "stitch mappings approve".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(eng *api.Engine) error {
				result := eng.DetectMappings(cmd.Context())

				if outputPath != "" {
					if err := writeDetectionFile(outputPath, result); err != nil {
						return err
					}
				}
				if asJSON {
					return writeJSON(cmd, result)
				}

				renderDetection(cmd, result)
				if outputPath != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Saved detection result to %s\n", outputPath)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the detection result JSON to a file")
	return cmd
}

func renderDetection(cmd *cobra.Command, result *api.DetectionResult) {
	out := cmd.OutOrStdout()
	if result.TotalServices == 0 {
		fmt.Fprintln(out, "No services configured")
		return
	}

	fmt.Fprintf(out, "Scanned %d of %d services, %d users\n",
		result.ServicesScanned, result.TotalServices, result.TotalUsers)

	if len(result.Suggestions) == 0 {
		fmt.Fprintln(out, "No mapping suggestions")
	} else {
		rows := make([][]string, 0, len(result.Suggestions))
		for _, s := range result.Suggestions {
			rows = append(rows, []string{
				s.CentralUserID,
				fmt.Sprintf("%.2f", s.Confidence),
				string(s.Bucket),
				memberLabel(s.UserA),
				memberLabel(s.UserB),
				joinAttributes(s.Attributes),
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Central User", "Score", "Bucket", "User A", "User B", "Matched On"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
		))
		fmt.Fprintf(out, "%d suggestions: %d high, %d medium, %d low confidence\n",
			len(result.Suggestions), result.HighConfidence, result.MediumConfidence, result.LowConfidence)
	}

	if len(result.Identities) > 0 {
		fmt.Fprintf(out, "%d candidate identities\n", len(result.Identities))
	}
	if result.Incomplete {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: detection incomplete, one or more services could not be scanned")
	}
	for _, msg := range result.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", msg)
	}
}

func memberLabel(record identity.Record) string {
	return fmt.Sprintf("%s/%s", record.Service, record.Label())
}

func joinAttributes(attrs []match.Attribute) string {
	parts := make([]string, 0, len(attrs))
	for _, attr := range attrs {
		parts = append(parts, string(attr))
	}
	return strings.Join(parts, ", ")
}

func writeDetectionFile(path string, result *api.DetectionResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode detection result: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write detection result: %w", err)
	}
	return nil
}

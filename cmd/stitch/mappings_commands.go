package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"stitch/internal/api"
	"stitch/internal/config"
	"stitch/internal/identity"
	"stitch/internal/mapping"
)

func newMappingsCommand(ctx *commandContext) *cobra.Command {
	mappingsCmd := &cobra.Command{
		Use:   "mappings",
		Short: "Inspect and manage user mappings",
	}

	mappingsCmd.AddCommand(newMappingsListCommand(ctx))
	mappingsCmd.AddCommand(newMappingsCreateCommand(ctx))
	mappingsCmd.AddCommand(newMappingsUpdateCommand(ctx))
	mappingsCmd.AddCommand(newMappingsDeleteCommand(ctx))
	mappingsCmd.AddCommand(newMappingsApproveCommand(ctx))

	return mappingsCmd
}

func newMappingsListCommand(ctx *commandContext) *cobra.Command {
	var statusFlag string
	var serviceID int64
	var centralUser string
	var limit int
	var offset int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List user mappings",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := mapping.Filter{ServiceConfigID: serviceID}
			if trimmed := strings.TrimSpace(statusFlag); trimmed != "" {
				parsed, ok := mapping.ParseStatus(trimmed)
				if !ok {
					return fmt.Errorf("unknown status %q", trimmed)
				}
				filter.Status = parsed
			}
			if trimmed := strings.TrimSpace(centralUser); trimmed != "" {
				filter.CentralUserID = identity.CanonicalCentralID(trimmed)
			}

			return ctx.withEngine(func(eng *api.Engine) error {
				list, err := eng.ListMappings(cmd.Context(), filter, mapping.Page{Limit: limit, Offset: offset})
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, list)
				}

				out := cmd.OutOrStdout()
				if len(list.Mappings) == 0 {
					fmt.Fprintln(out, "No mappings found")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					mappingTableHeaders(),
					buildMappingRows(ctx.configValue(), list.Mappings),
					mappingTableAlignments(),
				))
				fmt.Fprintf(out, "Total: %d\n", list.Total)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&statusFlag, "status", "s", "", "Filter by mapping status")
	cmd.Flags().Int64Var(&serviceID, "service", 0, "Filter by service config id")
	cmd.Flags().StringVarP(&centralUser, "user", "u", "", "Filter by central user id")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum rows to return (0 for the default page size)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Rows to skip")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newMappingsCreateCommand(ctx *commandContext) *cobra.Command {
	var req mapping.NewMappingRequest
	var roleFlag string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a mapping between a central user and a service account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if trimmed := strings.TrimSpace(roleFlag); trimmed != "" {
				parsed, ok := mapping.ParseRole(trimmed)
				if !ok {
					return fmt.Errorf("unknown role %q", trimmed)
				}
				req.Role = parsed
			}

			return ctx.withEngine(func(eng *api.Engine) error {
				created, err := eng.CreateMapping(cmd.Context(), req)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, created)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created mapping %d: %s -> %s\n",
					created.ID, created.CentralUserID, serviceLabel(ctx.configValue(), created.ServiceConfigID))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&req.CentralUserID, "user", "u", "", "Central user id (required)")
	cmd.Flags().StringVar(&req.CentralUsername, "username", "", "Central display username")
	cmd.Flags().StringVar(&req.CentralEmail, "email", "", "Central email")
	cmd.Flags().Int64Var(&req.ServiceConfigID, "service", 0, "Service config id (required)")
	cmd.Flags().StringVar(&req.ServiceUserID, "service-user-id", "", "Native user id on the service")
	cmd.Flags().StringVar(&req.ServiceUsername, "service-username", "", "Username on the service")
	cmd.Flags().StringVar(&req.ServiceEmail, "service-email", "", "Email on the service")
	cmd.Flags().StringVar(&roleFlag, "role", "", "Role on the service (user, admin)")
	cmd.Flags().BoolVar(&req.SyncEnabled, "sync", true, "Enable scheduled sync for this mapping")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("service")
	return cmd
}

func newMappingsUpdateCommand(ctx *commandContext) *cobra.Command {
	var statusFlag string
	var roleFlag string
	var centralUsername string
	var serviceUsername string
	var syncEnabled bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update mapping fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseMappingID(args[0])
			if err != nil {
				return err
			}

			var req mapping.UpdateRequest
			changed := false
			if cmd.Flags().Changed("status") {
				parsed, ok := mapping.ParseStatus(statusFlag)
				if !ok {
					return fmt.Errorf("unknown status %q", statusFlag)
				}
				req.Status = &parsed
				changed = true
			}
			if cmd.Flags().Changed("role") {
				parsed, ok := mapping.ParseRole(roleFlag)
				if !ok {
					return fmt.Errorf("unknown role %q", roleFlag)
				}
				req.Role = &parsed
				changed = true
			}
			if cmd.Flags().Changed("username") {
				req.CentralUsername = &centralUsername
				changed = true
			}
			if cmd.Flags().Changed("service-username") {
				req.ServiceUsername = &serviceUsername
				changed = true
			}
			if cmd.Flags().Changed("sync-enabled") {
				req.SyncEnabled = &syncEnabled
				changed = true
			}
			if !changed {
				return fmt.Errorf("nothing to update; pass at least one field flag")
			}

			return ctx.withEngine(func(eng *api.Engine) error {
				updated, err := eng.UpdateMapping(cmd.Context(), id, req)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, updated)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					mappingTableHeaders(),
					buildMappingRows(ctx.configValue(), []*mapping.UserMapping{updated}),
					mappingTableAlignments(),
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&statusFlag, "status", "s", "", "New status (pending, active, syncing, failed)")
	cmd.Flags().StringVar(&roleFlag, "role", "", "New role (user, admin)")
	cmd.Flags().StringVar(&centralUsername, "username", "", "New central display username")
	cmd.Flags().StringVar(&serviceUsername, "service-username", "", "New username on the service")
	cmd.Flags().BoolVar(&syncEnabled, "sync-enabled", true, "Enable or disable scheduled sync")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newMappingsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a mapping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseMappingID(args[0])
			if err != nil {
				return err
			}
			return ctx.withEngine(func(eng *api.Engine) error {
				if err := eng.DeleteMapping(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted mapping %d\n", id)
				return nil
			})
		},
	}
}

func newMappingsApproveCommand(ctx *commandContext) *cobra.Command {
	var fromPath string
	var approveAll bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Create mappings from a saved detection result",
		Long: `Read a detection result written by "stitch detect --output" and turn its
suggestions into mappings. By default only high-confidence suggestions are
approved; pass --all to approve every suggestion in the file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readDetectionFile(fromPath)
			if err != nil {
				return err
			}
			if len(payload.Suggestions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No suggestions in detection result")
				return nil
			}

			return ctx.withEngine(func(eng *api.Engine) error {
				result, err := eng.CreateMappingsFromSuggestions(cmd.Context(), payload.Suggestions, !approveAll)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, result)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %d mappings\n", result.CreatedMappings)
				for _, msg := range result.Errors {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", msg)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&fromPath, "from", "f", "", "Detection result file (required)")
	cmd.Flags().BoolVar(&approveAll, "all", false, "Approve every suggestion, not just high confidence")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

func readDetectionFile(path string) (*api.DetectionResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read detection result: %w", err)
	}
	var payload api.DetectionResult
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse detection result %q: %w", path, err)
	}
	return &payload, nil
}

func parseMappingID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid mapping id %q", arg)
	}
	return id, nil
}

func mappingTableHeaders() []string {
	return []string{"ID", "Central User", "Service", "Service User", "Role", "Status", "Sync", "Last Sync"}
}

func mappingTableAlignments() []columnAlignment {
	return []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft}
}

func buildMappingRows(cfg *config.Config, mappings []*mapping.UserMapping) [][]string {
	rows := make([][]string, 0, len(mappings))
	for _, m := range mappings {
		rows = append(rows, []string{
			strconv.FormatInt(m.ID, 10),
			m.CentralUserID,
			serviceLabel(cfg, m.ServiceConfigID),
			serviceUserLabel(m),
			string(m.Role),
			string(m.Status),
			yesNo(m.SyncEnabled),
			formatSyncTime(m),
		})
	}
	return rows
}

func serviceUserLabel(m *mapping.UserMapping) string {
	for _, candidate := range []string{m.ServiceUsername, m.ServiceEmail, m.ServiceUserID} {
		if trimmed := strings.TrimSpace(candidate); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func formatSyncTime(m *mapping.UserMapping) string {
	if m.LastSyncAt == nil {
		return "never"
	}
	return m.LastSyncAt.Local().Format("2006-01-02 15:04")
}

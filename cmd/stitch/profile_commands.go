package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"stitch/internal/api"
	"stitch/internal/mapping"
)

func newProfileCommand(ctx *commandContext) *cobra.Command {
	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "Inspect and sync merged identity profiles",
	}

	profileCmd.AddCommand(newProfileListCommand(ctx))
	profileCmd.AddCommand(newProfileShowCommand(ctx))
	profileCmd.AddCommand(newProfileSyncCommand(ctx))
	profileCmd.AddCommand(newProfileDeleteCommand(ctx))

	return profileCmd
}

func newProfileListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List central users and their mapping counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(eng *api.Engine) error {
				users, err := eng.CentralUsers(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, users)
				}

				out := cmd.OutOrStdout()
				if len(users) == 0 {
					fmt.Fprintln(out, "No central users")
					return nil
				}
				rows := make([][]string, 0, len(users))
				for _, user := range users {
					rows = append(rows, []string{
						user.CentralUserID,
						user.CentralUsername,
						user.CentralEmail,
						strconv.Itoa(user.Mappings),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Central User", "Username", "Email", "Mappings"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newProfileShowCommand(ctx *commandContext) *cobra.Command {
	var refresh bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <central-user>",
		Short: "Show the merged profile for a central user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(eng *api.Engine) error {
				profile, err := eng.GetProfile(cmd.Context(), args[0], refresh)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, profile)
				}
				renderProfile(cmd, ctx, profile)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Re-query every mapped service before rendering")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newProfileSyncCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sync <central-user>",
		Short: "Re-query every service a central user is mapped to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(eng *api.Engine) error {
				outcomes, err := eng.SyncProfile(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, outcomes)
				}

				out := cmd.OutOrStdout()
				if len(outcomes) == 0 {
					fmt.Fprintln(out, "No mappings to sync")
					return nil
				}
				synced := 0
				rows := make([][]string, 0, len(outcomes))
				for _, outcome := range outcomes {
					if outcome.Synced {
						synced++
					}
					rows = append(rows, []string{
						strconv.FormatInt(outcome.MappingID, 10),
						outcome.ServiceName,
						yesNo(outcome.Synced),
						string(outcome.Status),
						outcome.Error,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Mapping", "Service", "Synced", "Status", "Error"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				fmt.Fprintf(out, "%d of %d mappings synced\n", synced, len(outcomes))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newProfileDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <central-user>",
		Short: "Delete a central user and all of its mappings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(eng *api.Engine) error {
				removed, err := eng.DeleteCentralUser(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d mappings for %s\n", removed, args[0])
				return nil
			})
		},
	}
}

func renderProfile(cmd *cobra.Command, ctx *commandContext, profile *mapping.Profile) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Central user:  %s\n", profile.CentralUserID)
	fmt.Fprintf(out, "Username:      %s\n", profile.CentralUsername)
	if len(profile.Emails) > 0 {
		fmt.Fprintf(out, "Emails:        %s\n", strings.Join(profile.Emails, ", "))
	}
	if len(profile.Usernames) > 0 {
		fmt.Fprintf(out, "Usernames:     %s\n", strings.Join(profile.Usernames, ", "))
	}
	if len(profile.DisplayNames) > 0 {
		fmt.Fprintf(out, "Display names: %s\n", strings.Join(profile.DisplayNames, ", "))
	}
	fmt.Fprintf(out, "Admin:         %s\n", yesNo(profile.IsAdminAnywhere))
	if !profile.LastUpdated.IsZero() {
		fmt.Fprintf(out, "Last updated:  %s\n", profile.LastUpdated.Local().Format("2006-01-02 15:04"))
	}

	if len(profile.Mappings) == 0 {
		return
	}
	fmt.Fprintln(out, renderTable(
		mappingTableHeaders(),
		buildMappingRows(ctx.configValue(), profile.Mappings),
		mappingTableAlignments(),
	))
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"stitch/internal/api"
)

func newUsersCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "users",
		Short: "List users discovered on every configured service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(eng *api.Engine) error {
				result := eng.EnumerateUsers(cmd.Context())
				if asJSON {
					return writeJSON(cmd, result)
				}

				out := cmd.OutOrStdout()
				if result.TotalServices == 0 {
					fmt.Fprintln(out, "No services configured")
					return nil
				}

				rows := buildUserRows(result)
				if len(rows) == 0 {
					fmt.Fprintln(out, "No users found")
				} else {
					fmt.Fprintln(out, renderTable(
						[]string{"Service", "User ID", "Username", "Email", "Display Name", "Admin", "Active"},
						rows,
						[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
					))
				}
				fmt.Fprintf(out, "%d users across %d of %d services\n",
					result.TotalUsers, result.ServicesScanned, result.TotalServices)
				for _, msg := range result.Errors {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", msg)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func buildUserRows(result *api.EnumerationResult) [][]string {
	var rows [][]string
	for _, svc := range result.Services {
		for _, user := range svc.Users {
			rows = append(rows, []string{
				svc.ServiceName,
				user.NativeID,
				user.Username,
				user.Email,
				user.DisplayName,
				yesNo(user.IsAdmin),
				yesNo(user.IsActive),
			})
		}
	}
	return rows
}

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"stitch/internal/api"
	"stitch/internal/config"
	"stitch/internal/daemonclient"
	"stitch/internal/daemonctl"
	"stitch/internal/daemonrun"
	"stitch/internal/mapping"
	"stitch/internal/preflight"
	"stitch/internal/services/registry"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the stitch daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("locate stitch executable: %w", err)
			}

			result, err := daemonctl.EnsureStarted(
				cmd.Context(),
				client,
				exe,
				daemonctl.LaunchOptions{ConfigPath: ctx.configPath()},
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintln(stdout, "Daemon started")
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			}
			if result.Status != nil && result.Status.PID > 0 {
				fmt.Fprintf(stdout, "PID %d, API on %s\n", result.Status.PID, ctx.configValue().Paths.APIBind)
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the stitch daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			pidPath := daemonrun.PIDFilePath(ctx.configValue())

			result, err := daemonctl.StopAndTerminate(cmd.Context(), client, pidPath, 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(stdout, "Daemon process %d did not exit in time; killed\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	statusCmd := newStatusCommand(ctx)

	return []*cobra.Command{startCmd, stopCmd, statusCmd}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, service, and mapping status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}

			var status *api.DaemonStatus
			if client != nil {
				status, err = client.Status(cmd.Context())
				if err != nil {
					if !daemonclient.IsUnavailable(err) {
						return err
					}
					status = nil
				}
			}

			if status != nil && status.Running {
				if asJSON {
					return writeJSON(cmd, status)
				}
				renderDaemonStatus(cmd, cfg, status)
				return nil
			}
			return renderOfflineStatus(cmd, ctx, cfg, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func renderDaemonStatus(cmd *cobra.Command, cfg *config.Config, status *api.DaemonStatus) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	printSection(cmd, "Daemon", colorize)
	fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
	if status.StartedAt != "" {
		fmt.Fprintln(out, renderStatusLine("Started", statusInfo, status.StartedAt, colorize))
	}
	fmt.Fprintln(out, renderStatusLine("API", statusInfo, cfg.Paths.APIBind, colorize))
	fmt.Fprintln(out, renderStatusLine("Database", statusInfo, status.DatabasePath, colorize))
	fmt.Fprintln(out)

	if len(status.Checks) > 0 {
		printSection(cmd, "Startup Checks", colorize)
		for _, check := range status.Checks {
			fmt.Fprintln(out, renderStatusLine(check.Name, statusKindForCheck(check.Passed), check.Detail, colorize))
		}
		fmt.Fprintln(out)
	}

	printSection(cmd, "Sync", colorize)
	printSyncStatus(cmd, status.Sync, colorize)
	fmt.Fprintln(out)

	printSection(cmd, "Mappings", colorize)
	printMappingStats(cmd, status.Mappings, colorize)
}

func printSyncStatus(cmd *cobra.Command, sync api.SyncStatus, colorize bool) {
	out := cmd.OutOrStdout()
	switch {
	case !sync.Enabled:
		fmt.Fprintln(out, renderStatusLine("Scheduler", statusWarn, "Disabled in config", colorize))
	case sync.Running:
		fmt.Fprintln(out, renderStatusLine("Scheduler", statusOK, fmt.Sprintf("Running every %ds", sync.IntervalSeconds), colorize))
	default:
		fmt.Fprintln(out, renderStatusLine("Scheduler", statusWarn, "Not running", colorize))
	}
	if sync.Sweeps > 0 {
		detail := fmt.Sprintf("%s (%d synced, %d failed)", sync.LastSweepAt, sync.LastSynced, sync.LastFailed)
		fmt.Fprintln(out, renderStatusLine("Last sweep", statusInfo, detail, colorize))
	} else if sync.Enabled {
		fmt.Fprintln(out, renderStatusLine("Last sweep", statusInfo, "No sweeps yet", colorize))
	}
	if sync.LastError != "" {
		fmt.Fprintln(out, renderStatusLine("Last error", statusWarn, sync.LastError, colorize))
	}
}

func printMappingStats(cmd *cobra.Command, stats mapping.Stats, colorize bool) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderStatusLine("Total", statusInfo, fmt.Sprintf("%d", stats.Total), colorize))
	fmt.Fprintln(out, renderStatusLine("Central users", statusInfo, fmt.Sprintf("%d", stats.CentralUsers), colorize))
	fmt.Fprintln(out, renderStatusLine("Sync enabled", statusInfo, fmt.Sprintf("%d", stats.SyncEnabled), colorize))
	for _, status := range []mapping.Status{mapping.StatusActive, mapping.StatusPending, mapping.StatusSyncing, mapping.StatusFailed} {
		count := stats.ByStatus[status]
		if count == 0 {
			continue
		}
		kind := statusInfo
		if status == mapping.StatusFailed {
			kind = statusWarn
		}
		fmt.Fprintln(out, renderStatusLine(titleCase(string(status)), kind, fmt.Sprintf("%d", count), colorize))
	}
}

// offlineStatus is the JSON shape for status output when no daemon answers.
type offlineStatus struct {
	Running  bool               `json:"running"`
	Database string             `json:"database"`
	Checks   []preflight.Result `json:"checks"`
	Mappings mapping.Stats      `json:"mappings"`
}

func renderOfflineStatus(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, asJSON bool) error {
	directories, err := registry.Build(cfg)
	if err != nil {
		return fmt.Errorf("build service adapters: %w", err)
	}
	checks := preflight.RunAll(cmd.Context(), cfg, directories)
	probe := preflight.ProbeDatabase(cfg)

	var stats mapping.Stats
	if probe.Present {
		if err := ctx.withEngine(func(eng *api.Engine) error {
			loaded, err := eng.Stats(cmd.Context())
			if err != nil {
				return err
			}
			stats = loaded
			return nil
		}); err != nil {
			return err
		}
	}

	if asJSON {
		return writeJSON(cmd, offlineStatus{
			Database: probe.Detail(),
			Checks:   checks,
			Mappings: stats,
		})
	}

	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	printSection(cmd, "Daemon", colorize)
	fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "Not running (start it with `stitch start`)", colorize))
	bind := cfg.Paths.APIBind
	if bind == "" {
		bind = "not configured"
	}
	fmt.Fprintln(out, renderStatusLine("API", statusInfo, bind, colorize))
	fmt.Fprintln(out, renderStatusLine("Database", statusInfo, probe.Detail(), colorize))
	fmt.Fprintln(out)

	if len(checks) > 0 {
		printSection(cmd, "System Checks", colorize)
		for _, check := range checks {
			fmt.Fprintln(out, renderStatusLine(check.Name, statusKindForCheck(check.Passed), check.Detail, colorize))
		}
		fmt.Fprintln(out)
	}

	printSection(cmd, "Mappings", colorize)
	printMappingStats(cmd, stats, colorize)
	return nil
}

func printSection(cmd *cobra.Command, title string, colorize bool) {
	for _, line := range renderSectionHeader(title, colorize) {
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
}

func titleCase(value string) string {
	if value == "" {
		return value
	}
	return strings.ToUpper(value[:1]) + value[1:]
}

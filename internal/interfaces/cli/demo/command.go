// Package demo implements the `demo` CLI command for managing demo mode.
package demo

import (
	"errors"

	"github.com/spf13/cobra"

	"tickettracker/internal/infrastructure/config"
	"tickettracker/internal/interfaces/cli/bootstrap"
	apperrors "tickettracker/internal/shared/errors"
)

var configPath string

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Manage demo mode and the sample dataset",
		Long:  `Enable or disable demo mode, or reload the sample dataset while demo mode is active.`,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (defaults to standard lookup)")

	cmd.AddCommand(
		newEnableCommand(),
		newDisableCommand(),
		newRefreshCommand(),
	)

	return cmd
}

func newEnableCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "enable",
		Short: "Snapshot live data and load the sample dataset",
		RunE:  runEnable,
	}
}

func newDisableCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "disable",
		Short: "Restore the snapshotted live data",
		RunE:  runDisable,
	}
}

func newRefreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Reload the sample dataset, discarding interim changes",
		RunE:  runRefresh,
	}
}

func runEnable(cmd *cobra.Command, args []string) error {
	app, err := bootstrap.Open(configPath)
	if err != nil {
		return plain(err)
	}
	defer app.Close()

	if err := app.Demo.Enable(); err != nil {
		return plain(err)
	}
	if err := persistDemoFlag(app, true); err != nil {
		// Roll the runtime back so it matches the saved configuration.
		_ = app.Demo.Disable()
		return plain(err)
	}

	cmd.Println("Demo mode enabled. Sample dataset loaded and live data snapshotted.")
	return nil
}

func runDisable(cmd *cobra.Command, args []string) error {
	app, err := bootstrap.Open(configPath)
	if err != nil {
		return plain(err)
	}
	defer app.Close()

	if err := app.Demo.Disable(); err != nil {
		return plain(err)
	}
	if err := persistDemoFlag(app, false); err != nil {
		_ = app.Demo.Enable()
		return plain(err)
	}

	cmd.Println("Demo mode disabled. Original data restored.")
	return nil
}

func runRefresh(cmd *cobra.Command, args []string) error {
	app, err := bootstrap.Open(configPath)
	if err != nil {
		return plain(err)
	}
	defer app.Close()

	if err := app.Demo.Refresh(); err != nil {
		return plain(err)
	}

	cmd.Println("Demo dataset refreshed.")
	return nil
}

// persistDemoFlag saves the demo_mode flag to the configuration file and
// promotes the new value to the store. The manager has already flipped the
// in-memory flag by the time this runs, so the file is written
// unconditionally rather than compared against the store.
func persistDemoFlag(app *bootstrap.App, value bool) error {
	updated := app.Store.Current().WithDemoMode(value)
	if _, err := config.Save(updated, ""); err != nil {
		return apperrors.NewDemoModeError("Unable to persist configuration changes for demo mode.")
	}
	app.Store.Replace(updated)
	return nil
}

// plain strips the internal error-type prefix so the CLI reports just the
// human-readable message.
func plain(err error) error {
	if appErr := apperrors.GetAppError(err); appErr != nil {
		return errors.New(appErr.Message)
	}
	return err
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jfmyers9/airwave/internal/service"
)

// uninstallCmd represents the uninstall command
var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Uninstall the systemd user service",
	Long: `Uninstall the player's systemd user service and stop it from running automatically.

This command will:
  - Stop the running service (if any)
  - Disable the unit with systemctl --user
  - Remove the unit file from ~/.config/systemd/user/

After uninstalling, the player will no longer run automatically on login.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		unitPath, err := service.GetUnitPath()
		if err != nil {
			return fmt.Errorf("failed to get unit path: %w", err)
		}

		if _, err := os.Stat(unitPath); os.IsNotExist(err) {
			fmt.Println("Service is not installed (unit file not found)")
			return nil
		}

		fmt.Println("Stopping service...")
		if err := stopUnit(); err != nil {
			fmt.Printf("Warning: failed to stop service: %v\n", err)
			fmt.Println("Continuing with unit removal...")
		} else {
			fmt.Println("✓ Service stopped")
		}

		if err := os.Remove(unitPath); err != nil {
			return fmt.Errorf("failed to remove unit file: %w", err)
		}

		fmt.Printf("✓ Removed unit from %s\n", unitPath)
		fmt.Println("\nThe service has been uninstalled successfully.")
		fmt.Println("It will no longer run automatically on login.")
		fmt.Println("\nTo reinstall, run:")
		fmt.Println("  airwave install")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
}

package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jfmyers9/airwave/internal/service"
)

// installCmd represents the install command
var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the player as a systemd user service",
	Long: `Install the player as a systemd user service that runs automatically on login.

This command will:
  - Generate a systemd user unit for the player
  - Install it to ~/.config/systemd/user/
  - Enable and start the unit with systemctl --user

The player will run in the background, streaming the configured station
and scrobbling what it plays.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Get the path to the current executable
		binaryPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}

		// Resolve symlinks to get the actual binary path
		binaryPath, err = filepath.EvalSymlinks(binaryPath)
		if err != nil {
			return fmt.Errorf("failed to resolve executable path: %w", err)
		}

		logPath, err := service.GetDefaultLogPath()
		if err != nil {
			return fmt.Errorf("failed to get log path: %w", err)
		}
		if err := os.MkdirAll(logPath, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}

		unitContent, err := service.GenerateUnit(service.UnitConfig{
			BinaryPath:       binaryPath,
			LogPath:          logPath,
			WorkingDirectory: home,
		})
		if err != nil {
			return fmt.Errorf("failed to generate unit: %w", err)
		}

		unitPath, err := service.GetUnitPath()
		if err != nil {
			return fmt.Errorf("failed to get unit path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(unitPath), 0755); err != nil {
			return fmt.Errorf("failed to create systemd user directory: %w", err)
		}

		// Stop a previous installation before replacing the unit
		if _, err := os.Stat(unitPath); err == nil {
			fmt.Println("Service is already installed. Stopping it first...")
			if err := stopUnit(); err != nil {
				fmt.Printf("Warning: failed to stop existing service: %v\n", err)
			}
		}

		if err := os.WriteFile(unitPath, []byte(unitContent), 0644); err != nil {
			return fmt.Errorf("failed to write unit file: %w", err)
		}

		fmt.Printf("✓ Installed unit to %s\n", unitPath)

		if err := startUnit(); err != nil {
			return fmt.Errorf("failed to start service: %w", err)
		}

		fmt.Println("✓ Service enabled and started successfully")
		fmt.Printf("✓ Logs will be written to %s\n", logPath)
		fmt.Println("\nThe player is now running and will start automatically on login.")
		fmt.Println("\nYou can check the service status with:")
		fmt.Println("  systemctl --user status " + service.UnitName)
		fmt.Println("\nTo uninstall, run:")
		fmt.Println("  airwave uninstall")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
}

// startUnit reloads systemd and enables + starts the unit.
func startUnit() error {
	reload := exec.Command("systemctl", "--user", "daemon-reload")
	if output, err := reload.CombinedOutput(); err != nil {
		return fmt.Errorf("systemctl daemon-reload failed: %s: %w", output, err)
	}

	enable := exec.Command("systemctl", "--user", "enable", "--now", service.UnitName)
	if output, err := enable.CombinedOutput(); err != nil {
		return fmt.Errorf("systemctl enable failed: %s: %w", output, err)
	}
	return nil
}

// stopUnit disables and stops the unit.
func stopUnit() error {
	disable := exec.Command("systemctl", "--user", "disable", "--now", service.UnitName)
	if output, err := disable.CombinedOutput(); err != nil {
		return fmt.Errorf("systemctl disable failed: %s: %w", output, err)
	}
	return nil
}

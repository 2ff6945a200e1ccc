// Package service generates and locates the systemd user unit that
// keeps the player running across logins.
package service

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

const unitTemplate = `[Unit]
Description=airwave radio player
After=network-online.target sound.target

[Service]
ExecStart={{.BinaryPath}} play --log-file {{.LogPath}}/airwave.log
Restart=on-failure
RestartSec=5
WorkingDirectory={{.WorkingDirectory}}

[Install]
WantedBy=default.target
`

// UnitName is the systemd unit the install command manages.
const UnitName = "airwave.service"

// UnitConfig holds the values substituted into the unit file.
type UnitConfig struct {
	BinaryPath       string
	LogPath          string
	WorkingDirectory string
}

// GenerateUnit renders the systemd user unit for the player.
func GenerateUnit(config UnitConfig) (string, error) {
	tmpl, err := template.New("unit").Parse(unitTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse unit template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, config); err != nil {
		return "", fmt.Errorf("failed to execute unit template: %w", err)
	}

	return buf.String(), nil
}

// GetUnitPath returns where the unit file is installed.
func GetUnitPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, ".config", "systemd", "user", UnitName), nil
}

// GetDefaultLogPath returns the default directory for player logs.
func GetDefaultLogPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, ".local", "share", "airwave", "logs"), nil
}

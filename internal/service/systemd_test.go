package service

import (
	"strings"
	"testing"
)

func TestGenerateUnit(t *testing.T) {
	unit, err := GenerateUnit(UnitConfig{
		BinaryPath:       "/usr/local/bin/airwave",
		LogPath:          "/home/u/.local/share/airwave/logs",
		WorkingDirectory: "/home/u",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"ExecStart=/usr/local/bin/airwave play --log-file /home/u/.local/share/airwave/logs/airwave.log",
		"WorkingDirectory=/home/u",
		"Restart=on-failure",
		"WantedBy=default.target",
	} {
		if !strings.Contains(unit, want) {
			t.Errorf("unit file missing %q:\n%s", want, unit)
		}
	}
}

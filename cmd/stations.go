package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jfmyers9/airwave/internal/config"
)

// stationsCmd lists the configured server profiles.
var stationsCmd = &cobra.Command{
	Use:   "servers",
	Short: "List configured server profiles",
	Long: `List the server profiles airwave can connect to.

Profiles combine the built-in defaults with any entries from
~/.config/airwave/servers.yaml; a user entry with the same name as a
built-in profile replaces it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		servers, err := config.LoadServers()
		if err != nil {
			return fmt.Errorf("failed to load server profiles: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tAPI\tFREE STREAMS\tSELECTED")
		for _, s := range servers {
			selected := ""
			if s.Name == cfg.Server {
				selected = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%v\t%s\n", s.Name, s.APIBaseURL, s.FreeStreams, selected)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(stationsCmd)
}

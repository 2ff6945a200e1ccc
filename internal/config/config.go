package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// Account credentials for the streaming service
	Username string
	Password string

	// Name of the selected server profile (see servers.go)
	Server string

	// HTTP/HTTPS proxy URL, empty for direct connections
	Proxy string

	// Playback and reporting toggles
	Scrobbling bool
	Discovery  bool
	LowBitrate bool

	// Directory where free track downloads are stored
	DownloadDir string

	// Output format template for the now command
	// Default: "{{.Artist}} - {{.Title}}"
	OutputFormat string

	// Fixed display width for the now command, 0 disables padding
	OutputWidth int

	// Marquee scrolling for now output that exceeds OutputWidth
	MarqueeEnabled   bool
	MarqueeSpeed     int
	MarqueeSeparator string

	// Discord rich presence mirroring of the now-playing track
	DiscordPresence bool

	// Session key saved by the auth command, reused across runs
	SessionKey string
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Config file locations (in order of precedence)
	configDir := getConfigDir()
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	// Set defaults
	v.SetDefault("output_format", "{{.Artist}} - {{.Title}}")
	v.SetDefault("output_width", 0)
	v.SetDefault("marquee_enabled", false)
	v.SetDefault("marquee_speed", 2)
	v.SetDefault("marquee_separator", "   ")
	v.SetDefault("scrobbling", true)
	v.SetDefault("discovery", false)
	v.SetDefault("low_bitrate", false)
	v.SetDefault("discord_presence", false)
	v.SetDefault("download_dir", defaultDownloadDir())

	// Read config file (optional - don't fail if missing)
	_ = v.ReadInConfig()

	// Read from environment variables
	v.SetEnvPrefix("AIRWAVE")
	v.AutomaticEnv()

	// Map config to struct
	cfg := &Config{
		Username:         v.GetString("username"),
		Password:         v.GetString("password"),
		Server:           v.GetString("server"),
		Proxy:            v.GetString("proxy"),
		Scrobbling:       v.GetBool("scrobbling"),
		Discovery:        v.GetBool("discovery"),
		LowBitrate:       v.GetBool("low_bitrate"),
		DownloadDir:      v.GetString("download_dir"),
		OutputFormat:     v.GetString("output_format"),
		OutputWidth:      v.GetInt("output_width"),
		MarqueeEnabled:   v.GetBool("marquee_enabled"),
		MarqueeSpeed:     v.GetInt("marquee_speed"),
		MarqueeSeparator: v.GetString("marquee_separator"),
		DiscordPresence:  v.GetBool("discord_presence"),
		SessionKey:       v.GetString("session_key"),
	}

	return cfg, nil
}

// getConfigDir returns the configuration directory path
// Creates the directory if it doesn't exist
func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	configDir := filepath.Join(homeDir, ".config", "airwave")

	// Create config directory if it doesn't exist
	_ = os.MkdirAll(configDir, 0755)

	return configDir
}

// GetConfigDir returns the configuration directory path (public helper)
func GetConfigDir() string {
	return getConfigDir()
}

// GetDataDir returns the default data directory for state and queue files
func GetDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(homeDir, ".local", "share", "airwave")
}

func defaultDownloadDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(homeDir, "Music", "airwave")
}

// Save writes configuration to file
func (c *Config) Save() error {
	v := viper.New()

	// Set config file path
	configDir := getConfigDir()
	configFile := filepath.Join(configDir, "config.yaml")

	// Set values in viper
	v.Set("username", c.Username)
	v.Set("password", c.Password)
	v.Set("server", c.Server)
	v.Set("proxy", c.Proxy)
	v.Set("scrobbling", c.Scrobbling)
	v.Set("discovery", c.Discovery)
	v.Set("low_bitrate", c.LowBitrate)
	v.Set("download_dir", c.DownloadDir)
	v.Set("output_format", c.OutputFormat)
	v.Set("output_width", c.OutputWidth)
	v.Set("marquee_enabled", c.MarqueeEnabled)
	v.Set("marquee_speed", c.MarqueeSpeed)
	v.Set("marquee_separator", c.MarqueeSeparator)
	v.Set("discord_presence", c.DiscordPresence)
	v.Set("session_key", c.SessionKey)

	// Write to file
	return v.WriteConfigAs(configFile)
}

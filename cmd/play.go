package cmd

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jfmyers9/airwave/internal/config"
	"github.com/jfmyers9/airwave/internal/download"
	"github.com/jfmyers9/airwave/internal/player"
	"github.com/jfmyers9/airwave/internal/presence"
	"github.com/jfmyers9/airwave/internal/scrobbler"
	"github.com/jfmyers9/airwave/internal/session"
	"github.com/jfmyers9/airwave/internal/sink"
	"github.com/jfmyers9/airwave/internal/station"
	"github.com/jfmyers9/airwave/internal/stream"
)

// Discord application id used for rich presence.
const discordAppID = "1326284963318923304"

var (
	playLogFile  string
	playLogLevel string
	playDataDir  string
)

// playCmd represents the play command
var playCmd = &cobra.Command{
	Use:   "play [station-url]",
	Short: "Tune a station and start playing",
	Long: `Tune a station and play it on the local audio device.

The player will:
- Negotiate a session with the configured server
- Tune the station and fetch track playlists as needed
- Play track streams on the default audio output
- Scrobble finished tracks, queueing them locally when the service is down
- Save tracks offered as free downloads while they play

Without a station URL, your personal recommended station is played.

While playing, commands are read from standard input:

  skip              play the next track
  love              mark the current track loved
  ban               ban the current track and skip it
  tag <tag>...      attach tags to the current track
  share <user>      recommend the current track to another user
  stop              stop playback (keeps the session)
  play [station]    resume playback, optionally tuning a new station
  stop-after-track  toggle stopping when the current track ends
  stop-after <min>  stop after the given number of minutes (0 cancels)
  quit              exit`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().StringVar(&playLogFile, "log-file", "", "Log file path (default: stderr)")
	playCmd.Flags().StringVar(&playLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	playCmd.Flags().StringVar(&playDataDir, "data-dir", "", "Data directory for state and queue (default: ~/.local/share/airwave)")
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if cfg.Username == "" || (cfg.Password == "" && cfg.SessionKey == "") {
		return fmt.Errorf("no credentials configured. Run 'airwave auth' first")
	}

	servers, err := config.LoadServers()
	if err != nil {
		return fmt.Errorf("failed to load server profiles: %w", err)
	}
	server, err := config.SelectServer(servers, cfg.Server)
	if err != nil {
		return err
	}

	logger := setupLogger(playLogFile, playLogLevel)

	logger.Info().
		Str("version", version).
		Str("server", server.Name).
		Msg("Starting airwave")

	dataDir := playDataDir
	if dataDir == "" {
		dataDir = config.GetDataDir()
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	httpClient, err := buildHTTPClient(cfg.Proxy)
	if err != nil {
		return err
	}

	queue, err := scrobbler.NewQueue(filepath.Join(dataDir, "queue.db"))
	if err != nil {
		return fmt.Errorf("failed to open scrobble queue: %w", err)
	}
	defer func() { _ = queue.Close() }()

	userAgent := "airwave/" + version
	audioSink := sink.NewBeepSink(logger)
	defer func() { _ = audioSink.Close() }()

	deps := player.Deps{
		Sessions: session.NewNegotiator(server, httpClient, logger),
		Stations: station.NewNegotiator(logger),
		Sink:     audioSink,
		Bridge:   stream.NewBridge(audioSink, httpClient, userAgent, logger),
		Queue:    queue,
		Status:   player.NewStatusFile(player.DefaultStatusPath(dataDir)),
	}
	if cfg.DownloadDir != "" {
		deps.Prefetch = download.NewManager(cfg.DownloadDir, userAgent, logger)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.DiscordPresence {
		p := presence.New(discordAppID, logger)
		deps.Presence = p
		go p.Run(ctx)
	}

	stationURL := defaultStation(cfg.Username)
	if len(args) == 1 {
		stationURL = args[0]
	}

	ctrl := player.New(player.Config{
		StationURL: stationURL,
		Username:   cfg.Username,
		Password:   cfg.Password,
		SessionKey: cfg.SessionKey,
		Scrobbling: cfg.Scrobbling,
		Discovery:  cfg.Discovery,
		LowBitrate: cfg.LowBitrate,
	}, deps, logger)

	go readCommands(ctx, cancel, ctrl, logger)

	ctrl.Play("")
	if err := ctrl.Run(ctx); err != nil {
		return fmt.Errorf("player error: %w", err)
	}

	logger.Info().Msg("Player stopped")
	return nil
}

// defaultStation is the station played when none is given.
func defaultStation(username string) string {
	return fmt.Sprintf("lastfm://user/%s/recommended", username)
}

// readCommands maps stdin lines to player commands until EOF or quit.
func readCommands(ctx context.Context, cancel context.CancelFunc, ctrl *player.Controller, logger zerolog.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "skip", "next":
			ctrl.Skip()
		case "love":
			ctrl.Love()
		case "ban":
			ctrl.Ban()
		case "tag":
			if len(fields) < 2 {
				fmt.Println("usage: tag <tag> [tag...]")
				continue
			}
			ctrl.Tag(fields[1:])
		case "share":
			if len(fields) < 2 {
				fmt.Println("usage: share <user> [message...]")
				continue
			}
			ctrl.Share(fields[1], strings.Join(fields[2:], " "))
		case "stop":
			ctrl.Stop()
		case "play":
			stationURL := ""
			if len(fields) > 1 {
				stationURL = fields[1]
			}
			ctrl.Play(stationURL)
		case "disconnect":
			ctrl.Disconnect()
		case "stop-after-track":
			ctrl.StopAfterThisTrack()
		case "stop-after":
			if len(fields) < 2 {
				fmt.Println("usage: stop-after <minutes>")
				continue
			}
			minutes, err := strconv.Atoi(fields[1])
			if err != nil {
				fmt.Println("usage: stop-after <minutes>")
				continue
			}
			ctrl.StopAfterMinutes(minutes)
		case "quit", "exit":
			cancel()
			return
		default:
			fmt.Printf("unknown command %q\n", fields[0])
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Warn().Err(err).Msg("Command input closed")
	}
}

// buildHTTPClient returns the shared HTTP client, honoring an optional
// proxy URL from the configuration.
func buildHTTPClient(proxy string) (*http.Client, error) {
	if proxy == "" {
		return &http.Client{}, nil
	}
	proxyURL, err := url.Parse(proxy)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL: %w", err)
	}
	return &http.Client{
		Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
	}, nil
}

// setupLogger creates a logger with the specified configuration
func setupLogger(logFile, logLevel string) zerolog.Logger {
	// Parse log level
	level := zerolog.InfoLevel
	switch logLevel {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	// Set up output
	var output *os.File
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			output = os.Stderr
		} else {
			output = f
		}
	} else {
		output = os.Stderr
	}

	// Create logger
	logger := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	// Use pretty console output if logging to stderr
	if output == os.Stderr {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	return logger
}

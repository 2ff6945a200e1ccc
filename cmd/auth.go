package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jfmyers9/airwave/internal/config"
	"github.com/jfmyers9/airwave/internal/session"
	"github.com/jfmyers9/airwave/pkg/audioscrobbler"
)

var (
	authUsername string
	authPassword string
	authServer   string
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authenticate with the streaming service",
	Long: `Authenticate with the streaming service to enable playback and scrobbling.

Two flows are supported:

With --username (and optionally --password), credentials are verified
directly against the service and stored in the config file together
with the resulting session key. This is the usual flow.

Without --username, a browser-based flow is used instead: a URL is
printed for you to authorize the application, and the approved token
is exchanged for a session key. No password is stored in this flow,
but the session cannot be renewed silently when the service expires it.`,
	RunE: runAuth,
}

func init() {
	rootCmd.AddCommand(authCmd)

	authCmd.Flags().StringVarP(&authUsername, "username", "u", "", "Service username")
	authCmd.Flags().StringVarP(&authPassword, "password", "p", "", "Service password (prompted if omitted)")
	authCmd.Flags().StringVar(&authServer, "server", "", "Server profile to authenticate against (default from config)")
}

func runAuth(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	serverName := authServer
	if serverName == "" {
		serverName = cfg.Server
	}
	servers, err := config.LoadServers()
	if err != nil {
		return fmt.Errorf("failed to load server profiles: %w", err)
	}
	server, err := config.SelectServer(servers, serverName)
	if err != nil {
		return err
	}

	fmt.Printf("Authenticating against %s\n", server.Name)
	fmt.Println()

	negotiator := session.NewNegotiator(server, nil, zerolog.Nop())

	var sess *session.Session
	if authUsername != "" {
		sess, err = authWithPassword(ctx, negotiator, reader)
	} else {
		sess, err = authWithBrowser(ctx, negotiator, reader)
	}
	if err != nil {
		return err
	}

	cfg.Server = server.Name
	cfg.Username = sess.Username
	if authUsername != "" {
		cfg.Username = authUsername
		cfg.Password = authPassword
	}
	cfg.SessionKey = sess.Client.GetSessionKey()
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	configPath := config.GetConfigDir()
	fmt.Printf("\n✓ Authentication successful!\n")
	fmt.Printf("✓ Session key saved to %s/config.yaml\n", configPath)
	fmt.Println("\nYou can now use 'airwave play' to start listening.")

	return nil
}

func authWithPassword(ctx context.Context, n *session.Negotiator, reader *bufio.Reader) (*session.Session, error) {
	if authPassword == "" {
		fmt.Print("Password: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
		authPassword = strings.TrimRight(line, "\r\n")
	}
	if authPassword == "" {
		return nil, fmt.Errorf("a password is required")
	}

	sess, err := n.ObtainMobile(ctx, authUsername, authPassword)
	if err != nil {
		if audioscrobbler.IsBadCredentials(err) {
			return nil, fmt.Errorf("the service rejected the username or password")
		}
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	return sess, nil
}

func authWithBrowser(ctx context.Context, n *session.Negotiator, reader *bufio.Reader) (*session.Session, error) {
	fmt.Println("Generating authentication token...")
	token, authURL, err := n.BeginWebAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate auth token: %w", err)
	}

	fmt.Println("\nPlease visit this URL to authorize airwave:")
	fmt.Printf("\n  %s\n\n", authURL)
	fmt.Println("After authorizing, press Enter to continue...")
	_, _ = reader.ReadString('\n')

	// The service can lag behind the authorization click, so retry a
	// few times before giving up.
	fmt.Println("Retrieving session key...")
	var sess *session.Session
	maxRetries := 3
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		sess, err = n.ObtainWebToken(ctx, token)
		if err == nil {
			break
		}
		if i < maxRetries-1 {
			fmt.Printf("Failed to retrieve session (attempt %d/%d). Retrying in %v...\n",
				i+1, maxRetries, retryDelay)
			time.Sleep(retryDelay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session key after %d attempts: %w", maxRetries, err)
	}
	return sess, nil
}

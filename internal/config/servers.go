package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

//go:embed servers.yaml
var bundledServers []byte

// Server is one known service deployment: its endpoints, API
// credentials and capability flags. Profiles are immutable once loaded,
// with one exception: the legacy-streaming capability can be latched on
// at runtime when the current-generation API turns out to be
// unavailable for this deployment. The latch never clears for the life
// of the profile.
type Server struct {
	Name          string // Display name, unique across profiles
	APIBaseURL    string // XML envelope API endpoint
	LegacyBaseURL string // Legacy handshake host
	APIKey        string
	APISecret     string
	FreeStreams   bool // Deployment serves unauthenticated streams

	legacyStreaming atomic.Bool
}

// UsesLegacyStreaming reports whether this deployment speaks only the
// legacy streaming API.
func (s *Server) UsesLegacyStreaming() bool {
	return s.legacyStreaming.Load()
}

// LatchLegacyStreaming permanently switches this profile to the legacy
// streaming API. One-way: there is no un-latch, to avoid alternating
// between two auth/streaming models mid-session.
func (s *Server) LatchLegacyStreaming() {
	s.legacyStreaming.Store(true)
}

// serverSpec is the YAML shape of one profile.
type serverSpec struct {
	Name            string `yaml:"name"`
	APIBaseURL      string `yaml:"api_base_url"`
	LegacyBaseURL   string `yaml:"legacy_base_url"`
	APIKey          string `yaml:"api_key"`
	APISecret       string `yaml:"api_secret"`
	FreeStreams     bool   `yaml:"free_streams"`
	LegacyStreaming bool   `yaml:"legacy_streaming"`
}

type serverFile struct {
	Servers []serverSpec `yaml:"servers"`
}

// LoadServers returns the known server profiles: the bundled defaults
// merged with the user override file (servers.yaml in the config
// directory), de-duplicated by profile name with the user's entry
// winning.
func LoadServers() ([]*Server, error) {
	return loadServers(filepath.Join(getConfigDir(), "servers.yaml"))
}

func loadServers(userPath string) ([]*Server, error) {
	userSpecs, err := parseServerFile(userPath)
	if err != nil {
		return nil, err
	}

	var bundled serverFile
	if err := yaml.Unmarshal(bundledServers, &bundled); err != nil {
		return nil, fmt.Errorf("failed to parse bundled server profiles: %w", err)
	}

	seen := make(map[string]bool)
	var servers []*Server
	for _, spec := range append(userSpecs, bundled.Servers...) {
		if spec.Name == "" || seen[spec.Name] {
			continue
		}
		seen[spec.Name] = true
		servers = append(servers, newServer(spec))
	}

	if len(servers) == 0 {
		return nil, fmt.Errorf("no server profiles configured")
	}
	return servers, nil
}

func parseServerFile(path string) ([]serverSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read server profiles: %w", err)
	}

	var f serverFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return f.Servers, nil
}

func newServer(spec serverSpec) *Server {
	s := &Server{
		Name:          spec.Name,
		APIBaseURL:    spec.APIBaseURL,
		LegacyBaseURL: spec.LegacyBaseURL,
		APIKey:        spec.APIKey,
		APISecret:     spec.APISecret,
		FreeStreams:   spec.FreeStreams,
	}
	if spec.LegacyStreaming {
		s.legacyStreaming.Store(true)
	}
	return s
}

// SelectServer finds the profile with the given name, or the first
// profile when name is empty.
func SelectServer(servers []*Server, name string) (*Server, error) {
	if name == "" {
		return servers[0], nil
	}
	for _, s := range servers {
		if s.Name == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("unknown server profile %q", name)
}

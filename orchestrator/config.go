package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
)

const (
	defaultListenAddr      = ":8787"
	defaultAgentServiceURL = "http://localhost:8000"
	defaultUser            = "demo_user"

	defaultPersona = "<<MODULE:CHAT>> You are Kira, an encouraging wellness assistant. " +
		"Be supportive, concise, and helpful."
	defaultWelcome = "Hello! I'm Kira, your AI wellness assistant. How can I help you today?"
)

// Config holds initialization parameters for the orchestrator daemon.
type Config struct {
	// ListenAddr is the HTTP listen address for the frame and REST surfaces.
	ListenAddr string `json:"listen_addr,omitempty"`

	// AgentServiceURL is the base URL of the agent execution service.
	AgentServiceURL string `json:"agent_service_url,omitempty"`

	// Production disables the envelope size guard: oversized envelopes pass
	// through instead of failing the build.
	Production bool `json:"production,omitempty"`

	// Persona is the L1 persona message for chat envelopes.
	Persona string `json:"persona,omitempty"`

	// WelcomeMessage greets each new connection.
	WelcomeMessage string `json:"welcome_message,omitempty"`

	// DefaultUser is the acting user identity for schedule commits.
	DefaultUser string `json:"default_user,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr:      defaultListenAddr,
		AgentServiceURL: defaultAgentServiceURL,
		Persona:         defaultPersona,
		WelcomeMessage:  defaultWelcome,
		DefaultUser:     defaultUser,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.ListenAddr != "" {
		c.ListenAddr = source.ListenAddr
	}
	if source.AgentServiceURL != "" {
		c.AgentServiceURL = source.AgentServiceURL
	}
	if source.Production {
		c.Production = true
	}
	if source.Persona != "" {
		c.Persona = source.Persona
	}
	if source.WelcomeMessage != "" {
		c.WelcomeMessage = source.WelcomeMessage
	}
	if source.DefaultUser != "" {
		c.DefaultUser = source.DefaultUser
	}
}

// LoadConfig reads a JSON config file, merges it with defaults, and returns
// the resulting Config.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}

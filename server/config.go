package server

import (
	"fmt"
	"time"

	"fileshare/transfer"
)

// Config holds the server configuration.
type Config struct {
	ListenPort  int
	RootDir     string
	MaxClients  int
	ChunkSize   int
	IdleTimeout time.Duration
	// Watch logs changes to RootDir made while the server runs.
	Watch bool
}

// DefaultConfig returns the default server configuration
func DefaultConfig() *Config {
	return &Config{
		ListenPort: 8080,
		RootDir:    "./server_files",
		MaxClients: 10,
		ChunkSize:  transfer.DefaultChunkSize,
	}
}

// Validate checks the configuration before the server starts.
func (config *Config) Validate() error {
	if config.ListenPort < 0 || config.ListenPort > 65535 {
		return fmt.Errorf("invalid listen port: %d (must be 0-65535)", config.ListenPort)
	}
	if config.RootDir == "" {
		return fmt.Errorf("root directory must not be empty")
	}
	if config.MaxClients <= 0 {
		return fmt.Errorf("invalid max clients: %d (must be at least 1)", config.MaxClients)
	}
	if config.ChunkSize <= 0 || config.ChunkSize > transfer.MaxFrameSize {
		return fmt.Errorf("invalid chunk size: %d (must be 1-%d)", config.ChunkSize, transfer.MaxFrameSize)
	}
	if config.IdleTimeout < 0 {
		return fmt.Errorf("invalid idle timeout: %v", config.IdleTimeout)
	}
	return nil
}

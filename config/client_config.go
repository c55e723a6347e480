package config

import (
	"errors"
	"fmt"
	"time"

	"fileshare/transfer"
)

// ClientConfig holds the connection settings of the file-sharing client.
type ClientConfig struct {
	Address  string // Example: "127.0.0.1:8080"
	Username string
	Timeout  time.Duration
	Framing  transfer.Framing
	// Pace is the pause between upload chunks.
	Pace       time.Duration
	ChunkSize  int
	MetricsDir string // empty disables transfer metrics
	ThemePath  string // empty uses the default theme file
}

// DefaultClientConfig returns the client defaults.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Address:   "127.0.0.1:8080",
		Timeout:   10 * time.Second,
		Framing:   transfer.Sized,
		Pace:      time.Millisecond,
		ChunkSize: transfer.DefaultChunkSize,
	}
}

// Validate checks the configuration before connecting.
func (c *ClientConfig) Validate() error {
	if c.Address == "" {
		return errors.New("server address must not be empty")
	}
	if c.Username == "" {
		return errors.New("username must not be empty")
	}
	if c.Pace < 0 {
		return fmt.Errorf("invalid pace: %v", c.Pace)
	}
	if c.ChunkSize <= 0 || c.ChunkSize > transfer.MaxFrameSize {
		return fmt.Errorf("invalid chunk size: %d (must be 1-%d)", c.ChunkSize, transfer.MaxFrameSize)
	}
	return nil
}

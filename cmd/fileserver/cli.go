package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"fileshare/server"
)

const version = "1.0"

// ParseFlags builds the server configuration from args. It reports
// shouldExit when help or version was shown.
func ParseFlags(args []string, out io.Writer) (config *server.Config, shouldExit bool, err error) {
	config = server.DefaultConfig()
	showVersion := false

	flags := flag.NewFlagSet("fileserver", flag.ContinueOnError)
	flags.SetOutput(out)
	flags.IntVar(&config.ListenPort, "port", config.ListenPort, "TCP port to listen on")
	flags.StringVar(&config.RootDir, "dir", config.RootDir, "shared directory (created if missing)")
	flags.IntVar(&config.MaxClients, "max-clients", config.MaxClients, "maximum concurrent sessions")
	flags.IntVar(&config.ChunkSize, "chunk-size", config.ChunkSize, "bytes per transfer chunk")
	flags.DurationVar(&config.IdleTimeout, "idle-timeout", config.IdleTimeout, "close sessions idle this long (0 disables)")
	flags.BoolVar(&config.Watch, "watch", config.Watch, "log changes made to the shared directory by other programs")
	flags.BoolVar(&showVersion, "v", false, "show version and exit")
	flags.Usage = func() { PrintUsage(flags, out) }

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, err
	}
	if flags.NArg() > 0 {
		return nil, false, fmt.Errorf("unexpected argument: %s", flags.Arg(0))
	}
	if showVersion {
		ShowVersion(out)
		return nil, true, nil
	}
	return config, false, nil
}

// PrintUsage prints usage information
func PrintUsage(flags *flag.FlagSet, out io.Writer) {
	fmt.Fprintf(out, "Usage: %s [flags]\n\n", flags.Name())
	fmt.Fprintln(out, "Flags:")
	flags.PrintDefaults()
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Examples:")
	fmt.Fprintf(out, "  %s                          # port 8080, ./server_files\n", flags.Name())
	fmt.Fprintf(out, "  %s -port 9000 -dir /srv/share\n", flags.Name())
}

// ShowVersion displays version information
func ShowVersion(out io.Writer) {
	fmt.Fprintf(out, "File Sharing Server v%s\n", version)
}

// PrintStartupInfo prints server startup information
func PrintStartupInfo(logger *log.Logger, config *server.Config) {
	logger.Printf("Starting File Sharing Server...")
	logger.Printf("Listening on port: %d", config.ListenPort)
	logger.Printf("Shared directory: %s", config.RootDir)
	logger.Printf("Max clients: %d, chunk size: %d bytes", config.MaxClients, config.ChunkSize)
	if config.IdleTimeout > 0 {
		logger.Printf("Idle timeout: %v", config.IdleTimeout)
	}
}

// HandleStartupError handles startup errors with appropriate logging and exit
func HandleStartupError(err error, context string) {
	log.Printf("Failed to %s: %v", context, err)
	os.Exit(1)
}

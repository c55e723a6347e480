// Command fileclient connects to a fileserver and runs commands typed at an
// interactive prompt or read from standard input.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/c-bata/go-prompt"
	"github.com/fatih/color"
	"golang.org/x/term"

	"fileshare/client"
	"fileshare/config"
	"fileshare/terminal"
	"fileshare/transfer"
)

// ParseFlags builds the client configuration from args. The display name is
// the single positional argument.
func ParseFlags(args []string, out io.Writer) (*config.ClientConfig, bool, error) {
	cfg := config.DefaultClientConfig()
	framing := cfg.Framing.String()

	flags := flag.NewFlagSet("fileclient", flag.ContinueOnError)
	flags.SetOutput(out)
	flags.StringVar(&cfg.Address, "addr", cfg.Address, "server address (host:port)")
	flags.StringVar(&framing, "framing", framing, "transfer framing: sized or legacy")
	flags.DurationVar(&cfg.Pace, "pace", cfg.Pace, "pause between upload chunks")
	flags.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "connect and handshake timeout")
	flags.StringVar(&cfg.MetricsDir, "metrics", "", "directory for the transfer metrics CSV")
	flags.StringVar(&cfg.ThemePath, "theme", "", "theme file (default ~/"+terminal.DefaultThemeFile+")")
	flags.Usage = func() {
		fmt.Fprintf(out, "Usage: %s [flags] <name>\n\nFlags:\n", flags.Name())
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, err
	}
	if flags.NArg() != 1 {
		flags.Usage()
		return nil, false, errors.New("exactly one display name is required")
	}
	cfg.Username = flags.Arg(0)

	var err error
	if cfg.Framing, err = transfer.ParseFraming(framing); err != nil {
		return nil, false, err
	}
	return cfg, false, cfg.Validate()
}

func main() {
	cfg, shouldExit, err := ParseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		log.Fatalf("Failed to parse command line arguments: %v", err)
	}
	if shouldExit {
		return
	}

	themeManager, err := terminal.NewThemeManager(cfg.ThemePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to initialize theme manager: %v\n", err)
		themeManager, err = terminal.NewThemeManager(filepath.Join(os.TempDir(), terminal.DefaultThemeFile))
		if err != nil {
			log.Fatalf("Failed to initialize theme manager: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := client.Dial(ctx, cfg)
	if errors.Is(err, client.ErrServerFull) {
		themeManager.GetErrorColor().Fprintln(os.Stderr, "Server is full. Try again later.")
		os.Exit(1)
	}
	if err != nil {
		themeManager.GetErrorColor().Fprintf(os.Stderr, "Connection failed: %v\n", err)
		os.Exit(1)
	}
	c.SetLogger(log.New(os.Stderr, "", log.LstdFlags))

	a := newApp(ctx, c, themeManager, color.Output)
	a.theme.GetSuccessColor().Fprintln(a.out, c.Welcome())
	a.theme.GetTextColor().Fprintln(a.out, "Type 'HELP' for available commands")

	if term.IsTerminal(int(os.Stdin.Fd())) {
		runPrompt(a)
	} else {
		a.runScript(os.Stdin)
	}
}

func runPrompt(a *app) {
	p := prompt.New(
		func(line string) { a.execute(line) },
		a.completer.Completer,
		prompt.OptionTitle("File Sharing Client"),
		prompt.OptionLivePrefix(a.livePrefix),
		prompt.OptionPrefixTextColor(a.theme.PrefixColor()),
		prompt.OptionPreviewSuggestionTextColor(prompt.Blue),
		prompt.OptionSelectedSuggestionBGColor(prompt.LightGray),
		prompt.OptionSuggestionBGColor(prompt.DarkGray),
		prompt.OptionCompletionWordSeparator(" "),
		prompt.OptionSetExitCheckerOnInput(func(_ string, breakline bool) bool {
			return breakline && a.done
		}),
		prompt.OptionAddKeyBind(prompt.KeyBind{
			Key: prompt.ControlC,
			Fn: func(buf *prompt.Buffer) {
				fmt.Fprintln(a.out, "\nDisconnecting...")
				a.client.Exit()
				os.Exit(0)
			},
		}),
	)
	p.Run()
}

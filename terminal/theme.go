package terminal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/c-bata/go-prompt"
	"github.com/fatih/color"
)

// DefaultThemeFile is created in the home directory when no theme path is given.
const DefaultThemeFile = ".fileshare_theme.json"

// Theme represents a terminal theme configuration
type Theme struct {
	Name         string `json:"name"`
	PromptColor  string `json:"promptColor"`
	TextColor    string `json:"textColor"`
	ErrorColor   string `json:"errorColor"`
	SuccessColor string `json:"successColor"`
	InfoColor    string `json:"infoColor"`
}

var themes = map[string]Theme{
	"dark": {
		Name:         "dark",
		PromptColor:  "green",
		TextColor:    "white",
		ErrorColor:   "red",
		SuccessColor: "green",
		InfoColor:    "cyan",
	},
	"light": {
		Name:         "light",
		PromptColor:  "blue",
		TextColor:    "black",
		ErrorColor:   "red",
		SuccessColor: "green",
		InfoColor:    "blue",
	},
}

// ThemeNames lists the built-in themes.
func ThemeNames() []string {
	return []string{"dark", "light"}
}

// ThemeManager handles theme operations
type ThemeManager struct {
	currentTheme Theme
	configPath   string
}

// NewThemeManager loads the theme saved at configPath, writing the default
// theme there on first use. An empty configPath means DefaultThemeFile in
// the home directory.
func NewThemeManager(configPath string) (*ThemeManager, error) {
	if configPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(homeDir, DefaultThemeFile)
	}

	tm := &ThemeManager{
		currentTheme: themes["dark"],
		configPath:   configPath,
	}

	if err := tm.LoadTheme(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load theme: %w", err)
		}
		if err := tm.SaveTheme(); err != nil {
			return nil, fmt.Errorf("failed to save default theme: %w", err)
		}
	}
	return tm, nil
}

// LoadTheme loads the theme from config file
func (tm *ThemeManager) LoadTheme() error {
	data, err := os.ReadFile(tm.configPath)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, &tm.currentTheme)
}

// SaveTheme saves the current theme to config file
func (tm *ThemeManager) SaveTheme() error {
	data, err := json.MarshalIndent(tm.currentTheme, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(tm.configPath, data, 0644)
}

// SetTheme switches to a built-in theme and persists it.
func (tm *ThemeManager) SetTheme(name string) error {
	theme, ok := themes[name]
	if !ok {
		return fmt.Errorf("unknown theme: %s", name)
	}
	tm.currentTheme = theme
	return tm.SaveTheme()
}

func (tm *ThemeManager) GetThemeName() string {
	return tm.currentTheme.Name
}

func (tm *ThemeManager) GetPromptColor() *color.Color {
	return getColorFromName(tm.currentTheme.PromptColor)
}

func (tm *ThemeManager) GetTextColor() *color.Color {
	return getColorFromName(tm.currentTheme.TextColor)
}

func (tm *ThemeManager) GetErrorColor() *color.Color {
	return getColorFromName(tm.currentTheme.ErrorColor)
}

func (tm *ThemeManager) GetSuccessColor() *color.Color {
	return getColorFromName(tm.currentTheme.SuccessColor)
}

func (tm *ThemeManager) GetInfoColor() *color.Color {
	return getColorFromName(tm.currentTheme.InfoColor)
}

// PrefixColor maps the prompt color onto the palette go-prompt understands.
func (tm *ThemeManager) PrefixColor() prompt.Color {
	switch tm.currentTheme.PromptColor {
	case "black":
		return prompt.Black
	case "red":
		return prompt.Red
	case "yellow":
		return prompt.Yellow
	case "blue":
		return prompt.Blue
	case "magenta":
		return prompt.Purple
	case "cyan":
		return prompt.Cyan
	case "white":
		return prompt.White
	default:
		return prompt.Green
	}
}

func getColorFromName(name string) *color.Color {
	switch name {
	case "black":
		return color.New(color.FgBlack)
	case "red":
		return color.New(color.FgRed)
	case "green":
		return color.New(color.FgGreen)
	case "yellow":
		return color.New(color.FgYellow)
	case "blue":
		return color.New(color.FgBlue)
	case "magenta":
		return color.New(color.FgMagenta)
	case "cyan":
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgWhite)
	}
}

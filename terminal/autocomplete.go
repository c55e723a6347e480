package terminal

import (
	"os"
	"strings"
	"time"

	"github.com/c-bata/go-prompt"

	"fileshare/protocol"
)

// FileLister lists the remote directory for name completion.
type FileLister interface {
	ListFiles() ([]protocol.FileEntry, error)
}

// CommandCompleter handles command and argument completion
type CommandCompleter struct {
	commands          []prompt.Suggest
	remoteFiles       []string
	lastUpdate        time.Time
	lister            FileLister
	cacheTimeout      time.Duration
	localDir          string
	localFileCache    map[string][]string
	localFileCacheAge map[string]time.Time
}

func NewCommandCompleter() *CommandCompleter {
	return &CommandCompleter{
		commands: []prompt.Suggest{
			{Text: "LIST", Description: "List files on the server"},
			{Text: "UPLOAD", Description: "Upload a local file"},
			{Text: "DOWNLOAD", Description: "Download a file from the server"},
			{Text: "DELETE", Description: "Delete a file on the server (admin)"},
			{Text: "RENAME", Description: "Rename a file on the server (admin)"},
			{Text: "EXIT", Description: "Disconnect and quit"},
			{Text: "HELP", Description: "Show help information"},
			{Text: "theme", Description: "Change terminal theme"},
		},
		cacheTimeout:      15 * time.Second,
		localFileCache:    make(map[string][]string),
		localFileCacheAge: make(map[string]time.Time),
	}
}

// SetLister lets the completer refresh remote names once its cache is stale.
func (c *CommandCompleter) SetLister(lister FileLister) {
	c.lister = lister
}

// SetLocalDir sets the directory UPLOAD suggestions are read from. The
// working directory is used when dir is empty.
func (c *CommandCompleter) SetLocalDir(dir string) {
	c.localDir = dir
}

// UpdateRemoteFiles replaces the cached remote names.
func (c *CommandCompleter) UpdateRemoteFiles(entries []protocol.FileEntry) {
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name)
	}
	c.remoteFiles = names
	c.lastUpdate = time.Now()
}

// Completer returns suggestions for the current input
func (c *CommandCompleter) Completer(d prompt.Document) []prompt.Suggest {
	return c.Suggest(d.TextBeforeCursor())
}

// Suggest returns suggestions for text typed so far.
func (c *CommandCompleter) Suggest(text string) []prompt.Suggest {
	words := strings.Fields(text)
	if len(words) == 0 || (len(words) == 1 && !strings.HasSuffix(text, " ")) {
		return c.suggestCommands(words)
	}
	return c.suggestArguments(words, strings.HasSuffix(text, " "))
}

func (c *CommandCompleter) suggestCommands(words []string) []prompt.Suggest {
	if len(words) == 0 {
		return c.commands
	}
	prefix := strings.ToUpper(words[0])
	var filtered []prompt.Suggest
	for _, s := range c.commands {
		if strings.HasPrefix(strings.ToUpper(s.Text), prefix) {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

func (c *CommandCompleter) suggestArguments(words []string, fresh bool) []prompt.Suggest {
	// Only the first argument of a command is completed.
	if len(words) > 2 || (len(words) == 2 && fresh) {
		return nil
	}
	prefix := ""
	if !fresh {
		prefix = words[len(words)-1]
	}

	switch strings.ToUpper(words[0]) {
	case "DOWNLOAD", "DELETE", "RENAME":
		return c.suggestRemoteFiles(prefix)
	case "UPLOAD":
		return c.suggestLocalFiles(prefix)
	case "THEME":
		return filterNames(ThemeNames(), prefix, "Theme")
	default:
		return nil
	}
}

func (c *CommandCompleter) suggestRemoteFiles(prefix string) []prompt.Suggest {
	if c.lister != nil && time.Since(c.lastUpdate) > c.cacheTimeout {
		c.refreshRemoteCache()
	}
	return filterNames(c.remoteFiles, prefix, "Remote file")
}

// suggestLocalFiles returns local file suggestions for UPLOAD
func (c *CommandCompleter) suggestLocalFiles(prefix string) []prompt.Suggest {
	dir := c.localDir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil
		}
		dir = cwd
	}

	files, cached := c.localFileCache[dir]
	if !cached || time.Since(c.localFileCacheAge[dir]) >= 10*time.Second {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil
		}
		files = files[:0]
		for _, entry := range entries {
			if entry.Type().IsRegular() {
				files = append(files, entry.Name())
			}
		}
		c.localFileCache[dir] = files
		c.localFileCacheAge[dir] = time.Now()
	}
	return filterNames(files, prefix, "Local file")
}

// refreshRemoteCache keeps the old cache when listing fails.
func (c *CommandCompleter) refreshRemoteCache() {
	entries, err := c.lister.ListFiles()
	if err != nil {
		return
	}
	c.UpdateRemoteFiles(entries)
}

// ClearCache clears all cached suggestions
func (c *CommandCompleter) ClearCache() {
	c.remoteFiles = nil
	c.localFileCache = make(map[string][]string)
	c.localFileCacheAge = make(map[string]time.Time)
	c.lastUpdate = time.Time{}
}

// filterNames matches prefix case-insensitively. Hidden names are offered
// only when the prefix starts with a dot.
func filterNames(names []string, prefix, description string) []prompt.Suggest {
	var suggestions []prompt.Suggest
	for _, name := range names {
		if strings.HasPrefix(name, ".") && !strings.HasPrefix(prefix, ".") {
			continue
		}
		if strings.HasPrefix(strings.ToLower(name), strings.ToLower(prefix)) {
			suggestions = append(suggestions, prompt.Suggest{Text: name, Description: description})
		}
	}
	return suggestions
}

// Package terminal holds the interactive front end of the client: colors,
// listing tables and command completion.
package terminal

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"fileshare/protocol"
)

// maxNameWidth truncates long names in the Name column.
const maxNameWidth = 50

// TableFormatter renders remote listings as a table.
type TableFormatter struct {
	out io.Writer
}

func NewTableFormatter(out io.Writer) *TableFormatter {
	return &TableFormatter{out: out}
}

func (tf *TableFormatter) newTable() *tablewriter.Table {
	table := tablewriter.NewWriter(tf.out)
	table.Options(
		tablewriter.WithRendition(tw.Rendition{Borders: tw.Border{Left: tw.Pending, Right: tw.Pending, Top: tw.Pending, Bottom: tw.Pending}}),
		tablewriter.WithPadding(tw.Padding{Left: " ", Right: " "}),
	)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.MaxWidth = 0
		cfg.Header = tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		}
		cfg.Row = tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		}
		cfg.Behavior = tw.Behavior{}
	})
	table.Header("Name", "Type", "Size")
	return table
}

// Render writes one row per entry.
func (tf *TableFormatter) Render(entries []protocol.FileEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(tf.out, protocol.NoFilesFound)
		return err
	}

	table := tf.newTable()
	for _, entry := range entries {
		name := entry.Name
		if len(name) > maxNameWidth {
			name = name[:maxNameWidth-3] + "..."
		}
		table.Append([]string{name, fileType(entry.Name), formatSize(entry.Size)})
	}
	return table.Render()
}

// fileType shows the extension in caps, or "file" without one.
func fileType(name string) string {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		return "file"
	}
	return strings.ToUpper(ext)
}

// formatSize formats a file size in human-readable format
func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Change is one observed modification of the shared directory.
type Change struct {
	Op   string
	Name string
}

// Watch reports changes to the shared directory until ctx is done. It sees
// changes made by transfers as well as those made outside the server.
func (d *Dir) Watch(ctx context.Context, onChange func(Change), onError func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(d.root); err != nil {
		return fmt.Errorf("watch %s: %w", d.root, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(event.Name)
			if strings.HasPrefix(name, ".") {
				continue
			}
			onChange(Change{Op: opName(event.Op), Name: name})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if onError != nil {
				onError(err)
			}
		}
	}
}

func opName(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "CREATE"
	case op.Has(fsnotify.Write):
		return "WRITE"
	case op.Has(fsnotify.Remove):
		return "REMOVE"
	case op.Has(fsnotify.Rename):
		return "RENAME"
	case op.Has(fsnotify.Chmod):
		return "CHMOD"
	}
	return op.String()
}

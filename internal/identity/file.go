package identity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type state struct {
	UserID int64 `yaml:"user_id"`
}

// FileStore keeps the identity in a small YAML file. Writes go through a
// temp file and rename so readers never observe a partial file.
type FileStore struct {
	Path   string
	Logger zerolog.Logger
}

func (f *FileStore) Load(ctx context.Context) (int64, bool, error) {
	b, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	var st state
	if err := yaml.Unmarshal(b, &st); err != nil {
		return 0, false, fmt.Errorf("parse %s: %w", f.Path, err)
	}
	return st.UserID, st.UserID > 0, nil
}

func (f *FileStore) Save(ctx context.Context, userID int64) error {
	b, err := yaml.Marshal(state{UserID: userID})
	if err != nil {
		return err
	}
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".state-*.yaml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.Path)
}

func (f *FileStore) Clear(ctx context.Context) error {
	err := os.Remove(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Watch emits an Event whenever the stored identity changes, including
// changes made by this process. The channel closes when ctx is done.
func (f *FileStore) Watch(ctx context.Context) (<-chan Event, error) {
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// The directory is watched because rename replaces the file.
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}

	last, present, _ := f.Load(ctx)
	if !present {
		last = 0
	}
	target := filepath.Clean(f.Path)
	events := make(chan Event, 8)

	go func() {
		defer close(events)
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
					continue
				}
				id, ok, err := f.Load(ctx)
				if err != nil {
					f.Logger.Warn().Err(err).Str("path", f.Path).Msg("identity reload failed")
					continue
				}
				if !ok {
					id = 0
				}
				if id == last {
					continue
				}
				last = id
				select {
				case events <- Event{UserID: id, Present: ok}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				f.Logger.Warn().Err(err).Msg("identity watcher error")
			}
		}
	}()

	return events, nil
}

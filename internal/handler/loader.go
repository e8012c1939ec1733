package handler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"hostbot/internal/common/fsutil"
	"hostbot/internal/config"
)

// Discover scans locations in order and builds a Registry from the valid
// manifests found there. Entries inside a location are visited in file name
// order. Only an unreadable location is an error.
func Discover(ctx context.Context, locations []string, cat *Catalog, logger zerolog.Logger) (*Registry, error) {
	reg := NewRegistry()
	for _, loc := range locations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dir, entries, err := readLocation(loc)
		if err != nil {
			return nil, &LocationError{Location: loc, Err: err}
		}
		loaded, skipped := 0, 0
		for _, e := range entries {
			if e.IsDir() || !config.Supported(e.Name()) {
				continue
			}
			p := filepath.Join(dir, e.Name())
			if err := register(reg, cat, p, logger); err != nil {
				logger.Warn().Str("location", loc).Str("file", e.Name()).Err(err).Msg("skipping handler")
				skipped++
				continue
			}
			loaded++
		}
		logger.Info().Str("location", loc).Int("loaded", loaded).Int("skipped", skipped).Msg("handler location scanned")
	}
	return reg, nil
}

func readLocation(loc string) (string, []os.DirEntry, error) {
	abs, err := fsutil.ResolveDir(loc)
	if err != nil {
		return "", nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return "", nil, fmt.Errorf("read dir: %w", err)
	}
	return abs, entries, nil
}

func register(reg *Registry, cat *Catalog, path string, logger zerolog.Logger) error {
	m, err := readManifest(path)
	if err != nil {
		return err
	}
	switch m.Kind {
	case KindCommand:
		fn, ok := cat.Command(m.Action)
		if !ok {
			return manifestError{path: path, reason: "unknown command action " + m.Action}
		}
		cmd := &Command{
			Data: CommandData{
				Name:        m.Name,
				Description: m.Description,
				Options:     m.Options,
				Admin:       m.Admin,
			},
			Execute: fn,
			Source:  path,
		}
		if prev := reg.AddCommand(cmd); prev != nil {
			logger.Warn().Str("command", m.Name).Str("previous", prev.Source).Str("source", path).Msg("command overwritten")
		}
		logger.Info().Str("command", m.Name).Bool("admin", m.Admin).Msg("loaded command")
	case KindEvent:
		fn, ok := cat.Event(m.Action)
		if !ok {
			return manifestError{path: path, reason: "unknown event action " + m.Action}
		}
		reg.AddEvent(&EventHandler{Name: m.Event, Once: m.Once, Execute: fn, Source: path})
		logger.Info().Str("event", m.Event).Bool("once", m.Once).Msg("loaded event")
	default:
		return manifestError{path: path, reason: "unknown kind " + m.Kind}
	}
	return nil
}

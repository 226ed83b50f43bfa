package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/barysiuk/skillsource/internal/logger"
)

// curatedTxn applies changes to the curated directory so that they can be
// undone until the lockfile is written. Replaced and pruned skills are moved
// into a hidden backup directory inside the curated directory, which keeps
// renames on one filesystem and out of skill scans.
type curatedTxn struct {
	dir       string
	backupDir string
	created   bool
	backedUp  []string
	installed []string
}

func beginCurated(dir string) (*curatedTxn, error) {
	t := &curatedTxn{dir: dir, created: !dirExists(dir)}
	if err := ensureCuratedDir(dir); err != nil {
		return nil, err
	}
	backup, err := os.MkdirTemp(dir, ".backup-*")
	if err != nil {
		if t.created {
			_ = os.RemoveAll(dir)
		}
		return nil, fmt.Errorf("creating curated backup: %w", err)
	}
	t.backupDir = backup
	return t, nil
}

// stash moves the curated skill name into the backup, if present.
func (t *curatedTxn) stash(name string) error {
	src := filepath.Join(t.dir, name)
	if _, err := os.Lstat(src); os.IsNotExist(err) {
		return nil
	}
	if err := os.Rename(src, filepath.Join(t.backupDir, name)); err != nil {
		return fmt.Errorf("backing up curated skill %s: %w", name, err)
	}
	t.backedUp = append(t.backedUp, name)
	return nil
}

// install places the staged directory src as the curated skill name.
func (t *curatedTxn) install(src, name string) error {
	if err := t.stash(name); err != nil {
		return err
	}
	t.installed = append(t.installed, name)
	if err := replaceDir(src, filepath.Join(t.dir, name)); err != nil {
		return fmt.Errorf("storing curated skill %s: %w", name, err)
	}
	return nil
}

// prune stashes every curated skill not in keep and returns their names.
func (t *curatedTxn) prune(keep map[string]bool) ([]string, error) {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		return nil, fmt.Errorf("reading curated skills directory: %w", err)
	}
	var pruned []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || strings.HasPrefix(name, ".") || keep[name] {
			continue
		}
		if err := t.stash(name); err != nil {
			return nil, err
		}
		pruned = append(pruned, name)
	}
	sort.Strings(pruned)
	return pruned, nil
}

// finish drops the backup once the new state is in place.
func (t *curatedTxn) finish(ctx context.Context) {
	if err := os.RemoveAll(t.backupDir); err != nil {
		logger.G(ctx).WithError(err).WithField("path", t.backupDir).Warn("removing curated backup")
	}
}

// rollback restores the curated directory to its state before beginCurated.
func (t *curatedTxn) rollback(ctx context.Context) {
	log := logger.G(ctx).WithField("path", t.dir)
	for _, name := range t.installed {
		if err := os.RemoveAll(filepath.Join(t.dir, name)); err != nil {
			log.WithError(err).WithField("skill", name).Warn("removing installed skill")
		}
	}
	for i := len(t.backedUp) - 1; i >= 0; i-- {
		name := t.backedUp[i]
		if err := os.Rename(filepath.Join(t.backupDir, name), filepath.Join(t.dir, name)); err != nil {
			log.WithError(err).WithField("skill", name).Warn("restoring curated skill")
		}
	}
	if t.created {
		if err := os.RemoveAll(t.dir); err != nil {
			log.WithError(err).Warn("removing curated directory")
		}
		return
	}
	if err := os.RemoveAll(t.backupDir); err != nil {
		log.WithError(err).Warn("removing curated backup")
	}
}

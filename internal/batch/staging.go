package batch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

const partSuffix = ".part"

// staging namespaces every file of one run under <dir>/<uid>-<runID>-.
type staging struct {
	dir    string
	prefix string
}

func newStaging(dir string, uid int64, runID string) staging {
	return staging{dir: dir, prefix: fmt.Sprintf("%d-%s-", uid, runID)}
}

func (s staging) file(index int, ext string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s%d%s", s.prefix, index, ext))
}

func (s staging) thumbnail() string {
	return filepath.Join(s.dir, s.prefix+"thumb.jpg")
}

// create opens <final>.part for writing, discarding a stale one from a prior attempt.
func (s staging) create(final string) (*os.File, error) {
	part := final + partSuffix
	if err := os.Remove(part); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("remove stale %s: %w", part, err)
	}
	return os.OpenFile(part, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
}

// commit exposes a fully written part file under its final name.
func (s staging) commit(final string) error {
	return os.Rename(final+partSuffix, final)
}

func (s staging) discard(final string) {
	for _, p := range []string{final + partSuffix, final} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("path", p).Msg("failed to remove staged file")
		}
	}
}

// purge removes everything this run left behind.
func (s staging) purge() int {
	matches, err := filepath.Glob(filepath.Join(s.dir, s.prefix+"*"))
	if err != nil {
		log.Warn().Err(err).Str("prefix", s.prefix).Msg("staging glob failed")
		return 0
	}
	removed := 0
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("path", m).Msg("failed to purge staged file")
			continue
		}
		removed++
	}
	return removed
}

package naming

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/BatmanBruc/bat-bot-renamer/internal/episode"
	"github.com/BatmanBruc/bat-bot-renamer/types"
)

var (
	ErrMissingTitle   = errors.New("rename: title is required")
	ErrMissingPattern = errors.New("rename: season/episode pattern is required, e.g. S1E01")
)

var (
	patternToken = regexp.MustCompile(`(?i)^S(\d{1,3})E(\d{0,4})$`)
	qualityToken = regexp.MustCompile(`(?i)^(\d{3,4}p|4k)$`)
	extToken     = regexp.MustCompile(`^\.[A-Za-z0-9]{1,5}$`)
	unsafeChars  = strings.NewReplacer("/", "_", "\\", "_", "\x00", "")
)

// Target builds the automatic name for the file at position index of the batch.
// The extracted episode number wins over StartEpisode+index.
func Target(cfg types.RenameConfig, fileName string, index int) string {
	ep, ok := episode.Extract(fileName)
	if !ok {
		ep = cfg.StartEpisode + uint(index)
	}
	if e := log.Debug(); e.Enabled() {
		e.Str("file", fileName).Str("rule", episode.Rule(fileName)).Uint("episode", ep).Msg("episode resolved")
	}

	quality := cfg.Quality
	if quality == "" {
		quality = episode.Quality(fileName)
	}

	return Format(cfg.BaseTitle, cfg.Season, ep, cfg.ZeroPad, quality, cfg.Tag)
}

// Format joins the non-empty parts with single spaces. Only the episode is ever padded.
func Format(base string, season, ep uint, zeroPad bool, quality, tag string) string {
	epStr := strconv.FormatUint(uint64(ep), 10)
	if zeroPad {
		epStr = fmt.Sprintf("%02d", ep)
	}

	parts := []string{
		strings.TrimSpace(base),
		fmt.Sprintf("S%dE%s", season, epStr),
		strings.TrimSpace(quality),
		strings.TrimSpace(tag),
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

// Extension returns the source extension, or the default one when the name has none.
func Extension(sourceName string) string {
	ext := filepath.Ext(sourceName)
	if !extToken.MatchString(ext) {
		return types.DefaultExtension
	}
	return ext
}

// UploadName appends the source extension to target unless it is already there
// and strips path separators.
func UploadName(target, sourceName string) string {
	name := strings.TrimSpace(unsafeChars.Replace(target))
	if name == "" || name == "." || name == ".." {
		return types.DefaultFileName
	}

	ext := Extension(sourceName)
	if strings.HasSuffix(strings.ToLower(name), strings.ToLower(ext)) {
		return name
	}
	return name + ext
}

// ParseRenameArgs parses the arguments of /rename:
//
//	<title...> S<season>E[<episode>] [quality] [tag...]
//
// A missing episode starts at 1. A zero-led season or episode (S01E, S1E01) turns on padding.
func ParseRenameArgs(args string) (types.RenameConfig, error) {
	var cfg types.RenameConfig

	fields := strings.Fields(args)
	at := -1
	for i, f := range fields {
		if patternToken.MatchString(f) {
			at = i
			break
		}
	}
	if at < 0 {
		return cfg, ErrMissingPattern
	}
	if at == 0 {
		return cfg, ErrMissingTitle
	}

	m := patternToken.FindStringSubmatch(fields[at])
	season, err := strconv.ParseUint(m[1], 10, 32)
	if err != nil {
		return cfg, fmt.Errorf("rename: bad season %q: %w", m[1], err)
	}

	start := uint64(1)
	if m[2] != "" {
		start, err = strconv.ParseUint(m[2], 10, 32)
		if err != nil {
			return cfg, fmt.Errorf("rename: bad episode %q: %w", m[2], err)
		}
	}

	cfg.BaseTitle = strings.Join(fields[:at], " ")
	cfg.Season = uint(season)
	cfg.StartEpisode = uint(start)
	cfg.ZeroPad = (len(m[1]) > 1 && m[1][0] == '0') || (len(m[2]) > 1 && m[2][0] == '0')

	rest := fields[at+1:]
	if len(rest) > 0 && qualityToken.MatchString(rest[0]) {
		cfg.Quality = strings.ToLower(rest[0])
		if cfg.Quality == "4k" {
			cfg.Quality = "2160p"
		}
		rest = rest[1:]
	}
	cfg.Tag = strings.Join(rest, " ")

	return cfg, nil
}

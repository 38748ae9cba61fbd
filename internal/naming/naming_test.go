package naming

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"

	"github.com/BatmanBruc/bat-bot-renamer/types"
)

func TestTargetLogsRule(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	log.Logger = zerolog.New(&buf)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	cfg := types.RenameConfig{BaseTitle: "Show", Season: 1, StartEpisode: 1}
	require.Equal("Show S1E5", Target(cfg, "Show.S01E05.mkv", 0))
	require.Contains(buf.String(), `"rule":"season_episode"`)
	require.Contains(buf.String(), `"episode":5`)

	buf.Reset()
	require.Equal("Show S1E3", Target(cfg, "extras.mkv", 2))
	require.Contains(buf.String(), `"rule":""`)
	require.Contains(buf.String(), `"episode":3`)
}

func TestFormat(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	require.Equal("Show S1E03", Format("Show", 1, 3, true, "", ""))
	require.Equal("Show S1E3", Format("Show", 1, 3, false, "", ""))
	require.Equal("Show S10E120", Format("Show", 10, 120, true, "", ""))
	require.Equal("Show S2E05 1080p [Subs]", Format(" Show ", 2, 5, true, "1080p", "[Subs]"))
	require.Equal("S1E01", Format("", 1, 1, true, "", ""))
}

func TestTarget(t *testing.T) {
	t.Parallel()

	cfg := types.RenameConfig{BaseTitle: "Naruto", Season: 1, StartEpisode: 1, ZeroPad: true}

	tests := []struct {
		name     string
		cfg      types.RenameConfig
		file     string
		index    int
		expected string
	}{
		{"extracted episode", cfg, "naruto.e07.mkv", 0, "Naruto S1E07"},
		{"fallback to index", cfg, "random.mkv", 4, "Naruto S1E05"},
		{"quality from name", cfg, "naruto.S01E02.720p.mkv", 0, "Naruto S1E02 720p"},
		{
			"configured quality wins",
			types.RenameConfig{BaseTitle: "Naruto", Season: 2, StartEpisode: 10, Quality: "1080p", Tag: "@chan"},
			"naruto.720p.mkv", 1, "Naruto S2E11 1080p @chan",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, Target(tc.cfg, tc.file, tc.index))
		})
	}
}

func TestUploadName(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	require.Equal("Show S1E03.mkv", UploadName("Show S1E03", "a.mkv"))
	require.Equal("Show S1E03.mp4", UploadName("Show S1E03.mp4", "a.mp4"))
	require.Equal("Show S1E03.MP4", UploadName("Show S1E03.MP4", "a.mp4"))
	require.Equal("Show S1E03.mkv", UploadName("Show S1E03", "noext"))
	require.Equal("a_b_c.avi", UploadName("a/b\\c", "x.avi"))
	require.Equal(types.DefaultFileName, UploadName("  ", "x.avi"))
}

func TestParseRenameArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		args     string
		expected types.RenameConfig
		err      error
	}{
		{
			name:     "padded",
			args:     "Naruto S01E",
			expected: types.RenameConfig{BaseTitle: "Naruto", Season: 1, StartEpisode: 1, ZeroPad: true},
		},
		{
			name:     "plain",
			args:     "Naruto S1E",
			expected: types.RenameConfig{BaseTitle: "Naruto", Season: 1, StartEpisode: 1},
		},
		{
			name: "full",
			args: "One Piece S2E05 1080P [Dual Audio]",
			expected: types.RenameConfig{
				BaseTitle: "One Piece", Season: 2, StartEpisode: 5, ZeroPad: true,
				Quality: "1080p", Tag: "[Dual Audio]",
			},
		},
		{
			name:     "tag without quality",
			args:     "Bleach s3e12 @mychannel",
			expected: types.RenameConfig{BaseTitle: "Bleach", Season: 3, StartEpisode: 12, Tag: "@mychannel"},
		},
		{name: "no pattern", args: "Naruto", err: ErrMissingPattern},
		{name: "empty", args: "", err: ErrMissingPattern},
		{name: "no title", args: "S1E01", err: ErrMissingTitle},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require := require.New(t)
			cfg, err := ParseRenameArgs(tc.args)
			if tc.err != nil {
				require.ErrorIs(err, tc.err)
				return
			}
			require.NoError(err)
			require.Equal(tc.expected, cfg)
		})
	}
}

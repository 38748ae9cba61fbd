package episode

import (
	"regexp"
	"strconv"
	"strings"
)

// rule is one episode heuristic. Rules are tried in order, most specific first.
type rule struct {
	name  string
	regex *regexp.Regexp
	group int
}

var rules = []rule{
	// S01E05, s1e5, S01.E05, S01 - E05
	{name: "season_episode", regex: regexp.MustCompile(`(?i)S(\d{1,2})[ ._-]*E(\d{1,4})`), group: 2},
	// E12, Ep12, EP.12, ep 12 (not part of a word)
	{name: "episode_token", regex: regexp.MustCompile(`(?i)(?:^|[^a-z])EP?[ ._-]?(\d{1,4})`), group: 1},
	// Episode 5, Episode.05
	{name: "episode_word", regex: regexp.MustCompile(`(?i)Episode[ ._-]*(\d{1,4})`), group: 1},
	// Lowest confidence: a lone 1-3 digit number. Digits glued to letters (480p, x264) are skipped.
	{name: "bare_number", regex: regexp.MustCompile(`(?:^|[^0-9A-Za-z])(\d{1,3})(?:[^0-9A-Za-z]|$)`), group: 1},
}

var resolution = regexp.MustCompile(`(?i)(?:^|[^0-9a-z])(2160p|1080p|720p|480p|360p|4k)(?:[^0-9a-z]|$)`)

// Extract infers an episode number from a file name.
// The second result is false when no rule matched.
func Extract(fileName string) (uint, bool) {
	for _, r := range rules {
		m := r.regex.FindStringSubmatch(fileName)
		if len(m) <= r.group {
			continue
		}
		n, err := strconv.ParseUint(m[r.group], 10, 32)
		if err != nil {
			continue
		}
		return uint(n), true
	}
	return 0, false
}

// Rule reports which heuristic matched, or "" when none did.
func Rule(fileName string) string {
	for _, r := range rules {
		if r.regex.MatchString(fileName) {
			return r.name
		}
	}
	return ""
}

// Quality returns the resolution token found in the name, normalized to lower case.
func Quality(fileName string) string {
	m := resolution.FindStringSubmatch(fileName)
	if len(m) < 2 {
		return ""
	}
	q := strings.ToLower(m[1])
	if q == "4k" {
		return "2160p"
	}
	return q
}

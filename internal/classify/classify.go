package classify

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// UntaggedKey is the shared session key for filenames without exploitable
// structure. All such files accumulate into one session.
const UntaggedKey = "untagged_session"

var (
	// Standard export naming: <YYYY-MM-DD>_<Track>_<RunTag>[_<ExportType>].<ext>
	standardPattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})_([^_]+)_([^_]+).*$`)
	// Simulator stint naming: <car>_<track> <YYYY-MM-DD> <HH-MM-SS>_<stint-label>_<stint-number>...
	alternativePattern = regexp.MustCompile(`^([^_]+)_([^_\s]+) (\d{4}-\d{2}-\d{2}) (\d{2}-\d{2}-\d{2})_([^_]+)_(\d+).*$`)

	whitespace = regexp.MustCompile(`\s+`)

	trackCaser = cases.Title(language.English)
)

// Classify derives the session key for a drop-off filename. It is a total
// function: ok is false only for names that carry underscore structure too
// thin to form a key (for example "a_b.csv"), which callers leave in the
// inbox for manual triage.
func Classify(filename string) (key string, ok bool) {
	if m := standardPattern.FindStringSubmatch(filename); m != nil {
		return m[1] + "_" + m[2] + "_" + m[3], true
	}

	if m := alternativePattern.FindStringSubmatch(filename); m != nil {
		track := whitespace.ReplaceAllString(m[2], "")
		return m[3] + "_" + track + "_" + m[5] + m[6], true
	}

	if !strings.Contains(filename, "_") {
		return UntaggedKey, true
	}

	parts := strings.Split(filename, "_")
	if parts[0] == "untagged" {
		return UntaggedKey, true
	}
	if len(parts) >= 3 {
		return parts[0] + "_" + parts[1] + "_" + parts[2], true
	}
	return "", false
}

// SplitKey breaks a session key into its date, track, and tag tokens. Keys
// with fewer than three tokens (the untagged key) return empty strings for
// the missing positions.
func SplitKey(key string) (date, track, tag string) {
	parts := strings.SplitN(key, "_", 3)
	switch len(parts) {
	case 3:
		return parts[0], parts[1], parts[2]
	case 2:
		return parts[0], parts[1], ""
	default:
		return parts[0], "", ""
	}
}

// DisplayName renders a session key for human-facing output (TOC rows, CLI
// tables): the track token is title-cased, the rest is left alone. The key
// itself is never altered.
func DisplayName(key string) string {
	if key == UntaggedKey {
		return "untagged session"
	}
	date, track, tag := SplitKey(key)
	if track == "" {
		return key
	}
	display := date + " " + trackCaser.String(track)
	if tag != "" {
		display += " " + tag
	}
	return display
}

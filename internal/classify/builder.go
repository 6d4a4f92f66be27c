package classify

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var numericTag = regexp.MustCompile(`^\d{2}$`)

// Build produces a unique session key under sessionsRoot for a date/track
// pair. With a desired tag, an existing directory of the same name pushes the
// result to a lowercase alphabetic disambiguator (-a, -b, ...). Without a
// tag, the next free two-digit numeric tag is derived from the directories
// already sharing the date_track prefix.
func Build(sessionsRoot, date, track, desiredTag string) (string, error) {
	base := date + "_" + track

	if strings.TrimSpace(desiredTag) != "" {
		candidate := base + "_" + desiredTag
		if _, err := os.Stat(joinSession(sessionsRoot, candidate)); os.IsNotExist(err) {
			return candidate, nil
		}

		for suffix := 'a'; suffix <= 'z'; suffix++ {
			uniqued := candidate + "-" + string(suffix)
			if _, err := os.Stat(joinSession(sessionsRoot, uniqued)); os.IsNotExist(err) {
				return uniqued, nil
			}
		}
		return "", fmt.Errorf("no free disambiguator for session %q", candidate)
	}

	entries, err := os.ReadDir(sessionsRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("%s_%02d", base, 1), nil
		}
		return "", fmt.Errorf("list sessions root: %w", err)
	}

	max := 0
	prefix := base + "_"
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		tag := name[len(prefix):]
		if !numericTag.MatchString(tag) {
			continue
		}
		if n, err := strconv.Atoi(tag); err == nil && n > max {
			max = n
		}
	}
	return fmt.Sprintf("%s_%02d", base, max+1), nil
}

func joinSession(root, name string) string {
	return filepath.Join(root, name)
}

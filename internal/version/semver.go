package version

import (
	"strconv"
	"strings"
)

// parseSemver extracts the numeric core of a semver string. Prerelease
// suffixes and build metadata are dropped; missing parts default to zero.
func parseSemver(v string) [3]int {
	v = strings.TrimPrefix(v, "v")

	if idx := strings.IndexAny(v, "-+"); idx != -1 {
		v = v[:idx]
	}

	var out [3]int
	parts := strings.Split(v, ".")
	for i := 0; i < len(parts) && i < 3; i++ {
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			return [3]int{}
		}
		out[i] = n
	}
	return out
}

// isNewer reports whether latest is a strictly newer core version than
// current. Prerelease and build metadata are ignored.
func isNewer(latest, current string) bool {
	l, c := parseSemver(latest), parseSemver(current)
	for i := 0; i < 3; i++ {
		if l[i] != c[i] {
			return l[i] > c[i]
		}
	}
	return false
}

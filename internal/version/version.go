// Package version tells a running showsync binary whether a newer release
// exists. Lookups go through the GitHub releases API and are cached on disk
// so the CLI does not hit the network on every invocation.
package version

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const latestReleaseURL = "https://api.github.com/repos/anders/showsync/releases/latest"

type githubRelease struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// CheckResult is the outcome of one release lookup.
type CheckResult struct {
	CurrentVersion string
	LatestVersion  string
	UpdateURL      string
	HasUpdate      bool
	Err            error
}

// Check queries GitHub for the latest release tag and compares it against
// the running version. Development builds are never checked.
func Check(current string) CheckResult {
	res := CheckResult{CurrentVersion: current}
	if isDevBuild(current) {
		return res
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(latestReleaseURL)
	if err != nil {
		res.Err = err
		return res
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		res.Err = fmt.Errorf("release lookup: %s", resp.Status)
		return res
	}

	var rel githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		res.Err = fmt.Errorf("decode release: %w", err)
		return res
	}

	res.LatestVersion = rel.TagName
	res.UpdateURL = rel.HTMLURL
	res.HasUpdate = isNewer(rel.TagName, current)
	return res
}

// isDevBuild reports whether the binary was built outside the release
// pipeline. Such builds carry "dev"-style version strings and are excluded
// from update checks.
func isDevBuild(v string) bool {
	switch v {
	case "", "unknown", "dev", "devel":
		return true
	}
	return strings.HasPrefix(v, "devel+")
}

// releaseTagRE accepts plain and prerelease semver tags. Anything else is
// not a tag we would ever publish, so it never reaches a shell.
var releaseTagRE = regexp.MustCompile(`^v?\d+\.\d+\.\d+(-[a-zA-Z0-9]+([.-][a-zA-Z0-9]+)*)?$`)

// installCommand renders the go install invocation for a release tag, or ""
// when the tag does not look like one of ours.
func installCommand(tag string) string {
	if !releaseTagRE.MatchString(tag) {
		return ""
	}
	return fmt.Sprintf(
		"go install -ldflags \"-X main.Version=%s\" github.com/anders/showsync@%s",
		tag, tag,
	)
}

package version

import "time"

// Update describes an available newer release.
type Update struct {
	CurrentVersion string
	LatestVersion  string
	UpdateCommand  string
}

// CheckCached checks for a newer release, consulting the on-disk cache before
// hitting the network. Returns nil when up to date, running a development
// build, or the check failed.
func CheckCached(currentVersion string) *Update {
	if isDevBuild(currentVersion) {
		return nil
	}

	if cached, err := LoadCache(); err == nil && IsCacheValid(cached, currentVersion) {
		if cached.HasUpdate {
			return &Update{
				CurrentVersion: currentVersion,
				LatestVersion:  cached.LatestVersion,
				UpdateCommand:  installCommand(cached.LatestVersion),
			}
		}
		return nil
	}

	result := Check(currentVersion)

	// Network errors are not cached, so the next run retries.
	if result.Err == nil {
		_ = SaveCache(&CacheEntry{
			LatestVersion:  result.LatestVersion,
			CurrentVersion: currentVersion,
			CheckedAt:      time.Now(),
			HasUpdate:      result.HasUpdate,
		})
	}

	if result.HasUpdate {
		return &Update{
			CurrentVersion: currentVersion,
			LatestVersion:  result.LatestVersion,
			UpdateCommand:  installCommand(result.LatestVersion),
		}
	}
	return nil
}

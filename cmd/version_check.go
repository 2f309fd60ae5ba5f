package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Static errors for version checking
var (
	ErrVersionCheckFailed = errors.New("version check failed")
)

// GitHubRelease is the subset of the latest-release API response we read
type GitHubRelease struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	PublishedAt time.Time `json:"published_at"`
	HTMLURL     string    `json:"html_url"`
}

// VersionCheckResult contains the result of checking for updates
type VersionCheckResult struct {
	UpdateAvailable bool
	CurrentVersion  string
	LatestVersion   string
	ReleaseURL      string
	Error           error
}

const (
	githubAPIURL        = "https://api.github.com/repos/airframesio/country-compare/releases/latest"
	versionCheckTimeout = 5 * time.Second
	cacheExpiry         = 24 * time.Hour
)

// VersionCheckCache represents cached version check data
type VersionCheckCache struct {
	UpdateAvailable bool      `json:"update_available"`
	LatestVersion   string    `json:"latest_version"`
	ReleaseURL      string    `json:"release_url"`
	Timestamp       time.Time `json:"timestamp"`
}

type versionChecker struct {
	client    *http.Client
	apiURL    string
	cachePath string
}

func newVersionChecker() *versionChecker {
	homeDir, _ := os.UserHomeDir()
	return &versionChecker{
		client:    &http.Client{Timeout: versionCheckTimeout},
		apiURL:    githubAPIURL,
		cachePath: filepath.Join(homeDir, ".country-compare", "version_check.json"),
	}
}

// Check queries the release API, or a cached answer younger than a day,
// and compares the latest tag with current. Failures land in Error and
// never abort the caller.
func (v *versionChecker) Check(ctx context.Context, currentVersion string) VersionCheckResult {
	result := VersionCheckResult{
		CurrentVersion: currentVersion,
	}

	// Development builds never nag
	if currentVersion == "dev" || currentVersion == "" {
		return result
	}

	if cached := v.readCache(); cached != nil && time.Since(cached.Timestamp) < cacheExpiry {
		return VersionCheckResult{
			UpdateAvailable: cached.UpdateAvailable,
			CurrentVersion:  currentVersion,
			LatestVersion:   cached.LatestVersion,
			ReleaseURL:      cached.ReleaseURL,
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.apiURL, nil)
	if err != nil {
		result.Error = fmt.Errorf("failed to create request: %w", err)
		return result
	}
	// GitHub rejects requests without a User-Agent
	req.Header.Set("User-Agent", fmt.Sprintf("country-compare/%s", currentVersion))
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := v.client.Do(req)
	if err != nil {
		result.Error = fmt.Errorf("failed to fetch latest release: %w", err)
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		result.Error = fmt.Errorf("%w: status %d", ErrVersionCheckFailed, resp.StatusCode)
		return result
	}

	var release GitHubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		result.Error = fmt.Errorf("failed to decode response: %w", err)
		return result
	}

	latestVersion := strings.TrimPrefix(release.TagName, "v")
	result.LatestVersion = latestVersion
	result.ReleaseURL = release.HTMLURL
	result.UpdateAvailable = compareVersions(latestVersion, strings.TrimPrefix(currentVersion, "v")) > 0

	v.writeCache(VersionCheckCache{
		UpdateAvailable: result.UpdateAvailable,
		LatestVersion:   latestVersion,
		ReleaseURL:      result.ReleaseURL,
		Timestamp:       time.Now(),
	})

	return result
}

func (v *versionChecker) readCache() *VersionCheckCache {
	if v.cachePath == "" {
		return nil
	}
	data, err := os.ReadFile(v.cachePath)
	if err != nil {
		return nil
	}

	var cache VersionCheckCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil
	}
	return &cache
}

func (v *versionChecker) writeCache(cache VersionCheckCache) {
	if v.cachePath == "" {
		return
	}
	_ = os.MkdirAll(filepath.Dir(v.cachePath), 0o755)

	data, err := json.Marshal(cache)
	if err != nil {
		return
	}
	_ = os.WriteFile(v.cachePath, data, 0o600)
}

// compareVersions compares two semantic version strings
// Returns: 1 if v1 > v2, -1 if v1 < v2, 0 if equal
func compareVersions(v1, v2 string) int {
	parts1 := parseVersion(v1)
	parts2 := parseVersion(v2)

	for i := 0; i < 3; i++ {
		if parts1[i] > parts2[i] {
			return 1
		}
		if parts1[i] < parts2[i] {
			return -1
		}
	}
	return 0
}

// parseVersion parses a semantic version string into [major, minor, patch]
func parseVersion(version string) [3]int {
	var parts [3]int
	components := strings.Split(version, ".")

	for i := 0; i < 3 && i < len(components); i++ {
		var num int
		_, _ = fmt.Sscanf(components[i], "%d", &num)
		parts[i] = num
	}

	return parts
}

// formatUpdateMessage creates a user-friendly update notification message
func formatUpdateMessage(result VersionCheckResult) string {
	return fmt.Sprintf("Update available: v%s → v%s (visit %s)",
		result.CurrentVersion,
		result.LatestVersion,
		result.ReleaseURL,
	)
}

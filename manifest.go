package gitsemver

import (
	"fmt"
	"os"
	"regexp"

	"github.com/blang/semver"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

var (
	manifestVersionRe = regexp.MustCompile(`(?m)^version = "(.+)"`)
	manifestLineRe    = regexp.MustCompile(`(?m)^version = ".+"`)
)

// ParseManifestVersion returns the version of the first `version = "..."`
// line in a manifest.
func ParseManifestVersion(contents string) (semver.Version, error) {
	matches := manifestVersionRe.FindStringSubmatch(contents)
	if matches == nil {
		return semver.Version{}, ErrVersionNotFound
	}

	version, err := semver.Parse(matches[1])
	if err != nil {
		return semver.Version{}, fmt.Errorf("error parsing version from manifest %s: %v: %w", matches[1], err, ErrVersionParse)
	}
	return version, nil
}

// ReplaceManifestVersion rewrites the first `version = "..."` line and leaves
// the rest of contents untouched. It reports false when no line matched.
func ReplaceManifestVersion(contents string, version semver.Version) (string, bool) {
	loc := manifestLineRe.FindStringIndex(contents)
	if loc == nil {
		return contents, false
	}
	return contents[:loc[0]] + fmt.Sprintf(`version = "%s"`, version) + contents[loc[1]:], true
}

// ReadManifestVersion reads the declared version from a manifest on fs
func ReadManifestVersion(fs billy.Basic, path string) (semver.Version, error) {
	data, err := util.ReadFile(fs, path)
	if err != nil {
		return semver.Version{}, fmt.Errorf("reading %s: %v: %w", path, err, ErrManifestIO)
	}
	return ParseManifestVersion(string(data))
}

// WriteManifestVersion replaces the declared version of the manifest on fs
func WriteManifestVersion(fs billy.Basic, path string, version semver.Version) error {
	info, err := fs.Stat(path)
	if err != nil {
		return fmt.Errorf("reading %s: %v: %w", path, err, ErrManifestIO)
	}

	data, err := util.ReadFile(fs, path)
	if err != nil {
		return fmt.Errorf("reading %s: %v: %w", path, err, ErrManifestIO)
	}

	replaced, ok := ReplaceManifestVersion(string(data), version)
	if !ok {
		return fmt.Errorf("could not parse version number from %s: %w", path, ErrVersionNotFound)
	}

	perm := info.Mode().Perm()
	if perm == 0 {
		perm = os.FileMode(0o644)
	}
	if err := util.WriteFile(fs, path, []byte(replaced), perm); err != nil {
		return fmt.Errorf("writing %s: %v: %w", path, err, ErrManifestIO)
	}
	return nil
}

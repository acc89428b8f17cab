package gitsemver

import (
	"errors"
	"fmt"

	"github.com/blang/semver"
)

var (
	// ErrRepositoryNotFound is returned when no repository contains the given path
	ErrRepositoryNotFound = errors.New("repository not found")

	// ErrTagLookupFailed is returned when no tag is reachable from HEAD
	ErrTagLookupFailed = errors.New("could not get tag")

	// ErrVersionParse is returned when a manifest or tag version is not a valid semantic version
	ErrVersionParse = errors.New("invalid semantic version")

	// ErrVersionNotFound is returned when the manifest has no version field
	ErrVersionNotFound = fmt.Errorf("version number not found: %w", ErrVersionParse)

	// ErrMalformedPrerelease is returned when the described tag cannot be turned
	// into a development pre-release
	ErrMalformedPrerelease = errors.New("wrong tag format")

	// ErrManifestIO is returned when the manifest cannot be read or written
	ErrManifestIO = errors.New("manifest I/O failed")

	// ErrUntaggedRelease is returned when a release version is modified before being tagged
	ErrUntaggedRelease = errors.New("please tag the release commit before adding new changes")

	// ErrOutdated is matched by *OutdatedError
	ErrOutdated = errors.New("version is not up-to-date")
)

// OutdatedError reports that the manifest version was behind the version
// derived from the repository. Bump returns it whether or not the new version
// was written.
type OutdatedError struct {
	Declared  semver.Version
	Candidate semver.Version
}

func (e *OutdatedError) Error() string {
	return fmt.Sprintf("version `%s` is not up-to-date with repo `%s`", e.Declared, e.Candidate)
}

// Is makes errors.Is(err, ErrOutdated) match
func (e *OutdatedError) Is(target error) bool {
	return target == ErrOutdated
}

// Package gitsemver derives development versions for a package manifest from
// the tags of the Git repository that contains it, and checks that released
// versions have been tagged before new changes are built on top of them.
package gitsemver

import (
	"fmt"
	"strings"

	"github.com/blang/semver"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-logr/logr"
)

// LabelingMode selects the grammar of the development pre-release label
type LabelingMode int

const (
	// Dotted renders "dev.<N>"
	Dotted LabelingMode = iota
	// Numeric renders "dev<N>", which is also a valid PEP 440 suffix
	Numeric
	// DottedWithCommit renders "dev.<N>.g<short id>"
	DottedWithCommit
)

func (m LabelingMode) String() string {
	switch m {
	case Numeric:
		return "numeric"
	case Dotted:
		return "dotted"
	case DottedWithCommit:
		return "dotted-with-commit"
	default:
		return fmt.Sprintf("LabelingMode(%d)", int(m))
	}
}

// ParseLabelingMode accepts the mode names used on the command line
func ParseLabelingMode(s string) (LabelingMode, error) {
	switch strings.ToLower(s) {
	case "numeric", "pep440":
		return Numeric, nil
	case "dotted", "semver", "":
		return Dotted, nil
	case "dotted-with-commit", "semver-commit":
		return DottedWithCommit, nil
	default:
		return Dotted, fmt.Errorf("invalid labeling mode: %q", s)
	}
}

// TagVersion is the nearest tag reachable from HEAD together with the
// distance between the two, as `git describe --tags` would report it.
type TagVersion struct {
	// Name is the short tag name, e.g. "v0.1.0" or "sdk/v1.2.3"
	Name string

	// Base is the version parsed from the tag name
	Base semver.Version

	// Commit is the commit the tag points at
	Commit plumbing.Hash

	// Distance is the number of commits reachable from HEAD but not from Commit
	Distance uint64

	// Suffix identifies HEAD when Distance > 0, e.g. "g1a2b"
	Suffix string
}

// IsExact reports whether HEAD is the tagged commit
func (t TagVersion) IsExact() bool {
	return t.Distance == 0
}

// Version renders the describe form of t: the bare tag version at the tagged
// commit or when no suffix was requested (abbrev 0), otherwise the tag version
// with a "<N>-<suffix>" pre-release.
func (t TagVersion) Version() semver.Version {
	v := t.Base
	if t.Distance == 0 || t.Suffix == "" {
		return v
	}

	pre := append([]semver.PRVersion{}, v.Pre...)
	pre = append(pre, semver.PRVersion{VersionStr: fmt.Sprintf("%d-%s", t.Distance, t.Suffix)})
	v.Pre = pre
	return v
}

func (t TagVersion) String() string {
	return t.Version().String()
}

// Outcome is the result of a version derivation
type Outcome int

const (
	// Unchanged means nothing relevant changed since the tag
	Unchanged Outcome = iota
	// UpToDate means the declared version already satisfies the candidate
	UpToDate
	// NeedsBump means the declared version is behind the candidate
	NeedsBump
)

func (o Outcome) String() string {
	switch o {
	case Unchanged:
		return "unchanged"
	case UpToDate:
		return "up-to-date"
	case NeedsBump:
		return "needs-bump"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// MarshalText implements encoding.TextMarshaler
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Decision is what Derive concluded. Candidate is only set for UpToDate and
// NeedsBump.
type Decision struct {
	Outcome   Outcome
	Candidate semver.Version
}

// NeedsBump reports whether the manifest has to be rewritten
func (d Decision) NeedsBump() bool {
	return d.Outcome == NeedsBump
}

// ManifestSource selects which copy of the manifest the declared version is read from
type ManifestSource int

const (
	// SourceWorktree reads the manifest from the working copy
	SourceWorktree ManifestSource = iota
	// SourceIndex reads the staged manifest (stage 0)
	SourceIndex
	// SourceHead reads the manifest committed at HEAD
	SourceHead
)

func (s ManifestSource) String() string {
	switch s {
	case SourceWorktree:
		return "worktree"
	case SourceIndex:
		return "index"
	case SourceHead:
		return "head"
	default:
		return fmt.Sprintf("ManifestSource(%d)", int(s))
	}
}

// ParseManifestSource accepts "worktree", "index" or "head"
func ParseManifestSource(s string) (ManifestSource, error) {
	switch strings.ToLower(s) {
	case "worktree", "":
		return SourceWorktree, nil
	case "index":
		return SourceIndex, nil
	case "head":
		return SourceHead, nil
	default:
		return SourceWorktree, fmt.Errorf("invalid manifest source: %q", s)
	}
}

const (
	// DefaultManifest is the manifest path, relative to the repository root
	DefaultManifest = "Cargo.toml"

	// DefaultExtension is the extension of the tracked source files
	DefaultExtension = "rs"

	// DefaultAbbrev is the number of hash characters in the describe suffix
	DefaultAbbrev = 4

	// DefaultShortIDLength is the number of hash characters used for the HEAD commit id
	DefaultShortIDLength = 5
)

// Options configures Bump
type Options struct {
	// Repository is the Git repository to analyze
	Repository *git.Repository

	// Manifest is the manifest path relative to the repository root (default: "Cargo.toml")
	Manifest string

	// Source selects which copy of the manifest holds the declared version
	Source ManifestSource

	// Extension restricts the dirty and changed checks to files with this
	// extension (without the dot). Empty means every file counts. Local edits
	// to Manifest never make the tree dirty.
	Extension string

	// Mode is the pre-release label grammar
	Mode LabelingMode

	// Abbrev is the number of hash characters in the describe suffix (default: 4)
	Abbrev int

	// ShortIDLength is the number of hash characters of HEAD used by DottedWithCommit (default: 5)
	ShortIDLength int

	// DryRun computes the new version without writing it
	DryRun bool

	// TagFilter allows filtering which tags to consider
	TagFilter func(string) bool

	// TagPattern is a regex pattern to filter tags (alternative to TagFilter)
	TagPattern string

	// Logger receives debug output. The zero value discards it.
	Logger logr.Logger
}

// CheckOptions configures CheckTags
type CheckOptions struct {
	// Repository is the Git repository to analyze
	Repository *git.Repository

	// Manifest is the manifest path relative to the repository root (default: "Cargo.toml")
	Manifest string

	// TagFilter allows filtering which tags to consider
	TagFilter func(string) bool

	// TagPattern is a regex pattern to filter tags (alternative to TagFilter)
	TagPattern string

	// Logger receives debug output. The zero value discards it.
	Logger logr.Logger
}

// BumpResult describes what Bump found and did
type BumpResult struct {
	Tag       string          `json:"tag"`
	Described string          `json:"described"`
	Declared  semver.Version  `json:"declared"`
	Candidate *semver.Version `json:"candidate,omitempty"`
	Outcome   Outcome         `json:"outcome"`
	Dirty     bool            `json:"dirty"`
	Changed   bool            `json:"changed"`
	Written   bool            `json:"written"`
	DryRun    bool            `json:"dryRun"`
}

// CheckResult describes what CheckTags compared
type CheckResult struct {
	Dirty    bool            `json:"dirty"`
	Tag      string          `json:"tag,omitempty"`
	Latest   *semver.Version `json:"latest,omitempty"`
	Declared *semver.Version `json:"declared,omitempty"`
}

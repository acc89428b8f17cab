package gitsemver

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/blang/semver"
)

// DeriveInput holds everything Derive looks at
type DeriveInput struct {
	// Latest is the nearest tag reachable from HEAD
	Latest TagVersion

	// Declared is the version currently in the manifest
	Declared semver.Version

	// Dirty reports tracked modifications in the working tree
	Dirty bool

	// Changed reports tracked source changes between the tag and HEAD
	Changed bool

	// Mode is the pre-release label grammar
	Mode LabelingMode

	// HeadShortID is the abbreviated HEAD commit id used by DottedWithCommit
	HeadShortID string
}

// Derive decides whether the declared version has to be bumped. A candidate
// is only computed when the tree is dirty or relevant files changed since the
// tag; it keeps the tag's major and minor, increments the patch and carries a
// development pre-release label. Derive has no side effects.
func Derive(in DeriveInput) (Decision, error) {
	if !in.Dirty && !in.Changed {
		return Decision{Outcome: Unchanged}, nil
	}

	candidate, err := candidateVersion(in)
	if err != nil {
		return Decision{}, err
	}

	if in.Declared.LT(candidate) {
		return Decision{Outcome: NeedsBump, Candidate: candidate}, nil
	}
	return Decision{Outcome: UpToDate, Candidate: candidate}, nil
}

func candidateVersion(in DeriveInput) (semver.Version, error) {
	count, err := developmentCount(in.Latest, in.Dirty)
	if err != nil {
		return semver.Version{}, err
	}

	pre, err := renderLabel(count, in.Mode, in.HeadShortID)
	if err != nil {
		return semver.Version{}, err
	}

	return semver.Version{
		Major: in.Latest.Base.Major,
		Minor: in.Latest.Base.Minor,
		Patch: in.Latest.Base.Patch + 1,
		Pre:   pre,
	}, nil
}

// developmentCount returns the development iteration for a described tag.
// HEAD at the tag starts the first iteration; otherwise the commit distance is
// used, plus one for uncommitted changes.
func developmentCount(tag TagVersion, dirty bool) (uint64, error) {
	if len(tag.Base.Pre) > 0 {
		// the describe form would be "<pre>-<N>-<suffix>", which has no single count
		return 0, fmt.Errorf("can't create dev prerelease from tag %s: %w", tag, ErrMalformedPrerelease)
	}
	if tag.Distance == 0 {
		return 1, nil
	}
	if dirty {
		return tag.Distance + 1, nil
	}
	return tag.Distance, nil
}

// RenderLabel computes the development pre-release label from the pre-release
// of a described tag, which is either empty or "<count>-<suffix>".
func RenderLabel(pre string, mode LabelingMode, dirty bool, shortID string) (string, error) {
	var count uint64 = 1
	if pre != "" {
		distance, _, err := splitDescribeSuffix(pre)
		if err != nil {
			return "", err
		}
		count = distance
		if dirty {
			count++
		}
	}

	label, err := renderLabel(count, mode, shortID)
	if err != nil {
		return "", err
	}
	return joinPrerelease(label), nil
}

func renderLabel(count uint64, mode LabelingMode, shortID string) ([]semver.PRVersion, error) {
	var label string
	switch mode {
	case Numeric:
		label = fmt.Sprintf("dev%d", count)
	case Dotted:
		label = fmt.Sprintf("dev.%d", count)
	case DottedWithCommit:
		if shortID == "" {
			return nil, fmt.Errorf("labeling mode %s requires a commit id", mode)
		}
		label = fmt.Sprintf("dev.%d.g%s", count, shortID)
	default:
		return nil, fmt.Errorf("invalid labeling mode: %s", mode)
	}

	parts := strings.Split(label, ".")
	pre := make([]semver.PRVersion, 0, len(parts))
	for _, part := range parts {
		pr, err := semver.NewPRVersion(part)
		if err != nil {
			return nil, fmt.Errorf("prerelease string %s is not valid: %w", label, err)
		}
		pre = append(pre, pr)
	}
	return pre, nil
}

// ParseTagVersion parses the output of `git describe --tags`, e.g. "v0.1.0"
// or "v0.1.0-3-g1a2b". Module path prefixes such as "sdk/" are dropped.
func ParseTagVersion(described string) (TagVersion, error) {
	version, err := semver.Parse(stripModuleTagPrefixes(described))
	if err != nil {
		return TagVersion{}, fmt.Errorf("error parsing version from git tag %s: %v: %w", described, err, ErrVersionParse)
	}

	tag := TagVersion{Name: described, Base: version}
	if len(version.Pre) == 0 {
		return tag, nil
	}

	distance, suffix, err := splitDescribeSuffix(joinPrerelease(version.Pre))
	if err != nil {
		return TagVersion{}, err
	}

	tag.Base.Pre = nil
	tag.Distance = distance
	tag.Suffix = suffix
	tag.Name = strings.TrimSuffix(described, fmt.Sprintf("-%d-%s", distance, suffix))
	return tag, nil
}

func splitDescribeSuffix(pre string) (uint64, string, error) {
	parts := strings.Split(pre, "-")
	if len(parts) != 2 {
		return 0, "", fmt.Errorf("can't create dev prerelease from tag %s: %w", pre, ErrMalformedPrerelease)
	}

	distance, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("can't create dev prerelease from tag %s: %w", pre, ErrMalformedPrerelease)
	}
	return distance, parts[1], nil
}

func joinPrerelease(pre []semver.PRVersion) string {
	parts := make([]string, len(pre))
	for i, p := range pre {
		parts[i] = p.String()
	}
	return strings.Join(parts, ".")
}

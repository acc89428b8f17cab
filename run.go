package gitsemver

import (
	"fmt"
)

// Bump compares the manifest version with the version derived from the
// repository and writes the derived version when the manifest is behind.
//
// Whenever a new version was needed the returned error is an *OutdatedError,
// also after a successful write, so that a gate running Bump fails until the
// new version is committed. The result is returned alongside it.
func Bump(opts Options) (*BumpResult, error) {
	if opts.Repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if opts.Manifest == "" {
		opts.Manifest = DefaultManifest
	}
	if opts.Abbrev <= 0 {
		opts.Abbrev = DefaultAbbrev
	}
	if opts.ShortIDLength <= 0 {
		opts.ShortIDLength = DefaultShortIDLength
	}

	tagFilter, err := compileTagFilter(opts.TagFilter, opts.TagPattern)
	if err != nil {
		return nil, err
	}

	log := opts.Logger
	repo := opts.Repository

	shortID, err := headShortID(repo, opts.ShortIDLength)
	if err != nil {
		return nil, err
	}
	log.V(1).Info("repo HEAD", "commit", shortID)

	latest, err := Describe(repo, DescribeOptions{Abbrev: opts.Abbrev, TagFilter: tagFilter})
	if err != nil {
		return nil, err
	}
	log.V(1).Info("found git version", "described", latest.String(), "tag", latest.Name)

	declared, err := readManifest(repo, opts.Manifest, opts.Source)
	if err != nil {
		return nil, err
	}
	log.V(1).Info("found manifest version", "manifest", opts.Manifest, "source", opts.Source.String(), "version", declared.String())

	// the manifest is ours to rewrite
	dirty, err := workTreeIsDirty(repo, opts.Extension, opts.Manifest)
	if err != nil {
		return nil, fmt.Errorf("checking if worktree is dirty: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	}

	changed, err := filesChanged(repo, latest.Commit, head.Hash(), opts.Extension)
	if err != nil {
		// a failed diff must not hide a needed bump
		log.V(1).Info("could not diff against tag, assuming changes", "tag", latest.Name, "error", err.Error())
		changed = true
	}
	log.V(1).Info("repository state", "dirty", dirty, "changed", changed, "extension", opts.Extension)

	decision, err := Derive(DeriveInput{
		Latest:      latest,
		Declared:    declared,
		Dirty:       dirty,
		Changed:     changed,
		Mode:        opts.Mode,
		HeadShortID: shortID,
	})
	if err != nil {
		return nil, err
	}

	result := &BumpResult{
		Tag:       latest.Name,
		Described: latest.String(),
		Declared:  declared,
		Outcome:   decision.Outcome,
		Dirty:     dirty,
		Changed:   changed,
		DryRun:    opts.DryRun,
	}
	if decision.Outcome != Unchanged {
		candidate := decision.Candidate
		result.Candidate = &candidate
	}

	if !decision.NeedsBump() {
		return result, nil
	}

	if !opts.DryRun {
		workTree, err := repo.Worktree()
		if err != nil {
			return result, fmt.Errorf("getting worktree: %v: %w", err, ErrManifestIO)
		}
		if err := WriteManifestVersion(workTree.Filesystem, opts.Manifest, decision.Candidate); err != nil {
			return result, err
		}
		result.Written = true
		log.V(1).Info("wrote manifest version", "manifest", opts.Manifest, "version", decision.Candidate.String())
	}

	return result, &OutdatedError{Declared: declared, Candidate: decision.Candidate}
}

// CheckTags fails with ErrUntaggedRelease when the working tree has changes
// on top of a committed release version that was never tagged.
func CheckTags(opts CheckOptions) (*CheckResult, error) {
	if opts.Repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if opts.Manifest == "" {
		opts.Manifest = DefaultManifest
	}

	tagFilter, err := compileTagFilter(opts.TagFilter, opts.TagPattern)
	if err != nil {
		return nil, err
	}

	log := opts.Logger
	repo := opts.Repository

	dirty, err := workTreeIsDirty(repo, "")
	if err != nil {
		return nil, fmt.Errorf("checking if worktree is dirty: %w", err)
	}

	result := &CheckResult{Dirty: dirty}
	if !dirty {
		return result, nil
	}

	declared, err := readManifest(repo, opts.Manifest, SourceHead)
	if err != nil {
		return result, err
	}
	result.Declared = &declared
	log.V(1).Info("found manifest version", "manifest", opts.Manifest, "version", declared.String())

	latest, err := Describe(repo, DescribeOptions{TagFilter: tagFilter})
	if err != nil {
		return result, err
	}
	result.Tag = latest.Name
	result.Latest = &latest.Base
	log.V(1).Info("current repo version", "tag", latest.Name, "version", latest.Base.String())

	return result, CheckTagConsistency(declared, latest.Base, dirty)
}

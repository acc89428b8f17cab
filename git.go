// This file contains code adapted from pulumictl (https://github.com/pulumi/pulumictl)
// which is licensed under the Apache License 2.0.

package gitsemver

import (
	"fmt"
	"io"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/blang/semver"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// OpenRepository opens the Git repository containing path, searching parent
// directories like `git` does.
func OpenRepository(path string) (*git.Repository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening repository %s: %v: %w", path, err, ErrRepositoryNotFound)
	}
	return repo, nil
}

// DescribeOptions configures Describe
type DescribeOptions struct {
	// Abbrev is the number of hash characters in the suffix. Zero omits the suffix.
	Abbrev int

	// TagFilter allows filtering which tags to consider
	TagFilter func(string) bool
}

// Describe finds the nearest tag reachable from HEAD and the number of
// commits HEAD is ahead of it. History is walked in committer time order and
// the first tagged commit wins, so on merge histories the tag can differ from
// the one `git describe` picks by commit count.
func Describe(repo *git.Repository, opts DescribeOptions) (TagVersion, error) {
	head, err := repo.Head()
	if err != nil {
		return TagVersion{}, fmt.Errorf("resolving HEAD: %v: %w", err, ErrTagLookupFailed)
	}

	tags, err := taggedCommits(repo, opts.TagFilter)
	if err != nil {
		return TagVersion{}, fmt.Errorf("listing tags: %v: %w", err, ErrTagLookupFailed)
	}

	tagCommit, name, err := nearestTag(repo, head.Hash(), tags)
	if err != nil {
		return TagVersion{}, err
	}

	base, err := semver.Parse(stripModuleTagPrefixes(name))
	if err != nil {
		return TagVersion{}, fmt.Errorf("error parsing version from git tag %s: %v: %w", name, err, ErrVersionParse)
	}

	distance, err := commitDistance(repo, tagCommit, head.Hash())
	if err != nil {
		return TagVersion{}, fmt.Errorf("counting commits since %s: %v: %w", name, err, ErrTagLookupFailed)
	}

	tag := TagVersion{
		Name:     name,
		Base:     base,
		Commit:   tagCommit,
		Distance: distance,
	}
	if distance > 0 && opts.Abbrev > 0 {
		tag.Suffix = "g" + abbreviate(head.Hash(), opts.Abbrev)
	}
	return tag, nil
}

func stripModuleTagPrefixes(tag string) string {
	_, versionComponent := path.Split(tag)
	return strings.TrimPrefix(versionComponent, "v")
}

// taggedCommits maps commit hashes to the name of the tag pointing at them.
// When a commit has several tags the highest version wins.
func taggedCommits(repo *git.Repository, tagFilter func(string) bool) (map[plumbing.Hash]string, error) {
	// r.TagObjects() would also return objects that are no longer referenced
	iter, err := repo.Tags()
	if err != nil {
		return nil, err
	}

	tags := make(map[plumbing.Hash]string)
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}

		name := ref.Name().Short()
		if tagFilter != nil && !tagFilter(name) {
			return nil
		}

		var target plumbing.Hash
		obj, err := repo.TagObject(ref.Hash())
		switch err {
		case nil:
			// Annotated tag
			target = obj.Target
		case plumbing.ErrObjectNotFound:
			// Lightweight tag
			target = ref.Hash()
		default:
			return err
		}

		if existing, ok := tags[target]; !ok || preferTag(name, existing) {
			tags[target] = name
		}
		return nil
	})

	return tags, err
}

func preferTag(candidate, existing string) bool {
	cv, cerr := semver.Parse(stripModuleTagPrefixes(candidate))
	ev, eerr := semver.Parse(stripModuleTagPrefixes(existing))
	switch {
	case cerr == nil && eerr == nil:
		if cv.EQ(ev) {
			return candidate < existing
		}
		return cv.GT(ev)
	case cerr == nil:
		return true
	case eerr == nil:
		return false
	default:
		return candidate < existing
	}
}

func nearestTag(repo *git.Repository, from plumbing.Hash,
	tags map[plumbing.Hash]string) (plumbing.Hash, string, error) {

	logIter, err := repo.Log(&git.LogOptions{
		Order: git.LogOrderCommitterTime,
		From:  from,
	})
	if err != nil {
		return plumbing.ZeroHash, "", fmt.Errorf("walking history: %v: %w", err, ErrTagLookupFailed)
	}

	var found plumbing.Hash
	var name string
	err = logIter.ForEach(func(c *object.Commit) error {
		if tag, ok := tags[c.Hash]; ok {
			found = c.Hash
			name = tag
			return storer.ErrStop
		}
		return nil
	})
	if err != nil {
		return plumbing.ZeroHash, "", fmt.Errorf("walking history: %v: %w", err, ErrTagLookupFailed)
	}
	if name == "" {
		return plumbing.ZeroHash, "", fmt.Errorf("no tags reachable from HEAD: %w", ErrTagLookupFailed)
	}

	return found, name, nil
}

// commitDistance counts the commits reachable from head but not from tag
func commitDistance(repo *git.Repository, tag, head plumbing.Hash) (uint64, error) {
	if tag == head {
		return 0, nil
	}

	tagCommit, err := repo.CommitObject(tag)
	if err != nil {
		return 0, fmt.Errorf("getting commit object: %w", err)
	}

	behind := make(map[plumbing.Hash]bool)
	err = object.NewCommitPreorderIter(tagCommit, nil, nil).ForEach(func(c *object.Commit) error {
		behind[c.Hash] = true
		return nil
	})
	if err != nil {
		return 0, err
	}

	headCommit, err := repo.CommitObject(head)
	if err != nil {
		return 0, fmt.Errorf("getting commit object: %w", err)
	}

	var n uint64
	err = object.NewCommitPreorderIter(headCommit, behind, nil).ForEach(func(*object.Commit) error {
		n++
		return nil
	})
	return n, err
}

func abbreviate(hash plumbing.Hash, n int) string {
	s := hash.String()
	if n <= 0 || n > len(s) {
		return s
	}
	return s[:n]
}

func headShortID(repo *git.Repository, n int) (string, error) {
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolving HEAD: %w", err)
	}
	return abbreviate(head.Hash(), n), nil
}

func hasExtension(name, extension string) bool {
	if extension == "" {
		return true
	}
	return strings.TrimPrefix(path.Ext(name), ".") == extension
}

// workTreeIsDirty reports tracked modifications, staged or not. Untracked
// files never count and ignored files are not reported by go-git. Paths in
// skip are relative to the repository root.
func workTreeIsDirty(repo *git.Repository, extension string, skip ...string) (bool, error) {
	workTree, err := repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("getting worktree: %w", err)
	}

	status, err := workTree.Status()
	if err != nil {
		return false, fmt.Errorf("getting git status: %w", err)
	}

	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipped[path.Clean(filepath.ToSlash(p))] = true
	}

	for name, fileStatus := range status {
		if skipped[name] || !hasExtension(name, extension) {
			continue
		}
		if fileStatus.Staging == git.Untracked && fileStatus.Worktree == git.Untracked {
			continue
		}
		if fileStatus.Staging == git.Unmodified && fileStatus.Worktree == git.Unmodified {
			continue
		}
		return true, nil
	}
	return false, nil
}

// filesChanged reports whether any file with the given extension differs
// between the trees of two commits.
func filesChanged(repo *git.Repository, from, to plumbing.Hash, extension string) (bool, error) {
	fromCommit, err := repo.CommitObject(from)
	if err != nil {
		return false, fmt.Errorf("getting commit object: %w", err)
	}
	toCommit, err := repo.CommitObject(to)
	if err != nil {
		return false, fmt.Errorf("getting commit object: %w", err)
	}

	fromTree, err := fromCommit.Tree()
	if err != nil {
		return false, fmt.Errorf("getting tree: %w", err)
	}
	toTree, err := toCommit.Tree()
	if err != nil {
		return false, fmt.Errorf("getting tree: %w", err)
	}

	changes, err := object.DiffTree(fromTree, toTree)
	if err != nil {
		return false, fmt.Errorf("diffing trees: %w", err)
	}

	for _, change := range changes {
		name := change.To.Name
		if name == "" {
			name = change.From.Name
		}
		if hasExtension(name, extension) {
			return true, nil
		}
	}
	return false, nil
}

// readManifest returns the declared version of the manifest at path from the
// working copy, the index or HEAD.
func readManifest(repo *git.Repository, path string, source ManifestSource) (semver.Version, error) {
	switch source {
	case SourceWorktree:
		workTree, err := repo.Worktree()
		if err != nil {
			return semver.Version{}, fmt.Errorf("getting worktree: %v: %w", err, ErrManifestIO)
		}
		return ReadManifestVersion(workTree.Filesystem, path)
	case SourceIndex, SourceHead:
		contents, err := readBlob(repo, path, source)
		if err != nil {
			return semver.Version{}, fmt.Errorf("reading %s from %s: %v: %w", path, source, err, ErrManifestIO)
		}
		return ParseManifestVersion(contents)
	default:
		return semver.Version{}, fmt.Errorf("invalid manifest source: %s", source)
	}
}

func readBlob(repo *git.Repository, path string, source ManifestSource) (string, error) {
	if source == SourceHead {
		head, err := repo.Head()
		if err != nil {
			return "", err
		}
		commit, err := repo.CommitObject(head.Hash())
		if err != nil {
			return "", err
		}
		file, err := commit.File(path)
		if err != nil {
			return "", err
		}
		return file.Contents()
	}

	idx, err := repo.Storer.Index()
	if err != nil {
		return "", err
	}
	entry, err := idx.Entry(path)
	if err != nil {
		return "", err
	}
	blob, err := repo.BlobObject(entry.Hash)
	if err != nil {
		return "", err
	}
	reader, err := blob.Reader()
	if err != nil {
		return "", err
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func compileTagFilter(tagFilter func(string) bool, pattern string) (func(string) bool, error) {
	if pattern == "" || tagFilter != nil {
		return tagFilter, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid tag pattern: %w", err)
	}
	return func(tag string) bool {
		return re.MatchString(tag)
	}, nil
}

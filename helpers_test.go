package gitsemver

import (
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/require"
)

var testSignature = &object.Signature{
	Name:  "test",
	Email: "test@example.com",
	When:  time.Now(),
}

const testManifest = "[package]\nname = \"test package\"\nversion = \"0.1.0\"\n"

// testRepoCreate creates a new in-memory git repository for testing
func testRepoCreate() (*git.Repository, error) {
	storage := memory.NewStorage()
	fs := memfs.New()
	return git.Init(storage, fs)
}

// testRepoFSCreate creates a new filesystem-based git repository for testing
func testRepoFSCreate(path string) (*git.Repository, error) {
	fs := osfs.New(path)
	storage := filesystem.NewStorage(fs, nil)
	return git.Init(storage, fs)
}

// testCommit writes files to the worktree, stages them and commits
func testCommit(repo *git.Repository, msg string, files map[string]string) (plumbing.Hash, error) {
	workTree, err := repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, err
	}

	for name, content := range files {
		if err := writeFile(workTree.Filesystem, name, content); err != nil {
			return plumbing.ZeroHash, err
		}
		if _, err := workTree.Add(name); err != nil {
			return plumbing.ZeroHash, err
		}
	}

	return workTree.Commit(msg, &git.CommitOptions{Author: testSignature, AllowEmptyCommits: true})
}

// testRepoReleased creates a repository with eight rust files and a manifest
// at 0.1.0, tagged with an annotated "0.1.0" tag
func testRepoReleased(t *testing.T) *git.Repository {
	t.Helper()

	repo, err := testRepoCreate()
	require.NoError(t, err)

	_, err = testCommit(repo, "initial\n\nbody", nil)
	require.NoError(t, err)

	files := map[string]string{"Cargo.toml": testManifest}
	for _, name := range []string{"f0.rs", "f1.rs", "f2.rs", "f3.rs", "f4.rs", "f5.rs", "f6.rs", "f7.rs"} {
		files[name] = name
	}
	release, err := testCommit(repo, "another commit", files)
	require.NoError(t, err)

	_, err = repo.CreateTag("0.1.0", release, &git.CreateTagOptions{
		Tagger:  testSignature,
		Message: "initial version",
	})
	require.NoError(t, err)

	return repo
}

// modifyFile changes a file in the worktree without staging it
func modifyFile(t *testing.T, repo *git.Repository, name, content string) {
	t.Helper()

	workTree, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, writeFile(workTree.Filesystem, name, content))
}

// stageFile writes a file and adds it to the index without committing
func stageFile(t *testing.T, repo *git.Repository, name, content string) {
	t.Helper()

	workTree, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, writeFile(workTree.Filesystem, name, content))
	_, err = workTree.Add(name)
	require.NoError(t, err)
}

// writeFile writes content to a file in the given filesystem
func writeFile(fs billy.Filesystem, filename, content string) error {
	file, err := fs.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = file.Write([]byte(content))
	return err
}

package gitsemver

import (
	"testing"

	"github.com/blang/semver"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

const cargoManifest = `[package]
name = "demo"
version = "0.1.0"
edition = "2021"

[dependencies]
serde = { version = "1.0", features = ["derive"] }

[dependencies.log]
version = "0.4.0"
`

const pyprojectManifest = `[project]
name = "demo"
version = "1.4.2"
dependencies = ["requests"]
`

func TestParseManifestVersion(t *testing.T) {
	t.Run("First version line", func(t *testing.T) {
		version, err := ParseManifestVersion(cargoManifest)
		require.NoError(t, err)
		require.Equal(t, "0.1.0", version.String())
	})

	t.Run("Development version", func(t *testing.T) {
		version, err := ParseManifestVersion("version = \"0.1.1-dev.3\"\n")
		require.NoError(t, err)
		require.Equal(t, "0.1.1-dev.3", version.String())
	})

	t.Run("Indented version is ignored", func(t *testing.T) {
		_, err := ParseManifestVersion("[package]\n  version = \"0.1.0\"\n")
		require.ErrorIs(t, err, ErrVersionNotFound)
	})

	t.Run("No version line", func(t *testing.T) {
		_, err := ParseManifestVersion("[package]\nname = \"demo\"\n")
		require.ErrorIs(t, err, ErrVersionNotFound)
		require.ErrorIs(t, err, ErrVersionParse)
	})

	t.Run("Invalid version", func(t *testing.T) {
		_, err := ParseManifestVersion("version = \"1.0\"\n")
		require.ErrorIs(t, err, ErrVersionParse)
		require.NotErrorIs(t, err, ErrVersionNotFound)
	})
}

func TestReplaceManifestVersion(t *testing.T) {
	g := goldie.New(t)

	t.Run("cargo", func(t *testing.T) {
		replaced, ok := ReplaceManifestVersion(cargoManifest, semver.MustParse("0.1.1-dev.3"))
		require.True(t, ok)
		g.Assert(t, "cargo_toml", []byte(replaced))
	})

	t.Run("pyproject", func(t *testing.T) {
		replaced, ok := ReplaceManifestVersion(pyprojectManifest, semver.MustParse("1.4.3-dev1"))
		require.True(t, ok)
		g.Assert(t, "pyproject_toml", []byte(replaced))
	})

	t.Run("No version line", func(t *testing.T) {
		replaced, ok := ReplaceManifestVersion("[package]\n", semver.MustParse("1.0.0"))
		require.False(t, ok)
		require.Equal(t, "[package]\n", replaced)
	})
}

func TestManifestReadWrite(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "crates/demo/Cargo.toml", []byte(cargoManifest), 0o600))

	version, err := ReadManifestVersion(fs, "crates/demo/Cargo.toml")
	require.NoError(t, err)
	require.Equal(t, "0.1.0", version.String())

	require.NoError(t, WriteManifestVersion(fs, "crates/demo/Cargo.toml", semver.MustParse("0.1.1-dev.1")))

	version, err = ReadManifestVersion(fs, "crates/demo/Cargo.toml")
	require.NoError(t, err)
	require.Equal(t, "0.1.1-dev.1", version.String())

	data, err := util.ReadFile(fs, "crates/demo/Cargo.toml")
	require.NoError(t, err)
	require.Contains(t, string(data), "version = \"0.4.0\"")

	info, err := fs.Stat("crates/demo/Cargo.toml")
	require.NoError(t, err)
	require.Equal(t, "-rw-------", info.Mode().Perm().String())

	t.Run("Missing file", func(t *testing.T) {
		_, err := ReadManifestVersion(fs, "Cargo.toml")
		require.ErrorIs(t, err, ErrManifestIO)

		err = WriteManifestVersion(fs, "Cargo.toml", semver.MustParse("1.0.0"))
		require.ErrorIs(t, err, ErrManifestIO)
	})

	t.Run("No version line", func(t *testing.T) {
		require.NoError(t, util.WriteFile(fs, "empty.toml", []byte("[workspace]\n"), 0o644))

		err := WriteManifestVersion(fs, "empty.toml", semver.MustParse("1.0.0"))
		require.ErrorIs(t, err, ErrVersionNotFound)

		data, err := util.ReadFile(fs, "empty.toml")
		require.NoError(t, err)
		require.Equal(t, "[workspace]\n", string(data))
	})
}

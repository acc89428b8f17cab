package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/go-git/go-git/v5"
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	gitsemver "github.com/jaxxstorm/git-semver"
	"go.uber.org/zap"
)

// Version will be set by build process
var Version = "dev"

// Globals are the flags shared by every command
type Globals struct {
	Repo     string `short:"r" env:"GIT_SEMVER_REPO" help:"Repository path (default: current directory)"`
	Manifest string `short:"m" default:"Cargo.toml" env:"GIT_SEMVER_MANIFEST" help:"Manifest path relative to the repository root"`
	Verbose  bool   `short:"v" help:"Enable debug logging"`
	JSON     bool   `short:"j" help:"Output as JSON"`

	logger logr.Logger
}

type CLI struct {
	Globals

	Bump      BumpCmd      `cmd:"" help:"Bump manifest version from latest tag"`
	CheckTags CheckTagsCmd `cmd:"" help:"Check if last release was tagged"`
	Version   VersionCmd   `cmd:"" help:"Show version information"`
}

type BumpCmd struct {
	Paths         []string `arg:"" optional:"" help:"Files passed by the pre-commit hook"`
	Mode          string   `default:"dotted" enum:"numeric,dotted,dotted-with-commit,pep440,semver,semver-commit" env:"GIT_SEMVER_MODE" help:"Pre-release label format"`
	DryRun        bool     `help:"Print the new version without writing it"`
	Extension     string   `short:"e" default:"rs" env:"GIT_SEMVER_EXTENSION" help:"Extension of tracked source files, empty for all files"`
	Source        string   `default:"worktree" enum:"worktree,index,head" help:"Where to read the declared version from"`
	Abbrev        int      `default:"4" help:"Hash characters in the describe suffix"`
	ShortIDLength int      `default:"5" help:"Hash characters of the HEAD commit id in dotted-with-commit labels"`
	TagPattern    string   `help:"Regex pattern to filter tags (e.g., '^sdk/')"`
}

type CheckTagsCmd struct {
	TagPattern string `help:"Regex pattern to filter tags (e.g., '^sdk/')"`
}

type VersionCmd struct{}

func main() {
	var cli CLI

	ctx := kong.Parse(&cli,
		kong.Name("git-semver"),
		kong.Description("Derive development versions from Git tags and check that releases are tagged"),
		kong.UsageOnError(),
		kong.Exit(func(code int) {
			os.Exit(exitStatus(code))
		}),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": Version,
		},
	)

	logger, flush, err := newLogger(cli.Verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cli.logger = logger

	err = ctx.Run(&cli.Globals)
	flush()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// exitStatus maps kong's exit codes, e.g. 80 for usage errors, onto the
// 0/1 convention of the tool
func exitStatus(code int) int {
	if code == 0 {
		return 0
	}
	return 1
}

func newLogger(verbose bool) (logr.Logger, func(), error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	zapLog, err := cfg.Build()
	if err != nil {
		return logr.Discard(), func() {}, fmt.Errorf("building logger: %w", err)
	}
	return zapr.NewLogger(zapLog), func() { _ = zapLog.Sync() }, nil
}

func (g *Globals) openRepository() (*git.Repository, error) {
	repoPath := g.Repo
	if repoPath == "" {
		var err error
		repoPath, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting current directory: %w", err)
		}
	}
	return gitsemver.OpenRepository(repoPath)
}

func (b *BumpCmd) Run(g *Globals) error {
	mode, err := gitsemver.ParseLabelingMode(b.Mode)
	if err != nil {
		return err
	}
	source, err := gitsemver.ParseManifestSource(b.Source)
	if err != nil {
		return err
	}

	repo, err := g.openRepository()
	if err != nil {
		return err
	}
	g.logger.V(1).Info("bump requested", "paths", b.Paths, "mode", mode.String())

	result, err := gitsemver.Bump(gitsemver.Options{
		Repository:    repo,
		Manifest:      g.Manifest,
		Source:        source,
		Extension:     b.Extension,
		Mode:          mode,
		Abbrev:        b.Abbrev,
		ShortIDLength: b.ShortIDLength,
		DryRun:        b.DryRun,
		TagPattern:    b.TagPattern,
		Logger:        g.logger,
	})
	if result == nil {
		return err
	}

	if g.JSON {
		if encErr := json.NewEncoder(os.Stdout).Encode(result); encErr != nil {
			return encErr
		}
		return err
	}

	fmt.Println(bumpOutput(result, b.Extension))
	return err
}

func bumpOutput(result *gitsemver.BumpResult, extension string) string {
	switch result.Outcome {
	case gitsemver.Unchanged:
		kind := "tracked"
		if extension != "" {
			kind = extension
		}
		return fmt.Sprintf("No %s files changed since last tag %s", kind, result.Tag)
	case gitsemver.UpToDate:
		return fmt.Sprintf("Version number %s is up-to-date", result.Declared)
	default:
		if result.DryRun {
			return fmt.Sprintf("Created version number %s (dry-run)", result.Candidate)
		}
		return fmt.Sprintf("Created version number %s", result.Candidate)
	}
}

func (c *CheckTagsCmd) Run(g *Globals) error {
	repo, err := g.openRepository()
	if err != nil {
		return err
	}

	result, err := gitsemver.CheckTags(gitsemver.CheckOptions{
		Repository: repo,
		Manifest:   g.Manifest,
		TagPattern: c.TagPattern,
		Logger:     g.logger,
	})
	if result == nil {
		return err
	}

	if g.JSON {
		if encErr := json.NewEncoder(os.Stdout).Encode(result); encErr != nil {
			return encErr
		}
		return err
	}

	switch {
	case !result.Dirty:
		fmt.Println("No changes detected")
	case err == nil:
		fmt.Printf("Version number %s is tagged or in development\n", result.Declared)
	}
	return err
}

func (v *VersionCmd) Run(g *Globals) error {
	return showVersion(g.JSON)
}

func showVersion(asJSON bool) error {
	versionInfo := map[string]string{
		"version": Version,
		"name":    "git-semver",
	}

	if asJSON {
		return json.NewEncoder(os.Stdout).Encode(versionInfo)
	}

	fmt.Printf("git-semver version %s\n", Version)
	return nil
}

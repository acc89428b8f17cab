package gitsemver

import (
	"fmt"

	"github.com/blang/semver"
)

// CheckTagConsistency fails when the tree has changes on top of a release
// version that is newer than the latest tag. Clean trees and development
// pre-releases always pass.
func CheckTagConsistency(declared, latest semver.Version, dirty bool) error {
	if !dirty {
		return nil
	}
	if len(declared.Pre) > 0 {
		return nil
	}
	if latest.LT(declared) {
		return fmt.Errorf("release %s is newer than tag %s: %w", declared, latest, ErrUntaggedRelease)
	}
	return nil
}

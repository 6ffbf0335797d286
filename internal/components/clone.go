package components

import (
	"context"
	"fmt"
	"strings"

	"github.com/openshift-pipelines/streamstress/internal/shell"
)

// CloneWithRef clones repoURL into dest at the given ref.
//
// With an explicit ref the destination is initialized bare and exactly that
// ref is fetched shallowly, so tags, branches, commits and PR heads all work
// through the same path. Without a ref the default branch is cloned shallowly.
func CloneWithRef(ctx context.Context, sh shell.Runner, repoURL, dest, ref string) error {
	if ref == "" {
		if _, err := sh.Run(ctx, "git", "clone", "--depth", "1", repoURL, dest); err != nil {
			return fmt.Errorf("cloning %s: %w", repoURL, err)
		}
		return nil
	}

	resolved := ResolveGitRef(ref)
	if _, err := sh.Run(ctx, "git", "init", dest); err != nil {
		return fmt.Errorf("initializing workspace: %w", err)
	}

	in := sh.WithDir(dest)
	if _, err := in.Run(ctx, "git", "fetch", "--depth", "1", repoURL, resolved); err != nil {
		return fmt.Errorf("fetching ref %q (resolved %q): %w", ref, resolved, err)
	}
	if _, err := in.Run(ctx, "git", "checkout", "FETCH_HEAD"); err != nil {
		return fmt.Errorf("checking out FETCH_HEAD: %w", err)
	}
	return nil
}

// CloneAsOf clones repoURL into dest and checks out the last commit on the
// default branch at or before date (YYYY-MM-DD). The clone needs full
// history to walk back in time.
func CloneAsOf(ctx context.Context, sh shell.Runner, repoURL, dest, date string) error {
	if _, err := sh.Run(ctx, "git", "clone", repoURL, dest); err != nil {
		return fmt.Errorf("cloning %s: %w", repoURL, err)
	}

	in := sh.WithDir(dest)
	res, err := in.Run(ctx, "git", "rev-list", "-1", "--before="+date, "HEAD")
	if err != nil {
		return fmt.Errorf("resolving commit before %s: %w", date, err)
	}
	sha := strings.TrimSpace(res.Stdout)
	if sha == "" {
		return fmt.Errorf("no commit in %s before %s", repoURL, date)
	}
	if _, err := in.Run(ctx, "git", "checkout", sha); err != nil {
		return fmt.Errorf("checking out %s: %w", sha, err)
	}
	return nil
}

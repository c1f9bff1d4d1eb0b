package builder

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"

	"github.com/bip-build/bip/internal/msg"
)

var sourceShortcuts = map[string]string{
	"gh:": "https://github.com/",
	"gl:": "https://gitlab.com/",
	"bb:": "https://bitbucket.org/",
	"sr:": "https://sr.ht/",
	"cb:": "https://codeberg.org/",
}

const gitPrefix = "git:"

var errIllegalSource = errors.New("empty or illegal fetch string")

// FetchSources materializes a component's `fetch` source into its missing
// primary source directory.
func FetchSources(source string, toWhere string) error {
	if source == "" {
		return errIllegalSource
	}

	// `git:` prefix, e.g. git:https://github.com/bip-build/libhello.git
	if strings.HasPrefix(source, gitPrefix) {
		return cloneGitRepo(source[len(gitPrefix):], toWhere)
	}

	// shortcut prefix, e.g. gh:bip-build/libhello
	for shortcut, url := range sourceShortcuts {
		if strings.HasPrefix(source, shortcut) {
			return cloneGitRepo(url+source[len(shortcut):], toWhere)
		}
	}

	return fmt.Errorf("%w: %q (want a git: URL or a gh:/gl:/bb:/sr:/cb: shortcut)", errIllegalSource, source)
}

type gitURL struct {
	cleanURL    string
	branch      string
	commitOrTag string
}

// someone/something@master#0.1.0
// someone/something@feature-branch#12345abc
// someone/something#12345abc
func parseGitURL(rawURL string) (res gitURL) {
	parts := strings.SplitN(rawURL, "#", 2)
	baseURL := parts[0]
	if len(parts) == 2 {
		res.commitOrTag = parts[1]
	}

	parts = strings.SplitN(baseURL, "@", 2)
	res.cleanURL = parts[0]
	if len(parts) == 2 {
		res.branch = parts[1]
	}

	if !strings.HasSuffix(res.cleanURL, ".git") {
		res.cleanURL += ".git"
	}

	return
}

// cloneGitRepo clones a Git remote into the specified directory
func cloneGitRepo(url, toWhere string) error {
	parsedURL := parseGitURL(url)
	msg.Info("fetching %s", parsedURL.cleanURL)

	cloneOptions := &git.CloneOptions{
		URL:               parsedURL.cleanURL,
		Progress:          &msg.IndentWriter{Indent: "  ", W: os.Stdout},
		RecurseSubmodules: git.DefaultSubmoduleRecursionDepth,
	}

	if parsedURL.commitOrTag == "" {
		cloneOptions.Depth = 1 // we can do a shallow clone of the latest commit
	}

	if parsedURL.branch != "" {
		cloneOptions.ReferenceName = plumbing.NewBranchReferenceName(parsedURL.branch)
		cloneOptions.SingleBranch = true
	}

	repo, err := git.PlainClone(toWhere, cloneOptions)
	if err != nil {
		return err
	}

	if parsedURL.commitOrTag != "" {
		w, err := repo.Worktree()
		if err != nil {
			return fmt.Errorf("could not get worktree: %w", err)
		}

		revision := parsedURL.commitOrTag
		hash, err := repo.ResolveRevision(plumbing.Revision(revision))
		if err != nil {
			return fmt.Errorf("could not resolve revision `%s`: %w", revision, err)
		}

		err = w.Checkout(&git.CheckoutOptions{
			Hash:  *hash,
			Force: true,
		})
		if err != nil {
			return fmt.Errorf("failed to checkout `%s`: %w", revision, err)
		}
	}

	return nil
}

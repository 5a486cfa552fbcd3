package source

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/projecteru2/cocoon/types"
)

// SanitizeURL redacts basic-auth credentials embedded in a git URL before
// it is ever logged or audited, leaving the host/path visible. Idempotent:
// SanitizeURL(SanitizeURL(u)) == SanitizeURL(u), since the mask itself
// parses back as a (non-empty) username/password pair that gets
// rewritten to the same literal mask.
func SanitizeURL(raw string) string {
	return sanitizeGitURL(raw)
}

func sanitizeGitURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	host := u.Host
	u.User = url.UserPassword("***", "***")
	u.Host = host
	return u.String()
}

// checkHostAllowed reports whether rawURL's host is permitted. An empty
// allowlist means every host is permitted.
func checkHostAllowed(rawURL string, allowed []string) error {
	if len(allowed) == 0 {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse git url: %w", err)
	}
	host := u.Hostname()
	for _, a := range allowed {
		if strings.EqualFold(host, a) {
			return nil
		}
	}
	return fmt.Errorf("host %q is not in the allowed git domain list", host)
}

// gitManager provisions a temporary clone of a git source into a sandbox
// directory. Every step shells out to the git(1) binary directly, matching
// the original implementation's reliance on the system git rather than a
// pure-Go git library — a real-world checkout touches submodules, LFS,
// and credential helpers that only the system git command reliably
// handles identically to what a developer's workstation would do.
type gitManager struct {
	sandboxDir  string
	timeout     time.Duration
	allowedHost []string
}

func newGitManager(sandboxDir string, timeout time.Duration, allowedHosts []string) *gitManager {
	return &gitManager{sandboxDir: sandboxDir, timeout: timeout, allowedHost: allowedHosts}
}

// prepareSource clones rawURL at ref into a fresh sandbox directory,
// checks out ref, and updates submodules recursively. On any failure the
// partially-populated sandbox is removed before returning. Callers must
// call cleanup(dir) once done with the checkout, success or not.
func (g *gitManager) prepareSource(ctx context.Context, rawURL, ref string) (dir string, err error) {
	if err := checkHostAllowed(rawURL, g.allowedHost); err != nil {
		return "", types.NewOpError(types.ErrSecurityPolicy, err)
	}
	if strings.HasPrefix(ref, "-") {
		return "", types.NewOpError(types.ErrSecurityPolicy, fmt.Errorf("refusing ref %q: looks like a flag", ref))
	}

	if err := os.MkdirAll(g.sandboxDir, 0o755); err != nil { //nolint:mnd
		return "", fmt.Errorf("create sandbox root %s: %w", g.sandboxDir, err)
	}
	dir = filepath.Join(g.sandboxDir, "git-source-"+uuid.NewString())

	// Each git invocation gets its own fresh timeout budget rather than
	// sharing one deadline across the sequence — a slow clone must not
	// eat into the checkout's or submodule update's allowance.
	if out, err := g.runWithTimeout(ctx, "", "clone", "--quiet", "--", rawURL, dir); err != nil {
		g.cleanup(dir)
		return "", types.NewOpError(types.ErrSourceFetch, fmt.Errorf("git clone %s: %w: %s", sanitizeGitURL(rawURL), err, out))
	}

	if ref != "" {
		if out, err := g.runWithTimeout(ctx, dir, "checkout", "--quiet", ref); err != nil {
			g.cleanup(dir)
			return "", types.NewOpError(types.ErrSourceFetch, fmt.Errorf("git checkout %s: %w: %s", ref, err, out))
		}
	}

	if out, err := g.runWithTimeout(ctx, dir, "submodule", "update", "--init", "--recursive", "--quiet"); err != nil {
		g.cleanup(dir)
		return "", types.NewOpError(types.ErrSourceFetch, fmt.Errorf("git submodule update: %w: %s", err, out))
	}

	return dir, nil
}

// runWithTimeout runs one git invocation under its own fresh
// context.WithTimeout(ctx, g.timeout), independent of any sibling call's
// budget.
func (g *gitManager) runWithTimeout(ctx context.Context, dir string, args ...string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.run(cctx, dir, args...)
}

// cleanup removes a sandbox directory unconditionally, ignoring errors —
// callers invoke it on every exit path, including panics, via defer.
func (g *gitManager) cleanup(dir string) {
	if dir == "" {
		return
	}
	_ = os.RemoveAll(dir)
}

func (g *gitManager) run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return out.String(), fmt.Errorf("timed out: %w", ctx.Err())
		}
		return out.String(), err
	}
	return out.String(), nil
}

// Package source implements the Source Provisioner: resolving a Plan's
// Source descriptor (a caller-supplied local directory, or a git
// repository to clone) into a concrete working directory the Executor can
// path-jail and run commands against.
package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/projecteru2/cocoon/types"
)

// Resolution is the outcome of provisioning a plan's source: the directory
// to operate in, and — for git sources — a cleanup function the caller
// must invoke once the operation is done with it, success or failure.
type Resolution struct {
	Dir     string
	Cleanup func()
}

// Provisioner resolves plan sources into working directories.
type Provisioner struct {
	git *gitManager
}

// New returns a Provisioner that clones git sources into sandboxDir,
// bounding each git subprocess to timeout and, if allowedHosts is
// non-empty, restricting clones to those hosts.
func New(sandboxDir string, timeout time.Duration, allowedHosts []string) *Provisioner {
	return &Provisioner{git: newGitManager(sandboxDir, timeout, allowedHosts)}
}

// Resolve materializes plan.Source into a working directory. For a git
// source, plan.ProjectArg() is joined onto the clone root as a relative
// path, stripping only a single leading "/" (never leading dots, so a
// project arg of ".config" stays a valid subdirectory rather than being
// collapsed). For a local source, args[0] is used as-is (see resolveLocal).
func (p *Provisioner) Resolve(ctx context.Context, plan *types.Plan) (*Resolution, error) {
	switch plan.Source.Kind {
	case types.SourceGit:
		return p.resolveGit(ctx, plan)
	case types.SourceLocal, "":
		return p.resolveLocal(plan)
	default:
		return nil, types.NewOpError(types.ErrValidationFailure, fmt.Errorf("unknown source kind %q", plan.Source.Kind))
	}
}

// resolveLocal resolves a local (non-git) source's effective directory:
// plan.ProjectArg() if present, otherwise the current directory — per the
// project-root resolution rule, an empty args[0] means "operate here",
// not "reject the request" (e.g. a bare `{verb:"doctor", args:[]}`).
func (p *Provisioner) resolveLocal(plan *types.Plan) (*Resolution, error) {
	root := plan.ProjectArg()
	if root == "" {
		root = "."
	}
	return &Resolution{Dir: root, Cleanup: func() {}}, nil
}

func (p *Provisioner) resolveGit(ctx context.Context, plan *types.Plan) (*Resolution, error) {
	root, err := p.git.prepareSource(ctx, plan.Source.URL, plan.Source.Ref)
	if err != nil {
		return nil, err
	}
	dir := joinProjectArg(root, plan.ProjectArg())
	return &Resolution{
		Dir:     dir,
		Cleanup: func() { p.git.cleanup(root) },
	}, nil
}

// joinProjectArg joins arg onto root, stripping only a single leading "/"
// from arg. A blank or "." arg resolves to root itself.
func joinProjectArg(root, arg string) string {
	if arg == "" || arg == "." {
		return root
	}
	return root + "/" + strings.TrimPrefix(arg, "/")
}

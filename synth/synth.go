// Package synth implements the Command Synthesizer: the pure mapping from
// a validated verb and its arguments to the argv the Executor invokes.
package synth

import (
	"fmt"

	"github.com/projecteru2/cocoon/types"
)

// containerMount is the path the project directory is bind-mounted at
// inside the container, matching every verb's working directory.
const containerMount = "/workspace"

// defaultContainerRuntime is the binary invoked to run a verb's container
// image when Synthesizer.Runtime is unset, overridable for runtimes other
// than docker (e.g. podman, nerdctl).
const defaultContainerRuntime = "docker"

// Synthesizer builds argv for a verb invocation. In mock mode it targets
// local tool paths under toolsDir, matching the original implementation's
// test-mode behavior; otherwise it shells out to a container runtime
// (docker by default) invoking an image tagged imageTag, one per verb
// family (build tools share an image, packaging and signing each have
// their own), with the resolved project directory bind-mounted in.
type Synthesizer struct {
	Mock     bool
	ToolsDir string
	ImageTag string

	// Runtime is the container runner binary; defaults to "docker" when
	// empty.
	Runtime string
}

// New returns a Synthesizer.
func New(mock bool, toolsDir, imageTag string) *Synthesizer {
	return &Synthesizer{Mock: mock, ToolsDir: toolsDir, ImageTag: imageTag}
}

// Command returns the argv to run for verb with args against the
// resolved project directory dir. smoke requires a non-empty args
// (re-checked here defensively, even though the Executor's validate_inputs
// step already rejects an argument-less smoke plan, since Command is also
// a unit of direct testing).
func (s *Synthesizer) Command(verb types.Verb, args []string, dir string) ([]string, error) {
	switch verb {
	case types.VerbLint, types.VerbTest, types.VerbBuild, types.VerbPackage, types.VerbSign:
		return s.argv(verb, args, dir), nil
	case types.VerbSmoke:
		if len(args) == 0 {
			return nil, types.NewOpError(types.ErrValidationFailure, fmt.Errorf("smoke requires at least one argument"))
		}
		return s.argv(verb, args, dir), nil
	case types.VerbDoctor:
		return s.argv(verb, []string{"doctor"}, dir), nil
	default:
		return nil, types.NewOpError(types.ErrUnsupportedVerb, fmt.Errorf("unsupported verb %q", verb))
	}
}

// argv builds the full command line for verb: the local mock-mode tool
// path followed by args, or a container-runner invocation mounting dir
// into the image and passing args through to it.
func (s *Synthesizer) argv(verb types.Verb, args []string, dir string) []string {
	if s.Mock {
		tool := s.ToolsDir + "/" + string(verb)
		if verb == types.VerbDoctor {
			tool = s.ToolsDir + "/buildopd"
		}
		return append([]string{tool}, args...)
	}

	runtime := s.Runtime
	if runtime == "" {
		runtime = defaultContainerRuntime
	}
	image := s.containerImage(verb) + ":" + s.ImageTag
	cmd := []string{
		runtime, "run", "--rm",
		"-v", dir + ":" + containerMount,
		"-w", containerMount,
		image,
	}
	return append(cmd, args...)
}

// containerImage names the image family backing verb when not in mock
// mode: lint/test/build share a build image, package and sign each get
// one scoped to their own trust boundary (a signer should never carry the
// toolchain a compromised build step ran).
func (s *Synthesizer) containerImage(verb types.Verb) string {
	switch verb {
	case types.VerbPackage:
		return "buildopd/packager"
	case types.VerbSign:
		return "buildopd/signer"
	default:
		return "buildopd/builder"
	}
}

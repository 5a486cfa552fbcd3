package executor

import (
	"os"

	"github.com/projecteru2/cocoon/types"
)

// outputsPresent implements the per-verb output validation rule: build's
// output lives in out/, package and sign's in dist/; every other verb has
// no expected on-disk artifact and is always considered valid.
func outputsPresent(verb types.Verb, dir string) bool {
	switch verb {
	case types.VerbBuild:
		return isDir(dir + "/out")
	case types.VerbPackage, types.VerbSign:
		return isDir(dir + "/dist")
	default:
		return true
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

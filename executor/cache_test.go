package executor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/projecteru2/cocoon/types"
)

func TestOutputsPresentBuild(t *testing.T) {
	dir := t.TempDir()
	if outputsPresent(types.VerbBuild, dir) {
		t.Fatal("build output should be absent before out/ is created")
	}
	if err := os.Mkdir(filepath.Join(dir, "out"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if !outputsPresent(types.VerbBuild, dir) {
		t.Fatal("build output should be present once out/ exists")
	}
}

func TestOutputsPresentPackageAndSignUseDist(t *testing.T) {
	dir := t.TempDir()
	if outputsPresent(types.VerbPackage, dir) || outputsPresent(types.VerbSign, dir) {
		t.Fatal("package/sign output should be absent before dist/ is created")
	}
	if err := os.Mkdir(filepath.Join(dir, "dist"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if !outputsPresent(types.VerbPackage, dir) || !outputsPresent(types.VerbSign, dir) {
		t.Fatal("package/sign output should be present once dist/ exists")
	}
}

func TestOutputsPresentOtherVerbsAlwaysValid(t *testing.T) {
	dir := t.TempDir()
	for _, v := range []types.Verb{types.VerbLint, types.VerbTest, types.VerbSmoke, types.VerbDoctor} {
		if !outputsPresent(v, dir) {
			t.Errorf("verb %s should have no on-disk output requirement", v)
		}
	}
}

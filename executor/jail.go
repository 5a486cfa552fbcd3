package executor

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/projecteru2/cocoon/types"
)

// jail resolves dir to an absolute, cleaned path and verifies it is a
// descendant of root. No disk I/O beyond path resolution happens before
// this check, per phase B's "fail before any further side effect" rule.
func jail(dir, root string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve project root %s: %w", root, err)
	}

	rel, err := filepath.Rel(absRoot, absDir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", types.NewOpError(types.ErrPathJailing, fmt.Errorf("%s is not a descendant of project root %s", absDir, absRoot))
	}
	return absDir, nil
}

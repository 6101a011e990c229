package build

import (
	"os"
	"path/filepath"
)

// tempRoot is the directory under which TempDir creates scratch directories
// for tests.
const tempRoot = "wallettest"

// TempDir joins the provided path elements onto a shared testdata root,
// removing any stale directory of the same name first. Tests use it to get
// a clean, uniquely-named directory to persist wallet databases into.
func TempDir(elem ...string) string {
	path := filepath.Join(append([]string{os.TempDir(), tempRoot}, elem...)...)
	os.RemoveAll(path)
	return path
}

package runner

import (
	"io"
	"os"
	"path/filepath"

	"github.com/gruntwork-io/canary/internal/errors"
	"github.com/gruntwork-io/canary/internal/testcase"
)

// stageAsset links or copies one asset into the case's working
// directory. A missing source is reported as *errors.MissingSource so
// the caller can terminate the case as skipped rather than failed, per
// §4.4 step 1.
func stageAsset(workDir string, a testcase.Asset) error {
	info, err := os.Stat(a.Src)
	if os.IsNotExist(err) {
		return &errors.MissingSource{Path: a.Src}
	}

	if err != nil {
		return err
	}

	dst := filepath.Join(workDir, a.Dst)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	if a.Action == testcase.AssetLink {
		return os.Symlink(a.Src, dst)
	}

	return copyFile(a.Src, dst, info.Mode())
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)

	return err
}

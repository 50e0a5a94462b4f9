package core

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

var errNoProjectRoot = errors.New("project root not found")

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// projectRoot walks up from the working directory until it finds the directory holding go.mod.
// go-test changes the working directory to the test package being run, so a plain os.Getwd() is not enough.
func projectRoot() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", errors.Wrap(err, "getting working directory")
	}
	currDir := wd
	for {
		if fi, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil && !fi.IsDir() {
			return currDir, nil
		}
		newDir := filepath.Dir(currDir)
		if newDir == currDir {
			return "", errNoProjectRoot
		}
		currDir = newDir
	}
}

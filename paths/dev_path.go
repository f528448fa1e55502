// +build !release

package paths

import (
	"os"
	"path"
)

const arretConfigDir = ".arret"

// the non-release version of getBasePath looks for and if necessary creates
// the arretConfigDir (and child directories) in the current working
// directory
func getBasePath(subPth string) (string, error) {
	pth := path.Join(arretConfigDir, subPth)

	if _, err := os.Stat(pth); err == nil {
		return pth, nil
	}

	if err := os.MkdirAll(pth, 0700); err != nil {
		return "", err
	}

	return pth, nil
}

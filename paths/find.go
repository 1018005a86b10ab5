// Package paths locates the files the client needs: its configuration and
// the trust store.
package paths

import (
	"os"
	"path/filepath"

	"github.com/golang/glog"
)

// Dirs lists the directories Find looks in, in order: the working directory,
// the user's configuration directory, and the runfiles of the binary.
func Dirs() []string {
	dirs := []string{"."}
	if d, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(d, "gamenet"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".gamenet"))
	}
	dirs = append(dirs, os.Args[0]+".runfiles/gamenet/testdata")
	return dirs
}

// Find locates the passed file name and returns a path it can be opened at,
// or an empty string if it is nowhere to be found.
//
// Absolute paths are returned as-is when they exist.
func Find(fileName string) string {
	if filepath.IsAbs(fileName) {
		if exists(fileName) {
			return fileName
		}
		return ""
	}
	for _, dir := range Dirs() {
		path := filepath.Join(dir, fileName)
		if exists(path) {
			glog.V(1).Infof("paths.Find(%q)=%s", fileName, path)
			return path
		}
	}
	return ""
}

// Default returns where a file that does not exist yet should be created:
// the user's configuration directory, or the working directory if there is
// none.
func Default(fileName string) string {
	if p := Find(fileName); p != "" {
		return p
	}
	if d, err := os.UserConfigDir(); err == nil {
		return filepath.Join(d, "gamenet", fileName)
	}
	return fileName
}

func exists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

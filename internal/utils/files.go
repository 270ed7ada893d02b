package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Standard default permissions
// File: u=rw, g=rw, o=r
const PermFile os.FileMode = 0664

// Dir:  u=rwx, g=rwx, o=rx (Requires +x to traverse)
const PermDir os.FileMode = 0775

// Exec: u=rwx, g=rx, o=rx
const PermExec os.FileMode = 0755

// NextAvailableDir probes for the first directory name that does not exist
// yet, starting with dir itself and then appending ascending integer
// suffixes: dir, dir_1, dir_2, ...
func NextAvailableDir(dir string) string {
	candidate := dir
	for i := 1; pathExists(candidate); i++ {
		candidate = fmt.Sprintf("%s_%d", dir, i)
	}
	return candidate
}

// NextAvailableFilename is the file counterpart of NextAvailableDir: the
// integer suffix is inserted before the file extension (out.txt, out_1.txt, ...).
func NextAvailableFilename(filename string) string {
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	candidate := filename
	for i := 1; pathExists(candidate); i++ {
		candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
	}
	return candidate
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsDir reports whether path exists and is a directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// IsFile reports whether path exists and is a regular file.
func IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

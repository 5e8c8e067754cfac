package util

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ImageFile represents an image file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Name is the base name of the file, used as the table filename.
	Name string
}

// Read returns the raw bytes of the file.
func (f ImageFile) Read() ([]byte, error) {
	return os.ReadFile(f.Path)
}

// LoadDirectoryImageFiles lists the regular files of a directory sorted by name.
//
// Files are not filtered by extension: anything that fails to decode is reported by the caller.
// Hidden files are ignored.
//
// Arguments:
// - dir: Directory path containing image files.
//
// Returns:
// - []ImageFile: The files, lexicographically sorted by name.
// - error: Error if the directory cannot be read.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []ImageFile
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		files = append(files, ImageFile{
			Path: filepath.Join(dir, entry.Name()),
			Name: entry.Name(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})

	return files, nil
}

// LoadSubdirectories returns the names of the immediate subdirectories of dir, sorted.
func LoadSubdirectories(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	return names, nil
}

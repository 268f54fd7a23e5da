package classfile

import (
	"archive/zip"
	"fmt"
	"io"
	"sort"
	"strings"
)

// maxClassSize bounds a single archive entry so a corrupt header cannot
// force an arbitrarily large allocation.
const maxClassSize = 64 << 20

// ReadJar parses every .class entry of the archive at path, sorted by entry
// name. Entries under META-INF/versions are skipped.
func ReadJar(path string) ([]*Class, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open jar: %w", err)
	}
	defer zr.Close()
	return readArchive(&zr.Reader, path)
}

// ReadJarFrom parses the class entries of an in-memory archive.
func ReadJarFrom(r io.ReaderAt, size int64, name string) ([]*Class, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("open jar: %w", err)
	}
	return readArchive(zr, name)
}

func readArchive(zr *zip.Reader, name string) ([]*Class, error) {
	files := make([]*zip.File, 0, len(zr.File))
	for _, f := range zr.File {
		if !strings.HasSuffix(f.Name, ".class") || strings.HasPrefix(f.Name, "META-INF/") {
			continue
		}
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	classes := make([]*Class, 0, len(files))
	for _, f := range files {
		c, err := readEntry(f)
		if err != nil {
			return nil, fmt.Errorf("%s!%s: %w", name, f.Name, err)
		}
		c.Path = name + "!" + f.Name
		classes = append(classes, c)
	}
	return classes, nil
}

func readEntry(f *zip.File) (*Class, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxClassSize))
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

package installer

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

type archiveEntry struct {
	body    string
	mode    int64
	symlink string
}

func sortedNames(entries map[string]archiveEntry) []string {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// writeTarGz builds a .tar.gz at dir/name from entries. Names ending in "/" are directories.
func writeTarGz(t *testing.T, dir, name string, entries map[string]archiveEntry) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	gzw := gzip.NewWriter(f)
	tw := tar.NewWriter(gzw)

	for _, entryName := range sortedNames(entries) {
		entry := entries[entryName]
		mode := entry.mode
		if mode == 0 {
			mode = 0o644
		}
		header := &tar.Header{Name: entryName, Mode: mode, Typeflag: tar.TypeReg, Size: int64(len(entry.body))}
		switch {
		case entryName[len(entryName)-1] == '/':
			header.Typeflag = tar.TypeDir
			header.Mode = 0o755
			header.Size = 0
		case entry.symlink != "":
			header.Typeflag = tar.TypeSymlink
			header.Linkname = entry.symlink
			header.Size = 0
		}
		require.NoError(t, tw.WriteHeader(header))
		if header.Typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(entry.body))
			require.NoError(t, err)
		}
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gzw.Close())
	return path
}

// writeZip builds a .zip at dir/name from entries.
func writeZip(t *testing.T, dir, name string, entries map[string]archiveEntry) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, entryName := range sortedNames(entries) {
		entry := entries[entryName]
		header := &zip.FileHeader{Name: entryName, Method: zip.Deflate}
		mode := os.FileMode(entry.mode)
		if mode == 0 {
			mode = 0o644
		}
		header.SetMode(mode)
		w, err := zw.CreateHeader(header)
		require.NoError(t, err)
		_, err = w.Write([]byte(entry.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return path
}

// fakeJDK is a minimal JDK layout wrapped in a vendor-style top-level directory.
func fakeJDK() map[string]archiveEntry {
	return map[string]archiveEntry{
		"jdk-21.0.2+13/":              {},
		"jdk-21.0.2+13/bin/":          {},
		"jdk-21.0.2+13/bin/java":      {body: "#!/bin/sh\necho 'openjdk version \"21.0.2\"' >&2\n", mode: 0o755},
		"jdk-21.0.2+13/release":       {body: "JAVA_VERSION=\"21.0.2\"\n"},
		"jdk-21.0.2+13/lib/":          {},
		"jdk-21.0.2+13/lib/modules":   {body: "modules"},
		"jdk-21.0.2+13/lib/libjli.so": {symlink: "modules"},
	}
}

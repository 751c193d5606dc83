package toolchain

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kopi-vm/kopi/pkg/locking"
	"github.com/kopi-vm/kopi/pkg/schema"
	"github.com/kopi-vm/kopi/pkg/ui"
	"github.com/kopi-vm/kopi/toolchain/installer"
)

func newTestEnv(t *testing.T, opts ...locking.Option) (*Environment, *bytes.Buffer) {
	t.Helper()
	home := t.TempDir()
	opts = append([]locking.Option{locking.WithMode(locking.ModeAdvisory)}, opts...)
	controller := locking.NewController(home, opts...)

	cfg := &schema.Configuration{KopiHome: home}
	cfg.Download.Retry = schema.RetryConfig{MaxAttempts: 2, BackoffStrategy: schema.BackoffConstant}

	var out bytes.Buffer
	return NewEnvironment(cfg, controller, &out, ui.DefaultStyles(false)), &out
}

// writeJDKArchive builds a .tar.gz holding a minimal JDK under a vendor directory.
func writeJDKArchive(t *testing.T) string {
	t.Helper()
	files := []struct {
		name string
		body string
		mode int64
	}{
		{name: "jdk-21.0.2+13/bin/java", body: "#!/bin/sh\necho 'openjdk version \"21.0.2\"' >&2\n", mode: 0o755},
		{name: "jdk-21.0.2+13/release", body: "JAVA_VERSION=\"21.0.2\"\n", mode: 0o644},
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, f := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     f.name,
			Mode:     f.mode,
			Size:     int64(len(f.body)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(f.body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	path := filepath.Join(t.TempDir(), "OpenJDK21U-jdk.tar.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func archiveSHA256(t *testing.T, path string) string {
	t.Helper()
	sum, err := installer.FileSHA256(path)
	require.NoError(t, err)
	return sum
}

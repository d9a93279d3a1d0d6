package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/mholt/archiver/v3"
)

// DecompressedName returns the local filename of name after decompression.
func DecompressedName(name string) string {
	for _, suffix := range []string{".gz", ".Z"} {
		if strings.HasSuffix(name, suffix) {
			return strings.TrimSuffix(name, suffix)
		}
	}
	return name
}

// Decompress decompresses a .gz or .Z file, removes the compressed file and returns the decompressed filepath.
// Files with other extensions are returned unchanged.
// Unix compressed .Z files require gzip to be installed.
func Decompress(ctx context.Context, compressedPath string) (string, error) {
	outPath := DecompressedName(compressedPath)
	switch {
	case strings.HasSuffix(compressedPath, ".gz"):
		// archiver refuses to overwrite
		if err := os.Remove(outPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		if err := archiver.DecompressFile(compressedPath, outPath); err != nil {
			os.Remove(outPath)
			return "", fmt.Errorf("decompress %s: %w", compressedPath, err)
		}
	case strings.HasSuffix(compressedPath, ".Z"):
		if err := uncompressZ(ctx, compressedPath); err != nil {
			return "", err
		}
	default:
		return compressedPath, nil
	}

	os.Remove(compressedPath)
	return outPath, nil
}

// uncompressZ runs gzip, which can decode the LZW .Z format, on path.
func uncompressZ(ctx context.Context, path string) error {
	tool, err := exec.LookPath("gzip")
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, tool, "-d", "-f", path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	// Launch as new process group so that signals (ex: SIGINT) are not sent also the the child process.
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true, // linux
	}

	if err := cmd.Run(); err != nil {
		rc := cmd.ProcessState.ExitCode()
		os.Remove(DecompressedName(path))
		return fmt.Errorf("gzip -d %s: rc:%d: %v: %s", path, rc, err, stderr.Bytes())
	}
	return nil
}

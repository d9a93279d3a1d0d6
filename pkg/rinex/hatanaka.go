package rinex

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"
)

// IsHatanakaCompressed returns true if the file given by filename is Hatanaka compressed.
// This is checked by the filenames' extension.
func IsHatanakaCompressed(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".crx" || (len(ext) == 4 && strings.HasSuffix(ext, "d")) // .21d
}

// RnxFilename returns the name of the plain RINEX file of a Hatanaka compressed file.
func RnxFilename(crxFil string) (string, error) {
	var rnxFil string
	if len(crxFil) > 20 && Rnx3FileNamePattern.MatchString(crxFil) {
		rnxFil = Rnx3FileNamePattern.ReplaceAllString(crxFil, "${2}.rnx")
	} else if Rnx2FileNamePattern.MatchString(crxFil) {
		typ := "o"
		if strings.HasSuffix(crxFil, "D") {
			typ = "O"
		}
		rnxFil = Rnx2FileNamePattern.ReplaceAllString(crxFil, "${2}${3}${4}${5}.${6}"+typ)
	} else {
		return "", fmt.Errorf("crx2rnx: file has no standard RINEX extension: %s", crxFil)
	}

	if rnxFil == "" || rnxFil == crxFil {
		return "", fmt.Errorf("crx2rnx: could not build uncompressed filename")
	}
	return rnxFil, nil
}

// Crx2rnx decompresses a Hatanaka-compressed RINEX obs file and returns the decompressed filename.
// The crxFilename must be a valid RINEX filename, RINEX v2 lowercase and RINEX v3 uppercase.
// The compressed file is removed on success. Requires CRX2RNX, see http://terras.gsi.go.jp/ja/crx2rnx.html.
func Crx2rnx(ctx context.Context, crxFilename string) (string, error) {
	// Check if file is already Hata decompressed.
	if !IsHatanakaCompressed(crxFilename) {
		return crxFilename, nil
	}

	dir, crxFil := filepath.Split(crxFilename)
	rnxFil, err := RnxFilename(crxFil)
	if err != nil {
		return "", err
	}
	rnxFilePath := filepath.Join(dir, rnxFil)

	tool, err := exec.LookPath("CRX2RNX")
	if err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, tool, crxFilename, "-d", "-f")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	// Launch as new process group so that signals (ex: SIGINT) are not sent also the the child process,
	// see https://stackoverflow.com/questions/66232825/child-process-receives-sigint-which-should-be-handled-only-by-parent-process-re
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true, // linux
	}

	if err := cmd.Run(); err != nil {
		rc := cmd.ProcessState.ExitCode()
		if rc == 2 { // Warning
			log.Warnf("crx2rnx: %s", stderr.Bytes())
		} else {
			if _, err := os.Stat(rnxFilePath); !errors.Is(err, os.ErrNotExist) {
				os.Remove(rnxFilePath)
			}
			return "", fmt.Errorf("crx2rnx: rc:%d: %v: %s", rc, err, stderr.Bytes())
		}
	}

	if _, err := os.Stat(rnxFilePath); errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("crx2rnx: no such file: %s", rnxFilePath)
	}
	return rnxFilePath, nil
}

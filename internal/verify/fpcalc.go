package verify

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// ChromaprintVersion pins the fpcalc release downloaded when no binary is
// found on PATH, matching the original client's pinned release.
const ChromaprintVersion = "1.5.1"

// FpcalcLocator finds (or, failing that, downloads) the fpcalc binary used
// to generate Chromaprint fingerprints, grounded directly on
// original_source/core/acoustid_client.py's platform-detection and
// archive-extraction logic.
type FpcalcLocator struct {
	// BinDir is where a downloaded fpcalc is cached. Defaults to "./bin".
	BinDir string
	// HTTPClient performs the release download; defaults to a 60s-timeout client.
	HTTPClient *http.Client
}

func (l *FpcalcLocator) binDir() string {
	if l.BinDir != "" {
		return l.BinDir
	}
	return "bin"
}

func (l *FpcalcLocator) httpClient() *http.Client {
	if l.HTTPClient != nil {
		return l.HTTPClient
	}
	return &http.Client{Timeout: 60 * time.Second}
}

func binaryName() string {
	if runtime.GOOS == "windows" {
		return "fpcalc.exe"
	}
	return "fpcalc"
}

// Locate returns a usable path to fpcalc: first on PATH, then in BinDir,
// then by downloading the platform-appropriate chromaprint release.
func (l *FpcalcLocator) Locate() (string, error) {
	if p, err := exec.LookPath(binaryName()); err == nil {
		return p, nil
	}

	local := filepath.Join(l.binDir(), binaryName())
	if _, err := os.Stat(local); err == nil {
		return local, nil
	}

	return l.download()
}

func (l *FpcalcLocator) download() (string, error) {
	url, err := downloadURL(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(l.binDir(), 0o755); err != nil {
		return "", fmt.Errorf("create fpcalc bin dir: %w", err)
	}

	resp, err := l.httpClient().Get(url)
	if err != nil {
		return "", fmt.Errorf("download fpcalc: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download fpcalc: status %d", resp.StatusCode)
	}

	dest := filepath.Join(l.binDir(), binaryName())
	var extractErr error
	if strings.HasSuffix(url, ".zip") {
		extractErr = extractZipMember(resp.Body, binaryName(), dest)
	} else {
		extractErr = extractTarGzMember(resp.Body, "fpcalc", dest)
	}
	if extractErr != nil {
		return "", fmt.Errorf("extract fpcalc: %w", extractErr)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(dest, 0o755); err != nil {
			return "", fmt.Errorf("chmod fpcalc: %w", err)
		}
	}
	return dest, nil
}

// downloadURL mirrors _get_fpcalc_download_url's platform/arch mapping.
func downloadURL(goos, goarch string) (string, error) {
	base := fmt.Sprintf("https://github.com/acoustid/chromaprint/releases/download/v%s", ChromaprintVersion)

	var arch string
	switch goarch {
	case "amd64":
		arch = "x86_64"
	case "arm64":
		arch = "aarch64"
	case "386":
		arch = "i686"
	default:
		return "", fmt.Errorf("no fpcalc release for architecture %s", goarch)
	}

	switch goos {
	case "windows":
		if arch != "x86_64" {
			return "", fmt.Errorf("no fpcalc windows release for %s", arch)
		}
		return fmt.Sprintf("%s/chromaprint-fpcalc-%s-windows-x86_64.zip", base, ChromaprintVersion), nil
	case "darwin":
		return fmt.Sprintf("%s/chromaprint-fpcalc-%s-macos-universal.tar.gz", base, ChromaprintVersion), nil
	case "linux":
		if arch != "x86_64" {
			return "", fmt.Errorf("no fpcalc linux release for %s", arch)
		}
		return fmt.Sprintf("%s/chromaprint-fpcalc-%s-linux-x86_64.tar.gz", base, ChromaprintVersion), nil
	default:
		return "", fmt.Errorf("no fpcalc release for platform %s-%s", goos, arch)
	}
}

func extractZipMember(r io.Reader, memberSuffix, dest string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	zr, err := zip.NewReader(strings.NewReader(string(data)), int64(len(data)))
	if err != nil {
		return err
	}
	for _, f := range zr.File {
		if !strings.HasSuffix(f.Name, memberSuffix) {
			continue
		}
		src, err := f.Open()
		if err != nil {
			return err
		}
		defer src.Close()
		out, err := os.Create(dest)
		if err != nil {
			return err
		}
		defer out.Close()
		_, err = io.Copy(out, src)
		return err
	}
	return fmt.Errorf("member %q not found in archive", memberSuffix)
}

func extractTarGzMember(r io.Reader, memberSuffix, dest string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if !strings.HasSuffix(hdr.Name, memberSuffix) {
			continue
		}
		out, err := os.Create(dest)
		if err != nil {
			return err
		}
		defer out.Close()
		_, err = io.Copy(out, tr)
		return err
	}
	return fmt.Errorf("member %q not found in archive", memberSuffix)
}

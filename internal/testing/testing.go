// package testing contains shared testing utilities: fakes for MTAP's
// external-service interfaces (the P2P transfer daemon, the local media
// library, fingerprint lookup) plus the teacher's generic file/HTTP test
// helpers, reused unchanged since they depend on nothing domain-specific.
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"testing"

	"github.com/Nezreka/SoulSync-sub002/internal/acquire"
	"github.com/Nezreka/SoulSync-sub002/internal/models"
)

// MockMediaLibrary is a test double for [library.MediaLibrary].
type MockMediaLibrary struct {
	Tracks []models.LibraryTrack
	Src    models.ServerSource
	Err    error
}

func (m *MockMediaLibrary) BulkLoad(ctx context.Context) ([]models.LibraryTrack, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Tracks, nil
}

func (m *MockMediaLibrary) Source() models.ServerSource { return m.Src }

// MockTransferDaemon is a test double for [acquire.TransferDaemon]. Search
// results are keyed by the exact query string; Dispatch always succeeds
// unless DispatchErr is set.
type MockTransferDaemon struct {
	SearchResults map[string][]models.Candidate
	SearchErr     error
	DispatchErr   error
	Rows          []acquire.TransferRow
	nextID        int
}

func (m *MockTransferDaemon) Search(ctx context.Context, query string) ([]models.Candidate, error) {
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	return m.SearchResults[query], nil
}

func (m *MockTransferDaemon) Dispatch(ctx context.Context, username, filename string, sizeBytes int64) (string, error) {
	if m.DispatchErr != nil {
		return "", m.DispatchErr
	}
	m.nextID++
	return "transfer-mock", nil
}

func (m *MockTransferDaemon) Cancel(ctx context.Context, transferID, username string, remove bool) error {
	return nil
}

func (m *MockTransferDaemon) Downloads(ctx context.Context) ([]acquire.TransferRow, error) {
	return m.Rows, nil
}

// MockFingerprintVerifier is a test double for [acquire.FingerprintVerifier].
type MockFingerprintVerifier struct {
	Outcome models.VerificationOutcome
}

func (m *MockFingerprintVerifier) Verify(ctx context.Context, filePath, expectedTitle, expectedArtist string) models.VerificationOutcome {
	if m.Outcome.Result == "" {
		return models.VerificationOutcome{Result: models.VerificationSkip, Reason: "not configured"}
	}
	return m.Outcome
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

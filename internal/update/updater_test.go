package update

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/adamancini/hoist/internal/fetch"
	"github.com/adamancini/hoist/internal/operation"
	"github.com/adamancini/hoist/internal/release"
	"github.com/adamancini/hoist/internal/sentinel"
	"github.com/adamancini/hoist/internal/types"
	"github.com/adamancini/hoist/internal/verify"
	"github.com/adamancini/hoist/internal/version"
)

// releaseServer serves a signed release over TLS.
type releaseServer struct {
	*httptest.Server

	mu       sync.Mutex
	files    map[string][]byte
	requests []string

	publicKey string
}

func makeZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// newReleaseServer publishes artifact under /releases/<name> together with
// a SHA256SUMS manifest and its ed25519 signature.
func newReleaseServer(t *testing.T, name string, artifact []byte) *releaseServer {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		t.Fatal(err)
	}

	sum := sha256.Sum256(artifact)
	sums := []byte(hex.EncodeToString(sum[:]) + " *" + name + "\n")

	rs := &releaseServer{
		files: map[string][]byte{
			"/releases/" + name:        artifact,
			"/releases/SHA256SUMS":     sums,
			"/releases/SHA256SUMS.sig": ed25519.Sign(priv, sums),
		},
		publicKey: string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})),
	}
	rs.Server = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.mu.Lock()
		rs.requests = append(rs.requests, r.URL.Path)
		data, ok := rs.files[r.URL.Path]
		rs.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	t.Cleanup(rs.Close)
	return rs
}

func (rs *releaseServer) set(path string, data []byte) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.files[path] = data
}

func (rs *releaseServer) requestCount() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.requests)
}

func (rs *releaseServer) source(v, name string) *release.Static {
	return release.NewStatic(version.MustParse(v), types.MustParseFileURL(rs.URL+"/releases/"+name))
}

func (rs *releaseServer) downloader() *fetch.Downloader {
	return fetch.New(fetch.WithHTTPClient(rs.Client()))
}

func (rs *releaseServer) verifiers(t *testing.T) []verify.Verifier {
	t.Helper()
	sig, err := verify.NewSignature("SHA256SUMS", "SHA256SUMS.sig", rs.publicKey)
	if err != nil {
		t.Fatal(err)
	}
	return []verify.Verifier{verify.NewSHA256Sums("SHA256SUMS"), sig}
}

func newTestUpdater(t *testing.T, m *Manager, rs *releaseServer, v, name string, opts ...UpdaterOption) *Updater {
	t.Helper()
	base := []UpdaterOption{
		WithSource(rs.source(v, name)),
		WithFilenamePattern(`app-[0-9.]+\.zip`),
		WithDownloader(rs.downloader()),
		WithVerifier(rs.verifiers(t)...),
	}
	u, err := NewUpdater(m, append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewUpdater() error = %v", err)
	}
	return u
}

func TestUpdateEndToEnd(t *testing.T) {
	rs := newReleaseServer(t, "app-1.2.3.zip", makeZip(t, map[string]string{
		"app.txt":         "version 1.2.3",
		"assets/icon.ico": "icon",
	}))
	wd := t.TempDir()
	m := newTestManager(t, wd, "1.2.2", newFakeProcs())
	u := newTestUpdater(t, m, rs, "1.2.3", "app-1.2.3.zip")

	info, err := u.GetLatest(context.Background())
	if err != nil {
		t.Fatalf("GetLatest() error = %v", err)
	}
	if info.State != types.StateNewVersionAvailable || info.Version.String() != "1.2.3" {
		t.Fatalf("GetLatest() = %s %s", info.State, info.Version)
	}

	dir, err := u.Update(context.Background(), info)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if dir != filepath.Join(wd, "1.2.3") {
		t.Errorf("Update() = %s, want %s", dir, filepath.Join(wd, "1.2.3"))
	}
	if got := readFile(t, filepath.Join(dir, "app.txt")); got != "version 1.2.3" {
		t.Errorf("app.txt = %q", got)
	}
	if !sentinel.Matches(dir, version.MustParse("1.2.3")) {
		t.Error("version directory has no valid sentinel")
	}

	installed, err := m.LatestAvailableUpdate()
	if err != nil {
		t.Fatal(err)
	}
	if installed == nil || installed.Version.String() != "1.2.3" || installed.Path != dir {
		t.Errorf("LatestAvailableUpdate() = %+v", installed)
	}

	entries, err := os.ReadDir(filepath.Join(wd, TempDirectory))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("scratch directories left behind: %d", len(entries))
	}

	info, err = u.GetLatest(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if info.State != types.StateAlreadyInstalled {
		t.Errorf("GetLatest() after update = %s, want update_already_installed", info.State)
	}
	if _, err := u.Update(context.Background(), info); !errors.Is(err, ErrAlreadyInstalled) {
		t.Errorf("Update() again error = %v, want ErrAlreadyInstalled", err)
	}
}

func TestGetLatestStates(t *testing.T) {
	tests := []struct {
		name    string
		current string
		release string
		setup   func(t *testing.T, wd string)
		want    types.UpdateState
	}{
		{name: "new version", current: "1.2.2", release: "1.2.3", want: types.StateNewVersionAvailable},
		{name: "up to date", current: "1.2.3", release: "1.2.3", want: types.StateUpToDate},
		{name: "padded versions are equal", current: "1.2.3.0", release: "1.2.3", want: types.StateUpToDate},
		{name: "older", current: "1.3.0", release: "1.2.9", want: types.StateLatestIsOlder},
		{
			name:    "already downloaded",
			current: "1.2.2",
			release: "1.2.3",
			setup:   func(t *testing.T, wd string) { installDir(t, wd, "1.2.3", "1.2.3", nil) },
			want:    types.StateAlreadyInstalled,
		},
		{
			name:    "already applied",
			current: "1.2.2",
			release: "1.2.3",
			setup:   func(t *testing.T, wd string) { installDir(t, wd, "current", "1.2.3", nil) },
			want:    types.StateAlreadyInstalled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name := "app-" + tt.release + ".zip"
			rs := newReleaseServer(t, name, []byte("unused"))
			wd := t.TempDir()
			if tt.setup != nil {
				tt.setup(t, wd)
			}
			m := newTestManager(t, wd, tt.current, newFakeProcs())
			u := newTestUpdater(t, m, rs, tt.release, name)

			info, err := u.GetLatest(context.Background())
			if err != nil {
				t.Fatalf("GetLatest() error = %v", err)
			}
			if info.State != tt.want {
				t.Errorf("State = %s, want %s", info.State, tt.want)
			}
			if n := rs.requestCount(); n != 0 {
				t.Errorf("GetLatest() made %d downloads", n)
			}
		})
	}
}

func TestUpdateLatestDowngrade(t *testing.T) {
	rs := newReleaseServer(t, "app-1.2.9.zip", makeZip(t, map[string]string{"app.txt": "old"}))
	wd := t.TempDir()
	m := newTestManager(t, wd, "1.3.0", newFakeProcs())
	u := newTestUpdater(t, m, rs, "1.2.9", "app-1.2.9.zip")

	_, info, err := u.UpdateLatest(context.Background())
	if !errors.Is(err, ErrLatestIsOlder) {
		t.Fatalf("UpdateLatest() error = %v, want ErrLatestIsOlder", err)
	}
	if info.State != types.StateLatestIsOlder {
		t.Errorf("State = %s", info.State)
	}
	if rs.requestCount() != 0 {
		t.Error("no download may happen for an older release")
	}
	if exists(filepath.Join(wd, "1.2.9")) {
		t.Error("older release was installed")
	}
}

func TestUpdateLatest(t *testing.T) {
	rs := newReleaseServer(t, "app-2.0.zip", makeZip(t, map[string]string{"app.txt": "two"}))
	m := newTestManager(t, t.TempDir(), "1.0", newFakeProcs())
	u := newTestUpdater(t, m, rs, "2.0", "app-2.0.zip")

	dir, info, err := u.UpdateLatest(context.Background())
	if err != nil {
		t.Fatalf("UpdateLatest() error = %v", err)
	}
	if info.Version.String() != "2.0" || filepath.Base(dir) != "2.0" {
		t.Errorf("UpdateLatest() = %s, %s", dir, info.Version)
	}
	if _, _, err := u.UpdateLatest(context.Background()); !errors.Is(err, ErrAlreadyInstalled) {
		t.Errorf("second UpdateLatest() error = %v, want ErrAlreadyInstalled", err)
	}
}

func TestUpdateVerificationFailure(t *testing.T) {
	name := "app-1.2.3.zip"
	rs := newReleaseServer(t, name, makeZip(t, map[string]string{"app.txt": "good"}))
	wd := t.TempDir()
	m := newTestManager(t, wd, "1.0", newFakeProcs())
	u := newTestUpdater(t, m, rs, "1.2.3", name)

	info, err := u.GetLatest(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	// The artifact was swapped after signing.
	rs.set("/releases/"+name, makeZip(t, map[string]string{"app.txt": "evil"}))
	_, err = u.Update(context.Background(), info)
	if !errors.Is(err, verify.ErrVerificationFailed) {
		t.Fatalf("Update() error = %v, want ErrVerificationFailed", err)
	}
	if exists(filepath.Join(wd, "1.2.3")) {
		t.Error("unverified content reached the working directory")
	}
}

func TestUpdateBadSignature(t *testing.T) {
	name := "app-1.2.3.zip"
	artifact := makeZip(t, map[string]string{"app.txt": "good"})
	rs := newReleaseServer(t, name, artifact)
	wd := t.TempDir()
	m := newTestManager(t, wd, "1.0", newFakeProcs())
	u := newTestUpdater(t, m, rs, "1.2.3", name)

	// A manifest that matches the artifact but was not signed by the key.
	sum := sha256.Sum256(artifact)
	rs.set("/releases/SHA256SUMS", []byte(hex.EncodeToString(sum[:])+"  "+name+"\n"))

	_, _, err := u.UpdateLatest(context.Background())
	var verr *verify.VerificationError
	if !errors.As(err, &verr) {
		t.Fatalf("UpdateLatest() error = %v, want *verify.VerificationError", err)
	}
	if exists(filepath.Join(wd, "1.2.3")) {
		t.Error("content with a bad signature reached the working directory")
	}
}

func TestUpdateContentOperationFailure(t *testing.T) {
	name := "app-1.2.3.zip"
	rs := newReleaseServer(t, name, makeZip(t, map[string]string{"app.txt": "x"}))
	wd := t.TempDir()
	m := newTestManager(t, wd, "1.0", newFakeProcs())
	u := newTestUpdater(t, m, rs, "1.2.3", name,
		WithContentOperation(operation.RequireFiles("app.exe")))

	_, _, err := u.UpdateLatest(context.Background())
	var opErr *OperationError
	if !errors.As(err, &opErr) || opErr.Stage != StageContent {
		t.Fatalf("UpdateLatest() error = %v, want content OperationError", err)
	}
	if exists(filepath.Join(wd, "1.2.3")) {
		t.Error("version directory exists after a failed content operation")
	}
}

func TestUpdateFlattenContent(t *testing.T) {
	name := "app-1.2.3.zip"
	rs := newReleaseServer(t, name, makeZip(t, map[string]string{
		"app-1.2.3/app.txt":    "nested",
		"app-1.2.3/lib/lib.so": "lib",
	}))
	m := newTestManager(t, t.TempDir(), "1.0", newFakeProcs())
	u := newTestUpdater(t, m, rs, "1.2.3", name,
		WithContentOperation(operation.Flatten(), operation.RequireFiles("app.txt", "lib/lib.so")))

	dir, _, err := u.UpdateLatest(context.Background())
	if err != nil {
		t.Fatalf("UpdateLatest() error = %v", err)
	}
	if got := readFile(t, filepath.Join(dir, "app.txt")); got != "nested" {
		t.Errorf("app.txt = %q", got)
	}
}

func TestUpdatePostOperation(t *testing.T) {
	failing := operation.Func(func(string) error { return errors.New("shortcut failed") })

	t.Run("strict", func(t *testing.T) {
		name := "app-1.2.3.zip"
		rs := newReleaseServer(t, name, makeZip(t, map[string]string{"app.txt": "x"}))
		wd := t.TempDir()
		m := newTestManager(t, wd, "1.0", newFakeProcs())
		u := newTestUpdater(t, m, rs, "1.2.3", name, WithPostUpdateOperation(failing))

		_, _, err := u.UpdateLatest(context.Background())
		var opErr *OperationError
		if !errors.As(err, &opErr) || opErr.Stage != StagePostUpdate {
			t.Fatalf("UpdateLatest() error = %v, want post-update OperationError", err)
		}
		if exists(filepath.Join(wd, "1.2.3")) {
			t.Error("version directory kept after a failed post-update operation")
		}
	})

	t.Run("ignored", func(t *testing.T) {
		name := "app-1.2.3.zip"
		rs := newReleaseServer(t, name, makeZip(t, map[string]string{"app.txt": "x"}))
		wd := t.TempDir()
		m := newTestManager(t, wd, "1.0", newFakeProcs())

		var seen string
		record := operation.Func(func(dir string) error {
			seen = dir
			return nil
		})
		u := newTestUpdater(t, m, rs, "1.2.3", name,
			WithPostUpdateOperation(operation.IgnoreFailure(failing, m.Logger()), record))

		dir, _, err := u.UpdateLatest(context.Background())
		if err != nil {
			t.Fatalf("UpdateLatest() error = %v", err)
		}
		if seen != dir {
			t.Errorf("post-update operation ran on %q, want %q", seen, dir)
		}
	})
}

func TestUpdateURLChecks(t *testing.T) {
	tests := []struct {
		name    string
		release string
		file    string
		opts    []UpdaterOption
		wantErr error
	}{
		{
			name:    "untrusted url",
			release: "1.2.3",
			file:    "app-1.2.3.zip",
			opts:    []UpdaterOption{WithURLPattern(`https://downloads\.example\.com/`)},
			wantErr: ErrURLNotTrusted,
		},
		{
			name:    "filename claims another version",
			release: "1.2.4",
			file:    "app-1.2.3.zip",
			wantErr: ErrFilenameVersionMismatch,
		},
		{
			name:    "version embedded in a larger number",
			release: "1.2.3",
			file:    "app-11.2.3.zip",
			wantErr: ErrFilenameVersionMismatch,
		},
		{
			name:    "filename pattern",
			release: "1.2.3",
			file:    "other-1.2.3.zip",
			wantErr: release.ErrNoMatchingAsset,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := newReleaseServer(t, tt.file, []byte("unused"))
			m := newTestManager(t, t.TempDir(), "1.0", newFakeProcs())
			u := newTestUpdater(t, m, rs, tt.release, tt.file, tt.opts...)

			_, err := u.GetLatest(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("GetLatest() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestUpdateFilenameVersionCheckDisabled(t *testing.T) {
	rs := newReleaseServer(t, "app-1.2.3.zip", makeZip(t, map[string]string{"app.txt": "x"}))
	m := newTestManager(t, t.TempDir(), "1.0", newFakeProcs())
	u := newTestUpdater(t, m, rs, "1.2.4", "app-1.2.3.zip", WithFilenameContainsVersion(false))

	info, err := u.GetLatest(context.Background())
	if err != nil {
		t.Fatalf("GetLatest() error = %v", err)
	}
	if info.Version.String() != "1.2.4" {
		t.Errorf("Version = %s", info.Version)
	}
}

func TestUpdateUpdaterRequiresConfiguration(t *testing.T) {
	m := newTestManager(t, t.TempDir(), "1.0", newFakeProcs())

	u, err := NewUpdater(m, WithFilenamePattern(`.*`))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := u.GetLatest(context.Background()); !errors.Is(err, ErrNoSource) {
		t.Errorf("GetLatest() error = %v, want ErrNoSource", err)
	}

	if _, err := NewUpdater(m, WithFilenamePattern("(")); err == nil {
		t.Error("NewUpdater() should reject an invalid filename pattern")
	}
	if _, err := NewUpdater(m, WithArchiveType("rar")); err == nil {
		t.Error("NewUpdater() should reject an unsupported archive type")
	}
	if _, err := NewUpdater(nil); err == nil {
		t.Error("NewUpdater() should require a manager")
	}
}

func TestUpdateCancel(t *testing.T) {
	name := "app-1.2.3.zip"
	rs := newReleaseServer(t, name, makeZip(t, map[string]string{"app.txt": "x"}))
	wd := t.TempDir()
	m := newTestManager(t, wd, "1.0", newFakeProcs())
	u := newTestUpdater(t, m, rs, "1.2.3", name)

	info, err := u.GetLatest(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if prev := u.Cancel(true); prev {
		t.Error("Cancel(true) returned true on a fresh updater")
	}
	if !u.Cancelled() {
		t.Error("Cancelled() = false after Cancel(true)")
	}
	if _, err := u.Update(context.Background(), info); !errors.Is(err, fetch.ErrCancelled) {
		t.Fatalf("Update() error = %v, want ErrCancelled", err)
	}
	if exists(filepath.Join(wd, "1.2.3")) {
		t.Error("cancelled update created a version directory")
	}

	if prev := u.Cancel(false); !prev {
		t.Error("Cancel(false) should report the previous state")
	}
	if _, err := u.Update(context.Background(), info); err != nil {
		t.Fatalf("Update() after reset error = %v", err)
	}
}

func TestUpdateContextCancelled(t *testing.T) {
	name := "app-1.2.3.zip"
	rs := newReleaseServer(t, name, makeZip(t, map[string]string{"app.txt": "x"}))
	m := newTestManager(t, t.TempDir(), "1.0", newFakeProcs())
	u := newTestUpdater(t, m, rs, "1.2.3", name)

	info, err := u.GetLatest(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = u.Update(ctx, info)
	if !errors.Is(err, fetch.ErrCancelled) || !errors.Is(err, context.Canceled) {
		t.Errorf("Update() error = %v, want ErrCancelled wrapping context.Canceled", err)
	}
}

func TestUpdateInProgress(t *testing.T) {
	rs := newReleaseServer(t, "app-1.0.zip", nil)
	m := newTestManager(t, t.TempDir(), "0.9", newFakeProcs())
	u := newTestUpdater(t, m, rs, "1.0", "app-1.0.zip")

	u.inProgress.Lock()
	defer u.inProgress.Unlock()
	_, err := u.Update(context.Background(), &Info{
		Version: version.MustParse("1.0"),
		URL:     types.MustParseFileURL(rs.URL + "/releases/app-1.0.zip"),
	})
	if !errors.Is(err, ErrUpdateInProgress) {
		t.Errorf("Update() error = %v, want ErrUpdateInProgress", err)
	}
}

func TestUpdateFileURLOverride(t *testing.T) {
	name := "app-1.2.3.zip"
	rs := newReleaseServer(t, name, makeZip(t, map[string]string{"app.txt": "x"}))
	rs.mu.Lock()
	sums := rs.files["/releases/SHA256SUMS"]
	delete(rs.files, "/releases/SHA256SUMS")
	rs.files["/mirror/sums-1.2.3.txt"] = sums
	rs.mu.Unlock()

	m := newTestManager(t, t.TempDir(), "1.0", newFakeProcs())
	u := newTestUpdater(t, m, rs, "1.2.3", name,
		WithFileURLTemplate("SHA256SUMS", rs.URL+"/mirror/sums-{version}.txt"))

	if _, _, err := u.UpdateLatest(context.Background()); err != nil {
		t.Fatalf("UpdateLatest() error = %v", err)
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if !strings.Contains(strings.Join(rs.requests, " "), "/mirror/sums-1.2.3.txt") {
		t.Errorf("override url was not used: %v", rs.requests)
	}
}

func TestUpdateReplacesIncompleteDirectory(t *testing.T) {
	name := "app-1.2.3.zip"
	rs := newReleaseServer(t, name, makeZip(t, map[string]string{"app.txt": "fresh"}))
	wd := t.TempDir()
	installDir(t, wd, "1.2.3", "", map[string]string{"leftover": "partial extraction"})

	m := newTestManager(t, wd, "1.0", newFakeProcs())
	u := newTestUpdater(t, m, rs, "1.2.3", name)

	dir, _, err := u.UpdateLatest(context.Background())
	if err != nil {
		t.Fatalf("UpdateLatest() error = %v", err)
	}
	if exists(filepath.Join(dir, "leftover")) {
		t.Error("incomplete directory content survived")
	}
	if got := readFile(t, filepath.Join(dir, "app.txt")); got != "fresh" {
		t.Errorf("app.txt = %q", got)
	}
}

func TestUpdateIncompleteDirectoryInUse(t *testing.T) {
	name := "app-1.2.3.zip"
	rs := newReleaseServer(t, name, makeZip(t, map[string]string{"app.txt": "fresh"}))
	wd := t.TempDir()
	installDir(t, wd, "1.2.3", "", map[string]string{"app.exe": "partial"})

	procs := newFakeProcs()
	procs.running[42] = filepath.Join(wd, "1.2.3", "app.exe")
	m := newTestManager(t, wd, "1.0", procs)
	u := newTestUpdater(t, m, rs, "1.2.3", name)

	_, _, err := u.UpdateLatest(context.Background())
	if !errors.Is(err, ErrProcessesRunning) {
		t.Fatalf("UpdateLatest() error = %v, want ErrProcessesRunning", err)
	}
	if len(procs.terminated) != 0 {
		t.Errorf("processes were terminated: %v", procs.terminated)
	}
	if got := readFile(t, filepath.Join(wd, "1.2.3", "app.exe")); got != "partial" {
		t.Errorf("app.exe = %q, directory in use was modified", got)
	}
	if n := rs.requestCount(); n != 0 {
		t.Errorf("%d requests made before the target was cleared", n)
	}
}

func TestUpdateNestedChecksumManifest(t *testing.T) {
	name := "app-1.2.3.zip"
	artifact := makeZip(t, map[string]string{"app.txt": "fresh"})
	rs := newReleaseServer(t, name, artifact)
	sum := sha256.Sum256(artifact)
	rs.set("/releases/checksums/SHA256SUMS", []byte(hex.EncodeToString(sum[:])+" *../"+name+"\n"))

	m := newTestManager(t, t.TempDir(), "1.0", newFakeProcs())
	u := newTestUpdater(t, m, rs, "1.2.3", name, WithVerifier(verify.NewSHA256Sums("checksums/SHA256SUMS")))

	dir, _, err := u.UpdateLatest(context.Background())
	if err != nil {
		t.Fatalf("UpdateLatest() error = %v", err)
	}
	if got := readFile(t, filepath.Join(dir, "app.txt")); got != "fresh" {
		t.Errorf("app.txt = %q", got)
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if !strings.Contains(strings.Join(rs.requests, " "), "/releases/checksums/SHA256SUMS") {
		t.Errorf("nested manifest was not fetched: %v", rs.requests)
	}
}

func TestUpdateRejectsEscapingFileName(t *testing.T) {
	tests := []string{"../SHA256SUMS", "/SHA256SUMS", "a/../SHA256SUMS", `a\SHA256SUMS`, "c:SHA256SUMS"}

	for _, manifest := range tests {
		t.Run(manifest, func(t *testing.T) {
			name := "app-1.2.3.zip"
			rs := newReleaseServer(t, name, makeZip(t, map[string]string{"app.txt": "fresh"}))
			wd := t.TempDir()
			m := newTestManager(t, wd, "1.0", newFakeProcs())
			u := newTestUpdater(t, m, rs, "1.2.3", name, WithVerifier(verify.NewSHA256Sums(manifest)))

			_, _, err := u.UpdateLatest(context.Background())
			if err == nil || !strings.Contains(err.Error(), "invalid additional file name") {
				t.Fatalf("UpdateLatest() error = %v, want invalid additional file name", err)
			}
			if exists(filepath.Join(wd, "1.2.3")) {
				t.Error("version directory created for a rejected update")
			}
		})
	}
}

func TestUpdateThenApply(t *testing.T) {
	name := "app-1.1.zip"
	rs := newReleaseServer(t, name, makeZip(t, map[string]string{"app": "v1.1"}))
	wd := t.TempDir()
	installDir(t, wd, "current", "1.0", map[string]string{"app": "v1.0", "settings.json": "{}"})

	m := newTestManager(t, wd, "1.0", newFakeProcs(), WithRetainedFiles("settings.json"))
	u := newTestUpdater(t, m, rs, "1.1", name)
	if _, _, err := u.UpdateLatest(context.Background()); err != nil {
		t.Fatalf("UpdateLatest() error = %v", err)
	}

	v, applied, err := m.ApplyLatest(context.Background(), true)
	if err != nil || !applied || v.String() != "1.1" {
		t.Fatalf("ApplyLatest() = %s, %v, %v", v, applied, err)
	}
	if got := readFile(t, filepath.Join(wd, "current", "app")); got != "v1.1" {
		t.Errorf("app = %q", got)
	}
	if got := readFile(t, filepath.Join(wd, "current", "settings.json")); got != "{}" {
		t.Errorf("settings.json = %q", got)
	}
}

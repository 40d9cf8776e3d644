package manager

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamcutter/vendr/internal/domain"
	"github.com/teamcutter/vendr/internal/extractor"
	"github.com/teamcutter/vendr/internal/fetcher"
	"github.com/teamcutter/vendr/internal/gateway"
	"github.com/teamcutter/vendr/internal/installer"
)

type fakeIdentity struct {
	code string
	err  error
}

func (f *fakeIdentity) MachineCode() (string, error) { return f.code, f.err }

type fakeGateway struct {
	called bool
	grant  *domain.Grant
	err    error
}

func (f *fakeGateway) RequestPermission(ctx context.Context, req domain.InstallRequest) (*domain.Grant, error) {
	f.called = true
	return f.grant, f.err
}

type fakeFetcher struct {
	called bool
	path   string
	err    error
}

func (f *fakeFetcher) Fetch(ctx context.Context, downloadURL string, os domain.OSType) (string, error) {
	f.called = true
	return f.path, f.err
}

type fakeInstaller struct {
	result *domain.InstallResult
	err    error
}

func (f *fakeInstaller) Install(archivePath, packageName, libPath string, extract domain.ExtractFunc) (*domain.InstallResult, error) {
	return f.result, f.err
}

type memState struct {
	added map[string]*domain.InstalledPackage
}

func newMemState() *memState {
	return &memState{added: make(map[string]*domain.InstalledPackage)}
}

func (s *memState) IsInstalled(name string) (bool, *domain.InstalledPackage, error) {
	pkg, ok := s.added[name]
	return ok, pkg, nil
}

func (s *memState) Add(pkg *domain.InstalledPackage) error {
	s.added[pkg.Name] = pkg
	return nil
}

func (s *memState) Remove(name string) error {
	delete(s.added, name)
	return nil
}

func (s *memState) ListInstalled() (map[string]*domain.InstalledPackage, error) {
	return s.added, nil
}

func (s *memState) Close() error { return nil }

func testEnv(t *testing.T) *domain.EnvironmentInfo {
	t.Helper()
	return &domain.EnvironmentInfo{
		OS:      domain.OSWindows,
		Extract: extractor.NewZip().Extract,
		LibPath: t.TempDir(),
	}
}

func tempArchive(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vendr-test.zip")
	require.NoError(t, os.WriteFile(path, []byte("archive"), 0644))
	return path
}

func TestInstallEmptyGatewayURL(t *testing.T) {
	gw := &fakeGateway{}
	f := &fakeFetcher{}
	mgr := New(&fakeIdentity{code: "CODE"}, gw, f, &fakeInstaller{}, newMemState())

	_, err := mgr.Install(context.Background(), "", testEnv(t))

	assert.True(t, domain.IsKind(err, domain.KindInputInvalid))
	assert.False(t, gw.called, "no network call may happen on invalid input")
	assert.False(t, f.called)
}

func TestInstallIdentityUnavailable(t *testing.T) {
	gw := &fakeGateway{}
	idErr := domain.E(domain.KindIdentityUnavailable, "no host id")
	mgr := New(&fakeIdentity{err: idErr}, gw, &fakeFetcher{}, &fakeInstaller{}, newMemState())

	_, err := mgr.Install(context.Background(), "https://gw.example", testEnv(t))

	assert.True(t, domain.IsKind(err, domain.KindIdentityUnavailable))
	assert.False(t, gw.called)
}

func TestInstallPermissionDeniedSkipsFetch(t *testing.T) {
	gw := &fakeGateway{err: domain.Denied(domain.ReasonQuotaExceeded, "quota hit", "wait")}
	f := &fakeFetcher{}
	mgr := New(&fakeIdentity{code: "CODE"}, gw, f, &fakeInstaller{}, newMemState())

	_, err := mgr.Install(context.Background(), "https://gw.example", testEnv(t))

	var e *domain.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, domain.KindPermissionDenied, e.Kind)
	assert.Equal(t, domain.ReasonQuotaExceeded, e.Reason)
	assert.False(t, f.called, "fetcher must never run after a denial")
}

func TestInstallRemovesTempArchiveOnSuccess(t *testing.T) {
	archive := tempArchive(t)
	st := newMemState()
	mgr := New(
		&fakeIdentity{code: "CODE"},
		&fakeGateway{grant: &domain.Grant{PackageName: "demoPkg", DownloadURL: "https://x/demoPkg.zip", Version: "1.2.0"}},
		&fakeFetcher{path: archive},
		&fakeInstaller{result: &domain.InstallResult{Package: "demoPkg", Path: "/lib/demoPkg"}},
		st)

	result, err := mgr.Install(context.Background(), "https://gw.example", testEnv(t))
	require.NoError(t, err)

	assert.Equal(t, "1.2.0", result.Version)
	assert.NoFileExists(t, archive, "temp archive must be removed")

	installed, pkg, err := st.IsInstalled("demoPkg")
	require.NoError(t, err)
	require.True(t, installed)
	assert.Equal(t, "1.2.0", pkg.Version)
	assert.Equal(t, "CODE", pkg.MachineCode)
}

func TestInstallRemovesTempArchiveOnInstallerFailure(t *testing.T) {
	archive := tempArchive(t)
	st := newMemState()
	mgr := New(
		&fakeIdentity{code: "CODE"},
		&fakeGateway{grant: &domain.Grant{PackageName: "demoPkg", DownloadURL: "https://x/demoPkg.zip", Version: "1.2.0"}},
		&fakeFetcher{path: archive},
		&fakeInstaller{err: domain.E(domain.KindExtractionFailed, "bad archive")},
		st)

	_, err := mgr.Install(context.Background(), "https://gw.example", testEnv(t))

	assert.True(t, domain.IsKind(err, domain.KindExtractionFailed))
	assert.NoFileExists(t, archive, "temp archive must be removed on failure too")

	installed, _, _ := st.IsInstalled("demoPkg")
	assert.False(t, installed, "failed installs must not be recorded")
}

func TestInstallFetchFailure(t *testing.T) {
	mgr := New(
		&fakeIdentity{code: "CODE"},
		&fakeGateway{grant: &domain.Grant{PackageName: "demoPkg", DownloadURL: "https://x/demoPkg.zip"}},
		&fakeFetcher{err: domain.E(domain.KindDownloadFailed, "no transport worked")},
		&fakeInstaller{},
		newMemState())

	_, err := mgr.Install(context.Background(), "https://gw.example", testEnv(t))
	assert.True(t, domain.IsKind(err, domain.KindDownloadFailed))
}

func TestRemoveNotInstalled(t *testing.T) {
	mgr := New(&fakeIdentity{code: "CODE"}, &fakeGateway{}, &fakeFetcher{}, &fakeInstaller{}, newMemState())

	_, err := mgr.Remove("ghost")
	assert.True(t, domain.IsKind(err, domain.KindInputInvalid))
}

func TestRemoveDeletesTargetAndLedgerEntry(t *testing.T) {
	st := newMemState()
	target := filepath.Join(t.TempDir(), "demoPkg")
	require.NoError(t, os.MkdirAll(target, 0755))
	require.NoError(t, st.Add(&domain.InstalledPackage{Name: "demoPkg", Path: target}))

	mgr := New(&fakeIdentity{code: "CODE"}, &fakeGateway{}, &fakeFetcher{}, &fakeInstaller{}, st)

	pkg, err := mgr.Remove("demoPkg")
	require.NoError(t, err)
	assert.Equal(t, "demoPkg", pkg.Name)
	assert.NoDirExists(t, target)

	installed, _, _ := st.IsInstalled("demoPkg")
	assert.False(t, installed)
}

// End-to-end: real gateway client, real fetcher, real installer, real zip
// extraction; only identity and state are substituted.
func TestInstallEndToEnd(t *testing.T) {
	var archive bytes.Buffer
	zw := zip.NewWriter(&archive)
	w, err := zw.Create("demoPkg/DESCRIPTION")
	require.NoError(t, err)
	_, err = w.Write([]byte("Package: demoPkg\nVersion: 1.2.0\n"))
	require.NoError(t, err)
	w, err = zw.Create("demoPkg/data/blob.bin")
	require.NoError(t, err)
	_, err = w.Write(bytes.Repeat([]byte("x"), 5000))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/authorize", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]string{
				"package_name": "demoPkg",
				"download_url": srv.URL + "/demoPkg.zip",
				"version":      "1.2.0",
			},
		})
	})
	mux.HandleFunc("/demoPkg.zip", func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive.Bytes())
	})

	tmpDir := t.TempDir()
	env := testEnv(t)
	st := newMemState()

	mgr := New(
		&fakeIdentity{code: "MACHINE1"},
		gateway.New(),
		fetcher.NewWithConfigs(tmpDir, fetcher.TransportConfig{}, fetcher.TransportConfig{}, false),
		installer.New(),
		st)

	result, err := mgr.Install(context.Background(), srv.URL+"/authorize", env)
	require.NoError(t, err)

	assert.Equal(t, "demoPkg", result.Package)
	assert.Equal(t, "1.2.0", result.Version)
	assert.Empty(t, result.Warning)
	assert.FileExists(t, filepath.Join(env.LibPath, "demoPkg", "DESCRIPTION"))

	// Temp dir is clean: the archive was removed after install.
	entries, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Reinstalling over the existing target ends in the same state.
	result2, err := mgr.Install(context.Background(), srv.URL+"/authorize", env)
	require.NoError(t, err)
	assert.Equal(t, result.Path, result2.Path)
	assert.FileExists(t, filepath.Join(env.LibPath, "demoPkg", "DESCRIPTION"))
}

func TestInstallEndToEndDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": false, "code": "QUOTA_EXCEEDED"})
	}))
	defer srv.Close()

	tmpDir := t.TempDir()
	mgr := New(
		&fakeIdentity{code: "MACHINE1"},
		gateway.New(),
		fetcher.NewWithConfigs(tmpDir, fetcher.TransportConfig{}, fetcher.TransportConfig{}, false),
		installer.New(),
		newMemState())

	_, err := mgr.Install(context.Background(), srv.URL, testEnv(t))

	var e *domain.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, domain.KindPermissionDenied, e.Kind)
	assert.Equal(t, domain.ReasonQuotaExceeded, e.Reason)

	entries, readErr := os.ReadDir(tmpDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries, "no temp file may be created after a denial")
}

func TestLockTargetSerializes(t *testing.T) {
	mgr := New(&fakeIdentity{}, &fakeGateway{}, &fakeFetcher{}, &fakeInstaller{}, newMemState())

	unlock := mgr.lockTarget("/lib/demoPkg")

	acquired := make(chan struct{})
	go func() {
		u := mgr.lockTarget("/lib/demoPkg")
		u()
		close(acquired)
	}()

	time.Sleep(50 * time.Millisecond)
	select {
	case <-acquired:
		t.Fatal("second caller acquired the target lock while held")
	default:
	}

	unlock()
	<-acquired
}

func TestInstallStateAddFailure(t *testing.T) {
	archive := tempArchive(t)
	mgr := New(
		&fakeIdentity{code: "CODE"},
		&fakeGateway{grant: &domain.Grant{PackageName: "demoPkg", DownloadURL: "https://x/demoPkg.zip"}},
		&fakeFetcher{path: archive},
		&fakeInstaller{result: &domain.InstallResult{Package: "demoPkg"}},
		&failingState{})

	_, err := mgr.Install(context.Background(), "https://gw.example", testEnv(t))
	require.Error(t, err)
	assert.NoFileExists(t, archive)
}

type failingState struct{ memState }

func (s *failingState) Add(pkg *domain.InstalledPackage) error {
	return errors.New("disk full")
}

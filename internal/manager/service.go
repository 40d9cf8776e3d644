package manager

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/teamcutter/vendr/internal/domain"
)

// Manager runs the install pipeline: identify the machine, ask the gateway
// for permission, download the archive, install it, record it in the ledger.
// Strictly sequential; each stage fails fast and aborts the run.
type Manager struct {
	identity  domain.Identity
	gateway   domain.Gateway
	fetcher   domain.Fetcher
	installer domain.Installer
	state     domain.State

	mu      sync.Mutex
	targets map[string]*sync.Mutex
}

func New(
	identity domain.Identity,
	gateway domain.Gateway,
	fetcher domain.Fetcher,
	installer domain.Installer,
	state domain.State,
) *Manager {
	return &Manager{
		identity:  identity,
		gateway:   gateway,
		fetcher:   fetcher,
		installer: installer,
		state:     state,
		targets:   make(map[string]*sync.Mutex),
	}
}

// Install runs the whole pipeline against the given gateway. Reinstalling an
// already-installed package is allowed and ends in the same state as a fresh
// install. The temp archive is removed on every exit path, including
// cancellation.
func (m *Manager) Install(ctx context.Context, baseURL string, env *domain.EnvironmentInfo) (*domain.InstallResult, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, domain.E(domain.KindInputInvalid, "gateway URL is empty").
			WithRemedy("set gateway_url in the config file or pass --gateway")
	}

	machineCode, err := m.identity.MachineCode()
	if err != nil {
		return nil, err
	}

	grant, err := m.gateway.RequestPermission(ctx, domain.InstallRequest{
		BaseURL:     baseURL,
		MachineCode: machineCode,
		OSType:      env.OS,
	})
	if err != nil {
		return nil, err
	}

	// Two installs must not race over the same target directory.
	unlock := m.lockTarget(filepath.Join(env.LibPath, grant.PackageName))
	defer unlock()

	archivePath, err := m.fetcher.Fetch(ctx, grant.DownloadURL, env.OS)
	if err != nil {
		return nil, err
	}
	defer os.Remove(archivePath)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := m.installer.Install(archivePath, grant.PackageName, env.LibPath, env.Extract)
	if err != nil {
		return nil, err
	}
	result.Version = grant.Version

	if err := m.state.Add(&domain.InstalledPackage{
		Name:        grant.PackageName,
		Version:     grant.Version,
		URL:         grant.DownloadURL,
		Path:        result.Path,
		MachineCode: machineCode,
		InstalledAt: time.Now(),
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// Remove deletes an installed package and its ledger entry.
func (m *Manager) Remove(name string) (*domain.InstalledPackage, error) {
	installed, pkg, err := m.state.IsInstalled(name)
	if err != nil {
		return nil, err
	}
	if !installed {
		return nil, domain.E(domain.KindInputInvalid, "package "+name+" is not installed")
	}

	unlock := m.lockTarget(pkg.Path)
	defer unlock()

	if err := os.RemoveAll(pkg.Path); err != nil {
		return nil, domain.Wrap(domain.KindRemovalFailed, "cannot remove "+pkg.Path, err).
			WithRemedy("close programs using the package, restart, and try again")
	}

	if err := m.state.Remove(name); err != nil {
		return nil, err
	}

	return pkg, nil
}

func (m *Manager) ListInstalled() (map[string]*domain.InstalledPackage, error) {
	return m.state.ListInstalled()
}

func (m *Manager) lockTarget(target string) func() {
	m.mu.Lock()
	lock, ok := m.targets[target]
	if !ok {
		lock = &sync.Mutex{}
		m.targets[target] = lock
	}
	m.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

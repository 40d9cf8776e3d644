package domain

import (
	"context"
)

// Identity produces a stable identifier for this machine. The gateway uses it
// to decide whether downloads are authorized.
type Identity interface {
	MachineCode() (string, error)
}

type Gateway interface {
	RequestPermission(ctx context.Context, req InstallRequest) (*Grant, error)
}

// Fetcher downloads the granted archive and returns the temp path. The caller
// owns the returned file and must remove it on every exit path.
type Fetcher interface {
	Fetch(ctx context.Context, downloadURL string, os OSType) (string, error)
}

type Installer interface {
	Install(archivePath, packageName, libPath string, extract ExtractFunc) (*InstallResult, error)
}

type State interface {
	IsInstalled(name string) (bool, *InstalledPackage, error)
	Add(pkg *InstalledPackage) error
	Remove(name string) error
	ListInstalled() (map[string]*InstalledPackage, error)
	Close() error
}

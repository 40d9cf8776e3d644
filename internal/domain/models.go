package domain

import "time"

// OSType is the platform identifier the license gateway understands.
type OSType string

const (
	OSWindows OSType = "WIN"
	OSMac     OSType = "MAC"
)

// MarkerFile must exist at the root of an installed package. Its presence is
// the signal that extraction completed.
const MarkerFile = "DESCRIPTION"

// ExtractFunc unpacks an archive into dst. The variant (zip or tar) is chosen
// once by the environment probe and passed through to the installer.
type ExtractFunc func(src, dst string) error

// InstallRequest is the authorization request sent to the license gateway.
// Constructed once per run and never mutated.
type InstallRequest struct {
	BaseURL     string
	MachineCode string
	OSType      OSType
}

// Grant is what the gateway returns when a download is permitted.
type Grant struct {
	PackageName string
	DownloadURL string
	Version     string
}

// EnvironmentInfo describes the machine the installer is running on.
type EnvironmentInfo struct {
	OS      OSType
	Extract ExtractFunc
	LibPath string
}

// ArchiveExt is the file extension the gateway serves for this platform.
func (e *EnvironmentInfo) ArchiveExt() string {
	if e.OS == OSMac {
		return ".tgz"
	}
	return ".zip"
}

// InstallResult reports a completed install. Warning is set when the
// best-effort load check failed; the install itself still succeeded.
type InstallResult struct {
	Package string
	Version string
	Path    string
	Warning string
}

type InstalledPackage struct {
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	URL         string    `json:"url"`
	Path        string    `json:"path"`
	MachineCode string    `json:"machine_code"`
	InstalledAt time.Time `json:"installed_at"`
}

type Manifest struct {
	Packages map[string]*InstalledPackage `json:"packages"`
}

func NewManifest() *Manifest {
	return &Manifest{Packages: make(map[string]*InstalledPackage)}
}

// Requirement names a package the environment audit expects to find.
type Requirement struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Report is the environment audit output. The install pipeline never
// consumes it.
type Report struct {
	Installed []string `json:"installed"`
	Missing   []string `json:"missing"`
	Outdated  []string `json:"outdated"`
}

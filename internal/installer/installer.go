package installer

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/teamcutter/vendr/internal/domain"
)

// DirInstaller places an extracted package under libPath/packageName.
// After Install returns, the target directory is either fully absent or
// fully populated with a valid package layout; no partially-extracted
// state is left reachable.
type DirInstaller struct {
	loadCheck func(pkgDir string) error
}

func New() *DirInstaller {
	return &DirInstaller{loadCheck: checkLoadable}
}

// NewWithLoadCheck is used by tests to substitute the load probe.
func NewWithLoadCheck(loadCheck func(pkgDir string) error) *DirInstaller {
	return &DirInstaller{loadCheck: loadCheck}
}

func (i *DirInstaller) Install(archivePath, packageName, libPath string, extract domain.ExtractFunc) (*domain.InstallResult, error) {
	target := filepath.Join(libPath, packageName)

	// PreClean: a reinstall replaces the existing target wholesale.
	_, statErr := os.Stat(target)
	switch {
	case statErr == nil:
		if err := os.RemoveAll(target); err != nil {
			return nil, domain.Wrap(domain.KindRemovalFailed, "cannot remove existing install", err).
				WithRemedy("close programs using the package, restart, and try again")
		}
		if _, err := os.Stat(target); err == nil {
			// RemoveAll reported success but the directory is still
			// there, typically a file lock on Windows.
			return nil, domain.E(domain.KindRemovalFailed, "existing install could not be removed").
				WithRemedy("close programs using the package, restart, and try again")
		}
	case !os.IsNotExist(statErr):
		// The target cannot even be inspected; extracting over a
		// possibly-stale install would violate the all-or-nothing
		// guarantee.
		return nil, domain.Wrap(domain.KindRemovalFailed, "cannot inspect existing install", statErr).
			WithRemedy("check permissions on the library path and try again")
	}

	if err := extract(archivePath, libPath); err != nil {
		return nil, domain.Wrap(domain.KindExtractionFailed, "cannot extract package archive", err).
			WithRemedy("the downloaded archive may be corrupt; try the install again")
	}

	if _, err := os.Stat(target); err != nil {
		return nil, domain.E(domain.KindTargetNotCreated,
			fmt.Sprintf("extraction did not create %s", target)).
			WithRemedy("the archive layout is unexpected; contact support")
	}

	marker := filepath.Join(target, domain.MarkerFile)
	if _, err := os.Stat(marker); err != nil {
		return nil, domain.E(domain.KindIncompleteStructure,
			fmt.Sprintf("package is missing its %s file", domain.MarkerFile)).
			WithRemedy("the archive layout is unexpected; contact support")
	}

	result := &domain.InstallResult{Package: packageName, Path: target}

	// Installed and loadable are different guarantees; a load failure is
	// reported as a warning, not a failed install.
	if err := i.loadCheck(target); err != nil {
		result.Warning = fmt.Sprintf("package installed but failed to load: %v", err)
	}

	return result, nil
}

// checkLoadable is the best-effort load probe: the marker file must parse
// and name the package.
func checkLoadable(pkgDir string) error {
	f, err := os.Open(filepath.Join(pkgDir, domain.MarkerFile))
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), "Package:") {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return fmt.Errorf("%s has no Package field", domain.MarkerFile)
}

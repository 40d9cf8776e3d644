package platform

import (
	"fmt"
	"os"
	"runtime"

	"github.com/teamcutter/vendr/internal/domain"
	"github.com/teamcutter/vendr/internal/extractor"
)

// Detect probes the current environment: OS family, extraction strategy and
// the library path installs go into. The first configured library path wins
// and is created if it does not exist yet.
func Detect(libPaths []string) (*domain.EnvironmentInfo, error) {
	return detect(runtime.GOOS, libPaths)
}

func detect(goos string, libPaths []string) (*domain.EnvironmentInfo, error) {
	info := &domain.EnvironmentInfo{}

	switch goos {
	case "windows":
		info.OS = domain.OSWindows
		info.Extract = extractor.NewZip().Extract
	case "darwin":
		info.OS = domain.OSMac
		info.Extract = extractor.NewTar().Extract
	default:
		return nil, domain.E(domain.KindUnsupportedPlatform,
			fmt.Sprintf("unsupported platform: %s", goos)).
			WithRemedy("vendr packages are published for Windows and macOS only")
	}

	if len(libPaths) == 0 || libPaths[0] == "" {
		return nil, domain.E(domain.KindInputInvalid, "no library path configured").
			WithRemedy("set lib_paths in the config file")
	}

	libPath := libPaths[0]
	if err := os.MkdirAll(libPath, 0755); err != nil {
		return nil, domain.Wrap(domain.KindInputInvalid, "library path is not writable", err)
	}
	info.LibPath = libPath

	fmt.Fprintf(os.Stderr, "library path: %s\n", libPath)

	return info, nil
}

package extractor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// securePath joins an archive entry name onto dst and rejects any entry that
// would land outside dst once the path is cleaned.
func securePath(dst, name string) (string, error) {
	target := filepath.Join(dst, name)
	rel, err := filepath.Rel(dst, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid path in archive: %s", name)
	}
	return target, nil
}

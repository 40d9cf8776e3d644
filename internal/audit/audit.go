package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/teamcutter/vendr/internal/domain"
)

// Auditor inspects the library path against the configured required-package
// list and classifies each entry. It only reads; nothing in the install
// pipeline consumes its report.
type Auditor struct {
	state       domain.State
	libPath     string
	maxParallel int
}

func New(state domain.State, libPath string, maxParallel int) *Auditor {
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &Auditor{state: state, libPath: libPath, maxParallel: maxParallel}
}

func (a *Auditor) Run(ctx context.Context, required []domain.Requirement) (*domain.Report, error) {
	report := &domain.Report{
		Installed: []string{},
		Missing:   []string{},
		Outdated:  []string{},
	}

	mu := &sync.Mutex{}
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(min(max(len(required), 1), a.maxParallel))

	for _, req := range required {
		g.Go(func() error {
			status, err := a.classify(req)
			if err != nil {
				return err
			}

			mu.Lock()
			switch status.class {
			case classInstalled:
				report.Installed = append(report.Installed, req.Name)
			case classMissing:
				report.Missing = append(report.Missing, req.Name)
			case classOutdated:
				report.Outdated = append(report.Outdated,
					fmt.Sprintf("%s (installed %s, required %s)", req.Name, status.have, req.Version))
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Strings(report.Installed)
	sort.Strings(report.Missing)
	sort.Strings(report.Outdated)

	return report, nil
}

type class int

const (
	classInstalled class = iota
	classMissing
	classOutdated
)

type status struct {
	class class
	have  string
}

func (a *Auditor) classify(req domain.Requirement) (status, error) {
	marker := filepath.Join(a.libPath, req.Name, domain.MarkerFile)
	if _, err := os.Stat(marker); err != nil {
		return status{class: classMissing}, nil
	}

	installed, pkg, err := a.state.IsInstalled(req.Name)
	if err != nil {
		return status{}, err
	}

	// Present on disk but not in the ledger: treat as installed with an
	// unknown version, which only counts as outdated when a specific
	// version is required.
	have := ""
	if installed {
		have = pkg.Version
	}

	if req.Version != "" && have != req.Version {
		if have == "" {
			have = "unknown"
		}
		return status{class: classOutdated, have: have}, nil
	}

	return status{class: classInstalled, have: have}, nil
}

package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/teamcutter/vendr/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS packages (
    name         TEXT PRIMARY KEY,
    version      TEXT NOT NULL,
    url          TEXT NOT NULL,
    path         TEXT NOT NULL,
    machine_code TEXT NOT NULL DEFAULT '',
    installed_at TEXT NOT NULL
);
`

// SQLiteState is the ledger of completed installs. A row exists only for
// packages whose marker verification succeeded; the audit and list commands
// read from here.
type SQLiteState struct {
	mu           sync.RWMutex
	db           *sql.DB
	manifestPath string
}

func NewSQLite(dbPath, manifestPath string) (*SQLiteState, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteState{db: db, manifestPath: manifestPath}, nil
}

func (s *SQLiteState) IsInstalled(name string) (bool, *domain.InstalledPackage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pkg domain.InstalledPackage
	var installedAt string

	err := s.db.QueryRow(`
		SELECT name, version, url, path, machine_code, installed_at
		FROM packages WHERE name = ?`, name).Scan(
		&pkg.Name, &pkg.Version, &pkg.URL, &pkg.Path, &pkg.MachineCode, &installedAt)
	if err == sql.ErrNoRows {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}

	pkg.InstalledAt, _ = time.Parse(time.RFC3339, installedAt)
	return true, &pkg, nil
}

func (s *SQLiteState) Add(pkg *domain.InstalledPackage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO packages
		(name, version, url, path, machine_code, installed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		pkg.Name, pkg.Version, pkg.URL, pkg.Path, pkg.MachineCode,
		pkg.InstalledAt.Format(time.RFC3339))
	if err != nil {
		return err
	}

	return s.exportJSON()
}

func (s *SQLiteState) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM packages WHERE name = ?", name); err != nil {
		return err
	}

	return s.exportJSON()
}

func (s *SQLiteState) ListInstalled() (map[string]*domain.InstalledPackage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listInstalled()
}

func (s *SQLiteState) listInstalled() (map[string]*domain.InstalledPackage, error) {
	rows, err := s.db.Query(`
		SELECT name, version, url, path, machine_code, installed_at
		FROM packages`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pkgs := make(map[string]*domain.InstalledPackage)
	for rows.Next() {
		var pkg domain.InstalledPackage
		var installedAt string

		if err := rows.Scan(&pkg.Name, &pkg.Version, &pkg.URL, &pkg.Path,
			&pkg.MachineCode, &installedAt); err != nil {
			return nil, err
		}

		pkg.InstalledAt, _ = time.Parse(time.RFC3339, installedAt)
		pkgs[pkg.Name] = &pkg
	}

	return pkgs, rows.Err()
}

// exportJSON mirrors the ledger to a human-readable manifest next to the
// database. Callers hold the write lock.
func (s *SQLiteState) exportJSON() error {
	if s.manifestPath == "" {
		return nil
	}

	pkgs, err := s.listInstalled()
	if err != nil {
		return err
	}

	manifest := domain.Manifest{Packages: pkgs}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.manifestPath), 0755); err != nil {
		return err
	}

	return os.WriteFile(s.manifestPath, data, 0644)
}

func (s *SQLiteState) Close() error {
	return s.db.Close()
}

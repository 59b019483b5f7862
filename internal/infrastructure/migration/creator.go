package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"
	"time"
)

const migrationTemplate = `-- {{.Name}} ({{.Direction}})
-- Created: {{.Timestamp}}

`

// versionWidth matches the zero padding of the existing files
const versionWidth = 6

// MigrationFile describes a created up/down pair
type MigrationFile struct {
	Version  int
	Name     string
	UpPath   string
	DownPath string
}

// CreateMigration writes an empty up/down pair numbered one past the
// highest existing version
func CreateMigration(migrationsDir, name string) (*MigrationFile, error) {
	slug := sanitizeName(name)
	if slug == "" {
		return nil, fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(migrationsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}

	latest, err := LatestVersion(migrationsDir)
	if err != nil {
		return nil, err
	}
	version := latest + 1
	base := fmt.Sprintf("%0*d_%s", versionWidth, version, slug)

	mf := &MigrationFile{
		Version:  version,
		Name:     slug,
		UpPath:   filepath.Join(migrationsDir, base+".up.sql"),
		DownPath: filepath.Join(migrationsDir, base+".down.sql"),
	}
	timestamp := time.Now().Format(time.RFC3339)
	if err := writeMigrationFile(mf.UpPath, slug, "up", timestamp); err != nil {
		return nil, err
	}
	if err := writeMigrationFile(mf.DownPath, slug, "down", timestamp); err != nil {
		_ = os.Remove(mf.UpPath)
		return nil, err
	}
	return mf, nil
}

// LatestVersion returns the highest numeric prefix among *.up.sql files
func LatestVersion(migrationsDir string) (int, error) {
	entries, err := os.ReadDir(migrationsDir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	latest := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		prefix, _, ok := strings.Cut(name, "_")
		if !ok {
			continue
		}
		if v, err := strconv.Atoi(prefix); err == nil && v > latest {
			latest = v
		}
	}
	return latest, nil
}

func writeMigrationFile(path, name, direction, timestamp string) error {
	tmpl := template.Must(template.New("migration").Parse(migrationTemplate))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	return tmpl.Execute(f, map[string]string{"Name": name, "Direction": direction, "Timestamp": timestamp})
}

// sanitizeName lowercases name and joins word runs with single underscores
func sanitizeName(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(name) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			pendingSep = true
		}
	}
	return b.String()
}

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

const deltaTemplate = `-- {{.Name}}
-- Created: {{.Timestamp}}
{{- if .Description}}
-- {{.Description}}
{{- end}}

-- Statements must be additive: ADD COLUMN, CREATE ... IF NOT EXISTS.

`

// DeltaFile describes a newly created schema delta
type DeltaFile struct {
	Version     uint
	Name        string
	Description string
	Timestamp   string
	Path        string
}

// CreateDelta writes an empty delta numbered one past the highest existing
// version in dir. Deltas are forward-only; there is no down file.
func CreateDelta(dir, name, description string) (*DeltaFile, error) {
	safe := sanitizeName(name)
	if safe == "" {
		return nil, fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}

	deltas, err := ListDeltas(dir)
	if err != nil {
		return nil, err
	}
	var next uint = 1
	if n := len(deltas); n > 0 {
		next = deltas[n-1].Version + 1
	}

	df := &DeltaFile{
		Version:     next,
		Name:        name,
		Description: description,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Path:        filepath.Join(dir, fmt.Sprintf("%04d_%s.up.sql", next, safe)),
	}

	tmpl, err := template.New("delta").Parse(deltaTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	f, err := os.OpenFile(df.Path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", df.Path, err)
	}
	defer f.Close()

	if err := tmpl.Execute(f, df); err != nil {
		return nil, fmt.Errorf("failed to execute template: %w", err)
	}
	return df, nil
}

// ListDeltas returns the deltas in dir ordered by version. A missing
// directory yields an empty list.
func ListDeltas(dir string) ([]DeltaFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var deltas []DeltaFile
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		prefix, rest, ok := strings.Cut(strings.TrimSuffix(name, ".up.sql"), "_")
		if !ok {
			continue
		}
		version, err := strconv.ParseUint(prefix, 10, 32)
		if err != nil {
			continue
		}
		deltas = append(deltas, DeltaFile{
			Version: uint(version),
			Name:    rest,
			Path:    filepath.Join(dir, name),
		})
	}
	// os.ReadDir sorts by file name and versions are zero padded
	return deltas, nil
}

// sanitizeName converts a migration name to a safe file name format
func sanitizeName(name string) string {
	result := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
			result = append(result, c)
		case c >= 'A' && c <= 'Z':
			result = append(result, c+'a'-'A')
		case c >= '0' && c <= '9':
			result = append(result, c)
		case c == ' ' || c == '-' || c == '_':
			if len(result) > 0 && result[len(result)-1] != '_' {
				result = append(result, '_')
			}
		}
	}
	if len(result) > 0 && result[len(result)-1] == '_' {
		result = result[:len(result)-1]
	}
	return string(result)
}

package files

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	"pangandash/pkg/contracts/domain"
)

// FileInfo represents information about a discovered file
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// Discovery provides file discovery operations
type Discovery struct {
	extensions map[string]struct{}
}

// NewDiscovery creates a discovery that only considers the given extensions.
// Extensions are compared case-insensitively and include the leading dot.
func NewDiscovery(extensions []string) *Discovery {
	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(e)] = struct{}{}
	}
	return &Discovery{extensions: exts}
}

// FindDataFiles lists the regular files in dir with an accepted extension,
// oldest first.
func (d *Discovery) FindDataFiles(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if _, ok := d.extensions[strings.ToLower(filepath.Ext(name))]; !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Path:    filepath.Join(dir, name),
			Name:    name,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].ModTime.Before(files[j].ModTime)
	})
	return files, nil
}

// FindTables maps each table kind to the newest matching file in dir.
// Kinds without a candidate are absent from the result.
func (d *Discovery) FindTables(dir string) (map[domain.TableKind]FileInfo, error) {
	files, err := d.FindDataFiles(dir)
	if err != nil {
		return nil, err
	}

	found := make(map[domain.TableKind]FileInfo)
	for _, kind := range domain.AllTableKinds() {
		var candidates []FileInfo
		for _, f := range files {
			if MatchesKind(f.Name, kind) {
				candidates = append(candidates, f)
			}
		}
		if latest, ok := GetLatestFile(candidates); ok {
			found[kind] = latest
		}
	}
	return found, nil
}

// MatchesKind reports whether a file name belongs to the kind. The slug
// must be followed by the extension or a non-alphanumeric separator, so
// "kemandirian-rt.csv" and "Kemandirian-RT 2024.csv" match while
// "kemandirian-rtx.csv" does not.
func MatchesKind(name string, kind domain.TableKind) bool {
	base := strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
	slug := string(kind)
	if !strings.HasPrefix(base, slug) {
		return false
	}
	rest := base[len(slug):]
	if rest == "" {
		return true
	}
	r := rune(rest[0])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// GetLatestFile returns the most recently modified file from a list
func GetLatestFile(files []FileInfo) (FileInfo, bool) {
	if len(files) == 0 {
		return FileInfo{}, false
	}

	latest := files[0]
	for _, file := range files[1:] {
		if file.ModTime.After(latest.ModTime) {
			latest = file
		}
	}

	return latest, true
}

package files

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pangandash/pkg/contracts/domain"
)

var testExtensions = []string{".csv", ".xlsx"}

// writeFiles creates empty files in dir, each one minute newer than the last.
func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	base := time.Now().Add(-time.Hour)
	for i, name := range names {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		mod := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(path, mod, mod))
	}
}

func TestFindDataFiles(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "b.XLSX", "a.csv", "notes.pdf", "readme")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.csv"), 0o755))

	files, err := NewDiscovery(testExtensions).FindDataFiles(dir)
	require.NoError(t, err)

	require.Len(t, files, 2)
	assert.Equal(t, "b.XLSX", files[0].Name, "oldest first")
	assert.Equal(t, "a.csv", files[1].Name)
	assert.Equal(t, filepath.Join(dir, "a.csv"), files[1].Path)
	assert.EqualValues(t, 1, files[1].Size)
}

func TestFindDataFilesMissingDirectory(t *testing.T) {
	_, err := NewDiscovery(testExtensions).FindDataFiles(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read directory")
}

func TestFindTables(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir,
		"rumah-tangga_2023.csv",
		"kemandirian-rt.xlsx",
		"rumah-tangga_2024.xlsx",
		"kemandirian-rtx.csv",
		"kemandirian-dusun.pdf",
	)

	found, err := NewDiscovery(testExtensions).FindTables(dir)
	require.NoError(t, err)

	assert.Len(t, found, 2)
	assert.Equal(t, "rumah-tangga_2024.xlsx", found[domain.KindHousehold].Name, "newest file wins")
	assert.Equal(t, "kemandirian-rt.xlsx", found[domain.KindHouseholdSufficiency].Name)
	_, ok := found[domain.KindHamletSufficiency]
	assert.False(t, ok)
}

func TestMatchesKind(t *testing.T) {
	tests := []struct {
		name string
		file string
		kind domain.TableKind
		want bool
	}{
		{name: "exact", file: "rumah-tangga.csv", kind: domain.KindHousehold, want: true},
		{name: "upper case", file: "Kemandirian-RT 2024.csv", kind: domain.KindHouseholdSufficiency, want: true},
		{name: "underscore suffix", file: "kemandirian-dusun_v2.xlsx", kind: domain.KindHamletSufficiency, want: true},
		{name: "longer word", file: "kemandirian-rtx.csv", kind: domain.KindHouseholdSufficiency},
		{name: "other kind", file: "kemandirian-dusun.csv", kind: domain.KindHouseholdSufficiency},
		{name: "slug inside name", file: "data-rumah-tangga.csv", kind: domain.KindHousehold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchesKind(tt.file, tt.kind))
		})
	}
}

func TestGetLatestFile(t *testing.T) {
	_, ok := GetLatestFile(nil)
	assert.False(t, ok)

	now := time.Now()
	latest, ok := GetLatestFile([]FileInfo{
		{Name: "old", ModTime: now.Add(-time.Hour)},
		{Name: "new", ModTime: now},
		{Name: "mid", ModTime: now.Add(-time.Minute)},
	})
	require.True(t, ok)
	assert.Equal(t, "new", latest.Name)
}

package validation

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	apierrors "pangandash/internal/errors"
)

// FileValidator checks uploads and local input files before they reach the loader
type FileValidator struct {
	logger     *slog.Logger
	extensions []string
	maxSize    int64
}

// NewFileValidator creates a new file validator. A maxSize of zero disables
// the size check; an empty extension list accepts any extension.
func NewFileValidator(logger *slog.Logger, extensions []string, maxSize int64) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	normalized := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		normalized = append(normalized, strings.ToLower(ext))
	}
	return &FileValidator{
		logger:     logger,
		extensions: normalized,
		maxSize:    maxSize,
	}
}

// ValidateUpload checks the name and size of an uploaded file. Files without
// an extension pass so the loader can fall back to the declared MIME type.
func (v *FileValidator) ValidateUpload(name string, size int64) error {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))

	if strings.HasPrefix(base, "~$") {
		v.logger.Warn("Rejected temporary Excel file", slog.String("file", base))
		return invalidUpload(base, "temporary Excel lock files cannot be uploaded")
	}

	if size == 0 {
		return invalidUpload(base, "file is empty")
	}

	if v.maxSize > 0 && size > v.maxSize {
		v.logger.Warn("Rejected oversized upload",
			slog.String("file", base),
			slog.Int64("size", size),
			slog.Int64("max_size", v.maxSize))
		return apierrors.NewWithDetails(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
			fmt.Sprintf("file exceeds the maximum size of %d bytes", v.maxSize),
			map[string]interface{}{"file": base, "size": size, "max_size": v.maxSize})
	}

	ext := strings.ToLower(filepath.Ext(base))
	if ext != "" && len(v.extensions) > 0 && !slices.Contains(v.extensions, ext) {
		return invalidUpload(base, fmt.Sprintf("unsupported file extension %q (allowed: %s)",
			ext, strings.Join(v.extensions, ", ")))
	}

	return nil
}

// ValidateFile checks if a local file exists, is readable, and passes the
// upload rules.
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("File does not exist",
			slog.String("file", path))
		return fmt.Errorf("file %s does not exist", path)
	}
	if err != nil {
		return fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", path)
	}

	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("File is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("file %s is not readable: %w", path, err)
	}
	file.Close()

	if err := v.ValidateUpload(filepath.Base(path), info.Size()); err != nil {
		return err
	}

	v.logger.Debug("File validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateOutputDirectory ensures output directory exists or can be created
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	testFile := filepath.Join(dir, ".write_test")
	file, err := os.Create(testFile)
	if err != nil {
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	file.Close()
	os.Remove(testFile)

	return nil
}

func invalidUpload(file, reason string) error {
	return apierrors.NewWithDetails(http.StatusBadRequest, "INVALID_UPLOAD", reason,
		map[string]string{"file": file})
}

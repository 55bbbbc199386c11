package blocker

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Lattixe/MonkMode-windows/internal/interfaces"
)

// ErrPrivilegeDenied means the hosts file could not be written without elevation.
var ErrPrivilegeDenied = errors.New("insufficient privileges to modify the hosts file")

// BackupSuffix is appended to the hosts path for the pre-session backup.
const BackupSuffix = ".monkmode.bak"

// DefaultHostsPath returns the hosts file location under %SystemRoot%.
func DefaultHostsPath() string {
	root := os.Getenv("SystemRoot")
	if root == "" {
		root = `C:\Windows`
	}

	return filepath.Join(root, "System32", "drivers", "etc", "hosts")
}

// HostsFile reads and writes a hosts file on disk.
type HostsFile struct {
	path        string
	fallbackDir string

	rename func(oldpath, newpath string) error
}

var _ interfaces.HostsFile = (*HostsFile)(nil)

// NewHostsFile returns a shim over the hosts file at path. Backups go next to
// it, or into fallbackDir when that directory is not writable.
func NewHostsFile(path, fallbackDir string) *HostsFile {
	return &HostsFile{path: path, fallbackDir: fallbackDir, rename: os.Rename}
}

func (h *HostsFile) Path() string { return h.path }

// Read returns the file contents. A missing file reads as empty.
func (h *HostsFile) Read() (string, error) {
	data, err := os.ReadFile(h.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}

	if err != nil {
		return "", wrapFileError("read hosts file", err)
	}

	return string(data), nil
}

// Write replaces the file through a temp file and rename so a crash never
// leaves it half written. When the directory refuses the temp file or the
// rename is denied (the file held open by a scanner), it writes in place.
func (h *HostsFile) Write(content string) error {
	err := h.replace([]byte(content))
	if err == nil {
		return nil
	}

	if !errors.Is(err, fs.ErrPermission) {
		return wrapFileError("write hosts file", err)
	}

	if err := os.WriteFile(h.path, []byte(content), 0o644); err != nil {
		return wrapFileError("write hosts file", err)
	}

	return nil
}

func (h *HostsFile) replace(data []byte) (err error) {
	mode := fs.FileMode(0o644)
	if info, statErr := os.Stat(h.path); statErr == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(h.path), ".hosts-*.tmp")
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}

	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}

	if err = tmp.Close(); err != nil {
		return err
	}

	if err = os.Chmod(tmp.Name(), mode); err != nil {
		return err
	}

	return h.rename(tmp.Name(), h.path)
}

// Backup saves content as the pre-session copy of the hosts file.
func (h *HostsFile) Backup(content string) error {
	primary := h.path + BackupSuffix

	err := os.WriteFile(primary, []byte(content), 0o644)
	if err == nil || h.fallbackDir == "" {
		return err
	}

	if mkErr := os.MkdirAll(h.fallbackDir, 0o755); mkErr != nil {
		return fmt.Errorf("failed to create backup directory: %w", mkErr)
	}

	fallback := filepath.Join(h.fallbackDir, "hosts"+BackupSuffix)
	if err := os.WriteFile(fallback, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write hosts backup: %w", err)
	}

	return nil
}

func wrapFileError(op string, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%s: %w: %w", op, ErrPrivilegeDenied, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}

// Package process lists and terminates processes using gopsutil.
package process

import (
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/Lattixe/MonkMode-windows/internal/interfaces"
)

// NormalizeName lowercases a process or executable name and strips a trailing
// ".exe", so "Discord.exe", "discord" and "DISCORD.EXE" all compare equal.
func NormalizeName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	return strings.TrimSuffix(n, ".exe")
}

// NormalizeNames normalizes and de-duplicates names, dropping empty entries.
func NormalizeNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))

	for _, name := range names {
		n := NormalizeName(name)
		if n == "" {
			continue
		}

		if _, dup := seen[n]; dup {
			continue
		}

		seen[n] = struct{}{}
		out = append(out, n)
	}

	return out
}

// Manager implements interfaces.ProcessManager using gopsutil.
type Manager struct{}

// NewManager creates a new process manager.
func NewManager() *Manager {
	return &Manager{}
}

// Processes returns every process whose name could be read.
func (m *Manager) Processes() ([]interfaces.ProcessInfo, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	infos := make([]interfaces.ProcessInfo, 0, len(procs))
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue // Process may have exited
		}

		infos = append(infos, interfaces.ProcessInfo{Pid: uint32(p.Pid), Name: name})
	}

	return infos, nil
}

// ProcessName returns the executable name of pid.
func (m *Manager) ProcessName(pid uint32) (string, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return "", err
	}

	return p.Name()
}

// Kill terminates a process by PID.
func (m *Manager) Kill(pid uint32) error {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return err
	}

	if err := p.Kill(); err != nil {
		return fmt.Errorf("failed to kill process %d: %w", pid, err)
	}

	return nil
}

// Ensure Manager implements interfaces.ProcessManager.
var _ interfaces.ProcessManager = (*Manager)(nil)

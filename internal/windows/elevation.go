//go:build windows

package windows

import (
	"fmt"
	"os"
	"strings"
	"syscall"
	"unsafe"

	xwin "golang.org/x/sys/windows"
)

// IsElevated returns whether the current process is running with administrator privileges
func IsElevated() bool {
	return xwin.GetCurrentProcessToken().IsElevated()
}

// RelaunchAsAdmin starts this executable again through the UAC prompt with the
// same arguments.
func RelaunchAsAdmin() error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}

	// Check if running via 'go run' (exe will be in temp dir)
	if strings.Contains(exe, "go-build") {
		return fmt.Errorf("cannot relaunch when run via 'go run', please build the executable first with: go build -o monkmode.exe")
	}

	args := make([]string, 0, len(os.Args)-1)
	for _, a := range os.Args[1:] {
		args = append(args, xwin.EscapeArg(a))
	}

	cwd, _ := os.Getwd()

	return ShellExecute(0, "runas", exe, strings.Join(args, " "), cwd, SW_SHOWNORMAL)
}

// ShellExecute executes a file using the Windows shell
func ShellExecute(hwnd uintptr, verb, file, args, cwd string, showCmd int) error {
	var verbPtr, filePtr, argsPtr, cwdPtr *uint16
	var err error

	if verb != "" {
		verbPtr, err = syscall.UTF16PtrFromString(verb)
		if err != nil {
			return err
		}
	}

	filePtr, err = syscall.UTF16PtrFromString(file)
	if err != nil {
		return err
	}

	if args != "" {
		argsPtr, err = syscall.UTF16PtrFromString(args)
		if err != nil {
			return err
		}
	}

	if cwd != "" {
		cwdPtr, err = syscall.UTF16PtrFromString(cwd)
		if err != nil {
			return err
		}
	}

	ret, _, _ := procShellExecute.Call(
		hwnd,
		uintptr(unsafe.Pointer(verbPtr)),
		uintptr(unsafe.Pointer(filePtr)),
		uintptr(unsafe.Pointer(argsPtr)),
		uintptr(unsafe.Pointer(cwdPtr)),
		uintptr(showCmd),
	)

	// ShellExecute returns a value > 32 on success
	if ret <= 32 {
		return fmt.Errorf("shell execute failed with error code: %d", ret)
	}

	return nil
}

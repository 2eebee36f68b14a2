//go:build windows

package bytesource

import (
	"os"

	"golang.org/x/sys/windows"
)

// openReadOnly opens path for reading without taking an exclusive lock,
// sharing both read and delete access with other handles - mirroring the
// teacher's diskspace_windows.go pattern of a platform-specific syscall
// helper behind a plain Go signature.
func openReadOnly(path string) (*os.File, error) {
	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, err
	}

	handle, err := windows.CreateFile(
		pathPtr,
		windows.GENERIC_READ,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_DELETE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_ATTRIBUTE_NORMAL,
		0,
	)
	if err != nil {
		return nil, err
	}

	return os.NewFile(uintptr(handle), path), nil
}

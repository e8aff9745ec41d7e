//go:build windows

package intake

import (
	"errors"
	"syscall"
)

// errorSharingViolation is ERROR_SHARING_VIOLATION: the file is open in
// another process without share access, e.g. a spreadsheet still saving.
const errorSharingViolation syscall.Errno = 32

func isSharingViolation(err error) bool {
	return errors.Is(err, errorSharingViolation)
}

//go:build !windows

package intake

func isSharingViolation(error) bool { return false }

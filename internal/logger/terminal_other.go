//go:build !linux && !darwin

package logger

// isTerminal always reports false on platforms without termios; color
// output stays off.
func isTerminal(uintptr) bool {
	return false
}

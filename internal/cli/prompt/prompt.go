// Package prompt wraps promptui for the confirmation prompts the CLI needs
// before destructive operations like applying migrations or overwriting the
// local database.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the user aborts a prompt with Ctrl+C.
var ErrAborted = errors.New("aborted")

// IsAborted reports whether err means the user backed out of a prompt.
func IsAborted(err error) bool {
	return errors.Is(err, promptui.ErrInterrupt) ||
		errors.Is(err, promptui.ErrAbort) ||
		errors.Is(err, ErrAborted)
}

// Confirm asks a yes/no question. Ctrl+C maps to ErrAborted; answering "n"
// is a plain false, not an error.
func Confirm(label string, defaultYes bool) (bool, error) {
	hint := "y/N"
	if defaultYes {
		hint = "Y/n"
	}

	p := promptui.Prompt{
		Label:     fmt.Sprintf("%s [%s]", label, hint),
		IsConfirm: true,
	}

	answer, err := p.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) {
			return false, ErrAborted
		}
		// promptui reports a "n" answer as ErrAbort.
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		if answer == "" {
			return defaultYes, nil
		}
		return false, err
	}

	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}

// ConfirmDanger requires the user to type confirmWord before a destructive
// operation proceeds.
func ConfirmDanger(label, confirmWord string) (bool, error) {
	p := promptui.Prompt{
		Label: fmt.Sprintf("%s (type '%s' to confirm)", label, confirmWord),
		Validate: func(input string) error {
			if input != confirmWord {
				return fmt.Errorf("type '%s' to confirm", confirmWord)
			}
			return nil
		},
	}

	answer, err := p.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) {
			return false, ErrAborted
		}
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, err
	}
	return answer == confirmWord, nil
}

// ConfirmWithForce skips the prompt when force is set, so --force flags stay
// scriptable.
func ConfirmWithForce(label string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	return Confirm(label, false)
}

package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the user interrupts a prompt (Ctrl-C, Ctrl-D).
var ErrAborted = errors.New("prompt aborted")

// Select asks the user to pick one of choices and returns it. Typing filters
// the list by prefix.
func Select(label string, choices ...string) (string, error) {
	if len(choices) == 0 {
		return "", nil
	}

	sel := &promptui.Select{
		Label:    label,
		Items:    choices,
		Searcher: prefixSearcher(choices),
	}

	_, value, err := sel.Run()
	if err != nil {
		return "", promptError(err)
	}

	return value, nil
}

func prefixSearcher(choices []string) func(string, int) bool {
	return func(input string, index int) bool {
		if input == "" {
			return true
		}

		return strings.HasPrefix(strings.ToLower(choices[index]), strings.ToLower(input))
	}
}

func promptError(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return fmt.Errorf("%w: %w", ErrAborted, err)
	}

	return err
}

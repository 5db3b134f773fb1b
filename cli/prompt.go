package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"
)

var errNegative = errors.New("must not be negative")

// PromptConfirm asks a yes/no question. Declining is not an error.
func PromptConfirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
		Stdin:     os.Stdin,
		Stdout:    os.Stdout,
	}

	_, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}

		return false, promptError(err)
	}

	return true, nil
}

// PromptInt asks for a non-negative integer.
func PromptInt(label string) (int, error) {
	prompt := promptui.Prompt{
		Label:    label,
		Validate: validateNonNegative,
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
	}

	txt, err := prompt.Run()
	if err != nil {
		return 0, promptError(err)
	}

	return parseNonNegative(txt)
}

func validateNonNegative(s string) error {
	_, err := parseNonNegative(s)

	return err
}

func parseNonNegative(s string) (int, error) {
	val, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %w", err)
	}

	if val < 0 {
		return 0, fmt.Errorf("invalid integer %d: %w", val, errNegative)
	}

	return int(val), nil
}

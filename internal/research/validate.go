package research

import (
	"fmt"
	"strings"

	"github.com/eternisai/agentic-research/internal/errors"
)

// ValidatePrompt rejects prompts whose trimmed length is below minLength.
// The raw prompt is passed on unchanged when valid.
func ValidatePrompt(prompt string, minLength int) error {
	if n := len([]rune(strings.TrimSpace(prompt))); n < minLength {
		return &errors.InvalidInputError{Reason: fmt.Sprintf("prompt has %d characters, at least %d required", n, minLength)}
	}
	return nil
}

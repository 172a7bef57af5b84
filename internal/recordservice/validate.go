package recordservice

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/softmill/filedex/internal/apperr"
)

// illegalNameChars are rejected in file names on every supported OS.
const illegalNameChars = `<>:"/\|?*`

// ValidateFileName enforces the naming rules applied before any disk or
// registry mutation: non-empty, no OS-illegal characters, and an extension
// separator so the file type is explicit.
func ValidateFileName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: file name cannot be empty", apperr.ErrValidation)
	}
	err := validation.Validate(name,
		validation.By(noIllegalChars),
		validation.By(hasExtension),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	return nil
}

func noIllegalChars(value interface{}) error {
	name, _ := value.(string)
	var illegal []rune
	for _, c := range name {
		if strings.ContainsRune(illegalNameChars, c) {
			illegal = append(illegal, c)
		}
	}
	if len(illegal) > 0 {
		return fmt.Errorf("file name contains illegal characters: %s", string(illegal))
	}
	return nil
}

func hasExtension(value interface{}) error {
	name, _ := value.(string)
	if !strings.Contains(name, ".") {
		return errors.New("file name must include an extension (e.g. notes.txt)")
	}
	return nil
}

package identity

import (
	"regexp"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var hexColorRe = regexp.MustCompile(`^#([0-9A-Fa-f]{6}|[0-9A-Fa-f]{3})$`)

// validate backs the struct-level checks in joinParams. The free
// functions below back the finer-grained rules individually (needed
// because "is this a valid color" has to be callable outside of a
// tagged struct, e.g. when generating a random fallback color).
var validate = validator.New()

func init() {
	_ = validate.RegisterValidation("snakecolor", func(fl validator.FieldLevel) bool {
		return isValidColor(fl.Field().String())
	})
}

// joinParams is the struct-level front door Service.Join runs before
// its own finer-grained checks.
type joinParams struct {
	Name  string `validate:"required,max=20"`
	Color string `validate:"omitempty,snakecolor"`
}

// isValidPlayerName enforces 1..20 visible (non-control) characters.
func isValidPlayerName(name string) bool {
	if len(name) == 0 || len([]rune(name)) > 20 {
		return false
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// isValidColor enforces #RGB or #RRGGBB hex.
func isValidColor(color string) bool {
	return hexColorRe.MatchString(color)
}

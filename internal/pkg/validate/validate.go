package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/qr-nexus/internal/domain"
)

// v is the package-level singleton validator. It is initialised once at
// package load time. Any custom type registrations must be made during init()
// before the first call to Struct.
var v = validator.New()

var nexusIDPattern = regexp.MustCompile(`^nx-[a-z0-9]{6}$`)

func init() {
	_ = v.RegisterValidation("nexus_id", func(fl validator.FieldLevel) bool {
		return NexusID(fl.Field().String())
	})
	_ = v.RegisterValidation("service_kind", func(fl validator.FieldLevel) bool {
		_, ok := domain.LookupServiceKind(fl.Field().String())
		return ok
	})
}

// Struct validates the given struct using its validate tags.
// Returns a human-readable error string or nil.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		var msgs []string
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}

// NexusID reports whether s is a well-formed public identity handle (nx-xxxxxx).
func NexusID(s string) bool {
	return nexusIDPattern.MatchString(s)
}

package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for complex rules
// that cannot be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	// Run struct tag validation
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	// Custom validation rules that can't be expressed in tags
	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	// Validate at least one grid exists
	if len(cfg.Grids) == 0 {
		return fmt.Errorf("grids: at least one grid namespace must be configured")
	}

	// Validate grid namespaces are unique
	namespaces := make(map[string]bool)
	for i, g := range cfg.Grids {
		if namespaces[g.Namespace] {
			return fmt.Errorf("grids[%d]: duplicate namespace %q", i, g.Namespace)
		}
		namespaces[g.Namespace] = true
	}

	// Validate credentials come as a pair
	hasUser := cfg.Session.Username != ""
	hasPass := cfg.Session.Password != ""
	if hasUser != hasPass {
		return fmt.Errorf("session: username and password must both be set or both be empty")
	}

	// Validate node entries are not blank
	for i, node := range cfg.Session.Nodes {
		if strings.TrimSpace(node) == "" {
			return fmt.Errorf("session.nodes[%d]: node address cannot be blank", i)
		}
	}

	// Validate GC namespaces refer to configured grids
	for i, ns := range cfg.GC.Namespaces {
		if !namespaces[ns] {
			return fmt.Errorf("gc.namespaces[%d]: namespace %q is not a configured grid", i, ns)
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		// Return the first validation error with context
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}

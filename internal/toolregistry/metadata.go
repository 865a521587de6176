package toolregistry

import (
	"fmt"
	"strings"

	"hyperfocus/internal/tools/ports"
)

// ValidateMetadata enforces the registration-time contract: descriptions
// carry usage guidance, every schema field is documented, auth is mandatory
// and scoped, and classification fields are filled in. Violations are
// configuration errors and fatal at startup.
func ValidateMetadata(meta ports.ToolMetadata) error {
	name := strings.TrimSpace(meta.Name)
	if name == "" {
		return fmt.Errorf("tool metadata: name is required")
	}

	desc := meta.Description
	if strings.TrimSpace(desc) == "" {
		return fmt.Errorf("tool %s: description is required", name)
	}
	if !strings.Contains(desc, "Use this") {
		return fmt.Errorf("tool %s: description must include usage guidance (\"Use this ...\")", name)
	}
	if !strings.Contains(desc, "Example") {
		return fmt.Errorf("tool %s: description must include at least one example", name)
	}

	if len(meta.InputSchema.Properties) == 0 {
		return fmt.Errorf("tool %s: input schema must declare at least one property", name)
	}
	for field, prop := range meta.InputSchema.Properties {
		if strings.TrimSpace(prop.Description) == "" {
			return fmt.Errorf("tool %s: schema field %s is missing a description", name, field)
		}
	}
	for _, req := range meta.InputSchema.Required {
		if _, ok := meta.InputSchema.Properties[req]; !ok {
			return fmt.Errorf("tool %s: required field %s is not declared in properties", name, req)
		}
	}

	if !meta.Auth.RequiresAuth {
		return fmt.Errorf("tool %s: all tools must require authentication", name)
	}
	if meta.Auth.AllowAnonymous {
		return fmt.Errorf("tool %s: anonymous access is not allowed", name)
	}
	if len(meta.Auth.Scopes) == 0 {
		return fmt.Errorf("tool %s: at least one authorization scope is required", name)
	}

	if strings.TrimSpace(meta.Category) == "" {
		return fmt.Errorf("tool %s: category is required", name)
	}
	if len(meta.Tags) == 0 {
		return fmt.Errorf("tool %s: at least one tag is required", name)
	}
	if !meta.RateLimitTier.Valid() {
		return fmt.Errorf("tool %s: rate limit tier must be low, medium or high, got %q", name, meta.RateLimitTier)
	}
	if strings.TrimSpace(meta.Output) == "" {
		return fmt.Errorf("tool %s: output contract is required", name)
	}

	return nil
}

package provider

import (
	"fmt"
	"strings"
)

// Credential resolves the API key named by desc through cfg. A required key
// that is absent yields an *AuthError wrapping ErrMissingCredential.
func Credential(cfg ConfigGetter, desc Descriptor) (string, error) {
	if desc.CredentialKey == "" {
		return "", nil
	}
	var key string
	if cfg != nil {
		if v, ok := cfg.GetConfig(desc.CredentialKey, "").(string); ok {
			key = strings.TrimSpace(v)
		}
	}
	if key == "" && !desc.CredentialOptional {
		return "", &AuthError{Source: desc.Source, Err: fmt.Errorf("%w: %s", ErrMissingCredential, desc.CredentialKey)}
	}
	return key, nil
}

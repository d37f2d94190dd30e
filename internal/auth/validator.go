package auth

import (
	"strings"

	"github.com/bioarchive/studysearch/internal/common"
)

// TokenValidator resolves a session or bearer token into a principal.
// Returns nil for an unrecognised token (the request proceeds anonymous).
type TokenValidator interface {
	Validate(token string) *Principal
}

// StaticValidator is the built-in validator: the partial-update shared
// secret grants a superuser principal, configured super-user logins are
// recognised by "login:<name>" development tokens, and any other token is
// treated as the login of a regular authenticated user. Production
// deployments replace this with the session-service validator.
type StaticValidator struct {
	partialUpdateToken string
	superUsers         map[string]bool
}

// NewStaticValidator builds the validator from configuration
func NewStaticValidator(cfg *common.Config) *StaticValidator {
	supers := make(map[string]bool, len(cfg.Auth.SuperUsers))
	for _, login := range cfg.Auth.SuperUsers {
		supers[strings.ToLower(login)] = true
	}
	return &StaticValidator{
		partialUpdateToken: cfg.Auth.PartialUpdateToken,
		superUsers:         supers,
	}
}

// Validate implements TokenValidator
func (v *StaticValidator) Validate(token string) *Principal {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	if v.partialUpdateToken != "" && token == v.partialUpdateToken {
		return &Principal{Login: "system", SuperUser: true}
	}
	login := strings.ToLower(strings.TrimPrefix(token, "login:"))
	if login == "" {
		return nil
	}
	return &Principal{Login: login, SuperUser: v.superUsers[login]}
}

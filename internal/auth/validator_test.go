package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioarchive/studysearch/internal/common"
)

func newValidator() *StaticValidator {
	cfg := common.DefaultConfig()
	cfg.Auth.PartialUpdateToken = "sekrit"
	cfg.Auth.SuperUsers = []string{"Admin"}
	return NewStaticValidator(cfg)
}

func TestValidatePartialUpdateToken(t *testing.T) {
	v := newValidator()

	p := v.Validate("sekrit")
	require.NotNil(t, p)
	assert.True(t, p.SuperUser)
}

func TestValidateRegularUser(t *testing.T) {
	v := newValidator()

	p := v.Validate("login:frank")
	require.NotNil(t, p)
	assert.Equal(t, "frank", p.Login)
	assert.False(t, p.SuperUser)
}

func TestValidateConfiguredSuperUser(t *testing.T) {
	v := newValidator()

	p := v.Validate("login:admin")
	require.NotNil(t, p)
	assert.True(t, p.SuperUser)
}

func TestValidateEmptyToken(t *testing.T) {
	v := newValidator()
	assert.Nil(t, v.Validate(""))
	assert.Nil(t, v.Validate("   "))
}

func TestPrincipalContextRoundTrip(t *testing.T) {
	p := &Principal{Login: "frank"}
	ctx := WithPrincipal(t.Context(), p)
	assert.Same(t, p, FromContext(ctx))
	assert.Nil(t, FromContext(t.Context()))
}

package account_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmeonline/enrollments/core"
	"github.com/cmeonline/enrollments/core/account"
	"github.com/cmeonline/enrollments/tests"
)

func TestService_Create(t *testing.T) {
	env := testutil.NewInmemEnv(t)
	ctx := context.Background()

	acc, err := env.AccountSvc.Create(ctx, env.Validate, account.NewAccount{
		Username: " Jdoe ", Email: "JDOE@cme.test", OrganizationKey: "cme", ExternalUserKey: " 001 ",
	})
	require.NoError(t, err)
	assert.NotZero(t, acc.ID)
	assert.Equal(t, "jdoe", acc.Username)
	assert.Equal(t, "jdoe@cme.test", acc.Email)
	assert.Equal(t, "001", acc.ExternalUserKey)

	_, err = env.AccountSvc.Create(ctx, env.Validate, account.NewAccount{
		Username: "other", OrganizationKey: "cme", ExternalUserKey: "001",
	})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []core.FieldError{{Field: "external_user_key", Error: account.ErrAccountExists.Error()}}, verr.Fields)

	_, err = env.AccountSvc.Create(ctx, env.Validate, account.NewAccount{Username: "x", Email: "nope", OrganizationKey: "cme"})
	require.IsType(t, validator.ValidationErrors{}, err)
	assert.Len(t, err.(validator.ValidationErrors), 2)
}

func TestService_FindByExternalKeys(t *testing.T) {
	env := testutil.NewInmemEnv(t)
	ctx := context.Background()
	acc := testutil.CreateAccount(t, env.AccountRepo, "cme", "001")
	testutil.CreateAccount(t, env.AccountRepo, "other", "002")

	got, err := env.AccountSvc.FindByExternalKeys(ctx, "cme", nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = env.AccountSvc.FindByExternalKeys(ctx, "cme", []string{"001", "002", "003"})
	require.NoError(t, err)
	assert.Equal(t, map[string]account.Account{"001": acc}, got)
}

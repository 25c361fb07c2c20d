package auth_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burrowlabs/burrow/pkg/auth"
	"github.com/burrowlabs/burrow/pkg/types"
)

func newAuthenticator() *auth.StaticAuthenticator {
	return auth.NewStaticAuthenticator([]auth.Entry{
		{Login: "alice", UUID: "alice-uuid", Token: "alice-token"},
		{Login: "bob", UUID: "bob-uuid", Token: "bob-token", Roles: []string{"getobject"}},
		{Login: "portal", UUID: "portal-uuid"},
	})
}

func request(header string) *http.Request {
	r, _ := http.NewRequest(http.MethodGet, "/alice/buckets", nil)
	if header != "" {
		r.Header.Set("Authorization", header)
	}
	return r
}

func TestAuthenticate(t *testing.T) {
	a := newAuthenticator()

	caller, err := a.Authenticate(request("Bearer alice-token"))
	require.NoError(t, err)
	assert.Equal(t, "alice", caller.Account.Login)
	assert.Equal(t, "alice-uuid", caller.Account.UUID)

	for _, header := range []string{"", "Bearer wrong", "Basic alice-token", "alice-token"} {
		_, err := a.Authenticate(request(header))
		assert.Error(t, err, "header %q", header)
	}
}

func TestResolveAccount(t *testing.T) {
	a := newAuthenticator()

	account, err := a.ResolveAccount(context.Background(), "portal")
	require.NoError(t, err)
	assert.Equal(t, "portal-uuid", account.UUID)

	_, err = a.ResolveAccount(context.Background(), "nobody")
	assert.Error(t, err)
}

func TestOwnerAuthorizer(t *testing.T) {
	authz := auth.OwnerAuthorizer{}
	alice := &types.Caller{Account: types.Account{Login: "alice", UUID: "alice-uuid"}}
	bob := &types.Caller{
		Account: types.Account{Login: "bob", UUID: "bob-uuid"},
		Roles:   []string{"getobject"},
	}
	operator := &types.Caller{
		Account: types.Account{Login: "ops", UUID: "ops-uuid"},
		Roles:   []string{"operator"},
	}

	// The owner can do anything on its own resources.
	assert.NoError(t, authz.Authorize(context.Background(), auth.Request{
		Caller: alice, Owner: "alice-uuid", Action: "deletebucket",
	}))

	// A role grants exactly the action it names.
	assert.NoError(t, authz.Authorize(context.Background(), auth.Request{
		Caller: bob, Owner: "alice-uuid", Action: "getobject",
	}))
	assert.Error(t, authz.Authorize(context.Background(), auth.Request{
		Caller: bob, Owner: "alice-uuid", Action: "putobject",
	}))

	// Operators bypass ownership.
	assert.NoError(t, authz.Authorize(context.Background(), auth.Request{
		Caller: operator, Owner: "alice-uuid", Action: "putobject",
	}))

	assert.Error(t, authz.Authorize(context.Background(), auth.Request{
		Caller: nil, Owner: "alice-uuid", Action: "getobject",
	}))
}

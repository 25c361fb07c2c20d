package auth

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/burrowlabs/burrow/pkg/apierr"
	"github.com/burrowlabs/burrow/pkg/types"
)

// Authenticator resolves a request to the caller principal. Production
// wires this to the external signature-verification service; the gateway
// only consumes the resulting owner UUID and role set.
type Authenticator interface {
	Authenticate(r *http.Request) (*types.Caller, error)

	// ResolveAccount maps a login from the URL to its account.
	ResolveAccount(ctx context.Context, login string) (*types.Account, error)
}

// Request describes one authorization decision.
type Request struct {
	Caller   *types.Caller
	Owner    string // account UUID owning the resource
	Action   string // e.g. "putobject"
	Resource string // e.g. "/login/buckets/b/objects/k"
}

// Authorizer decides whether a caller may perform an action on a
// resource. External collaborator in production.
type Authorizer interface {
	Authorize(ctx context.Context, req Request) error
}

// StaticAuthenticator authenticates bearer tokens against a fixed
// account table. It stands in for the signature service in small
// deployments and tests.
type StaticAuthenticator struct {
	mu      sync.RWMutex
	byToken map[string]*types.Caller
	byLogin map[string]*types.Account
}

// Entry is one account in the static table.
type Entry struct {
	Login string
	UUID  string
	Token string
	Roles []string
}

// NewStaticAuthenticator builds the table.
func NewStaticAuthenticator(entries []Entry) *StaticAuthenticator {
	a := &StaticAuthenticator{
		byToken: make(map[string]*types.Caller, len(entries)),
		byLogin: make(map[string]*types.Account, len(entries)),
	}
	for _, e := range entries {
		account := &types.Account{Login: e.Login, UUID: e.UUID}
		a.byLogin[e.Login] = account
		if e.Token != "" {
			a.byToken[e.Token] = &types.Caller{Account: *account, Roles: e.Roles}
		}
	}
	return a
}

// Authenticate accepts "Authorization: Bearer <token>".
func (a *StaticAuthenticator) Authenticate(r *http.Request) (*types.Caller, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, apierr.AuthenticationRequired()
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, apierr.AuthenticationRequired()
	}

	a.mu.RLock()
	caller := a.byToken[token]
	a.mu.RUnlock()
	if caller == nil {
		return nil, apierr.AuthenticationRequired()
	}
	return caller, nil
}

// ResolveAccount looks a login up in the table.
func (a *StaticAuthenticator) ResolveAccount(_ context.Context, login string) (*types.Account, error) {
	a.mu.RLock()
	account := a.byLogin[login]
	a.mu.RUnlock()
	if account == nil {
		return nil, apierr.AccountNotFound(login)
	}
	return account, nil
}

// OwnerAuthorizer allows the resource owner everything and other callers
// only the actions granted by a role named after the action.
type OwnerAuthorizer struct{}

// Authorize implements Authorizer.
func (OwnerAuthorizer) Authorize(_ context.Context, req Request) error {
	if req.Caller == nil {
		return apierr.AuthenticationRequired()
	}
	if req.Caller.Account.UUID == req.Owner {
		return nil
	}
	for _, role := range req.Caller.Roles {
		if role == req.Action || role == "operator" {
			return nil
		}
	}
	return apierr.Authorization(req.Caller.Account.Login, req.Action)
}

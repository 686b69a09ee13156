// Package oidc verifies bearer tokens issued by an external OpenID Connect
// provider and maps a provider claim onto the todo folder scope.
package oidc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/todomini/todomini-server/pkg/middleware"
)

// FoldersClaim is the claim FolderScope reads.
const FoldersClaim = "folders"

// Verifier checks ID tokens against a discovered provider. When the provider
// carries folder access under another claim (Keycloak "groups", say), that
// claim is exposed as "folders".
type Verifier struct {
	verifier    *oidc.IDTokenVerifier
	foldersFrom string
}

// NewVerifier discovers the provider at issuer. Tokens must be issued to
// clientID. foldersFrom names the claim holding the folder list; empty means
// FoldersClaim.
func NewVerifier(ctx context.Context, issuer, clientID, foldersFrom string) (*Verifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("discover OIDC provider %s: %w", issuer, err)
	}
	if foldersFrom == "" {
		foldersFrom = FoldersClaim
	}
	return &Verifier{
		verifier:    provider.Verifier(&oidc.Config{ClientID: clientID}),
		foldersFrom: foldersFrom,
	}, nil
}

func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	if v.foldersFrom == FoldersClaim {
		return idToken, nil
	}
	return folderToken{Token: idToken, from: v.foldersFrom}, nil
}

// folderToken rewrites claims so the folder list sits under FoldersClaim.
// A token without the source claim keeps no "folders" entry and is therefore
// unrestricted, matching tokens minted without a scope.
type folderToken struct {
	middleware.Token
	from string
}

func (t folderToken) Claims(v interface{}) error {
	var claims map[string]interface{}
	if err := t.Token.Claims(&claims); err != nil {
		return err
	}
	delete(claims, FoldersClaim)
	if folders, ok := claims[t.from]; ok {
		claims[FoldersClaim] = folders
	}
	b, err := json.Marshal(claims)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

package credentials

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
)

// Scopes requested for service account tokens.
var Scopes = []string{
	"https://www.googleapis.com/auth/datastore",
	"https://www.googleapis.com/auth/userinfo.email",
}

// Authorizer wraps a plain http client into one that attaches credentials to
// every outbound request.
type Authorizer interface {
	Authorize(client *http.Client) *http.Client
}

type tokenAuthorizer struct {
	ctx    context.Context
	source func(ctx context.Context) oauth2.TokenSource
}

func (a tokenAuthorizer) Authorize(client *http.Client) *http.Client {
	ctx := context.WithValue(a.ctx, oauth2.HTTPClient, client)
	return oauth2.NewClient(ctx, a.source(ctx))
}

// ForServiceAccount signs JWT assertions with the PEM encoded private key
// found at privateKeyPath.
func ForServiceAccount(ctx context.Context, clientEmail, privateKeyPath string) (Authorizer, error) {
	if clientEmail == "" {
		return nil, fmt.Errorf("a service account email is required")
	}

	key, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}

	cfg := &jwt.Config{
		Email:      clientEmail,
		PrivateKey: key,
		Scopes:     Scopes,
		TokenURL:   google.JWTTokenURL,
	}

	return tokenAuthorizer{ctx: ctx, source: cfg.TokenSource}, nil
}

// FromJSON reads a service account key file in the JSON format issued by the
// cloud console.
func FromJSON(ctx context.Context, data []byte) (Authorizer, error) {
	cfg, err := google.JWTConfigFromJSON(data, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account key: %w", err)
	}

	return tokenAuthorizer{ctx: ctx, source: cfg.TokenSource}, nil
}

// StaticToken always sends the same bearer token, typically to a local
// emulator or a fake.
func StaticToken(token string) Authorizer {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})

	return tokenAuthorizer{
		ctx:    context.Background(),
		source: func(context.Context) oauth2.TokenSource { return src },
	}
}

package casdoor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"

	"github.com/evolvere-edu/evolvere-api/internal/config"
	"github.com/evolvere-edu/evolvere-api/internal/repositories"
)

var ErrMissingEmail = errors.New("casdoor account has no email")

// tokenClient is the part of the Casdoor SDK the provider uses.
type tokenClient interface {
	GetSigninUrl(redirectURI string) string
	ParseJwtToken(token string) (*casdoorsdk.Claims, error)
}

// exchangeFunc trades an authorization code for an access token.
type exchangeFunc func(code, state string) (string, error)

type UserCasdoor struct {
	client   tokenClient
	exchange exchangeFunc
}

func NewUserCasdoor(cfg config.CasdoorConfig) repositories.IdentityProvider {
	client := casdoorsdk.NewClient(
		cfg.Endpoint,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.Cert,
		cfg.Organization,
		cfg.Application,
	)

	return &UserCasdoor{
		client: client,
		exchange: func(code, state string) (string, error) {
			token, err := client.GetOAuthToken(code, state)
			if err != nil {
				return "", err
			}
			return token.AccessToken, nil
		},
	}
}

func (u *UserCasdoor) SignInURL(redirectURL string) string {
	return u.client.GetSigninUrl(redirectURL)
}

// Exchange validates the code with Casdoor and maps the JWT claims.
func (u *UserCasdoor) Exchange(ctx context.Context, code, state string) (*repositories.ExternalIdentity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	accessToken, err := u.exchange(code, state)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange casdoor code: %w", err)
	}

	claims, err := u.client.ParseJwtToken(accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to parse casdoor token: %w", err)
	}
	return identityFromClaims(claims)
}

func identityFromClaims(claims *casdoorsdk.Claims) (*repositories.ExternalIdentity, error) {
	email := strings.ToLower(strings.TrimSpace(claims.User.Email))
	if email == "" {
		return nil, ErrMissingEmail
	}

	name := claims.User.DisplayName
	if name == "" {
		name = claims.User.Name
	}
	return &repositories.ExternalIdentity{
		Subject:  claims.User.Id,
		Username: claims.User.Name,
		Email:    email,
		Name:     name,
	}, nil
}

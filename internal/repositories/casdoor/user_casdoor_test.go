package casdoor

import (
	"context"
	"errors"
	"testing"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	claims *casdoorsdk.Claims
	err    error
	token  string
}

func (f *fakeClient) GetSigninUrl(redirectURI string) string {
	return "https://sso.example/login?redirect_uri=" + redirectURI
}

func (f *fakeClient) ParseJwtToken(token string) (*casdoorsdk.Claims, error) {
	f.token = token
	return f.claims, f.err
}

func TestExchange(t *testing.T) {
	claims := &casdoorsdk.Claims{}
	claims.User.Id = "abc-123"
	claims.User.Name = "maria"
	claims.User.DisplayName = "Maria Souza"
	claims.User.Email = " Maria@Example.com "

	client := &fakeClient{claims: claims}
	p := &UserCasdoor{
		client:   client,
		exchange: func(code, state string) (string, error) { return "token-for-" + code, nil },
	}

	id, err := p.Exchange(context.Background(), "xyz", "state")
	require.NoError(t, err)
	assert.Equal(t, "token-for-xyz", client.token)
	assert.Equal(t, "maria@example.com", id.Email)
	assert.Equal(t, "Maria Souza", id.Name)
	assert.Equal(t, "maria", id.Username)
	assert.Equal(t, "abc-123", id.Subject)
}

func TestExchange_Errors(t *testing.T) {
	noEmail := &casdoorsdk.Claims{}
	noEmail.User.Name = "ghost"

	tests := []struct {
		name     string
		exchange exchangeFunc
		client   *fakeClient
		want     error
	}{
		{
			name:     "code rejected",
			exchange: func(string, string) (string, error) { return "", errors.New("invalid_grant") },
			client:   &fakeClient{},
		},
		{
			name:     "bad token",
			exchange: func(string, string) (string, error) { return "t", nil },
			client:   &fakeClient{err: errors.New("signature")},
		},
		{
			name:     "missing email",
			exchange: func(string, string) (string, error) { return "t", nil },
			client:   &fakeClient{claims: noEmail},
			want:     ErrMissingEmail,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &UserCasdoor{client: tt.client, exchange: tt.exchange}
			_, err := p.Exchange(context.Background(), "c", "s")
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestSignInURL(t *testing.T) {
	p := &UserCasdoor{client: &fakeClient{}}
	assert.Contains(t, p.SignInURL("http://app/callback"), "redirect_uri=http://app/callback")
}

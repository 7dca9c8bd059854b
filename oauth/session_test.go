// Copyright (C) 2019 Cranky Kernel
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parseAuthorization splits an OAuth Authorization header into its
// decoded parameters.
func parseAuthorization(t *testing.T, header string) url.Values {
	require.True(t, strings.HasPrefix(header, "OAuth "), header)
	values := url.Values{}
	for _, part := range strings.Split(strings.TrimPrefix(header, "OAuth "), ",") {
		kv := strings.SplitN(part, "=", 2)
		require.Len(t, kv, 2, part)
		key, err := PercentDecode(kv[0])
		require.Nil(t, err)
		value, err := PercentDecode(strings.Trim(kv[1], `"`))
		require.Nil(t, err)
		values.Add(key, value)
	}
	return values
}

// verifySignature recomputes the signature of r the way a provider would.
func verifySignature(t *testing.T, r *http.Request, consumerSecret string, tokenSecret string) bool {
	params := parseAuthorization(t, r.Header.Get("Authorization"))
	signature := params.Get("oauth_signature")
	params.Del("oauth_signature")
	rawURL := "http://" + r.Host + r.URL.RequestURI()
	base, err := SignatureBaseString(r.Method, rawURL, params)
	require.Nil(t, err)
	return Signature(SigningKey(consumerSecret, tokenSecret), base) == signature
}

type mockProvider struct {
	t      *testing.T
	server *httptest.Server
	calls  map[string]int
}

func newMockProvider(t *testing.T) *mockProvider {
	m := &mockProvider{t: t, calls: map[string]int{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/request_token", func(w http.ResponseWriter, r *http.Request) {
		m.calls["request_token"]++
		params := parseAuthorization(t, r.Header.Get("Authorization"))
		if params.Get("oauth_callback") != "oob" || params.Get("oauth_token") != "" ||
			!verifySignature(t, r, "CS", "") {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("oauth_problem=signature_invalid"))
			return
		}
		w.Write([]byte("oauth_token=RT&oauth_token_secret=RTS&oauth_callback_confirmed=true"))
	})
	mux.HandleFunc("/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		m.calls["access_token"]++
		params := parseAuthorization(t, r.Header.Get("Authorization"))
		if params.Get("oauth_token") != "RT" || !verifySignature(t, r, "CS", "RTS") {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("oauth_problem=token_rejected"))
			return
		}
		if params.Get("oauth_verifier") != "123456" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("oauth_problem=verifier_invalid"))
			return
		}
		w.Write([]byte("oauth_token=AT&oauth_token_secret=ATS"))
	})
	mux.HandleFunc("/oauth/renew_access_token", func(w http.ResponseWriter, r *http.Request) {
		m.calls["renew"]++
		params := parseAuthorization(t, r.Header.Get("Authorization"))
		if params.Get("oauth_token") != "AT" || !verifySignature(t, r, "CS", "ATS") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte("Access Token has been renewed"))
	})
	mux.HandleFunc("/oauth/revoke_access_token", func(w http.ResponseWriter, r *http.Request) {
		m.calls["revoke"]++
		w.Write([]byte("Revoked Access Token"))
	})
	m.server = httptest.NewServer(mux)
	return m
}

func (m *mockProvider) endpoints() Endpoints {
	return Endpoints{
		RequestToken:      m.server.URL + "/oauth/request_token",
		Authorize:         "https://us.etrade.com/e/t/etws/authorize",
		AccessToken:       m.server.URL + "/oauth/access_token",
		RenewAccessToken:  m.server.URL + "/oauth/renew_access_token",
		RevokeAccessToken: m.server.URL + "/oauth/revoke_access_token",
	}
}

func newTestSession(t *testing.T, m *mockProvider, options ...Option) *Session {
	options = append([]Option{WithEndpoints(m.endpoints()), WithHTTPClient(m.server.Client())}, options...)
	session, err := NewSession(Credentials{Key: "CK", Secret: "CS"}, options...)
	require.Nil(t, err)
	return session
}

func TestHandshake(t *testing.T) {
	assert := assert.New(t)
	provider := newMockProvider(t)
	defer provider.server.Close()
	session := newTestSession(t, provider)
	ctx := context.Background()

	assert.Equal(Unauthenticated, session.State())

	authorizeURL, err := session.RequestToken(ctx)
	require.Nil(t, err)
	assert.Equal("https://us.etrade.com/e/t/etws/authorize?key=CK&token=RT", authorizeURL)
	assert.Equal(RequestTokenObtained, session.State())
	assert.Equal(Token{Token: "RT", Secret: "RTS"}, session.Token())

	again, err := session.AuthorizeURL()
	assert.Nil(err)
	assert.Equal(authorizeURL, again)

	token, err := session.AccessToken(ctx, "123456")
	require.Nil(t, err)
	assert.Equal(Token{Token: "AT", Secret: "ATS"}, token)
	assert.Equal(AccessTokenObtained, session.State())

	req, err := http.NewRequest("GET", "https://api.etrade.com/v1/accounts/list.json", nil)
	require.Nil(t, err)
	assert.Nil(session.AuthorizeRequest(req))
	params := parseAuthorization(t, req.Header.Get("Authorization"))
	assert.Equal("AT", params.Get("oauth_token"))
	assert.Equal("CK", params.Get("oauth_consumer_key"))
	assert.Equal("HMAC-SHA1", params.Get("oauth_signature_method"))
	assert.Equal("1.0", params.Get("oauth_version"))
	assert.Empty(params.Get("oauth_verifier"))

	assert.Nil(session.Renew(ctx))
	assert.Equal(1, provider.calls["renew"])

	assert.Nil(session.Revoke(ctx))
	assert.Equal(Unauthenticated, session.State())
	assert.True(session.Token().IsEmpty())
}

func TestAccessTokenBeforeRequestToken(t *testing.T) {
	assert := assert.New(t)
	provider := newMockProvider(t)
	defer provider.server.Close()
	session := newTestSession(t, provider)

	_, err := session.AccessToken(context.Background(), "123456")
	assert.IsType(&InvalidStateError{}, err)
	assert.Equal(0, provider.calls["access_token"])
}

func TestRequestTokenTwice(t *testing.T) {
	assert := assert.New(t)
	provider := newMockProvider(t)
	defer provider.server.Close()
	session := newTestSession(t, provider)
	ctx := context.Background()

	_, err := session.RequestToken(ctx)
	require.Nil(t, err)
	_, err = session.RequestToken(ctx)
	assert.IsType(&InvalidStateError{}, err)
	assert.Equal(1, provider.calls["request_token"])

	// The pending request token is still usable.
	_, err = session.AccessToken(ctx, "123456")
	assert.Nil(err)

	session.Reset()
	assert.Equal(Unauthenticated, session.State())
	_, err = session.RequestToken(ctx)
	assert.Nil(err)
	assert.Equal(2, provider.calls["request_token"])
}

func TestAccessTokenRejected(t *testing.T) {
	assert := assert.New(t)
	provider := newMockProvider(t)
	defer provider.server.Close()
	session := newTestSession(t, provider)
	ctx := context.Background()

	_, err := session.RequestToken(ctx)
	require.Nil(t, err)

	_, err = session.AccessToken(ctx, "   ")
	assert.IsType(&AuthenticationError{}, err)
	assert.Equal(0, provider.calls["access_token"])

	_, err = session.AccessToken(ctx, "000000")
	require.IsType(t, &AuthenticationError{}, err)
	authErr := err.(*AuthenticationError)
	assert.Equal(http.StatusUnauthorized, authErr.StatusCode)
	assert.Equal("verifier_invalid", authErr.Problem)
	assert.NotContains(err.Error(), "RTS")
	assert.NotContains(err.Error(), "CS")
	assert.Equal(RequestTokenObtained, session.State())
}

func TestRequestTokenMissingFields(t *testing.T) {
	assert := assert.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("oauth_token=RT"))
	}))
	defer server.Close()

	session, err := NewSession(Credentials{Key: "CK", Secret: "CS"},
		WithHTTPClient(server.Client()),
		WithEndpoints(Endpoints{RequestToken: server.URL + "/oauth/request_token"}))
	require.Nil(t, err)

	_, err = session.RequestToken(context.Background())
	assert.IsType(&AuthenticationError{}, err)
	assert.Equal(Unauthenticated, session.State())
}

func TestTransportError(t *testing.T) {
	assert := assert.New(t)
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL + "/oauth/request_token"
	server.Close()

	session, err := NewSession(Credentials{Key: "CK", Secret: "CS"},
		WithEndpoints(Endpoints{RequestToken: endpoint}))
	require.Nil(t, err)

	_, err = session.RequestToken(context.Background())
	require.IsType(t, &TransportError{}, err)
	assert.NotNil(err.(*TransportError).Cause())
}

func TestSessionRequiresCredentials(t *testing.T) {
	_, err := NewSession(Credentials{Key: "CK"})
	assert.IsType(t, &ConfigurationError{}, err)
}

func TestWithAccessToken(t *testing.T) {
	assert := assert.New(t)

	session, err := NewSession(Credentials{Key: "CK", Secret: "CS"},
		WithAccessToken(Token{Token: "AT", Secret: "ATS"}))
	require.Nil(t, err)
	assert.Equal(AccessTokenObtained, session.State())

	_, err = session.RequestToken(context.Background())
	assert.IsType(&InvalidStateError{}, err)

	unauthorized, err := NewSession(Credentials{Key: "CK", Secret: "CS"})
	require.Nil(t, err)
	req, err := http.NewRequest("GET", "https://api.etrade.com/v1/accounts/list.json", nil)
	require.Nil(t, err)
	assert.IsType(&InvalidStateError{}, unauthorized.AuthorizeRequest(req))
	assert.IsType(&InvalidStateError{}, unauthorized.Renew(context.Background()))
	_, err = unauthorized.AuthorizeURL()
	assert.IsType(&InvalidStateError{}, err)
}

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

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/crankykernel/etrade/auth"
	"gitlab.com/crankykernel/etrade/config"
	"gitlab.com/crankykernel/etrade/db"
	"gitlab.com/crankykernel/etrade/etrade"
	"gitlab.com/crankykernel/etrade/oauth"
)

// newUpstream fakes the E*Trade API.
func newUpstream() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/accounts/list.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"AccountListResponse":{"Accounts":{"Account":[{"accountIdKey":"abc","accountStatus":"ACTIVE"}]}}}`))
	})
	mux.HandleFunc("/v1/market/quote/AAPL,MSFT.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"QuoteResponse":{"QuoteData":[{"Product":{"symbol":"AAPL"}},{"Product":{"symbol":"MSFT"}}]}}`))
	})
	mux.HandleFunc("/v1/accounts/expired/balance.json", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("oauth_problem=token_expired"))
	})
	return httptest.NewServer(mux)
}

type testFixture struct {
	upstream *httptest.Server
	server   *Server
	journal  *db.DB
}

func newFixture(t *testing.T, withJournal bool) *testFixture {
	upstream := newUpstream()
	session, err := oauth.NewSession(oauth.Credentials{Key: "CK", Secret: "CS"},
		oauth.WithAccessToken(oauth.Token{Token: "AT", Secret: "ATS"}))
	require.Nil(t, err)
	client := etrade.NewClient(session, etrade.WithBaseURL(upstream.URL))

	encoded, err := auth.EncodePassword("secret")
	require.Nil(t, err)

	fixture := &testFixture{upstream: upstream}
	if withJournal {
		fixture.journal, err = db.Open(filepath.Join(t.TempDir(), "etrade.db"))
		require.Nil(t, err)
	}
	fixture.server = New(session, client, fixture.journal, NewAuthenticator("etrade", encoded))
	return fixture
}

func (f *testFixture) Close() {
	f.upstream.Close()
	if f.journal != nil {
		f.journal.Close()
	}
}

func (f *testFixture) get(path string, password string) *httptest.ResponseRecorder {
	request := httptest.NewRequest("GET", path, nil)
	if password != "" {
		request.SetBasicAuth("etrade", password)
	}
	recorder := httptest.NewRecorder()
	f.server.ServeHTTP(recorder, request)
	return recorder
}

func TestBasicAuthRequired(t *testing.T) {
	assert := assert.New(t)
	fixture := newFixture(t, false)
	defer fixture.Close()

	response := fixture.get("/api/session", "")
	assert.Equal(http.StatusUnauthorized, response.Code)
	assert.Equal(`Basic realm="Restricted"`, response.Header().Get("WWW-Authenticate"))

	response = fixture.get("/api/session", "wrong")
	assert.Equal(http.StatusUnauthorized, response.Code)

	response = fixture.get("/api/session", "secret")
	assert.Equal(http.StatusOK, response.Code)
	var session sessionResponse
	require.Nil(t, json.Unmarshal(response.Body.Bytes(), &session))
	assert.Equal("AccessTokenObtained", session.State)
	assert.Equal(fixture.upstream.URL, session.BaseURL)
}

func TestProxiedRequests(t *testing.T) {
	assert := assert.New(t)
	fixture := newFixture(t, false)
	defer fixture.Close()

	response := fixture.get("/api/accounts", "secret")
	require.Equal(t, http.StatusOK, response.Code)
	var accounts []etrade.Account
	require.Nil(t, json.Unmarshal(response.Body.Bytes(), &accounts))
	require.Len(t, accounts, 1)
	assert.Equal("abc", accounts[0].AccountIDKey)

	response = fixture.get("/api/quote/AAPL,MSFT", "secret")
	require.Equal(t, http.StatusOK, response.Code)
	var quotes []etrade.Quote
	require.Nil(t, json.Unmarshal(response.Body.Bytes(), &quotes))
	assert.Len(quotes, 2)

	response = fixture.get("/api/accounts/abc/portfolio?view=bogus", "secret")
	assert.Equal(http.StatusBadRequest, response.Code)

	response = fixture.get("/api/accounts/expired/balance", "secret")
	assert.Equal(http.StatusBadGateway, response.Code)
	assert.Contains(response.Body.String(), "token_expired")
	assert.NotContains(response.Body.String(), "ATS")

	response = fixture.get("/api/accounts/abc/journal", "secret")
	assert.Equal(http.StatusNotFound, response.Code)
}

func TestJournalQuery(t *testing.T) {
	assert := assert.New(t)
	fixture := newFixture(t, true)
	defer fixture.Close()

	entry := db.NewJournalEntry("abc", &etrade.OrderRequest{
		Symbol:        "AAPL",
		Action:        etrade.OrderActionBuy,
		Quantity:      decimal.NewFromInt(1),
		PriceType:     etrade.PriceTypeMarket,
		ClientOrderID: "c1",
	})
	entry.Status = db.StatusPlaced
	require.Nil(t, fixture.journal.SaveOrder(entry))

	response := fixture.get("/api/accounts/abc/journal?status=placed", "secret")
	require.Equal(t, http.StatusOK, response.Code)
	assert.Contains(response.Body.String(), `"clientOrderId":"c1"`)
	assert.Contains(response.Body.String(), `"accountIdKey":"abc"`)
	var entries []db.JournalEntry
	require.Nil(t, json.Unmarshal(response.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal("c1", entries[0].ClientOrderID)

	response = fixture.get("/api/accounts/abc/journal?limit=x", "secret")
	assert.Equal(http.StatusBadRequest, response.Code)
}

func TestErrorStatus(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(http.StatusBadRequest, errorStatus(&etrade.ValidationError{}))
	assert.Equal(http.StatusConflict, errorStatus(&oauth.InvalidStateError{}))
	assert.Equal(http.StatusNotFound, errorStatus(&etrade.APIError{StatusCode: 404}))
	assert.Equal(http.StatusBadGateway, errorStatus(&etrade.APIError{StatusCode: 500}))
	assert.Equal(http.StatusBadGateway, errorStatus(&oauth.AuthenticationError{}))
	assert.Equal(http.StatusGatewayTimeout, errorStatus(&oauth.TransportError{}))
	assert.Equal(http.StatusInternalServerError, errorStatus(context.Canceled))
}

func TestListenOnlyOnLocalhost(t *testing.T) {
	fixture := newFixture(t, false)
	defer fixture.Close()
	err := fixture.server.ListenAndServe(context.Background(), "0.0.0.0", DefaultPort)
	assert.NotNil(t, err)
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	fixture := newFixture(t, false)
	defer fixture.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- fixture.server.ListenAndServe(ctx, "127.0.0.1", 0)
	}()
	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.Nil(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestAuthenticatorFromConfig(t *testing.T) {
	assert := assert.New(t)
	viper.Reset()
	defer viper.Reset()
	require.Nil(t, config.Init(t.TempDir()))

	out := &bytes.Buffer{}
	authenticator, err := NewAuthenticatorFromConfig(out)
	require.Nil(t, err)
	assert.Contains(out.String(), "Username: etrade")
	assert.Equal("etrade", config.GetString(config.KeyServerUsername))
	assert.NotEmpty(config.GetString(config.KeyServerPassword))
	assert.False(authenticator.check("etrade", "wrong"))

	encoded, err := auth.EncodePassword("changed")
	require.Nil(t, err)
	config.Set(config.KeyServerUsername, "me")
	config.Set(config.KeyServerPassword, encoded)
	authenticator.Reload()
	assert.True(authenticator.check("me", "changed"))
	assert.False(authenticator.check("etrade", "changed"))

	out = &bytes.Buffer{}
	_, err = NewAuthenticatorFromConfig(out)
	require.Nil(t, err)
	assert.Empty(out.String())
}

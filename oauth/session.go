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
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"gitlab.com/crankykernel/etrade/log"
)

// State of the three-legged handshake.
type State int

const (
	Unauthenticated State = iota
	RequestTokenObtained
	AccessTokenObtained
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "Unauthenticated"
	case RequestTokenObtained:
		return "RequestTokenObtained"
	case AccessTokenObtained:
		return "AccessTokenObtained"
	default:
		return "Unknown"
	}
}

type Endpoints struct {
	RequestToken      string
	Authorize         string
	AccessToken       string
	RenewAccessToken  string
	RevokeAccessToken string
}

// ETradeEndpoints are shared by the live and sandbox environments.
var ETradeEndpoints = Endpoints{
	RequestToken:      "https://api.etrade.com/oauth/request_token",
	Authorize:         "https://us.etrade.com/e/t/etws/authorize",
	AccessToken:       "https://api.etrade.com/oauth/access_token",
	RenewAccessToken:  "https://api.etrade.com/oauth/renew_access_token",
	RevokeAccessToken: "https://api.etrade.com/oauth/revoke_access_token",
}

const maxResponseSize = 1 << 20

// Session owns the token pair of one user and drives the handshake that
// produces it. All methods are safe for concurrent use; handshake steps are
// serialized on the session lock.
type Session struct {
	lock       sync.Mutex
	signer     *Signer
	httpClient *http.Client
	endpoints  Endpoints
	state      State
	token      Token
}

type Option func(s *Session)

func WithHTTPClient(client *http.Client) Option {
	return func(s *Session) {
		s.httpClient = client
	}
}

func WithEndpoints(endpoints Endpoints) Option {
	return func(s *Session) {
		s.endpoints = endpoints
	}
}

// WithSigner replaces the default signer, typically to fix the nonce and
// clock in tests. The signer's consumer credentials are used as given.
func WithSigner(signer *Signer) Option {
	return func(s *Session) {
		s.signer = signer
	}
}

// WithAccessToken restores a previously obtained access token. The session
// starts out in AccessTokenObtained.
func WithAccessToken(token Token) Option {
	return func(s *Session) {
		if token.IsEmpty() {
			return
		}
		s.token = token
		s.state = AccessTokenObtained
	}
}

func NewSession(consumer Credentials, options ...Option) (*Session, error) {
	signer, err := NewSigner(consumer)
	if err != nil {
		return nil, err
	}
	s := &Session{
		signer:     signer,
		httpClient: http.DefaultClient,
		endpoints:  ETradeEndpoints,
		state:      Unauthenticated,
	}
	for _, option := range options {
		option(s)
	}
	if s.signer == nil {
		return nil, &ConfigurationError{Reason: "signer is nil"}
	}
	if s.signer.Consumer.Key == "" || s.signer.Consumer.Secret == "" {
		return nil, &ConfigurationError{Reason: "consumer credentials are not set"}
	}
	return s, nil
}

func (s *Session) State() State {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state
}

// Token returns the current token pair, empty when Unauthenticated.
func (s *Session) Token() Token {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.token
}

func (s *Session) ConsumerKey() string {
	return s.signer.Consumer.Key
}

// Reset discards any token and returns the session to Unauthenticated.
func (s *Session) Reset() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.reset()
}

func (s *Session) reset() {
	s.token = Token{}
	s.state = Unauthenticated
}

// RequestToken performs the first leg of the handshake and returns the URL
// the user must visit to obtain a verifier code. Calling it again before
// Reset fails with an InvalidStateError and leaves the pending request
// token in place.
func (s *Session) RequestToken(ctx context.Context) (string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.state != Unauthenticated {
		return "", &InvalidStateError{Op: "RequestToken", State: s.state}
	}

	params := url.Values{}
	params.Set(paramCallback, CallbackOutOfBand)
	token, err := s.exchange(ctx, "request token", s.endpoints.RequestToken, Token{}, params)
	if err != nil {
		return "", err
	}

	s.token = token
	s.state = RequestTokenObtained
	log.WithFields(log.Fields{
		"state": s.state,
	}).Debugf("Obtained OAuth request token.")

	return s.authorizeURL(), nil
}

// AuthorizeURL rebuilds the user authorization URL for the pending request
// token.
func (s *Session) AuthorizeURL() (string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.state != RequestTokenObtained {
		return "", &InvalidStateError{Op: "AuthorizeURL", State: s.state}
	}
	return s.authorizeURL(), nil
}

func (s *Session) authorizeURL() string {
	query := url.Values{}
	query.Set("key", s.signer.Consumer.Key)
	query.Set("token", s.token.Token)
	return s.endpoints.Authorize + "?" + query.Encode()
}

// AccessToken exchanges the verifier code shown to the user for an access
// token, which replaces the request token.
func (s *Session) AccessToken(ctx context.Context, verifier string) (Token, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.state != RequestTokenObtained {
		return Token{}, &InvalidStateError{Op: "AccessToken", State: s.state}
	}
	verifier = strings.TrimSpace(verifier)
	if verifier == "" {
		return Token{}, &AuthenticationError{Reason: "verifier code is empty"}
	}

	params := url.Values{}
	params.Set(paramVerifier, verifier)
	token, err := s.exchange(ctx, "access token", s.endpoints.AccessToken, s.token, params)
	if err != nil {
		return Token{}, err
	}

	s.token = token
	s.state = AccessTokenObtained
	log.WithFields(log.Fields{
		"state": s.state,
	}).Debugf("Obtained OAuth access token.")

	return token, nil
}

// Renew reactivates an access token that has gone idle. E*Trade expires
// idle tokens after two hours and all tokens at midnight US Eastern.
func (s *Session) Renew(ctx context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.state != AccessTokenObtained {
		return &InvalidStateError{Op: "Renew", State: s.state}
	}
	_, err := s.call(ctx, "renew access token", s.endpoints.RenewAccessToken, s.token, nil)
	return err
}

// Revoke invalidates the access token with the provider and resets the
// session.
func (s *Session) Revoke(ctx context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.state != AccessTokenObtained {
		return &InvalidStateError{Op: "Revoke", State: s.state}
	}
	if _, err := s.call(ctx, "revoke access token", s.endpoints.RevokeAccessToken, s.token, nil); err != nil {
		return err
	}
	s.reset()
	return nil
}

// AuthorizeRequest signs an API request with the access token.
func (s *Session) AuthorizeRequest(req *http.Request) error {
	s.lock.Lock()
	state, token := s.state, s.token
	s.lock.Unlock()
	if state != AccessTokenObtained {
		return &InvalidStateError{Op: "AuthorizeRequest", State: state}
	}
	return s.signer.SignRequest(req, token)
}

func (s *Session) exchange(ctx context.Context, op string, endpoint string, token Token, params url.Values) (Token, error) {
	body, err := s.call(ctx, op, endpoint, token, params)
	if err != nil {
		return Token{}, err
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return Token{}, &AuthenticationError{Reason: op + ": malformed response"}
	}
	result := Token{
		Token:  values.Get(paramToken),
		Secret: values.Get(paramTokenSecret),
	}
	if result.Token == "" || result.Secret == "" {
		return Token{}, &AuthenticationError{Reason: op + ": response is missing token fields"}
	}
	return result, nil
}

func (s *Session) call(ctx context.Context, op string, endpoint string, token Token, params url.Values) ([]byte, error) {
	header, err := s.signer.Sign(http.MethodGet, endpoint, token, params)
	if err != nil {
		return nil, err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &TransportError{Op: op, URL: endpoint, Err: err}
	}
	request.Header.Set("Authorization", header)

	response, err := s.httpClient.Do(request)
	if err != nil {
		return nil, &TransportError{Op: op, URL: endpoint, Err: err}
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseSize))
	if err != nil {
		return nil, &TransportError{Op: op, URL: endpoint, Err: err}
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		log.WithFields(log.Fields{
			"op":     op,
			"status": response.StatusCode,
		}).Debugf("OAuth endpoint rejected request.")
		return nil, &AuthenticationError{
			StatusCode: response.StatusCode,
			Problem:    problem(body),
			Reason:     op + " rejected",
		}
	}

	return body, nil
}

// problem extracts oauth_problem from a form encoded error body.
func problem(body []byte) string {
	values, err := url.ParseQuery(strings.TrimSpace(string(body)))
	if err != nil {
		return ""
	}
	return values.Get(paramProblem)
}

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
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"io"
	"mime"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	SignatureMethod = "HMAC-SHA1"
	Version         = "1.0"

	// Callback value for out-of-band verification, the only mode E*Trade
	// supports for applications without a registered callback.
	CallbackOutOfBand = "oob"
)

const (
	paramConsumerKey     = "oauth_consumer_key"
	paramNonce           = "oauth_nonce"
	paramSignature       = "oauth_signature"
	paramSignatureMethod = "oauth_signature_method"
	paramTimestamp       = "oauth_timestamp"
	paramToken           = "oauth_token"
	paramTokenSecret     = "oauth_token_secret"
	paramVersion         = "oauth_version"
	paramCallback        = "oauth_callback"
	paramVerifier        = "oauth_verifier"
	paramProblem         = "oauth_problem"

	oauthPrefix = "oauth_"
)

// Credentials identify the application (the OAuth consumer).
type Credentials struct {
	Key    string
	Secret string
}

// Token is a token/secret pair, either a request token or an access token.
// The zero value is the empty token used before the handshake.
type Token struct {
	Token  string `json:"token" yaml:"token"`
	Secret string `json:"secret" yaml:"secret"`
}

func (t Token) IsEmpty() bool {
	return t.Token == ""
}

// String never includes the secret.
func (t Token) String() string {
	if t.IsEmpty() {
		return "<empty>"
	}
	return t.Token
}

// Signer produces OAuth 1.0a HMAC-SHA1 Authorization headers. Nonce and
// Now may be replaced to make signatures reproducible.
type Signer struct {
	Consumer Credentials
	Nonce    func() string
	Now      func() time.Time
}

func NewSigner(consumer Credentials) (*Signer, error) {
	if consumer.Key == "" {
		return nil, &ConfigurationError{Reason: "consumer key is empty"}
	}
	if consumer.Secret == "" {
		return nil, &ConfigurationError{Reason: "consumer secret is empty"}
	}
	return &Signer{
		Consumer: consumer,
		Nonce:    randomNonce,
		Now:      time.Now,
	}, nil
}

func randomNonce() string {
	// Version 4 UUIDs carry 122 bits from crypto/rand.
	return strings.Replace(uuid.New().String(), "-", "", -1)
}

func checkParams(params url.Values) error {
	for key, values := range params {
		if !utf8.ValidString(key) {
			return &EncodingError{Key: key, Reason: "key is not valid UTF-8"}
		}
		for _, value := range values {
			if !utf8.ValidString(value) {
				return &EncodingError{Key: key, Reason: "value is not valid UTF-8"}
			}
		}
	}
	return nil
}

type pair struct {
	key   string
	value string
}

func encodedPairs(params url.Values) []pair {
	pairs := make([]pair, 0, len(params))
	for key, values := range params {
		encodedKey := PercentEncode(key)
		for _, value := range values {
			pairs = append(pairs, pair{encodedKey, PercentEncode(value)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].key != pairs[j].key {
			return pairs[i].key < pairs[j].key
		}
		return pairs[i].value < pairs[j].value
	})
	return pairs
}

// NormalizeParameters builds the request parameter string of RFC 5849
// section 3.4.1.3.2: encoded pairs sorted by key, then by value.
func NormalizeParameters(params url.Values) (string, error) {
	if err := checkParams(params); err != nil {
		return "", err
	}
	pairs := encodedPairs(params)
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.key + "=" + p.value
	}
	return strings.Join(parts, "&"), nil
}

// BaseURL returns the base string URI of RFC 5849 section 3.4.1.2.
func BaseURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.Wrap(err, "invalid request url")
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.Errorf("request url must be absolute: %s", rawURL)
	}
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	if scheme == "http" {
		host = strings.TrimSuffix(host, ":80")
	} else if scheme == "https" {
		host = strings.TrimSuffix(host, ":443")
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return scheme + "://" + host + path, nil
}

func mergeQuery(rawURL string, params url.Values) (url.Values, error) {
	merged := url.Values{}
	for key, values := range params {
		merged[key] = append(merged[key], values...)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid request url")
	}
	query, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return nil, &EncodingError{Key: "query", Reason: err.Error()}
	}
	for key, values := range query {
		merged[key] = append(merged[key], values...)
	}
	return merged, nil
}

// SignatureBaseString builds METHOD&url&params as in RFC 5849 section
// 3.4.1. Any query string on rawURL is included in the parameter set.
func SignatureBaseString(method string, rawURL string, params url.Values) (string, error) {
	baseURL, err := BaseURL(rawURL)
	if err != nil {
		return "", err
	}
	merged, err := mergeQuery(rawURL, params)
	if err != nil {
		return "", err
	}
	normalized, err := NormalizeParameters(merged)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(method) + "&" + PercentEncode(baseURL) + "&" + PercentEncode(normalized), nil
}

func SigningKey(consumerSecret string, tokenSecret string) string {
	return PercentEncode(consumerSecret) + "&" + PercentEncode(tokenSecret)
}

func Signature(key string, baseString string) string {
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(baseString))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Sign returns the Authorization header value for a request. Entries in
// params whose key starts with "oauth_" (oauth_callback, oauth_verifier)
// are protocol parameters and are carried in the header; the remaining
// entries are signed but must be sent by the caller in the query or body.
func (s *Signer) Sign(method string, rawURL string, token Token, params url.Values) (string, error) {
	if s.Consumer.Key == "" || s.Consumer.Secret == "" {
		return "", &ConfigurationError{Reason: "consumer credentials are not set"}
	}
	if err := checkParams(params); err != nil {
		return "", err
	}

	oauthParams := url.Values{}
	oauthParams.Set(paramConsumerKey, s.Consumer.Key)
	oauthParams.Set(paramNonce, s.nonce())
	oauthParams.Set(paramSignatureMethod, SignatureMethod)
	oauthParams.Set(paramTimestamp, strconv.FormatInt(s.now().Unix(), 10))
	if token.Token != "" {
		oauthParams.Set(paramToken, token.Token)
	}
	oauthParams.Set(paramVersion, Version)

	all := url.Values{}
	for key, values := range params {
		if strings.HasPrefix(key, oauthPrefix) {
			oauthParams[key] = values
		}
		all[key] = append(all[key], values...)
	}
	for key, values := range oauthParams {
		if _, exists := params[key]; exists {
			continue
		}
		all[key] = append(all[key], values...)
	}

	baseString, err := SignatureBaseString(method, rawURL, all)
	if err != nil {
		return "", err
	}
	oauthParams.Set(paramSignature, Signature(SigningKey(s.Consumer.Secret, token.Secret), baseString))

	return authorizationHeader(oauthParams), nil
}

func authorizationHeader(oauthParams url.Values) string {
	pairs := encodedPairs(oauthParams)
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.key + `="` + p.value + `"`
	}
	return "OAuth " + strings.Join(parts, ",")
}

// SignRequest signs req with token and sets its Authorization header. The
// query string and, for form encoded requests, the body are signed.
func (s *Signer) SignRequest(req *http.Request, token Token) error {
	params := url.Values{}
	if req.Body != nil && req.Body != http.NoBody && isFormEncoded(req.Header.Get("Content-Type")) {
		body, err := readBody(req)
		if err != nil {
			return err
		}
		form, err := url.ParseQuery(string(body))
		if err != nil {
			return &EncodingError{Key: "body", Reason: err.Error()}
		}
		params = form
	}
	header, err := s.Sign(req.Method, req.URL.String(), token, params)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", header)
	return nil
}

func isFormEncoded(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/x-www-form-urlencoded"
}

// readBody consumes the request body and puts back a fresh reader so the
// request can still be sent.
func readBody(req *http.Request) ([]byte, error) {
	body, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read request body")
	}
	req.Body = io.NopCloser(bytes.NewReader(body))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	return body, nil
}

func (s *Signer) nonce() string {
	if s.Nonce != nil {
		return s.Nonce()
	}
	return randomNonce()
}

func (s *Signer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

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

package etrade

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gitlab.com/crankykernel/etrade/log"
	"gitlab.com/crankykernel/etrade/oauth"
)

const (
	LiveBaseURL    = "https://api.etrade.com"
	SandboxBaseURL = "https://apisb.etrade.com"
)

const maxResponseSize = 8 << 20

// Authorizer signs outgoing API requests. *oauth.Session implements it.
type Authorizer interface {
	AuthorizeRequest(req *http.Request) error
}

// Client calls the E*Trade v1 REST API on behalf of one authorized user.
type Client struct {
	httpClient *http.Client
	baseURL    string
	auth       Authorizer
	ids        *IdGenerator
}

type Option func(c *Client)

// WithSandbox selects the sandbox environment, which returns canned data.
func WithSandbox(sandbox bool) Option {
	return func(c *Client) {
		if sandbox {
			c.baseURL = SandboxBaseURL
		} else {
			c.baseURL = LiveBaseURL
		}
	}
}

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

func NewClient(auth Authorizer, options ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    LiveBaseURL,
		auth:       auth,
		ids:        NewIdGenerator(),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) get(ctx context.Context, path string, query url.Values, result interface{}) error {
	return c.do(ctx, http.MethodGet, path, query, nil, result)
}

func (c *Client) post(ctx context.Context, path string, body interface{}, result interface{}) error {
	return c.do(ctx, http.MethodPost, path, nil, body, result)
}

func (c *Client) put(ctx context.Context, path string, body interface{}, result interface{}) error {
	return c.do(ctx, http.MethodPut, path, nil, body, result)
}

func isJSONPath(path string) bool {
	return strings.HasSuffix(path, ".json")
}

func (c *Client) do(ctx context.Context, method string, path string, query url.Values, body interface{}, result interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return errors.Wrapf(err, "failed to encode %s request", path)
		}
		reader = bytes.NewReader(buf)
	}

	request, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s request", path)
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if isJSONPath(path) {
		request.Header.Set("Accept", "application/json")
	} else {
		request.Header.Set("Accept", "application/xml")
	}

	if err := c.auth.AuthorizeRequest(request); err != nil {
		return err
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return &oauth.TransportError{Op: method, URL: c.baseURL + path, Err: err}
	}
	defer response.Body.Close()

	buf, err := io.ReadAll(io.LimitReader(response.Body, maxResponseSize))
	if err != nil {
		return &oauth.TransportError{Op: method, URL: c.baseURL + path, Err: err}
	}

	log.WithFields(log.Fields{
		"method": method,
		"path":   path,
		"status": response.StatusCode,
	}).Debugf("E*Trade API request.")

	if response.StatusCode < 200 || response.StatusCode > 299 {
		apiErr := parseAPIError(response.StatusCode, buf)
		if response.StatusCode == http.StatusUnauthorized {
			return &oauth.AuthenticationError{
				StatusCode: response.StatusCode,
				Problem:    apiErr.Problem,
				Reason:     apiErr.Message,
			}
		}
		return apiErr
	}

	if result == nil || response.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(buf)) == 0 {
		return nil
	}

	if isJSONPath(path) {
		err = json.Unmarshal(buf, result)
	} else {
		err = xml.Unmarshal(buf, result)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to decode %s response", path)
	}
	return nil
}

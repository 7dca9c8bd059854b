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
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
)

// APIError is a non-2xx response from the API other than 401, which is
// reported as an *oauth.AuthenticationError.
type APIError struct {
	StatusCode int    `json:"-" xml:"-"`
	Code       int    `json:"code" xml:"code"`
	Message    string `json:"message" xml:"message"`
	Problem    string `json:"-" xml:"-"`
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("etrade: api error %d (status %d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("etrade: api error (status %d): %s", e.StatusCode, e.Message)
}

func parseAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode}

	var jsonError struct {
		Error APIError `json:"Error"`
	}
	if err := json.Unmarshal(body, &jsonError); err == nil && jsonError.Error.Message != "" {
		apiErr.Code = jsonError.Error.Code
		apiErr.Message = jsonError.Error.Message
		return apiErr
	}

	var xmlError struct {
		XMLName xml.Name `xml:"Error"`
		Code    int      `xml:"code"`
		Message string   `xml:"message"`
	}
	if err := xml.Unmarshal(body, &xmlError); err == nil && xmlError.Message != "" {
		apiErr.Code = xmlError.Code
		apiErr.Message = xmlError.Message
		return apiErr
	}

	text := strings.TrimSpace(string(body))
	if values, err := url.ParseQuery(text); err == nil && values.Get("oauth_problem") != "" {
		apiErr.Problem = values.Get("oauth_problem")
		apiErr.Message = apiErr.Problem
		return apiErr
	}
	if len(text) > 200 {
		text = text[:200]
	}
	if text == "" {
		text = "no response body"
	}
	apiErr.Message = text
	return apiErr
}

// ValidationError is returned before any network I/O when request
// parameters are malformed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("etrade: invalid %s: %s", e.Field, e.Reason)
}

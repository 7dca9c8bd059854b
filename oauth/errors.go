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
	"fmt"
)

// ConfigurationError reports missing or unusable consumer credentials.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("oauth: configuration error: %s", e.Reason)
}

// EncodingError reports a request parameter that cannot be signed.
type EncodingError struct {
	Key    string
	Reason string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("oauth: cannot encode parameter %q: %s", e.Key, e.Reason)
}

// AuthenticationError is returned when the provider rejects a signature,
// token or verifier. Problem holds the provider's oauth_problem value when
// one was sent.
type AuthenticationError struct {
	StatusCode int
	Problem    string
	Reason     string
}

func (e *AuthenticationError) Error() string {
	msg := "oauth: authentication failed"
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	}
	if e.Problem != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Problem)
	}
	return msg
}

// InvalidStateError is returned when a handshake step is called out of order.
type InvalidStateError struct {
	Op    string
	State State
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("oauth: %s not allowed in state %s", e.Op, e.State)
}

// TransportError wraps a network level failure. The underlying error is
// available through Cause and Unwrap.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("oauth: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Cause() error {
	return e.Err
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

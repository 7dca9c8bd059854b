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
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/pkg/errors"
	"gitlab.com/crankykernel/etrade/auth"
	"gitlab.com/crankykernel/etrade/config"
	"gitlab.com/crankykernel/etrade/log"
)

const defaultUsername = "etrade"

type Authenticator struct {
	lock     sync.RWMutex
	username string
	password string
}

// NewAuthenticator checks basic auth against username and an argon2
// encoded password.
func NewAuthenticator(username string, encodedPassword string) *Authenticator {
	return &Authenticator{
		username: username,
		password: encodedPassword,
	}
}

// NewAuthenticatorFromConfig loads the server credentials from the
// configuration. When no password is configured one is generated, stored
// encoded and printed to out once.
func NewAuthenticatorFromConfig(out io.Writer) (*Authenticator, error) {
	m := &Authenticator{}

	m.username = config.GetString(config.KeyServerUsername)
	if m.username == "" {
		m.username = defaultUsername
		config.Set(config.KeyServerUsername, m.username)
	}

	m.password = config.GetString(config.KeyServerPassword)
	if m.password == "" {
		password, err := auth.GeneratePassword(32)
		if err != nil {
			return nil, errors.Wrap(err, "failed to generate password")
		}
		encoded, err := auth.EncodePassword(password)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode generated password")
		}
		m.password = encoded
		config.Set(config.KeyServerPassword, encoded)
		if err := config.WriteConfig(); err != nil {
			return nil, err
		}
		fmt.Fprintf(out, `
A username and password have been generated for you. Please take note of them.
This is the one and only time the password will be available.

Username: %s
Password: %s

`, m.username, password)
	}

	return m, nil
}

// Reload picks up credentials changed in the configuration.
func (m *Authenticator) Reload() {
	username := config.GetString(config.KeyServerUsername)
	password := config.GetString(config.KeyServerPassword)
	if username == "" || password == "" {
		return
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	m.username = username
	m.password = password
}

func (m *Authenticator) check(username string, password string) bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if username != m.username {
		return false
	}
	ok, err := auth.CheckPassword(password, m.password)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"username": username,
		}).Errorf("An error occurred while checking password for user")
		return false
	}
	return ok
}

// Middleware function, which will be called for each request
func (m *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if ok {
			if m.check(username, password) {
				next.ServeHTTP(w, r)
				return
			}
			log.WithField("username", username).Errorf("Login failed")
		}
		w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
		w.WriteHeader(http.StatusUnauthorized)
	})
}

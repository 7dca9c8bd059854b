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

package cmd

import (
	"encoding/json"
	"io"
	"path/filepath"

	"github.com/pkg/errors"
	"gitlab.com/crankykernel/etrade/config"
	"gitlab.com/crankykernel/etrade/db"
	"gitlab.com/crankykernel/etrade/etrade"
	"gitlab.com/crankykernel/etrade/oauth"
	"gopkg.in/yaml.v2"
)

const (
	outputJson = "json"
	outputYaml = "yaml"
)

const journalFilename = "etrade.db"

// newSession builds a session from the configured consumer credentials,
// restoring the saved access token if there is one.
func newSession() (*oauth.Session, error) {
	credentials, err := config.Credentials()
	if err != nil {
		return nil, err
	}
	options := []oauth.Option{}
	if token := config.AccessToken(); !token.IsEmpty() {
		options = append(options, oauth.WithAccessToken(token))
	}
	return oauth.NewSession(credentials, options...)
}

// newClient returns a client over the saved access token.
func newClient() (*etrade.Client, *oauth.Session, error) {
	session, err := newSession()
	if err != nil {
		return nil, nil, err
	}
	if session.State() != oauth.AccessTokenObtained {
		return nil, nil, errors.New("not logged in, run: etrade auth login")
	}
	return etrade.NewClient(session, etrade.WithSandbox(config.Sandbox())), session, nil
}

func openJournal() (*db.DB, error) {
	return db.Open(filepath.Join(rootFlags.DataDirectory, journalFilename))
}

// writeOutput renders val in the selected output format. YAML goes
// through JSON first so field names match the JSON output.
func writeOutput(w io.Writer, val interface{}) error {
	buf, err := json.MarshalIndent(val, "", "  ")
	if err != nil {
		return err
	}
	if rootFlags.Output != outputYaml {
		_, err = w.Write(append(buf, '\n'))
		return err
	}
	var generic interface{}
	if err := yaml.Unmarshal(buf, &generic); err != nil {
		return err
	}
	out, err := yaml.Marshal(generic)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

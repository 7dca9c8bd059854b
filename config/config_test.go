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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/crankykernel/etrade/oauth"
)

func writeFile(t *testing.T, filename string, content string) {
	require.Nil(t, os.WriteFile(filename, []byte(content), 0600))
}

func TestInitAndPersistAccessToken(t *testing.T) {
	assert := assert.New(t)
	viper.Reset()
	defer viper.Reset()
	defer os.Unsetenv("ETRADE_SANDBOX")

	directory := t.TempDir()
	writeFile(t, filepath.Join(directory, "etrade.yaml"), `etrade:
  consumer:
    key: CK
    secret: CS
`)
	writeFile(t, filepath.Join(directory, ".env"), "ETRADE_SANDBOX=true\n")

	require.Nil(t, Init(directory))
	credentials, err := Credentials()
	assert.Nil(err)
	assert.Equal(oauth.Credentials{Key: "CK", Secret: "CS"}, credentials)
	assert.True(Sandbox())
	assert.True(AccessToken().IsEmpty())

	channel := Subscribe()
	defer Unsubscribe(channel)

	SetAccessToken(oauth.Token{Token: "AT", Secret: "ATS"})
	require.Nil(t, WriteConfig())
	select {
	case <-channel:
	default:
		t.Fatal("subscriber was not notified")
	}

	info, err := os.Stat(Filename())
	require.Nil(t, err)
	assert.Equal(os.FileMode(0600), info.Mode().Perm())

	viper.Reset()
	require.Nil(t, Init(directory))
	assert.Equal(oauth.Token{Token: "AT", Secret: "ATS"}, AccessToken())
	assert.Equal("CK", GetString(KeyConsumerKey))
}

func TestMissingCredentials(t *testing.T) {
	assert := assert.New(t)
	viper.Reset()
	defer viper.Reset()

	require.Nil(t, Init(t.TempDir()))
	_, err := Credentials()
	assert.IsType(&oauth.ConfigurationError{}, err)
	assert.Contains(err.Error(), "ETRADE_CONSUMER_KEY")

	Set(KeyConsumerKey, "CK")
	_, err = Credentials()
	assert.IsType(&oauth.ConfigurationError{}, err)
}

func TestUnsubscribedChannelsAreNotNotified(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	require.Nil(t, Init(t.TempDir()))

	channel := Subscribe()
	Unsubscribe(channel)
	require.Nil(t, WriteConfig())
	select {
	case <-channel:
		t.Fatal("unsubscribed channel was notified")
	default:
	}
}

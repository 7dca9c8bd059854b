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
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gitlab.com/crankykernel/etrade/log"
	"gitlab.com/crankykernel/etrade/oauth"
)

const (
	ConfigName = "etrade"

	KeyConsumerKey    = "etrade.consumer.key"
	KeyConsumerSecret = "etrade.consumer.secret"
	KeySandbox        = "etrade.sandbox"
	KeyOAuthToken     = "etrade.oauth.token"
	KeyOAuthSecret    = "etrade.oauth.secret"
	KeyServerUsername = "server.username"
	KeyServerPassword = "server.password"
)

var subscribers map[chan bool]bool
var lock sync.RWMutex
var dataDirectory = "."

func init() {
	subscribers = make(map[chan bool]bool)
}

// Init points the configuration at dataDirectory and loads etrade.yaml
// and .env from it. Missing files are not an error. Environment variables
// named after the keys, such as ETRADE_CONSUMER_KEY, override the file.
func Init(directory string) error {
	lock.Lock()
	defer lock.Unlock()

	dataDirectory = directory
	viper.AddConfigPath(directory)
	viper.SetConfigName(ConfigName)
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	envFile := filepath.Join(directory, ".env")
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to load %s", envFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Debugf("No configuration file found in %s.", directory)
			return nil
		}
		return errors.Wrap(err, "failed to read configuration")
	}
	log.Debugf("Using config file: %s", viper.ConfigFileUsed())
	return nil
}

func Filename() string {
	return filepath.Join(dataDirectory, ConfigName+".yaml")
}

// Subscribe returns a channel that receives a value each time the
// configuration is written.
func Subscribe() chan bool {
	lock.Lock()
	defer lock.Unlock()
	channel := make(chan bool, 1)
	subscribers[channel] = true
	return channel
}

func Unsubscribe(channel chan bool) {
	lock.Lock()
	defer lock.Unlock()
	delete(subscribers, channel)
}

func WriteConfig() error {
	lock.Lock()
	filename := Filename()
	log.Infof("Writing configuration file %s.", filename)
	err := viper.WriteConfigAs(filename)
	lock.Unlock()
	if err != nil {
		return errors.Wrapf(err, "failed to write %s", filename)
	}
	if err := os.Chmod(filename, 0600); err != nil {
		log.WithError(err).Warnf("Failed to restrict permissions of %s.", filename)
	}

	lock.RLock()
	defer lock.RUnlock()
	for channel := range subscribers {
		select {
		case channel <- true:
		default:
		}
	}
	return nil
}

func Set(key string, val interface{}) {
	lock.Lock()
	defer lock.Unlock()
	viper.Set(key, val)
}

func GetString(key string) string {
	lock.RLock()
	defer lock.RUnlock()
	return viper.GetString(key)
}

func GetBool(key string) bool {
	lock.RLock()
	defer lock.RUnlock()
	return viper.GetBool(key)
}

// Credentials returns the configured consumer key and secret.
func Credentials() (oauth.Credentials, error) {
	credentials := oauth.Credentials{
		Key:    GetString(KeyConsumerKey),
		Secret: GetString(KeyConsumerSecret),
	}
	if credentials.Key == "" || credentials.Secret == "" {
		return credentials, &oauth.ConfigurationError{
			Reason: "consumer key and secret must be set in " + Filename() +
				" or with ETRADE_CONSUMER_KEY and ETRADE_CONSUMER_SECRET",
		}
	}
	return credentials, nil
}

func Sandbox() bool {
	return GetBool(KeySandbox)
}

// AccessToken returns the saved access token, which is empty if none has
// been saved.
func AccessToken() oauth.Token {
	return oauth.Token{
		Token:  GetString(KeyOAuthToken),
		Secret: GetString(KeyOAuthSecret),
	}
}

// SetAccessToken stores token; an empty token clears the saved one.
// WriteConfig must be called to persist it.
func SetAccessToken(token oauth.Token) {
	Set(KeyOAuthToken, token.Token)
	Set(KeyOAuthSecret, token.Secret)
}

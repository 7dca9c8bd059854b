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

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
)

const (
	TYPE_ARGON2ID = "argon2id"
)

const PASSWORD_TYPE = TYPE_ARGON2ID

const SALT_SIZE = 16

const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

var alphanumerics = []byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ1234567890")

func genSalt() ([]byte, error) {
	salt := make([]byte, SALT_SIZE)
	_, err := rand.Read(salt)
	return salt, err
}

func hash(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

func CheckPassword(password string, encodedPassword string) (bool, error) {
	passwordType, salt, passwordHash, err := DecodePassword(encodedPassword)
	if err != nil {
		return false, err
	}
	switch passwordType {
	case TYPE_ARGON2ID:
		if subtle.ConstantTimeCompare(hash(password, salt), passwordHash) == 1 {
			return true, nil
		}
	default:
		return false, fmt.Errorf("unsupported password type %q", passwordType)
	}
	return false, nil
}

// DecodePassword splits an encoded password of the form type$salt$hash.
func DecodePassword(input string) (passwordType string, salt []byte, password []byte, err error) {
	parts := strings.Split(input, "$")
	if len(parts) != 3 {
		return "", nil, nil, errors.New("invalid encoded password")
	}
	passwordType = parts[0]
	if salt, err = hex.DecodeString(parts[1]); err != nil {
		return "", nil, nil, errors.Wrap(err, "invalid password salt")
	}
	if password, err = hex.DecodeString(parts[2]); err != nil {
		return "", nil, nil, errors.Wrap(err, "invalid password hash")
	}
	return passwordType, salt, password, nil
}

func EncodePassword(password string) (string, error) {
	salt, err := genSalt()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s$%s$%s",
		TYPE_ARGON2ID, hex.EncodeToString(salt), hex.EncodeToString(hash(password, salt))), nil
}

// GeneratePassword returns a random alphanumeric password.
func GeneratePassword(size int) (string, error) {
	b := make([]byte, size)
	max := big.NewInt(int64(len(alphanumerics)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = alphanumerics[n.Int64()]
	}
	return string(b), nil
}

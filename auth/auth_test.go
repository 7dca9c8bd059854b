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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodePassword(t *testing.T) {
	assert := assert.New(t)

	encoded, err := EncodePassword("password")
	assert.Nil(err)

	passwordType, salt, password, err := DecodePassword(encoded)
	assert.Nil(err)
	assert.Equal(PASSWORD_TYPE, passwordType)
	assert.Len(salt, SALT_SIZE)
	assert.Len(password, argonKeyLen)

	ok, err := CheckPassword("password", encoded)
	assert.Nil(err)
	assert.True(ok)

	ok, err = CheckPassword("password1", encoded)
	assert.Nil(err)
	assert.False(ok)

	other, err := EncodePassword("password")
	assert.Nil(err)
	assert.NotEqual(encoded, other)
}

func TestDecodeInvalidPassword(t *testing.T) {
	assert := assert.New(t)

	for _, encoded := range []string{"", "password", "argon2id$zz$00", "argon2id$00$zz"} {
		ok, err := CheckPassword("password", encoded)
		assert.NotNil(err, encoded)
		assert.False(ok)
	}

	ok, err := CheckPassword("password", "bcrypt$00$00")
	assert.NotNil(err)
	assert.False(ok)
}

func TestGeneratePassword(t *testing.T) {
	assert := assert.New(t)
	first, err := GeneratePassword(32)
	assert.Nil(err)
	assert.Len(first, 32)
	assert.Regexp("^[a-zA-Z0-9]+$", first)

	second, err := GeneratePassword(32)
	assert.Nil(err)
	assert.NotEqual(first, second)
}

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
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid"
)

// E*Trade rejects client order ids longer than 20 characters.
const maxClientOrderIDLength = 20

type IdGenerator struct {
	lock    sync.Mutex
	entropy *rand.Rand
}

func NewIdGenerator() *IdGenerator {
	return &IdGenerator{
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (g *IdGenerator) GetID(timestamp *time.Time) (ulid.ULID, error) {
	if timestamp == nil {
		_timestamp := time.Now()
		timestamp = &_timestamp
	}
	g.lock.Lock()
	defer g.lock.Unlock()
	return ulid.New(ulid.Timestamp(*timestamp), g.entropy)
}

// ClientOrderID returns the trailing 20 characters of a new ULID: the low
// time digits and all 80 bits of entropy.
func (g *IdGenerator) ClientOrderID() (string, error) {
	id, err := g.GetID(nil)
	if err != nil {
		return "", err
	}
	s := id.String()
	return s[len(s)-maxClientOrderIDLength:], nil
}

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
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type SecurityType string

const (
	SecurityTypeEquity     SecurityType = "EQ"
	SecurityTypeOption     SecurityType = "OPTN"
	SecurityTypeMutualFund SecurityType = "MF"
	SecurityTypeMoneyMkt   SecurityType = "MMF"
)

type Product struct {
	Symbol       string           `json:"symbol"`
	SecurityType SecurityType     `json:"securityType,omitempty"`
	CallPut      string           `json:"callPut,omitempty"`
	ExpiryYear   int              `json:"expiryYear,omitempty"`
	ExpiryMonth  int              `json:"expiryMonth,omitempty"`
	ExpiryDay    int              `json:"expiryDay,omitempty"`
	StrikePrice  *decimal.Decimal `json:"strikePrice,omitempty"`
}

// Message is an informational or warning message attached to a response.
type Message struct {
	Description string `json:"description"`
	Code        int    `json:"code"`
	Type        string `json:"type"`
}

type Messages struct {
	Message []Message `json:"Message"`
}

func (m Messages) String() string {
	parts := make([]string, 0, len(m.Message))
	for _, message := range m.Message {
		parts = append(parts, message.Description)
	}
	return strings.Join(parts, "; ")
}

// checkEnum reports a ValidationError unless value is empty or one of
// allowed.
func checkEnum(field string, value string, allowed ...string) error {
	if value == "" {
		return nil
	}
	for _, candidate := range allowed {
		if value == candidate {
			return nil
		}
	}
	return &ValidationError{
		Field:  field,
		Reason: fmt.Sprintf("%q is not one of %s", value, strings.Join(allowed, ", ")),
	}
}

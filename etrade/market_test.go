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
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookUpProduct(t *testing.T) {
	assert := assert.New(t)
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"GET /v1/market/lookup/apple inc.json": respond(`{"LookupResponse":{"Data":[
			{"symbol":"AAPL","description":"APPLE INC COM","type":"EQUITY"}]}}`),
	})
	defer ts.Close()
	client := newTestClient(t, ts)

	results, err := client.LookUpProduct(context.Background(), "apple inc")
	require.Nil(t, err)
	require.Len(t, results, 1)
	assert.Equal("AAPL", results[0].Symbol)

	_, err = client.LookUpProduct(context.Background(), " ")
	assert.IsType(&ValidationError{}, err)
}

func TestGetQuote(t *testing.T) {
	assert := assert.New(t)
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"GET /v1/market/quote/AAPL,GOOG:2018:8:17:PUT:1000.json": respond(`{"QuoteResponse":{"QuoteData":[
			{"dateTimeUTC":1536000000,"quoteStatus":"REALTIME","ahFlag":"false",
			 "Product":{"symbol":"AAPL","securityType":"EQ"},
			 "All":{"lastTrade":227.63,"bid":227.6,"ask":227.7,"totalVolume":1000,"companyName":"APPLE INC COM"}},
			{"Product":{"symbol":"GOOG","securityType":"OPTN"},"Intraday":{"lastTrade":12.5}}]}}`),
	})
	defer ts.Close()
	client := newTestClient(t, ts)

	skip := true
	quotes, err := client.GetQuote(context.Background(), []string{"AAPL", " ", "GOOG:2018:8:17:PUT:1000"},
		QuoteOptions{DetailFlag: "all", RequireEarningsDate: true, SkipMiniOptionsCheck: &skip})
	require.Nil(t, err)
	require.Len(t, quotes, 2)
	assert.Equal("APPLE INC COM", quotes[0].All.CompanyName)
	last, ok := quotes[0].LastTrade()
	assert.True(ok)
	assert.True(last.Equal(decimal.RequireFromString("227.63")))
	last, ok = quotes[1].LastTrade()
	assert.True(ok)
	assert.Equal("12.5", last.String())

	assert.Equal(map[string]string{
		"detailFlag":           "ALL",
		"requireEarningsDate":  "true",
		"skipMiniOptionsCheck": "true",
	}, ts.last().Query)
}

func TestGetQuoteLimitsSymbols(t *testing.T) {
	assert := assert.New(t)
	symbols := make([]string, 30)
	for i := range symbols {
		symbols[i] = fmt.Sprintf("S%d", i)
	}
	expectedPath := "/v1/market/quote/" + strings.Join(symbols[:25], ",") + ".json"
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"GET " + expectedPath: respond(`{"QuoteResponse":{"QuoteData":[],
			"Messages":{"Message":[{"description":"S3 is not a valid symbol","code":1002,"type":"WARNING"}]}}}`),
	})
	defer ts.Close()
	client := newTestClient(t, ts)

	quotes, err := client.GetQuote(context.Background(), symbols, QuoteOptions{})
	assert.Nil(err)
	assert.Empty(quotes)
	assert.Equal(expectedPath, ts.last().Path)
	assert.Empty(ts.last().Query)
}

func TestGetQuoteValidation(t *testing.T) {
	assert := assert.New(t)
	ts := newTestServer(t, nil)
	defer ts.Close()
	client := newTestClient(t, ts)

	_, err := client.GetQuote(context.Background(), nil, QuoteOptions{})
	assert.IsType(&ValidationError{}, err)
	_, err = client.GetQuote(context.Background(), []string{"AAPL"}, QuoteOptions{DetailFlag: "EVERYTHING"})
	assert.IsType(&ValidationError{}, err)
	assert.Empty(ts.requests)
}

const expireDatesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<OptionExpireDateResponse>
  <ExpirationDate><year>2018</year><month>9</month><day>21</day><expiryType>MONTHLY</expiryType></ExpirationDate>
  <ExpirationDate><year>2018</year><month>8</month><day>17</day><expiryType>MONTHLY</expiryType></ExpirationDate>
  <ExpirationDate><year>2018</year><month>8</month><day>24</day><expiryType>WEEKLY</expiryType></ExpirationDate>
</OptionExpireDateResponse>`

func TestGetOptionExpireDates(t *testing.T) {
	assert := assert.New(t)
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"GET /v1/market/optionexpiredate": respond(expireDatesXML),
	})
	defer ts.Close()
	client := newTestClient(t, ts)

	dates, err := client.GetOptionExpireDates(context.Background(), "GOOG")
	require.Nil(t, err)
	require.Len(t, dates, 3)
	assert.Equal("2018-08-17", dates[0].String())
	assert.Equal("2018-08-24", dates[1].String())
	assert.Equal("WEEKLY", dates[1].ExpiryType)
	assert.Equal("2018-09-21", dates[2].String())
	assert.Equal(time.Date(2018, 9, 21, 0, 0, 0, 0, time.UTC), dates[2].Time())

	request := ts.last()
	assert.Equal("application/xml", request.Accept)
	assert.Equal(map[string]string{"symbol": "GOOG", "expiryType": "ALL"}, request.Query)
}

func TestGetOptionChains(t *testing.T) {
	assert := assert.New(t)
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"GET /v1/market/optionchains.json": respond(`{"OptionChainResponse":{"nearPrice":1200,
			"SelectedED":{"year":2018,"month":8,"day":17},"OptionPair":[
			{"Call":{"symbol":"GOOG","optionType":"CALL","strikePrice":1200,"bid":10.5,
			 "OptionGreeks":{"delta":0.51}},
			 "Put":{"symbol":"GOOG","optionType":"PUT","strikePrice":1200,"ask":11.25}},
			{"Call":{"symbol":"GOOG","optionType":"CALL","strikePrice":1210}}]}}`),
	})
	defer ts.Close()
	client := newTestClient(t, ts)

	skip := false
	chain, err := client.GetOptionChains(context.Background(), "GOOG", OptionChainOptions{
		Expiry:          time.Date(2018, 8, 7, 0, 0, 0, 0, time.UTC),
		ChainType:       ChainTypePut,
		StrikePriceNear: decimal.NewFromInt(1200),
		NoOfStrikes:     5,
		OptionCategory:  OptionCategoryStandard,
		PriceType:       OptionPriceTypeAll,
		SkipAdjusted:    &skip,
	})
	require.Nil(t, err)
	assert.Len(chain.Calls(), 2)
	assert.Len(chain.Puts(), 1)
	assert.Equal("0.51", chain.OptionPairs[0].Call.OptionGreeks.Delta.String())
	assert.Equal("2018-08-17", chain.SelectedED.String())

	assert.Equal(map[string]string{
		"symbol":          "GOOG",
		"expiryYear":      "2018",
		"expiryMonth":     "08",
		"expiryDay":       "07",
		"chainType":       "PUT",
		"strikePriceNear": "1200.00",
		"noOfStrikes":     "5",
		"optionCategory":  "STANDARD",
		"priceType":       "ALL",
		"skipAdjusted":    "false",
	}, ts.last().Query)

	invalid := []OptionChainOptions{
		{ChainType: "STRADDLE"},
		{OptionCategory: "JUMBO"},
		{PriceType: "atmn"},
		{NoOfStrikes: -1},
		{StrikePriceNear: decimal.NewFromInt(-5)},
	}
	for _, options := range invalid {
		_, err := client.GetOptionChains(context.Background(), "GOOG", options)
		assert.IsType(&ValidationError{}, err)
	}
	_, err = client.GetOptionChains(context.Background(), "", OptionChainOptions{})
	assert.IsType(&ValidationError{}, err)
}

func TestGetAllOptionChains(t *testing.T) {
	assert := assert.New(t)
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"GET /v1/market/optionexpiredate": respond(expireDatesXML),
		"GET /v1/market/optionchains.json": func(w http.ResponseWriter, r *http.Request) {
			strike := r.URL.Query().Get("expiryDay")
			fmt.Fprintf(w, `{"OptionChainResponse":{"OptionPair":[
				{"Call":{"symbol":"GOOG","strikePrice":%s},"Put":{"symbol":"GOOG","strikePrice":%s}}]}}`,
				strike, strike)
		},
	})
	defer ts.Close()
	client := newTestClient(t, ts)

	chains, err := client.GetAllOptionChains(context.Background(), "GOOG")
	require.Nil(t, err)
	require.Len(t, chains, 3)
	assert.Equal("2018-08-17", chains[0].Expiry.String())
	assert.Equal("17", chains[0].Calls[0].StrikePrice.String())
	assert.Equal("24", chains[1].Puts[0].StrikePrice.String())
	assert.Equal("21", chains[2].Puts[0].StrikePrice.String())
	assert.Len(ts.requests, 4)
}

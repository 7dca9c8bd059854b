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
	"encoding/xml"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gitlab.com/crankykernel/etrade/log"
)

// E*Trade answers at most 25 symbols per quote request.
const maxQuoteSymbols = 25

type LookupResult struct {
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

// LookUpProduct searches by full or partial company name. E*Trade
// abbreviates common words (company, industry, systems) and ignores most
// punctuation.
func (c *Client) LookUpProduct(ctx context.Context, search string) ([]LookupResult, error) {
	search = strings.TrimSpace(search)
	if search == "" {
		return nil, &ValidationError{Field: "search", Reason: "must not be empty"}
	}
	var response struct {
		LookupResponse struct {
			Data []LookupResult `json:"Data"`
		} `json:"LookupResponse"`
	}
	path := "/v1/market/lookup/" + url.PathEscape(search) + ".json"
	if err := c.get(ctx, path, nil, &response); err != nil {
		return nil, err
	}
	return response.LookupResponse.Data, nil
}

type DetailFlag string

const (
	DetailFlagAll         DetailFlag = "ALL"
	DetailFlagFundamental DetailFlag = "FUNDAMENTAL"
	DetailFlagIntraday    DetailFlag = "INTRADAY"
	DetailFlagOptions     DetailFlag = "OPTIONS"
	DetailFlagWeek52      DetailFlag = "WEEK_52"
	DetailFlagMutualFund  DetailFlag = "MF_DETAIL"
)

type QuoteOptions struct {
	// Empty means ALL.
	DetailFlag          DetailFlag
	RequireEarningsDate bool
	// When true E*Trade does not check whether the symbol has mini options.
	SkipMiniOptionsCheck *bool
}

func (o QuoteOptions) query() (url.Values, error) {
	if err := checkEnum("detailFlag", strings.ToUpper(string(o.DetailFlag)),
		string(DetailFlagAll), string(DetailFlagFundamental), string(DetailFlagIntraday),
		string(DetailFlagOptions), string(DetailFlagWeek52), string(DetailFlagMutualFund)); err != nil {
		return nil, err
	}
	query := url.Values{}
	if o.DetailFlag != "" {
		query.Set("detailFlag", strings.ToUpper(string(o.DetailFlag)))
	}
	if o.RequireEarningsDate {
		query.Set("requireEarningsDate", "true")
	}
	if o.SkipMiniOptionsCheck != nil {
		query.Set("skipMiniOptionsCheck", strconv.FormatBool(*o.SkipMiniOptionsCheck))
	}
	return query, nil
}

type AllQuoteDetails struct {
	AdjustedFlag          bool            `json:"adjustedFlag"`
	Ask                   decimal.Decimal `json:"ask"`
	AskSize               int64           `json:"askSize"`
	Bid                   decimal.Decimal `json:"bid"`
	BidSize               int64           `json:"bidSize"`
	ChangeClose           decimal.Decimal `json:"changeClose"`
	ChangeClosePercentage decimal.Decimal `json:"changeClosePercentage"`
	CompanyName           string          `json:"companyName"`
	DaysToExpiration      int             `json:"daysToExpiration"`
	DividendYield         decimal.Decimal `json:"yield"`
	EPS                   decimal.Decimal `json:"eps"`
	EstEarnings           decimal.Decimal `json:"estEarnings"`
	High                  decimal.Decimal `json:"high"`
	High52                decimal.Decimal `json:"high52"`
	LastTrade             decimal.Decimal `json:"lastTrade"`
	Low                   decimal.Decimal `json:"low"`
	Low52                 decimal.Decimal `json:"low52"`
	MarketCap             decimal.Decimal `json:"marketCap"`
	NextEarningDate       string          `json:"nextEarningDate"`
	Open                  decimal.Decimal `json:"open"`
	PE                    decimal.Decimal `json:"pe"`
	PreviousClose         decimal.Decimal `json:"previousClose"`
	SymbolDescription     string          `json:"symbolDescription"`
	TotalVolume           int64           `json:"totalVolume"`
}

type IntradayQuoteDetails struct {
	Ask                   decimal.Decimal `json:"ask"`
	Bid                   decimal.Decimal `json:"bid"`
	ChangeClose           decimal.Decimal `json:"changeClose"`
	ChangeClosePercentage decimal.Decimal `json:"changeClosePercentage"`
	CompanyName           string          `json:"companyName"`
	High                  decimal.Decimal `json:"high"`
	LastTrade             decimal.Decimal `json:"lastTrade"`
	Low                   decimal.Decimal `json:"low"`
	TotalVolume           int64           `json:"totalVolume"`
}

type FundamentalQuoteDetails struct {
	CompanyName       string          `json:"companyName"`
	EPS               decimal.Decimal `json:"eps"`
	EstEarnings       decimal.Decimal `json:"estEarnings"`
	High52            decimal.Decimal `json:"high52"`
	LastTrade         decimal.Decimal `json:"lastTrade"`
	Low52             decimal.Decimal `json:"low52"`
	SymbolDescription string          `json:"symbolDescription"`
}

type Week52QuoteDetails struct {
	CompanyName       string          `json:"companyName"`
	High52            decimal.Decimal `json:"high52"`
	LastTrade         decimal.Decimal `json:"lastTrade"`
	Low52             decimal.Decimal `json:"low52"`
	PerClose          decimal.Decimal `json:"perClose"`
	SymbolDescription string          `json:"symbolDescription"`
	TotalVolume       int64           `json:"totalVolume"`
}

type OptionQuoteDetails struct {
	Ask              decimal.Decimal `json:"ask"`
	AskSize          int64           `json:"askSize"`
	Bid              decimal.Decimal `json:"bid"`
	BidSize          int64           `json:"bidSize"`
	CompanyName      string          `json:"companyName"`
	DaysToExpiration int             `json:"daysToExpiration"`
	LastTrade        decimal.Decimal `json:"lastTrade"`
	OpenInterest     int64           `json:"openInterest"`
	IntrinsicValue   decimal.Decimal `json:"intrinsicValue"`
	TimePremium      decimal.Decimal `json:"timePremium"`
	OptionMultiplier decimal.Decimal `json:"optionMultiplier"`
	ContractSize     decimal.Decimal `json:"contractSize"`
	OsiKey           string          `json:"osiKey"`
	Description      string          `json:"symbolDescription"`
}

type MutualFundQuoteDetails struct {
	SymbolDescription string          `json:"symbolDescription"`
	NetAssetValue     decimal.Decimal `json:"netAssetValue"`
	PublicOfferPrice  decimal.Decimal `json:"publicOfferPrice"`
	ChangeClose       decimal.Decimal `json:"changeClose"`
	PreviousClose     decimal.Decimal `json:"previousClose"`
	FundFamily        string          `json:"fundFamily"`
}

// Quote holds whichever detail block the DetailFlag selected.
type Quote struct {
	DateTime    string                   `json:"dateTime"`
	DateTimeUTC int64                    `json:"dateTimeUTC"`
	QuoteStatus string                   `json:"quoteStatus"`
	AhFlag      string                   `json:"ahFlag"`
	Product     Product                  `json:"Product"`
	All         *AllQuoteDetails         `json:"All,omitempty"`
	Intraday    *IntradayQuoteDetails    `json:"Intraday,omitempty"`
	Fundamental *FundamentalQuoteDetails `json:"Fundamental,omitempty"`
	Week52      *Week52QuoteDetails      `json:"Week52,omitempty"`
	Option      *OptionQuoteDetails      `json:"Option,omitempty"`
	MutualFund  *MutualFundQuoteDetails  `json:"MutualFund,omitempty"`
}

// LastTrade returns the last trade price from whichever detail block is
// present.
func (q *Quote) LastTrade() (decimal.Decimal, bool) {
	switch {
	case q.All != nil:
		return q.All.LastTrade, true
	case q.Intraday != nil:
		return q.Intraday.LastTrade, true
	case q.Fundamental != nil:
		return q.Fundamental.LastTrade, true
	case q.Week52 != nil:
		return q.Week52.LastTrade, true
	case q.Option != nil:
		return q.Option.LastTrade, true
	case q.MutualFund != nil:
		return q.MutualFund.NetAssetValue, true
	}
	return decimal.Zero, false
}

// GetQuote fetches quotes for equities or options. Option symbols have the
// form underlier:year:month:day:optionType:strikePrice. Only the first 25
// symbols are requested; the rest are dropped with a warning.
func (c *Client) GetQuote(ctx context.Context, symbols []string, options QuoteOptions) ([]Quote, error) {
	cleaned := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		symbol = strings.TrimSpace(symbol)
		if symbol != "" {
			cleaned = append(cleaned, symbol)
		}
	}
	if len(cleaned) == 0 {
		return nil, &ValidationError{Field: "symbols", Reason: "at least one symbol is required"}
	}
	if len(cleaned) > maxQuoteSymbols {
		log.WithFields(log.Fields{
			"requested": len(cleaned),
			"limit":     maxQuoteSymbols,
		}).Warnf("Too many quote symbols requested, only the first %d will be returned.", maxQuoteSymbols)
		cleaned = cleaned[:maxQuoteSymbols]
	}

	query, err := options.query()
	if err != nil {
		return nil, err
	}

	escaped := make([]string, len(cleaned))
	for i, symbol := range cleaned {
		escaped[i] = url.PathEscape(symbol)
	}
	path := "/v1/market/quote/" + strings.Join(escaped, ",") + ".json"

	var response struct {
		QuoteResponse struct {
			QuoteData []Quote  `json:"QuoteData"`
			Messages  Messages `json:"Messages"`
		} `json:"QuoteResponse"`
	}
	if err := c.get(ctx, path, query, &response); err != nil {
		return nil, err
	}
	if messages := response.QuoteResponse.Messages; len(messages.Message) > 0 {
		log.WithFields(log.Fields{
			"symbols": strings.Join(cleaned, ","),
		}).Warnf("Quote response messages: %s", messages)
	}
	return response.QuoteResponse.QuoteData, nil
}

type ChainType string

const (
	ChainTypeCall    ChainType = "CALL"
	ChainTypePut     ChainType = "PUT"
	ChainTypeCallPut ChainType = "CALLPUT"
)

type OptionCategory string

const (
	OptionCategoryStandard OptionCategory = "STANDARD"
	OptionCategoryAll      OptionCategory = "ALL"
	OptionCategoryMini     OptionCategory = "MINI"
)

type OptionPriceType string

const (
	OptionPriceTypeAtTheMoney OptionPriceType = "ATNM"
	OptionPriceTypeAll        OptionPriceType = "ALL"
)

type OptionChainOptions struct {
	// Zero means the expiry closest to today.
	Expiry          time.Time
	ChainType       ChainType
	StrikePriceNear decimal.Decimal
	NoOfStrikes     int
	OptionCategory  OptionCategory
	PriceType       OptionPriceType
	IncludeWeekly   bool
	// Whether to include options adjusted after a corporate action.
	SkipAdjusted *bool
}

func (o OptionChainOptions) query(symbol string) (url.Values, error) {
	if strings.TrimSpace(symbol) == "" {
		return nil, &ValidationError{Field: "symbol", Reason: "must not be empty"}
	}
	if err := checkEnum("chainType", string(o.ChainType),
		string(ChainTypeCall), string(ChainTypePut), string(ChainTypeCallPut)); err != nil {
		return nil, err
	}
	if err := checkEnum("optionCategory", string(o.OptionCategory),
		string(OptionCategoryStandard), string(OptionCategoryAll), string(OptionCategoryMini)); err != nil {
		return nil, err
	}
	if err := checkEnum("priceType", string(o.PriceType),
		string(OptionPriceTypeAtTheMoney), string(OptionPriceTypeAll)); err != nil {
		return nil, err
	}
	if o.NoOfStrikes < 0 {
		return nil, &ValidationError{Field: "noOfStrikes", Reason: "must not be negative"}
	}
	if o.StrikePriceNear.IsNegative() {
		return nil, &ValidationError{Field: "strikePriceNear", Reason: "must not be negative"}
	}

	query := url.Values{}
	query.Set("symbol", strings.TrimSpace(symbol))
	if !o.Expiry.IsZero() {
		query.Set("expiryYear", fmt.Sprintf("%04d", o.Expiry.Year()))
		query.Set("expiryMonth", fmt.Sprintf("%02d", int(o.Expiry.Month())))
		query.Set("expiryDay", fmt.Sprintf("%02d", o.Expiry.Day()))
	}
	if !o.StrikePriceNear.IsZero() {
		query.Set("strikePriceNear", o.StrikePriceNear.StringFixed(2))
	}
	if o.NoOfStrikes > 0 {
		query.Set("noOfStrikes", strconv.Itoa(o.NoOfStrikes))
	}
	if o.ChainType != "" {
		query.Set("chainType", string(o.ChainType))
	}
	if o.OptionCategory != "" {
		query.Set("optionCategory", string(o.OptionCategory))
	}
	if o.PriceType != "" {
		query.Set("priceType", string(o.PriceType))
	}
	if o.IncludeWeekly {
		query.Set("includeWeekly", "true")
	}
	if o.SkipAdjusted != nil {
		query.Set("skipAdjusted", strconv.FormatBool(*o.SkipAdjusted))
	}
	return query, nil
}

type OptionGreeks struct {
	Rho          decimal.Decimal `json:"rho"`
	Vega         decimal.Decimal `json:"vega"`
	Theta        decimal.Decimal `json:"theta"`
	Delta        decimal.Decimal `json:"delta"`
	Gamma        decimal.Decimal `json:"gamma"`
	Iv           decimal.Decimal `json:"iv"`
	CurrentValue bool            `json:"currentValue"`
}

type OptionDetails struct {
	OptionCategory   string          `json:"optionCategory"`
	OptionRootSymbol string          `json:"optionRootSymbol"`
	TimeStamp        int64           `json:"timeStamp"`
	AdjustedFlag     bool            `json:"adjustedFlag"`
	DisplaySymbol    string          `json:"displaySymbol"`
	OptionType       string          `json:"optionType"`
	StrikePrice      decimal.Decimal `json:"strikePrice"`
	Symbol           string          `json:"symbol"`
	Bid              decimal.Decimal `json:"bid"`
	Ask              decimal.Decimal `json:"ask"`
	BidSize          int64           `json:"bidSize"`
	AskSize          int64           `json:"askSize"`
	InTheMoney       string          `json:"inTheMoney"`
	Volume           int64           `json:"volume"`
	OpenInterest     int64           `json:"openInterest"`
	NetChange        decimal.Decimal `json:"netChange"`
	LastPrice        decimal.Decimal `json:"lastPrice"`
	QuoteDetail      string          `json:"quoteDetail"`
	OsiKey           string          `json:"osiKey"`
	OptionGreeks     *OptionGreeks   `json:"OptionGreeks,omitempty"`
}

type OptionPair struct {
	Call *OptionDetails `json:"Call,omitempty"`
	Put  *OptionDetails `json:"Put,omitempty"`
}

type OptionChain struct {
	OptionPairs []OptionPair    `json:"OptionPair"`
	TimeStamp   int64           `json:"timeStamp"`
	QuoteType   string          `json:"quoteType"`
	NearPrice   decimal.Decimal `json:"nearPrice"`
	SelectedED  ExpirationDate  `json:"SelectedED"`
}

// Puts and Calls split the chain's pairs, skipping absent legs.
func (c *OptionChain) Puts() []OptionDetails {
	puts := []OptionDetails{}
	for _, pair := range c.OptionPairs {
		if pair.Put != nil {
			puts = append(puts, *pair.Put)
		}
	}
	return puts
}

func (c *OptionChain) Calls() []OptionDetails {
	calls := []OptionDetails{}
	for _, pair := range c.OptionPairs {
		if pair.Call != nil {
			calls = append(calls, *pair.Call)
		}
	}
	return calls
}

func (c *Client) GetOptionChains(ctx context.Context, symbol string, options OptionChainOptions) (*OptionChain, error) {
	query, err := options.query(symbol)
	if err != nil {
		return nil, err
	}
	var response struct {
		OptionChainResponse OptionChain `json:"OptionChainResponse"`
	}
	if err := c.get(ctx, "/v1/market/optionchains.json", query, &response); err != nil {
		return nil, err
	}
	return &response.OptionChainResponse, nil
}

type ExpirationDate struct {
	Year       int    `json:"year" xml:"year"`
	Month      int    `json:"month" xml:"month"`
	Day        int    `json:"day" xml:"day"`
	ExpiryType string `json:"expiryType,omitempty" xml:"expiryType"`
}

func (d ExpirationDate) Time() time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
}

func (d ExpirationDate) String() string {
	return d.Time().Format("2006-01-02")
}

// GetOptionExpireDates lists the expiry dates of the options on symbol,
// weekly and monthly, in ascending order. The XML form of the endpoint is
// used as the JSON form does not return the documented structure.
func (c *Client) GetOptionExpireDates(ctx context.Context, symbol string) ([]ExpirationDate, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, &ValidationError{Field: "symbol", Reason: "must not be empty"}
	}
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("expiryType", "ALL")

	var response struct {
		XMLName xml.Name         `xml:"OptionExpireDateResponse"`
		Dates   []ExpirationDate `xml:"ExpirationDate"`
	}
	if err := c.get(ctx, "/v1/market/optionexpiredate", query, &response); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"symbol": symbol,
		}).Errorf("Failed to get option expiry dates.")
		return nil, err
	}
	dates := response.Dates
	sort.SliceStable(dates, func(i, j int) bool {
		return dates[i].Time().Before(dates[j].Time())
	})
	return dates, nil
}

// ExpiryChain is the option chain for one expiry date.
type ExpiryChain struct {
	Expiry ExpirationDate  `json:"expiry"`
	Puts   []OptionDetails `json:"puts"`
	Calls  []OptionDetails `json:"calls"`
}

// GetAllOptionChains fetches the chain of every expiry date of symbol with
// default options, one request per date. It stops at the first error.
func (c *Client) GetAllOptionChains(ctx context.Context, symbol string) ([]ExpiryChain, error) {
	dates, err := c.GetOptionExpireDates(ctx, symbol)
	if err != nil {
		return nil, err
	}
	chains := make([]ExpiryChain, 0, len(dates))
	for _, date := range dates {
		chain, err := c.GetOptionChains(ctx, symbol, OptionChainOptions{Expiry: date.Time()})
		if err != nil {
			return nil, err
		}
		chains = append(chains, ExpiryChain{
			Expiry: date,
			Puts:   chain.Puts(),
			Calls:  chain.Calls(),
		})
	}
	return chains, nil
}

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
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type Account struct {
	AccountID       string `json:"accountId"`
	AccountIDKey    string `json:"accountIdKey"`
	AccountMode     string `json:"accountMode"`
	AccountDesc     string `json:"accountDesc"`
	AccountName     string `json:"accountName"`
	AccountType     string `json:"accountType"`
	InstitutionType string `json:"institutionType"`
	AccountStatus   string `json:"accountStatus"`
	ClosedDate      int64  `json:"closedDate"`
}

func accountPath(accountIDKey string, suffix string) (string, error) {
	if accountIDKey == "" {
		return "", &ValidationError{Field: "accountIdKey", Reason: "must not be empty"}
	}
	return "/v1/accounts/" + url.PathEscape(accountIDKey) + suffix, nil
}

// ListAccounts returns the accounts of the authorized user. The
// AccountIDKey of each is what the other account calls take.
func (c *Client) ListAccounts(ctx context.Context) ([]Account, error) {
	var response struct {
		AccountListResponse struct {
			Accounts struct {
				Account []Account `json:"Account"`
			} `json:"Accounts"`
		} `json:"AccountListResponse"`
	}
	if err := c.get(ctx, "/v1/accounts/list.json", nil, &response); err != nil {
		return nil, err
	}
	return response.AccountListResponse.Accounts.Account, nil
}

type BalanceOptions struct {
	// Defaults to BROKERAGE, the only type E*Trade currently accepts.
	InstType    string
	AccountType string
	RealTimeNAV bool
}

type RealTimeValues struct {
	TotalAccountValue decimal.Decimal `json:"totalAccountValue"`
	NetMv             decimal.Decimal `json:"netMv"`
	NetMvLong         decimal.Decimal `json:"netMvLong"`
	NetMvShort        decimal.Decimal `json:"netMvShort"`
}

type ComputedBalance struct {
	CashAvailableForInvestment decimal.Decimal `json:"cashAvailableForInvestment"`
	CashAvailableForWithdrawal decimal.Decimal `json:"cashAvailableForWithdrawal"`
	NetCash                    decimal.Decimal `json:"netCash"`
	CashBalance                decimal.Decimal `json:"cashBalance"`
	SettledCashForInvestment   decimal.Decimal `json:"settledCashForInvestment"`
	UnSettledCashForInvestment decimal.Decimal `json:"unSettledCashForInvestment"`
	FundsWithheldFromPurchase  decimal.Decimal `json:"fundsWithheldFromPurchasePower"`
	CashBuyingPower            decimal.Decimal `json:"cashBuyingPower"`
	MarginBuyingPower          decimal.Decimal `json:"marginBuyingPower"`
	DtCashBuyingPower          decimal.Decimal `json:"dtCashBuyingPower"`
	DtMarginBuyingPower        decimal.Decimal `json:"dtMarginBuyingPower"`
	AccountBalance             decimal.Decimal `json:"accountBalance"`
	RealTimeValues             RealTimeValues  `json:"RealTimeValues"`
}

type Balance struct {
	AccountID          string          `json:"accountId"`
	AccountType        string          `json:"accountType"`
	OptionLevel        string          `json:"optionLevel"`
	AccountDescription string          `json:"accountDescription"`
	QuoteMode          int             `json:"quoteMode"`
	DayTraderStatus    string          `json:"dayTraderStatus"`
	AccountMode        string          `json:"accountMode"`
	Computed           ComputedBalance `json:"Computed"`
}

func (c *Client) GetBalance(ctx context.Context, accountIDKey string, options BalanceOptions) (*Balance, error) {
	path, err := accountPath(accountIDKey, "/balance.json")
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	instType := options.InstType
	if instType == "" {
		instType = "BROKERAGE"
	}
	query.Set("instType", instType)
	if options.AccountType != "" {
		query.Set("accountType", options.AccountType)
	}
	if options.RealTimeNAV {
		query.Set("realTimeNAV", "true")
	}

	var response struct {
		BalanceResponse Balance `json:"BalanceResponse"`
	}
	if err := c.get(ctx, path, query, &response); err != nil {
		return nil, err
	}
	return &response.BalanceResponse, nil
}

type PortfolioView string

const (
	PortfolioViewQuick       PortfolioView = "QUICK"
	PortfolioViewPerformance PortfolioView = "PERFORMANCE"
	PortfolioViewFundamental PortfolioView = "FUNDAMENTAL"
	PortfolioViewComplete    PortfolioView = "COMPLETE"
)

type PortfolioOptions struct {
	Count          int
	SortBy         string
	SortOrder      string
	View           PortfolioView
	TotalsRequired bool
	LotsRequired   bool
}

func (o PortfolioOptions) query() (url.Values, error) {
	if err := checkEnum("view", string(o.View),
		string(PortfolioViewQuick), string(PortfolioViewPerformance),
		string(PortfolioViewFundamental), string(PortfolioViewComplete)); err != nil {
		return nil, err
	}
	if err := checkEnum("sortOrder", o.SortOrder, "ASC", "DESC"); err != nil {
		return nil, err
	}
	if o.Count < 0 {
		return nil, &ValidationError{Field: "count", Reason: "must not be negative"}
	}
	query := url.Values{}
	if o.Count > 0 {
		query.Set("count", strconv.Itoa(o.Count))
	}
	if o.SortBy != "" {
		query.Set("sortBy", o.SortBy)
	}
	if o.SortOrder != "" {
		query.Set("sortOrder", o.SortOrder)
	}
	if o.View != "" {
		query.Set("view", string(o.View))
	}
	if o.TotalsRequired {
		query.Set("totalsRequired", "true")
	}
	if o.LotsRequired {
		query.Set("lotsRequired", "true")
	}
	return query, nil
}

type QuickView struct {
	LastTrade     decimal.Decimal `json:"lastTrade"`
	LastTradeTime int64           `json:"lastTradeTime"`
	Change        decimal.Decimal `json:"change"`
	ChangePct     decimal.Decimal `json:"changePct"`
	Volume        int64           `json:"volume"`
}

type Position struct {
	PositionID        int64           `json:"positionId"`
	SymbolDescription string          `json:"symbolDescription"`
	DateAcquired      int64           `json:"dateAcquired"`
	PricePaid         decimal.Decimal `json:"pricePaid"`
	Quantity          decimal.Decimal `json:"quantity"`
	PositionType      string          `json:"positionType"`
	DaysGain          decimal.Decimal `json:"daysGain"`
	DaysGainPct       decimal.Decimal `json:"daysGainPct"`
	MarketValue       decimal.Decimal `json:"marketValue"`
	TotalCost         decimal.Decimal `json:"totalCost"`
	TotalGain         decimal.Decimal `json:"totalGain"`
	TotalGainPct      decimal.Decimal `json:"totalGainPct"`
	PctOfPortfolio    decimal.Decimal `json:"pctOfPortfolio"`
	CostPerShare      decimal.Decimal `json:"costPerShare"`
	Product           Product         `json:"Product"`
	Quick             *QuickView      `json:"Quick,omitempty"`
}

type AccountPortfolio struct {
	AccountID  string     `json:"accountId"`
	TotalPages int        `json:"totalPages"`
	Positions  []Position `json:"Position"`
}

func (c *Client) GetPortfolio(ctx context.Context, accountIDKey string, options PortfolioOptions) ([]AccountPortfolio, error) {
	path, err := accountPath(accountIDKey, "/portfolio.json")
	if err != nil {
		return nil, err
	}
	query, err := options.query()
	if err != nil {
		return nil, err
	}
	var response struct {
		PortfolioResponse struct {
			AccountPortfolio []AccountPortfolio `json:"AccountPortfolio"`
		} `json:"PortfolioResponse"`
	}
	if err := c.get(ctx, path, query, &response); err != nil {
		return nil, err
	}
	return response.PortfolioResponse.AccountPortfolio, nil
}

type TransactionOptions struct {
	StartDate time.Time
	EndDate   time.Time
	// At most 50.
	Count     int
	SortOrder string
	Marker    string
}

// E*Trade takes transaction dates as MMDDYYYY.
const transactionDateLayout = "01022006"

func (o TransactionOptions) query() (url.Values, error) {
	if o.Count < 0 || o.Count > 50 {
		return nil, &ValidationError{Field: "count", Reason: "must be between 0 and 50"}
	}
	if !o.StartDate.IsZero() && !o.EndDate.IsZero() && o.EndDate.Before(o.StartDate) {
		return nil, &ValidationError{Field: "endDate", Reason: "is before startDate"}
	}
	if err := checkEnum("sortOrder", o.SortOrder, "ASC", "DESC"); err != nil {
		return nil, err
	}
	query := url.Values{}
	if !o.StartDate.IsZero() {
		query.Set("startDate", o.StartDate.Format(transactionDateLayout))
	}
	if !o.EndDate.IsZero() {
		query.Set("endDate", o.EndDate.Format(transactionDateLayout))
	}
	if o.Count > 0 {
		query.Set("count", strconv.Itoa(o.Count))
	}
	if o.SortOrder != "" {
		query.Set("sortOrder", o.SortOrder)
	}
	if o.Marker != "" {
		query.Set("marker", o.Marker)
	}
	return query, nil
}

type BrokerageTransaction struct {
	Product       Product         `json:"product"`
	Quantity      decimal.Decimal `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	Fee           decimal.Decimal `json:"fee"`
	DisplaySymbol string          `json:"displaySymbol"`
}

type Transaction struct {
	TransactionID   int64                `json:"transactionId"`
	AccountID       string               `json:"accountId"`
	TransactionDate int64                `json:"transactionDate"`
	PostDate        int64                `json:"postDate"`
	Amount          decimal.Decimal      `json:"amount"`
	Description     string               `json:"description"`
	TransactionType string               `json:"transactionType"`
	Brokerage       BrokerageTransaction `json:"brokerage"`
}

type TransactionList struct {
	Transactions     []Transaction `json:"Transaction"`
	MoreTransactions bool          `json:"moreTransactions"`
	Marker           string        `json:"marker"`
}

// ListTransactions returns one page of transactions. Pass Marker from the
// previous page to continue while MoreTransactions is set.
func (c *Client) ListTransactions(ctx context.Context, accountIDKey string, options TransactionOptions) (*TransactionList, error) {
	path, err := accountPath(accountIDKey, "/transactions.json")
	if err != nil {
		return nil, err
	}
	query, err := options.query()
	if err != nil {
		return nil, err
	}
	var response struct {
		TransactionListResponse TransactionList `json:"TransactionListResponse"`
	}
	if err := c.get(ctx, path, query, &response); err != nil {
		return nil, err
	}
	return &response.TransactionListResponse, nil
}

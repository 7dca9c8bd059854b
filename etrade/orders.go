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
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderAction string

const (
	OrderActionBuy        OrderAction = "BUY"
	OrderActionSell       OrderAction = "SELL"
	OrderActionBuyToCover OrderAction = "BUY_TO_COVER"
	OrderActionSellShort  OrderAction = "SELL_SHORT"
)

type PriceType string

const (
	PriceTypeMarket    PriceType = "MARKET"
	PriceTypeLimit     PriceType = "LIMIT"
	PriceTypeStop      PriceType = "STOP"
	PriceTypeStopLimit PriceType = "STOP_LIMIT"
)

type OrderTerm string

const (
	OrderTermGoodForDay        OrderTerm = "GOOD_FOR_DAY"
	OrderTermGoodUntilCancel   OrderTerm = "GOOD_UNTIL_CANCEL"
	OrderTermImmediateOrCancel OrderTerm = "IMMEDIATE_OR_CANCEL"
	OrderTermFillOrKill        OrderTerm = "FILL_OR_KILL"
)

type MarketSession string

const (
	MarketSessionRegular  MarketSession = "REGULAR"
	MarketSessionExtended MarketSession = "EXTENDED"
)

type OrderStatus string

const (
	OrderStatusOpen            OrderStatus = "OPEN"
	OrderStatusExecuted        OrderStatus = "EXECUTED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusIndividualFills OrderStatus = "INDIVIDUAL_FILLS"
	OrderStatusCancelRequested OrderStatus = "CANCEL_REQUESTED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
	OrderStatusRejected        OrderStatus = "REJECTED"
)

// OrderRequest describes a single leg equity order. Zero values of Term
// and Session mean GOOD_FOR_DAY and REGULAR.
type OrderRequest struct {
	Symbol        string
	Action        OrderAction
	Quantity      decimal.Decimal
	PriceType     PriceType
	LimitPrice    decimal.Decimal
	StopPrice     decimal.Decimal
	Term          OrderTerm
	Session       MarketSession
	AllOrNone     bool
	ClientOrderID string
}

func (r *OrderRequest) Validate() error {
	if strings.TrimSpace(r.Symbol) == "" {
		return &ValidationError{Field: "symbol", Reason: "must not be empty"}
	}
	if r.Action == "" {
		return &ValidationError{Field: "action", Reason: "must not be empty"}
	}
	if err := checkEnum("action", string(r.Action),
		string(OrderActionBuy), string(OrderActionSell),
		string(OrderActionBuyToCover), string(OrderActionSellShort)); err != nil {
		return err
	}
	if !r.Quantity.IsPositive() {
		return &ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if !r.Quantity.Equal(r.Quantity.Truncate(0)) {
		return &ValidationError{Field: "quantity", Reason: "must be a whole number of shares"}
	}
	if r.PriceType == "" {
		return &ValidationError{Field: "priceType", Reason: "must not be empty"}
	}
	if err := checkEnum("priceType", string(r.PriceType),
		string(PriceTypeMarket), string(PriceTypeLimit),
		string(PriceTypeStop), string(PriceTypeStopLimit)); err != nil {
		return err
	}
	switch r.PriceType {
	case PriceTypeMarket:
		if !r.LimitPrice.IsZero() || !r.StopPrice.IsZero() {
			return &ValidationError{Field: "priceType", Reason: "market orders take no limit or stop price"}
		}
	case PriceTypeLimit:
		if !r.LimitPrice.IsPositive() {
			return &ValidationError{Field: "limitPrice", Reason: "must be positive for LIMIT orders"}
		}
		if !r.StopPrice.IsZero() {
			return &ValidationError{Field: "stopPrice", Reason: "LIMIT orders take no stop price"}
		}
	case PriceTypeStop:
		if !r.StopPrice.IsPositive() {
			return &ValidationError{Field: "stopPrice", Reason: "must be positive for STOP orders"}
		}
		if !r.LimitPrice.IsZero() {
			return &ValidationError{Field: "limitPrice", Reason: "STOP orders take no limit price"}
		}
	case PriceTypeStopLimit:
		if !r.LimitPrice.IsPositive() || !r.StopPrice.IsPositive() {
			return &ValidationError{Field: "priceType", Reason: "STOP_LIMIT orders need both a limit and a stop price"}
		}
	}
	if err := checkEnum("term", string(r.Term),
		string(OrderTermGoodForDay), string(OrderTermGoodUntilCancel),
		string(OrderTermImmediateOrCancel), string(OrderTermFillOrKill)); err != nil {
		return err
	}
	if err := checkEnum("session", string(r.Session),
		string(MarketSessionRegular), string(MarketSessionExtended)); err != nil {
		return err
	}
	if r.Session == MarketSessionExtended {
		if r.PriceType != PriceTypeLimit {
			return &ValidationError{Field: "session", Reason: "extended hours orders must be LIMIT orders"}
		}
		if r.Term != "" && r.Term != OrderTermGoodForDay {
			return &ValidationError{Field: "term", Reason: "extended hours orders must be GOOD_FOR_DAY"}
		}
	}
	if len(r.ClientOrderID) > maxClientOrderIDLength {
		return &ValidationError{Field: "clientOrderId", Reason: "must be at most 20 characters"}
	}
	return nil
}

type orderInstrumentRequest struct {
	Product      Product     `json:"Product"`
	OrderAction  string      `json:"orderAction"`
	QuantityType string      `json:"quantityType"`
	Quantity     json.Number `json:"quantity"`
}

type orderDetailRequest struct {
	AllOrNone     bool                     `json:"allOrNone"`
	PriceType     string                   `json:"priceType"`
	OrderTerm     string                   `json:"orderTerm"`
	MarketSession string                   `json:"marketSession"`
	LimitPrice    json.Number              `json:"limitPrice,omitempty"`
	StopPrice     json.Number              `json:"stopPrice,omitempty"`
	Instrument    []orderInstrumentRequest `json:"Instrument"`
}

type orderRequestBody struct {
	OrderType     string               `json:"orderType"`
	ClientOrderID string               `json:"clientOrderId"`
	Order         []orderDetailRequest `json:"Order"`
	PreviewIDs    []PreviewID          `json:"PreviewIds,omitempty"`
}

func (r *OrderRequest) body(previewIDs []PreviewID) orderRequestBody {
	term := r.Term
	if term == "" {
		term = OrderTermGoodForDay
	}
	session := r.Session
	if session == "" {
		session = MarketSessionRegular
	}
	detail := orderDetailRequest{
		AllOrNone:     r.AllOrNone,
		PriceType:     string(r.PriceType),
		OrderTerm:     string(term),
		MarketSession: string(session),
		Instrument: []orderInstrumentRequest{
			{
				Product: Product{
					Symbol:       strings.ToUpper(strings.TrimSpace(r.Symbol)),
					SecurityType: SecurityTypeEquity,
				},
				OrderAction:  string(r.Action),
				QuantityType: "QUANTITY",
				Quantity:     json.Number(r.Quantity.String()),
			},
		},
	}
	if !r.LimitPrice.IsZero() {
		detail.LimitPrice = json.Number(r.LimitPrice.String())
	}
	if !r.StopPrice.IsZero() {
		detail.StopPrice = json.Number(r.StopPrice.String())
	}
	return orderRequestBody{
		OrderType:     "EQ",
		ClientOrderID: r.ClientOrderID,
		Order:         []orderDetailRequest{detail},
		PreviewIDs:    previewIDs,
	}
}

type PreviewID struct {
	PreviewID int64 `json:"previewId"`
}

type OrderID struct {
	OrderID int64 `json:"orderId"`
}

type Instrument struct {
	Product               Product         `json:"Product"`
	SymbolDescription     string          `json:"symbolDescription"`
	OrderAction           string          `json:"orderAction"`
	QuantityType          string          `json:"quantityType"`
	Quantity              decimal.Decimal `json:"quantity"`
	OrderedQuantity       decimal.Decimal `json:"orderedQuantity"`
	FilledQuantity        decimal.Decimal `json:"filledQuantity"`
	AverageExecutionPrice decimal.Decimal `json:"averageExecutionPrice"`
	EstimatedCommission   decimal.Decimal `json:"estimatedCommission"`
}

type OrderDetail struct {
	OrderNumber          int             `json:"orderNumber"`
	PlacedTime           int64           `json:"placedTime"`
	ExecutedTime         int64           `json:"executedTime"`
	OrderValue           decimal.Decimal `json:"orderValue"`
	Status               OrderStatus     `json:"status"`
	PriceType            PriceType       `json:"priceType"`
	LimitPrice           decimal.Decimal `json:"limitPrice"`
	StopPrice            decimal.Decimal `json:"stopPrice"`
	OrderTerm            OrderTerm       `json:"orderTerm"`
	MarketSession        MarketSession   `json:"marketSession"`
	AllOrNone            bool            `json:"allOrNone"`
	EstimatedCommission  decimal.Decimal `json:"estimatedCommission"`
	EstimatedTotalAmount decimal.Decimal `json:"estimatedTotalAmount"`
	Instrument           []Instrument    `json:"Instrument"`
}

type Order struct {
	OrderID     int64         `json:"orderId"`
	Details     string        `json:"details"`
	OrderType   string        `json:"orderType"`
	OrderDetail []OrderDetail `json:"OrderDetail"`
}

type OrderListOptions struct {
	Status   OrderStatus
	Symbols  []string
	FromDate time.Time
	ToDate   time.Time
	// At most 100.
	Count  int
	Marker string
}

func (o OrderListOptions) query() (url.Values, error) {
	if err := checkEnum("status", string(o.Status),
		string(OrderStatusOpen), string(OrderStatusExecuted), string(OrderStatusCancelled),
		string(OrderStatusIndividualFills), string(OrderStatusCancelRequested),
		string(OrderStatusExpired), string(OrderStatusRejected)); err != nil {
		return nil, err
	}
	if len(o.Symbols) > maxQuoteSymbols {
		return nil, &ValidationError{Field: "symbol", Reason: "at most 25 symbols"}
	}
	if o.Count < 0 || o.Count > 100 {
		return nil, &ValidationError{Field: "count", Reason: "must be between 0 and 100"}
	}
	if !o.FromDate.IsZero() && !o.ToDate.IsZero() && o.ToDate.Before(o.FromDate) {
		return nil, &ValidationError{Field: "toDate", Reason: "is before fromDate"}
	}
	query := url.Values{}
	if o.Status != "" {
		query.Set("status", string(o.Status))
	}
	if len(o.Symbols) > 0 {
		query.Set("symbol", strings.Join(o.Symbols, ","))
	}
	if !o.FromDate.IsZero() {
		query.Set("fromDate", o.FromDate.Format(transactionDateLayout))
	}
	if !o.ToDate.IsZero() {
		query.Set("toDate", o.ToDate.Format(transactionDateLayout))
	}
	if o.Count > 0 {
		query.Set("count", strconv.Itoa(o.Count))
	}
	if o.Marker != "" {
		query.Set("marker", o.Marker)
	}
	return query, nil
}

type OrderList struct {
	Orders []Order `json:"Order"`
	Marker string  `json:"marker"`
	Next   string  `json:"next"`
}

// ListOrders returns one page of orders. An account without matching
// orders yields an empty list.
func (c *Client) ListOrders(ctx context.Context, accountIDKey string, options OrderListOptions) (*OrderList, error) {
	path, err := accountPath(accountIDKey, "/orders.json")
	if err != nil {
		return nil, err
	}
	query, err := options.query()
	if err != nil {
		return nil, err
	}
	var response struct {
		OrdersResponse OrderList `json:"OrdersResponse"`
	}
	if err := c.get(ctx, path, query, &response); err != nil {
		return nil, err
	}
	return &response.OrdersResponse, nil
}

type PreviewOrderResponse struct {
	AccountID       string          `json:"accountId"`
	OrderType       string          `json:"orderType"`
	PreviewIDs      []PreviewID     `json:"PreviewIds"`
	PreviewTime     int64           `json:"previewTime"`
	TotalOrderValue decimal.Decimal `json:"totalOrderValue"`
	Order           []OrderDetail   `json:"Order"`
	Messages        Messages        `json:"Messages"`
}

// PreviewOrder validates req and asks E*Trade to preview it. A client order
// id is generated and stored in req when it has none, as the following
// PlaceOrder must carry the same id.
func (c *Client) PreviewOrder(ctx context.Context, accountIDKey string, req *OrderRequest) (*PreviewOrderResponse, error) {
	path, err := accountPath(accountIDKey, "/orders/preview.json")
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.ClientOrderID == "" {
		id, err := c.ids.ClientOrderID()
		if err != nil {
			return nil, err
		}
		req.ClientOrderID = id
	}
	body := struct {
		PreviewOrderRequest orderRequestBody `json:"PreviewOrderRequest"`
	}{req.body(nil)}
	var response struct {
		PreviewOrderResponse PreviewOrderResponse `json:"PreviewOrderResponse"`
	}
	if err := c.post(ctx, path, body, &response); err != nil {
		return nil, err
	}
	return &response.PreviewOrderResponse, nil
}

type PlaceOrderResponse struct {
	AccountID  string        `json:"accountId"`
	OrderType  string        `json:"orderType"`
	OrderIDs   []OrderID     `json:"OrderIds"`
	PlacedTime int64         `json:"placedTime"`
	Order      []OrderDetail `json:"Order"`
	Messages   Messages      `json:"Messages"`
}

// PlaceOrder places a previously previewed order. req must be the request
// passed to PreviewOrder, including its client order id.
func (c *Client) PlaceOrder(ctx context.Context, accountIDKey string, req *OrderRequest, previewIDs []PreviewID) (*PlaceOrderResponse, error) {
	path, err := accountPath(accountIDKey, "/orders/place.json")
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.ClientOrderID == "" {
		return nil, &ValidationError{Field: "clientOrderId", Reason: "must match the previewed order"}
	}
	if len(previewIDs) == 0 {
		return nil, &ValidationError{Field: "previewIds", Reason: "an order must be previewed before it is placed"}
	}
	body := struct {
		PlaceOrderRequest orderRequestBody `json:"PlaceOrderRequest"`
	}{req.body(previewIDs)}
	var response struct {
		PlaceOrderResponse PlaceOrderResponse `json:"PlaceOrderResponse"`
	}
	if err := c.post(ctx, path, body, &response); err != nil {
		return nil, err
	}
	return &response.PlaceOrderResponse, nil
}

type CancelOrderResponse struct {
	AccountID  string   `json:"accountId"`
	OrderID    int64    `json:"orderId"`
	CancelTime int64    `json:"cancelTime"`
	Messages   Messages `json:"Messages"`
}

func (c *Client) CancelOrder(ctx context.Context, accountIDKey string, orderID int64) (*CancelOrderResponse, error) {
	path, err := accountPath(accountIDKey, "/orders/cancel.json")
	if err != nil {
		return nil, err
	}
	if orderID <= 0 {
		return nil, &ValidationError{Field: "orderId", Reason: "must be positive"}
	}
	body := struct {
		CancelOrderRequest OrderID `json:"CancelOrderRequest"`
	}{OrderID{OrderID: orderID}}
	var response struct {
		CancelOrderResponse CancelOrderResponse `json:"CancelOrderResponse"`
	}
	if err := c.put(ctx, path, body, &response); err != nil {
		return nil, err
	}
	return &response.CancelOrderResponse, nil
}

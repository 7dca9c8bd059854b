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

package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gitlab.com/crankykernel/etrade/etrade"
	"gitlab.com/crankykernel/etrade/log"
)

var ErrNotFound = errors.New("order not found")

type JournalStatus string

const (
	StatusPreviewed       JournalStatus = "PREVIEWED"
	StatusPlaced          JournalStatus = "PLACED"
	StatusCancelRequested JournalStatus = "CANCEL_REQUESTED"
	StatusFailed          JournalStatus = "FAILED"
)

// JournalEntry records an order issued through this tool, keyed by its
// client order id.
type JournalEntry struct {
	ClientOrderID string               `json:"clientOrderId"`
	AccountIDKey  string               `json:"accountIdKey"`
	Symbol        string               `json:"symbol"`
	Action        etrade.OrderAction   `json:"action"`
	PriceType     etrade.PriceType     `json:"priceType"`
	Quantity      decimal.Decimal      `json:"quantity"`
	LimitPrice    decimal.Decimal      `json:"limitPrice"`
	StopPrice     decimal.Decimal      `json:"stopPrice"`
	Term          etrade.OrderTerm     `json:"term,omitempty"`
	Session       etrade.MarketSession `json:"session,omitempty"`
	AllOrNone     bool                 `json:"allOrNone"`
	Status        JournalStatus        `json:"status"`
	OrderID       int64                `json:"orderId,omitempty"`
	PreviewIDs    []int64              `json:"previewIds"`
	Message       string               `json:"message,omitempty"`
	Created       time.Time            `json:"created"`
	Updated       time.Time            `json:"updated"`
}

func NewJournalEntry(accountIDKey string, req *etrade.OrderRequest) *JournalEntry {
	now := time.Now()
	return &JournalEntry{
		ClientOrderID: req.ClientOrderID,
		AccountIDKey:  accountIDKey,
		Symbol:        strings.ToUpper(strings.TrimSpace(req.Symbol)),
		Action:        req.Action,
		PriceType:     req.PriceType,
		Quantity:      req.Quantity,
		LimitPrice:    req.LimitPrice,
		StopPrice:     req.StopPrice,
		Term:          req.Term,
		Session:       req.Session,
		AllOrNone:     req.AllOrNone,
		Created:       now,
		Updated:       now,
	}
}

// OrderRequest rebuilds the request that was previewed, for placing it.
func (e *JournalEntry) OrderRequest() *etrade.OrderRequest {
	return &etrade.OrderRequest{
		Symbol:        e.Symbol,
		Action:        e.Action,
		Quantity:      e.Quantity,
		PriceType:     e.PriceType,
		LimitPrice:    e.LimitPrice,
		StopPrice:     e.StopPrice,
		Term:          e.Term,
		Session:       e.Session,
		AllOrNone:     e.AllOrNone,
		ClientOrderID: e.ClientOrderID,
	}
}

func (e *JournalEntry) SetPreviewIDs(ids []etrade.PreviewID) {
	e.PreviewIDs = make([]int64, 0, len(ids))
	for _, id := range ids {
		e.PreviewIDs = append(e.PreviewIDs, id.PreviewID)
	}
}

func (e *JournalEntry) EtradePreviewIDs() []etrade.PreviewID {
	ids := make([]etrade.PreviewID, 0, len(e.PreviewIDs))
	for _, id := range e.PreviewIDs {
		ids = append(ids, etrade.PreviewID{PreviewID: id})
	}
	return ids
}

type DB struct {
	db *sql.DB
}

func incrementVersion(tx *sql.Tx, version int) error {
	_, err := tx.Exec("insert into schema values (?, ?)", version, formatTimestamp(time.Now()))
	return err
}

func initDb(db *sql.DB) error {
	var version = -1
	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	row := tx.QueryRow("select max(version) from schema")
	if err := row.Scan(&version); err != nil {
		log.Infof("Initializing database.")
		_, err := tx.Exec("create table schema (version integer not null primary key, timestamp timestamp)")
		if err != nil {
			tx.Rollback()
			return errors.Wrap(err, "failed to create schema table")
		}
		if err := incrementVersion(tx, 0); err != nil {
			tx.Rollback()
			return errors.Wrap(err, "failed to insert into schema table")
		}
		version = 0
	} else {
		log.Debugf("Found database version %d.", version)
	}

	if version < 1 {
		_, err := tx.Exec(`create table order_journal (
			client_order_id text primary key,
			account_id_key text not null,
			symbol text not null,
			status text not null,
			order_id integer,
			created timestamp,
			updated timestamp,
			data json)`)
		if err != nil {
			tx.Rollback()
			return errors.Wrap(err, "failed to create order_journal table")
		}
		if err := incrementVersion(tx, 1); err != nil {
			tx.Rollback()
			return err
		}
	}

	if version < 2 {
		_, err := tx.Exec(`create index order_journal_account_created_index on order_journal(account_id_key, created)`)
		if err != nil {
			tx.Rollback()
			return errors.Wrap(err, "failed to create order_journal_account_created_index")
		}
		if err := incrementVersion(tx, 2); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// Open opens, creating if needed, the order journal at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	if err := initDb(db); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func txSaveOrder(tx *sql.Tx, entry *JournalEntry) error {
	data, err := formatJson(entry)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`insert or replace into order_journal
		(client_order_id, account_id_key, symbol, status, order_id, created, updated, data)
		values (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ClientOrderID, entry.AccountIDKey, entry.Symbol, string(entry.Status),
		entry.OrderID, formatTimestamp(entry.Created), formatTimestamp(entry.Updated), data)
	return err
}

func (d *DB) SaveOrder(entry *JournalEntry) error {
	if entry.ClientOrderID == "" {
		return errors.New("journal entry has no client order id")
	}
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	if err := txSaveOrder(tx, entry); err != nil {
		tx.Rollback()
		return errors.Wrapf(err, "failed to save order %s", entry.ClientOrderID)
	}
	return tx.Commit()
}

func txGetOrder(tx *sql.Tx, clientOrderID string) (*JournalEntry, error) {
	var data string
	err := tx.QueryRow(`select data from order_journal where client_order_id = ?`,
		clientOrderID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	var entry JournalEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (d *DB) GetOrder(clientOrderID string) (*JournalEntry, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	return txGetOrder(tx, clientOrderID)
}

// UpdateOrderStatus sets the status of a journaled order. A non-zero
// orderID and message replace the stored ones.
func (d *DB) UpdateOrderStatus(clientOrderID string, status JournalStatus, orderID int64, message string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	entry, err := txGetOrder(tx, clientOrderID)
	if err != nil {
		tx.Rollback()
		return err
	}
	entry.Status = status
	if orderID != 0 {
		entry.OrderID = orderID
	}
	if message != "" {
		entry.Message = message
	}
	entry.Updated = time.Now()
	if err := txSaveOrder(tx, entry); err != nil {
		log.WithError(err).Error("Failed to update order in DB.")
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// FindByOrderID returns the journaled order E*Trade knows as orderID.
func (d *DB) FindByOrderID(accountIDKey string, orderID int64) (*JournalEntry, error) {
	var clientOrderID string
	err := d.db.QueryRow(`select client_order_id from order_journal
		where account_id_key = ? and order_id = ?`, accountIDKey, orderID).Scan(&clientOrderID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return d.GetOrder(clientOrderID)
}

type QueryOptions struct {
	AccountIDKey string
	Symbol       string
	Status       JournalStatus
	// Zero means no limit.
	Limit int
}

// QueryOrders returns matching journal entries, newest first.
func (d *DB) QueryOrders(options QueryOptions) ([]JournalEntry, error) {
	where := []string{}
	args := []interface{}{}

	if options.AccountIDKey != "" {
		where = append(where, "account_id_key = ?")
		args = append(args, options.AccountIDKey)
	}
	if options.Symbol != "" {
		where = append(where, "symbol = ?")
		args = append(args, strings.ToUpper(options.Symbol))
	}
	if options.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(options.Status))
	}

	sql := "select data from order_journal"
	if len(where) > 0 {
		sql = fmt.Sprintf("%s where %s", sql, strings.Join(where, " and "))
	}
	sql += " order by created desc"
	if options.Limit > 0 {
		sql = fmt.Sprintf("%s limit %d", sql, options.Limit)
	}

	rows, err := d.db.Query(sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []JournalEntry{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var entry JournalEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func formatTimestamp(timestamp time.Time) string {
	return timestamp.UTC().Format("2006-01-02 15:04:05.999")
}

func formatJson(val interface{}) (string, error) {
	buf, err := json.Marshal(val)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

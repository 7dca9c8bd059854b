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
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/crankykernel/etrade/etrade"
)

func openTestDb(t *testing.T) (*DB, string) {
	path := filepath.Join(t.TempDir(), "etrade.db")
	db, err := Open(path)
	require.Nil(t, err)
	return db, path
}

func testEntry(clientOrderID string, symbol string, created time.Time) *JournalEntry {
	entry := NewJournalEntry("abc", &etrade.OrderRequest{
		Symbol:        symbol,
		Action:        etrade.OrderActionBuy,
		Quantity:      decimal.NewFromInt(10),
		PriceType:     etrade.PriceTypeLimit,
		LimitPrice:    decimal.RequireFromString("150.25"),
		ClientOrderID: clientOrderID,
	})
	entry.Status = StatusPreviewed
	entry.SetPreviewIDs([]etrade.PreviewID{{PreviewID: 1234}})
	entry.Created = created
	entry.Updated = created
	return entry
}

func TestOpenIsIdempotent(t *testing.T) {
	assert := assert.New(t)
	db, path := openTestDb(t)
	require.Nil(t, db.Close())

	db, err := Open(path)
	require.Nil(t, err)
	defer db.Close()

	var version int
	require.Nil(t, db.db.QueryRow("select max(version) from schema").Scan(&version))
	assert.Equal(2, version)
}

func TestSaveAndUpdateOrder(t *testing.T) {
	assert := assert.New(t)
	db, _ := openTestDb(t)
	defer db.Close()

	created := time.Date(2019, 3, 1, 14, 30, 0, 0, time.UTC)
	require.Nil(t, db.SaveOrder(testEntry("c1", " aapl", created)))

	entry, err := db.GetOrder("c1")
	require.Nil(t, err)
	assert.Equal("AAPL", entry.Symbol)
	assert.Equal(StatusPreviewed, entry.Status)
	assert.True(entry.LimitPrice.Equal(decimal.RequireFromString("150.25")))
	assert.Equal([]int64{1234}, entry.PreviewIDs)
	assert.True(entry.Created.Equal(created))

	req := entry.OrderRequest()
	assert.Equal("c1", req.ClientOrderID)
	assert.Equal(etrade.PriceTypeLimit, req.PriceType)
	assert.Nil(req.Validate())
	assert.Equal([]etrade.PreviewID{{PreviewID: 1234}}, entry.EtradePreviewIDs())

	require.Nil(t, db.UpdateOrderStatus("c1", StatusPlaced, 42, ""))
	entry, err = db.FindByOrderID("abc", 42)
	require.Nil(t, err)
	assert.Equal("c1", entry.ClientOrderID)
	assert.Equal(StatusPlaced, entry.Status)
	assert.True(entry.Updated.After(created))

	require.Nil(t, db.UpdateOrderStatus("c1", StatusCancelRequested, 0, "being processed"))
	entry, err = db.GetOrder("c1")
	require.Nil(t, err)
	assert.Equal(int64(42), entry.OrderID)
	assert.Equal("being processed", entry.Message)

	assert.Equal(ErrNotFound, db.UpdateOrderStatus("missing", StatusPlaced, 1, ""))
	_, err = db.FindByOrderID("abc", 99)
	assert.Equal(ErrNotFound, err)
	assert.NotNil(db.SaveOrder(&JournalEntry{}))
}

func TestQueryOrders(t *testing.T) {
	assert := assert.New(t)
	db, _ := openTestDb(t)
	defer db.Close()

	start := time.Date(2019, 3, 1, 14, 30, 0, 0, time.UTC)
	require.Nil(t, db.SaveOrder(testEntry("c1", "AAPL", start)))
	require.Nil(t, db.SaveOrder(testEntry("c2", "MSFT", start.Add(time.Minute))))
	require.Nil(t, db.SaveOrder(testEntry("c3", "AAPL", start.Add(2*time.Minute))))
	require.Nil(t, db.UpdateOrderStatus("c3", StatusPlaced, 7, ""))

	entries, err := db.QueryOrders(QueryOptions{})
	require.Nil(t, err)
	require.Len(t, entries, 3)
	assert.Equal("c3", entries[0].ClientOrderID)
	assert.Equal("c1", entries[2].ClientOrderID)

	entries, err = db.QueryOrders(QueryOptions{Symbol: "aapl"})
	require.Nil(t, err)
	assert.Len(entries, 2)

	entries, err = db.QueryOrders(QueryOptions{AccountIDKey: "abc", Status: StatusPreviewed, Limit: 1})
	require.Nil(t, err)
	require.Len(t, entries, 1)
	assert.Equal("c2", entries[0].ClientOrderID)

	entries, err = db.QueryOrders(QueryOptions{AccountIDKey: "other"})
	require.Nil(t, err)
	assert.Empty(entries)
}

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

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gitlab.com/crankykernel/etrade/db"
	"gitlab.com/crankykernel/etrade/etrade"
	"gitlab.com/crankykernel/etrade/log"
)

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List, preview, place and cancel orders",
}

var ordersListFlags struct {
	Status  string
	Symbols []string
	Count   int
	Marker  string
	Journal bool
}

var ordersListCmd = &cobra.Command{
	Use:   "list <accountIdKey>",
	Short: "List orders",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if ordersListFlags.Journal {
			journal, err := openJournal()
			if err != nil {
				return err
			}
			defer journal.Close()
			entries, err := journal.QueryOrders(db.QueryOptions{
				AccountIDKey: args[0],
				Status:       db.JournalStatus(strings.ToUpper(ordersListFlags.Status)),
				Limit:        ordersListFlags.Count,
			})
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), entries)
		}

		client, _, err := newClient()
		if err != nil {
			return err
		}
		orders, err := client.ListOrders(context.Background(), args[0], etrade.OrderListOptions{
			Status:  etrade.OrderStatus(strings.ToUpper(ordersListFlags.Status)),
			Symbols: ordersListFlags.Symbols,
			Count:   ordersListFlags.Count,
			Marker:  ordersListFlags.Marker,
		})
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), orders)
	},
}

var orderFlags struct {
	Symbol     string
	Action     string
	Quantity   string
	PriceType  string
	LimitPrice string
	StopPrice  string
	Term       string
	Session    string
	AllOrNone  bool
}

func parseDecimal(name string, value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "invalid %s", name)
	}
	return d, nil
}

func orderRequestFromFlags() (*etrade.OrderRequest, error) {
	quantity, err := parseDecimal("quantity", orderFlags.Quantity)
	if err != nil {
		return nil, err
	}
	limitPrice, err := parseDecimal("limit", orderFlags.LimitPrice)
	if err != nil {
		return nil, err
	}
	stopPrice, err := parseDecimal("stop", orderFlags.StopPrice)
	if err != nil {
		return nil, err
	}
	req := &etrade.OrderRequest{
		Symbol:     orderFlags.Symbol,
		Action:     etrade.OrderAction(strings.ToUpper(orderFlags.Action)),
		Quantity:   quantity,
		PriceType:  etrade.PriceType(strings.ToUpper(orderFlags.PriceType)),
		LimitPrice: limitPrice,
		StopPrice:  stopPrice,
		Term:       etrade.OrderTerm(strings.ToUpper(orderFlags.Term)),
		Session:    etrade.MarketSession(strings.ToUpper(orderFlags.Session)),
		AllOrNone:  orderFlags.AllOrNone,
	}
	return req, req.Validate()
}

var ordersPreviewCmd = &cobra.Command{
	Use:   "preview <accountIdKey>",
	Short: "Preview an equity order",
	Long: "Preview an equity order. The preview is saved in the order journal " +
		"and can be placed with: etrade orders place <accountIdKey> <clientOrderId>",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := orderRequestFromFlags()
		if err != nil {
			return err
		}
		client, _, err := newClient()
		if err != nil {
			return err
		}
		journal, err := openJournal()
		if err != nil {
			return err
		}
		defer journal.Close()

		preview, err := client.PreviewOrder(context.Background(), args[0], req)
		if err != nil {
			return err
		}

		entry := db.NewJournalEntry(args[0], req)
		entry.Status = db.StatusPreviewed
		entry.SetPreviewIDs(preview.PreviewIDs)
		entry.Message = preview.Messages.String()
		if err := journal.SaveOrder(entry); err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"clientOrderId": req.ClientOrderID,
			"symbol":        entry.Symbol,
		}).Infof("Order previewed.")

		return writeOutput(cmd.OutOrStdout(), map[string]interface{}{
			"clientOrderId": req.ClientOrderID,
			"preview":       preview,
		})
	},
}

var ordersPlaceCmd = &cobra.Command{
	Use:   "place <accountIdKey> <clientOrderId>",
	Short: "Place a previewed order",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		accountIDKey, clientOrderID := args[0], args[1]
		journal, err := openJournal()
		if err != nil {
			return err
		}
		defer journal.Close()

		entry, err := journal.GetOrder(clientOrderID)
		if err == db.ErrNotFound {
			return fmt.Errorf("no previewed order with client order id %s", clientOrderID)
		} else if err != nil {
			return err
		}
		if entry.AccountIDKey != accountIDKey {
			return fmt.Errorf("order %s was previewed for another account", clientOrderID)
		}
		if entry.Status != db.StatusPreviewed {
			return fmt.Errorf("order %s is %s", clientOrderID, entry.Status)
		}

		client, _, err := newClient()
		if err != nil {
			return err
		}
		placed, err := client.PlaceOrder(context.Background(), accountIDKey,
			entry.OrderRequest(), entry.EtradePreviewIDs())
		if err != nil {
			if updateErr := journal.UpdateOrderStatus(clientOrderID, db.StatusFailed, 0, err.Error()); updateErr != nil {
				log.WithError(updateErr).Errorf("Failed to record failed order.")
			}
			return err
		}

		var orderID int64
		if len(placed.OrderIDs) > 0 {
			orderID = placed.OrderIDs[0].OrderID
		}
		if err := journal.UpdateOrderStatus(clientOrderID, db.StatusPlaced, orderID, placed.Messages.String()); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"clientOrderId": clientOrderID,
				"orderId":       orderID,
			}).Errorf("Order placed but the journal could not be updated.")
		}
		return writeOutput(cmd.OutOrStdout(), placed)
	},
}

var ordersCancelCmd = &cobra.Command{
	Use:   "cancel <accountIdKey> <orderId>",
	Short: "Cancel an open order",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		accountIDKey := args[0]
		orderID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return errors.Wrap(err, "invalid order id")
		}
		client, _, err := newClient()
		if err != nil {
			return err
		}
		cancelled, err := client.CancelOrder(context.Background(), accountIDKey, orderID)
		if err != nil {
			return err
		}

		journal, err := openJournal()
		if err != nil {
			log.WithError(err).Warnf("Failed to open order journal.")
		} else {
			defer journal.Close()
			entry, err := journal.FindByOrderID(accountIDKey, orderID)
			if err == nil {
				err = journal.UpdateOrderStatus(entry.ClientOrderID, db.StatusCancelRequested, 0,
					cancelled.Messages.String())
			}
			if err != nil && err != db.ErrNotFound {
				log.WithError(err).Warnf("Failed to update order journal.")
			}
		}
		return writeOutput(cmd.OutOrStdout(), cancelled)
	},
}

func init() {
	flags := ordersListCmd.Flags()
	flags.StringVar(&ordersListFlags.Status, "status", "", "Order status (open, executed, cancelled, ...)")
	flags.StringSliceVar(&ordersListFlags.Symbols, "symbol", nil, "Symbols, at most 25")
	flags.IntVar(&ordersListFlags.Count, "count", 0, "Number of orders, at most 100")
	flags.StringVar(&ordersListFlags.Marker, "marker", "", "Marker of the next page")
	flags.BoolVar(&ordersListFlags.Journal, "journal", false, "List orders from the local journal instead")

	addOrderFlags(ordersPreviewCmd.Flags())
	ordersPreviewCmd.MarkFlagRequired("symbol")
	ordersPreviewCmd.MarkFlagRequired("action")
	ordersPreviewCmd.MarkFlagRequired("quantity")

	ordersCmd.AddCommand(ordersListCmd)
	ordersCmd.AddCommand(ordersPreviewCmd)
	ordersCmd.AddCommand(ordersPlaceCmd)
	ordersCmd.AddCommand(ordersCancelCmd)
}

func addOrderFlags(flags *pflag.FlagSet) {
	flags.StringVar(&orderFlags.Symbol, "symbol", "", "Symbol")
	flags.StringVar(&orderFlags.Action, "action", "", "Action (buy, sell, buy_to_cover, sell_short)")
	flags.StringVar(&orderFlags.Quantity, "quantity", "", "Number of shares")
	flags.StringVar(&orderFlags.PriceType, "price-type", "limit", "Price type (market, limit, stop, stop_limit)")
	flags.StringVar(&orderFlags.LimitPrice, "limit", "", "Limit price")
	flags.StringVar(&orderFlags.StopPrice, "stop", "", "Stop price")
	flags.StringVar(&orderFlags.Term, "term", "", "Order term (good_for_day, good_until_cancel, ...)")
	flags.StringVar(&orderFlags.Session, "session", "", "Market session (regular, extended)")
	flags.BoolVar(&orderFlags.AllOrNone, "all-or-none", false, "All or none")
}

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
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gitlab.com/crankykernel/etrade/etrade"
)

// Dates on the command line are given as YYYY-MM-DD.
const dateLayout = "2006-01-02"

func parseDate(name string, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	date, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid %s", name)
	}
	return date, nil
}

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List accounts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := newClient()
		if err != nil {
			return err
		}
		accounts, err := client.ListAccounts(context.Background())
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), accounts)
	},
}

var balanceFlags struct {
	RealTime bool
}

var balanceCmd = &cobra.Command{
	Use:   "balance <accountIdKey>",
	Short: "Show an account balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := newClient()
		if err != nil {
			return err
		}
		balance, err := client.GetBalance(context.Background(), args[0], etrade.BalanceOptions{
			RealTimeNAV: balanceFlags.RealTime,
		})
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), balance)
	},
}

var portfolioFlags struct {
	View   string
	Count  int
	Totals bool
	Lots   bool
}

var portfolioCmd = &cobra.Command{
	Use:   "portfolio <accountIdKey>",
	Short: "Show the positions of an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := newClient()
		if err != nil {
			return err
		}
		portfolios, err := client.GetPortfolio(context.Background(), args[0], etrade.PortfolioOptions{
			View:           etrade.PortfolioView(strings.ToUpper(portfolioFlags.View)),
			Count:          portfolioFlags.Count,
			TotalsRequired: portfolioFlags.Totals,
			LotsRequired:   portfolioFlags.Lots,
		})
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), portfolios)
	},
}

var transactionsFlags struct {
	Start  string
	End    string
	Count  int
	Marker string
}

var transactionsCmd = &cobra.Command{
	Use:   "transactions <accountIdKey>",
	Short: "List account transactions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := parseDate("start", transactionsFlags.Start)
		if err != nil {
			return err
		}
		end, err := parseDate("end", transactionsFlags.End)
		if err != nil {
			return err
		}
		client, _, err := newClient()
		if err != nil {
			return err
		}
		transactions, err := client.ListTransactions(context.Background(), args[0], etrade.TransactionOptions{
			StartDate: start,
			EndDate:   end,
			Count:     transactionsFlags.Count,
			Marker:    transactionsFlags.Marker,
		})
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), transactions)
	},
}

func init() {
	balanceCmd.Flags().BoolVar(&balanceFlags.RealTime, "real-time", false, "Include real time account values")

	flags := portfolioCmd.Flags()
	flags.StringVar(&portfolioFlags.View, "view", "", "View (quick, performance, fundamental, complete)")
	flags.IntVar(&portfolioFlags.Count, "count", 0, "Number of positions")
	flags.BoolVar(&portfolioFlags.Totals, "totals", false, "Include portfolio totals")
	flags.BoolVar(&portfolioFlags.Lots, "lots", false, "Include position lots")

	flags = transactionsCmd.Flags()
	flags.StringVar(&transactionsFlags.Start, "start", "", "Start date (YYYY-MM-DD)")
	flags.StringVar(&transactionsFlags.End, "end", "", "End date (YYYY-MM-DD)")
	flags.IntVar(&transactionsFlags.Count, "count", 0, "Number of transactions, at most 50")
	flags.StringVar(&transactionsFlags.Marker, "marker", "", "Marker of the next page")
}

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

	"github.com/spf13/cobra"
	"gitlab.com/crankykernel/etrade/etrade"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <company name>",
	Short: "Look up symbols by company name",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := newClient()
		if err != nil {
			return err
		}
		results, err := client.LookUpProduct(context.Background(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), results)
	},
}

var quoteFlags struct {
	Detail   string
	Earnings bool
}

var quoteCmd = &cobra.Command{
	Use:   "quote <symbol>...",
	Short: "Get quotes for up to 25 symbols",
	Long: "Get quotes for up to 25 symbols. Options are given as " +
		"underlier:year:month:day:optionType:strikePrice, for example GOOG:2018:8:17:PUT:1000.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := newClient()
		if err != nil {
			return err
		}
		symbols := []string{}
		for _, arg := range args {
			symbols = append(symbols, strings.Split(arg, ",")...)
		}
		quotes, err := client.GetQuote(context.Background(), symbols, etrade.QuoteOptions{
			DetailFlag:          etrade.DetailFlag(quoteFlags.Detail),
			RequireEarningsDate: quoteFlags.Earnings,
		})
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), quotes)
	},
}

var expiriesCmd = &cobra.Command{
	Use:   "expiries <symbol>",
	Short: "List option expiry dates",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := newClient()
		if err != nil {
			return err
		}
		dates, err := client.GetOptionExpireDates(context.Background(), args[0])
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), dates)
	},
}

var optionsFlags struct {
	Expiry    string
	ChainType string
	Near      string
	Strikes   int
	Category  string
	PriceType string
	Weekly    bool
	All       bool
}

var optionsCmd = &cobra.Command{
	Use:   "options <symbol>",
	Short: "Show an option chain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := newClient()
		if err != nil {
			return err
		}
		ctx := context.Background()

		if optionsFlags.All {
			chains, err := client.GetAllOptionChains(ctx, args[0])
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), chains)
		}

		expiry, err := parseDate("expiry", optionsFlags.Expiry)
		if err != nil {
			return err
		}
		near, err := parseDecimal("near", optionsFlags.Near)
		if err != nil {
			return err
		}
		chain, err := client.GetOptionChains(ctx, args[0], etrade.OptionChainOptions{
			Expiry:          expiry,
			ChainType:       etrade.ChainType(strings.ToUpper(optionsFlags.ChainType)),
			StrikePriceNear: near,
			NoOfStrikes:     optionsFlags.Strikes,
			OptionCategory:  etrade.OptionCategory(strings.ToUpper(optionsFlags.Category)),
			PriceType:       etrade.OptionPriceType(strings.ToUpper(optionsFlags.PriceType)),
			IncludeWeekly:   optionsFlags.Weekly,
		})
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), chain)
	},
}

func init() {
	quoteCmd.Flags().StringVar(&quoteFlags.Detail, "detail", "", "Detail (all, fundamental, intraday, options, week_52, mf_detail)")
	quoteCmd.Flags().BoolVar(&quoteFlags.Earnings, "earnings", false, "Include the next earnings date")

	flags := optionsCmd.Flags()
	flags.StringVar(&optionsFlags.Expiry, "expiry", "", "Expiry date (YYYY-MM-DD), defaults to the nearest")
	flags.StringVar(&optionsFlags.ChainType, "chain-type", "", "Chain type (call, put, callput)")
	flags.StringVar(&optionsFlags.Near, "near", "", "Strike price to center the chain on")
	flags.IntVar(&optionsFlags.Strikes, "strikes", 0, "Number of strikes")
	flags.StringVar(&optionsFlags.Category, "category", "", "Option category (standard, all, mini)")
	flags.StringVar(&optionsFlags.PriceType, "price-type", "", "Price type (atnm, all)")
	flags.BoolVar(&optionsFlags.Weekly, "weekly", false, "Include weekly options")
	flags.BoolVar(&optionsFlags.All, "all", false, "Fetch the chain of every expiry date")
}

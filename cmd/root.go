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
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gitlab.com/crankykernel/etrade/config"
	"gitlab.com/crankykernel/etrade/log"
)

var DefaultDataDirectory = "."

var rootFlags struct {
	DataDirectory string
	Output        string
	LogLevel      string
	Sandbox       bool
}

var rootCmd = &cobra.Command{
	Use:   "etrade",
	Short: "E*Trade API client",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func InitCobra() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&rootFlags.DataDirectory, "data", "D", DefaultDataDirectory, "Data directory")
	flags.StringVarP(&rootFlags.Output, "output", "o", outputJson, "Output format (json, yaml)")
	flags.StringVar(&rootFlags.LogLevel, "log-level", "warning", "Log level")
	flags.BoolVar(&rootFlags.Sandbox, "sandbox", false, "Use the E*Trade sandbox")
	viper.BindPFlag(config.KeySandbox, flags.Lookup("sandbox"))

	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(accountsCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(portfolioCmd)
	rootCmd.AddCommand(transactionsCmd)
	rootCmd.AddCommand(ordersCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(quoteCmd)
	rootCmd.AddCommand(expiriesCmd)
	rootCmd.AddCommand(optionsCmd)
	rootCmd.AddCommand(serverCmd)
}

func initConfig(cmd *cobra.Command) error {
	level, err := log.ParseLevel(rootFlags.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)

	if err := os.MkdirAll(rootFlags.DataDirectory, 0700); err != nil {
		return err
	}
	if err := config.Init(rootFlags.DataDirectory); err != nil {
		return err
	}
	if rootFlags.Output != outputJson && rootFlags.Output != outputYaml {
		return fmt.Errorf("unsupported output format: %s", rootFlags.Output)
	}
	return nil
}

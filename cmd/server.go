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
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"
	"gitlab.com/crankykernel/etrade/log"
	"gitlab.com/crankykernel/etrade/server"
)

var serverFlags struct {
	Host        string
	Port        int16
	LogFilename string
	NoLog       bool
	OpenBrowser bool
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Serve a local JSON API over the saved access token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !serverFlags.NoLog {
			log.AddHook(log.NewFileOutputHook(
				filepath.Join(rootFlags.DataDirectory, serverFlags.LogFilename)))
		}

		client, session, err := newClient()
		if err != nil {
			return err
		}
		journal, err := openJournal()
		if err != nil {
			return err
		}
		defer journal.Close()

		authenticator, err := server.NewAuthenticatorFromConfig(cmd.OutOrStdout())
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		if serverFlags.OpenBrowser {
			go server.OpenBrowser(fmt.Sprintf("http://%s:%d/api/session", serverFlags.Host, serverFlags.Port))
		}
		return server.New(session, client, journal, authenticator).
			ListenAndServe(ctx, serverFlags.Host, serverFlags.Port)
	},
}

func init() {
	flags := serverCmd.Flags()
	flags.Int16VarP(&serverFlags.Port, "port", "p", server.DefaultPort, "Port")
	flags.StringVar(&serverFlags.Host, "host", "127.0.0.1", "Host to bind to")
	flags.StringVar(&serverFlags.LogFilename, "log", "etrade.log", "Log filename")
	flags.BoolVar(&serverFlags.NoLog, "nolog", false, "Disable logging to file")
	flags.BoolVar(&serverFlags.OpenBrowser, "open", false, "Open browser")
}

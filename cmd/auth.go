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
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gitlab.com/crankykernel/etrade/config"
	"gitlab.com/crankykernel/etrade/log"
	"gitlab.com/crankykernel/etrade/oauth"
	"gitlab.com/crankykernel/etrade/server"
)

var authFlags struct {
	OpenBrowser bool
	Verifier    string
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the E*Trade access token",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize this tool with E*Trade",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		credentials, err := config.Credentials()
		if err != nil {
			return err
		}
		session, err := oauth.NewSession(credentials)
		if err != nil {
			return err
		}
		return login(cmd, session)
	},
}

func login(cmd *cobra.Command, session *oauth.Session) error {
	ctx := context.Background()
	authorizeURL, err := session.RequestToken(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get request token")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Open the following URL, log in to E*Trade and accept the request:\n\n%s\n\n",
		authorizeURL)
	if authFlags.OpenBrowser {
		server.OpenBrowser(authorizeURL)
	}

	verifier := authFlags.Verifier
	if verifier == "" {
		fmt.Fprintf(out, "Verification code: ")
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return errors.Wrap(err, "failed to read verification code")
		}
		verifier = strings.TrimSpace(line)
	}

	token, err := session.AccessToken(ctx, verifier)
	if err != nil {
		return err
	}
	config.SetAccessToken(token)
	if err := config.WriteConfig(); err != nil {
		return err
	}
	log.Infof("Access token obtained.")
	fmt.Fprintf(out, "Logged in. The access token is saved in %s.\n", config.Filename())
	return nil
}

var authRenewCmd = &cobra.Command{
	Use:   "renew",
	Short: "Reactivate an access token that has been idle for two hours",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, session, err := newClient()
		if err != nil {
			return err
		}
		if err := session.Renew(context.Background()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Access token renewed.")
		return nil
	},
}

var authRevokeCmd = &cobra.Command{
	Use:   "revoke",
	Short: "Revoke and forget the access token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, session, err := newClient()
		if err != nil {
			return err
		}
		if err := session.Revoke(context.Background()); err != nil {
			return err
		}
		config.SetAccessToken(oauth.Token{})
		if err := config.WriteConfig(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Access token revoked.")
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether an access token is saved",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := newSession()
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), map[string]interface{}{
			"state":   session.State().String(),
			"sandbox": config.Sandbox(),
			"config":  config.Filename(),
		})
	},
}

func init() {
	authLoginCmd.Flags().BoolVar(&authFlags.OpenBrowser, "open", false, "Open the authorization URL in a browser")
	authLoginCmd.Flags().StringVar(&authFlags.Verifier, "verifier", "", "Verification code shown by E*Trade")

	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authRenewCmd)
	authCmd.AddCommand(authRevokeCmd)
	authCmd.AddCommand(authStatusCmd)
}

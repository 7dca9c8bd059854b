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

package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"gitlab.com/crankykernel/etrade/config"
	"gitlab.com/crankykernel/etrade/db"
	"gitlab.com/crankykernel/etrade/etrade"
	"gitlab.com/crankykernel/etrade/log"
	"gitlab.com/crankykernel/etrade/oauth"
)

const DefaultPort = 6045

// Session is the part of *oauth.Session the server uses.
type Session interface {
	State() oauth.State
	Renew(ctx context.Context) error
}

type Server struct {
	session       Session
	client        *etrade.Client
	journal       *db.DB
	authenticator *Authenticator
	router        *mux.Router
}

// New builds the local API over an authorized session. journal may be nil.
func New(session Session, client *etrade.Client, journal *db.DB, authenticator *Authenticator) *Server {
	s := &Server{
		session:       session,
		client:        client,
		journal:       journal,
		authenticator: authenticator,
		router:        mux.NewRouter(),
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(authenticator.Middleware)

	api.HandleFunc("/session", s.getSessionHandler).Methods("GET")
	api.HandleFunc("/session/renew", s.renewSessionHandler).Methods("POST")
	api.HandleFunc("/accounts", s.listAccountsHandler).Methods("GET")
	api.HandleFunc("/accounts/{accountIdKey}/balance", s.getBalanceHandler).Methods("GET")
	api.HandleFunc("/accounts/{accountIdKey}/portfolio", s.getPortfolioHandler).Methods("GET")
	api.HandleFunc("/accounts/{accountIdKey}/journal", s.queryJournalHandler).Methods("GET")
	api.HandleFunc("/quote/{symbols}", s.getQuoteHandler).Methods("GET")
	api.HandleFunc("/options/{symbol}/expiries", s.getExpiryDatesHandler).Methods("GET")

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// watchConfig reloads the server credentials whenever the configuration
// is written until ctx is done.
func (s *Server) watchConfig(ctx context.Context) {
	channel := config.Subscribe()
	defer config.Unsubscribe(channel)
	for {
		select {
		case <-channel:
			log.Debugf("Configuration changed, reloading server credentials.")
			s.authenticator.Reload()
		case <-ctx.Done():
			return
		}
	}
}

// ListenAndServe serves until ctx is cancelled. Only 127.0.0.1 may be
// bound as the API exposes the brokerage account.
func (s *Server) ListenAndServe(ctx context.Context, host string, port int16) error {
	if host != "127.0.0.1" {
		return errors.Errorf("hosts other than 127.0.0.1 not allowed: %s", host)
	}

	listenHostPort := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	listener, err := net.Listen("tcp", listenHostPort)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", listenHostPort)
	}

	httpServer := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.watchConfig(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Printf("Starting server on %s.", listenHostPort)
	if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "server failed")
	}
	return nil
}

// OpenBrowser attempts to open url in the desktop's browser.
func OpenBrowser(url string) {
	log.Info("Attempting to start browser.")
	var c *exec.Cmd
	switch runtime.GOOS {
	case "linux":
		c = exec.Command("xdg-open", url)
	case "darwin":
		c = exec.Command("open", url)
	case "windows":
		runDll32 := filepath.Join(os.Getenv("SYSTEMROOT"), "System32", "rundll32.exe")
		c = exec.Command(runDll32, "url.dll,FileProtocolHandler", url)
	default:
		return
	}
	if err := c.Run(); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"os": runtime.GOOS,
		}).Errorf("Failed to start browser.")
	}
}

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
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"gitlab.com/crankykernel/etrade/db"
	"gitlab.com/crankykernel/etrade/etrade"
	"gitlab.com/crankykernel/etrade/log"
)

type sessionResponse struct {
	State   string `json:"state"`
	BaseURL string `json:"baseUrl"`
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	WriteJsonResponse(w, http.StatusOK, sessionResponse{
		State:   s.session.State().String(),
		BaseURL: s.client.BaseURL(),
	})
}

func (s *Server) renewSessionHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Renew(r.Context()); err != nil {
		WriteApiError(w, r, err)
		return
	}
	log.Infof("Access token renewed.")
	s.getSessionHandler(w, r)
}

func (s *Server) listAccountsHandler(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.client.ListAccounts(r.Context())
	if err != nil {
		WriteApiError(w, r, err)
		return
	}
	WriteJsonResponse(w, http.StatusOK, accounts)
}

func (s *Server) getBalanceHandler(w http.ResponseWriter, r *http.Request) {
	accountIDKey := mux.Vars(r)["accountIdKey"]
	options := etrade.BalanceOptions{
		RealTimeNAV: r.FormValue("realTimeNAV") == "true",
	}
	balance, err := s.client.GetBalance(r.Context(), accountIDKey, options)
	if err != nil {
		WriteApiError(w, r, err)
		return
	}
	WriteJsonResponse(w, http.StatusOK, balance)
}

func (s *Server) getPortfolioHandler(w http.ResponseWriter, r *http.Request) {
	accountIDKey := mux.Vars(r)["accountIdKey"]
	options := etrade.PortfolioOptions{
		View: etrade.PortfolioView(strings.ToUpper(r.FormValue("view"))),
	}
	portfolios, err := s.client.GetPortfolio(r.Context(), accountIDKey, options)
	if err != nil {
		WriteApiError(w, r, err)
		return
	}
	WriteJsonResponse(w, http.StatusOK, portfolios)
}

// queryJournalHandler lists orders issued from this tool for an account.
func (s *Server) queryJournalHandler(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		WriteJsonError(w, http.StatusNotFound, "order journal is not enabled")
		return
	}
	options := db.QueryOptions{
		AccountIDKey: mux.Vars(r)["accountIdKey"],
		Symbol:       r.FormValue("symbol"),
		Status:       db.JournalStatus(strings.ToUpper(r.FormValue("status"))),
	}
	if limit := r.FormValue("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			WriteJsonError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		options.Limit = n
	}
	entries, err := s.journal.QueryOrders(options)
	if err != nil {
		log.WithError(err).Errorf("Failed to query order journal.")
		WriteJsonError(w, http.StatusInternalServerError, "failed to query order journal")
		return
	}
	WriteJsonResponse(w, http.StatusOK, entries)
}

func (s *Server) getQuoteHandler(w http.ResponseWriter, r *http.Request) {
	symbols := strings.Split(mux.Vars(r)["symbols"], ",")
	options := etrade.QuoteOptions{
		DetailFlag: etrade.DetailFlag(r.FormValue("detailFlag")),
	}
	quotes, err := s.client.GetQuote(r.Context(), symbols, options)
	if err != nil {
		WriteApiError(w, r, err)
		return
	}
	WriteJsonResponse(w, http.StatusOK, quotes)
}

func (s *Server) getExpiryDatesHandler(w http.ResponseWriter, r *http.Request) {
	dates, err := s.client.GetOptionExpireDates(r.Context(), mux.Vars(r)["symbol"])
	if err != nil {
		WriteApiError(w, r, err)
		return
	}
	WriteJsonResponse(w, http.StatusOK, dates)
}

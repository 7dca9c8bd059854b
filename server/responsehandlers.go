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
	"encoding/json"
	"net/http"

	"gitlab.com/crankykernel/etrade/etrade"
	"gitlab.com/crankykernel/etrade/log"
	"gitlab.com/crankykernel/etrade/oauth"
)

func WriteJsonResponse(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	encoder := json.NewEncoder(w)
	if body != nil {
		if err := encoder.Encode(body); err != nil {
			log.WithError(err).Errorf("Failed to write JSON response to client")
		}
	}
}

// WriteJsonError writes a JSON formatted error response to the web client.
func WriteJsonError(w http.ResponseWriter, statusCode int, message string) {
	body := map[string]interface{}{
		"error":      true,
		"statusCode": statusCode,
	}
	if message != "" {
		body["message"] = message
	}
	WriteJsonResponse(w, statusCode, body)
}

// errorStatus maps an error from the E*Trade client to the status code
// returned to the web client.
func errorStatus(err error) int {
	switch err := err.(type) {
	case *etrade.ValidationError:
		return http.StatusBadRequest
	case *oauth.InvalidStateError:
		return http.StatusConflict
	case *etrade.APIError:
		if err.StatusCode >= 400 && err.StatusCode < 500 {
			return err.StatusCode
		}
		return http.StatusBadGateway
	case *oauth.AuthenticationError:
		return http.StatusBadGateway
	case *oauth.TransportError:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func WriteApiError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode := errorStatus(err)
	log.WithError(err).WithFields(log.Fields{
		"path":   r.URL.Path,
		"method": r.Method,
		"status": statusCode,
	}).Errorf("Request failed.")
	WriteJsonError(w, statusCode, err.Error())
}

package lnurl

import (
	"encoding/json"
	"net/http"

	"github.com/lnurld/lnurld/subproto"
)

// ServeHTTP implements http.Handler, exposing the dispatch engine on a
// single endpoint driven by GET query parameters. Responses are always JSON
// with a 200 status; failures are reported in the body's status field, which
// is what LNURL wallets expect.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	params := make(subproto.Params, len(query))
	for key, values := range query {
		value := ""
		if len(values) > 0 {
			value = values[0]
		}
		params[key] = value
	}

	response := s.Handle(r.Context(), params)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Errorf("Unable to write response: %v", err)
	}
}

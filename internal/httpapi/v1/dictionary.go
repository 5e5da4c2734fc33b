package v1

import (
	"net/http"

	"github.com/tinoosan/groupledger/internal/dictionary"
)

// GET /v1/dictionary
func (s *Server) getDictionary(w http.ResponseWriter, r *http.Request) {
	out := struct {
		Roles         []dictionary.Entry `json:"roles"`
		SplitPolicies []dictionary.Entry `json:"split_policies"`
	}{Roles: dictionary.Roles(), SplitPolicies: dictionary.SplitPolicies()}
	toJSON(w, http.StatusOK, out)
}

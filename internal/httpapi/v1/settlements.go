package v1

import (
	"net/http"

	"github.com/tinoosan/groupledger/internal/service/settlement"
)

// POST /v1/groups/{id}/settlements
func (s *Server) postSettlement(w http.ResponseWriter, r *http.Request) {
	in, _ := r.Context().Value(ctxKeyRecordSettlement).(settlement.RecordInput)
	st, err := s.settlements.Record(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	settlementsRecordedTotal.Inc()
	toJSON(w, http.StatusCreated, toSettlementResponse(st))
}

// GET /v1/groups/{id}/settlements
func (s *Server) listSettlements(w http.ResponseWriter, r *http.Request) {
	list, err := s.settlements.List(r.Context(), groupIDFrom(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := listSettlementsResponse{Items: make([]settlementResponse, 0, len(list))}
	for _, st := range list {
		out.Items = append(out.Items, toSettlementResponse(st))
	}
	toJSON(w, http.StatusOK, out)
}

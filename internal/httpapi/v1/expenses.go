package v1

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tinoosan/groupledger/internal/service/expense"
)

// postExpense handles POST /v1/groups/{id}/expenses. A replayed idempotency
// key answers 200 with the stored expense; a fresh write answers 201.
func (s *Server) postExpense(w http.ResponseWriter, r *http.Request) {
	in, _ := r.Context().Value(ctxKeyRecordExpense).(expense.RecordInput)
	rec, err := s.expenses.Record(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if rec.Replayed {
		expenseReplaysTotal.Inc()
		w.Header().Set("Idempotent-Replayed", "true")
		toJSON(w, http.StatusOK, toExpenseResponse(rec.Expense))
		return
	}
	expensesRecordedTotal.WithLabelValues(rec.Expense.Currency()).Inc()
	w.Header().Set("Location", "/v1/groups/"+rec.Expense.GroupID.String()+"/expenses/"+rec.Expense.ID.String())
	toJSON(w, http.StatusCreated, toExpenseResponse(rec.Expense))
}

// GET /v1/groups/{id}/expenses
func (s *Server) listExpenses(w http.ResponseWriter, r *http.Request) {
	list, err := s.expenses.List(r.Context(), groupIDFrom(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := listExpensesResponse{Items: make([]expenseResponse, 0, len(list))}
	for _, e := range list {
		out.Items = append(out.Items, toExpenseResponse(e))
	}
	toJSON(w, http.StatusOK, out)
}

// GET /v1/groups/{id}/expenses/{expenseID}
func (s *Server) getExpense(w http.ResponseWriter, r *http.Request) {
	expenseID, err := uuid.Parse(chi.URLParam(r, "expenseID"))
	if err != nil {
		badRequest(w, "invalid expense id")
		return
	}
	e, err := s.expenses.Get(r.Context(), groupIDFrom(r), expenseID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toExpenseResponse(e))
}

// GET /v1/groups/{id}/balances
func (s *Server) getBalances(w http.ResponseWriter, r *http.Request) {
	sum, err := s.balances.Summary(r.Context(), groupIDFrom(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toBalancesResponse(sum))
}

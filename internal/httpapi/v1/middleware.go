package v1

import (
	"context"
	"net/http"
	"strings"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tinoosan/groupledger/internal/ledger"
	"github.com/tinoosan/groupledger/internal/meta"
	"github.com/tinoosan/groupledger/internal/service/expense"
	"github.com/tinoosan/groupledger/internal/service/settlement"
)

type ctxKey string

const (
	ctxKeyGroupID          ctxKey = "groupID"
	ctxKeyCreateGroup      ctxKey = "validatedCreateGroup"
	ctxKeyListGroups       ctxKey = "validatedListGroups"
	ctxKeyRenameGroup      ctxKey = "validatedRenameGroup"
	ctxKeyJoinGroup        ctxKey = "validatedJoinGroup"
	ctxKeyRecordExpense    ctxKey = "validatedRecordExpense"
	ctxKeyRecordSettlement ctxKey = "validatedRecordSettlement"
)

// groupIDParam parses {id} once for every nested group route.
func (s *Server) groupIDParam(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			badRequest(w, "invalid group id")
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyGroupID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func groupIDFrom(r *http.Request) uuid.UUID {
	id, _ := r.Context().Value(ctxKeyGroupID).(uuid.UUID)
	return id
}

// validateCreateGroup decodes POST /v1/groups. Name rules are enforced by the service.
func (s *Server) validateCreateGroup() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !requireJSON(w, r) {
				return
			}
			var req createGroupRequest
			if err := decodeJSON(r, &req); err != nil {
				badRequest(w, "invalid JSON: "+err.Error())
				return
			}
			if req.CreatedBy == uuid.Nil {
				badRequest(w, "created_by is required")
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyCreateGroup, req)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// validateListGroups parses the required user_id query parameter.
func (s *Server) validateListGroups() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.URL.Query().Get("user_id")
			if raw == "" {
				badRequest(w, "user_id is required")
				return
			}
			userID, err := uuid.Parse(raw)
			if err != nil {
				badRequest(w, "invalid user_id")
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyListGroups, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (s *Server) validateRenameGroup() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !requireJSON(w, r) {
				return
			}
			var req renameGroupRequest
			if err := decodeJSON(r, &req); err != nil {
				badRequest(w, "invalid JSON: "+err.Error())
				return
			}
			if req.ActorID == uuid.Nil {
				badRequest(w, "actor_id is required")
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyRenameGroup, req)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (s *Server) validateJoinGroup() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !requireJSON(w, r) {
				return
			}
			var req joinGroupRequest
			if err := decodeJSON(r, &req); err != nil {
				badRequest(w, "invalid JSON: "+err.Error())
				return
			}
			if req.UserID == uuid.Nil {
				badRequest(w, "user_id is required")
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyJoinGroup, req.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// validateRecordExpense decodes POST /v1/groups/{id}/expenses into an
// expense.RecordInput. The Idempotency-Key header wins over client_expense_id.
func (s *Server) validateRecordExpense() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !requireJSON(w, r) {
				return
			}
			var req recordExpenseRequest
			if err := decodeJSON(r, &req); err != nil {
				badRequest(w, "invalid JSON: "+err.Error())
				return
			}
			if req.PayerID == uuid.Nil {
				badRequest(w, "payer_id is required")
				return
			}
			amt, err := wireAmount(req.Currency, req.AmountMinor, req.Amount)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			md := meta.New(req.Metadata)
			if err := md.Validate(); err != nil {
				s.fail(w, r, err)
				return
			}
			key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
			if key == "" {
				key = strings.TrimSpace(req.ClientExpenseID)
			}
			in := expense.RecordInput{
				GroupID:        groupIDFrom(r),
				PayerID:        req.PayerID,
				Description:    req.Description,
				Amount:         amt,
				SplitPolicy:    ledger.SplitPolicy(req.SplitPolicy),
				Metadata:       md,
				IdempotencyKey: key,
			}
			if req.Date != nil {
				in.Date = req.Date.UTC()
			}
			ctx := context.WithValue(r.Context(), ctxKeyRecordExpense, in)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (s *Server) validateRecordSettlement() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !requireJSON(w, r) {
				return
			}
			var req recordSettlementRequest
			if err := decodeJSON(r, &req); err != nil {
				badRequest(w, "invalid JSON: "+err.Error())
				return
			}
			if req.FromID == uuid.Nil || req.ToID == uuid.Nil {
				badRequest(w, "from_id and to_id are required")
				return
			}
			amt, err := wireAmount(req.Currency, req.AmountMinor, req.Amount)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			in := settlement.RecordInput{
				GroupID: groupIDFrom(r),
				FromID:  req.FromID,
				ToID:    req.ToID,
				Amount:  amt,
				Note:    req.Note,
			}
			ctx := context.WithValue(r.Context(), ctxKeyRecordSettlement, in)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

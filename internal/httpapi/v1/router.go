// Package v1 wires the HTTP surface of the group ledger.
// It keeps handlers thin, delegating business rules to the service layer.
package v1

import (
	"log/slog"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tinoosan/groupledger/internal/events"
	"github.com/tinoosan/groupledger/internal/service/balance"
	"github.com/tinoosan/groupledger/internal/service/expense"
	"github.com/tinoosan/groupledger/internal/service/group"
	"github.com/tinoosan/groupledger/internal/service/settlement"
)

// Options tunes the server.
type Options struct {
	// DefaultCurrency is reported for groups that have no activity yet.
	DefaultCurrency string
	// Publisher receives domain events after each committed write. Nil disables events.
	Publisher events.Publisher
}

// Server wires handlers and middleware using Chi.
type Server struct {
	groups      group.Service
	expenses    expense.Service
	settlements settlement.Service
	balances    balance.Service
	store       Store
	log         *slog.Logger
	rt          *chi.Mux
}

// New constructs the HTTP server with routes and middleware.
func New(store Store, logger *slog.Logger, opts Options) *Server {
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "INR"
	}
	pub := opts.Publisher
	if pub == nil {
		pub = events.Nop{}
	}
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(logger))
	r.Use(recoverer(logger))
	r.Use(metricsMiddleware)

	s := &Server{
		groups:      group.New(store, store, pub, logger),
		expenses:    expense.New(store, store, pub, logger),
		settlements: settlement.New(store, store, pub, logger),
		balances:    balance.New(store, opts.DefaultCurrency),
		store:       store,
		log:         logger,
		rt:          r,
	}
	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// routes declares the public HTTP API endpoints and attaches any per-route middleware.
func (s *Server) routes() {
	s.rt.Route("/v1/groups", func(r chi.Router) {
		r.With(s.validateCreateGroup()).Post("/", s.postGroup)
		r.With(s.validateListGroups()).Get("/", s.listGroups)
		r.Route("/{id}", func(r chi.Router) {
			r.Use(s.groupIDParam)
			r.Get("/", s.getGroup)
			r.With(s.validateRenameGroup()).Patch("/", s.renameGroup)
			r.With(s.validateJoinGroup()).Post("/members", s.joinGroup)
			r.Get("/members", s.listMembers)
			r.With(s.validateRecordExpense()).Post("/expenses", s.postExpense)
			r.Get("/expenses", s.listExpenses)
			r.Get("/expenses/{expenseID}", s.getExpense)
			r.Get("/balances", s.getBalances)
			r.With(s.validateRecordSettlement()).Post("/settlements", s.postSettlement)
			r.Get("/settlements", s.listSettlements)
		})
	})
	s.rt.Get("/v1/dictionary", s.getDictionary)
	// Health (unversioned)
	s.rt.Get("/healthz", s.healthz)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Handle("/metrics", metricsHandler())
}

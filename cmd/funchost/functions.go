package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/funcauthz/internal/audit"
	"github.com/vyrodovalexey/funcauthz/internal/auth/revocation"
	"github.com/vyrodovalexey/funcauthz/internal/authz"
	"github.com/vyrodovalexey/funcauthz/internal/function"
	"github.com/vyrodovalexey/funcauthz/internal/observability"
)

// Roles and policies referenced by the bundled functions.
const (
	roleOrdersWrite = "orders.write"
	roleOrdersAdmin = "orders.admin"
	roleTokenAdmin  = "tokens.admin"

	policyOrdersAdmin = "orders-admin"
)

// Handler types of the bundled functions.
const (
	typeStatus = "Status"
	typeOrders = "Orders"
	typeTokens = "Tokens"
)

var errInvalidOrder = errors.New("item and a positive quantity are required")

// order is a record of the sample order store.
type order struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Item      string    `json:"item"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
}

// orderStore is the in-memory backing store of the order functions.
type orderStore struct {
	mu     sync.RWMutex
	orders map[string]*order
}

func newOrderStore() *orderStore {
	return &orderStore{orders: make(map[string]*order)}
}

func (s *orderStore) get(id string) (*order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	return o, ok
}

func (s *orderStore) list(owner string) []*order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*order, 0, len(s.orders))
	for _, o := range s.orders {
		if owner == "" || o.Owner == owner {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *orderStore) add(o *order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
}

func (s *orderStore) remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.orders[id]
	delete(s.orders, id)
	return ok
}

// ownerOrAdmin lets order admins through and forbids everyone else except
// the order's owner. A missing order short-circuits with 404.
func ownerOrAdmin(store *orderStore) authz.Filter {
	return authz.FilterFunc(func(fc *authz.FilterContext) {
		o, ok := store.get(fc.RouteValues["id"])
		if !ok {
			fc.Result = authz.ObjectResult{
				Code:  http.StatusNotFound,
				Value: map[string]string{"error": "order not found"},
			}
			return
		}
		if fc.Identity.IsInRole(roleOrdersAdmin) || o.Owner == fc.Identity.Subject {
			return
		}
		fc.Result = authz.ForbidResult{}
	})
}

// newCatalog declares the handler types of the bundled functions.
func newCatalog(store *orderStore) (*authz.Catalog, error) {
	c := authz.NewCatalog()

	steps := []func() error{
		func() error { return c.AddType(typeStatus, "") },
		func() error { return c.AddMethod(typeStatus, "Get", nil) },

		func() error { return c.AddType(typeOrders, "", authz.WithAuthorize(authz.Authorize{})) },
		func() error { return c.AddMethod(typeOrders, "List", nil) },
		func() error {
			return c.AddMethod(typeOrders, "Get", []string{"string"},
				authz.WithAuthorize(authz.Authorize{Filter: ownerOrAdmin(store)}))
		},
		func() error {
			return c.AddMethod(typeOrders, "Create", nil,
				authz.WithAuthorize(authz.Authorize{Roles: roleOrdersWrite + "," + roleOrdersAdmin}))
		},
		func() error {
			return c.AddMethod(typeOrders, "Delete", []string{"string"},
				authz.WithAuthorize(authz.Authorize{Policy: policyOrdersAdmin}))
		},
		func() error { return c.AddMethod(typeOrders, "Catalog", nil, authz.WithAllowAnonymous()) },

		func() error {
			return c.AddType(typeTokens, "", authz.WithAuthorize(authz.Authorize{Roles: roleTokenAdmin}))
		},
		func() error { return c.AddMethod(typeTokens, "Revoke", nil) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// functionSet holds the dependencies of the bundled functions.
type functionSet struct {
	store       *orderStore
	revocations *revocation.RedisStore
	auditor     *audit.Auditor
	logger      observability.Logger
	now         func() time.Time
	newID       func() string
}

// functions returns the bundled functions. Token revocation is only
// offered when a revocation store is configured.
func (fs *functionSet) functions() []function.Function {
	fns := []function.Function{
		{Name: "status", Method: http.MethodGet, Route: "/api/status",
			Handler: authz.HandlerRef{Type: typeStatus, Method: "Get"}, Func: fs.status},
		{Name: "orders-list", Method: http.MethodGet, Route: "/api/orders",
			Handler: authz.HandlerRef{Type: typeOrders, Method: "List"}, Func: fs.listOrders},
		{Name: "orders-get", Method: http.MethodGet, Route: "/api/orders/{id}",
			Handler: authz.HandlerRef{Type: typeOrders, Method: "Get", Params: []string{"string"}}, Func: fs.getOrder},
		{Name: "orders-create", Method: http.MethodPost, Route: "/api/orders",
			Handler: authz.HandlerRef{Type: typeOrders, Method: "Create"}, Func: fs.createOrder},
		{Name: "orders-delete", Method: http.MethodDelete, Route: "/api/orders/{id}",
			Handler: authz.HandlerRef{Type: typeOrders, Method: "Delete", Params: []string{"string"}}, Func: fs.deleteOrder},
		{Name: "orders-catalog", Method: http.MethodGet, Route: "/api/catalog",
			Handler: authz.HandlerRef{Type: typeOrders, Method: "Catalog"}, Func: fs.catalog},
	}
	if fs.revocations != nil {
		fns = append(fns, function.Function{Name: "tokens-revoke", Method: http.MethodPost, Route: "/api/tokens/revoke",
			Handler: authz.HandlerRef{Type: typeTokens, Method: "Revoke"}, Func: fs.revokeToken})
	}
	return fns
}

func (fs *functionSet) status(w http.ResponseWriter, r *http.Request) {
	subject := ""
	if user := function.User(r); user.IsAuthenticated() {
		subject = user.Subject
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version,
		"user":    subject,
	})
}

// listOrders returns every order for order admins and the caller's own
// orders otherwise.
func (fs *functionSet) listOrders(w http.ResponseWriter, r *http.Request) {
	user := function.User(r)
	owner := user.Subject
	if user.IsInRole(roleOrdersAdmin) {
		owner = ""
	}
	writeJSON(w, http.StatusOK, fs.store.list(owner))
}

func (fs *functionSet) getOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := fs.store.get(function.RouteValues(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (fs *functionSet) createOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Item     string `json:"item"`
		Quantity int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Item == "" || req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, errInvalidOrder.Error())
		return
	}

	o := &order{
		ID:        fs.newID(),
		Owner:     function.User(r).Subject,
		Item:      req.Item,
		Quantity:  req.Quantity,
		CreatedAt: fs.now(),
	}
	fs.store.add(o)

	fs.logger.WithContext(r.Context()).Info("order created",
		observability.String("order_id", o.ID),
		observability.String("owner", o.Owner),
	)
	writeJSON(w, http.StatusCreated, o)
}

func (fs *functionSet) deleteOrder(w http.ResponseWriter, r *http.Request) {
	if !fs.store.remove(function.RouteValues(r)["id"]) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (fs *functionSet) catalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, []string{"coffee", "tea", "water"})
}

// revokeToken revokes the token id in the request body, or the caller's own
// token when none is given.
func (fs *functionSet) revokeToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TokenID string `json:"jti"`
		TTL     string `json:"ttl"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.TokenID == "" {
		req.TokenID = function.User(r).TokenID
	}
	if req.TokenID == "" {
		writeError(w, http.StatusBadRequest, "jti is required")
		return
	}

	var ttl time.Duration
	if req.TTL != "" {
		parsed, err := time.ParseDuration(req.TTL)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid ttl: %v", err))
			return
		}
		ttl = parsed
	}

	err := fs.revocations.Revoke(r.Context(), req.TokenID, ttl)
	if fs.auditor != nil {
		fs.auditor.TokenRevoked(r.Context(), r, function.User(r), req.TokenID, err)
	}
	if err != nil {
		fs.logger.WithContext(r.Context()).Error("token revocation failed", observability.Error(err))
		writeError(w, http.StatusServiceUnavailable, "revocation store unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func newFunctionSet(
	store *orderStore,
	revocations *revocation.RedisStore,
	auditor *audit.Auditor,
	logger observability.Logger,
) *functionSet {
	return &functionSet{
		store:       store,
		revocations: revocations,
		auditor:     auditor,
		logger:      logger,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

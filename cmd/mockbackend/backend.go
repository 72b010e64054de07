package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/delihood/client/internal/logging"
	"github.com/delihood/client/internal/models"
)

type contextKey string

const userIDKey contextKey = "userID"

type account struct {
	user     models.User
	password string
	verified bool
}

type mockOrder struct {
	models.OrderHistory
	ownerID       int
	address       models.Address
	deliveryTicks int
}

// Backend is an in-memory DeliHood backend: accounts, a token pair per
// session and one current order per user driven through its lifecycle.
type Backend struct {
	mutex         sync.Mutex
	secret        []byte
	tokenTTL      time.Duration
	accounts      map[string]*account
	refreshTokens map[string]int
	orders        map[int]*mockOrder
	current       map[int]int
	cooks         []models.Cook
	nextUserID    int
	nextOrderID   int

	hub    *hub
	logger *logging.Logger
	now    func() time.Time
}

// NewBackend creates a backend seeded with one verified account and a few
// cooks
func NewBackend(secret []byte, tokenTTL time.Duration, logger *logging.Logger) *Backend {
	b := &Backend{
		secret:        secret,
		tokenTTL:      tokenTTL,
		accounts:      make(map[string]*account),
		refreshTokens: make(map[string]int),
		orders:        make(map[int]*mockOrder),
		current:       make(map[int]int),
		nextUserID:    1,
		nextOrderID:   100,
		logger:        logger,
		now:           time.Now,
	}
	b.hub = newHub(b, logger)
	b.seed()
	return b
}

func (b *Backend) seed() {
	b.addAccount("demo@delihood.dev", "demo", "+15550100", "delihood", true)
	b.cooks = []models.Cook{
		{
			ID: 1, Name: "Nonna Lucia", Description: "Fresh pasta every day",
			Foods: []models.Food{
				{ID: 11, Name: "Tagliatelle al ragù", Category: "pasta", Price: decimal.RequireFromString("12.50")},
				{ID: 12, Name: "Tiramisù", Category: "dessert", Price: decimal.RequireFromString("5.00")},
			},
		},
		{
			ID: 2, Name: "Chef Amara", Description: "West African home cooking",
			Foods: []models.Food{
				{ID: 21, Name: "Jollof rice", Category: "rice", Price: decimal.RequireFromString("10.00")},
				{ID: 22, Name: "Puff-puff", Category: "snack", Price: decimal.RequireFromString("4.25")},
			},
		},
	}
}

func (b *Backend) addAccount(email, username, phone, password string, verified bool) *account {
	acc := &account{
		user: models.User{
			ID:        b.nextUserID,
			Username:  username,
			Email:     email,
			Phone:     phone,
			CreatedAt: b.now().UTC().Format(time.RFC3339),
		},
		password: password,
		verified: verified,
	}
	b.nextUserID++
	b.accounts[strings.ToLower(email)] = acc
	return acc
}

// Routes builds the chi router for the REST contract and the websocket
func (b *Backend) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(b.requestLog)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", b.handleLogin)
		r.Post("/register", b.handleRegister)
		r.Post("/refresh", b.handleRefresh)
		r.Get("/logout", b.handleLogout)
	})

	r.Group(func(r chi.Router) {
		r.Use(b.authenticate)

		r.Get("/api/me", b.handleMe)
		r.Get("/api/me/orders", b.handleOrders)
		r.Get("/api/me/order", b.handleOrderDetail)
		r.Get("/api/order/update", b.handleOrderUpdate)
		r.Post("/api/order/cancel", b.handleCancel)
		r.Get("/api/order/payment", b.handlePayment)
		r.Post("/api/new-order", b.handleNewOrder)
		r.Post("/api/change/{field}", b.handleChange)
		r.Get("/api/main-screen", b.handleMainScreen)
		r.Get("/ws", b.hub.serveWS)
	})

	return r
}

func (b *Backend) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		b.logger.LogHTTPRequest(r.Method, r.URL.Path, ww.Status(), 0, time.Since(start))
	})
}

// --- Tokens ---

func (b *Backend) mintPair(userID int) (models.Credentials, error) {
	now := b.now()
	claims := jwt.MapClaims{
		"id":  userID,
		"sub": strconv.Itoa(userID),
		"iat": now.Unix(),
		"exp": now.Add(b.tokenTTL).Unix(),
		"jti": uuid.NewString(),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
	if err != nil {
		return models.Credentials{}, fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh := uuid.NewString()
	b.refreshTokens[refresh] = userID
	return models.Credentials{AccessToken: access, RefreshToken: refresh}, nil
}

// verify returns the user id of a valid access token
func (b *Backend) verify(token string) (int, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return b.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(b.now), jwt.WithExpirationRequired())
	if err != nil {
		return 0, err
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(sub)
}

func (b *Backend) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		b.mutex.Lock()
		userID, err := b.verify(token)
		b.mutex.Unlock()
		if err != nil {
			b.logger.Debug("Rejected access token", "error", err)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	})
}

func userIDFrom(r *http.Request) int {
	id, _ := r.Context().Value(userIDKey).(int)
	return id
}

// --- Auth handlers ---

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	acc, ok := b.accounts[strings.ToLower(req.Email)]
	if !ok || acc.password != req.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]bool{"isIncorrectPasswordOrUser": true})
		return
	}
	if !acc.verified {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	pair, err := b.mintPair(acc.user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string  `json:"email"`
		Password *string `json:"password"`
		Phone    string  `json:"phone"`
		Username string  `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Email == "" || req.Username == "" || req.Password == nil {
		writeJSON(w, http.StatusOK, map[string]string{"error": "email, username and password are required"})
		return
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	if _, exists := b.accounts[strings.ToLower(req.Email)]; exists {
		w.WriteHeader(http.StatusConflict)
		return
	}
	b.addAccount(req.Email, req.Username, req.Phone, *req.Password, true)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (b *Backend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	userID, ok := b.refreshTokens[req.RefreshToken]
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	delete(b.refreshTokens, req.RefreshToken)

	pair, err := b.mintPair(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (b *Backend) handleLogout(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// --- Account handlers ---

func (b *Backend) accountByID(id int) *account {
	for _, acc := range b.accounts {
		if acc.user.ID == id {
			return acc
		}
	}
	return nil
}

func (b *Backend) handleMe(w http.ResponseWriter, r *http.Request) {
	b.mutex.Lock()
	acc := b.accountByID(userIDFrom(r))
	b.mutex.Unlock()

	if acc == nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": true, "data": acc.user})
}

func (b *Backend) handleChange(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NewValue string `json:"newValue"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NewValue == "" {
		writeJSON(w, http.StatusOK, map[string]string{"error": "newValue is required"})
		return
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	acc := b.accountByID(userIDFrom(r))
	if acc == nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	switch models.EditField(chi.URLParam(r, "field")) {
	case models.EditUsername:
		acc.user.Username = req.NewValue
	case models.EditPhone:
		acc.user.Phone = req.NewValue
	case models.EditEmail:
		if _, taken := b.accounts[strings.ToLower(req.NewValue)]; taken {
			w.WriteHeader(http.StatusConflict)
			return
		}
		delete(b.accounts, strings.ToLower(acc.user.Email))
		acc.user.Email = req.NewValue
		b.accounts[strings.ToLower(req.NewValue)] = acc
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (b *Backend) handleMainScreen(w http.ResponseWriter, r *http.Request) {
	b.mutex.Lock()
	cooks := append([]models.Cook(nil), b.cooks...)
	b.mutex.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": cooks})
}

// --- Order handlers ---

func (b *Backend) currentOrder(userID int) *mockOrder {
	id, ok := b.current[userID]
	if !ok {
		return nil
	}
	return b.orders[id]
}

func (b *Backend) handleOrderUpdate(w http.ResponseWriter, r *http.Request) {
	b.mutex.Lock()
	o := b.currentOrder(userIDFrom(r))
	var reply map[string]any
	if o != nil {
		reply = map[string]any{"orderId": o.ID, "status": o.Status}
	}
	b.mutex.Unlock()

	if reply == nil {
		writeError(w, http.StatusNotFound, "no current order")
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (b *Backend) handleOrders(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)

	b.mutex.Lock()
	var list []models.OrderHistory
	for _, o := range b.orders {
		if b.ownedBy(o, userID) {
			list = append(list, o.OrderHistory)
		}
	}
	b.mutex.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"data": list})
}

func (b *Backend) ownedBy(o *mockOrder, userID int) bool {
	return o.ownerID == userID
}

func (b *Backend) handleOrderDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.URL.Query().Get("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}

	b.mutex.Lock()
	o, ok := b.orders[id]
	if ok && !b.ownedBy(o, userIDFrom(r)) {
		ok = false
	}
	var detail models.OrderHistory
	if ok {
		detail = o.OrderHistory
	}
	b.mutex.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": detail})
}

func (b *Backend) handlePayment(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(r.URL.Query().Get("id"))

	b.mutex.Lock()
	o, ok := b.orders[id]
	ok = ok && b.ownedBy(o, userIDFrom(r))
	b.mutex.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clientSecret": "pi_" + strconv.Itoa(id) + "_secret", "orderId": id})
}

func (b *Backend) handleNewOrder(w http.ResponseWriter, r *http.Request) {
	var req models.Order
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if len(req.Items) == 0 {
		writeJSON(w, http.StatusOK, map[string]string{"error": "an order needs at least one item"})
		return
	}

	userID := userIDFrom(r)

	b.mutex.Lock()
	if current := b.currentOrder(userID); current != nil && !current.Status.Terminal() {
		b.mutex.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"error": "you already have an order in progress"})
		return
	}

	o := b.placeOrder(userID, req)
	reply := map[string]any{"clientSecret": "pi_" + strconv.Itoa(o.ID) + "_secret", "orderId": o.ID}
	b.mutex.Unlock()

	b.logger.Info("Order placed", "order_id", o.ID, "user_id", userID)
	writeJSON(w, http.StatusOK, reply)
}

// placeOrder prices the items from the cook's menu and makes the order the
// user's current one. The caller holds the mutex.
func (b *Backend) placeOrder(userID int, req models.Order) *mockOrder {
	items := make([]models.Item, 0, len(req.Items))
	total := decimal.Zero
	cookName := ""
	for _, item := range req.Items {
		for _, cook := range b.cooks {
			if cook.ID != req.CookID {
				continue
			}
			cookName = cook.Name
			for _, food := range cook.Foods {
				if food.ID == item.FoodID {
					item.Name = food.Name
					item.Price = food.Price
				}
			}
		}
		items = append(items, item)
		total = total.Add(item.Subtotal())
	}

	address := models.Address{Street: "1 Market St", City: "Springfield", Lat: 52.5200, Lng: 13.4050}
	if req.Address != nil {
		address = *req.Address
	}

	now := b.now().UTC()
	o := &mockOrder{
		OrderHistory: models.OrderHistory{
			ID:        b.nextOrderID,
			CookID:    req.CookID,
			CookName:  cookName,
			Status:    models.StatusPaid,
			Items:     items,
			Total:     total,
			CreatedAt: now,
			UpdatedAt: now,
		},
		address: address,
		ownerID: userID,
	}
	b.nextOrderID++
	b.orders[o.ID] = o
	b.current[userID] = o.ID
	return o
}

func (b *Backend) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID int `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	o, ok := b.orders[req.ID]
	if !ok || !b.ownedBy(o, userIDFrom(r)) {
		writeJSON(w, http.StatusOK, map[string]string{"error": "order not found"})
		return
	}
	if !o.Status.CanTransition(models.StatusCancelled) || o.Status == models.StatusCancelled {
		writeJSON(w, http.StatusOK, map[string]string{"error": "order can no longer be cancelled"})
		return
	}
	b.setStatus(o, models.StatusCancelled)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (b *Backend) setStatus(o *mockOrder, status models.OrderStatus) {
	b.logger.LogTransition(o.ID, string(o.Status), string(status), "backend", true, "")
	o.Status = status
	o.UpdatedAt = b.now().UTC()
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

var (
	errNoOrder    = errors.New("order not found")
	errNotArrived = errors.New("the driver has not picked up this order yet")
)

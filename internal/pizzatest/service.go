// Copyright 2026 The pizzaht Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pizzatest provides in-memory stand-ins for the JWT Pizza
// service, its factory and its web frontend.
package pizzatest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/mux"
)

// Role of a user.
type Role struct {
	Role string `json:"role"`
}

// User of the service.
type User struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"-"`
	Roles    []Role `json:"roles"`
}

// MenuItem is a pizza on the menu.
type MenuItem struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Image       string  `json:"image"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
}

// Store of a franchise.
type Store struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Franchise owning stores.
type Franchise struct {
	ID     int     `json:"id"`
	Name   string  `json:"name"`
	Stores []Store `json:"stores"`
}

// OrderItem is a pizza in an order.
type OrderItem struct {
	MenuID      int     `json:"menuId"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

// Order of a diner.
type Order struct {
	ID          int         `json:"id,omitempty"`
	Items       []OrderItem `json:"items"`
	StoreID     string      `json:"storeId"`
	FranchiseID int         `json:"franchiseId"`
}

// Menu served by NewService.
var Menu = []MenuItem{
	{ID: 1, Title: "Veggie", Image: "pizza1.png", Price: 0.0038, Description: "A garden of delight"},
	{ID: 2, Title: "Pepperoni", Image: "pizza2.png", Price: 0.0042, Description: "Spicy treat"},
	{ID: 3, Title: "Margarita", Image: "pizza3.png", Price: 0.0042, Description: "Essential classic"},
	{ID: 4, Title: "Crusty", Image: "pizza4.png", Price: 0.0028, Description: "A dry mouthed favorite"},
}

// Franchises served by NewService.
var Franchises = []Franchise{
	{ID: 1, Name: "pizzaPocket", Stores: []Store{{ID: 1, Name: "SLC"}}},
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Service is an in-memory JWT Pizza service including the factory's
// verify endpoint. It is safe for concurrent use.
type Service struct {
	mu       sync.Mutex
	users    map[string]*User  // by email
	sessions map[string]*User  // by token
	orders   map[int][]Order   // by user id
	jwts     map[string]Order  // issued order JWTs
	calls    []string
	nextID   int
	tokens   int
	handler  http.Handler
}

// NewService returns a service knowing the diner d@jwt.com with
// password diner.
func NewService() *Service {
	s := &Service{
		users:    make(map[string]*User),
		sessions: make(map[string]*User),
		orders:   make(map[int][]Order),
		jwts:     make(map[string]Order),
		nextID:   1,
	}
	s.AddUser("pizza diner", "d@jwt.com", "diner")

	r := mux.NewRouter()
	r.HandleFunc("/api/auth", s.login).Methods(http.MethodPut)
	r.HandleFunc("/api/auth", s.register).Methods(http.MethodPost)
	r.HandleFunc("/api/auth", s.authenticated(s.logout)).Methods(http.MethodDelete)
	r.HandleFunc("/api/order/menu", s.menu).Methods(http.MethodGet)
	r.HandleFunc("/api/order/verify", s.authenticated(s.verify)).Methods(http.MethodPost)
	r.HandleFunc("/api/order", s.authenticated(s.listOrders)).Methods(http.MethodGet)
	r.HandleFunc("/api/order", s.authenticated(s.createOrder)).Methods(http.MethodPost)
	r.HandleFunc("/api/franchise", s.franchises).Methods(http.MethodGet)
	r.HandleFunc("/version.json", s.version).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.record(req)
		writeJSON(w, http.StatusNotFound, apiError{http.StatusNotFound, "unknown endpoint"})
	})
	s.handler = r
	return s
}

// AddUser registers a diner.
func (s *Service) AddUser(name, email, password string) *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUser(name, email, password)
}

func (s *Service) addUser(name, email, password string) *User {
	u := &User{ID: s.nextID, Name: name, Email: email, Password: password,
		Roles: []Role{{Role: "diner"}}}
	s.nextID++
	s.users[email] = u
	return u
}

// Calls returns the requests served so far as "METHOD /path".
func (s *Service) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// ServeHTTP implements http.Handler.
func (s *Service) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.handler.ServeHTTP(w, req)
}

func (s *Service) record(req *http.Request) {
	s.mu.Lock()
	s.calls = append(s.calls, req.Method+" "+req.URL.Path)
	s.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// authenticated passes only requests with a valid bearer token.
func (s *Service) authenticated(h func(w http.ResponseWriter, req *http.Request, u *User)) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		s.record(req)
		token := strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		u := s.sessions[token]
		s.mu.Unlock()
		if u == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "unauthorized"})
			return
		}
		h(w, req, u)
	}
}

type authResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

func (s *Service) newSession(u *User) string {
	s.tokens++
	token := fmt.Sprintf("tok-%d", s.tokens)
	s.sessions[token] = u
	return token
}

func (s *Service) login(w http.ResponseWriter, req *http.Request) {
	s.record(req)
	var cred struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&cred); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{http.StatusBadRequest, err.Error()})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[cred.Email]
	if u == nil || u.Password != cred.Password {
		writeJSON(w, http.StatusNotFound, apiError{http.StatusNotFound, "unknown user"})
		return
	}
	writeJSON(w, http.StatusOK, authResponse{User: u, Token: s.newSession(u)})
}

func (s *Service) register(w http.ResponseWriter, req *http.Request) {
	s.record(req)
	var reg struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&reg); err != nil || reg.Email == "" || reg.Password == "" {
		writeJSON(w, http.StatusBadRequest, apiError{http.StatusBadRequest, "name, email, and password are required"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.addUser(reg.Name, reg.Email, reg.Password)
	writeJSON(w, http.StatusOK, authResponse{User: u, Token: s.newSession(u)})
}

func (s *Service) logout(w http.ResponseWriter, req *http.Request, _ *User) {
	token := strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "logout successful"})
}

func (s *Service) menu(w http.ResponseWriter, req *http.Request) {
	s.record(req)
	writeJSON(w, http.StatusOK, Menu)
}

func (s *Service) franchises(w http.ResponseWriter, req *http.Request) {
	s.record(req)
	writeJSON(w, http.StatusOK, Franchises)
}

func (s *Service) version(w http.ResponseWriter, req *http.Request) {
	s.record(req)
	writeJSON(w, http.StatusOK, map[string]string{"version": "20240518.154317"})
}

func (s *Service) listOrders(w http.ResponseWriter, req *http.Request, u *User) {
	s.mu.Lock()
	orders := append([]Order{}, s.orders[u.ID]...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"dinerId": u.ID,
		"orders":  orders,
		"page":    1,
	})
}

func (s *Service) createOrder(w http.ResponseWriter, req *http.Request, u *User) {
	var order Order
	if err := json.NewDecoder(req.Body).Decode(&order); err != nil || len(order.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, apiError{http.StatusBadRequest, "bad order"})
		return
	}
	s.mu.Lock()
	order.ID = len(s.jwts) + 1
	jwt := fmt.Sprintf("eyJpYXQ.%d.%d", u.ID, order.ID)
	s.jwts[jwt] = order
	s.orders[u.ID] = append(s.orders[u.ID], order)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"order": order, "jwt": jwt})
}

func (s *Service) verify(w http.ResponseWriter, req *http.Request, _ *User) {
	var body struct {
		JWT string `json:"jwt"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{http.StatusBadRequest, err.Error()})
		return
	}
	s.mu.Lock()
	order, ok := s.jwts[body.JWT]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "valid", "payload": order})
}

// Copyright 2026 The pizzaht Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pizzatest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/radmuffin/pizzaht/browser"
	"github.com/radmuffin/pizzaht/mock"
)

// Opener opens App pages. Requests not handled by the router go to
// Backend.
type Opener struct {
	Backend http.Handler
	Service string // base URL of the pizza service
	Factory string // base URL of the pizza factory
}

// Open implements browser.Opener.
func (o Opener) Open(ctx context.Context, rt *mock.Router) (browser.Page, error) {
	return &App{
		backend: o.Backend,
		service: o.Service,
		factory: o.Factory,
		router:  rt,
		inputs:  make(map[string]string),
		view:    "home",
	}, nil
}

// App is a scripted imitation of the JWT Pizza web frontend. It renders
// the pages as plain HTML and issues its API calls through a Router.
type App struct {
	backend          http.Handler
	service, factory string
	router           *mock.Router

	mu       sync.Mutex
	view     string
	next     string // view after a successful login
	version  string
	user     *User
	token    string
	inputs   map[string]string
	message  string
	menu     []MenuItem
	stores   []storeOption
	store    string
	order    []MenuItem
	placed   Order
	jwt      string
	verified string
	history  int
}

type storeOption struct {
	ID        int
	Name      string
	Franchise int
}

var routes = map[string]string{
	"/":                    "home",
	"/menu":                "menu",
	"/payment":             "payment",
	"/delivery":            "delivery",
	"/login":               "login",
	"/register":            "register",
	"/logout":              "logout",
	"/about":               "about",
	"/history":             "history",
	"/franchise-dashboard": "franchise",
	"/diner-dashboard":     "diner",
}

// fetch issues an API call. Requests without a route go to the backend,
// requests rejected by the router fail like a network error.
func (a *App) fetch(method, u string, body interface{}) (int, string, error) {
	var data []byte
	if body != nil {
		var err error
		if data, err = json.Marshal(body); err != nil {
			return 0, "", err
		}
	}
	req, err := http.NewRequest(method, u, bytes.NewReader(data))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.router.Fulfill(req)
	switch {
	case err == mock.ErrNoRoute:
		if a.backend == nil {
			return 0, "", fmt.Errorf("connection refused")
		}
		rec := httptest.NewRecorder()
		a.backend.ServeHTTP(rec, req)
		return rec.Code, strings.TrimSpace(rec.Body.String()), nil
	case err != nil:
		return 0, "", fmt.Errorf("Failed to fetch")
	}
	return resp.Status(), strings.TrimSpace(resp.Body), nil
}

// show switches to the page for path and loads its data.
func (a *App) show(path string) {
	u, err := url.Parse(path)
	if err != nil {
		a.view, a.message = "notfound", err.Error()
		return
	}
	view, ok := routes[u.Path]
	if !ok {
		view = "notfound"
	}
	a.view, a.message = view, ""

	switch view {
	case "menu":
		a.loadMenu()
	case "logout":
		if a.token != "" {
			a.fetch(http.MethodDelete, a.service+"/api/auth", nil)
		}
		a.user, a.token, a.view = nil, "", "home"
	case "diner":
		if a.user == nil {
			a.view = "login"
			return
		}
		var orders struct {
			Orders []Order `json:"orders"`
		}
		if code, body, err := a.fetch(http.MethodGet, a.service+"/api/order", nil); err == nil && code == http.StatusOK {
			json.Unmarshal([]byte(body), &orders)
		}
		a.history = len(orders.Orders)
	case "payment":
		if a.user == nil {
			a.view, a.next = "login", "payment"
		}
	}
}

func (a *App) loadMenu() {
	a.menu, a.stores = nil, nil
	if code, body, err := a.fetch(http.MethodGet, a.service+"/api/order/menu", nil); err == nil && code == http.StatusOK {
		json.Unmarshal([]byte(body), &a.menu)
	}
	var franchises []Franchise
	if code, body, err := a.fetch(http.MethodGet, a.service+"/api/franchise", nil); err == nil && code == http.StatusOK {
		json.Unmarshal([]byte(body), &franchises)
	}
	for _, f := range franchises {
		for _, s := range f.Stores {
			a.stores = append(a.stores, storeOption{ID: s.ID, Name: s.Name, Franchise: f.ID})
		}
	}
}

func (a *App) login() {
	code, body, err := a.fetch(http.MethodPut, a.service+"/api/auth", map[string]string{
		"email":    a.inputs["email"],
		"password": a.inputs["password"],
	})
	a.authenticate(code, body, err)
}

func (a *App) register() {
	code, body, err := a.fetch(http.MethodPost, a.service+"/api/auth", map[string]string{
		"name":     a.inputs["name"],
		"email":    a.inputs["email"],
		"password": a.inputs["password"],
	})
	a.authenticate(code, body, err)
}

func (a *App) authenticate(code int, body string, err error) {
	switch {
	case err != nil:
		a.message = err.Error()
		return
	case code != http.StatusOK:
		a.message = body
		return
	}
	var auth struct {
		User  *User  `json:"user"`
		Token string `json:"token"`
	}
	if err := json.Unmarshal([]byte(body), &auth); err != nil || auth.User == nil {
		a.message = "bad response"
		return
	}
	a.user, a.token = auth.User, auth.Token
	a.inputs = make(map[string]string)
	next := a.next
	if next == "" {
		next = "home"
	}
	a.next = ""
	a.view, a.message = next, ""
}

func (a *App) checkout() {
	if a.store == "" || len(a.order) == 0 {
		return
	}
	if a.user == nil {
		a.view, a.next, a.message = "login", "payment", ""
		return
	}
	a.view = "payment"
}

func (a *App) pay() {
	order := Order{StoreID: a.store}
	for _, s := range a.stores {
		if fmt.Sprint(s.ID) == a.store {
			order.FranchiseID = s.Franchise
		}
	}
	for _, m := range a.order {
		order.Items = append(order.Items, OrderItem{MenuID: m.ID, Description: m.Title, Price: m.Price})
	}
	code, body, err := a.fetch(http.MethodPost, a.service+"/api/order", order)
	switch {
	case err != nil:
		a.message = err.Error()
		return
	case code != http.StatusOK:
		a.message = body
		return
	}
	var resp struct {
		Order Order  `json:"order"`
		JWT   string `json:"jwt"`
	}
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		a.message = "bad response"
		return
	}
	a.placed, a.jwt, a.verified = resp.Order, resp.JWT, ""
	a.view, a.message = "delivery", ""
}

func (a *App) verify() {
	code, body, err := a.fetch(http.MethodPost, a.factory+"/api/order/verify",
		map[string]string{"jwt": a.jwt})
	if err != nil {
		a.verified = "invalid"
		return
	}
	var resp struct {
		Message string `json:"message"`
	}
	json.Unmarshal([]byte(body), &resp)
	a.verified = resp.Message
	if code != http.StatusOK || a.verified == "" {
		a.verified = "invalid"
	}
}

// element finds the element addressed by path in the current rendering.
func (a *App) element(path string) (*html.Node, error) {
	sel, err := cascadia.Compile(path)
	if err != nil {
		return nil, err
	}
	doc, err := html.Parse(strings.NewReader(a.render()))
	if err != nil {
		return nil, err
	}
	n := sel.MatchFirst(doc)
	if n == nil {
		return nil, fmt.Errorf("no element %s", path)
	}
	return n, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// Navigate implements browser.Page.
func (a *App) Navigate(ctx context.Context, u string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.version = ""
	root, err := url.Parse(u)
	if err != nil {
		return err
	}
	root.Path, root.RawQuery, root.Fragment = "/version.json", "", ""
	if code, body, err := a.fetch(http.MethodGet, root.String(), nil); err == nil && code == http.StatusOK {
		var v struct {
			Version string `json:"version"`
		}
		json.Unmarshal([]byte(body), &v)
		a.version = v.Version
	}
	a.show(u)
	return nil
}

// Click implements browser.Page.
func (a *App) Click(ctx context.Context, path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	n, err := a.element(path)
	if err != nil {
		return err
	}
	if href := attr(n, "href"); n.Data == "a" && href != "" && href != "#" {
		a.show(href)
		return nil
	}
	id := attr(n, "id")
	switch {
	case id == "order-now":
		a.show("/menu")
	case strings.HasPrefix(id, "pizza-"):
		for _, m := range a.menu {
			if fmt.Sprintf("pizza-%d", m.ID) == id {
				a.order = append(a.order, m)
			}
		}
	case id == "checkout":
		a.checkout()
	case id == "login-submit":
		a.login()
	case id == "register-submit":
		a.register()
	case id == "pay":
		a.pay()
	case id == "cancel":
		a.view = "menu"
	case id == "verify":
		a.verify()
	case id == "close":
		a.verified = ""
	case id == "order-more":
		a.order = nil
		a.show("/menu")
	}
	return nil
}

// Type implements browser.Page.
func (a *App) Type(ctx context.Context, path, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	n, err := a.element(path)
	if err != nil {
		return err
	}
	if n.Data != "input" {
		return fmt.Errorf("cannot type into <%s>", n.Data)
	}
	a.inputs[attr(n, "id")] = text
	return nil
}

// Press implements browser.Page. Enter submits forms.
func (a *App) Press(ctx context.Context, path, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.element(path); err != nil {
		return err
	}
	if key != "Enter" {
		return nil
	}
	switch a.view {
	case "login":
		a.login()
	case "register":
		a.register()
	}
	return nil
}

// Select implements browser.Page.
func (a *App) Select(ctx context.Context, path, value string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	n, err := a.element(path)
	if err != nil {
		return err
	}
	if n.Data != "select" {
		return fmt.Errorf("cannot select in <%s>", n.Data)
	}
	for _, s := range a.stores {
		if fmt.Sprint(s.ID) == value {
			a.store = value
			return nil
		}
	}
	return fmt.Errorf("no option %q", value)
}

// HTML implements browser.Page.
func (a *App) HTML(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.render(), nil
}

// Title implements browser.Page.
func (a *App) Title(ctx context.Context) (string, error) { return "JWT Pizza", nil }

// Close implements browser.Page.
func (a *App) Close() error { return nil }

func (a *App) total() string {
	sum := 0.0
	for _, m := range a.order {
		sum += m.Price
	}
	return fmt.Sprintf("%.3f", sum)
}

func (a *App) initials() string {
	if a.user == nil {
		return ""
	}
	s := ""
	for _, f := range strings.Fields(a.user.Name) {
		s += strings.ToLower(f[:1])
	}
	return s
}

func (a *App) render() string {
	buf := &bytes.Buffer{}
	err := pageTmpl.Execute(buf, map[string]interface{}{
		"View":     a.view,
		"Version":  a.version,
		"User":     a.user,
		"Initials": a.initials(),
		"Inputs":   a.inputs,
		"Message":  a.message,
		"Menu":     a.menu,
		"Stores":   a.stores,
		"Store":    a.store,
		"Order":    a.order,
		"Total":    a.total(),
		"Placed":   a.placed,
		"Verified": a.verified,
		"History":  a.history,
	})
	if err != nil {
		return "<html><body><main>" + template.HTMLEscapeString(err.Error()) + "</main></body></html>"
	}
	return buf.String()
}

var pageTmpl = template.Must(template.New("page").Funcs(template.FuncMap{
	"price": func(p float64) string { return fmt.Sprintf("%.4f", p) },
	"eqs":   func(a string, b int) bool { return a == fmt.Sprint(b) },
}).Parse(`<!DOCTYPE html>
<html><head><title>JWT Pizza</title></head>
<body>
<header>
  <a href="/" class="logo">JWT Pizza</a>
  <nav aria-label="Global">
    <a href="/menu">Order</a>
    <a href="/franchise-dashboard">Franchise</a>
    {{if .User}}<a href="/logout">Logout</a>
    <a href="/diner-dashboard" class="initials">{{.Initials}}</a>{{else}}<a href="/login">Login</a>
    <a href="/register">Register</a>{{end}}
  </nav>
</header>
<main>
{{if eq .View "home"}}
  <h2>The web's best pizza</h2>
  <button id="order-now">Order now</button>
{{else if eq .View "menu"}}
  <h2>Awesome is a click away</h2>
  <form>
    <select id="store" required>
      <option value="">choose store</option>
      {{range .Stores}}<option value="{{.ID}}"{{if eqs $.Store .ID}} selected{{end}}>{{.Name}}</option>
      {{end}}
    </select>
    <div>Selected pizzas: {{len .Order}}</div>
    <button type="button" id="checkout">Checkout</button>
  </form>
  <div class="menu">
    {{range .Menu}}<a href="#" id="pizza-{{.ID}}"><img alt="Image Description" src="{{.Image}}"><div><span>{{.Title}}</span><div>{{.Description}}</div></div></a>
    {{end}}
  </div>
{{else if eq .View "login"}}
  <h2>Welcome back</h2>
  <form>
    <label for="email">Email address</label>
    <input id="email" type="email" placeholder="Email address" value="{{index .Inputs "email"}}">
    <label for="password">Password</label>
    <input id="password" type="password" placeholder="Password" value="{{index .Inputs "password"}}">
    <button type="submit" id="login-submit">Login</button>
  </form>
  {{if .Message}}<div class="error">{{.Message}}</div>{{end}}
{{else if eq .View "register"}}
  <h2>Welcome to the party</h2>
  <form>
    <label for="name">Full name</label>
    <input id="name" type="text" placeholder="Full name" value="{{index .Inputs "name"}}">
    <label for="email">Email address</label>
    <input id="email" type="email" placeholder="Email address" value="{{index .Inputs "email"}}">
    <label for="password">Password</label>
    <input id="password" type="password" placeholder="Password" value="{{index .Inputs "password"}}">
    <button type="submit" id="register-submit">Register</button>
  </form>
  {{if .Message}}<div class="error">{{.Message}}</div>{{end}}
{{else if eq .View "payment"}}
  <h2>So worth it</h2>
  <div>Send me those {{len .Order}} pizzas right now!</div>
  <table>
    <thead><tr><th>Pie</th><th>Price</th></tr></thead>
    <tbody>{{range .Order}}<tr><td>{{.Title}}</td><td>{{price .Price}} ₿</td></tr>{{end}}</tbody>
    <tfoot><tr><td>{{len .Order}} pies</td><td>{{.Total}} ₿</td></tr></tfoot>
  </table>
  <button id="pay">Pay now</button>
  <button id="cancel">Cancel</button>
  {{if .Message}}<div class="error">{{.Message}}</div>{{end}}
{{else if eq .View "delivery"}}
  <h2>Here is your JWT Pizza!</h2>
  <div>order ID: {{.Placed.ID}}</div>
  <div>pie count: {{len .Placed.Items}}</div>
  <div>total: {{.Total}} ₿</div>
  <button id="verify">Verify</button>
  <button id="order-more">Order more</button>
  {{if .Verified}}<div role="dialog">
    <h3>JWT Pizza - {{.Verified}}</h3>
    <button id="close">Close</button>
  </div>{{end}}
{{else if eq .View "franchise"}}
  <h2>So you want a piece of the pie?</h2>
  <div role="alert">If you are already a franchisee, please<a href="/login">login</a>using your franchise account</div>
  <p>Call now 800-555-5555</p>
{{else if eq .View "diner"}}
  <h2>Your pizza kitchen</h2>
  <dl>
    <dt>name:</dt><dd>{{.User.Name}}</dd>
    <dt>email:</dt><dd>{{.User.Email}}</dd>
    <dt>role:</dt><dd>{{range .User.Roles}}{{.Role}}{{end}}</dd>
  </dl>
  <div>orders: {{.History}}</div>
{{else if eq .View "about"}}
  <h2>The secret sauce</h2>
  <div class="team">
    <div><img alt="Employee stock photo" src="brian.png"><span>Brian</span></div>
    <div><img alt="Employee stock photo" src="anna.png"><span>Anna</span></div>
    <div><img alt="Employee stock photo" src="maria.png"><span>Maria</span></div>
  </div>
{{else if eq .View "history"}}
  <h2>Mama Rucci, my my</h2>
  <img alt="Mama Rucci" src="mamaRicci.png">
  <p>It all started in Mama Ricci's kitchen.</p>
{{else}}
  <h2>Oops</h2>
  <p>It looks like we have dropped a pizza on the floor. {{.Message}}</p>
{{end}}
</main>
<footer>
  <a href="/about">About</a>
  <a href="/history">History</a>
  <a href="/franchise-dashboard">Franchise</a>
  <span>Version: {{.Version}}</span>
</footer>
</body></html>
`))

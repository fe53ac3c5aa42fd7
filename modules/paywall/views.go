package paywall

import (
	"context"
	"html/template"
	"io"

	"github.com/a-h/templ"

	"github.com/dmitrymomot/paywall/handler"
	svc "github.com/dmitrymomot/paywall/svc/paywall"
)

// Patch targets. Default views render these ids on their root elements.
const (
	PricingTarget = "#pricing"
	ActionsTarget = "#actions"
	DialogTarget  = "#success-dialog"
	ToastTarget   = "#toast-container"
)

// ScreenParams is the data every screen fragment renders from.
type ScreenParams struct {
	BasePath   string
	ScreenID   string
	Script     string
	TermsURL   string
	PrivacyURL string
	State      svc.State
	Features   []svc.Feature
}

// URL returns the endpoint of a screen action, e.g. "purchase".
func (p ScreenParams) URL(action string) string {
	return p.BasePath + "/" + p.ScreenID + "/" + action
}

// Post returns the datastar expression posting to a screen action.
func (p ScreenParams) Post(action string) template.JS {
	return template.JS("@post('" + template.JSEscapeString(p.URL(action)) + "')")
}

// Get returns the datastar expression fetching a screen action.
func (p ScreenParams) Get(action string) template.JS {
	return template.JS("@get('" + template.JSEscapeString(p.URL(action)) + "')")
}

// Views renders the paywall fragments. Any field may be replaced by a templ
// component; the root element of Pricing, Actions and Dialog must carry the
// id of its target.
type Views struct {
	Page    func(ScreenParams) templ.Component
	Pricing func(ScreenParams) templ.Component
	Actions func(ScreenParams) templ.Component
	Dialog  func(ScreenParams) templ.Component
	Toast   func(svc.Notice) templ.Component

	ErrorPage  func(handler.ErrorPageParams) templ.Component
	ErrorToast func(handler.ErrorToastParams) templ.Component
}

// DefaultViews returns plain HTML views for the paywall screen.
func DefaultViews() *Views {
	return &Views{
		Page:       func(p ScreenParams) templ.Component { return render("page", p) },
		Pricing:    func(p ScreenParams) templ.Component { return render("pricing", p) },
		Actions:    func(p ScreenParams) templ.Component { return render("actions", p) },
		Dialog:     func(p ScreenParams) templ.Component { return render("dialog", p) },
		Toast:      func(n svc.Notice) templ.Component { return render("toast", n) },
		ErrorPage:  func(p handler.ErrorPageParams) templ.Component { return render("error_page", p) },
		ErrorToast: func(p handler.ErrorToastParams) templ.Component { return render("error_toast", p) },
	}
}

// withDefaults fills unset fields from DefaultViews.
func (v *Views) withDefaults() *Views {
	d := DefaultViews()
	if v == nil {
		return d
	}
	out := *v
	if out.Page == nil {
		out.Page = d.Page
	}
	if out.Pricing == nil {
		out.Pricing = d.Pricing
	}
	if out.Actions == nil {
		out.Actions = d.Actions
	}
	if out.Dialog == nil {
		out.Dialog = d.Dialog
	}
	if out.Toast == nil {
		out.Toast = d.Toast
	}
	if out.ErrorPage == nil {
		out.ErrorPage = d.ErrorPage
	}
	if out.ErrorToast == nil {
		out.ErrorToast = d.ErrorToast
	}
	return &out
}

func render(name string, data any) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		return templates.ExecuteTemplate(w, name, data)
	})
}

var templates = template.Must(template.New("paywall").Funcs(template.FuncMap{
	"annual": func(id string) bool { return id == svc.OfferingAnnual },
}).Parse(`
{{define "page"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Premium Features</title>
<script type="module" src="{{.Script}}"></script>
</head>
<body>
<main class="paywall" data-screen="{{.ScreenID}}" data-init="{{.Get "offerings"}}" data-signals="{purchasing: {{.State.Purchase.InProgress}}, restoring: {{.State.Restoring}}}" data-attr:aria-busy="$purchasing || $restoring">
<header class="paywall-header">
<h1>Premium Features</h1>
<p>Unlock everything and supercharge your experience</p>
</header>
{{template "features" .Features}}
{{template "pricing" .}}
{{template "actions" .}}
<footer class="paywall-footer">
<a href="{{.TermsURL}}">Terms of Service</a>
<a href="{{.PrivacyURL}}">Privacy Policy</a>
</footer>
</main>
{{template "dialog" .}}
<div id="toast-container" aria-live="polite"></div>
</body>
</html>{{end}}

{{define "features"}}<ul class="features">
{{range .}}<li class="feature"><span class="icon icon-{{.Icon}}"></span>{{.Text}}</li>
{{end}}</ul>{{end}}

{{define "pricing"}}<section id="pricing" class="pricing"{{if .State.Fetching}} aria-busy="true"{{end}}>
{{range .State.Offerings}}<button type="button" class="card{{if eq .ID $.State.Selected}} selected{{end}}{{if .Popular}} popular{{end}}" data-offering="{{.ID}}" data-on:click="{{$.Post (print "select/" .ID)}}">
{{if .Badge}}<span class="badge">{{.Badge}}</span>{{end}}
<h3>{{.Title}}</h3>
<p class="price"><span class="amount">{{.Price}}</span> <span class="period">{{.Period}}</span></p>
{{if annual .ID}}<p class="savings">Save 50% compared to monthly</p>{{end}}
</button>
{{end}}</section>{{end}}

{{define "actions"}}<section id="actions" class="actions">
<button type="button" class="primary" data-on:click="{{.Post "purchase"}}"{{if .State.Purchase.InProgress}} disabled{{end}}>{{if .State.Processing .State.Selected}}Processing...{{else}}Continue with Premium{{end}}</button>
<button type="button" class="link" data-on:click="{{.Post "restore"}}"{{if .State.Restoring}} disabled{{end}}>{{if .State.Restoring}}Restoring...{{else}}Restore Purchases{{end}}</button>
</section>{{end}}

{{define "dialog"}}<div id="success-dialog">{{if .State.SuccessVisible}}
<dialog open class="success">
<h2>Welcome to Premium!</h2>
<p>You now have access to all premium features.</p>
{{template "features" .Features}}
<button type="button" class="primary" data-on:click="{{.Post "dismiss"}}">Get Started</button>
</dialog>
{{end}}</div>{{end}}

{{define "toast"}}<div class="toast toast-{{.Kind}}" role="alert">
<strong>{{.Title}}</strong>{{if .Message}}
<p>{{.Message}}</p>{{end}}
</div>{{end}}

{{define "error_toast"}}<div class="toast toast-{{.Type}}" role="alert"><p>{{.Message}}</p></div>{{end}}

{{define "error_page"}}<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Error {{.StatusCode}}</title></head>
<body>
<main class="error">
<h1>{{.StatusCode}}</h1>
<p>{{.Error}}</p>
{{if .RequestID}}<p class="request-id">Request ID: {{.RequestID}}</p>{{end}}
</main>
</body>
</html>{{end}}
`))

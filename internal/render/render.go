// Package render produces the gate's two HTML pages: the sign-in form and the
// dashboard of delegation forms.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/MrSnakeDoc/schluessel/internal/registry"
)

// DelegationPath is appended to a service URL to form the delegation target.
// Downstream services mint their own session when they receive a POST there.
const DelegationPath = "/generate_auth_cookie"

// Field names carried by every delegation form.
const (
	FieldSharedSecret = "shared_secret"
	FieldServiceURL   = "service_url"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer holds the parsed templates. It is stateless otherwise and safe for
// concurrent use.
type Renderer struct {
	dashboard *template.Template
	signIn    []byte
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	signIn, err := templateFS.ReadFile("templates/signin.html")
	if err != nil {
		return nil, fmt.Errorf("failed to read sign-in page: %w", err)
	}

	dashboard, err := template.ParseFS(templateFS, "templates/dashboard.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse dashboard template: %w", err)
	}

	return &Renderer{
		dashboard: dashboard,
		signIn:    signIn,
	}, nil
}

// SignIn returns the static sign-in page.
func (r *Renderer) SignIn() []byte {
	return r.signIn
}

type dashboardView struct {
	SharedSecret string
	Domains      []domainView
}

type domainView struct {
	Name     string
	Services []serviceView
}

type serviceView struct {
	Name   string
	URL    string
	Action string
}

// Dashboard renders one delegation form per registered service. It reads only
// its arguments; the caller owns the snapshot.
func (r *Renderer) Dashboard(snap registry.Snapshot, sharedSecret string) ([]byte, error) {
	view := dashboardView{
		SharedSecret: sharedSecret,
		Domains:      make([]domainView, 0, len(snap)),
	}
	for _, domain := range snap.Domains() {
		services := snap[domain]
		dv := domainView{Name: domain, Services: make([]serviceView, 0, len(services))}
		for _, svc := range services {
			dv.Services = append(dv.Services, serviceView{
				Name:   svc.Name,
				URL:    svc.URL,
				Action: DelegationAction(svc.URL),
			})
		}
		view.Domains = append(view.Domains, dv)
	}

	var buf bytes.Buffer
	if err := r.dashboard.ExecuteTemplate(&buf, "dashboard.html", view); err != nil {
		return nil, fmt.Errorf("failed to render dashboard: %w", err)
	}
	return buf.Bytes(), nil
}

// DelegationAction is the form target for a service URL: a literal
// concatenation, so a trailing slash on the URL is kept.
func DelegationAction(serviceURL string) string {
	return serviceURL + DelegationPath
}

package server

import (
	_ "embed"
	"html/template"
)

//go:embed templates/login.html
var loginPageTemplateHTML string

//go:embed templates/dashboard.html
var dashboardPageTemplateHTML string

var loginPageTemplate = template.Must(template.New("login").Parse(loginPageTemplateHTML))
var dashboardPageTemplate = template.Must(template.New("dashboard").Parse(dashboardPageTemplateHTML))

// LoginPageData represents the data for the login page
type LoginPageData struct {
	ServiceName string
	SSOEnabled  bool
	Message     string
	MessageType string // "error" or "info"
}

// DashboardPageData represents the data for the dashboard landing page
type DashboardPageData struct {
	ServiceName    string
	DisplayName    string
	Email          string
	LoginMethod    string
	SessionExpires string
	OrdersEnabled  bool
}

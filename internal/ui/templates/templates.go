// Package templates holds the full-page templ components. Dashboard sections
// are filled in later by SSE patches from the handlers package.
//
// Edit pages.templ and run `templ generate` to refresh pages_templ.go.
package templates

//go:generate templ generate

type LoginPage struct {
	Error string
	Next  string
}

type DashboardPage struct {
	Username string
	Years    []int
}

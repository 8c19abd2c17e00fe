// Package resolver decides, for a request into the tenant-scoped area, whether
// to show a loading state, redirect, or render. Resolve is a pure function of
// its input.
package resolver

import (
	"net/url"

	"github.com/onescheduler/dashboard/internal/tenant"
)

// SetupPath is where users without a usable tenant are sent.
const SetupPath = "/tenant/setup"

// DefaultPage is used when a request names no page.
const DefaultPage = "dashboard"

// Kind tags a Decision.
type Kind int

const (
	KindLoading Kind = iota
	KindRedirect
	KindRender
)

func (k Kind) String() string {
	switch k {
	case KindLoading:
		return "loading"
	case KindRedirect:
		return "redirect"
	case KindRender:
		return "render"
	}
	return "unknown"
}

// Input is what a tenant-scoped request knows about itself and the session.
type Input struct {
	URLSlug string // empty when the URL carries no tenant segment
	Page    string
	Loading bool
	Current *tenant.Tenant
	Error   string
}

// Decision is the outcome of Resolve. Target is set for KindRedirect; Message
// carries the error shown to the user when the redirect is caused by one.
type Decision struct {
	Kind    Kind
	Target  string
	Message string
}

// Resolve applies the rules in order, first match wins:
// loading, no current tenant, missing slug, mismatched slug, error, render.
// A slug in the URL never changes the current tenant; only switching does.
func Resolve(in Input) Decision {
	switch {
	case in.Loading:
		return Decision{Kind: KindLoading}
	case in.Current == nil:
		return Decision{Kind: KindRedirect, Target: SetupPath}
	case in.URLSlug == "", in.URLSlug != in.Current.Slug:
		return Decision{Kind: KindRedirect, Target: CanonicalURL(in.Current.Slug, in.Page)}
	case in.Error != "":
		return Decision{Kind: KindRedirect, Target: SetupErrorURL(in.Error), Message: in.Error}
	}
	return Decision{Kind: KindRender}
}

// CanonicalURL returns /<slug>/<page>, defaulting page to DefaultPage.
func CanonicalURL(slug, page string) string {
	if page == "" {
		page = DefaultPage
	}
	return "/" + url.PathEscape(slug) + "/" + page
}

// SetupErrorURL returns the setup path carrying msg in its error parameter.
func SetupErrorURL(msg string) string {
	return SetupPath + "?" + url.Values{"error": {msg}}.Encode()
}

package api

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"linkshare/pkg/session"
	"linkshare/pkg/storage"
)

const (
	viewLoginRegister = "login-register"
	viewDashboard     = "dashboard"
	viewSearchResults = "search-results"

	allCategories = "All"
)

//go:embed templates/*.html
var templateFS embed.FS

// now is replaced in tests.
var now = time.Now

type loginRegisterData struct {
	Error string
}

type dashboardData struct {
	User             session.Session
	Posts            map[string][]storage.PostView
	Search           string
	SelectedCategory string
	Categories       []string
	MaxComments      int
	MaxCommentLen    int
	Error            string
}

type searchResultsData struct {
	Search  string
	Results []storage.PostView
}

func parseViews() (*template.Template, error) {
	return template.New("").
		Funcs(template.FuncMap{"timeAgo": timeAgo}).
		ParseFS(templateFS, "templates/*.html")
}

// render executes the named view into a buffer so a failing template never
// leaves a half written page behind.
func (api *API) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := api.views.ExecuteTemplate(&buf, name, data); err != nil {
		log.Errorf("[render] failed to execute template %s: %v", name, err)
		http.Error(w, msgInternal, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// timeAgo formats t relative to the current time.
func timeAgo(t time.Time) string {
	d := now().Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d/time.Minute), "minute")
	case d < 24*time.Hour:
		return plural(int(d/time.Hour), "hour")
	case d < 30*24*time.Hour:
		return plural(int(d/(24*time.Hour)), "day")
	default:
		return t.Format("Jan 2, 2006")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// groupByCategory groups posts by category keeping their order.
func groupByCategory(posts []storage.PostView) map[string][]storage.PostView {
	groups := make(map[string][]storage.PostView)
	for _, p := range posts {
		groups[p.Category] = append(groups[p.Category], p)
	}
	return groups
}

// knownCategories returns the configured categories followed by the other
// categories present in groups, sorted.
func (api *API) knownCategories(groups map[string][]storage.PostView) []string {
	seen := make(map[string]bool, len(api.categories))
	cats := make([]string, 0, len(api.categories)+len(groups))
	for _, c := range api.categories {
		if !seen[c] {
			seen[c] = true
			cats = append(cats, c)
		}
	}

	var extra []string
	for c := range groups {
		if !seen[c] {
			extra = append(extra, c)
		}
	}
	sort.Strings(extra)

	return append(cats, extra...)
}

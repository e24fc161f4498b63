package web

import (
	"html/template"
	"net/http"
	"strconv"

	"github.com/soundbluemusic/dictgen/internal/config"
	"github.com/soundbluemusic/dictgen/internal/errors"
	"github.com/soundbluemusic/dictgen/internal/ops"
)

// Handlers contains HTTP route handlers for the preview server.
type Handlers struct {
	rt       *ops.Runtime
	renderer *Renderer
}

// DashboardPageData is the template data for the dashboard.
type DashboardPageData struct {
	PageData
	Meta *ops.MetaOutput
}

// EntriesPageData is the template data for the entry listing.
type EntriesPageData struct {
	PageData
	Partition string
	Category  string
	HasFilter bool
	Result    *ops.ListEntriesOutput
}

// EntryPageData is the template data for one entry.
type EntryPageData struct {
	PageData
	Lookup       *ops.LookupOutput
	Translations []TranslationView
}

// TranslationView is one locale of an entry, prepared for display.
type TranslationView struct {
	Locale      string
	Word        string
	Explanation template.HTML
}

// RoutesPageData is the template data for the route chunk calculator.
type RoutesPageData struct {
	PageData
	Target     string
	ChunkIndex string
	Result     *ops.RoutesOutput
}

// VerifyPageData is the template data for the verification page.
type VerifyPageData struct {
	PageData
	RemoteBaseURL string
	Ran           bool
	Result        *ops.VerifyOutput
	ReportHTML    template.HTML
}

// HandleDashboard handles GET /dashboard: metadata of the last build.
func (h *Handlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	meta, err := ops.Meta(r.Context(), h.rt)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, meta)
		return
	}

	h.renderer.renderPage(w, r, "dashboard", DashboardPageData{
		PageData: h.renderer.page("Dashboard", "dashboard"),
		Meta:     meta,
	})
}

// HandleEntries handles GET /entries: one partition or category of the offline database.
func (h *Handlers) HandleEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := EntriesPageData{
		PageData:  h.renderer.page("Entries", "entries"),
		Partition: q.Get("partition"),
		Category:  q.Get("category"),
	}
	data.HasFilter = data.Partition != "" || data.Category != ""

	if !data.HasFilter {
		if wantsJSON(r) {
			h.renderer.renderError(w, r, errors.NewInvalidConfig("partition", "exactly one of partition or category is required"))
			return
		}
		h.renderer.renderPage(w, r, "entries", data)
		return
	}

	result, err := ops.ListEntries(r.Context(), h.rt, ops.ListEntriesInput{
		Partition: data.Partition,
		Category:  data.Category,
		Limit:     parseIntParam(r, "limit", 20),
		Offset:    parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	data.Result = result
	h.renderer.renderPage(w, r, "entries", data)
}

// HandleEntry handles GET /entries/{id}: one entry with its partition and routes.
func (h *Handlers) HandleEntry(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidConfig("id", "is required"))
		return
	}

	result, err := ops.Lookup(r.Context(), h.rt, ops.LookupInput{
		ID:     id,
		Locale: r.URL.Query().Get("locale"),
		Source: r.URL.Query().Get("source"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, r, "entry", EntryPageData{
		PageData:     h.renderer.page(id, "entries"),
		Lookup:       result,
		Translations: translationViews(h.rt.Config.Locales, r.URL.Query().Get("locale"), result),
	})
}

// HandleRoutes handles GET /routes: the routes of one build invocation.
func (h *Handlers) HandleRoutes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	input := ops.RoutesInput{
		Target:    config.BuildTarget(q.Get("target")),
		ChunkSize: parseIntParam(r, "chunk_size", 0),
	}
	if s := q.Get("chunk_index"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			h.renderer.renderError(w, r, errors.NewInvalidConfig(config.EnvChunkIndex, "must be a non-negative integer"))
			return
		}
		input.ChunkIndex, input.HasChunkIndex = n, true
	}

	result, err := ops.Routes(r.Context(), h.rt, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, r, "routes", RoutesPageData{
		PageData:   h.renderer.page("Routes", "routes"),
		Target:     string(result.Target),
		ChunkIndex: q.Get("chunk_index"),
		Result:     result,
	})
}

// HandleVerify handles GET /verify. The remote check only runs with run=true
// and only against the configured remote_base_url; the server never fetches a
// host named by the request.
func (h *Handlers) HandleVerify(w http.ResponseWriter, r *http.Request) {
	remote := h.rt.Config.RemoteBaseURL
	data := VerifyPageData{
		PageData:      h.renderer.page("Verify deployment", "verify"),
		RemoteBaseURL: remote,
	}

	if !parseBoolParam(r, "run") {
		h.renderer.renderPage(w, r, "verify", data)
		return
	}

	result, err := ops.Verify(r.Context(), h.rt, ops.VerifyInput{RemoteBaseURL: remote})
	// Drift is shown as a finding here, not as an error page.
	if err != nil && !(result != nil && errors.Is(err, errors.ErrDriftDetected)) {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	data.Ran = true
	data.Result = result
	data.ReportHTML = renderMarkdown(string(result.Report.Markdown()))
	h.renderer.renderPage(w, r, "verify", data)
}

// HandleReload handles POST /reload and POST /api/reload: the source files are
// read again so later pages see edited entries.
func (h *Handlers) HandleReload(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Reload(r.Context(), h.rt)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// translationViews orders translations by configured locale, then any others.
func translationViews(locales []config.Locale, locale string, lookup *ops.LookupOutput) []TranslationView {
	if lookup.Localized != nil {
		return []TranslationView{{
			Locale:      locale,
			Word:        lookup.Localized.Translation.Word,
			Explanation: renderMarkdown(lookup.Localized.Translation.Explanation),
		}}
	}
	if lookup.Entry == nil {
		return nil
	}

	views := make([]TranslationView, 0, len(lookup.Entry.Translations))
	for _, l := range locales {
		t, ok := lookup.Entry.Translations[l.Code]
		if !ok {
			continue
		}
		views = append(views, TranslationView{
			Locale:      l.Code,
			Word:        t.Word,
			Explanation: renderMarkdown(t.Explanation),
		})
	}
	return views
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1"
}

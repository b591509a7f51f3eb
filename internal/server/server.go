// Package server exposes a workbench store over a JSON HTTP API. Every
// endpoint reads or mutates the shared store; the store itself serializes
// concurrent access.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/hanpama/graphdesk/internal/eventbus"
	"github.com/hanpama/graphdesk/internal/events"
	"github.com/hanpama/graphdesk/internal/history"
	"github.com/hanpama/graphdesk/internal/language"
	"github.com/hanpama/graphdesk/internal/reqid"
	"github.com/hanpama/graphdesk/internal/tabs"
	"github.com/hanpama/graphdesk/internal/theme"
	"github.com/hanpama/graphdesk/internal/workbench"
)

// Handler is an http.Handler serving the workbench API.
type Handler struct {
	store *workbench.Store
	opt   Options
}

type Options struct {
	// Timeout sets a default timeout if the incoming request context has none.
	// 0 means no default timeout.
	Timeout time.Duration

	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled.
	CORS CORSOptions
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

// New creates the API handler around an already-constructed store.
func New(store *workbench.Store, opts ...Option) *Handler {
	op := Options{Timeout: 10 * time.Second}
	for _, f := range opts {
		f(&op)
	}
	return &Handler{store: store, opt: op}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	ctx, _ = reqid.NewContext(ctx)
	status := http.StatusOK
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Request: r})
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{Request: r, Status: status, Duration: time.Since(start)})
	}()

	if r.Method == http.MethodOptions {
		if len(h.opt.CORS.AllowedOrigins) > 0 {
			setCORSHeaders(w, r, h.opt.CORS)
		}
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	}

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}

	route, ok := routes[r.URL.Path]
	if !ok {
		status = http.StatusNotFound
		writeJSON(w, status, errorResponse("not found"), h.opt.Pretty)
		return
	}
	if r.Method != route.method {
		status = http.StatusMethodNotAllowed
		writeJSON(w, status, errorResponse("method not allowed"), h.opt.Pretty)
		return
	}

	res, err := route.handle(h, ctx, r)
	if err != nil {
		status = err.status
		writeJSON(w, status, errorResponse(err.message), h.opt.Pretty)
		return
	}
	if res == nil {
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, res, h.opt.Pretty)
}

type requestError struct {
	status  int
	message string
}

func badRequest(msg string) *requestError {
	return &requestError{status: http.StatusBadRequest, message: msg}
}

type route struct {
	method string
	handle func(h *Handler, ctx context.Context, r *http.Request) (any, *requestError)
}

var routes = map[string]route{
	"/state":            {http.MethodGet, (*Handler).getState},
	"/editors":          {http.MethodPost, (*Handler).postEditors},
	"/prettify":         {http.MethodPost, (*Handler).postPrettify},
	"/merge":            {http.MethodPost, (*Handler).postMerge},
	"/run":              {http.MethodPost, (*Handler).postRun},
	"/stop":             {http.MethodPost, (*Handler).postStop},
	"/introspect":       {http.MethodPost, (*Handler).postIntrospect},
	"/schema":           {http.MethodGet, (*Handler).getSchema},
	"/tabs/add":         {http.MethodPost, (*Handler).postTabAdd},
	"/tabs/change":      {http.MethodPost, (*Handler).postTabChange},
	"/tabs/move":        {http.MethodPost, (*Handler).postTabMove},
	"/tabs/close":       {http.MethodPost, (*Handler).postTabClose},
	"/tabs/update":      {http.MethodPost, (*Handler).postTabUpdate},
	"/headers/persist":  {http.MethodPost, (*Handler).postPersistHeaders},
	"/history":          {http.MethodGet, (*Handler).getHistory},
	"/history/favorite": {http.MethodPost, (*Handler).postHistoryFavorite},
	"/history/label":    {http.MethodPost, (*Handler).postHistoryLabel},
	"/history/delete":   {http.MethodPost, (*Handler).postHistoryDelete},
	"/theme":            {http.MethodPost, (*Handler).postTheme},
	"/plugin":           {http.MethodPost, (*Handler).postPlugin},
}

// ------------------ State ------------------

type tabSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type stateResponse struct {
	Tabs                 []tabSummary `json:"tabs"`
	ActiveIndex          int          `json:"activeTabIndex"`
	Query                string       `json:"query"`
	Variables            string       `json:"variables,omitempty"`
	Headers              string       `json:"headers,omitempty"`
	Response             string       `json:"response,omitempty"`
	OperationName        string       `json:"operationName,omitempty"`
	IsFetching           bool         `json:"isFetching"`
	IsIntrospecting      bool         `json:"isIntrospecting"`
	ShouldPersistHeaders bool         `json:"shouldPersistHeaders"`
	Theme                string       `json:"theme,omitempty"`
	VisiblePlugin        string       `json:"visiblePlugin,omitempty"`
}

func (h *Handler) snapshot() stateResponse {
	state := h.store.TabState()
	res := stateResponse{
		Tabs:                 make([]tabSummary, len(state.Tabs)),
		ActiveIndex:          state.ActiveIndex,
		Query:                h.store.QueryEditor().GetValue(),
		Variables:            h.store.VariablesEditor().GetValue(),
		Headers:              h.store.HeadersEditor().GetValue(),
		Response:             h.store.ResponseEditor().GetValue(),
		OperationName:        h.store.Facts().OperationName,
		IsFetching:           h.store.IsFetching(),
		IsIntrospecting:      h.store.IsIntrospecting(),
		ShouldPersistHeaders: h.store.ShouldPersistHeaders(),
		Theme:                string(h.store.Theme().Theme()),
	}
	for i, tab := range state.Tabs {
		res.Tabs[i] = tabSummary{ID: tab.ID, Title: tab.Title}
	}
	if visible := h.store.Plugins().Visible(); visible != nil {
		res.VisiblePlugin = visible.Title
	}
	return res
}

func (h *Handler) getState(context.Context, *http.Request) (any, *requestError) {
	return h.snapshot(), nil
}

// ------------------ Editors ------------------

type editorsRequest struct {
	Query         *string `json:"query"`
	Variables     *string `json:"variables"`
	Headers       *string `json:"headers"`
	OperationName *string `json:"operationName"`
}

func (h *Handler) postEditors(ctx context.Context, r *http.Request) (any, *requestError) {
	var req editorsRequest
	if err := h.decode(r, &req); err != nil {
		return nil, err
	}
	if req.Query != nil {
		h.store.QueryEditor().SetValue(*req.Query)
	}
	if req.Variables != nil {
		h.store.VariablesEditor().SetValue(*req.Variables)
	}
	if req.Headers != nil {
		h.store.HeadersEditor().SetValue(*req.Headers)
	}
	if req.OperationName != nil {
		h.store.SetOperationName(*req.OperationName)
	}
	return h.snapshot(), nil
}

func (h *Handler) postPrettify(ctx context.Context, r *http.Request) (any, *requestError) {
	h.store.Prettify()
	return h.snapshot(), nil
}

func (h *Handler) postMerge(ctx context.Context, r *http.Request) (any, *requestError) {
	h.store.MergeQuery()
	return h.snapshot(), nil
}

// ------------------ Execution ------------------

func (h *Handler) postRun(ctx context.Context, r *http.Request) (any, *requestError) {
	// Streams and subscriptions outlive the request, so the run is detached
	// from the request's cancellation while keeping its values.
	go h.store.Run(context.WithoutCancel(ctx))
	return ack{OK: true}, nil
}

func (h *Handler) postStop(ctx context.Context, r *http.Request) (any, *requestError) {
	h.store.Stop()
	return ack{OK: true}, nil
}

type ack struct {
	OK bool `json:"ok"`
}

// ------------------ Schema ------------------

func (h *Handler) postIntrospect(ctx context.Context, r *http.Request) (any, *requestError) {
	h.store.Introspect(ctx)
	return h.getSchema(ctx, r)
}

type schemaResponse struct {
	SDL              string   `json:"sdl,omitempty"`
	FetchError       string   `json:"fetchError,omitempty"`
	ValidationErrors []string `json:"validationErrors,omitempty"`
	IsIntrospecting  bool     `json:"isIntrospecting"`
}

func (h *Handler) getSchema(context.Context, *http.Request) (any, *requestError) {
	return schemaResponse{
		SDL:              language.PrintSchema(h.store.Schema()),
		FetchError:       h.store.SchemaFetchError(),
		ValidationErrors: h.store.ValidationErrors(),
		IsIntrospecting:  h.store.IsIntrospecting(),
	}, nil
}

// ------------------ Tabs ------------------

type tabIndexRequest struct {
	Index int `json:"index"`
}

func (h *Handler) postTabAdd(ctx context.Context, r *http.Request) (any, *requestError) {
	h.store.AddTab()
	return h.snapshot(), nil
}

func (h *Handler) postTabChange(ctx context.Context, r *http.Request) (any, *requestError) {
	var req tabIndexRequest
	if err := h.decode(r, &req); err != nil {
		return nil, err
	}
	state := h.store.TabState()
	if req.Index < 0 || req.Index >= len(state.Tabs) {
		return nil, badRequest("tab index out of range")
	}
	h.store.ChangeTab(req.Index)
	return h.snapshot(), nil
}

type tabMoveRequest struct {
	Order []int `json:"order"`
}

func (h *Handler) postTabMove(ctx context.Context, r *http.Request) (any, *requestError) {
	var req tabMoveRequest
	if err := h.decode(r, &req); err != nil {
		return nil, err
	}
	h.store.MoveTab(req.Order)
	return h.snapshot(), nil
}

func (h *Handler) postTabClose(ctx context.Context, r *http.Request) (any, *requestError) {
	var req tabIndexRequest
	if err := h.decode(r, &req); err != nil {
		return nil, err
	}
	state := h.store.TabState()
	if req.Index < 0 || req.Index >= len(state.Tabs) {
		return nil, badRequest("tab index out of range")
	}
	h.store.CloseTab(req.Index)
	return h.snapshot(), nil
}

func (h *Handler) postTabUpdate(ctx context.Context, r *http.Request) (any, *requestError) {
	var req editorsRequest
	if err := h.decode(r, &req); err != nil {
		return nil, err
	}
	h.store.UpdateActiveTabValues(tabs.Partial{
		Query:         req.Query,
		Variables:     req.Variables,
		Headers:       req.Headers,
		OperationName: req.OperationName,
	})
	return h.snapshot(), nil
}

type persistHeadersRequest struct {
	Persist bool `json:"persist"`
}

func (h *Handler) postPersistHeaders(ctx context.Context, r *http.Request) (any, *requestError) {
	var req persistHeadersRequest
	if err := h.decode(r, &req); err != nil {
		return nil, err
	}
	h.store.SetShouldPersistHeaders(req.Persist)
	return h.snapshot(), nil
}

// ------------------ History ------------------

type historyResponse struct {
	Queries []history.Item `json:"queries"`
}

func (h *Handler) getHistory(context.Context, *http.Request) (any, *requestError) {
	return historyResponse{Queries: h.store.History().Queries()}, nil
}

func (h *Handler) postHistoryFavorite(ctx context.Context, r *http.Request) (any, *requestError) {
	var item history.Item
	if err := h.decode(r, &item); err != nil {
		return nil, err
	}
	h.store.History().ToggleFavorite(item)
	return historyResponse{Queries: h.store.History().Queries()}, nil
}

type historyLabelRequest struct {
	Item  history.Item `json:"item"`
	Index int          `json:"index"`
}

func (h *Handler) postHistoryLabel(ctx context.Context, r *http.Request) (any, *requestError) {
	var req historyLabelRequest
	if err := h.decode(r, &req); err != nil {
		return nil, err
	}
	h.store.History().EditLabel(req.Item, req.Index)
	return historyResponse{Queries: h.store.History().Queries()}, nil
}

type historyDeleteRequest struct {
	Item           history.Item `json:"item"`
	ClearFavorites bool         `json:"clearFavorites"`
}

func (h *Handler) postHistoryDelete(ctx context.Context, r *http.Request) (any, *requestError) {
	var req historyDeleteRequest
	if err := h.decode(r, &req); err != nil {
		return nil, err
	}
	h.store.History().Delete(req.Item, req.ClearFavorites)
	return historyResponse{Queries: h.store.History().Queries()}, nil
}

// ------------------ Theme & plugins ------------------

type themeRequest struct {
	Theme string `json:"theme"`
}

func (h *Handler) postTheme(ctx context.Context, r *http.Request) (any, *requestError) {
	var req themeRequest
	if err := h.decode(r, &req); err != nil {
		return nil, err
	}
	switch theme.Theme(req.Theme) {
	case theme.System, theme.Light, theme.Dark:
	default:
		return nil, badRequest("unknown theme " + req.Theme)
	}
	h.store.Theme().Set(theme.Theme(req.Theme))
	return h.snapshot(), nil
}

type pluginRequest struct {
	Title string `json:"title"`
}

func (h *Handler) postPlugin(ctx context.Context, r *http.Request) (any, *requestError) {
	var req pluginRequest
	if err := h.decode(r, &req); err != nil {
		return nil, err
	}
	h.store.Plugins().SetVisibleTitle(req.Title)
	return h.snapshot(), nil
}

// ------------------ Request parsing ------------------

const errBodyTooLargeMessage = "body too large"

func (h *Handler) decode(r *http.Request, dst any) *requestError {
	reader := io.Reader(r.Body)
	if h.opt.MaxBodyBytes > 0 {
		reader = io.LimitReader(r.Body, h.opt.MaxBodyBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return badRequest("failed to read body")
	}
	defer r.Body.Close()
	if h.opt.MaxBodyBytes > 0 && int64(len(body)) > h.opt.MaxBodyBytes {
		return &requestError{status: http.StatusRequestEntityTooLarge, message: errBodyTooLargeMessage}
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return badRequest("invalid JSON")
	}
	return nil
}

// ------------------ Response formatting ------------------

type apiError struct {
	Message string `json:"message"`
}

type errorBody struct {
	Errors []apiError `json:"errors"`
}

func errorResponse(msg string) errorBody {
	return errorBody{Errors: []apiError{{Message: msg}}}
}

func writeJSON(w http.ResponseWriter, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	allowed := false
	for _, o := range opts.AllowedOrigins {
		if o == "*" || o == origin {
			allowed = true
			break
		}
	}
	if !allowed {
		return
	}
	if contains(opts.AllowedOrigins, "*") {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/agnt-gg/slop-sub000/internal/scope"
)

// segment is one element of a route pattern. A param segment captures the
// request segment after its literal prefix, e.g. "thread_:id".
type segment struct {
	literal string
	param   string
}

type route struct {
	method    string
	pattern   string
	segments  []segment
	operation string
	handler   http.Handler
}

type paramsKey struct{}

func withParams(ctx context.Context, params map[string]string) context.Context {
	if len(params) == 0 {
		return ctx
	}
	return context.WithValue(ctx, paramsKey{}, params)
}

func param(r *http.Request, name string) string {
	params, _ := r.Context().Value(paramsKey{}).(map[string]string)
	return params[name]
}

func parsePattern(pattern string) []segment {
	parts := strings.Split(strings.Trim(pattern, "/"), "/")
	segs := make([]segment, len(parts))
	for i, part := range parts {
		idx := strings.Index(part, ":")
		if idx < 0 {
			segs[i] = segment{literal: part}
			continue
		}
		segs[i] = segment{literal: part[:idx], param: part[idx+1:]}
	}
	return segs
}

// match reports whether path matches the route's segments. Parameter values
// must be non-empty after their literal prefix; a differing segment count is
// never a match.
func (rt route) match(path string) (map[string]string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != len(rt.segments) {
		return nil, false
	}
	var params map[string]string
	for i, seg := range rt.segments {
		part := parts[i]
		if seg.param == "" {
			if part != seg.literal {
				return nil, false
			}
			continue
		}
		if !strings.HasPrefix(part, seg.literal) {
			return nil, false
		}
		value := part[len(seg.literal):]
		if value == "" {
			return nil, false
		}
		if params == nil {
			params = make(map[string]string, 2)
		}
		params[seg.param] = value
	}
	return params, true
}

func (h *Handler) route(method, pattern, operation string,
	scopeFor func(params map[string]string) string, fn handlerFunc) route {
	if scopeFor != nil {
		inner := fn
		fn = func(w http.ResponseWriter, r *http.Request) error {
			params, _ := r.Context().Value(paramsKey{}).(map[string]string)
			if required := scopeFor(params); required != "" {
				if err := requireScope(r, required); err != nil {
					return err
				}
			}
			return inner(w, r)
		}
	}
	return route{
		method:    method,
		pattern:   pattern,
		segments:  parsePattern(pattern),
		operation: operation,
		handler:   h.wrap(operation, fn),
	}
}

func staticScope(required string) func(map[string]string) string {
	return func(map[string]string) string { return required }
}

func idScope(resource, perm string) func(map[string]string) string {
	return func(params map[string]string) string {
		return scope.FormatScope(resource, params["id"], perm)
	}
}

func keyScope(perm string) func(map[string]string) string {
	return func(params map[string]string) string {
		return scope.FormatScope("memory", params["key"], perm)
	}
}

// buildRoutes declares the HTTP surface. Order matters: literal-prefixed
// routes shadow parameter routes with the same segment count.
func (h *Handler) buildRoutes() []route {
	return []route{
		h.route(http.MethodPost, "/chat", "chat.create",
			staticScope(scope.FormatGlobal("chat", "write")), h.handleChatCreate),
		h.route(http.MethodPost, "/chat/stream", "chat.stream",
			staticScope(scope.FormatGlobal("chat", "write")), h.handleChatStream),
		h.route(http.MethodGet, "/chat/ws", "chat.ws", nil, h.handleChatWS),
		h.route(http.MethodGet, "/chat", "chat.threads",
			staticScope(scope.FormatGlobal("chat", "read")), h.handleThreadList),
		h.route(http.MethodGet, "/chat/thread_:id", "chat.thread.get",
			idScope("chat", "read"), h.handleThreadGet),
		h.route(http.MethodGet, "/chat/:id", "chat.get",
			idScope("chat", "read"), h.handleChatGet),

		h.route(http.MethodGet, "/tools", "tools.list",
			staticScope(scope.FormatGlobal("tools", "read")), h.handleToolList),
		h.route(http.MethodGet, "/tools/:id", "tools.get",
			idScope("tools", "read"), h.handleToolGet),
		h.route(http.MethodPost, "/tools/:id", "tools.execute", nil, h.handleToolExecute),

		h.route(http.MethodGet, "/memory", "memory.keys",
			staticScope(scope.FormatScope("memory", "list", "read")), h.handleMemoryKeys),
		h.route(http.MethodPost, "/memory", "memory.store", nil, h.handleMemoryStore),
		h.route(http.MethodPost, "/memory/query", "memory.query",
			staticScope(scope.FormatScope("memory", "", "read")), h.handleMemoryQuery),
		h.route(http.MethodGet, "/memory/:key", "memory.get",
			keyScope("read"), h.handleMemoryGet),
		h.route(http.MethodPut, "/memory/:key", "memory.update",
			keyScope("write"), h.handleMemoryUpdate),
		h.route(http.MethodDelete, "/memory/:key", "memory.delete",
			keyScope("write"), h.handleMemoryDelete),

		h.route(http.MethodGet, "/resources", "resources.list",
			staticScope(scope.FormatScope("resources", "list", "read")), h.handleResourceList),
		h.route(http.MethodGet, "/resources/search", "resources.search",
			staticScope(scope.FormatScope("resources", "search", "read")), h.handleResourceSearch),
		h.route(http.MethodGet, "/resources/:id", "resources.get",
			idScope("resources", "read"), h.handleResourceGet),
		h.route(http.MethodPost, "/resources", "resources.register", nil, h.handleResourceRegister),
		h.route(http.MethodPut, "/resources/:id", "resources.update",
			idScope("resources", "write"), h.handleResourceUpdate),
		h.route(http.MethodDelete, "/resources/:id", "resources.delete",
			idScope("resources", "write"), h.handleResourceDelete),

		h.route(http.MethodPost, "/pay", "pay.charge",
			staticScope(scope.FormatGlobal("pay", "execute")), h.handlePayCharge),
		h.route(http.MethodGet, "/pay", "pay.list",
			staticScope(scope.FormatScope("pay", "list", "read")), h.handlePayList),
		h.route(http.MethodGet, "/pay/:id", "pay.get",
			idScope("pay", "read"), h.handlePayGet),

		h.route(http.MethodGet, "/models", "models", nil, h.handleModels),
		h.route(http.MethodGet, "/healthz", "healthz", nil, h.handleHealth),
		h.route(http.MethodGet, "/readyz", "readyz", nil, h.handleReady),
	}
}

func isWebSocketUpgrade(r *http.Request) bool {
	if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return false
	}
	for _, token := range strings.Split(r.Header.Get("Connection"), ",") {
		if strings.EqualFold(strings.TrimSpace(token), "upgrade") {
			return true
		}
	}
	return false
}

// ServeHTTP dispatches by method and path. A path that matches a route under
// a different method is refused with the method-not-allowed code, which this
// surface reports as 403; everything else falls through to 404.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if isWebSocketUpgrade(r) && r.URL.Path != "/chat/ws" {
		h.handleError(r.Context(), w, httpError{
			Status: http.StatusForbidden,
			Code:   codeMethodNotAllowed,
			Detail: "websocket upgrades are only accepted on /chat/ws",
		})
		return
	}

	pathMatched := false
	for _, rt := range h.routes {
		params, ok := rt.match(r.URL.Path)
		if !ok {
			continue
		}
		pathMatched = true
		if rt.method != r.Method {
			continue
		}
		r = r.WithContext(withParams(r.Context(), params))
		rt.handler.ServeHTTP(w, r)
		return
	}

	if pathMatched {
		h.handleError(r.Context(), w, httpError{
			Status: http.StatusForbidden,
			Code:   codeMethodNotAllowed,
			Detail: "method " + r.Method + " is not supported on " + r.URL.Path,
		})
		return
	}
	h.handleError(r.Context(), w, errNotFound("no route for "+r.URL.Path))
}

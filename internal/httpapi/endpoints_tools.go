package httpapi

import (
	"errors"
	"net/http"

	"github.com/agnt-gg/slop-sub000/api"
	"github.com/agnt-gg/slop-sub000/internal/jsonval"
	"github.com/agnt-gg/slop-sub000/internal/scope"
	"github.com/agnt-gg/slop-sub000/internal/tools"
)

func toWireParam(spec tools.ParamSpec) api.ToolParam {
	p := api.ToolParam{
		Type:        spec.Type,
		Description: spec.Description,
		Required:    spec.Required,
		Min:         spec.Min,
		Max:         spec.Max,
		MinLength:   spec.MinLength,
		MaxLength:   spec.MaxLength,
		Pattern:     spec.Pattern,
		Enum:        spec.Enum,
	}
	if spec.Items != nil {
		items := toWireParam(*spec.Items)
		p.Items = &items
	}
	return p
}

func toWireTool(t tools.Tool) api.Tool {
	out := api.Tool{ID: t.ID, Description: t.Description, Safe: t.Safe}
	if len(t.Parameters) > 0 {
		out.Parameters = make(map[string]api.ToolParam, len(t.Parameters))
		for name, spec := range t.Parameters {
			out.Parameters[name] = toWireParam(spec)
		}
	}
	return out
}

// handleToolList returns the tools the caller may read. The listing itself
// requires the global tools read grant; each entry is additionally filtered
// by the caller's per-tool scope.
func (h *Handler) handleToolList(w http.ResponseWriter, r *http.Request) error {
	grants := grantsFromRequest(r)
	visible := make([]api.Tool, 0)
	for _, t := range h.tools.List() {
		if !scope.CheckPermission(scope.FormatScope("tools", t.ID, "read"), grants) {
			continue
		}
		visible = append(visible, toWireTool(t))
	}
	h.writeJSON(w, http.StatusOK, api.ToolListResponse{Tools: visible}, nil)
	return nil
}

func (h *Handler) handleToolGet(w http.ResponseWriter, r *http.Request) error {
	id := param(r, "id")
	t, ok := h.tools.Get(id)
	if !ok {
		return errNotFound("tool " + id + " does not exist")
	}
	h.writeJSON(w, http.StatusOK, toWireTool(t), nil)
	return nil
}

// handleToolExecute enforces the execute grant itself: an explicit execute
// scope always suffices, and a safe-tool grant suffices only when the
// registry marks the tool safe.
func (h *Handler) handleToolExecute(w http.ResponseWriter, r *http.Request) error {
	id := param(r, "id")
	required := scope.FormatScope("tools", id, "execute")
	grants := grantsFromRequest(r)
	explicit := scope.CheckPermission(required, grants)
	safeGrant := scope.SafeToolGrant(id, grants)
	if !explicit && !safeGrant {
		return scopeError{Required: required}
	}

	t, ok := h.tools.Get(id)
	if !ok {
		return errNotFound("tool " + id + " does not exist")
	}
	if !explicit && !t.Safe {
		return scopeError{Required: required}
	}

	var params map[string]jsonval.Value
	if err := h.decodeToolParams(r, &params); err != nil {
		return err
	}
	result, err := h.tools.Execute(r.Context(), id, params)
	if err != nil {
		var verr *tools.ValidationError
		if errors.As(err, &verr) {
			return httpError{
				Status: http.StatusBadRequest,
				Code:   codeToolError,
				Detail: verr.Error(),
			}
		}
		return httpError{
			Status: http.StatusInternalServerError,
			Code:   codeToolError,
			Detail: err.Error(),
		}
	}
	h.writeJSON(w, http.StatusOK, result, nil)
	return nil
}

func (h *Handler) decodeToolParams(r *http.Request, dst *map[string]jsonval.Value) error {
	limited := limitedBody(r, h.jsonMaxBytes)
	if err := decodeJSONBody(limited, dst, jsonDecodeOptions{allowEmpty: true}); err != nil {
		return errInvalidJSON(err)
	}
	return nil
}

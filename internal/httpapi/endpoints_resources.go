package httpapi

import (
	"net/http"
	"strconv"

	"github.com/agnt-gg/slop-sub000/api"
	"github.com/agnt-gg/slop-sub000/internal/resstore"
	"github.com/agnt-gg/slop-sub000/internal/scope"
)

func toWireResource(res resstore.Resource) api.Resource {
	return api.Resource{
		ID:           res.ID,
		Content:      res.Content,
		Type:         res.Type,
		Title:        res.Title,
		Name:         res.Name,
		Description:  res.Description,
		Tags:         res.Tags,
		Format:       res.Format,
		Metadata:     res.Metadata,
		CreatedAt:    res.CreatedAt,
		UpdatedAt:    res.UpdatedAt,
		AccessCount:  res.AccessCount,
		LastAccessed: res.LastAccessed,
	}
}

// handleResourceRegister enforces its scope after decoding, like the memory
// store endpoint: the required scope names the resource id from the body.
func (h *Handler) handleResourceRegister(w http.ResponseWriter, r *http.Request) error {
	var req api.ResourceRegisterRequest
	if err := h.decodeRequest(r, &req); err != nil {
		return err
	}
	if req.ID == "" {
		return errInvalidRequest("id is required")
	}
	if req.Content == "" {
		return errInvalidRequest("content is required")
	}
	if err := requireScope(r, scope.FormatScope("resources", req.ID, "write")); err != nil {
		return err
	}
	res := h.resources.Register(req.ID, resstore.Registration{
		Content:     req.Content,
		Type:        req.Type,
		Title:       req.Title,
		Name:        req.Name,
		Description: req.Description,
		Tags:        req.Tags,
		Format:      req.Format,
		Metadata:    req.Metadata,
	})
	h.writeJSON(w, http.StatusOK, toWireResource(res), nil)
	return nil
}

func (h *Handler) handleResourceList(w http.ResponseWriter, r *http.Request) error {
	var items []resstore.Resource
	q := r.URL.Query()
	switch {
	case q.Get("type") != "":
		items = h.resources.ListByType(q.Get("type"))
	case q.Get("tag") != "":
		items = h.resources.ListByTag(q.Get("tag"))
	case q.Get("source") != "":
		items = h.resources.ListBySource(q.Get("source"))
	default:
		items = h.resources.List()
	}
	out := make([]api.Resource, len(items))
	for i, res := range items {
		out[i] = toWireResource(res)
	}
	h.writeJSON(w, http.StatusOK, api.ResourceListResponse{Resources: out}, nil)
	return nil
}

func (h *Handler) handleResourceGet(w http.ResponseWriter, r *http.Request) error {
	id := param(r, "id")
	res, ok := h.resources.Get(id)
	if !ok {
		return errNotFound("resource " + id + " does not exist")
	}
	h.writeJSON(w, http.StatusOK, toWireResource(res), nil)
	return nil
}

func (h *Handler) handleResourceUpdate(w http.ResponseWriter, r *http.Request) error {
	id := param(r, "id")
	var req api.ResourceUpdateRequest
	if err := h.decodeRequest(r, &req); err != nil {
		return err
	}
	if req.Tags == nil && req.Metadata == nil {
		return errInvalidRequest("nothing to update: provide tags or metadata")
	}
	if req.Tags != nil {
		if _, ok := h.resources.UpdateTags(id, *req.Tags); !ok {
			return errNotFound("resource " + id + " does not exist")
		}
	}
	if req.Metadata != nil {
		if _, ok := h.resources.UpdateMetadata(id, req.Metadata); !ok {
			return errNotFound("resource " + id + " does not exist")
		}
	}
	res, ok := h.resources.Peek(id)
	if !ok {
		return errNotFound("resource " + id + " does not exist")
	}
	h.writeJSON(w, http.StatusOK, toWireResource(res), nil)
	return nil
}

func (h *Handler) handleResourceDelete(w http.ResponseWriter, r *http.Request) error {
	id := param(r, "id")
	if !h.resources.Delete(id) {
		return errNotFound("resource " + id + " does not exist")
	}
	h.writeJSON(w, http.StatusOK, api.StatusResponse{Status: "deleted"}, nil)
	return nil
}

func (h *Handler) handleResourceSearch(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		return errInvalidRequest("q is required")
	}
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return errInvalidRequest("limit must be a non-negative integer")
		}
		limit = parsed
	}
	hits := h.resources.Search(query, limit, resstore.SearchFilter{
		Type:   q.Get("type"),
		Source: q.Get("source"),
		Tag:    q.Get("tag"),
	})
	results := make([]api.ResourceSearchResult, len(hits))
	for i, hit := range hits {
		results[i] = api.ResourceSearchResult{
			Resource: toWireResource(hit.Resource),
			Score:    hit.Score,
		}
	}
	h.writeJSON(w, http.StatusOK, api.ResourceSearchResponse{Results: results}, nil)
	return nil
}

package httpapi

import (
	"net/http"

	"github.com/agnt-gg/slop-sub000/api"
	"github.com/agnt-gg/slop-sub000/internal/memstore"
	"github.com/agnt-gg/slop-sub000/internal/scope"
)

func toWireMemoryEntry(e memstore.Entry) api.MemoryEntry {
	return api.MemoryEntry{
		Key:       e.Key,
		Value:     e.Value,
		TTL:       e.TTLSeconds,
		Metadata:  e.Metadata,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

// handleMemoryStore enforces its scope after decoding: the required scope
// names the key, and the key only arrives in the body.
func (h *Handler) handleMemoryStore(w http.ResponseWriter, r *http.Request) error {
	var req api.MemoryStoreRequest
	if err := h.decodeRequest(r, &req); err != nil {
		return err
	}
	if req.Key == "" {
		return errInvalidRequest("key is required")
	}
	if err := requireScope(r, scope.FormatScope("memory", req.Key, "write")); err != nil {
		return err
	}
	h.memory.Put(req.Key, req.Value, memstore.Options{TTL: req.TTL, Metadata: req.Metadata})
	h.writeJSON(w, http.StatusOK, api.MemoryStoreResponse{Status: "stored", Key: req.Key}, nil)
	return nil
}

func (h *Handler) handleMemoryKeys(w http.ResponseWriter, r *http.Request) error {
	keys := h.memory.Keys(r.URL.Query().Get("prefix"))
	h.writeJSON(w, http.StatusOK, api.MemoryKeysResponse{Keys: keys}, nil)
	return nil
}

func (h *Handler) handleMemoryGet(w http.ResponseWriter, r *http.Request) error {
	key := param(r, "key")
	entry, ok := h.memory.Get(key)
	if !ok {
		return errNotFound("key " + key + " does not exist")
	}
	h.writeJSON(w, http.StatusOK, toWireMemoryEntry(entry), nil)
	return nil
}

func (h *Handler) handleMemoryUpdate(w http.ResponseWriter, r *http.Request) error {
	key := param(r, "key")
	var req api.MemoryUpdateRequest
	if err := h.decodeRequest(r, &req); err != nil {
		return err
	}
	if _, ok := h.memory.Update(key, req.Value, memstore.Options{TTL: req.TTL, Metadata: req.Metadata}); !ok {
		return errNotFound("key " + key + " does not exist")
	}
	h.writeJSON(w, http.StatusOK, api.MemoryStoreResponse{Status: "updated", Key: key}, nil)
	return nil
}

func (h *Handler) handleMemoryDelete(w http.ResponseWriter, r *http.Request) error {
	key := param(r, "key")
	if !h.memory.Delete(key) {
		return errNotFound("key " + key + " does not exist")
	}
	h.writeJSON(w, http.StatusOK, api.StatusResponse{Status: "deleted"}, nil)
	return nil
}

func (h *Handler) handleMemoryQuery(w http.ResponseWriter, r *http.Request) error {
	var req api.MemoryQueryRequest
	if err := h.decodeRequest(r, &req); err != nil {
		return err
	}
	if req.Query == "" {
		return errInvalidRequest("query is required")
	}
	var filter *memstore.KeyFilter
	if req.Filter != nil {
		filter = &memstore.KeyFilter{
			Prefix:      req.Filter.Prefix,
			Suffix:      req.Filter.Suffix,
			Contains:    req.Filter.Contains,
			NotContains: req.Filter.NotContains,
			Regex:       req.Filter.Regex,
		}
	}
	hits := h.memory.Query(req.Query, req.Limit, filter)
	results := make([]api.MemoryQueryResult, len(hits))
	for i, hit := range hits {
		results[i] = api.MemoryQueryResult{Key: hit.Key, Value: hit.Value, Score: hit.Score}
	}
	h.writeJSON(w, http.StatusOK, api.MemoryQueryResponse{Results: results}, nil)
	return nil
}

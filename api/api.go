// Package api defines the wire types of the gateway's HTTP surface.
package api

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/agnt-gg/slop-sub000/internal/jsonval"
)

// ErrorDetail is the inner body of the standard error envelope.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// ErrorResponse is the standard error envelope. Scope violations use
// ScopeDeniedResponse instead.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ScopeDeniedResponse is the body of a capability-scope rejection.
type ScopeDeniedResponse struct {
	Error     string `json:"error"`
	Permitted bool   `json:"permitted"`
}

// ChatMessage is one inbound message of a chat request.
type ChatMessage struct {
	Role    string         `json:"role"`
	Content MessageContent `json:"content"`
}

// MessageContent is a chat message body. The wire form is either a plain
// JSON string or a structured content block (an object, or an array of
// parts); both decode, and Text projects either form to the plain text the
// generator consumes.
type MessageContent struct {
	text       string
	block      jsonval.Value
	structured bool
}

// TextContent wraps a plain string body.
func TextContent(s string) MessageContent { return MessageContent{text: s} }

// BlockContent wraps a structured content block.
func BlockContent(v jsonval.Value) MessageContent {
	return MessageContent{block: v, structured: true}
}

func (c *MessageContent) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		*c = MessageContent{}
		return json.Unmarshal(trimmed, &c.text)
	}
	var v jsonval.Value
	if err := v.UnmarshalJSON(trimmed); err != nil {
		return err
	}
	*c = MessageContent{block: v, structured: true}
	return nil
}

func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.structured {
		return c.block.MarshalJSON()
	}
	return json.Marshal(c.text)
}

// Text returns the plain-text projection of the content. String bodies pass
// through unchanged. Blocks prefer their "text" field; arrays join the
// projections of their parts with newlines; anything else flattens to its
// scalar leaves.
func (c MessageContent) Text() string {
	if !c.structured {
		return c.text
	}
	return blockText(c.block)
}

func blockText(v jsonval.Value) string {
	switch v.Kind() {
	case jsonval.KindString:
		return v.Str()
	case jsonval.KindArray:
		parts := make([]string, 0, len(v.Elems()))
		for _, e := range v.Elems() {
			if s := blockText(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	case jsonval.KindObject:
		if t, ok := v.Fields()["text"]; ok && t.Kind() == jsonval.KindString {
			return t.Str()
		}
		if inner, ok := v.Fields()["content"]; ok {
			return blockText(inner)
		}
		return v.Flatten(false)
	default:
		return v.Flatten(false)
	}
}

// ChatRequest is the body of POST /chat and POST /chat/stream.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
	Model    string        `json:"model,omitempty"`
	ThreadID string        `json:"thread_id,omitempty"`
	Stream   bool          `json:"stream,omitempty"`
}

// Message is one stored chat message.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatResponse is the result of a synchronous chat creation. Exactly one of
// ID and ThreadID is set.
type ChatResponse struct {
	ID       string  `json:"id,omitempty"`
	ThreadID string  `json:"thread_id,omitempty"`
	Message  Message `json:"message"`
}

// ConversationResponse is a full chat or thread history.
type ConversationResponse struct {
	ID        string    `json:"id"`
	Model     string    `json:"model,omitempty"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ThreadSummary describes one thread in a listing.
type ThreadSummary struct {
	ID           string    `json:"id"`
	MessageCount int       `json:"message_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ThreadListResponse is the body of GET /chat?type=threads.
type ThreadListResponse struct {
	Threads []ThreadSummary `json:"threads"`
}

// ToolParam describes one parameter of a tool schema.
type ToolParam struct {
	Type        string     `json:"type"`
	Description string     `json:"description,omitempty"`
	Required    bool       `json:"required,omitempty"`
	Min         *float64   `json:"min,omitempty"`
	Max         *float64   `json:"max,omitempty"`
	MinLength   *int       `json:"min_length,omitempty"`
	MaxLength   *int       `json:"max_length,omitempty"`
	Pattern     string     `json:"pattern,omitempty"`
	Enum        []string   `json:"enum,omitempty"`
	Items       *ToolParam `json:"items,omitempty"`
}

// Tool describes one registered tool.
type Tool struct {
	ID          string               `json:"id"`
	Description string               `json:"description"`
	Safe        bool                 `json:"safe"`
	Parameters  map[string]ToolParam `json:"parameters,omitempty"`
}

// ToolListResponse is the body of GET /tools.
type ToolListResponse struct {
	Tools []Tool `json:"tools"`
}

// MemoryStoreRequest is the body of POST /memory.
type MemoryStoreRequest struct {
	Key      string                   `json:"key"`
	Value    jsonval.Value            `json:"value"`
	TTL      *int64                   `json:"ttl,omitempty"`
	Metadata map[string]jsonval.Value `json:"metadata,omitempty"`
}

// MemoryUpdateRequest is the body of PUT /memory/:key.
type MemoryUpdateRequest struct {
	Value    jsonval.Value            `json:"value"`
	TTL      *int64                   `json:"ttl,omitempty"`
	Metadata map[string]jsonval.Value `json:"metadata,omitempty"`
}

// MemoryEntry is one stored memory entry on the wire.
type MemoryEntry struct {
	Key       string                   `json:"key"`
	Value     jsonval.Value            `json:"value"`
	TTL       int64                    `json:"ttl"`
	Metadata  map[string]jsonval.Value `json:"metadata,omitempty"`
	CreatedAt time.Time                `json:"created_at"`
	UpdatedAt time.Time                `json:"updated_at"`
}

// MemoryStoreResponse acknowledges a store or update.
type MemoryStoreResponse struct {
	Status string `json:"status"`
	Key    string `json:"key"`
}

// MemoryKeysResponse is the body of GET /memory.
type MemoryKeysResponse struct {
	Keys []string `json:"keys"`
}

// MemoryKeyFilter restricts query candidates by key shape.
type MemoryKeyFilter struct {
	Prefix      string `json:"prefix,omitempty"`
	Suffix      string `json:"suffix,omitempty"`
	Contains    string `json:"contains,omitempty"`
	NotContains string `json:"not_contains,omitempty"`
	Regex       string `json:"regex,omitempty"`
}

// MemoryQueryRequest is the body of POST /memory/query.
type MemoryQueryRequest struct {
	Query  string           `json:"query"`
	Limit  int              `json:"limit,omitempty"`
	Filter *MemoryKeyFilter `json:"filter,omitempty"`
}

// MemoryQueryResult is one scored query hit.
type MemoryQueryResult struct {
	Key   string        `json:"key"`
	Value jsonval.Value `json:"value"`
	Score float64       `json:"score"`
}

// MemoryQueryResponse is the body of a memory query.
type MemoryQueryResponse struct {
	Results []MemoryQueryResult `json:"results"`
}

// ResourceRegisterRequest is the body of POST /resources.
type ResourceRegisterRequest struct {
	ID          string            `json:"id"`
	Content     string            `json:"content"`
	Type        string            `json:"type,omitempty"`
	Title       string            `json:"title,omitempty"`
	Name        string            `json:"name,omitempty"`
	Description string            `json:"description,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Format      string            `json:"format,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ResourceUpdateRequest is the body of PUT /resources/:id. A nil Tags leaves
// the tag set untouched; metadata keys are merged.
type ResourceUpdateRequest struct {
	Tags     *[]string         `json:"tags,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Resource is one catalog entry on the wire.
type Resource struct {
	ID           string            `json:"id"`
	Content      string            `json:"content"`
	Type         string            `json:"type,omitempty"`
	Title        string            `json:"title,omitempty"`
	Name         string            `json:"name,omitempty"`
	Description  string            `json:"description,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
	Format       string            `json:"format,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	AccessCount  int64             `json:"access_count"`
	LastAccessed time.Time         `json:"last_accessed,omitempty"`
}

// ResourceListResponse is the body of GET /resources.
type ResourceListResponse struct {
	Resources []Resource `json:"resources"`
}

// ResourceSearchResult is one scored search hit.
type ResourceSearchResult struct {
	Resource
	Score float64 `json:"score"`
}

// ResourceSearchResponse is the body of GET /resources/search.
type ResourceSearchResponse struct {
	Results []ResourceSearchResult `json:"results"`
}

// PayRequest is the body of POST /pay.
type PayRequest struct {
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency,omitempty"`
	Description   string  `json:"description,omitempty"`
	PaymentMethod string  `json:"payment_method,omitempty"`
}

// Transaction is one ledger entry on the wire.
type Transaction struct {
	TransactionID string    `json:"transaction_id"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	Description   string    `json:"description,omitempty"`
	PaymentMethod string    `json:"payment_method,omitempty"`
	Status        string    `json:"status"`
	ReceiptURL    string    `json:"receipt_url"`
	CreatedAt     time.Time `json:"created_at"`
}

// TransactionListResponse is the body of GET /pay.
type TransactionListResponse struct {
	Transactions []Transaction `json:"transactions"`
}

// ModelsResponse is the body of GET /models.
type ModelsResponse struct {
	Models []string `json:"models"`
}

// StatusResponse is a minimal acknowledgement body.
type StatusResponse struct {
	Status string `json:"status"`
}

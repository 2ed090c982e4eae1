// Package memorytool implements the Memory built-in tools (spec §4.5):
// thin wrappers over internal/memory.Manager exposed to the model as
// store/recall/forget tool calls.
package memorytool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rrclaw/rrclaw/internal/security"
	"github.com/rrclaw/rrclaw/pkg/models"
)

// Store is the narrow memory dependency these tools need.
type Store interface {
	Store(ctx context.Context, key, content, category string) error
	Recall(ctx context.Context, query string, limit int) ([]models.MemoryEntry, error)
	Get(ctx context.Context, key string) (*models.MemoryEntry, bool, error)
	Forget(ctx context.Context, key string) error
}

// StoreTool inserts or replaces a memory entry by key.
type StoreTool struct{ mem Store }

// NewStore creates the memory_store tool.
func NewStore(mem Store) *StoreTool { return &StoreTool{mem: mem} }

func (t *StoreTool) Name() string        { return "memory_store" }
func (t *StoreTool) Description() string { return "Save a piece of information to long-term memory." }
func (t *StoreTool) ConfirmationRequired() bool { return false }
func (t *StoreTool) ParametersSchema() []byte {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"key":      map[string]any{"type": "string"},
			"content":  map[string]any{"type": "string"},
			"category": map[string]any{"type": "string"},
		},
		"required": []string{"key", "content"},
	}
	b, _ := json.Marshal(schema)
	return b
}

type storeArgs struct {
	Key      string `json:"key"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

func (t *StoreTool) PreValidate(args []byte, policy *security.Policy) (string, bool) {
	var in storeArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return fmt.Sprintf("invalid arguments: %v", err), false
	}
	if strings.TrimSpace(in.Key) == "" {
		return "key is required", false
	}
	return "", true
}

func (t *StoreTool) Execute(ctx context.Context, args []byte, policy *security.Policy) (*models.ToolResult, error) {
	var in storeArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return fail(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if err := t.mem.Store(ctx, in.Key, in.Content, in.Category); err != nil {
		return fail(fmt.Sprintf("store: %v", err)), nil
	}
	return &models.ToolResult{Success: true, Output: fmt.Sprintf("stored %q", in.Key)}, nil
}

// RecallTool searches memory via BM25 ranking.
type RecallTool struct{ mem Store }

// NewRecall creates the memory_recall tool.
func NewRecall(mem Store) *RecallTool { return &RecallTool{mem: mem} }

func (t *RecallTool) Name() string        { return "memory_recall" }
func (t *RecallTool) Description() string { return "Search long-term memory for relevant entries." }
func (t *RecallTool) ConfirmationRequired() bool { return false }
func (t *RecallTool) ParametersSchema() []byte {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string"},
			"limit": map[string]any{"type": "integer", "minimum": 1},
		},
		"required": []string{"query"},
	}
	b, _ := json.Marshal(schema)
	return b
}

type recallArgs struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (t *RecallTool) PreValidate(args []byte, policy *security.Policy) (string, bool) {
	var in recallArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return fmt.Sprintf("invalid arguments: %v", err), false
	}
	if strings.TrimSpace(in.Query) == "" {
		return "query is required", false
	}
	return "", true
}

func (t *RecallTool) Execute(ctx context.Context, args []byte, policy *security.Policy) (*models.ToolResult, error) {
	var in recallArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return fail(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	limit := in.Limit
	if limit <= 0 {
		limit = 5
	}
	entries, err := t.mem.Recall(ctx, in.Query, limit)
	if err != nil {
		return fail(fmt.Sprintf("recall: %v", err)), nil
	}
	payload, _ := json.MarshalIndent(entries, "", "  ")
	return &models.ToolResult{Success: true, Output: string(payload)}, nil
}

// ForgetTool deletes a memory entry by key.
type ForgetTool struct{ mem Store }

// NewForget creates the memory_forget tool.
func NewForget(mem Store) *ForgetTool { return &ForgetTool{mem: mem} }

func (t *ForgetTool) Name() string        { return "memory_forget" }
func (t *ForgetTool) Description() string { return "Delete a memory entry by key." }
func (t *ForgetTool) ConfirmationRequired() bool { return true }
func (t *ForgetTool) ParametersSchema() []byte {
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"key": map[string]any{"type": "string"}},
		"required":   []string{"key"},
	}
	b, _ := json.Marshal(schema)
	return b
}

type forgetArgs struct {
	Key string `json:"key"`
}

func (t *ForgetTool) PreValidate(args []byte, policy *security.Policy) (string, bool) {
	if !policy.AllowsExecution() {
		return "memory deletion is disabled in read-only mode", false
	}
	var in forgetArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return fmt.Sprintf("invalid arguments: %v", err), false
	}
	if strings.TrimSpace(in.Key) == "" {
		return "key is required", false
	}
	return "", true
}

func (t *ForgetTool) Execute(ctx context.Context, args []byte, policy *security.Policy) (*models.ToolResult, error) {
	var in forgetArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return fail(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if err := t.mem.Forget(ctx, in.Key); err != nil {
		return fail(fmt.Sprintf("forget: %v", err)), nil
	}
	return &models.ToolResult{Success: true, Output: fmt.Sprintf("forgot %q", in.Key)}, nil
}

func fail(msg string) *models.ToolResult {
	return &models.ToolResult{Success: false, Error: msg}
}

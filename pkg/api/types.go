package api

import (
	"encoding/json"
	"time"

	"github.com/platinummonkey/protoguard/pkg/audit"
	"github.com/platinummonkey/protoguard/pkg/schema"
	"github.com/platinummonkey/protoguard/pkg/validate"
)

// ValidationResponse is returned by the validate and check endpoints.
type ValidationResponse struct {
	Valid      bool                `json:"valid"`
	Message    string              `json:"message"`
	Mode       string              `json:"mode"`
	Violations validate.Violations `json:"violations"`
}

// CheckRequest validates one instance against ad-hoc sources and rules.
type CheckRequest struct {
	// Sources maps import paths to .proto contents.
	Sources map[string]string `json:"sources"`
	// Manifest is a YAML rules manifest. Its proto section is ignored.
	Manifest string          `json:"manifest"`
	Message  string          `json:"message"`
	Instance json.RawMessage `json:"instance"`
	Mode     string          `json:"mode,omitempty"`
}

// MessageInfo describes one registered message type.
type MessageInfo struct {
	Name        string   `json:"name"`
	Fields      []string `json:"fields,omitempty"`
	Constrained int      `json:"constrained_fields"`
	Constraints int      `json:"constraints"`
}

// MessagesResponse lists registered message types.
type MessagesResponse struct {
	Messages []MessageInfo `json:"messages"`
	Count    int           `json:"count"`
}

// HealthResponse is returned by /healthz.
type HealthResponse struct {
	Status     string             `json:"status"`
	Version    string             `json:"version,omitempty"`
	Validators int                `json:"validators"`
	Uptime     string             `json:"uptime"`
	Cache      *schema.CacheStats `json:"schema_cache,omitempty"`
	CheckedAt  time.Time          `json:"checked_at"`
}

// AuditResponse lists recorded validation events, newest first.
type AuditResponse struct {
	Events []*audit.Event `json:"events"`
	Count  int            `json:"count"`
}

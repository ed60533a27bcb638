package reload

import (
	"context"
	"sync/atomic"

	"google.golang.org/protobuf/proto"

	"github.com/platinummonkey/protoguard/pkg/schema"
	"github.com/platinummonkey/protoguard/pkg/validate"
)

// Holder publishes the active snapshot. Readers never block; a reload
// replaces the whole snapshot at once, so a validation always sees one
// consistent schema and registry.
type Holder struct {
	current atomic.Pointer[Snapshot]
}

// NewHolder creates a holder serving s.
func NewHolder(s *Snapshot) *Holder {
	h := &Holder{}
	h.current.Store(s)
	return h
}

// Load returns the active snapshot.
func (h *Holder) Load() *Snapshot {
	return h.current.Load()
}

// Store replaces the active snapshot.
func (h *Holder) Store(s *Snapshot) {
	h.current.Store(s)
}

// Schema returns the active schema.
func (h *Holder) Schema() *schema.Schema {
	return h.Load().Schema
}

// Engine returns the active engine.
func (h *Holder) Engine() *validate.Engine {
	return h.Load().Engine
}

// Validate validates msg against the active snapshot.
func (h *Holder) Validate(ctx context.Context, msg proto.Message, mode validate.Mode) (validate.Violations, error) {
	return h.Load().Validator.Validate(ctx, msg, mode)
}

package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/platinummonkey/protoguard/pkg/audit"
	"github.com/platinummonkey/protoguard/pkg/httputil"
	"github.com/platinummonkey/protoguard/pkg/observability"
	"github.com/platinummonkey/protoguard/pkg/rules"
	"github.com/platinummonkey/protoguard/pkg/schema"
	"github.com/platinummonkey/protoguard/pkg/validate"
)

// listMessages handles GET /v1/messages
func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	reg := s.cfg.Backend.Load().Engine.Registry()

	resp := MessagesResponse{Messages: []MessageInfo{}}
	for _, name := range reg.Names() {
		v, _ := reg.Lookup(name)
		resp.Messages = append(resp.Messages, describe(name, v, false))
	}
	resp.Count = len(resp.Messages)

	httputil.WriteSuccess(w, resp)
}

// getMessage handles GET /v1/messages/{message}
func (s *Server) getMessage(w http.ResponseWriter, r *http.Request) {
	name, ok := httputil.ParsePathStringOrError(w, r, "message")
	if !ok {
		return
	}

	v, found := s.cfg.Backend.Load().Engine.Registry().Lookup(protoreflect.FullName(name))
	if !found {
		httputil.WriteNotFoundError(w, fmt.Sprintf("no validator registered for %s", name))
		return
	}
	httputil.WriteSuccess(w, describe(protoreflect.FullName(name), v, true))
}

func describe(name protoreflect.FullName, v validate.Validator, withFields bool) MessageInfo {
	info := MessageInfo{Name: string(name)}
	rv, ok := v.(*validate.RuleValidator)
	if !ok {
		return info
	}

	info.Constrained = rv.NumFields()
	info.Constraints = rv.NumConstraints()
	if withFields {
		fields := rv.Descriptor().Fields()
		for i := 0; i < fields.Len(); i++ {
			info.Fields = append(info.Fields, string(fields.Get(i).Name()))
		}
	}
	return info
}

// validateMessage handles POST /v1/validate/{message}?mode=
func (s *Server) validateMessage(w http.ResponseWriter, r *http.Request) {
	name, ok := httputil.ParsePathStringOrError(w, r, "message")
	if !ok {
		return
	}

	snap := s.cfg.Backend.Load()
	mode, err := parseMode(httputil.ParseQueryString(r, "mode", ""), snap.Engine.Mode())
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	body, err := httputil.ReadBody(w, r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	msg, err := snap.Schema.UnmarshalJSON(protoreflect.FullName(name), body)
	if err != nil {
		writeDecodeError(w, err)
		return
	}

	violations, err := snap.Validator.Validate(r.Context(), msg, mode)
	s.record(r, "/v1/validate/{message}", name, mode, violations, err)
	s.writeResult(w, r, name, mode, violations, err, http.StatusInternalServerError)
}

// check handles POST /v1/check
func (s *Server) check(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.Sources) == 0 {
		httputil.WriteBadRequest(w, "sources is required")
		return
	}
	if !httputil.RequireNonEmpty(w, req.Message, "message") {
		return
	}
	if len(req.Instance) == 0 {
		httputil.WriteBadRequest(w, "instance is required")
		return
	}

	compiled, err := s.cfg.Cache.Compile(r.Context(), req.Sources)
	if err != nil {
		httputil.WriteBadRequest(w, fmt.Sprintf("failed to compile sources: %v", err))
		return
	}

	manifest, err := rules.Parse([]byte(req.Manifest))
	if err != nil {
		httputil.WriteBadRequest(w, fmt.Sprintf("invalid manifest: %v", err))
		return
	}
	reg, err := rules.Build(compiled, manifest, observability.FromContext(r.Context()))
	if err != nil {
		httputil.WriteBadRequest(w, fmt.Sprintf("invalid rules: %v", err))
		return
	}

	defaultMode, err := validate.ParseMode(manifest.Defaults.Mode)
	if err != nil {
		httputil.WriteBadRequest(w, fmt.Sprintf("invalid manifest: %v", err))
		return
	}
	mode, err := parseMode(req.Mode, defaultMode)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	msg, err := compiled.UnmarshalJSON(protoreflect.FullName(req.Message), req.Instance)
	if err != nil {
		writeDecodeError(w, err)
		return
	}

	// Ad-hoc types stay out of the prometheus series; tracing still applies.
	inst, err := observability.NewInstrumented(validate.New(reg), nil)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	violations, err := inst.Validate(r.Context(), msg, mode)
	s.record(r, "/v1/check", req.Message, mode, violations, err)

	// The caller owns these rules, so a configuration error is their input error.
	s.writeResult(w, r, req.Message, mode, violations, err, http.StatusBadRequest)
}

// cacheStats handles GET /v1/check/cache
func (s *Server) cacheStats(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, s.cfg.Cache.Stats())
}

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

// listAudit handles GET /v1/audit?message=&outcome=&since=&limit=
func (s *Server) listAudit(w http.ResponseWriter, r *http.Request) {
	filter := audit.Filter{
		Message: httputil.ParseQueryString(r, "message", ""),
		Outcome: httputil.ParseQueryString(r, "outcome", ""),
	}

	switch filter.Outcome {
	case "", observability.OutcomeValid, observability.OutcomeInvalid, observability.OutcomeError:
	default:
		httputil.WriteBadRequest(w, fmt.Sprintf("invalid outcome: %s", filter.Outcome))
		return
	}

	if since := httputil.ParseQueryString(r, "since", ""); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			httputil.WriteBadRequest(w, fmt.Sprintf("invalid since: %s (must be RFC3339)", since))
			return
		}
		filter.Since = t
	}

	limit, err := httputil.ParseQueryInt(r, "limit", defaultAuditLimit)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if limit <= 0 || limit > maxAuditLimit {
		limit = maxAuditLimit
	}
	filter.Limit = limit

	events, err := s.cfg.AuditStore.Query(r.Context(), filter)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if events == nil {
		events = []*audit.Event{}
	}
	httputil.WriteSuccess(w, AuditResponse{Events: events, Count: len(events)})
}

func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, name string, mode validate.Mode, violations validate.Violations, err error, configStatus int) {
	if err != nil {
		details := map[string]string{"message": name}
		var ce *validate.ConfigError
		if errors.As(err, &ce) {
			details["type"] = string(ce.Type)
			if ce.Field != "" {
				details["field"] = ce.Field
			}
		}
		observability.FromContext(r.Context()).WithError(err).WithField("message", name).Error("Validation aborted")
		httputil.WriteDetailedError(w, configStatus, err, details)
		return
	}

	if violations == nil {
		violations = validate.Violations{}
	}
	resp := ValidationResponse{
		Valid:      len(violations) == 0,
		Message:    name,
		Mode:       mode.String(),
		Violations: violations,
	}

	status := http.StatusOK
	if !resp.Valid {
		status = http.StatusUnprocessableEntity
	}
	httputil.WriteJSON(w, status, resp)
}

func (s *Server) record(r *http.Request, route, name string, mode validate.Mode, violations validate.Violations, err error) {
	if s.cfg.Recorder == nil {
		return
	}
	ctx := r.Context()
	s.cfg.Recorder.Record(ctx, audit.NewEvent(ctx, audit.SourceHTTP, route, name, mode, violations, err))
}

func parseMode(raw string, fallback validate.Mode) (validate.Mode, error) {
	if raw == "" {
		return fallback, nil
	}
	return validate.ParseMode(raw)
}

func writeDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, schema.ErrMessageNotFound) {
		httputil.WriteNotFoundError(w, err.Error())
		return
	}
	httputil.WriteBadRequest(w, err.Error())
}

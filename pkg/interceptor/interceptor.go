package interceptor

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"

	"github.com/platinummonkey/protoguard/pkg/audit"
	"github.com/platinummonkey/protoguard/pkg/observability"
	"github.com/platinummonkey/protoguard/pkg/validate"
)

// ModeHeader lets a caller override the validation mode per request.
const ModeHeader = "x-protoguard-mode"

// InfrastructureMethods are the method prefixes of the services a server
// hosts next to its own: health checks and reflection. Their request types
// never appear in a rules manifest.
var InfrastructureMethods = []string{
	"/grpc.health.v1.",
	"/grpc.reflection.",
}

// Validator is what the interceptors call. *observability.Instrumented and
// *reload.Holder satisfy it.
type Validator interface {
	Validate(ctx context.Context, msg proto.Message, mode validate.Mode) (validate.Violations, error)
	Engine() *validate.Engine
}

type options struct {
	mode     *validate.Mode
	strict   bool
	logger   logrus.FieldLogger
	recorder *audit.Recorder
	skip     []string
}

// Option configures the interceptors.
type Option func(*options)

// WithMode overrides the engine's default mode.
func WithMode(m validate.Mode) Option {
	return func(o *options) { o.mode = &m }
}

// WithStrict rejects messages whose type has no registered validator.
func WithStrict(strict bool) Option {
	return func(o *options) { o.strict = strict }
}

// WithLogger sets the logger used for configuration errors.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRecorder sends every validation outcome to an audit recorder.
func WithRecorder(r *audit.Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithSkipMethods leaves calls whose full method starts with one of
// prefixes unvalidated, strict mode included.
func WithSkipMethods(prefixes ...string) Option {
	return func(o *options) { o.skip = append(o.skip, prefixes...) }
}

func newOptions(opts []Option) *options {
	o := &options{logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// UnaryServerInterceptor validates every inbound request before the handler
// runs.
func UnaryServerInterceptor(v Validator, opts ...Option) grpc.UnaryServerInterceptor {
	o := newOptions(opts)
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if err := o.check(ctx, v, req, info.FullMethod); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor validates every message received on the stream.
func StreamServerInterceptor(v Validator, opts ...Option) grpc.StreamServerInterceptor {
	o := newOptions(opts)
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		return handler(srv, &validatingStream{ServerStream: ss, validator: v, opts: o, method: info.FullMethod})
	}
}

type validatingStream struct {
	grpc.ServerStream
	validator Validator
	opts      *options
	method    string
}

func (s *validatingStream) RecvMsg(m interface{}) error {
	if err := s.ServerStream.RecvMsg(m); err != nil {
		return err
	}
	return s.opts.check(s.Context(), s.validator, m, s.method)
}

func (o *options) skipped(method string) bool {
	for _, prefix := range o.skip {
		if strings.HasPrefix(method, prefix) {
			return true
		}
	}
	return false
}

func (o *options) check(ctx context.Context, v Validator, req interface{}, method string) error {
	if o.skipped(method) {
		return nil
	}

	msg, ok := req.(proto.Message)
	if !ok {
		if o.strict {
			return status.Errorf(codes.Internal, "request of type %T is not a protobuf message", req)
		}
		return nil
	}

	name := msg.ProtoReflect().Descriptor().FullName()
	if _, found := v.Engine().Registry().Lookup(name); !found {
		if o.strict {
			o.logger.WithFields(logrus.Fields{"method": method, "message": name}).Error("No validator registered")
			return status.Errorf(codes.Internal, "no validator registered for %s", name)
		}
		return nil
	}

	mode, err := o.modeFor(ctx, v)
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}

	violations, err := v.Validate(ctx, msg, mode)
	if o.recorder != nil {
		o.recorder.Record(ctx, audit.NewEvent(ctx, audit.SourceGRPC, method, string(name), mode, violations, err))
	}

	if err != nil {
		observability.WithTraceContext(ctx, o.logger).WithError(err).WithFields(logrus.Fields{
			"method":  method,
			"message": name,
		}).Error("Validation aborted")
		if errors.Is(err, validate.ErrNilMessage) {
			return status.Error(codes.InvalidArgument, err.Error())
		}
		return status.Error(codes.Internal, "request validation is misconfigured")
	}
	if len(violations) > 0 {
		return ViolationsStatus(violations).Err()
	}
	return nil
}

func (o *options) modeFor(ctx context.Context, v Validator) (validate.Mode, error) {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(ModeHeader); len(values) > 0 {
			return validate.ParseMode(values[0])
		}
	}
	if o.mode != nil {
		return *o.mode, nil
	}
	return v.Engine().Mode(), nil
}

// ViolationsStatus converts violations into an InvalidArgument status with a
// BadRequest detail listing each field.
func ViolationsStatus(violations validate.Violations) *status.Status {
	st := status.New(codes.InvalidArgument, violations.Error())

	br := &errdetails.BadRequest{}
	for _, v := range violations {
		br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{
			Field:       v.Field,
			Description: v.Message,
			Reason:      string(v.Constraint),
		})
	}

	detailed, err := st.WithDetails(br)
	if err != nil {
		return st
	}
	return detailed
}

// FromStatus extracts violations carried in a BadRequest detail. It returns
// nil when err carries none.
func FromStatus(err error) validate.Violations {
	st, ok := status.FromError(err)
	if !ok {
		return nil
	}

	var violations validate.Violations
	for _, detail := range st.Details() {
		br, ok := detail.(*errdetails.BadRequest)
		if !ok {
			continue
		}
		for _, fv := range br.GetFieldViolations() {
			violations = append(violations, validate.Violation{
				Field:      fv.GetField(),
				Constraint: validate.ConstraintKind(fv.GetReason()),
				Message:    fv.GetDescription(),
			})
		}
	}
	return violations
}

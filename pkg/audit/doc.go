// Package audit records validation outcomes for later inspection.
//
// Sinks implement Logger. DBLogger writes to PostgreSQL or SQLite,
// FileLogger writes rotating JSON-lines files and MultiLogger fans out.
// Transports hold a Recorder, which by default keeps only rejected
// validations and never lets a sink failure affect the request.
//
//	sink, err := audit.Open(audit.DialectPostgres, dsn)
//	recorder := audit.NewRecorder(sink, logger, false)
//	recorder.Record(ctx, audit.NewEvent(ctx, audit.SourceHTTP, route, name, mode, violations, err))
package audit

// Package audit writes an audit trail of executed statements to slog.
// Parameter values are never logged; a SHA-256 digest of them is.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/vkoudela/koldy/internal/core"
)

// Level selects which statements are audited.
type Level int

const (
	// None disables the audit trail.
	None Level = iota
	// Writes audits INSERT, UPDATE and DELETE.
	Writes
	// All audits every statement.
	All
)

// Auditor logs one "audit_event" record per audited statement. Successful
// statements are logged at Info, failures at Warn.
type Auditor struct {
	logger *slog.Logger
	level  Level
}

// New returns an auditor writing to logger.
func New(logger *slog.Logger, level Level) *Auditor {
	return &Auditor{logger: logger, level: level}
}

// Hook returns the auditor as an adapter query hook.
//
//	reg := core.NewRegistry(cfg, core.WithQueryHook(audit.New(l, audit.Writes).Hook()))
func (a *Auditor) Hook() core.QueryHook {
	return a.Record
}

// Record audits one executed statement.
func (a *Auditor) Record(ctx context.Context, e core.QueryEvent) {
	if !a.shouldLog(e.Operation) {
		return
	}

	logf := a.logger.InfoContext
	errMsg := ""
	if e.Error != nil {
		logf = a.logger.WarnContext
		errMsg = e.Error.Error()
	}

	logf(ctx, "audit_event",
		"connection", e.Connection,
		"operation", e.Operation,
		"table", TableName(e.SQL),
		"rows_affected", e.RowsAffected,
		"sql", e.SQL,
		"params_hash", hashArgs(e.Args),
		"user", User(ctx),
		"client_ip", ClientIP(ctx),
		"request_id", RequestID(ctx),
		"in_transaction", e.InTransaction,
		"success", e.Error == nil,
		"error", errMsg,
		"duration_ms", e.Duration.Milliseconds(),
	)
}

func (a *Auditor) shouldLog(op string) bool {
	if a == nil || a.logger == nil {
		return false
	}
	switch a.level {
	case Writes:
		return op == "INSERT" || op == "UPDATE" || op == "DELETE"
	case All:
		return true
	}
	return false
}

func hashArgs(args []interface{}) string {
	if len(args) == 0 {
		return ""
	}
	h := sha256.New()
	for _, arg := range args {
		_, _ = fmt.Fprintf(h, "%T:%v;", arg, arg)
	}
	return hex.EncodeToString(h.Sum(nil))
}

var (
	writeTableRegex = regexp.MustCompile(`(?i)^\s*(?:INSERT\s+INTO|UPDATE|DELETE\s+FROM)\s+([A-Za-z_][A-Za-z0-9_.]*)`)
	fromTableRegex  = regexp.MustCompile(`(?i)\bFROM\s+(\(|[A-Za-z_][A-Za-z0-9_.]*)`)
)

// TableName returns the first table a statement reads or writes, or "" when
// it cannot tell. A SELECT from a derived table yields "".
func TableName(sql string) string {
	if m := writeTableRegex.FindStringSubmatch(sql); m != nil {
		return strings.ToLower(m[1])
	}
	if !strings.EqualFold(firstWord(sql), "SELECT") {
		return ""
	}
	m := fromTableRegex.FindStringSubmatch(sql)
	if m == nil || m[1] == "(" {
		return ""
	}
	return strings.ToLower(m[1])
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

type contextKey string

const (
	userKey      contextKey = "koldy:user"
	clientIPKey  contextKey = "koldy:client_ip"
	requestIDKey contextKey = "koldy:request_id"
)

// WithUser attaches the acting user to ctx.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// WithClientIP attaches the client address to ctx.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// WithRequestID attaches a request identifier to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// User returns the user attached to ctx, or "".
func User(ctx context.Context) string {
	v, _ := ctx.Value(userKey).(string)
	return v
}

// ClientIP returns the client address attached to ctx, or "".
func ClientIP(ctx context.Context) string {
	v, _ := ctx.Value(clientIPKey).(string)
	return v
}

// RequestID returns the request identifier attached to ctx, or "".
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

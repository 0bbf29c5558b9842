// Package koldy is a SQL query builder and lightweight active-record layer
// for MySQL, PostgreSQL and SQLite. Connections are configured by name, each
// with an ordered list of backups tried when the primary is unreachable.
//
//	reg, err := koldy.Open("config/database.yaml", ".env")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer reg.Close()
//
//	db, _ := reg.Default()
//	rows, err := db.Select().
//		From("users", "u", "id", "name").
//		Where("u.status", "active").
//		OrderBy("name", "ASC").
//		Fetch(ctx)
package koldy

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/vkoudela/koldy/internal/audit"
	"github.com/vkoudela/koldy/internal/config"
	"github.com/vkoudela/koldy/internal/core"
	"github.com/vkoudela/koldy/internal/logger"
	"github.com/vkoudela/koldy/internal/tracer"
)

type (
	// Config is a set of named connections.
	Config = config.Config
	// Connection describes one database and its backups.
	Connection = config.Connection

	// Registry resolves connection names to adapters.
	Registry = core.Registry
	// Adapter executes statements on one named connection.
	Adapter = core.Adapter
	// Option configures adapters.
	Option = core.Option
	// Result is the outcome of a statement.
	Result = core.Result
	// Params holds named :param bindings.
	Params = core.Params
	// Row is one result row.
	Row = core.Row

	// Expression is raw SQL that is never bound or escaped.
	Expression = core.Expression
	// Where is a reusable condition list.
	Where = core.Where
	// QueryBuilder builds SELECT statements.
	QueryBuilder = core.QueryBuilder
	// ResultSet is a paginated SELECT with a matching count.
	ResultSet = core.ResultSet
	// Insert builds INSERT statements.
	Insert = core.Insert
	// Update builds UPDATE statements.
	Update = core.Update
	// Delete builds DELETE statements.
	Delete = core.Delete

	// Model maps a table to records.
	Model = core.Model
	// ModelOption configures a Model.
	ModelOption = core.ModelOption
	// Record is one row with change tracking.
	Record = core.Record
	// Condition selects rows for Model operations.
	Condition = core.Condition
	// Match is an AND of column equalities.
	Match = core.Match

	// QueryEvent is passed to a QueryHook after each statement.
	QueryEvent = core.QueryEvent
	// QueryHook observes executed statements.
	QueryHook = core.QueryHook

	// ConnectionError reports that no configured host could be reached.
	ConnectionError = core.ConnectionError
	// StatementError reports a failed statement.
	StatementError = core.StatementError

	// Logger is the logging interface used by adapters.
	Logger = logger.Logger
)

// Re-exported constructors and options.
var (
	LoadConfig  = config.Load
	ParseConfig = config.Parse

	NewRegistry = core.NewRegistry
	NewAdapter  = core.NewAdapter
	NewModel    = core.NewModel
	NewWhere    = core.NewWhere
	NewExp      = core.NewExp
	Interpolate = core.Interpolate

	WithLogger            = core.WithLogger
	WithSensitiveFields   = core.WithSensitiveFields
	WithQueryHook         = core.WithQueryHook
	WithStmtCacheCapacity = core.WithStmtCacheCapacity

	WithPrimaryKey       = core.WithPrimaryKey
	WithoutAutoIncrement = core.WithoutAutoIncrement
	WithNeverUpdate      = core.WithNeverUpdate
	WithConnection       = core.WithConnection

	ByKey = core.ByKey
	By    = core.By

	// AllRows lets Model.Update and Model.Delete touch every row.
	AllRows = core.AllRows
	// Null is the SQL NULL literal.
	Null = core.Null

	// ReplaceLevel names the notice level "NOTICE" in slog handler output.
	ReplaceLevel = logger.ReplaceLevel
)

// LevelNotice is the slog level of expected backup fallbacks.
const LevelNotice = logger.LevelNotice

// Errors.
var (
	ErrConnection          = core.ErrConnection
	ErrStatement           = core.ErrStatement
	ErrMissingFrom         = core.ErrMissingFrom
	ErrNoAssignments       = core.ErrNoAssignments
	ErrEmptyInsert         = core.ErrEmptyInsert
	ErrUnknownConnection   = core.ErrUnknownConnection
	ErrNoDefaultConnection = core.ErrNoDefaultConnection
	ErrUnconditionalWrite  = core.ErrUnconditionalWrite
	ErrFieldNotFound       = core.ErrFieldNotFound
	ErrMissingKey          = core.ErrMissingKey
	ErrNoTransaction       = core.ErrNoTransaction
	ErrTransactionOpen     = core.ErrTransactionOpen
)

// Open loads the YAML configuration at path, after the optional .env files,
// and returns a registry for it. Nothing connects until first use.
func Open(path string, envFiles ...string) (*Registry, error) {
	cfg, err := config.Load(path, envFiles...)
	if err != nil {
		return nil, err
	}
	return core.NewRegistry(cfg), nil
}

// WithSlog logs through l. Fallbacks to a backup connection are logged at
// logger.LevelNotice.
func WithSlog(l *slog.Logger) Option {
	return core.WithLogger(logger.NewSlogAdapter(l))
}

// WithTracer emits one OpenTelemetry span per statement.
func WithTracer(t trace.Tracer) Option {
	return core.WithTracer(tracer.NewOtelTracer(t))
}

// WithAudit writes an audit_event record to l for every statement at or
// above level. It replaces any query hook set earlier in the option list.
func WithAudit(l *slog.Logger, level audit.Level) Option {
	return core.WithQueryHook(audit.New(l, level).Hook())
}

// Audit levels for WithAudit.
const (
	AuditWrites = audit.Writes
	AuditAll    = audit.All
)

// Audit context helpers.
var (
	WithAuditUser      = audit.WithUser
	WithAuditClientIP  = audit.WithClientIP
	WithAuditRequestID = audit.WithRequestID
)

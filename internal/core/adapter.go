package core

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vkoudela/koldy/internal/cache"
	"github.com/vkoudela/koldy/internal/config"
	"github.com/vkoudela/koldy/internal/dialects"
	"github.com/vkoudela/koldy/internal/drivers"
	"github.com/vkoudela/koldy/internal/logger"
	"github.com/vkoudela/koldy/internal/tracer"
)

// Opener opens and verifies one connection. drivers.Open is the default.
type Opener func(ctx context.Context, conn config.Connection) (*sql.DB, error)

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithSensitiveFields replaces the binding names masked in logs and traces.
func WithSensitiveFields(fields ...string) Option {
	return func(a *Adapter) {
		a.sanitizer = logger.NewSanitizer(fields)
	}
}

// WithTracer enables one span per statement.
func WithTracer(t tracer.Tracer) Option {
	return func(a *Adapter) {
		if t != nil {
			a.tracer = t
		}
	}
}

// WithQueryHook sets a callback invoked after every statement.
func WithQueryHook(hook QueryHook) Option {
	return func(a *Adapter) {
		a.hook = hook
	}
}

// WithOpener replaces how connections are opened.
func WithOpener(open Opener) Option {
	return func(a *Adapter) {
		if open != nil {
			a.opener = open
		}
	}
}

// WithStmtCacheCapacity sets how many prepared statements are kept.
func WithStmtCacheCapacity(capacity int) Option {
	return func(a *Adapter) {
		a.cacheCapacity = capacity
	}
}

// Result is the outcome of a successful statement. Rows is set for
// statements that return rows (SELECT, WITH, SHOW, or any RETURNING clause);
// RowsAffected for everything else, and it may legitimately be 0.
type Result struct {
	Rows         []Row
	RowsAffected int64
	LastInsertID int64
}

// Adapter owns one logical database connection. It connects lazily on first
// use, falling back through the configured backups in order.
//
// An Adapter is safe for concurrent use. While a transaction is open every
// statement runs inside it.
type Adapter struct {
	name          string
	conf          config.Connection
	dialect       dialects.Dialect
	opener        Opener
	logger        logger.Logger
	sanitizer     *logger.Sanitizer
	tracer        tracer.Tracer
	hook          QueryHook
	cacheCapacity int

	mu            sync.Mutex
	db            *sql.DB
	active        config.Connection
	stmts         *cache.StmtCache
	tx            *sql.Tx
	lastQuery     string
	lastError     string
	lastException error
	lastInsertID  int64
}

// NewAdapter returns an unconnected adapter for conn.
func NewAdapter(name string, conn config.Connection, opts ...Option) (*Adapter, error) {
	d, ok := dialects.Lookup(conn.Type)
	if !ok {
		return nil, fmt.Errorf("connection %q: %w %q", name, ErrUnknownDialect, conn.Type)
	}

	a := &Adapter{
		name:      name,
		conf:      conn,
		dialect:   d,
		opener:    drivers.Open,
		logger:    &logger.NoopLogger{},
		sanitizer: logger.NewSanitizer(nil),
		tracer:    &tracer.NoopTracer{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Name returns the connection name.
func (a *Adapter) Name() string { return a.name }

// Dialect returns the SQL dialect of the connection.
func (a *Adapter) Dialect() dialects.Dialect { return a.dialect }

// Connect opens the connection if it is not open yet. The primary is tried
// first, then each backup once, in order; the first that answers is used.
// When all fail a *ConnectionError is returned and nothing stays open.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connectLocked(ctx)
}

func (a *Adapter) connectLocked(ctx context.Context) error {
	if a.db != nil {
		return nil
	}

	cerr := &ConnectionError{Name: a.name}

	db, err := a.opener(ctx, a.conf)
	if err == nil {
		a.use(db, a.conf)
		return nil
	}
	cerr.Attempts = append(cerr.Attempts, ConnectAttempt{Host: a.conf.Host, Err: err})

	for i, backup := range a.conf.Backups {
		logf := a.logger.Notice
		if backup.LogError {
			logf = a.logger.Error
		}
		logf("connection failed, trying backup",
			"connection", a.name,
			"backup", i+1,
			"host", backup.Host,
			"error", err,
		)

		if backup.WaitBeforeConnect > 0 {
			timer := time.NewTimer(backup.WaitBeforeConnect)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				cerr.Attempts = append(cerr.Attempts, ConnectAttempt{Backup: i + 1, Host: backup.Host, Err: ctx.Err()})
				return a.connectFailed(cerr)
			}
		}

		db, err = a.opener(ctx, backup)
		if err == nil {
			a.logger.Info("connected to backup",
				"connection", a.name,
				"backup", i+1,
				"host", backup.Host,
			)
			a.use(db, backup)
			return nil
		}
		cerr.Attempts = append(cerr.Attempts, ConnectAttempt{Backup: i + 1, Host: backup.Host, Err: err})
	}

	return a.connectFailed(cerr)
}

func (a *Adapter) connectFailed(cerr *ConnectionError) error {
	a.logger.Error("unable to connect",
		"connection", a.name,
		"attempts", len(cerr.Attempts),
		"error", cerr.Attempts[len(cerr.Attempts)-1].Err,
	)
	a.lastError = cerr.Error()
	a.lastException = cerr
	return cerr
}

func (a *Adapter) use(db *sql.DB, conn config.Connection) {
	a.db = db
	a.active = conn
	a.stmts = cache.New(a.cacheCapacity)
}

// Connected reports whether a handle is open.
func (a *Adapter) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.db != nil
}

// ActiveConnection returns the configuration that was connected, which is a
// backup's when the primary failed. ok is false before Connect succeeds.
func (a *Adapter) ActiveConnection() (conn config.Connection, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active, a.db != nil
}

// Ping connects if needed and verifies the connection is alive.
func (a *Adapter) Ping(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.connectLocked(ctx); err != nil {
		return err
	}
	return a.db.PingContext(ctx)
}

// Close rolls back an open transaction and closes the connection. The next
// statement reconnects.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.db == nil {
		return nil
	}
	if a.tx != nil {
		_ = a.tx.Rollback()
		a.tx = nil
	}
	a.stmts.Clear()
	err := a.db.Close()
	a.db = nil
	return err
}

// statement is one unit of work for run.
type statement struct {
	named  string // SQL with :name placeholders, empty for positional input
	params Params
	sql    string // positional SQL sent to the driver
	args   []interface{}
}

// Execute runs sql with named :param bindings. A statement failure returns a
// *StatementError and leaves the connection usable; a connection failure
// returns a *ConnectionError.
func (a *Adapter) Execute(ctx context.Context, sql string, params Params) (*Result, error) {
	positional, args := compile(sql, params, a.dialect)
	return a.run(ctx, statement{named: sql, params: params, sql: positional, args: args})
}

// executeRendered runs a builder. It is rendered twice: with :name keys for
// logs and hooks, and with positional placeholders for the driver.
func (a *Adapter) executeRendered(ctx context.Context, render func(*bindings) (string, error)) (*Result, error) {
	named := newBindings()
	sql, err := render(named)
	if err != nil {
		return nil, err
	}
	pos := positionalBindings(a.dialect)
	positional, err := render(pos)
	if err != nil {
		return nil, err
	}
	return a.run(ctx, statement{named: sql, params: named.params, sql: positional, args: pos.args})
}

// runRendered executes render on a. Without an adapter it still reports
// render errors first, then noAdapter.
func runRendered(ctx context.Context, a *Adapter, render func(*bindings) (string, error), noAdapter error) (*Result, error) {
	if a == nil {
		if _, err := render(newBindings()); err != nil {
			return nil, err
		}
		return nil, noAdapter
	}
	return a.executeRendered(ctx, render)
}

// ExecuteArgs runs sql written with the dialect's positional placeholders.
func (a *Adapter) ExecuteArgs(ctx context.Context, sql string, args ...interface{}) (*Result, error) {
	return a.run(ctx, statement{sql: sql, args: args})
}

func (st statement) debug() string {
	if st.named != "" {
		return Interpolate(st.named, st.params)
	}
	return interpolateArgs(st.sql, st.args)
}

func returnsRows(op, sql string) bool {
	if op == "SELECT" || op == "SHOW" {
		return true
	}
	return strings.Contains(strings.ToUpper(sql), " RETURNING ")
}

func (a *Adapter) run(ctx context.Context, st statement) (*Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.connectLocked(ctx); err != nil {
		return nil, err
	}
	a.lastQuery = st.debug()

	ctx, span := a.tracer.StartSpan(ctx, tracer.SpanName)
	defer span.End()

	op := tracer.DetectOperation(st.sql)
	start := time.Now()
	res, phase, err := a.exec(ctx, st, op)
	elapsed := time.Since(start)

	if err != nil {
		err = a.statementFailed(phase, st, err)
	} else if op == "INSERT" {
		a.lastInsertID = res.LastInsertID
	}

	var affected int64
	var returned int
	if res != nil {
		affected, returned = res.RowsAffected, len(res.Rows)
	}
	maskedParams := a.sanitizer.FormatParams(a.sanitizer.MaskParams(st.params))

	tracer.AddStatementAttributes(span, &tracer.StatementMetadata{
		Connection:    a.name,
		System:        a.dialect.Name(),
		SQL:           st.sql,
		Params:        maskedParams,
		Operation:     op,
		Duration:      elapsed,
		RowsAffected:  affected,
		RowsReturned:  returned,
		InTransaction: a.tx != nil,
		Error:         err,
	})

	if err == nil {
		a.logger.Debug("statement executed",
			"connection", a.name,
			"sql", st.sql,
			"params", maskedParams,
			"duration_ms", elapsed.Milliseconds(),
			"rows_affected", affected,
			"rows_returned", returned,
		)
	}

	if a.hook != nil {
		a.hook(ctx, QueryEvent{
			Connection:    a.name,
			SQL:           st.sql,
			Args:          st.args,
			Params:        st.params,
			Duration:      elapsed,
			RowsAffected:  affected,
			RowsReturned:  returned,
			Operation:     op,
			InTransaction: a.tx != nil,
			Error:         err,
		})
	}

	if err != nil {
		return nil, err
	}
	return res, nil
}

// exec prepares and runs the statement. Outside a transaction prepared
// statements come from the cache; inside one they are prepared on the
// transaction and closed afterwards.
func (a *Adapter) exec(ctx context.Context, st statement, op string) (*Result, string, error) {
	var stmt *sql.Stmt
	var err error
	if a.tx != nil {
		stmt, err = a.tx.PrepareContext(ctx, st.sql)
		if err == nil {
			defer func() { _ = stmt.Close() }()
		}
	} else {
		stmt, err = a.stmts.Prepare(ctx, st.sql, a.db.PrepareContext)
	}
	if err != nil {
		return nil, PhasePrepare, err
	}

	if returnsRows(op, st.sql) {
		rows, err := stmt.QueryContext(ctx, st.args...)
		if err != nil {
			return nil, PhaseExecute, err
		}
		defer func() { _ = rows.Close() }()

		data, columns, err := scanRows(rows)
		if err != nil {
			return nil, PhaseScan, err
		}
		res := &Result{Rows: data}
		if op != "SELECT" && op != "SHOW" {
			// RETURNING: one row per written row, first column is the key.
			res.RowsAffected = int64(len(data))
			if len(data) > 0 && op == "INSERT" {
				res.LastInsertID, _ = toInt64(data[0][columns[0]])
			}
		}
		return res, "", nil
	}

	out, err := stmt.ExecContext(ctx, st.args...)
	if err != nil {
		return nil, PhaseExecute, err
	}
	res := &Result{}
	res.RowsAffected, _ = out.RowsAffected()
	// PostgreSQL reports no insert id here; RETURNING covers it.
	res.LastInsertID, _ = out.LastInsertId()
	return res, "", nil
}

func (a *Adapter) statementFailed(phase string, st statement, cause error) error {
	serr := &StatementError{
		Phase:  phase,
		SQL:    st.sql,
		Params: st.params,
		Code:   drivers.ErrorCode(cause),
		Err:    cause,
	}

	debug := st.sql
	if st.named != "" {
		debug = Interpolate(st.named, a.sanitizer.MaskParams(st.params))
	}
	a.logger.Error("statement "+phase+" failed",
		"connection", a.name,
		"sql", debug,
		"code", serr.Code,
		"error", cause,
	)

	a.lastError = cause.Error()
	a.lastException = serr
	return serr
}

// LastInsertID returns the key generated by the most recent successful
// INSERT on this adapter.
func (a *Adapter) LastInsertID() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastInsertID
}

// LastQuery returns the most recent statement with its bindings inlined.
// It is meant for debugging and must never be executed.
func (a *Adapter) LastQuery() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastQuery
}

// LastError returns the message of the most recent failure, or "".
func (a *Adapter) LastError() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastError
}

// LastException returns the most recent failure, or nil.
func (a *Adapter) LastException() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastException
}

// BeginTransaction starts a transaction. Until Commit or RollBack every
// statement on the adapter runs inside it.
func (a *Adapter) BeginTransaction(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.connectLocked(ctx); err != nil {
		return err
	}
	if a.tx != nil {
		return ErrTransactionOpen
	}
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		a.logger.Warn("begin transaction failed", "connection", a.name, "error", err)
		a.lastError, a.lastException = err.Error(), err
		return fmt.Errorf("begin transaction: %w", err)
	}
	a.tx = tx
	return nil
}

// Commit commits the open transaction.
func (a *Adapter) Commit() error {
	return a.finish("commit", (*sql.Tx).Commit)
}

// RollBack rolls back the open transaction.
func (a *Adapter) RollBack() error {
	return a.finish("rollback", (*sql.Tx).Rollback)
}

func (a *Adapter) finish(what string, fn func(*sql.Tx) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.tx == nil {
		return ErrNoTransaction
	}
	tx := a.tx
	a.tx = nil
	if err := fn(tx); err != nil {
		a.logger.Warn(what+" failed", "connection", a.name, "error", err)
		a.lastError, a.lastException = err.Error(), err
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}

// InTransaction reports whether a transaction is open.
func (a *Adapter) InTransaction() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tx != nil
}

// Transaction runs fn inside a transaction. It commits when fn returns nil
// and rolls back when fn returns an error or panics; the panic is re-raised.
func (a *Adapter) Transaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if err := a.BeginTransaction(ctx); err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = a.RollBack()
			panic(p)
		}
	}()

	if err := fn(ctx); err != nil {
		if rbErr := a.RollBack(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	return a.Commit()
}

// Select returns a SELECT builder on this adapter.
func (a *Adapter) Select() *QueryBuilder { return NewQueryBuilder(a) }

// ResultSet returns a paginating SELECT builder on this adapter.
func (a *Adapter) ResultSet() *ResultSet { return NewResultSet(a) }

// Insert returns an INSERT builder for table.
func (a *Adapter) Insert(table string) *Insert { return NewInsert(a, table) }

// Update returns an UPDATE builder for table.
func (a *Adapter) Update(table string) *Update { return NewUpdate(a, table) }

// Delete returns a DELETE builder for table.
func (a *Adapter) Delete(table string) *Delete { return NewDelete(a, table) }

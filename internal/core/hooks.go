package core

import (
	"context"
	"time"
)

// QueryEvent describes one executed statement. It is passed to the QueryHook
// after every statement, failed ones included.
type QueryEvent struct {
	// Connection is the adapter name.
	Connection string
	// SQL is the positional statement sent to the driver.
	SQL  string
	Args []interface{}
	// Params holds the named bindings when the statement was built with them.
	Params       Params
	Duration     time.Duration
	RowsAffected int64
	RowsReturned int
	// Operation is SELECT, INSERT, UPDATE, DELETE, SHOW or UNKNOWN.
	Operation     string
	InTransaction bool
	Error         error
}

// QueryHook is called after each statement. Use it for metrics or auditing.
//
//	adapter, _ := core.NewAdapter("main", conn,
//	    core.WithQueryHook(func(ctx context.Context, e core.QueryEvent) {
//	        statements.WithLabelValues(e.Operation).Observe(e.Duration.Seconds())
//	    }))
type QueryHook func(ctx context.Context, event QueryEvent)

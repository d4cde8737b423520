package types

import (
	"database/sql"
	"fmt"
	"strings"
)

// ExecutorType is the statement discipline applied inside one session.
type ExecutorType string

const (
	// ExecutorSimple runs every statement on its own.
	ExecutorSimple ExecutorType = "simple"
	// ExecutorReuse prepares each distinct statement once per session and reuses it.
	ExecutorReuse ExecutorType = "reuse"
	// ExecutorBatch queues writes until the session is flushed or committed.
	ExecutorBatch ExecutorType = "batch"
)

// IsolationLevel is the transaction isolation requested for a session that
// does not auto-commit.
type IsolationLevel string

const (
	// IsolationNone leaves the level to the driver default.
	IsolationNone            IsolationLevel = "none"
	IsolationReadUncommitted IsolationLevel = "read-uncommitted"
	IsolationReadCommitted   IsolationLevel = "read-committed"
	IsolationRepeatableRead  IsolationLevel = "repeatable-read"
	IsolationSerializable    IsolationLevel = "serializable"
)

const (
	DefaultExecutor  = ExecutorSimple
	DefaultIsolation = IsolationRepeatableRead
)

func (e ExecutorType) Valid() bool {
	switch e {
	case ExecutorSimple, ExecutorReuse, ExecutorBatch:
		return true
	}
	return false
}

func ParseExecutorType(s string) (ExecutorType, error) {
	e := ExecutorType(strings.ToLower(strings.TrimSpace(s)))
	if !e.Valid() {
		return "", fmt.Errorf("unknown executor type %q", s)
	}
	return e, nil
}

func (l IsolationLevel) Valid() bool {
	switch l {
	case IsolationNone, IsolationReadUncommitted, IsolationReadCommitted, IsolationRepeatableRead, IsolationSerializable:
		return true
	}
	return false
}

// ParseIsolationLevel accepts both "read-committed" and "READ_COMMITTED".
func ParseIsolationLevel(s string) (IsolationLevel, error) {
	l := IsolationLevel(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-"))
	if !l.Valid() {
		return "", fmt.Errorf("unknown isolation level %q", s)
	}
	return l, nil
}

// SQL maps the level onto database/sql.
func (l IsolationLevel) SQL() sql.IsolationLevel {
	switch l {
	case IsolationReadUncommitted:
		return sql.LevelReadUncommitted
	case IsolationReadCommitted:
		return sql.LevelReadCommitted
	case IsolationRepeatableRead:
		return sql.LevelRepeatableRead
	case IsolationSerializable:
		return sql.LevelSerializable
	default:
		return sql.LevelDefault
	}
}

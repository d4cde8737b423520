package rdb

import (
	"bedrock/internal/types"
	"fmt"
)

// Mode is the execution mode of one session, fixed when it is opened.
// Isolation only applies when AutoCommit is false.
type Mode struct {
	Executor   types.ExecutorType
	Isolation  types.IsolationLevel
	AutoCommit bool
}

// DefaultMode is the mode of Client.Session: simple executor, repeatable-read,
// auto-commit.
func DefaultMode() Mode {
	return Mode{Executor: types.DefaultExecutor, Isolation: types.DefaultIsolation, AutoCommit: true}
}

// ExecutorMode runs every statement in auto-commit with the given executor.
func ExecutorMode(e types.ExecutorType) Mode {
	return Mode{Executor: e, Isolation: types.DefaultIsolation, AutoCommit: true}
}

// TransactionalMode disables auto-commit; an explicit isolation level is only
// meaningful inside an explicit transaction.
func TransactionalMode(e types.ExecutorType, l types.IsolationLevel) Mode {
	return Mode{Executor: e, Isolation: l, AutoCommit: false}
}

func (m Mode) normalize() Mode {
	if m.Executor == "" {
		m.Executor = types.DefaultExecutor
	}
	if m.Isolation == "" {
		m.Isolation = types.DefaultIsolation
	}
	return m
}

func (m Mode) validate() error {
	if !m.Executor.Valid() {
		return fmt.Errorf("unknown executor type %q", m.Executor)
	}
	if !m.Isolation.Valid() {
		return fmt.Errorf("unknown isolation level %q", m.Isolation)
	}
	return nil
}

func (m Mode) String() string {
	if m.AutoCommit {
		return fmt.Sprintf("%s/auto-commit", m.Executor)
	}
	return fmt.Sprintf("%s/%s", m.Executor, m.Isolation)
}

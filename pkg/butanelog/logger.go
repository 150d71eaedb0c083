// SPDX-License-Identifier: Apache-2.0

// Package butanelog implements Butane's structured logging: a Logger
// interface with a pterm-backed implementation for CLI use and a no-op
// implementation for library embedding and tests.
package butanelog

import (
	"github.com/pterm/pterm"

	"github.com/butaneorm/butane/pkg/adb"
)

// Logger reports migration lifecycle and per-operation progress. The core
// never requires a Logger be present; callers that don't want output pass
// NewNoopLogger().
type Logger interface {
	LogMigrationStart(name string, operationCount int)
	LogMigrationComplete(name string, operationCount int)
	LogMigrationRollback(name string, operationCount int)
	LogMigrationRollbackComplete(name string, operationCount int)

	LogOperationStart(op adb.Operation)
	LogOperationComplete(op adb.Operation)
	LogOperationRollback(op adb.Operation)

	LogStoreLocked(path string)
	LogStoreUnlocked(path string)

	Info(msg string, args ...any)
}

type ptermLogger struct {
	logger pterm.Logger
}

type noopLogger struct{}

func NewLogger() Logger {
	return &ptermLogger{logger: pterm.DefaultLogger}
}

func NewNoopLogger() Logger {
	return &noopLogger{}
}

func (l *ptermLogger) LogMigrationStart(name string, operationCount int) {
	l.logger.Info("starting migration", l.logger.Args("name", name, "operation_count", operationCount))
}

func (l *ptermLogger) LogMigrationComplete(name string, operationCount int) {
	l.logger.Info("completed migration", l.logger.Args("name", name, "operation_count", operationCount))
}

func (l *ptermLogger) LogMigrationRollback(name string, operationCount int) {
	l.logger.Info("rolling back migration", l.logger.Args("name", name, "operation_count", operationCount))
}

func (l *ptermLogger) LogMigrationRollbackComplete(name string, operationCount int) {
	l.logger.Info("rolled back migration", l.logger.Args("name", name, "operation_count", operationCount))
}

func (l *ptermLogger) LogStoreLocked(path string) {
	l.logger.Info("locked migration store", l.logger.Args("path", path))
}

func (l *ptermLogger) LogStoreUnlocked(path string) {
	l.logger.Info("unlocked migration store", l.logger.Args("path", path))
}

func (l *ptermLogger) LogOperationStart(op adb.Operation) {
	l.logger.Info("starting operation", l.logger.Args(opArgs(op)))
}

func (l *ptermLogger) LogOperationComplete(op adb.Operation) {
	l.logger.Info("completing operation", l.logger.Args(opArgs(op)))
}

func (l *ptermLogger) LogOperationRollback(op adb.Operation) {
	l.logger.Info("rolling back operation", l.logger.Args(opArgs(op)))
}

func (l *ptermLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, l.logger.Args(args))
}

func opArgs(op adb.Operation) []any {
	switch op.Kind {
	case adb.OpAddTable, adb.OpAddTableIfNotExists:
		return []any{"kind", "add_table", "table", op.Table.Name, "columns", columnNames(op.Table)}
	case adb.OpAddTableConstraints:
		return []any{"kind", "add_table_constraints", "table", op.Table.Name}
	case adb.OpRemoveTableConstraints:
		return []any{"kind", "remove_table_constraints", "table", op.Table.Name}
	case adb.OpRemoveTable:
		return []any{"kind", "remove_table", "table", op.TableName}
	case adb.OpAddColumn:
		return []any{"kind", "add_column", "table", op.OnTable, "column", op.Column.Name}
	case adb.OpRemoveColumn:
		return []any{"kind", "remove_column", "table", op.OnTable, "column", op.OldName}
	case adb.OpChangeColumn:
		return []any{"kind", "change_column", "table", op.OnTable, "from", op.OldName, "to", op.Column.Name}
	default:
		return []any{"kind", "unknown"}
	}
}

func columnNames(t *adb.ATable) []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

func (l *noopLogger) LogMigrationStart(name string, operationCount int)            {}
func (l *noopLogger) LogMigrationComplete(name string, operationCount int)         {}
func (l *noopLogger) LogMigrationRollback(name string, operationCount int)         {}
func (l *noopLogger) LogMigrationRollbackComplete(name string, operationCount int) {}
func (l *noopLogger) LogStoreLocked(path string)                                  {}
func (l *noopLogger) LogStoreUnlocked(path string)                                {}
func (l *noopLogger) LogOperationStart(op adb.Operation)                          {}
func (l *noopLogger) LogOperationComplete(op adb.Operation)                       {}
func (l *noopLogger) LogOperationRollback(op adb.Operation)                       {}
func (l *noopLogger) Info(msg string, args ...any)                                {}

// SPDX-License-Identifier: Apache-2.0

package butanelog_test

import (
	"testing"

	"github.com/butaneorm/butane/pkg/adb"
	"github.com/butaneorm/butane/pkg/butanelog"
)

// TestNoopLoggerDoesNotPanic exercises every Logger method against the
// no-op implementation, the way library callers that don't want CLI
// output use it.
func TestNoopLoggerDoesNotPanic(t *testing.T) {
	l := butanelog.NewNoopLogger()

	l.LogMigrationStart("0001_init", 2)
	l.LogMigrationComplete("0001_init", 2)
	l.LogMigrationRollback("0001_init", 2)
	l.LogMigrationRollbackComplete("0001_init", 2)
	l.LogStoreLocked("/tmp/migrations")
	l.LogStoreUnlocked("/tmp/migrations")
	l.LogOperationStart(adb.AddColumn("Foo", adb.AColumn{Name: "bar"}))
	l.LogOperationComplete(adb.AddColumn("Foo", adb.AColumn{Name: "bar"}))
	l.LogOperationRollback(adb.AddColumn("Foo", adb.AColumn{Name: "bar"}))
	l.Info("hello", "k", "v")
}

func TestPtermLoggerDoesNotPanic(t *testing.T) {
	l := butanelog.NewLogger()
	l.LogMigrationStart("0001_init", 1)
	l.LogOperationStart(adb.RemoveColumnOp("Foo", "bar"))
	l.Info("hello")
}

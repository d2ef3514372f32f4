package testlogger

import (
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/qiubz/rethinkdb/common/log"
)

// New returns a Logger that routes output through t.Log so it is shown only
// for failing tests (or with -v).
func New(t testing.TB) log.Logger {
	return log.NewLogger(zaptest.NewLogger(t))
}

package telemetry

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type queryStartKey struct{ hook string }

// onReads times every query, row and raw statement on db and calls after
// once each finishes. The evidence repository only reads, so those are
// the only processors hooked. name must be unique per db.
func onReads(db *gorm.DB, name string, after func(ctx context.Context, tx *gorm.DB, elapsed time.Duration)) error {
	key := queryStartKey{name}
	start := func(tx *gorm.DB) {
		if tx.Statement.Context != nil {
			tx.Statement.Context = context.WithValue(tx.Statement.Context, key, time.Now())
		}
	}
	finish := func(tx *gorm.DB) {
		ctx := tx.Statement.Context
		if ctx == nil {
			return
		}
		if began, ok := ctx.Value(key).(time.Time); ok {
			after(ctx, tx, time.Since(began))
		}
	}

	cb := db.Callback()
	for _, proc := range []struct {
		op     string
		before func(string, func(*gorm.DB)) error
		after  func(string, func(*gorm.DB)) error
	}{
		{"query", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"row", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	} {
		if err := proc.before(name+":start_"+proc.op, start); err != nil {
			return err
		}
		if err := proc.after(name+":finish_"+proc.op, finish); err != nil {
			return err
		}
	}
	return nil
}

package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context carries a request context and, when the caller is inside a transaction,
// the transaction handle repos should use instead of their own pool.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

func Background() Context {
	return Context{Ctx: context.Background()}
}

// DB picks the transaction when set, else fallback, bound to the context.
func (c Context) DB(fallback *gorm.DB) *gorm.DB {
	db := c.Tx
	if db == nil {
		db = fallback
	}
	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return db.WithContext(ctx)
}

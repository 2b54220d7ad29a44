// Package repository implements dao.Engine on Bun.
//
// Store runs every call in its own implicit transaction and never keeps
// instances attached. UnitOfWork wraps one bun.Tx with an identity map:
// loaded instances are tracked, changes to them are flushed before each
// query and at Commit, and versioned rows are written with an optimistic
// version check.
//
//	uow, err := repository.Begin(ctx, db)
//	if err != nil {
//		return err
//	}
//	defer uow.Rollback()
//	items, _ := dao.New[Item](uow, registry)
//	it, _ := items.GetByID(ctx, 7)
//	it.Qty++
//	return uow.Commit(ctx)
//
// Constraint predicates are translated per dialect: case folding uses
// LOWER on both sides, date truncation uses date() on SQLite, DATE() on
// MySQL and CAST AS DATE elsewhere, and NULLS FIRST is emulated on MySQL.
package repository

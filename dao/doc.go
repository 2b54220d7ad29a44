// Package dao is the generic data access facade. A DAO[T] composes the
// query builder, the pagination engine and the batch processor on top of an
// Engine bound to one unit of work.
package dao

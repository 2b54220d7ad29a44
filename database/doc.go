// Package database owns the Bun connection: configuration, driver errors,
// logging, query hooks, health checks and table creation for registered
// entities.
package database

// Package query builds entity queries from attribute constraints and sort
// specifications. Building is pure: a Query carries its rendered form, its
// parameter table and the structured predicates engines translate.
package query

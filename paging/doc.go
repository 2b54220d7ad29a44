// Package paging computes page windows over counted result sets.
package paging

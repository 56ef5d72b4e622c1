// Package repository defines the persistence contract consumed by the
// device engine. The only implementation is the embedded SQLite store in
// the sqlite subpackage; the interface exists so the engine and its tests
// never depend on driver details.
package repository

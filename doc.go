// Package main provides the entry point for the khaos-settings store. It
// ships a CLI for mutating settings with optimistic concurrency, a history
// ledger with rollback, and a service mode that polls the store and serves
// the published snapshot over a Fiber REST API. Persistence is handled by
// gorm against mysql, postgres or sqlite.
package main

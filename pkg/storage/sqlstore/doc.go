// Package sqlstore implements the festival stores on database/sql.
//
// PostgreSQL (lib/pq) is the production backend and SQLite
// (mattn/go-sqlite3) serves development and tests. Both share the same
// queries with $N placeholders; schema differences live in the per-dialect
// goose migrations embedded under migrations/.
//
//	db, err := sqlstore.Open(ctx, storage.Config{Driver: "postgres", URL: dsn, AutoMigrate: true})
//	users := sqlstore.NewUserStore(db, metrics)
//
// Unique violations surface as storage.ErrConflict and missing rows as
// storage.ErrNotFound. UserStore.FindByUsername additionally wraps
// auth.ErrNotFound so it can serve as an auth.CredentialStore.
package sqlstore

// Package marker reads consistency markers from a source database.
//
// A marker is the database's current position in its change history
// (an Oracle SCN, a TiDB TSO, a PostgreSQL WAL byte offset). The SQLSource
// opens one connection per read, runs a single scalar query and closes the
// connection again. Transient failures are retried with bounded
// exponential backoff before the read fails with core.ErrSourceUnavailable.
package marker

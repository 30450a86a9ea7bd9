// Package testdb provides helpers for Postgres integration tests.
//
// Each test runs in its own transaction, which is rolled back when the test
// completes, so tests can run in parallel against one database without
// cleanup. Tests are skipped when no database URL is configured.
//
//	func TestSomething(t *testing.T) {
//	    db := testdb.GetTestDBWithT(t)
//	    testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//	        profiles := postgres.NewPostgresProfileStore(tx, nil)
//	        ...
//	    })
//	}
//
// The database URL is read from DATABASE_URL, then CARELOOP_TEST_DB_URL,
// then CARELOOP_DATABASE_URL. The schema is migrated once per process.
package testdb

// Package ciutil detects CI environments and resolves the environment
// variables shared by the server, the test helpers and CI jobs.
//
// The logger uses it to stamp CI runs with provider metadata and testdb uses
// it to find the integration test database.
package ciutil

// Package api handles incoming HTTP requests, request validation and
// response formatting. It adapts two surfaces to the application services:
// the function gateway used by schedulers, operator tools and the payment
// flow, and the REST endpoints used by signed-in clients.
//
// Every failure is answered with {"success": false, "error", "trace_id"};
// internal errors are mapped to status codes and safe messages by
// MapErrorToStatusCode and GetSafeErrorMessage.
package api

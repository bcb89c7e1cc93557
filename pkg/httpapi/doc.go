// Package httpapi exposes the notification service over a chi router.
//
// The JSON surface covers the notification CRUD operations (list, create,
// get, update, delete), per-notification stats and retry, plus the
// engagement ingestion endpoints: an open-tracking pixel, a click redirect
// and a Postmark bounce webhook.
//
// Every JSON response carries a success flag. Successful responses wrap the
// payload in "data"; failures carry a structured "error" object with a
// machine-readable code. Domain sentinel errors map onto HTTP statuses:
// not-found to 404, state-machine conflicts to 409 and validation failures
// to 422.
package httpapi

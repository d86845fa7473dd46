package query

import "errors"

// ErrNoBackend reports that both retrieval backends failed for one query.
// A single backend failing only degrades the query to the surviving one;
// see Engine.Retrieve. Cancellation and deadline expiry are not wrapped in
// it: they surface as context.Canceled and context.DeadlineExceeded so
// callers can errors.Is them directly.
var ErrNoBackend = errors.New("no retrieval backend available")

// ErrEmptyQuery reports a query that is blank after trimming.
var ErrEmptyQuery = errors.New("query is empty")

package language

import "github.com/vektah/gqlparser/v2/gqlerror"

// Error is the parse and validation error type surfaced to clients.
type Error = gqlerror.Error

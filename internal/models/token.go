package models

import (
	"fmt"
	"sync/atomic"
	"time"
)

// OpToken is the opaque identifier correlating a dispatched operation with
// its asynchronous events. Consumers ignore events whose token does not match
// the operation they are tracking.
type OpToken string

var tokenSeq atomic.Int64

// NewOpToken mints a token for a freshly dispatched operation. kind is a
// short label ("import", "dryrun", "export") kept for log readability.
func NewOpToken(kind string) OpToken {
	return OpToken(fmt.Sprintf("%s-%d-%d", kind, time.Now().UnixNano(), tokenSeq.Add(1)))
}

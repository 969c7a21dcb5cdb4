package assert

import "time"

// timeout is the max time the chan and blocking asserts wait for.
var timeout = 30 * time.Second

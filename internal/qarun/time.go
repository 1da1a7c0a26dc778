package qarun

import "time"

// timeNow is a package-level variable for testability.
// Tests can replace this to control timestamps in assertions.
var timeNow = time.Now

package discoverer

import "time"

// nowFunc is overridden in tests to make discovered_at deterministic.
var nowFunc = time.Now

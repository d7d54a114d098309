package testutil

import "go.uber.org/goleak"

// GoleakOptions is a common list of options to pass to goleak. This is useful
// when there is a background goroutine started by a dependency that we don't
// want to fail on.
var GoleakOptions []goleak.Option = []goleak.Option{
	// httptest servers keep idle connections around after a test returns.
	goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
	// lumberjack never stops its backup cleanup goroutine.
	goleak.IgnoreTopFunction("gopkg.in/natefinch/lumberjack%2ev2.(*Logger).millRun"),
}

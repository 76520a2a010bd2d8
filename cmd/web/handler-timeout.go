package main

import (
	"net/http"
	"strings"
	"time"
)

const (
	timeoutPage = `<html lang="en">
<head><title>Timeout</title></head>
<body>
<h1>The line went dead</h1>
<p>The precinct took too long to answer.</p>
<div>
    <a href="/game">Back to the case</a>
</div>
</body>
</html>
`
	timeoutJSON = `{"success":false,"error":"timeout"}`
)

// timeoutHandler responds with 503 Service Unavailable when h misses the deadline. API clients get a JSON body.
func timeoutHandler(h http.Handler, requestTimeout time.Duration) http.Handler {
	// A little shorter than the server's write timeout so that there's still time to respond.
	d := requestTimeout - 500*time.Millisecond //nolint:mnd // 500ms
	page := http.TimeoutHandler(h, d, timeoutPage)
	api := http.TimeoutHandler(h, d, timeoutJSON)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			api.ServeHTTP(w, r)
			return
		}
		page.ServeHTTP(w, r)
	})
}

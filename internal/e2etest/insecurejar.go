package e2etest

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"github.com/myrjola/noir/internal/errors"
)

// insecureJar keeps Secure cookies over plain HTTP. The test server listens on localhost without TLS while the
// session and CSRF cookies are always marked Secure.
type insecureJar struct {
	*cookiejar.Jar
}

func newInsecureJar() (http.CookieJar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, "new cookie jar")
	}
	return insecureJar{Jar: jar}, nil
}

func (j insecureJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	relaxed := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		c := *c
		c.Secure = false
		relaxed = append(relaxed, &c)
	}
	j.Jar.SetCookies(u, relaxed)
}

package e2etest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/descope/virtualwebauthn"
	"github.com/justinas/nosurf"
	"github.com/myrjola/noir/internal/errors"
)

type Client struct {
	client        *http.Client
	url           string
	rp            virtualwebauthn.RelyingParty
	authenticator virtualwebauthn.Authenticator
}

// NewClient creates a Webauthn-aware HTTP client.
//
// rpID and rpOrigin should correspond to the Webauthn setup on the server.
func NewClient(url, rpID, rpOrigin string) (*Client, error) {
	jar, err := newInsecureJar()
	if err != nil {
		return nil, errors.Wrap(err, "create unsafe cookie jar")
	}
	return &Client{
		client:        &http.Client{Jar: jar},
		url:           url,
		rp:            virtualwebauthn.RelyingParty{Name: "Noir", ID: rpID, Origin: rpOrigin},
		authenticator: virtualwebauthn.NewAuthenticator(),
	}, nil
}

// WaitForReady calls the specified endpoint until it gets a HTTP 200 Success
// response or until the context is cancelled or the 1-second timeout is reached.
func (c *Client) WaitForReady(ctx context.Context, urlPath string) error {
	timeout := 1 * time.Second
	startTime := time.Now()
	var (
		err  error
		req  *http.Request
		resp *http.Response
	)
	for {
		if req, err = http.NewRequestWithContext(
			ctx,
			http.MethodGet,
			c.url+urlPath,
			nil,
		); err != nil {
			return errors.Wrap(err, "create request")
		}

		if resp, err = c.client.Do(req); err == nil {
			if resp.StatusCode == http.StatusOK {
				if err = resp.Body.Close(); err != nil {
					return errors.Wrap(err, "close response body")
				}
				return nil
			}
			if err = resp.Body.Close(); err != nil {
				return errors.Wrap(err, "close response body")
			}
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "context cancelled")
		default:
			if time.Since(startTime) >= timeout {
				return errors.New("timeout waiting for endpoint to be ready")
			}
			time.Sleep(100 * time.Millisecond) //nolint:mnd // 100ms
		}
	}
}

// Get fetches a URL and returns the response.
func (c *Client) Get(ctx context.Context, urlPath string) (*http.Response, error) {
	var (
		err  error
		req  *http.Request
		resp *http.Response
	)
	if req, err = c.newRequestWithContext(ctx, http.MethodGet, urlPath, nil); err != nil {
		return nil, errors.Wrap(err, "create request with context")
	}
	if resp, err = c.client.Do(req); err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	return resp, nil
}

// GetDoc fetches a URL and returns a goquery document.
func (c *Client) GetDoc(ctx context.Context, urlPath string) (*goquery.Document, error) {
	var (
		err  error
		resp *http.Response
		doc  *goquery.Document
	)
	if resp, err = c.Get(ctx, urlPath); err != nil {
		return nil, errors.Wrap(err, "client get")
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if http.StatusOK != resp.StatusCode {
		return nil, errors.New("unexpected status code", slog.Int("status", resp.StatusCode))
	}
	if doc, err = goquery.NewDocumentFromReader(resp.Body); err != nil {
		return nil, errors.Wrap(err, "create document from reader")
	}
	return doc, nil
}

// newRequestWithContext creates a new HTTP request to the server that respects the given context.
func (c *Client) newRequestWithContext(
	ctx context.Context,
	method, urlPath string,
	body io.Reader,
) (*http.Request, error) {
	var (
		req *http.Request
		err error
	)
	if req, err = http.NewRequest(method, c.url+urlPath, body); err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	return req.WithContext(ctx), nil
}

// ceremony posts one step of a passkey ceremony and returns the response body.
func (c *Client) ceremony(ctx context.Context, urlPath, csrfToken string, body string) ([]byte, error) {
	var (
		req  *http.Request
		resp *http.Response
		err  error
	)
	if req, err = c.newRequestWithContext(ctx, http.MethodPost, urlPath, strings.NewReader(body)); err != nil {
		return nil, errors.Wrap(err, "new request with context")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(nosurf.HeaderName, csrfToken)
	if resp, err = c.client.Do(req); err != nil {
		return nil, errors.Wrap(err, "do request", slog.String("path", urlPath))
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if http.StatusOK != resp.StatusCode {
		return nil, errors.New("unexpected status code",
			slog.String("path", urlPath), slog.Int("status", resp.StatusCode))
	}
	var out []byte
	if out, err = io.ReadAll(resp.Body); err != nil {
		return nil, errors.Wrap(err, "read body", slog.String("path", urlPath))
	}
	return out, nil
}

// Register creates a detective with a new passkey and returns the front page document.
func (c *Client) Register(ctx context.Context) (*goquery.Document, error) {
	const startPath = "/api/registration/start"
	doc, err := c.GetDoc(ctx, "/")
	if err != nil {
		return nil, errors.Wrap(err, "get document")
	}
	var csrfToken string
	if csrfToken, err = c.extractCSRFToken(doc, startPath); err != nil {
		return nil, errors.Wrap(err, "extract CSRF token")
	}

	var body []byte
	if body, err = c.ceremony(ctx, startPath, csrfToken, ""); err != nil {
		return nil, errors.Wrap(err, "start registration")
	}
	var attOpts *virtualwebauthn.AttestationOptions
	if attOpts, err = virtualwebauthn.ParseAttestationOptions(string(body)); err != nil {
		return nil, errors.Wrap(err, "parse attestation options")
	}

	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	attestation := virtualwebauthn.CreateAttestationResponse(c.rp, c.authenticator, credential, *attOpts)
	if _, err = c.ceremony(ctx, "/api/registration/finish", csrfToken, attestation); err != nil {
		return nil, errors.Wrap(err, "finish registration")
	}

	c.authenticator.AddCredential(credential)
	// Discoverable login needs the user handle in the assertion.
	c.authenticator.Options.UserHandle = []byte(attOpts.UserID)

	if doc, err = c.GetDoc(ctx, "/"); err != nil {
		return nil, errors.Wrap(err, "get document after registration")
	}
	return doc, nil
}

// Login signs in with the passkey created by Register and returns the front page document.
func (c *Client) Login(ctx context.Context) (*goquery.Document, error) {
	const startPath = "/api/login/start"
	if len(c.authenticator.Credentials) == 0 {
		return nil, errors.New("no passkey, register first")
	}
	doc, err := c.GetDoc(ctx, "/")
	if err != nil {
		return nil, errors.Wrap(err, "get document")
	}
	var csrfToken string
	if csrfToken, err = c.extractCSRFToken(doc, startPath); err != nil {
		return nil, errors.Wrap(err, "extract CSRF token")
	}

	var body []byte
	if body, err = c.ceremony(ctx, startPath, csrfToken, ""); err != nil {
		return nil, errors.Wrap(err, "start login")
	}
	var asOpts *virtualwebauthn.AssertionOptions
	if asOpts, err = virtualwebauthn.ParseAssertionOptions(string(body)); err != nil {
		return nil, errors.Wrap(err, "parse assertion options")
	}

	assertion := virtualwebauthn.CreateAssertionResponse(c.rp, c.authenticator, c.authenticator.Credentials[0], *asOpts)
	if _, err = c.ceremony(ctx, "/api/login/finish", csrfToken, assertion); err != nil {
		return nil, errors.Wrap(err, "finish login")
	}

	if doc, err = c.GetDoc(ctx, "/"); err != nil {
		return nil, errors.Wrap(err, "get document after login")
	}
	return doc, nil
}

// Logout submits the logout form on the front page.
func (c *Client) Logout(ctx context.Context) (*goquery.Document, error) {
	var (
		doc *goquery.Document
		err error
	)
	if doc, err = c.SubmitForm(ctx, "/", "/api/logout"); err != nil {
		return nil, errors.Wrap(err, "submit form")
	}
	return doc, nil
}

func (c *Client) extractCSRFToken(doc *goquery.Document, formActionURLPath string) (string, error) {
	formSelector := fmt.Sprintf("form[action='%s']", formActionURLPath)
	form := doc.Find(formSelector)
	csrfToken, ok := form.Find("input[name=csrf_token]").Attr("value")
	if !ok {
		return "", errors.New("csrf_token not found in form")
	}
	return csrfToken, nil
}

// SubmitForm submits a form at formUrlPath with action formActionUrlPath and returns the response document.
func (c *Client) SubmitForm(
	ctx context.Context,
	formURLPath string,
	formActionURLPath string,
) (*goquery.Document, error) {
	return c.SubmitFormValues(ctx, formURLPath, formActionURLPath, nil)
}

// SubmitFormValues works like SubmitForm but also posts the given form values.
func (c *Client) SubmitFormValues(
	ctx context.Context,
	formURLPath string,
	formActionURLPath string,
	values neturl.Values,
) (*goquery.Document, error) {
	var (
		doc *goquery.Document
		err error
	)
	if doc, err = c.GetDoc(ctx, formURLPath); err != nil {
		return nil, errors.Wrap(err, "get document")
	}

	var csrfToken string
	if csrfToken, err = c.extractCSRFToken(doc, formActionURLPath); err != nil {
		return nil, errors.Wrap(err, "extract CSRF token", slog.String("action", formActionURLPath))
	}

	formData := neturl.Values{}
	for key, vals := range values {
		for _, v := range vals {
			formData.Add(key, v)
		}
	}
	formData.Set("csrf_token", csrfToken)
	data := strings.NewReader(formData.Encode())

	var req *http.Request
	if req, err = c.newRequestWithContext(ctx, http.MethodPost, formActionURLPath, data); err != nil {
		return nil, errors.Wrap(err, "new request with context")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	var resp *http.Response
	if resp, err = c.client.Do(req); err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if http.StatusOK != resp.StatusCode {
		return nil, errors.New("unexpected status code", slog.Int("status", resp.StatusCode))
	}

	if doc, err = goquery.NewDocumentFromReader(resp.Body); err != nil {
		return nil, errors.Wrap(err, "create document from reader")
	}
	return doc, nil
}

// SubmitFormHTMX posts the form values the way htmx does, with the HX-Request header set, and returns the status code
// and the raw response body.
func (c *Client) SubmitFormHTMX(
	ctx context.Context,
	formURLPath string,
	formActionURLPath string,
	values neturl.Values,
) (int, string, error) {
	doc, err := c.GetDoc(ctx, formURLPath)
	if err != nil {
		return 0, "", errors.Wrap(err, "get document")
	}
	var csrfToken string
	if csrfToken, err = c.extractCSRFToken(doc, formActionURLPath); err != nil {
		return 0, "", errors.Wrap(err, "extract CSRF token", slog.String("action", formActionURLPath))
	}
	formData := neturl.Values{}
	for key, vals := range values {
		for _, v := range vals {
			formData.Add(key, v)
		}
	}
	formData.Set("csrf_token", csrfToken)

	var req *http.Request
	if req, err = c.newRequestWithContext(ctx, http.MethodPost, formActionURLPath,
		strings.NewReader(formData.Encode())); err != nil {
		return 0, "", errors.Wrap(err, "new request with context")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	var resp *http.Response
	if resp, err = c.client.Do(req); err != nil {
		return 0, "", errors.Wrap(err, "do request")
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	var body []byte
	if body, err = io.ReadAll(resp.Body); err != nil {
		return resp.StatusCode, "", errors.Wrap(err, "read body")
	}
	return resp.StatusCode, string(body), nil
}

// CSRFToken fetches the page at urlPath and returns the token the page exposes to scripts.
func (c *Client) CSRFToken(ctx context.Context, urlPath string) (string, error) {
	doc, err := c.GetDoc(ctx, urlPath)
	if err != nil {
		return "", errors.Wrap(err, "get document")
	}
	token, ok := doc.Find("meta[name=csrf-token]").Attr("content")
	if !ok || token == "" {
		return "", errors.New("csrf-token meta tag not found")
	}
	return token, nil
}

// DoJSON sends body encoded as JSON and decodes the JSON response into out when out is not nil. The response status
// code is returned for any completed request.
func (c *Client) DoJSON(ctx context.Context, method, urlPath, csrfToken string, body, out any) (int, error) {
	var (
		reader io.Reader
		err    error
	)
	if body != nil {
		var encoded []byte
		if encoded, err = json.Marshal(body); err != nil {
			return 0, errors.Wrap(err, "JSON encode body")
		}
		reader = bytes.NewReader(encoded)
	}
	var req *http.Request
	if req, err = c.newRequestWithContext(ctx, method, urlPath, reader); err != nil {
		return 0, errors.Wrap(err, "new request with context")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if csrfToken != "" {
		req.Header.Set(nosurf.HeaderName, csrfToken)
	}
	var resp *http.Response
	if resp, err = c.client.Do(req); err != nil {
		return 0, errors.Wrap(err, "do request")
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if out != nil {
		if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, errors.Wrap(err, "JSON decode response", slog.Int("status", resp.StatusCode))
		}
	}
	return resp.StatusCode, nil
}

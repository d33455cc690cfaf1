package session

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Request is the HTTP request described by a browser "Copy as fetch" snippet.
type Request struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    string
	Cookies []*http.Cookie
}

type snippetOptions struct {
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Body    *string           `json:"body"`
}

// ParseSnippet parses text of the form
//
//	fetch("https://host/path", {"headers": {...}, "method": "GET", "body": null});
//
// An optional leading "await" and trailing semicolon are accepted. The cookie
// header is split into individual cookies and removed from Headers.
func ParseSnippet(snippet string) (*Request, error) {
	s := strings.TrimSpace(snippet)
	s = strings.TrimSpace(strings.TrimPrefix(s, "await "))
	s = strings.TrimSpace(strings.TrimSuffix(s, ";"))

	if !strings.HasPrefix(s, "fetch(") || !strings.HasSuffix(s, ")") {
		return nil, fmt.Errorf("%w: expected fetch(...)", ErrInvalidSnippet)
	}
	inner := strings.TrimSpace(s[len("fetch(") : len(s)-1])

	dec := json.NewDecoder(strings.NewReader(inner))
	var rawURL string
	if err := dec.Decode(&rawURL); err != nil {
		return nil, fmt.Errorf("%w: url: %v", ErrInvalidSnippet, err)
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: url %q is not absolute http(s)", ErrInvalidSnippet, rawURL)
	}

	req := &Request{
		URL:     rawURL,
		Method:  http.MethodGet,
		Headers: make(map[string]string),
	}

	rest := strings.TrimSpace(inner[dec.InputOffset():])
	if rest == "" {
		return req, nil
	}
	if !strings.HasPrefix(rest, ",") {
		return nil, fmt.Errorf("%w: unexpected %q after url", ErrInvalidSnippet, rest)
	}
	rest = strings.TrimSpace(rest[1:])
	if rest == "" {
		return req, nil
	}

	var opts snippetOptions
	if err := json.Unmarshal([]byte(rest), &opts); err != nil {
		return nil, fmt.Errorf("%w: options: %v", ErrInvalidSnippet, err)
	}

	if opts.Method != "" {
		req.Method = strings.ToUpper(opts.Method)
	}
	if opts.Body != nil {
		req.Body = *opts.Body
	}
	for k, v := range opts.Headers {
		if strings.EqualFold(k, "cookie") {
			req.Cookies = append(req.Cookies, splitCookies(v)...)
			continue
		}
		req.Headers[k] = v
	}
	return req, nil
}

func splitCookies(header string) []*http.Cookie {
	var out []*http.Cookie
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, _ := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		out = append(out, &http.Cookie{Name: name, Value: value, Path: "/"})
	}
	return out
}

package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// Request is the framework-agnostic view of an inbound HTTP request
type Request struct {
	Query   url.Values
	Body    map[string]any
	Headers map[string]string // keys are lowercase
}

// NewRequest builds a Request, lowercasing header names
func NewRequest(query url.Values, body map[string]any, headers map[string]string) *Request {
	h := make(map[string]string, len(headers))
	for k, v := range headers {
		h[strings.ToLower(k)] = v
	}
	if query == nil {
		query = url.Values{}
	}
	if body == nil {
		body = map[string]any{}
	}
	return &Request{Query: query, Body: body, Headers: h}
}

// QueryParam returns the first value of a query parameter
func (r *Request) QueryParam(name string) string {
	if r.Query == nil {
		return ""
	}
	return r.Query.Get(name)
}

// BodyParam returns a body parameter as a string. Non-string scalars are formatted.
func (r *Request) BodyParam(name string) string {
	if r.Body == nil {
		return ""
	}
	switch v := r.Body[name].(type) {
	case nil:
		return ""
	case string:
		return v
	case []string:
		if len(v) == 0 {
			return ""
		}
		return v[0]
	default:
		return fmt.Sprint(v)
	}
}

// BodyValue returns the raw body value
func (r *Request) BodyValue(name string) any {
	if r.Body == nil {
		return nil
	}
	return r.Body[name]
}

// Header returns a header value by case-insensitive name
func (r *Request) Header(name string) string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers[strings.ToLower(name)]
}

// Response is produced by the engine. A 302 status always carries a Location header.
type Response struct {
	Status  int
	Headers map[string]string
	Body    any
}

// NewResponse returns an empty 200 response
func NewResponse() *Response {
	return &Response{Status: 200, Headers: map[string]string{}}
}

// NewRedirectResponse returns a 302 response pointing at location
func NewRedirectResponse(location string) *Response {
	return &Response{
		Status:  302,
		Headers: map[string]string{"location": location},
	}
}

// SetHeader sets a lowercase header on the response
func (r *Response) SetHeader(name, value string) {
	if r.Headers == nil {
		r.Headers = map[string]string{}
	}
	r.Headers[strings.ToLower(name)] = value
}

// Location returns the redirect target of a 302 response
func (r *Response) Location() string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers["location"]
}

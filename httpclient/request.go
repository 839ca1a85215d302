package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// Path joins escaped segments into a request path: Path("expense", "get", id)
// yields "/expense/get/<escaped id>".
func Path(segments ...string) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

// EncodeQuery turns url.Values, maps or json-tagged structs into query values.
// Nil and empty-string fields are skipped, slices repeat the parameter and
// nested objects are sent as compact JSON.
func EncodeQuery(v any) (url.Values, error) {
	switch q := v.(type) {
	case nil:
		return nil, nil
	case url.Values:
		return q, nil
	case map[string]string:
		out := url.Values{}
		for k, s := range q {
			if s != "" {
				out.Set(k, s)
			}
		}
		return out, nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, ErrEncodeQuery(err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, ErrEncodeQuery(err)
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := url.Values{}
	for _, k := range keys {
		switch f := fields[k].(type) {
		case []any:
			for _, item := range f {
				if s, ok := scalar(item); ok {
					out.Add(k, s)
				}
			}
		default:
			if s, ok := scalar(f); ok {
				out.Set(k, s)
			}
		}
	}
	return out, nil
}

func scalar(v any) (string, bool) {
	switch s := v.(type) {
	case nil:
		return "", false
	case string:
		return s, s != ""
	case json.Number:
		return s.String(), true
	case bool:
		return fmt.Sprint(s), true
	default:
		raw, err := json.Marshal(s)
		if err != nil {
			return "", false
		}
		return string(raw), true
	}
}

// Get sends a GET with query parameters encoded by EncodeQuery
func Get(ctx context.Context, c Client, path string, query any, out any) error {
	q, err := EncodeQuery(query)
	if err != nil {
		return err
	}
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: q}, out)
}

// Post sends body as JSON
func Post(ctx context.Context, c Client, path string, body any, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

// Put sends body as JSON
func Put(ctx context.Context, c Client, path string, body any, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: path, Body: body}, out)
}

// Patch sends body as JSON
func Patch(ctx context.Context, c Client, path string, body any, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodPatch, Path: path, Body: body}, out)
}

// Delete sends a DELETE
func Delete(ctx context.Context, c Client, path string, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path}, out)
}

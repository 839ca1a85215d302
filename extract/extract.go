// Package extract pulls JSON out of free-form model output.
//
// Generation APIs return text that is expected, but not guaranteed, to
// contain a JSON document. Parsing is best effort and goes through three
// tiers, each usable on its own: the whole text as JSON, the content of a
// markdown code fence, and finally the largest balanced {...} fragment found
// anywhere in the text. A tier only succeeds when every required top-level
// key is present.
package extract

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// Method names the tier that produced a result
type Method string

const (
	MethodDirect   Method = "direct"
	MethodFenced   Method = "fenced"
	MethodEmbedded Method = "embedded"
)

// Result is an extracted JSON document
type Result struct {
	Data   json.RawMessage
	Method Method
}

const (
	// maxCandidates bounds how many fragments Embedded validates
	maxCandidates = 64
	maxRescans    = 8
)

var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n?(.*?)```")

// Direct parses the whole text as a JSON object
func Direct(text string, required ...string) (json.RawMessage, error) {
	return check(strings.TrimSpace(text), required)
}

// Fenced parses the content of the first markdown code fence holding a valid object
func Fenced(text string, required ...string) (json.RawMessage, error) {
	matches := fencePattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil, ErrNoFence
	}
	var last error
	for _, m := range matches {
		data, err := check(strings.TrimSpace(m[1]), required)
		if err == nil {
			return data, nil
		}
		last = err
	}
	return nil, last
}

// Embedded parses the largest balanced object fragment that is valid JSON
func Embedded(text string, required ...string) (json.RawMessage, error) {
	candidates := objectFragments(text)
	if len(candidates) == 0 {
		return nil, ErrNoJSON
	}
	// largest first: the outermost object wins over its members
	sort.SliceStable(candidates, func(i, j int) bool { return len(candidates[i]) > len(candidates[j]) })
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}

	var last error
	for _, c := range candidates {
		data, err := check(c, required)
		if err == nil {
			return data, nil
		}
		last = err
	}
	return nil, last
}

// Parse runs the tiers in order and returns the first success
func Parse(text string, required ...string) (Result, error) {
	if data, err := Direct(text, required...); err == nil {
		return Result{Data: data, Method: MethodDirect}, nil
	}
	if data, err := Fenced(text, required...); err == nil {
		return Result{Data: data, Method: MethodFenced}, nil
	}
	data, err := Embedded(text, required...)
	if err != nil {
		return Result{}, ErrExtract(err)
	}
	return Result{Data: data, Method: MethodEmbedded}, nil
}

// Decode extracts and unmarshals into out
func Decode(text string, out any, required ...string) (Method, error) {
	res, err := Parse(text, required...)
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(res.Data, out); err != nil {
		return res.Method, ErrExtract(err)
	}
	return res.Method, nil
}

func check(s string, required []string) (json.RawMessage, error) {
	if s == "" || !gjson.Valid(s) {
		return nil, ErrInvalidJSON
	}
	doc := gjson.Parse(s)
	if !doc.IsObject() {
		return nil, ErrNotObject
	}
	for _, key := range required {
		if !doc.Get(gjson.Escape(key)).Exists() {
			return nil, ErrMissingKey(key)
		}
	}
	return json.RawMessage(s), nil
}

// objectFragments returns the balanced {...} substrings of text in one pass
// per unmatched opening brace, skipping braces inside JSON strings. Quotes
// outside any object are prose and do not open strings.
func objectFragments(text string) []string {
	var out []string
	seen := make(map[[2]int]bool)
	from := 0
	for pass := 0; pass < maxRescans && from < len(text); pass++ {
		spans, stray := scanObjects(text, from)
		for _, sp := range spans {
			if !seen[sp] {
				seen[sp] = true
				out = append(out, text[sp[0]:sp[1]+1])
			}
		}
		if stray < 0 {
			break
		}
		// an unmatched brace may have swallowed a quote; rescan past it
		from = stray + 1
	}
	return out
}

// scanObjects returns the [start, end] spans of balanced objects found from
// offset from, and the first brace left unmatched or -1.
func scanObjects(text string, from int) ([][2]int, int) {
	var (
		spans            [][2]int
		stack            []int
		inString, escape bool
	)
	for i := from; i < len(text); i++ {
		c := text[i]
		switch {
		case escape:
			escape = false
		case inString && c == '\\':
			escape = true
		case c == '"':
			if len(stack) > 0 {
				inString = !inString
			}
		case inString:
		case c == '{':
			stack = append(stack, i)
		case c == '}':
			if len(stack) == 0 {
				continue
			}
			start := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			spans = append(spans, [2]int{start, i})
		}
	}
	if len(stack) > 0 {
		return spans, stack[0]
	}
	return spans, -1
}

// Package scrape pulls structured data out of HTML pages that embed it in inline scripts.
package scrape

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	ErrMarkerNotFound = errors.New("marker not found")
	ErrMalformedJSON  = errors.New("malformed embedded JSON")
)

// ExtractJSON returns the JSON object that follows the start marker and precedes the first end marker after it.
//
// The text between the markers is usually a JavaScript object literal followed by a separator (e.g. "{...},\n"), so
// the slice is cut back to its last closing brace before parsing. A missing marker gives ErrMarkerNotFound; anything
// between the markers that isn't a JSON object gives ErrMalformedJSON.
func ExtractJSON(page string, start string, end string) (gjson.Result, error) {
	startIndex := strings.Index(page, start)
	if startIndex < 0 {
		return gjson.Result{}, fmt.Errorf("%w: %q", ErrMarkerNotFound, start)
	}
	startIndex += len(start)
	endOffset := strings.Index(page[startIndex:], end)
	if endOffset < 0 {
		return gjson.Result{}, fmt.Errorf("%w: %q", ErrMarkerNotFound, end)
	}

	candidate := page[startIndex : startIndex+endOffset]
	closing := strings.LastIndexByte(candidate, '}')
	if closing < 0 {
		return gjson.Result{}, fmt.Errorf("%w: no closing brace before %q", ErrMalformedJSON, end)
	}
	data := strings.TrimSpace(candidate[:closing+1])
	if !gjson.Valid(data) {
		return gjson.Result{}, fmt.Errorf("%w: %s", ErrMalformedJSON, truncate(data, 64))
	}
	result := gjson.Parse(data)
	if !result.IsObject() {
		return gjson.Result{}, fmt.Errorf("%w: not an object", ErrMalformedJSON)
	}
	return result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

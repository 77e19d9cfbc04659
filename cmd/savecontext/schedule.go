package main

import (
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/savecontext/savecontext/internal/scerror"
)

// whenParser recognizes natural-language date/time phrases for the
// --due/--defer flags (supplemental feature, grounded on
// original_source's due/defer scheduling columns). Parsing happens only
// at this CLI boundary; the core stores plain epoch-ms integers.
var whenParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// parseSchedule parses a natural-language or empty time phrase into an
// epoch-ms pointer, returning nil for an empty input and a validation
// error when the phrase can't be understood.
func parseSchedule(input string) (*int64, error) {
	if input == "" {
		return nil, nil
	}
	r, err := whenParser.Parse(input, time.Now())
	if err != nil {
		return nil, scerror.Wrap(scerror.CodeValidation, "parsing time phrase "+input, err)
	}
	if r == nil {
		return nil, scerror.New(scerror.CodeValidation, "could not understand time phrase: "+input)
	}
	ms := r.Time.UnixMilli()
	return &ms, nil
}

package httpapi

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/openclaw/dashboard/dashsdk"
)

// QueryParamParser collects every invalid query parameter so they can be
// reported in one response.
type QueryParamParser struct {
	Errors []dashsdk.ValidationError
}

func NewQueryParamParser() *QueryParamParser {
	return &QueryParamParser{
		Errors: []dashsdk.ValidationError{},
	}
}

// Int parses an integer and checks it lies in [lo, hi].
func (p *QueryParamParser) Int(vals url.Values, def, lo, hi int, queryParam string) int {
	v, err := parseQueryParam(vals, strconv.Atoi, def, queryParam)
	if err != nil {
		p.Errors = append(p.Errors, dashsdk.ValidationError{
			Field:  queryParam,
			Detail: fmt.Sprintf("Query param %q must be a valid integer (%s)", queryParam, err.Error()),
		})
		return def
	}
	if v < lo || v > hi {
		p.Errors = append(p.Errors, dashsdk.ValidationError{
			Field:  queryParam,
			Detail: fmt.Sprintf("Query param %q must be between %d and %d", queryParam, lo, hi),
		})
		return def
	}
	return v
}

func (p *QueryParamParser) Boolean(vals url.Values, def bool, queryParam string) bool {
	v, err := parseQueryParam(vals, strconv.ParseBool, def, queryParam)
	if err != nil {
		p.Errors = append(p.Errors, dashsdk.ValidationError{
			Field:  queryParam,
			Detail: fmt.Sprintf("Query param %q must be a valid boolean (%s)", queryParam, err.Error()),
		})
	}
	return v
}

func parseQueryParam[T any](vals url.Values, parse func(v string) (T, error), def T, queryParam string) (T, error) {
	if !vals.Has(queryParam) || vals.Get(queryParam) == "" {
		return def, nil
	}
	return parse(vals.Get(queryParam))
}

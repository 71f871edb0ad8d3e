package web

// handlers_common.go holds request parsing shared across handlers.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/JonMunkholm/automationdb/internal/core"
)

// maxJSONBody caps JSON request bodies for record operations.
const maxJSONBody = 1 << 20

// maxSorts caps the number of sort columns honored per request.
const maxSorts = 3

// equalityParams are plain query parameters that filter by exact value.
var equalityParams = []string{"type", "complexity", "coe_fed", "tool_version", "queue", "qa_handshake"}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(q url.Values, name string, defaultVal int) int {
	val := q.Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// parseBoolParam parses a boolean query parameter with a default value.
func parseBoolParam(q url.Values, name string, defaultVal bool) bool {
	val := q.Get(name)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

// parseSorts parses comma-separated sort parameters: sort=name,type&dir=asc,desc.
func parseSorts(q url.Values) []core.SortSpec {
	sortStr := q.Get("sort")
	if sortStr == "" {
		return nil
	}

	cols := strings.Split(sortStr, ",")
	dirs := strings.Split(q.Get("dir"), ",")

	var sorts []core.SortSpec
	for i, col := range cols {
		col = strings.TrimSpace(col)
		if col == "" {
			continue
		}
		dir := "asc"
		if i < len(dirs) && strings.EqualFold(strings.TrimSpace(dirs[i]), "desc") {
			dir = "desc"
		}
		sorts = append(sorts, core.SortSpec{Column: col, Dir: dir})
		if len(sorts) == maxSorts {
			break
		}
	}
	return sorts
}

// parseFilters builds a FilterSet from query parameters.
//
//	?q=invoice&type=Bot&has_description=with&filter[prod_deploy_date]=after:2024-01-01
//
// Column names are checked later by Service.View; malformed operators fail here.
func parseFilters(q url.Values) (core.FilterSet, error) {
	fs := core.FilterSet{Search: q.Get("q")}
	if fs.Search == "" {
		fs.Search = q.Get("search")
	}

	for _, name := range equalityParams {
		if v := strings.TrimSpace(q.Get(name)); v != "" {
			fs.Filters = append(fs.Filters, core.ColumnFilter{Column: name, Operator: core.OpEquals, Value: v})
		}
	}

	switch strings.ToLower(q.Get("has_description")) {
	case "":
	case "with":
		fs.Filters = append(fs.Filters, core.ColumnFilter{Column: "brief_description", Operator: core.OpNotEmpty})
	case "without":
		fs.Filters = append(fs.Filters, core.ColumnFilter{Column: "brief_description", Operator: core.OpEmpty})
	default:
		return fs, fmt.Errorf("%w: has_description must be with or without", core.ErrInvalidField)
	}

	for key, values := range q {
		if !strings.HasPrefix(key, "filter[") || !strings.HasSuffix(key, "]") {
			continue
		}
		col := key[len("filter[") : len(key)-1]
		for _, val := range values {
			f, err := core.ParseColumnFilter(col, val)
			if err != nil {
				return fs, err
			}
			fs.Filters = append(fs.Filters, f)
		}
	}
	return fs, nil
}

// decodeJSON reads a bounded JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty request body", core.ErrInvalidRecord)
		}
		return fmt.Errorf("%w: %w", core.ErrInvalidRecord, err)
	}
	return nil
}

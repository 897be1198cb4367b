// SPDX-License-Identifier: MIT

package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gridlink/openadr3/internal/oadr"
	"github.com/gridlink/openadr3/internal/store"
)

const (
	maxLimit     = 50
	defaultLimit = 50
)

// parsePagination validates skip/limit query parameters: skip ≥ 0,
// 1 ≤ limit ≤ 50, both defaulting when absent.
func parsePagination(q url.Values) (store.Pagination, error) {
	p := store.Pagination{Skip: 0, Limit: defaultLimit}

	if raw := q.Get("skip"); raw != "" {
		skip, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || skip < 0 {
			return p, fmt.Errorf("skip must be a non-negative integer, got %q", raw)
		}
		p.Skip = skip
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || limit < 1 || limit > maxLimit {
			return p, fmt.Errorf("limit must be between 1 and %d, got %q", maxLimit, raw)
		}
		p.Limit = limit
	}
	return p, nil
}

// parseTargetFilter validates the targetType/targetValues pair: both or
// neither, and at least one non-empty value.
func parseTargetFilter(q url.Values) (*store.TargetFilter, error) {
	targetType := q.Get("targetType")
	values := q["targetValues"]

	if targetType == "" && len(values) == 0 {
		return nil, nil
	}
	if targetType == "" || len(values) == 0 {
		return nil, fmt.Errorf("targetType and targetValues must be supplied together")
	}
	for _, v := range values {
		if v == "" {
			return nil, fmt.Errorf("targetValues must not contain empty strings")
		}
	}
	label := oadr.TargetLabel(targetType)
	if err := label.Validate(); err != nil {
		return nil, err
	}
	return &store.TargetFilter{Label: label, Values: values}, nil
}

// pathID parses a validated identifier out of a chi URL parameter.
func pathID(r *http.Request, name string) (oadr.Identifier, error) {
	id, err := oadr.ParseIdentifier(chi.URLParam(r, name))
	if err != nil {
		return "", fmt.Errorf("path parameter %s: %w", name, err)
	}
	return id, nil
}

// optionalID parses an optional identifier query parameter.
func optionalID(q url.Values, name string) (*oadr.Identifier, error) {
	raw := q.Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := oadr.ParseIdentifier(raw)
	if err != nil {
		return nil, fmt.Errorf("query parameter %s: %w", name, err)
	}
	return &id, nil
}

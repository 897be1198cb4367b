// SPDX-License-Identifier: MIT

package store

import (
	"fmt"
	"strings"

	"github.com/gridlink/openadr3/internal/auth"
	"github.com/gridlink/openadr3/internal/oadr"
)

// Pagination bounds a list query. The API layer validates the raw query
// parameters; the store trusts these values.
type Pagination struct {
	Skip  int64
	Limit int64
}

// DefaultPagination is the first full page.
func DefaultPagination() Pagination {
	return Pagination{Skip: 0, Limit: 50}
}

// TargetFilter narrows a list query to entities tagged with all the
// given values under one target label.
type TargetFilter struct {
	Label  oadr.TargetLabel
	Values []string
}

// cond is a SQL fragment plus its bind arguments.
type cond struct {
	sql  string
	args []any
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func inClause(column string, values []string) cond {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return cond{sql: fmt.Sprintf("%s IN (%s)", column, placeholders(len(values))), args: args}
}

// programVisibility compiles the caller's role set into a WHERE fragment
// over the programs table (alias p). Multiple roles are additive: the
// clause is the union of what each role can see.
func programVisibility(caller auth.RoleSet) cond {
	if caller.HasAnyBusiness() {
		return cond{sql: "1=1"}
	}

	var pieces []string
	var args []any

	for _, b := range caller.BusinessIDs() {
		pieces = append(pieces, "(p.business_id = ? OR p.business_id IS NULL)")
		args = append(args, b.String())
	}

	if venIDs := caller.VenIDs(); len(venIDs) > 0 {
		venArgs := make([]any, len(venIDs))
		for i, v := range venIDs {
			venArgs[i] = v.String()
		}
		pieces = append(pieces, fmt.Sprintf(
			"(NOT EXISTS (SELECT 1 FROM program_vens pv WHERE pv.program_id = p.id)"+
				" OR EXISTS (SELECT 1 FROM program_vens pv WHERE pv.program_id = p.id AND pv.ven_id IN (%s)))",
			placeholders(len(venIDs))))
		args = append(args, venArgs...)
	}

	if len(pieces) == 0 {
		return cond{sql: "0=1"}
	}
	return cond{sql: "(" + strings.Join(pieces, " OR ") + ")", args: args}
}

// containment compiles a private-label target filter into a JSON
// containment test on a content column: every requested value must
// appear under the label in the entity's targets list.
func containment(contentColumn string, label oadr.TargetLabel, values []string) cond {
	var pieces []string
	var args []any
	for _, v := range values {
		pieces = append(pieces, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM json_each(%s, '$.targets') tgt"+
				" WHERE json_extract(tgt.value, '$.type') = ?"+
				" AND EXISTS (SELECT 1 FROM json_each(tgt.value, '$.values') tv WHERE tv.value = ?))",
			contentColumn))
		args = append(args, string(label), v)
	}
	return cond{sql: "(" + strings.Join(pieces, " AND ") + ")", args: args}
}

// programTarget compiles a target filter against the programs table
// (alias p).
func programTarget(f TargetFilter) (cond, error) {
	switch f.Label {
	case oadr.TargetProgramName:
		return inClause("p.program_name", f.Values), nil
	case oadr.TargetVenName:
		c := inClause("v.ven_name", f.Values)
		return cond{
			sql: "EXISTS (SELECT 1 FROM program_vens pv JOIN vens v ON v.id = pv.ven_id" +
				" WHERE pv.program_id = p.id AND " + c.sql + ")",
			args: c.args,
		}, nil
	case oadr.TargetEventName:
		c := inClause("e.event_name", f.Values)
		return cond{
			sql:  "EXISTS (SELECT 1 FROM events e WHERE e.program_id = p.id AND " + c.sql + ")",
			args: c.args,
		}, nil
	case oadr.TargetResourceName:
		c := inClause("r.resource_name", f.Values)
		return cond{
			sql: "EXISTS (SELECT 1 FROM program_vens pv JOIN resources r ON r.ven_id = pv.ven_id" +
				" WHERE pv.program_id = p.id AND " + c.sql + ")",
			args: c.args,
		}, nil
	default:
		return containment("p.content", f.Label, f.Values), nil
	}
}

// eventTarget compiles a target filter against the events table (alias
// e, with programs joined as p).
func eventTarget(f TargetFilter) (cond, error) {
	switch f.Label {
	case oadr.TargetEventName:
		return inClause("e.event_name", f.Values), nil
	case oadr.TargetProgramName:
		return inClause("p.program_name", f.Values), nil
	case oadr.TargetVenName:
		c := inClause("v.ven_name", f.Values)
		return cond{
			sql: "EXISTS (SELECT 1 FROM program_vens pv JOIN vens v ON v.id = pv.ven_id" +
				" WHERE pv.program_id = p.id AND " + c.sql + ")",
			args: c.args,
		}, nil
	case oadr.TargetResourceName:
		c := inClause("r.resource_name", f.Values)
		return cond{
			sql: "EXISTS (SELECT 1 FROM program_vens pv JOIN resources r ON r.ven_id = pv.ven_id" +
				" WHERE pv.program_id = p.id AND " + c.sql + ")",
			args: c.args,
		}, nil
	default:
		return containment("e.content", f.Label, f.Values), nil
	}
}

// venTarget compiles a target filter against the vens table (alias v).
func venTarget(f TargetFilter) (cond, error) {
	switch f.Label {
	case oadr.TargetVenName:
		return inClause("v.ven_name", f.Values), nil
	case oadr.TargetResourceName:
		c := inClause("r.resource_name", f.Values)
		return cond{
			sql:  "EXISTS (SELECT 1 FROM resources r WHERE r.ven_id = v.id AND " + c.sql + ")",
			args: c.args,
		}, nil
	case oadr.TargetProgramName, oadr.TargetEventName:
		return cond{}, fmt.Errorf("%w: target type %s on vens", ErrNotImplemented, f.Label)
	default:
		return containment("v.content", f.Label, f.Values), nil
	}
}

// resourceTarget compiles a target filter against the resources table
// (alias r).
func resourceTarget(f TargetFilter) (cond, error) {
	switch f.Label {
	case oadr.TargetResourceName:
		return inClause("r.resource_name", f.Values), nil
	case oadr.TargetVenName:
		c := inClause("v.ven_name", f.Values)
		return cond{
			sql:  "EXISTS (SELECT 1 FROM vens v WHERE v.id = r.ven_id AND " + c.sql + ")",
			args: c.args,
		}, nil
	case oadr.TargetProgramName, oadr.TargetEventName:
		return cond{}, fmt.Errorf("%w: target type %s on resources", ErrNotImplemented, f.Label)
	default:
		return containment("r.content", f.Label, f.Values), nil
	}
}

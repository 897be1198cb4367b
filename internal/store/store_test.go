// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gridlink/openadr3/internal/auth"
	"github.com/gridlink/openadr3/internal/oadr"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ident(t *testing.T, s string) oadr.Identifier {
	t.Helper()
	id, err := oadr.ParseIdentifier(s)
	require.NoError(t, err)
	return id
}

var manager = auth.RoleSet{auth.UserManager(), auth.VenManager(), auth.AnyBusiness()}

func createVen(t *testing.T, s *Store, name string) *oadr.Ven {
	t.Helper()
	ven, err := s.CreateVen(context.Background(), oadr.VenContent{VenName: name}, manager)
	require.NoError(t, err)
	return ven
}

func stringValues(vals ...string) []oadr.Value {
	out := make([]oadr.Value, len(vals))
	for i, v := range vals {
		out[i] = oadr.StringValue(v)
	}
	return out
}

func programWithVens(name string, venNames ...string) oadr.ProgramContent {
	content := oadr.ProgramContent{ProgramName: name}
	if len(venNames) > 0 {
		content.Targets = []oadr.TargetEntry{{Label: oadr.TargetVenName, Values: stringValues(venNames...)}}
	}
	return content
}

func minimalEvent(programID oadr.Identifier) oadr.EventContent {
	return oadr.EventContent{
		ProgramID: programID,
		Intervals: []oadr.EventInterval{{
			ID: 0,
			Payloads: []oadr.EventValuesMap{{
				Type:   oadr.ValueTypeImportCapacityLimit,
				Values: []oadr.Value{oadr.NumberValue(42)},
			}},
		}},
	}
}

// The visibility fixture: ven-1 and ven-2 exist, business-1 owns a
// program assigned to ven-1 only.
func seedVisibility(t *testing.T, s *Store) (program *oadr.Program, ven1, ven2 *oadr.Ven) {
	t.Helper()
	ctx := context.Background()
	ven1 = createVen(t, s, "ven-1")
	ven2 = createVen(t, s, "ven-2")

	owner := auth.RoleSet{auth.Business(ident(t, "business-1"))}
	program, err := s.CreateProgram(ctx, programWithVens("residential-dr", "ven-1"), owner)
	require.NoError(t, err)
	return program, ven1, ven2
}

func TestProgramVisibility(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	program, ven1, ven2 := seedVisibility(t, s)

	cases := []struct {
		name    string
		caller  auth.RoleSet
		visible bool
	}{
		{"any business", auth.RoleSet{auth.AnyBusiness()}, true},
		{"owning business", auth.RoleSet{auth.Business(ident(t, "business-1"))}, true},
		{"other business", auth.RoleSet{auth.Business(ident(t, "business-2"))}, false},
		{"assigned ven", auth.RoleSet{auth.VEN(ven1.ID)}, true},
		{"unassigned ven", auth.RoleSet{auth.VEN(ven2.ID)}, false},
		{"no roles", auth.RoleSet{}, false},
		{"multi-hat union", auth.RoleSet{auth.VEN(ven2.ID), auth.Business(ident(t, "business-1"))}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.GetProgram(ctx, program.ID, tc.caller)
			if tc.visible {
				require.NoError(t, err)
				require.Equal(t, program.ID, got.ID)
			} else {
				require.ErrorIs(t, err, ErrNotFound)
			}

			list, err := s.ListPrograms(ctx, ProgramFilter{Pagination: DefaultPagination()}, tc.caller)
			require.NoError(t, err)
			if tc.visible {
				require.Len(t, list, 1)
			} else {
				require.Empty(t, list)
			}
		})
	}
}

func TestUnownedProgramVisibleToEveryBusiness(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	program, err := s.CreateProgram(ctx, programWithVens("open-program"), auth.RoleSet{auth.AnyBusiness()})
	require.NoError(t, err)
	require.Nil(t, program.Content.BusinessID)

	got, err := s.GetProgram(ctx, program.ID, auth.RoleSet{auth.Business(ident(t, "business-2"))})
	require.NoError(t, err)
	require.Equal(t, program.ID, got.ID)
}

func TestProgramNameConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateProgram(ctx, programWithVens("dup"), manager)
	require.NoError(t, err)
	_, err = s.CreateProgram(ctx, programWithVens("dup"), manager)
	require.ErrorIs(t, err, ErrConflict)
}

func TestProgramVenAssignment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createVen(t, s, "ven-a")

	t.Run("unknown ven name on create is a conflict", func(t *testing.T) {
		_, err := s.CreateProgram(ctx, programWithVens("p1", "no-such-ven"), manager)
		require.ErrorIs(t, err, ErrConflict)
	})

	t.Run("ven name targets are split out of stored content", func(t *testing.T) {
		content := programWithVens("p2", "ven-a")
		content.Targets = append(content.Targets, oadr.TargetEntry{
			Label:  oadr.TargetGroup,
			Values: stringValues("zone-7"),
		})
		program, err := s.CreateProgram(ctx, content, manager)
		require.NoError(t, err)

		got, err := s.GetProgram(ctx, program.ID, manager)
		require.NoError(t, err)
		require.Len(t, got.Content.Targets, 1)
		require.Equal(t, oadr.TargetGroup, got.Content.Targets[0].Label)
	})

	t.Run("unknown ven name on update is a bad request", func(t *testing.T) {
		program, err := s.CreateProgram(ctx, programWithVens("p3", "ven-a"), manager)
		require.NoError(t, err)
		_, err = s.UpdateProgram(ctx, program.ID, programWithVens("p3", "no-such-ven"), manager)
		require.ErrorIs(t, err, ErrBadRequest)
	})
}

func TestProgramUpdateRebuildsAssignments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	program, ven1, ven2 := seedVisibility(t, s)

	owner := auth.RoleSet{auth.Business(ident(t, "business-1"))}
	_, err := s.UpdateProgram(ctx, program.ID, programWithVens("residential-dr", "ven-2"), owner)
	require.NoError(t, err)

	_, err = s.GetProgram(ctx, program.ID, auth.RoleSet{auth.VEN(ven1.ID)})
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetProgram(ctx, program.ID, auth.RoleSet{auth.VEN(ven2.ID)})
	require.NoError(t, err)
}

func TestProgramWriteRequiresOwner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	program, _, _ := seedVisibility(t, s)

	// A foreign business cannot even see the program.
	other := auth.RoleSet{auth.Business(ident(t, "business-2"))}
	_, err := s.UpdateProgram(ctx, program.ID, programWithVens("renamed"), other)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.DeleteProgram(ctx, program.ID, other)
	require.ErrorIs(t, err, ErrNotFound)

	// AnyBusiness can always write.
	_, err = s.DeleteProgram(ctx, program.ID, auth.RoleSet{auth.AnyBusiness()})
	require.NoError(t, err)
	_, err = s.GetProgram(ctx, program.ID, manager)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestEventVisibilityFollowsProgram(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	program, ven1, ven2 := seedVisibility(t, s)

	owner := auth.RoleSet{auth.Business(ident(t, "business-1"))}
	event, err := s.CreateEvent(ctx, minimalEvent(program.ID), owner)
	require.NoError(t, err)

	_, err = s.GetEvent(ctx, event.ID, auth.RoleSet{auth.VEN(ven1.ID)})
	require.NoError(t, err)
	_, err = s.GetEvent(ctx, event.ID, auth.RoleSet{auth.VEN(ven2.ID)})
	require.ErrorIs(t, err, ErrNotFound)

	list, err := s.ListEvents(ctx, EventFilter{Pagination: DefaultPagination(), ProgramID: &program.ID},
		auth.RoleSet{auth.VEN(ven1.ID)})
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestEventWriteRequiresProgramOwner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	program, ven1, _ := seedVisibility(t, s)

	_, err := s.CreateEvent(ctx, minimalEvent(program.ID), auth.RoleSet{auth.Business(ident(t, "business-2"))})
	require.ErrorIs(t, err, ErrForbidden)
	_, err = s.CreateEvent(ctx, minimalEvent(program.ID), auth.RoleSet{auth.VEN(ven1.ID)})
	require.ErrorIs(t, err, ErrForbidden)
	_, err = s.CreateEvent(ctx, minimalEvent(ident(t, "no-such-program")), manager)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListEventsPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	program, err := s.CreateProgram(ctx, programWithVens("paged"), manager)
	require.NoError(t, err)

	var created []oadr.Identifier
	for range 3 {
		e, err := s.CreateEvent(ctx, minimalEvent(program.ID), manager)
		require.NoError(t, err)
		created = append(created, e.ID)
	}

	page := func(skip, limit int64) []oadr.Identifier {
		list, err := s.ListEvents(ctx, EventFilter{Pagination: Pagination{Skip: skip, Limit: limit}}, manager)
		require.NoError(t, err)
		ids := make([]oadr.Identifier, len(list))
		for i, e := range list {
			ids[i] = e.ID
		}
		return ids
	}

	require.Equal(t, created, page(0, 50))
	require.Equal(t, created[:2], page(0, 2))
	require.Equal(t, created[2:], page(2, 50))
	require.Empty(t, page(3, 50))
}

func TestReportLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	program, ven1, ven2 := seedVisibility(t, s)

	owner := auth.RoleSet{auth.Business(ident(t, "business-1"))}
	event, err := s.CreateEvent(ctx, minimalEvent(program.ID), owner)
	require.NoError(t, err)

	content := oadr.ReportContent{
		ProgramID:  program.ID,
		EventID:    event.ID,
		ClientName: "meter-7",
	}

	t.Run("unassigned ven cannot submit", func(t *testing.T) {
		_, err := s.CreateReport(ctx, content, auth.RoleSet{auth.VEN(ven2.ID)})
		require.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("unknown event is not found", func(t *testing.T) {
		bad := content
		bad.EventID = ident(t, "no-such-event")
		_, err := s.CreateReport(ctx, bad, auth.RoleSet{auth.VEN(ven1.ID)})
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("event must belong to the declared program", func(t *testing.T) {
		other, err := s.CreateProgram(ctx, programWithVens("other"), manager)
		require.NoError(t, err)
		bad := content
		bad.ProgramID = other.ID
		_, err = s.CreateReport(ctx, bad, manager)
		require.ErrorIs(t, err, ErrBadRequest)
	})

	venCaller := auth.RoleSet{auth.VEN(ven1.ID)}
	report, err := s.CreateReport(ctx, content, venCaller)
	require.NoError(t, err)

	t.Run("submitting ven cannot delete", func(t *testing.T) {
		_, err := s.DeleteReport(ctx, report.ID, venCaller)
		require.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("owning business deletes", func(t *testing.T) {
		_, err := s.DeleteReport(ctx, report.ID, owner)
		require.NoError(t, err)
		_, err = s.GetReport(ctx, report.ID, owner)
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestVenCrud(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ven := createVen(t, s, "house-12")

	t.Run("creation is manager only", func(t *testing.T) {
		_, err := s.CreateVen(ctx, oadr.VenContent{VenName: "rogue"}, auth.RoleSet{auth.VEN(ven.ID)})
		require.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("duplicate name is a conflict", func(t *testing.T) {
		_, err := s.CreateVen(ctx, oadr.VenContent{VenName: "house-12"}, manager)
		require.ErrorIs(t, err, ErrConflict)
	})

	t.Run("a ven sees only itself", func(t *testing.T) {
		other := createVen(t, s, "house-13")
		caller := auth.RoleSet{auth.VEN(ven.ID)}
		_, err := s.GetVen(ctx, ven.ID, caller)
		require.NoError(t, err)
		_, err = s.GetVen(ctx, other.ID, caller)
		require.ErrorIs(t, err, ErrNotFound)

		list, err := s.ListVens(ctx, VenFilter{Pagination: DefaultPagination()}, caller)
		require.NoError(t, err)
		require.Len(t, list, 1)
		require.Equal(t, ven.ID, list[0].ID)
	})

	t.Run("delete is blocked while resources exist", func(t *testing.T) {
		resource, err := s.CreateResource(ctx, ven.ID, oadr.ResourceContent{ResourceName: "heat-pump"}, manager)
		require.NoError(t, err)

		_, err = s.DeleteVen(ctx, ven.ID, manager)
		require.ErrorIs(t, err, ErrForbidden)

		_, err = s.DeleteResource(ctx, ven.ID, resource.ID, manager)
		require.NoError(t, err)
		_, err = s.DeleteVen(ctx, ven.ID, manager)
		require.NoError(t, err)
	})
}

func TestResourceScoping(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ven1 := createVen(t, s, "ven-1")
	ven2 := createVen(t, s, "ven-2")

	self := auth.RoleSet{auth.VEN(ven1.ID)}
	resource, err := s.CreateResource(ctx, ven1.ID, oadr.ResourceContent{ResourceName: "battery"}, self)
	require.NoError(t, err)

	t.Run("a ven manages its own resources", func(t *testing.T) {
		got, err := s.GetResource(ctx, ven1.ID, resource.ID, self)
		require.NoError(t, err)
		require.Equal(t, "battery", got.Content.ResourceName)
	})

	t.Run("wrong ven in the path is not found", func(t *testing.T) {
		_, err := s.GetResource(ctx, ven2.ID, resource.ID, manager)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("another ven cannot write", func(t *testing.T) {
		other := auth.RoleSet{auth.VEN(ven2.ID)}
		_, err := s.CreateResource(ctx, ven1.ID, oadr.ResourceContent{ResourceName: "ev"}, other)
		require.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("resources appear on the parent ven", func(t *testing.T) {
		got, err := s.GetVen(ctx, ven1.ID, self)
		require.NoError(t, err)
		require.Len(t, got.Resources, 1)
		require.Equal(t, resource.ID, got.Resources[0].ID)
	})
}

func TestUserCredentialLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	roles := auth.RoleSet{auth.Business(ident(t, "business-1"))}
	user, err := s.CreateUser(ctx, auth.UserContent{Reference: "acme-ops", Roles: roles.Strings()}, manager)
	require.NoError(t, err)
	require.NoError(t, s.AddCredential(ctx, user.ID,
		auth.Credential{ClientID: "acme", ClientSecret: "s3cret"}, manager))

	t.Run("valid credentials yield the stored roles", func(t *testing.T) {
		got, err := s.LookupCredential(ctx, "acme", "s3cret")
		require.NoError(t, err)
		require.Equal(t, roles.Strings(), got.Strings())
	})

	t.Run("wrong secret and unknown client are indistinguishable", func(t *testing.T) {
		_, err := s.LookupCredential(ctx, "acme", "wrong")
		require.ErrorIs(t, err, ErrNotFound)
		_, err = s.LookupCredential(ctx, "ghost", "s3cret")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("deleting the user cascades to credentials", func(t *testing.T) {
		_, err := s.DeleteUser(ctx, user.ID, manager)
		require.NoError(t, err)
		_, err = s.LookupCredential(ctx, "acme", "s3cret")
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestBootstrapCredentialSeedsOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.BootstrapCredential(ctx, "admin", "admin-secret-000000000000000000"))
	roles, err := s.LookupCredential(ctx, "admin", "admin-secret-000000000000000000")
	require.NoError(t, err)
	require.True(t, roles.HasUserManager())
	require.True(t, roles.HasVenManager())
	require.True(t, roles.HasAnyBusiness())

	// A second call is a no-op once any credential exists.
	require.NoError(t, s.BootstrapCredential(ctx, "admin2", "other"))
	_, err = s.LookupCredential(ctx, "admin2", "other")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTargetFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createVen(t, s, "ven-1")

	content := programWithVens("zoned", "ven-1")
	content.Targets = append(content.Targets, oadr.TargetEntry{
		Label:  oadr.TargetGroup,
		Values: stringValues("zone-7", "zone-8"),
	})
	program, err := s.CreateProgram(ctx, content, manager)
	require.NoError(t, err)
	_, err = s.CreateProgram(ctx, programWithVens("plain"), manager)
	require.NoError(t, err)

	list := func(f *TargetFilter) []oadr.Program {
		got, err := s.ListPrograms(ctx, ProgramFilter{Pagination: DefaultPagination(), Target: f}, manager)
		require.NoError(t, err)
		return got
	}

	t.Run("program name", func(t *testing.T) {
		got := list(&TargetFilter{Label: oadr.TargetProgramName, Values: []string{"zoned"}})
		require.Len(t, got, 1)
		require.Equal(t, program.ID, got[0].ID)
	})

	t.Run("ven name resolves through assignments", func(t *testing.T) {
		got := list(&TargetFilter{Label: oadr.TargetVenName, Values: []string{"ven-1"}})
		require.Len(t, got, 1)
		require.Equal(t, program.ID, got[0].ID)
	})

	t.Run("private label containment needs all values", func(t *testing.T) {
		got := list(&TargetFilter{Label: oadr.TargetGroup, Values: []string{"zone-7"}})
		require.Len(t, got, 1)
		got = list(&TargetFilter{Label: oadr.TargetGroup, Values: []string{"zone-7", "zone-9"}})
		require.Empty(t, got)
	})

	t.Run("event name on vens is not implemented", func(t *testing.T) {
		_, err := s.ListVens(ctx, VenFilter{
			Pagination: DefaultPagination(),
			Target:     &TargetFilter{Label: oadr.TargetEventName, Values: []string{"x"}},
		}, manager)
		require.ErrorIs(t, err, ErrNotImplemented)
	})
}

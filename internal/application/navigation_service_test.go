package application

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rakaadit/go-rbac-navigation/internal/domain/entity"
	repo "github.com/rakaadit/go-rbac-navigation/internal/domain/repository"
)

func newNavFixture(userIDs ...string) (*NavigationService, *fakeEntries, *fakeRoles, *fakeCache, *fakePublisher) {
	entries := newFakeEntries()
	roles := newFakeRoles()
	users := newFakeUsers(userIDs...)
	cache := newFakeCache()
	pub := &fakePublisher{}
	inv := NewInvalidator(cache, users, roles, nil)
	svc := NewNavigationService(entries, roles, cache, inv, pub, nil, nil, "", 5*time.Hour)
	return svc, entries, roles, cache, pub
}

func viewNode(id string, parentID *string, roleIDs ...string) *entity.EntryNode {
	return &entity.EntryNode{
		Entry: entity.Entry{
			ID:       id,
			ParentID: parentID,
			Label:    "entry " + id,
			Icon:     "circle",
			Target:   "/" + id,
			IsActive: true,
		},
		RoleIDs: roleIDs,
	}
}

func TestRenderNavigationMissComputesThenHits(t *testing.T) {
	t.Parallel()
	svc, entries, _, cache, _ := newNavFixture("u1")
	entries.forest = entity.BuildForest([]*entity.EntryNode{
		viewNode("a", nil, "r1"),
		viewNode("b", nil, "r2"),
		viewNode("c", strptr("a"), "r1"),
	})
	ctx := context.Background()

	view, err := svc.RenderNavigation(ctx, "u1", []string{"r1"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(view) != 1 || view[0].ID != "a" || len(view[0].Children) != 1 {
		t.Fatalf("first render: got %+v, want [a -> [c]]", view)
	}
	if entries.forestCalls != 1 {
		t.Fatalf("forest loads after miss: got %d, want 1", entries.forestCalls)
	}

	again, err := svc.RenderNavigation(ctx, "u1", []string{"r1"})
	if err != nil {
		t.Fatalf("second render: %v", err)
	}
	if entries.forestCalls != 1 {
		t.Errorf("second render hit the store: %d forest loads", entries.forestCalls)
	}
	if len(again) != 1 || again[0].ID != "a" {
		t.Errorf("cached render: got %+v", again)
	}
	if cache.puts != 1 {
		t.Errorf("cache puts: got %d, want 1", cache.puts)
	}
}

func TestRenderNavigationEvictionBeatsConcurrentPut(t *testing.T) {
	t.Parallel()
	svc, entries, _, cache, _ := newNavFixture("u1")
	entries.forest = []*entity.EntryNode{viewNode("a", nil, "r1")}
	ctx := context.Background()

	// An eviction lands between the forest snapshot and the Put; the
	// store under the older generation must be discarded.
	entries.onForest = func() { _ = cache.Evict(ctx, "u1") }

	view, err := svc.RenderNavigation(ctx, "u1", []string{"r1"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(view) != 1 {
		t.Fatalf("caller still gets a view: got %d roots", len(view))
	}
	if cache.stale != 1 {
		t.Errorf("stale puts discarded: got %d, want 1", cache.stale)
	}
	if _, ok := cache.views["u1"]; ok {
		t.Error("stale view was stored despite the eviction")
	}
}

func TestCreateEntryValidation(t *testing.T) {
	t.Parallel()

	divider := &entity.Entry{ID: "div", Label: "Divider", IsDivider: true, IsActive: true}
	child := &entity.Entry{ID: "child", ParentID: strptr("root"), Label: "Child", IsActive: true}

	tests := []struct {
		name  string
		in    EntryInput
		field string
	}{
		{"missing label", EntryInput{Target: "/x", Icon: "circle"}, "label"},
		{"missing target", EntryInput{Label: "X", Icon: "circle"}, "target"},
		{"missing icon", EntryInput{Label: "X", Target: "/x"}, "icon"},
		{"unknown parent", EntryInput{Label: "X", Target: "/x", Icon: "circle", ParentID: strptr("nope")}, "parent_id"},
		{"divider parent", EntryInput{Label: "X", Target: "/x", Icon: "circle", ParentID: strptr("div")}, "parent_id"},
		{"nested parent", EntryInput{Label: "X", Target: "/x", Icon: "circle", ParentID: strptr("child")}, "parent_id"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			svc, entries, _, cache, _ := newNavFixture("u1")
			entries.add(divider)
			entries.add(child)
			tc.in.IsActive = true

			_, err := svc.CreateEntry(context.Background(), tc.in)

			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("got %v, want ValidationError", err)
			}
			if ve.Field != tc.field {
				t.Errorf("field: got %q, want %q", ve.Field, tc.field)
			}
			if len(entries.created) != 0 {
				t.Error("rejected input reached the store")
			}
			if len(cache.evicted) != 0 {
				t.Error("rejected input evicted cached views")
			}
		})
	}
}

func TestCreateEntryDividerNeedsNoTarget(t *testing.T) {
	t.Parallel()
	svc, _, _, _, _ := newNavFixture("u1")

	e, err := svc.CreateEntry(context.Background(), EntryInput{Label: "Section", IsDivider: true, IsActive: true})
	if err != nil {
		t.Fatalf("divider create: %v", err)
	}
	if !e.IsDivider {
		t.Error("divider flag lost")
	}
}

func TestCreateEntryAppendsAndEvictsEveryone(t *testing.T) {
	t.Parallel()
	svc, entries, _, cache, pub := newNavFixture("u1", "u2", "u3")
	entries.nextSort = 4

	e, err := svc.CreateEntry(context.Background(), EntryInput{Label: "Docs", Icon: "book", Target: "/docs", IsActive: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if e.SortNum != 4 {
		t.Errorf("sort_num: got %d, want append position 4", e.SortNum)
	}
	got := cache.evictedSet()
	for _, u := range []string{"u1", "u2", "u3"} {
		if !got[u] {
			t.Errorf("user %s not evicted after entry create", u)
		}
	}
	if len(pub.events) != 1 || pub.events[0].Action != "entry.created" {
		t.Errorf("audit events: got %v", pub.actions())
	}
}

func TestCreateEntrySortConflict(t *testing.T) {
	t.Parallel()
	svc, entries, _, cache, _ := newNavFixture("u1")
	entries.sortTaken = true

	_, err := svc.CreateEntry(context.Background(), EntryInput{Label: "Docs", Icon: "book", Target: "/docs", IsActive: true, SortNum: intptr(2)})

	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "sort_num" {
		t.Fatalf("got %v, want sort_num validation error", err)
	}
	if len(entries.created) != 0 {
		t.Error("conflicting entry was stored")
	}
	if len(cache.evicted) != 0 {
		t.Error("failed create evicted cached views")
	}
}

func TestUpdateEntryRejectsDemotionWithChildren(t *testing.T) {
	t.Parallel()
	svc, entries, _, _, _ := newNavFixture("u1")
	entries.add(&entity.Entry{ID: "a", Label: "A", Icon: "circle", Target: "/a", IsActive: true})
	entries.add(&entity.Entry{ID: "b", Label: "B", Icon: "circle", Target: "/b", IsActive: true})
	entries.hasChildren = true

	_, err := svc.UpdateEntry(context.Background(), "a", EntryInput{Label: "A", Icon: "circle", Target: "/a", IsActive: true, ParentID: strptr("b")})

	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "parent_id" {
		t.Fatalf("got %v, want parent_id validation error", err)
	}
}

func TestUpdateEntryRejectsSelfParent(t *testing.T) {
	t.Parallel()
	svc, entries, _, _, _ := newNavFixture("u1")
	entries.add(&entity.Entry{ID: "a", Label: "A", Icon: "circle", Target: "/a", IsActive: true})

	_, err := svc.UpdateEntry(context.Background(), "a", EntryInput{Label: "A", Icon: "circle", Target: "/a", IsActive: true, ParentID: strptr("a")})

	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "parent_id" {
		t.Fatalf("got %v, want parent_id validation error", err)
	}
}

func TestUpdateEntryNotFound(t *testing.T) {
	t.Parallel()
	svc, _, _, _, _ := newNavFixture("u1")

	_, err := svc.UpdateEntry(context.Background(), "missing", EntryInput{Label: "X", Icon: "circle", Target: "/x", IsActive: true})
	if !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("got %v, want ErrEntryNotFound", err)
	}
}

func TestDeleteEntryEvictsEveryone(t *testing.T) {
	t.Parallel()
	svc, entries, _, cache, pub := newNavFixture("u1", "u2")
	entries.add(&entity.Entry{ID: "a", Label: "A", IsActive: true})

	if err := svc.DeleteEntry(context.Background(), "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got := cache.evictedSet()
	if !got["u1"] || !got["u2"] {
		t.Errorf("evicted: got %v, want all users", cache.evicted)
	}
	if len(pub.events) != 1 || pub.events[0].Action != "entry.deleted" {
		t.Errorf("audit events: got %v", pub.actions())
	}
}

func TestApplyOrderEmptySubmissionIsNoOp(t *testing.T) {
	t.Parallel()
	svc, entries, _, cache, pub := newNavFixture("u1")

	if err := svc.ApplyOrder(context.Background(), nil); err != nil {
		t.Fatalf("empty order: %v", err)
	}
	if entries.orderGot != nil {
		t.Error("empty submission reached the store")
	}
	if len(cache.evicted) != 0 || len(pub.events) != 0 {
		t.Error("empty submission caused side effects")
	}
}

func TestApplyOrderRejectsBadSubmissions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		forest []entity.OrderNode
	}{
		{
			"duplicate id across levels",
			[]entity.OrderNode{{ID: "a", Children: []entity.OrderNode{{ID: "a"}}}},
		},
		{
			"duplicate id across roots",
			[]entity.OrderNode{{ID: "a"}, {ID: "a"}},
		},
		{
			"third level",
			[]entity.OrderNode{{ID: "a", Children: []entity.OrderNode{
				{ID: "b", Children: []entity.OrderNode{{ID: "c"}}},
			}}},
		},
		{
			"empty id",
			[]entity.OrderNode{{ID: ""}},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			svc, entries, _, cache, _ := newNavFixture("u1")

			err := svc.ApplyOrder(context.Background(), tc.forest)

			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("got %v, want ValidationError", err)
			}
			if entries.orderGot != nil {
				t.Error("rejected submission reached the store")
			}
			if len(cache.evicted) != 0 {
				t.Error("rejected submission evicted cached views")
			}
		})
	}
}

func TestApplyOrderPersistsAndEvictsEveryone(t *testing.T) {
	t.Parallel()
	svc, entries, _, cache, pub := newNavFixture("u1", "u2")
	entries.add(&entity.Entry{ID: "a", Label: "A", SortNum: 0, IsActive: true})
	entries.add(&entity.Entry{ID: "b", Label: "B", SortNum: 1, IsActive: true})
	entries.add(&entity.Entry{ID: "c", Label: "C", SortNum: 2, IsActive: true})
	forest := []entity.OrderNode{
		{ID: "b", Children: []entity.OrderNode{{ID: "c"}}},
		{ID: "a"},
	}

	if err := svc.ApplyOrder(context.Background(), forest); err != nil {
		t.Fatalf("apply order: %v", err)
	}
	want := map[string]placement{
		"b": {sortNum: 0},
		"c": {sortNum: 0, parent: "b"},
		"a": {sortNum: 1},
	}
	if got := entries.placements(); !reflect.DeepEqual(got, want) {
		t.Errorf("placements: got %v, want %v", got, want)
	}
	got := cache.evictedSet()
	if !got["u1"] || !got["u2"] {
		t.Errorf("evicted: got %v, want all users", cache.evicted)
	}
	if len(pub.events) != 1 || pub.events[0].Action != "entry.reordered" {
		t.Errorf("audit events: got %v", pub.actions())
	}
}

func TestApplyOrderIsIdempotent(t *testing.T) {
	t.Parallel()
	svc, entries, _, _, _ := newNavFixture("u1")
	entries.add(&entity.Entry{ID: "a", Label: "A", SortNum: 0, IsActive: true})
	entries.add(&entity.Entry{ID: "b", Label: "B", SortNum: 1, IsActive: true})
	entries.add(&entity.Entry{ID: "c", Label: "C", SortNum: 2, IsActive: true})
	forest := []entity.OrderNode{
		{ID: "c", Children: []entity.OrderNode{{ID: "a"}}},
		{ID: "b"},
	}

	if err := svc.ApplyOrder(context.Background(), forest); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	first := entries.placements()

	if err := svc.ApplyOrder(context.Background(), forest); err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if second := entries.placements(); !reflect.DeepEqual(first, second) {
		t.Errorf("state diverged on reapply: first %v, second %v", first, second)
	}
}

func TestApplyOrderSiblingCollisionIsConflict(t *testing.T) {
	t.Parallel()
	svc, entries, _, cache, _ := newNavFixture("u1")
	// A partial submission can land on a sort key still held by an
	// untouched sibling; the store reports that as a conflict.
	entries.orderErr = repo.ErrConflict

	err := svc.ApplyOrder(context.Background(), []entity.OrderNode{{ID: "a"}})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("got %v, want ErrConflict", err)
	}
	if len(cache.evicted) != 0 {
		t.Error("failed reorder evicted cached views")
	}
}

func TestApplyOrderUnknownEntryFailsWhole(t *testing.T) {
	t.Parallel()
	svc, entries, _, cache, _ := newNavFixture("u1")
	entries.orderErr = repo.ErrNotFound

	err := svc.ApplyOrder(context.Background(), []entity.OrderNode{{ID: "ghost"}})
	if !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("got %v, want ErrEntryNotFound", err)
	}
	if len(cache.evicted) != 0 {
		t.Error("failed reorder evicted cached views")
	}
}

func TestAssignEntryRolesUnknownRole(t *testing.T) {
	t.Parallel()
	svc, entries, roles, cache, _ := newNavFixture("u1")
	entries.add(&entity.Entry{ID: "a", Label: "A", IsActive: true})
	roles.addRole("r1", "admin")

	err := svc.AssignEntryRoles(context.Background(), "a", []string{"r1", "ghost"})
	if !errors.Is(err, ErrRoleNotFound) {
		t.Fatalf("got %v, want ErrRoleNotFound", err)
	}
	if len(roles.entryRoles["a"]) != 0 {
		t.Error("grants were written despite the unknown role")
	}
	if len(cache.evicted) != 0 {
		t.Error("failed assignment evicted cached views")
	}
}

func TestAssignEntryRolesEvictsOldAndNewHolders(t *testing.T) {
	t.Parallel()
	svc, entries, roles, cache, pub := newNavFixture("u1", "u2", "u3")
	entries.add(&entity.Entry{ID: "a", Label: "A", IsActive: true})
	roles.addRole("r1", "old")
	roles.addRole("r2", "new")
	roles.entryRoles["a"] = []string{"r1"}
	roles.userRoles["u1"] = []string{"r1"}
	roles.userRoles["u2"] = []string{"r2"}
	// u3 holds neither role and must keep its cached view.

	if err := svc.AssignEntryRoles(context.Background(), "a", []string{"r2"}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if got := roles.entryRoles["a"]; len(got) != 1 || got[0] != "r2" {
		t.Errorf("entry roles after sync: got %v, want [r2]", got)
	}
	got := cache.evictedSet()
	if !got["u1"] || !got["u2"] {
		t.Errorf("evicted: got %v, want holders of old and new roles", cache.evicted)
	}
	if got["u3"] {
		t.Error("unaffected user was evicted")
	}
	if len(pub.events) != 1 || pub.events[0].Action != "entry.roles_assigned" {
		t.Errorf("audit events: got %v", pub.actions())
	}
}

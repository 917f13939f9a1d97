package application

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rakaadit/go-rbac-navigation/internal/domain/entity"
	repo "github.com/rakaadit/go-rbac-navigation/internal/domain/repository"
)

// In-memory fakes for the repository and cache ports. They record calls
// so tests can assert which invalidation fan-out each mutation took.

type fakeEntries struct {
	entries     map[string]*entity.Entry
	forest      []*entity.EntryNode
	forestCalls int
	onForest    func() // runs before Forest returns; simulates concurrent writes
	nextSort    int
	sortTaken   bool
	hasChildren bool
	created     []*entity.Entry
	updated     []*entity.Entry
	deleted     []string
	orderGot    []entity.OrderNode
	orderErr    error
}

func newFakeEntries() *fakeEntries {
	return &fakeEntries{entries: map[string]*entity.Entry{}}
}

func (f *fakeEntries) add(e *entity.Entry) { f.entries[e.ID] = e }

func (f *fakeEntries) Create(_ context.Context, e *entity.Entry) error {
	e.ID = "entry-" + e.Label
	f.entries[e.ID] = e
	f.created = append(f.created, e)
	return nil
}

func (f *fakeEntries) GetByID(_ context.Context, id string) (*entity.Entry, error) {
	e, ok := f.entries[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeEntries) Update(_ context.Context, e *entity.Entry) error {
	if _, ok := f.entries[e.ID]; !ok {
		return repo.ErrNotFound
	}
	f.entries[e.ID] = e
	f.updated = append(f.updated, e)
	return nil
}

func (f *fakeEntries) Delete(_ context.Context, id string) error {
	if _, ok := f.entries[id]; !ok {
		return repo.ErrNotFound
	}
	delete(f.entries, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeEntries) List(_ context.Context, flt repo.EntryFilter) ([]*entity.EntryNode, error) {
	out := []*entity.EntryNode{}
	for _, n := range f.forest {
		if flt.Label != "" && !strings.Contains(strings.ToLower(n.Label), strings.ToLower(flt.Label)) {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (f *fakeEntries) Forest(_ context.Context) ([]*entity.EntryNode, error) {
	f.forestCalls++
	if f.onForest != nil {
		f.onForest()
	}
	return f.forest, nil
}

func (f *fakeEntries) HasChildren(_ context.Context, _ string) (bool, error) {
	return f.hasChildren, nil
}

func (f *fakeEntries) SiblingSortTaken(_ context.Context, _ *string, _ int, _ string) (bool, error) {
	return f.sortTaken, nil
}

func (f *fakeEntries) NextSortNum(_ context.Context, _ *string) (int, error) {
	return f.nextSort, nil
}

// ApplyOrder mutates the stored entries the way the transactional walk
// does: sibling index becomes the sort key, the enclosing node the
// parent. Entries outside the submission keep their position.
func (f *fakeEntries) ApplyOrder(_ context.Context, forest []entity.OrderNode) error {
	if f.orderErr != nil {
		return f.orderErr
	}
	f.orderGot = forest
	return f.applyLevel(forest, nil)
}

func (f *fakeEntries) applyLevel(nodes []entity.OrderNode, parentID *string) error {
	for i, n := range nodes {
		e, ok := f.entries[n.ID]
		if !ok {
			return repo.ErrNotFound
		}
		e.SortNum = i
		e.ParentID = parentID
		if len(n.Children) > 0 {
			id := n.ID
			if err := f.applyLevel(n.Children, &id); err != nil {
				return err
			}
		}
	}
	return nil
}

type placement struct {
	sortNum int
	parent  string
}

// placements snapshots every entry's position for state comparisons.
func (f *fakeEntries) placements() map[string]placement {
	out := make(map[string]placement, len(f.entries))
	for id, e := range f.entries {
		p := placement{sortNum: e.SortNum}
		if e.ParentID != nil {
			p.parent = *e.ParentID
		}
		out[id] = p
	}
	return out
}

func (f *fakeEntries) ExistingIDs(_ context.Context, ids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := f.entries[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

type fakeRoles struct {
	roles              map[string]*entity.Role
	userRoles          map[string][]string // user id -> role ids
	entryRoles         map[string][]string // entry id -> role ids
	roleEntries        map[string][]string // role id -> entry ids
	holdersGot         [][]string          // UserIDsWithRoles arguments, in call order
	syncRoleEntriesErr error
}

func newFakeRoles() *fakeRoles {
	return &fakeRoles{
		roles:       map[string]*entity.Role{},
		userRoles:   map[string][]string{},
		entryRoles:  map[string][]string{},
		roleEntries: map[string][]string{},
	}
}

func (f *fakeRoles) addRole(id, name string) {
	f.roles[id] = &entity.Role{ID: id, Name: name}
}

func (f *fakeRoles) Create(_ context.Context, r *entity.Role) error {
	r.ID = "role-" + r.Name
	f.roles[r.ID] = r
	return nil
}

func (f *fakeRoles) GetByID(_ context.Context, id string) (*entity.Role, error) {
	r, ok := f.roles[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRoles) Update(_ context.Context, r *entity.Role) error {
	if _, ok := f.roles[r.ID]; !ok {
		return repo.ErrNotFound
	}
	f.roles[r.ID] = r
	return nil
}

func (f *fakeRoles) Delete(_ context.Context, id string) error {
	if _, ok := f.roles[id]; !ok {
		return repo.ErrNotFound
	}
	delete(f.roles, id)
	// Cascade, like the FK does.
	for uid, rids := range f.userRoles {
		f.userRoles[uid] = removeID(rids, id)
	}
	return nil
}

func (f *fakeRoles) List(_ context.Context, _ string) ([]*entity.Role, error) {
	out := []*entity.Role{}
	for _, r := range f.roles {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeRoles) EntryRoleIDs(_ context.Context, entryID string) ([]string, error) {
	return f.entryRoles[entryID], nil
}

func (f *fakeRoles) SyncEntryRoles(_ context.Context, entryID string, roleIDs []string) error {
	f.entryRoles[entryID] = roleIDs
	return nil
}

func (f *fakeRoles) SyncRoleEntries(_ context.Context, roleID string, entryIDs []string) error {
	if f.syncRoleEntriesErr != nil {
		return f.syncRoleEntriesErr
	}
	f.roleEntries[roleID] = entryIDs
	return nil
}

func (f *fakeRoles) UserRoleIDs(_ context.Context, userID string) ([]string, error) {
	return f.userRoles[userID], nil
}

func (f *fakeRoles) SyncUserRoles(_ context.Context, userID string, roleIDs []string) error {
	f.userRoles[userID] = roleIDs
	return nil
}

func (f *fakeRoles) UserIDsWithRoles(_ context.Context, roleIDs []string) ([]string, error) {
	f.holdersGot = append(f.holdersGot, roleIDs)
	want := make(map[string]struct{}, len(roleIDs))
	for _, id := range roleIDs {
		want[id] = struct{}{}
	}
	out := []string{}
	for uid, rids := range f.userRoles {
		for _, rid := range rids {
			if _, ok := want[rid]; ok {
				out = append(out, uid)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeRoles) ExistingIDs(_ context.Context, ids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := f.roles[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

type fakeUsers struct {
	users map[string]*entity.User
}

func newFakeUsers(ids ...string) *fakeUsers {
	f := &fakeUsers{users: map[string]*entity.User{}}
	for _, id := range ids {
		f.users[id] = &entity.User{ID: id, Email: id + "@example.com"}
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, u *entity.User) error {
	f.users[u.ID] = u
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*entity.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (f *fakeUsers) ListIDs(_ context.Context) ([]string, error) {
	out := make([]string, 0, len(f.users))
	for id := range f.users {
		out = append(out, id)
	}
	return out, nil
}

// fakeCache mirrors the evict-wins contract of the Redis cache: each
// eviction bumps the user's generation, and a Put carrying an older
// generation is silently discarded.
type fakeCache struct {
	views   map[string]entity.RenderedView
	gens    map[string]int64
	puts    int
	stale   int // puts discarded by a generation mismatch
	evicted []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{views: map[string]entity.RenderedView{}, gens: map[string]int64{}}
}

func (f *fakeCache) Get(_ context.Context, userID string) (entity.RenderedView, int64, bool, error) {
	v, ok := f.views[userID]
	return v, f.gens[userID], ok, nil
}

func (f *fakeCache) Generation(_ context.Context, userID string) (int64, error) {
	return f.gens[userID], nil
}

func (f *fakeCache) Put(_ context.Context, userID string, view entity.RenderedView, gen int64, _ time.Duration) error {
	f.puts++
	if gen != f.gens[userID] {
		f.stale++
		return nil
	}
	f.views[userID] = view
	return nil
}

func (f *fakeCache) Evict(_ context.Context, userID string) error {
	f.gens[userID]++
	delete(f.views, userID)
	f.evicted = append(f.evicted, userID)
	return nil
}

func (f *fakeCache) EvictAll(ctx context.Context, userIDs []string) error {
	for _, id := range userIDs {
		_ = f.Evict(ctx, id)
	}
	return nil
}

func (f *fakeCache) evictedSet() map[string]bool {
	out := make(map[string]bool, len(f.evicted))
	for _, id := range f.evicted {
		out[id] = true
	}
	return out
}

type fakePublisher struct {
	events []AuditEvent
}

func (f *fakePublisher) PublishJSON(_ context.Context, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	var ev AuditEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		return err
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakePublisher) actions() []string {
	out := make([]string, 0, len(f.events))
	for _, ev := range f.events {
		out = append(out, ev.Action)
	}
	return out
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func strptr(s string) *string { return &s }

func intptr(i int) *int { return &i }

package application

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/sirupsen/logrus"

	"github.com/rakaadit/go-rbac-navigation/internal/domain/entity"
	repo "github.com/rakaadit/go-rbac-navigation/internal/domain/repository"
)

// NavigationService owns the navigation tree: rendering it per user
// through the view cache, entry CRUD, role grants on entries, and the
// atomic reorder/reparent batch.
type NavigationService struct {
	Entries        repo.EntryRepository
	Roles          repo.RoleRepository
	Cache          ViewCache
	Invalidator    *Invalidator
	Events         EventPublisher
	Logger         *logrus.Logger
	ES             *elasticsearch.Client
	ESEntriesIndex string
	ViewTTL        time.Duration
}

func NewNavigationService(entries repo.EntryRepository, roles repo.RoleRepository, cache ViewCache, inv *Invalidator, events EventPublisher, logger *logrus.Logger, es *elasticsearch.Client, esIndex string, viewTTL time.Duration) *NavigationService {
	return &NavigationService{
		Entries:        entries,
		Roles:          roles,
		Cache:          cache,
		Invalidator:    inv,
		Events:         events,
		Logger:         logger,
		ES:             es,
		ESEntriesIndex: esIndex,
		ViewTTL:        viewTTL,
	}
}

// EntryInput carries the writable attributes of an entry. A nil
// SortNum means "append after the last sibling".
type EntryInput struct {
	Label     string
	Icon      string
	Target    string
	ParentID  *string
	SortNum   *int
	IsActive  bool
	IsDivider bool
}

// RoleIDsForUser resolves the caller's current role set. The render
// path reads this fresh per request so role changes take effect
// immediately rather than riding on session state.
func (s *NavigationService) RoleIDsForUser(ctx context.Context, userID string) ([]string, error) {
	return s.Roles.UserRoleIDs(ctx, userID)
}

// RenderNavigation returns the role-filtered, ordered forest for a
// user, serving from the cache when possible. On a miss the view is
// computed from a fresh forest snapshot and stored under the
// generation observed before the snapshot was taken, so a concurrent
// eviction discards it.
func (s *NavigationService) RenderNavigation(ctx context.Context, userID string, roleIDs []string) (entity.RenderedView, error) {
	var gen int64
	if s.Cache != nil {
		view, g, ok, err := s.Cache.Get(ctx, userID)
		if err != nil {
			if s.Logger != nil {
				s.Logger.WithError(err).WithField("user_id", userID).Warn("view cache read failed")
			}
		} else if ok {
			return view, nil
		}
		gen = g
	}

	forest, err := s.Entries.Forest(ctx)
	if err != nil {
		return nil, err
	}
	view := entity.VisibleForest(forest, roleIDs)

	if s.Cache != nil {
		if err := s.Cache.Put(ctx, userID, view, gen, s.ViewTTL); err != nil && s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", userID).Warn("view cache write failed")
		}
	}
	return view, nil
}

// ListEntries returns entries matching an optional label substring and
// activity filter, ordered by sort key with children nested.
func (s *NavigationService) ListEntries(ctx context.Context, search string, isActive *bool) ([]*entity.EntryNode, error) {
	return s.Entries.List(ctx, repo.EntryFilter{Label: search, IsActive: isActive})
}

// EntryTree returns the full forest regardless of activity or roles;
// it backs the admin sort screen.
func (s *NavigationService) EntryTree(ctx context.Context) ([]*entity.EntryNode, error) {
	return s.Entries.Forest(ctx)
}

func (s *NavigationService) GetEntry(ctx context.Context, id string) (*entity.Entry, error) {
	e, err := s.Entries.GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrEntryNotFound
	}
	return e, err
}

func (s *NavigationService) CreateEntry(ctx context.Context, in EntryInput) (*entity.Entry, error) {
	if err := s.validateEntry(ctx, in, ""); err != nil {
		return nil, err
	}
	sortNum, err := s.resolveSortNum(ctx, in, "")
	if err != nil {
		return nil, err
	}
	e := &entity.Entry{
		ParentID:  in.ParentID,
		SortNum:   sortNum,
		Label:     strings.TrimSpace(in.Label),
		Icon:      in.Icon,
		Target:    in.Target,
		IsActive:  in.IsActive,
		IsDivider: in.IsDivider,
	}
	if err := s.Entries.Create(ctx, e); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return nil, ErrConflict
		}
		return nil, err
	}
	if err := s.Invalidator.EvictEveryone(ctx); err != nil {
		return nil, err
	}
	publishAudit(ctx, s.Events, s.Logger, AuditEvent{Action: "entry.created", EntityID: e.ID, Detail: e.Label})
	s.indexEntry(ctx, e)
	return e, nil
}

func (s *NavigationService) UpdateEntry(ctx context.Context, id string, in EntryInput) (*entity.Entry, error) {
	e, err := s.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validateEntry(ctx, in, id); err != nil {
		return nil, err
	}
	if in.ParentID != nil && (e.ParentID == nil || *e.ParentID != *in.ParentID) {
		// Demoting an entry that has children would create a third
		// level, which the tree does not support.
		has, err := s.Entries.HasChildren(ctx, id)
		if err != nil {
			return nil, err
		}
		if has {
			return nil, invalid("parent_id", "entry with children cannot become a child")
		}
	}
	sortNum := e.SortNum
	if in.SortNum != nil || !sameParent(e.ParentID, in.ParentID) {
		sortNum, err = s.resolveSortNum(ctx, in, id)
		if err != nil {
			return nil, err
		}
	}
	e.ParentID = in.ParentID
	e.SortNum = sortNum
	e.Label = strings.TrimSpace(in.Label)
	e.Icon = in.Icon
	e.Target = in.Target
	e.IsActive = in.IsActive
	e.IsDivider = in.IsDivider

	if err := s.Entries.Update(ctx, e); err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return nil, ErrEntryNotFound
		case errors.Is(err, repo.ErrConflict):
			return nil, ErrConflict
		}
		return nil, err
	}
	if err := s.Invalidator.EvictEveryone(ctx); err != nil {
		return nil, err
	}
	publishAudit(ctx, s.Events, s.Logger, AuditEvent{Action: "entry.updated", EntityID: e.ID, Detail: e.Label})
	s.indexEntry(ctx, e)
	return e, nil
}

// DeleteEntry removes an entry together with its children and role
// links, then drops every user's cached view.
func (s *NavigationService) DeleteEntry(ctx context.Context, id string) error {
	e, err := s.GetEntry(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Entries.Delete(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrEntryNotFound
		}
		return err
	}
	if err := s.Invalidator.EvictEveryone(ctx); err != nil {
		return err
	}
	publishAudit(ctx, s.Events, s.Logger, AuditEvent{Action: "entry.deleted", EntityID: id, Detail: e.Label})
	s.removeEntryDocs(ctx, id)
	return nil
}

// ApplyOrder validates a submitted forest at the boundary, then applies
// it as one transaction. Entries not mentioned keep their position; an
// empty submission succeeds without touching the store or the cache.
func (s *NavigationService) ApplyOrder(ctx context.Context, forest []entity.OrderNode) error {
	if len(forest) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	for _, root := range forest {
		if err := checkOrderNode(root, seen, true); err != nil {
			return err
		}
	}
	if err := s.Entries.ApplyOrder(ctx, forest); err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return ErrEntryNotFound
		case errors.Is(err, repo.ErrConflict):
			return ErrConflict
		}
		return err
	}
	if err := s.Invalidator.EvictEveryone(ctx); err != nil {
		return err
	}
	publishAudit(ctx, s.Events, s.Logger, AuditEvent{Action: "entry.reordered"})
	return nil
}

// AssignEntryRoles replaces the role set granting an entry and evicts
// every user holding a role from either the old or the new set.
func (s *NavigationService) AssignEntryRoles(ctx context.Context, entryID string, roleIDs []string) error {
	if _, err := s.GetEntry(ctx, entryID); err != nil {
		return err
	}
	existing, err := s.Roles.ExistingIDs(ctx, roleIDs)
	if err != nil {
		return err
	}
	for _, id := range roleIDs {
		if !existing[id] {
			return ErrRoleNotFound
		}
	}
	before, err := s.Roles.EntryRoleIDs(ctx, entryID)
	if err != nil {
		return err
	}
	if err := s.Roles.SyncEntryRoles(ctx, entryID, roleIDs); err != nil {
		return err
	}
	if err := s.Invalidator.EvictRoleHolders(ctx, unionIDs(before, roleIDs)); err != nil {
		return err
	}
	publishAudit(ctx, s.Events, s.Logger, AuditEvent{Action: "entry.roles_assigned", EntityID: entryID})
	return nil
}

func (s *NavigationService) validateEntry(ctx context.Context, in EntryInput, selfID string) error {
	if strings.TrimSpace(in.Label) == "" {
		return invalid("label", "is required")
	}
	if !in.IsDivider {
		if strings.TrimSpace(in.Target) == "" {
			return invalid("target", "is required for non-divider entries")
		}
		if strings.TrimSpace(in.Icon) == "" {
			return invalid("icon", "is required for non-divider entries")
		}
	}
	if in.ParentID == nil {
		return nil
	}
	if selfID != "" && *in.ParentID == selfID {
		return invalid("parent_id", "entry cannot be its own parent")
	}
	parent, err := s.Entries.GetByID(ctx, *in.ParentID)
	if errors.Is(err, repo.ErrNotFound) {
		return invalid("parent_id", "does not reference an existing entry")
	}
	if err != nil {
		return err
	}
	if parent.IsDivider {
		return invalid("parent_id", "a divider cannot have children")
	}
	if parent.ParentID != nil {
		return invalid("parent_id", "nesting is limited to two levels")
	}
	return nil
}

func (s *NavigationService) resolveSortNum(ctx context.Context, in EntryInput, selfID string) (int, error) {
	if in.SortNum == nil {
		return s.Entries.NextSortNum(ctx, in.ParentID)
	}
	taken, err := s.Entries.SiblingSortTaken(ctx, in.ParentID, *in.SortNum, selfID)
	if err != nil {
		return 0, err
	}
	if taken {
		return 0, invalid("sort_num", "already used by a sibling")
	}
	return *in.SortNum, nil
}

func checkOrderNode(n entity.OrderNode, seen map[string]struct{}, root bool) error {
	if n.ID == "" {
		return invalid("id", "is required")
	}
	if _, dup := seen[n.ID]; dup {
		return invalid("id", "appears more than once in the submission")
	}
	seen[n.ID] = struct{}{}
	if !root && len(n.Children) > 0 {
		return invalid("children", "nesting is limited to two levels")
	}
	for _, c := range n.Children {
		if err := checkOrderNode(c, seen, false); err != nil {
			return err
		}
	}
	return nil
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func unionIDs(a, b []string) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, ids := range [][]string{a, b} {
		for _, id := range ids {
			if _, ok := set[id]; !ok {
				set[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	return out
}

// indexEntry mirrors the entry into Elasticsearch for label search.
// Best-effort: the SQL store remains the source of truth.
func (s *NavigationService) indexEntry(ctx context.Context, e *entity.Entry) {
	if s.ES == nil || s.ESEntriesIndex == "" {
		return
	}
	doc := map[string]any{
		"id":         e.ID,
		"label":      e.Label,
		"target":     e.Target,
		"icon":       e.Icon,
		"parent_id":  e.ParentID,
		"is_active":  e.IsActive,
		"is_divider": e.IsDivider,
		"updated_at": e.UpdatedAt.Format(time.RFC3339Nano),
	}
	b, _ := json.Marshal(doc)
	req := esapi.IndexRequest{Index: s.ESEntriesIndex, DocumentID: e.ID, Body: strings.NewReader(string(b)), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("entry_id", e.ID).Warn("es index failed")
		}
		return
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && s.Logger != nil {
		s.Logger.WithField("status", res.Status()).WithField("entry_id", e.ID).Warn("es index response error")
	}
}

// removeEntryDocs drops the deleted entry's document and, since parent
// deletion cascades, any documents still pointing at it as parent.
func (s *NavigationService) removeEntryDocs(ctx context.Context, id string) {
	if s.ES == nil || s.ESEntriesIndex == "" {
		return
	}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	del := esapi.DeleteRequest{Index: s.ESEntriesIndex, DocumentID: id}
	if res, err := del.Do(c, s.ES); err == nil {
		_ = res.Body.Close()
	}

	q := `{"query":{"term":{"parent_id":"` + id + `"}}}`
	byQuery := esapi.DeleteByQueryRequest{Index: []string{s.ESEntriesIndex}, Body: strings.NewReader(q)}
	if res, err := byQuery.Do(c, s.ES); err == nil {
		_ = res.Body.Close()
	}
}

// SearchEntries performs a multi_match query over label and target.
func (s *NavigationService) SearchEntries(ctx context.Context, q string, size int) ([]map[string]any, error) {
	if s.ES == nil || s.ESEntriesIndex == "" {
		return []map[string]any{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"label^2", "target"},
			},
		},
		"size": size,
	}
	b, _ := json.Marshal(query)

	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := s.ES.Search(
		s.ES.Search.WithContext(c),
		s.ES.Search.WithIndex(s.ESEntriesIndex),
		s.ES.Search.WithBody(strings.NewReader(string(b))),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}

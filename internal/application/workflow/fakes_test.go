package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/emission-workflow/internal/application/dispatcher"
	"github.com/garyjia/emission-workflow/internal/domain/entity"
	"github.com/garyjia/emission-workflow/internal/domain/event"
	domainwf "github.com/garyjia/emission-workflow/internal/domain/workflow"
)

// memStore is an in-memory implementation of every repository port plus a
// transaction manager that rolls back on error. Transactions are serialized,
// mirroring sqlite's single writer.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	cases   map[uuid.UUID]*entity.Case
	docs    map[uuid.UUID][]*entity.Document
	items   map[uuid.UUID][]*entity.MissingItem
	history []*entity.TransitionRecord
	nextID  int64

	getErr     map[uuid.UUID]error
	historyErr error
	createErr  error
	rollbacks  int
}

func newMemStore() *memStore {
	return &memStore{
		cases:  make(map[uuid.UUID]*entity.Case),
		docs:   make(map[uuid.UUID][]*entity.Document),
		items:  make(map[uuid.UUID][]*entity.MissingItem),
		getErr: make(map[uuid.UUID]error),
	}
}

func (s *memStore) repos() Repositories {
	return Repositories{
		Cases:        (*memCases)(s),
		Documents:    (*memDocs)(s),
		MissingItems: (*memItems)(s),
		History:      (*memHistory)(s),
		TxManager:    s,
	}
}

func (s *memStore) addCase(c *entity.Case) *entity.Case {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Folio == "" {
		s.nextID++
		c.Folio = entity.FolioFor(2026, s.nextID)
	}
	cp := *c
	s.cases[c.ID] = &cp
	return c
}

func (s *memStore) addDoc(caseID uuid.UUID, kind entity.DocumentKind, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.docs[caseID] = append(s.docs[caseID], &entity.Document{
		ID:     s.nextID,
		CaseID: caseID,
		Kind:   kind,
		Status: status,
	})
}

func (s *memStore) addItem(it entity.MissingItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	it.ID = s.nextID
	s.items[it.CaseID] = append(s.items[it.CaseID], &it)
}

func (s *memStore) caseByID(id uuid.UUID) entity.Case {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.cases[id]
}

func (s *memStore) openItems(id uuid.UUID) []entity.MissingItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.MissingItem
	for _, it := range s.items[id] {
		if it.Open() {
			out = append(out, *it)
		}
	}
	return out
}

func (s *memStore) allItems(id uuid.UUID) []entity.MissingItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.MissingItem
	for _, it := range s.items[id] {
		out = append(out, *it)
	}
	return out
}

func (s *memStore) historyFor(id uuid.UUID) []entity.TransitionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.TransitionRecord
	for _, h := range s.history {
		if h.CaseID == id {
			out = append(out, *h)
		}
	}
	return out
}

type memSnapshot struct {
	cases   map[uuid.UUID]entity.Case
	items   map[uuid.UUID][]entity.MissingItem
	docs    map[uuid.UUID][]entity.Document
	history int
	nextID  int64
}

func (s *memStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snap := memSnapshot{
		cases:   make(map[uuid.UUID]entity.Case, len(s.cases)),
		items:   make(map[uuid.UUID][]entity.MissingItem, len(s.items)),
		docs:    make(map[uuid.UUID][]entity.Document, len(s.docs)),
		history: len(s.history),
		nextID:  s.nextID,
	}
	for id, c := range s.cases {
		snap.cases[id] = *c
	}
	for id, list := range s.items {
		for _, it := range list {
			snap.items[id] = append(snap.items[id], *it)
		}
	}
	for id, list := range s.docs {
		for _, d := range list {
			snap.docs[id] = append(snap.docs[id], *d)
		}
	}
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.rollbacks++
		s.cases = make(map[uuid.UUID]*entity.Case, len(snap.cases))
		for id, c := range snap.cases {
			cp := c
			s.cases[id] = &cp
		}
		s.items = make(map[uuid.UUID][]*entity.MissingItem, len(snap.items))
		for id, list := range snap.items {
			for i := range list {
				it := list[i]
				s.items[id] = append(s.items[id], &it)
			}
		}
		s.docs = make(map[uuid.UUID][]*entity.Document, len(snap.docs))
		for id, list := range snap.docs {
			for i := range list {
				d := list[i]
				s.docs[id] = append(s.docs[id], &d)
			}
		}
		s.history = s.history[:snap.history]
		s.nextID = snap.nextID
		return err
	}
	return nil
}

type memCases memStore

func (r *memCases) Create(ctx context.Context, c *entity.Case) error {
	(*memStore)(r).addCase(c)
	return nil
}

func (r *memCases) GetByID(ctx context.Context, id uuid.UUID) (*entity.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.getErr[id]; err != nil {
		return nil, err
	}
	c, ok := r.cases[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *memCases) GetByFolio(ctx context.Context, folio string) (*entity.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.cases {
		if c.Folio == folio {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memCases) Update(ctx context.Context, c *entity.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cases[c.ID]; !ok {
		return errors.New("case not found")
	}
	cp := *c
	r.cases[c.ID] = &cp
	return nil
}

func (r *memCases) ListActiveIDs(ctx context.Context) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uuid.UUID
	for id, c := range r.cases {
		if c.State != domainwf.StateReadyForPortal && c.State != domainwf.StateClosed {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type memDocs memStore

func (r *memDocs) Create(ctx context.Context, doc *entity.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	doc.ID = r.nextID
	cp := *doc
	r.docs[doc.CaseID] = append(r.docs[doc.CaseID], &cp)
	return nil
}

func (r *memDocs) GetByID(ctx context.Context, id int64) (*entity.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, list := range r.docs {
		for _, d := range list {
			if d.ID == id {
				cp := *d
				return &cp, nil
			}
		}
	}
	return nil, nil
}

func (r *memDocs) GetByCaseID(ctx context.Context, caseID uuid.UUID) ([]*entity.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Document
	for _, d := range r.docs[caseID] {
		cp := *d
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memDocs) UpdateReview(ctx context.Context, id int64, status, reviewedBy string, reviewedAt time.Time) error {
	return nil
}

func (r *memDocs) UpdateOCRStatus(ctx context.Context, id int64, status string) error {
	return nil
}

func (r *memDocs) Delete(ctx context.Context, id int64) error {
	return nil
}

type memItems memStore

func (r *memItems) Create(ctx context.Context, item *entity.MissingItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	item.ID = r.nextID
	cp := *item
	r.items[item.CaseID] = append(r.items[item.CaseID], &cp)
	return nil
}

func (r *memItems) GetByCaseID(ctx context.Context, caseID uuid.UUID) ([]*entity.MissingItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.MissingItem
	for _, it := range r.items[caseID] {
		cp := *it
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memItems) Resolve(ctx context.Context, id int64, resolution, resolvedBy string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, list := range r.items {
		for _, it := range list {
			if it.ID == id {
				it.Resolved = true
				it.Resolution = resolution
				it.ResolvedBy = resolvedBy
				t := at
				it.ResolvedAt = &t
				return nil
			}
		}
	}
	return errors.New("missing item not found")
}

type memHistory memStore

func (r *memHistory) Create(ctx context.Context, record *entity.TransitionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.historyErr != nil {
		return r.historyErr
	}
	r.nextID++
	record.ID = r.nextID
	cp := *record
	r.history = append(r.history, &cp)
	return nil
}

func (r *memHistory) GetByCaseID(ctx context.Context, caseID uuid.UUID) ([]*entity.TransitionRecord, error) {
	var out []*entity.TransitionRecord
	for _, h := range (*memStore)(r).historyFor(caseID) {
		h := h
		out = append(out, &h)
	}
	return out, nil
}

// recordingDispatcher captures dispatched events
type recordingDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (d *recordingDispatcher) Subscribe(event.Type, dispatcher.Handler)              {}
func (d *recordingDispatcher) SubscribeNamed(event.Type, string, dispatcher.Handler) {}
func (d *recordingDispatcher) SubscribeAll(string, dispatcher.Handler)               {}
func (d *recordingDispatcher) Unsubscribe(event.Type, string)                        {}
func (d *recordingDispatcher) ListHandlers(event.Type) []dispatcher.HandlerInfo      { return nil }
func (d *recordingDispatcher) Close() error                                          { return nil }

func (d *recordingDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	d.DispatchAsync(ctx, evt)
	return nil
}

func (d *recordingDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, evt)
}

func (d *recordingDispatcher) ofType(t event.Type) []*event.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*event.Event
	for _, e := range d.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

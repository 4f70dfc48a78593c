package notionstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/jomei/notionapi"
)

const (
	membersDB  = "db-members"
	invoicesDB = "db-invoices"
	itemsDB    = "db-items"
)

type fakePage struct {
	id       string
	db       string
	props    notionapi.Properties
	archived bool
}

// fakeNotion keeps pages in memory and evaluates the relation filters the
// store sends. Like Notion it maintains "Draft invoice" on members as the
// dual of "Membership of draft invoice" on invoices.
type fakeNotion struct {
	mu      sync.Mutex
	pages   []*fakePage
	nextID  int
	calls   map[string]int
	queries []*notionapi.DatabaseQueryRequest

	// failAt makes the n-th call of an operation fail (1-based).
	failAt map[string]int
}

var errFakeNotion = errors.New("notion: service unavailable")

func newFakeNotion() *fakeNotion {
	return &fakeNotion{calls: map[string]int{}, failAt: map[string]int{}}
}

func (f *fakeNotion) count(op string) error {
	f.calls[op]++
	if n, ok := f.failAt[op]; ok && n == f.calls[op] {
		return errFakeNotion
	}
	return nil
}

func (f *fakeNotion) find(id string) *fakePage {
	for _, p := range f.pages {
		if p.id == id && !p.archived {
			return p
		}
	}
	return nil
}

func (f *fakeNotion) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.count("create"); err != nil {
		return nil, err
	}
	f.nextID++
	p := &fakePage{id: fmt.Sprintf("page-%03d", f.nextID), db: databaseID, props: notionapi.Properties{}}
	for k, v := range properties {
		p.props[k] = v
	}
	f.pages = append(f.pages, p)
	return &notionapi.Page{ID: notionapi.ObjectID(p.id), Properties: p.props}, nil
}

func (f *fakeNotion) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.count("update"); err != nil {
		return nil, err
	}
	p := f.find(pageID)
	if p == nil {
		return nil, fmt.Errorf("notion: page %s not found", pageID)
	}
	for k, v := range properties {
		p.props[k] = v
	}
	return &notionapi.Page{ID: notionapi.ObjectID(p.id), Properties: p.props}, nil
}

func (f *fakeNotion) ArchivePage(ctx context.Context, pageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.count("archive"); err != nil {
		return err
	}
	p := f.find(pageID)
	if p == nil {
		return fmt.Errorf("notion: page %s not found", pageID)
	}
	p.archived = true
	return nil
}

func (f *fakeNotion) QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.count("query"); err != nil {
		return nil, err
	}
	f.queries = append(f.queries, req)

	var matched []notionapi.Page
	for _, p := range f.pages {
		if p.db != databaseID || p.archived {
			continue
		}
		props := p.props
		if databaseID == membersDB {
			props = f.withDraftInvoice(p)
		}
		if matches(props, req.Filter) {
			matched = append(matched, notionapi.Page{ID: notionapi.ObjectID(p.id), Properties: props})
		}
	}

	start := 0
	if req.StartCursor != "" {
		start, _ = strconv.Atoi(string(req.StartCursor))
	}
	end := len(matched)
	if req.PageSize > 0 && start+req.PageSize < end {
		end = start + req.PageSize
	}
	resp := &notionapi.DatabaseQueryResponse{Results: matched[start:end]}
	if end < len(matched) {
		resp.HasMore = true
		resp.NextCursor = notionapi.Cursor(strconv.Itoa(end))
	}
	return resp, nil
}

func (f *fakeNotion) withDraftInvoice(member *fakePage) notionapi.Properties {
	props := notionapi.Properties{}
	for k, v := range member.props {
		props[k] = v
	}
	var ids []string
	for _, p := range f.pages {
		if p.db == invoicesDB && !p.archived && readRelation(p.props, propOpenMembership) == member.id {
			ids = append(ids, p.id)
		}
	}
	props[propDraftInvoice] = relationProp(ids...)
	return props
}

func matches(props notionapi.Properties, filter notionapi.Filter) bool {
	if filter == nil {
		return true
	}
	pf, ok := filter.(*notionapi.PropertyFilter)
	if !ok || pf.Relation == nil {
		panic(fmt.Sprintf("fake notion: unsupported filter %#v", filter))
	}
	linked := readRelation(props, pf.Property)
	switch {
	case pf.Relation.IsNotEmpty:
		return linked != ""
	case pf.Relation.Contains != "":
		return linked == pf.Relation.Contains
	}
	return true
}

func (f *fakeNotion) live(db string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.pages {
		if p.db == db && !p.archived {
			n++
		}
	}
	return n
}

package store

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"partsledger/internal/models"
)

// MemoryStore keeps the catalog and ledger in process memory. Atomic holds
// the write lock for the whole callback and undoes its writes on failure.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState
	seq   atomic.Int64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

type memState struct {
	items     []*models.Item
	itemIdx   map[string]*models.Item
	invoices  []*models.Invoice
	invIdx    map[string]*models.Invoice
	movements []models.StockMovement
}

func newMemState() *memState {
	return &memState{
		itemIdx: make(map[string]*models.Item),
		invIdx:  make(map[string]*models.Invoice),
	}
}

// undoLog collects compensations for writes made inside Atomic. A nil
// *undoLog means the write is not part of a transaction.
type undoLog struct {
	steps []func()
}

func (u *undoLog) push(fn func()) {
	if u != nil {
		u.steps = append(u.steps, fn)
	}
}

func (u *undoLog) rollback() {
	for i := len(u.steps) - 1; i >= 0; i-- {
		u.steps[i]()
	}
	u.steps = nil
}

func (st *memState) listItems(pred func(*models.Item) bool) []models.Item {
	out := make([]models.Item, 0, len(st.items))
	for _, it := range st.items {
		if pred == nil || pred(it) {
			out = append(out, *it)
		}
	}
	return out
}

func (st *memState) getItem(id string) (*models.Item, error) {
	it, ok := st.itemIdx[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (st *memState) getItems(ids []string) map[string]*models.Item {
	out := make(map[string]*models.Item, len(ids))
	for _, id := range ids {
		if it, ok := st.itemIdx[id]; ok {
			cp := *it
			out[id] = &cp
		}
	}
	return out
}

func (st *memState) createItem(item *models.Item, u *undoLog) {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	now := time.Now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	cp := *item
	st.items = append(st.items, &cp)
	st.itemIdx[cp.ID] = &cp
	u.push(func() {
		st.items = st.items[:len(st.items)-1]
		delete(st.itemIdx, cp.ID)
	})
}

func (st *memState) updateItem(item *models.Item, u *undoLog) error {
	it, ok := st.itemIdx[item.ID]
	if !ok {
		return ErrNotFound
	}
	prev := *it
	it.Name = item.Name
	it.Category = item.Category
	it.SubCategory = item.SubCategory
	it.Brand = item.Brand
	it.CostPrice = item.CostPrice
	it.SellingPrice = item.SellingPrice
	it.MinStock = item.MinStock
	it.UpdatedAt = time.Now()
	item.UpdatedAt = it.UpdatedAt
	u.push(func() { *it = prev })
	return nil
}

func (st *memState) updateStock(id string, qty int, u *undoLog) error {
	it, ok := st.itemIdx[id]
	if !ok {
		return ErrNotFound
	}
	prevQty, prevUpdated := it.StockQuantity, it.UpdatedAt
	it.StockQuantity = qty
	it.UpdatedAt = time.Now()
	u.push(func() {
		it.StockQuantity = prevQty
		it.UpdatedAt = prevUpdated
	})
	return nil
}

func (st *memState) recordMovement(m *models.StockMovement, u *undoLog) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	st.movements = append(st.movements, *m)
	u.push(func() { st.movements = st.movements[:len(st.movements)-1] })
}

func (st *memState) listMovements(itemID string) []models.StockMovement {
	var out []models.StockMovement
	for _, m := range st.movements {
		if itemID == "" || m.ItemID == itemID {
			out = append(out, m)
		}
	}
	return out
}

func (st *memState) createInvoice(inv *models.Invoice, u *undoLog) {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now()
	}
	inv.UpdatedAt = inv.CreatedAt
	for i := range inv.Lines {
		inv.Lines[i].InvoiceID = inv.ID
		if inv.Lines[i].ID == "" {
			inv.Lines[i].ID = uuid.New().String()
		}
	}
	cp := inv.Clone()
	st.invoices = append(st.invoices, cp)
	st.invIdx[cp.ID] = cp
	u.push(func() {
		st.invoices = st.invoices[:len(st.invoices)-1]
		delete(st.invIdx, cp.ID)
	})
}

func (st *memState) getInvoice(id string) (*models.Invoice, error) {
	inv, ok := st.invIdx[id]
	if !ok {
		return nil, ErrNotFound
	}
	return inv.Clone(), nil
}

func (st *memState) updateInvoiceStatus(inv *models.Invoice, u *undoLog) error {
	cur, ok := st.invIdx[inv.ID]
	if !ok {
		return ErrNotFound
	}
	prev := *cur
	cur.Status = inv.Status
	cur.CompletedAt = inv.CompletedAt
	cur.DeletedAt = inv.DeletedAt
	cur.UpdatedAt = time.Now()
	u.push(func() { *cur = prev })
	return nil
}

func (st *memState) listInvoices(f InvoiceFilter) []models.Invoice {
	out := make([]models.Invoice, 0)
	for _, inv := range st.invoices {
		if f.matches(inv) {
			out = append(out, *inv.Clone())
		}
	}
	return out
}

func (f InvoiceFilter) matches(inv *models.Invoice) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if inv.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.CreatedFrom.IsZero() && inv.CreatedAt.Before(f.CreatedFrom) {
		return false
	}
	if !f.CreatedBefore.IsZero() && !inv.CreatedAt.Before(f.CreatedBefore) {
		return false
	}
	return true
}

func (st *memState) sumInvoices(f InvoiceFilter) (int, decimal.Decimal) {
	count, total := 0, decimal.Zero
	for _, inv := range st.invoices {
		if f.matches(inv) {
			count++
			total = total.Add(inv.FinalTotal)
		}
	}
	return count, total
}

func lowStock(it *models.Item) bool { return it.IsLowStock() }

func (s *MemoryStore) ListItems(ctx context.Context) ([]models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.listItems(nil), nil
}

func (s *MemoryStore) ListLowStockItems(ctx context.Context) ([]models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.listItems(lowStock), nil
}

func (s *MemoryStore) CountItems(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.items), nil
}

func (s *MemoryStore) GetItem(ctx context.Context, id string) (*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.getItem(id)
}

func (s *MemoryStore) GetItemsForUpdate(ctx context.Context, ids []string) (map[string]*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.getItems(ids), nil
}

func (s *MemoryStore) CreateItem(ctx context.Context, item *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.createItem(item, nil)
	return nil
}

func (s *MemoryStore) UpdateItem(ctx context.Context, item *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.updateItem(item, nil)
}

func (s *MemoryStore) UpdateStock(ctx context.Context, itemID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.updateStock(itemID, quantity, nil)
}

func (s *MemoryStore) RecordMovement(ctx context.Context, m *models.StockMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.recordMovement(m, nil)
	return nil
}

func (s *MemoryStore) ListMovements(ctx context.Context, itemID string) ([]models.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.listMovements(itemID), nil
}

func (s *MemoryStore) CreateInvoice(ctx context.Context, inv *models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.createInvoice(inv, nil)
	return nil
}

func (s *MemoryStore) GetInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.getInvoice(id)
}

func (s *MemoryStore) GetInvoiceForUpdate(ctx context.Context, id string) (*models.Invoice, error) {
	return s.GetInvoice(ctx, id)
}

func (s *MemoryStore) UpdateInvoiceStatus(ctx context.Context, inv *models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.updateInvoiceStatus(inv, nil)
}

func (s *MemoryStore) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.listInvoices(filter), nil
}

func (s *MemoryStore) SumInvoices(ctx context.Context, filter InvoiceFilter) (int, decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, total := s.state.sumInvoices(filter)
	return n, total, nil
}

func (s *MemoryStore) NextInvoiceSeq(ctx context.Context) (int64, error) {
	return s.seq.Add(1), nil
}

// Atomic runs fn while holding the write lock. Readers wait until fn returns,
// so they never observe a half-applied transition.
func (s *MemoryStore) Atomic(ctx context.Context, fn func(tx Store) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{st: s.state, seq: &s.seq, undo: &undoLog{}}
	defer func() {
		if r := recover(); r != nil {
			tx.undo.rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.undo.rollback()
		return err
	}
	return nil
}

// memoryTx is the view handed to Atomic callbacks. The enclosing Atomic call
// already holds the lock.
type memoryTx struct {
	st   *memState
	seq  *atomic.Int64
	undo *undoLog
}

func (t *memoryTx) ListItems(ctx context.Context) ([]models.Item, error) {
	return t.st.listItems(nil), nil
}

func (t *memoryTx) ListLowStockItems(ctx context.Context) ([]models.Item, error) {
	return t.st.listItems(lowStock), nil
}

func (t *memoryTx) CountItems(ctx context.Context) (int, error) {
	return len(t.st.items), nil
}

func (t *memoryTx) GetItem(ctx context.Context, id string) (*models.Item, error) {
	return t.st.getItem(id)
}

func (t *memoryTx) GetItemsForUpdate(ctx context.Context, ids []string) (map[string]*models.Item, error) {
	return t.st.getItems(ids), nil
}

func (t *memoryTx) CreateItem(ctx context.Context, item *models.Item) error {
	t.st.createItem(item, t.undo)
	return nil
}

func (t *memoryTx) UpdateItem(ctx context.Context, item *models.Item) error {
	return t.st.updateItem(item, t.undo)
}

func (t *memoryTx) UpdateStock(ctx context.Context, itemID string, quantity int) error {
	return t.st.updateStock(itemID, quantity, t.undo)
}

func (t *memoryTx) RecordMovement(ctx context.Context, m *models.StockMovement) error {
	t.st.recordMovement(m, t.undo)
	return nil
}

func (t *memoryTx) ListMovements(ctx context.Context, itemID string) ([]models.StockMovement, error) {
	return t.st.listMovements(itemID), nil
}

func (t *memoryTx) CreateInvoice(ctx context.Context, inv *models.Invoice) error {
	t.st.createInvoice(inv, t.undo)
	return nil
}

func (t *memoryTx) GetInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	return t.st.getInvoice(id)
}

func (t *memoryTx) GetInvoiceForUpdate(ctx context.Context, id string) (*models.Invoice, error) {
	return t.st.getInvoice(id)
}

func (t *memoryTx) UpdateInvoiceStatus(ctx context.Context, inv *models.Invoice) error {
	return t.st.updateInvoiceStatus(inv, t.undo)
}

func (t *memoryTx) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]models.Invoice, error) {
	return t.st.listInvoices(filter), nil
}

func (t *memoryTx) SumInvoices(ctx context.Context, filter InvoiceFilter) (int, decimal.Decimal, error) {
	n, total := t.st.sumInvoices(filter)
	return n, total, nil
}

func (t *memoryTx) NextInvoiceSeq(ctx context.Context) (int64, error) {
	return t.seq.Add(1), nil
}

func (t *memoryTx) Atomic(ctx context.Context, fn func(tx Store) error) error {
	return fn(t)
}

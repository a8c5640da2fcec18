package filemanager

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// minHandleID is the smallest id assigned by Table.
// Ids start from 1 so that 0 can mean "no file" in callers.
const minHandleID = 1

// ErrInvalidHandle is returned for ids that are not registered in a Table.
var ErrInvalidHandle = errors.New("invalid file handle")

// Table は整数IDから*Handleへの対応を管理する。
// 登録されたハンドルの所有権はTableが持ち、CloseAllで全て解放される。
type Table struct {
	handles map[int]*Handle
	mu      sync.Mutex
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{
		handles: make(map[int]*Handle),
	}
}

// Add は所有権をテーブルに移し、未使用の最小ID（1以上）を返す。
// 呼び出し元のhはClosedになる。
func (t *Table) Add(h *Handle) (int, error) {
	owned, err := h.Transfer()
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	id := minHandleID
	for {
		if _, exists := t.handles[id]; !exists {
			break
		}
		id++
	}
	t.handles[id] = owned
	return id, nil
}

// Get returns the handle registered under id. The table keeps ownership.
func (t *Table) Get(id int) (*Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, exists := t.handles[id]
	if !exists {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHandle, id)
	}
	return h, nil
}

// Take removes id from the table and hands ownership back to the caller.
func (t *Table) Take(id int) (*Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, exists := t.handles[id]
	if !exists {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHandle, id)
	}
	delete(t.handles, id)
	return h.Transfer()
}

// Close closes the handle for id and frees the id for reuse.
func (t *Table) Close(id int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, exists := t.handles[id]
	if !exists {
		return fmt.Errorf("%w: %d", ErrInvalidHandle, id)
	}
	delete(t.handles, id)
	return h.Close()
}

// Len returns the number of registered handles.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handles)
}

// IDs returns the registered ids in ascending order.
func (t *Table) IDs() []int {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]int, 0, len(t.handles))
	for id := range t.handles {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// CloseAll は全てのハンドルを閉じる。
// 個別のCloseエラーは集約して返し、残りのクリーンアップは継続する。
func (t *Table) CloseAll() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var errs []error
	for id, h := range t.handles {
		if err := h.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(t.handles, id)
	}
	return errors.Join(errs...)
}

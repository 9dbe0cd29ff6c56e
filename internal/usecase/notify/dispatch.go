package notify

import (
	"slices"
	"sync"
)

// DispatchRecord хранит id отправленных уведомлений по каждому целевому каналу.
// Записи только дополняются; Take забирает их целиком.
type DispatchRecord struct {
	mu  sync.Mutex
	ids map[string][]int
}

// NewDispatchRecord создаёт пустой журнал отправок.
func NewDispatchRecord() *DispatchRecord {
	return &DispatchRecord{ids: make(map[string][]int)}
}

// Append добавляет id к записи канала, сохраняя порядок.
func (r *DispatchRecord) Append(target string, ids ...int) {
	if target == "" || len(ids) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids[target] = append(r.ids[target], ids...)
}

// Take возвращает накопленные id канала и очищает запись. Ключ остаётся в журнале.
func (r *DispatchRecord) Take(target string) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids, ok := r.ids[target]
	if !ok {
		return nil
	}
	r.ids[target] = []int{}
	return ids
}

// Contains сообщает, было ли сообщение id отправлено в канал и ещё не отозвано.
func (r *DispatchRecord) Contains(target string, id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Contains(r.ids[target], id)
}

// Snapshot возвращает копию журнала.
func (r *DispatchRecord) Snapshot() map[string][]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string][]int, len(r.ids))
	for key, ids := range r.ids {
		out[key] = slices.Clone(ids)
	}
	return out
}

// Len возвращает число id в записи канала.
func (r *DispatchRecord) Len(target string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids[target])
}

package knowledge

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mechatbot/mechatbot/errors"
)

type (
	// MemoryStore implements Store in process memory. It backs tests and the
	// zero-config facade default.
	MemoryStore struct {
		mu        sync.RWMutex
		items     map[string]*Item
		histories []UpdateHistory
		personas  map[Scope]string
		nextSeq   uint64
	}

	// MemoryIndex implements VectorIndex with brute-force cosine similarity.
	MemoryIndex struct {
		mu      sync.RWMutex
		entries map[string]*memoryVectorEntry
	}

	memoryVectorEntry struct {
		vector   []float32
		metadata map[string]any
	}
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:    make(map[string]*Item),
		personas: make(map[Scope]string),
	}
}

func (m *MemoryStore) InsertItem(ctx context.Context, text string, scope Scope) (*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	item := &Item{
		ID:        uuid.NewString(),
		Text:      text,
		Scope:     scope,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.items[item.ID] = item

	copied := *item
	return &copied, nil
}

func (m *MemoryStore) FindItemID(ctx context.Context, text string, scope Scope) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, item := range m.items {
		if item.Text == text && item.Scope == scope {
			return item.ID, nil
		}
	}
	return "", nil
}

func (m *MemoryStore) GetItemsByIDs(ctx context.Context, ids []string) ([]Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var items []Item
	for _, id := range ids {
		if item, ok := m.items[id]; ok {
			items = append(items, *item)
		}
	}
	return items, nil
}

func (m *MemoryStore) ListItemIDsByScope(ctx context.Context, scope Scope) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for _, item := range m.items {
		if item.Scope == scope {
			ids = append(ids, item.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) DeleteItemsByIDs(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	toDelete := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		toDelete[id] = struct{}{}
		delete(m.items, id)
	}

	kept := m.histories[:0]
	for _, h := range m.histories {
		if _, ok := toDelete[h.ItemID]; !ok {
			kept = append(kept, h)
		}
	}
	m.histories = kept

	return nil
}

func (m *MemoryStore) AppendHistory(ctx context.Context, itemID, revisionLabel, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, h := range m.histories {
		if h.ItemID == itemID && h.RevisionLabel == revisionLabel {
			return errors.Wrapf(errors.ErrConflict, "revision %q already exists for item %s", revisionLabel, itemID)
		}
	}

	m.nextSeq++
	m.histories = append(m.histories, UpdateHistory{
		Seq:           m.nextSeq,
		ItemID:        itemID,
		RevisionLabel: revisionLabel,
		Description:   description,
		CreatedAt:     time.Now(),
	})
	return nil
}

func (m *MemoryStore) ListHistoryByItem(ctx context.Context, itemID string) ([]UpdateHistory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var histories []UpdateHistory
	for _, h := range m.histories {
		if h.ItemID == itemID {
			histories = append(histories, h)
		}
	}
	return histories, nil
}

func (m *MemoryStore) DeleteHistoryByLabel(ctx context.Context, itemIDs []string, revisionLabel string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inScope := make(map[string]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		inScope[id] = struct{}{}
	}

	var removed int64
	kept := m.histories[:0]
	for _, h := range m.histories {
		if _, ok := inScope[h.ItemID]; ok && h.RevisionLabel == revisionLabel {
			removed++
			continue
		}
		kept = append(kept, h)
	}
	m.histories = kept

	return removed, nil
}

func (m *MemoryStore) ListRevisionLabels(ctx context.Context, scope Scope) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	var labels []string
	for _, h := range m.histories {
		item, ok := m.items[h.ItemID]
		if !ok || item.Scope != scope {
			continue
		}
		if _, ok := seen[h.RevisionLabel]; ok {
			continue
		}
		seen[h.RevisionLabel] = struct{}{}
		labels = append(labels, h.RevisionLabel)
	}
	return labels, nil
}

func (m *MemoryStore) ListInstanceNames(ctx context.Context, createdBy string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	var names []string
	for _, item := range m.items {
		if item.Scope.CreatedBy != createdBy {
			continue
		}
		if _, ok := seen[item.Scope.InstanceName]; ok {
			continue
		}
		seen[item.Scope.InstanceName] = struct{}{}
		names = append(names, item.Scope.InstanceName)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryStore) GetPersona(ctx context.Context, scope Scope) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.personas[scope], nil
}

func (m *MemoryStore) SetPersona(ctx context.Context, scope Scope, prompt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.personas[scope] = prompt
	return nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = make(map[string]*Item)
	m.histories = nil
	m.personas = make(map[Scope]string)
	return nil
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		entries: make(map[string]*memoryVectorEntry),
	}
}

func (m *MemoryIndex) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[id] = &memoryVectorEntry{
		vector:   copyFloat32Slice(vector),
		metadata: copyMap(metadata),
	}
	return nil
}

func (m *MemoryIndex) Query(ctx context.Context, vector []float32, topK int, filter *Scope) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(vector) == 0 || topK <= 0 {
		return nil, nil
	}

	var matches []Match
	for id, entry := range m.entries {
		if filter != nil && !matchesScope(entry.metadata, *filter) {
			continue
		}
		matches = append(matches, Match{
			ID:    id,
			Score: cosineSimilarity(vector, entry.vector),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score == matches[j].Score {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (m *MemoryIndex) DeleteByIDs(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		delete(m.entries, id)
	}
	return nil
}

func (m *MemoryIndex) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]*memoryVectorEntry)
	return nil
}

// Len reports the number of stored vector entries.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}

func matchesScope(metadata map[string]any, scope Scope) bool {
	createdBy, _ := metadata["createdBy"].(string)
	instanceName, _ := metadata["instanceName"].(string)
	return createdBy == scope.CreatedBy && instanceName == scope.InstanceName
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := 0; i < len(a); i++ {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return float32(dotProduct / (math.Sqrt(normA) * math.Sqrt(normB)))
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}

	result := make(map[string]any, len(m))
	for k, v := range m {
		result[k] = v
	}
	return result
}

func copyFloat32Slice(s []float32) []float32 {
	if s == nil {
		return nil
	}

	result := make([]float32, len(s))
	copy(result, s)
	return result
}

var (
	_ Store       = (*MemoryStore)(nil)
	_ VectorIndex = (*MemoryIndex)(nil)
)

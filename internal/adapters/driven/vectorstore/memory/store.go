// Package memory provides an in-memory vector store with exact cosine
// similarity search, partitioned by domain. It is the default index for
// local-first use: no external services, full JSON export/import.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
	"github.com/custodia-labs/parley-cli/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// storedDoc pairs a document with its insertion sequence, used for stable
// tie-breaking in query results.
type storedDoc struct {
	doc domain.VectorDocument
	seq int
}

// partition is one domain: a document map plus an inverted tag index.
type partition struct {
	docs    map[string]*storedDoc
	tags    map[string]map[string]bool // tag -> set of document IDs
	nextSeq int
}

func newPartition() *partition {
	return &partition{
		docs: make(map[string]*storedDoc),
		tags: make(map[string]map[string]bool),
	}
}

// Store is an in-memory implementation of driven.VectorStore.
type Store struct {
	mu         sync.RWMutex
	partitions map[string]*partition
}

// NewStore creates an empty vector store.
func NewStore() *Store {
	return &Store{
		partitions: make(map[string]*partition),
	}
}

// AddDocument inserts or overwrites a document by ID and registers its tags.
// Overwriting keeps the original insertion sequence so result ordering stays
// stable across updates.
func (s *Store) AddDocument(_ context.Context, domainName string, doc domain.VectorDocument, tags ...string) error {
	if doc.ID == "" {
		return fmt.Errorf("add document: %w: empty id", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	part, ok := s.partitions[domainName]
	if !ok {
		part = newPartition()
		s.partitions[domainName] = part
	}

	if existing, ok := part.docs[doc.ID]; ok {
		existing.doc = doc
	} else {
		part.docs[doc.ID] = &storedDoc{doc: doc, seq: part.nextSeq}
		part.nextSeq++
	}

	for _, tag := range tags {
		if tag == "" {
			continue
		}
		bucket, ok := part.tags[tag]
		if !ok {
			bucket = make(map[string]bool)
			part.tags[tag] = bucket
		}
		bucket[doc.ID] = true
	}

	return nil
}

// QueryDocuments computes cosine similarity between the query vector and
// every candidate. Candidates are the union of the given tag buckets, or the
// whole domain when no tags are given. Results are sorted by similarity
// descending with ties broken by insertion order, truncated to TopK.
func (s *Store) QueryDocuments(_ context.Context, domainName string, query driven.VectorQuery) ([]driven.VectorHit, error) {
	topK := query.TopK
	if topK <= 0 {
		topK = driven.DefaultTopK
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	part, ok := s.partitions[domainName]
	if !ok {
		return []driven.VectorHit{}, nil
	}

	candidates := s.candidateIDs(part, query.Tags)

	type scored struct {
		doc domain.VectorDocument
		sim float64
		seq int
	}

	hits := make([]scored, 0, len(candidates))
	for _, id := range candidates {
		sd := part.docs[id]
		sim, err := domain.CosineSimilarity(query.Vector, sd.doc.Vector)
		if err != nil {
			return nil, fmt.Errorf("query %s/%s: %w", domainName, id, err)
		}
		hits = append(hits, scored{doc: sd.doc, sim: sim, seq: sd.seq})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].sim != hits[j].sim {
			return hits[i].sim > hits[j].sim
		}
		return hits[i].seq < hits[j].seq
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}

	results := make([]driven.VectorHit, len(hits))
	for i, h := range hits {
		results[i] = driven.VectorHit{Document: h.doc, Similarity: h.sim}
	}
	return results, nil
}

// candidateIDs resolves the candidate set under a read lock.
func (s *Store) candidateIDs(part *partition, tags []string) []string {
	if len(tags) == 0 {
		ids := make([]string, 0, len(part.docs))
		for id := range part.docs {
			ids = append(ids, id)
		}
		return ids
	}

	seen := make(map[string]bool)
	var ids []string
	for _, tag := range tags {
		for id := range part.tags[tag] {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// DeleteDocument removes the document and prunes now-empty tag buckets.
func (s *Store) DeleteDocument(_ context.Context, domainName, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	part, ok := s.partitions[domainName]
	if !ok {
		return nil
	}

	delete(part.docs, id)
	for tag, bucket := range part.tags {
		delete(bucket, id)
		if len(bucket) == 0 {
			delete(part.tags, tag)
		}
	}
	return nil
}

// DeleteDomain removes an entire partition.
func (s *Store) DeleteDomain(_ context.Context, domainName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.partitions, domainName)
	return nil
}

// snapshot is the JSON export format: documents keyed by domain and ID, a
// parallel tag map, and insertion order so tie-breaking survives round trips.
type snapshot struct {
	Domains map[string]map[string]domain.VectorDocument `json:"domains"`
	Tags    map[string]map[string][]string              `json:"tags"`
	Order   map[string][]string                         `json:"order"`
}

// Export serialises all domains, documents and tags as JSON.
func (s *Store) Export(_ context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := snapshot{
		Domains: make(map[string]map[string]domain.VectorDocument, len(s.partitions)),
		Tags:    make(map[string]map[string][]string, len(s.partitions)),
		Order:   make(map[string][]string, len(s.partitions)),
	}

	for name, part := range s.partitions {
		docs := make(map[string]domain.VectorDocument, len(part.docs))
		ordered := make([]string, 0, len(part.docs))
		for id, sd := range part.docs {
			docs[id] = sd.doc
			ordered = append(ordered, id)
		}
		sort.Slice(ordered, func(i, j int) bool {
			return part.docs[ordered[i]].seq < part.docs[ordered[j]].seq
		})

		tags := make(map[string][]string, len(part.tags))
		for tag, bucket := range part.tags {
			ids := make([]string, 0, len(bucket))
			for id := range bucket {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			tags[tag] = ids
		}

		snap.Domains[name] = docs
		snap.Tags[name] = tags
		snap.Order[name] = ordered
	}

	return json.Marshal(snap)
}

// Import replaces the store contents atomically: the snapshot is fully
// parsed and validated before the existing state is swapped out.
func (s *Store) Import(_ context.Context, data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("import: %w", err)
	}

	partitions := make(map[string]*partition, len(snap.Domains))
	for name, docs := range snap.Domains {
		part := newPartition()

		order := snap.Order[name]
		seen := make(map[string]bool, len(order))
		for _, id := range order {
			doc, ok := docs[id]
			if !ok {
				continue
			}
			part.docs[id] = &storedDoc{doc: doc, seq: part.nextSeq}
			part.nextSeq++
			seen[id] = true
		}
		// Documents missing from the order list still load, after it.
		remainder := make([]string, 0)
		for id := range docs {
			if !seen[id] {
				remainder = append(remainder, id)
			}
		}
		sort.Strings(remainder)
		for _, id := range remainder {
			part.docs[id] = &storedDoc{doc: docs[id], seq: part.nextSeq}
			part.nextSeq++
		}

		for tag, ids := range snap.Tags[name] {
			bucket := make(map[string]bool, len(ids))
			for _, id := range ids {
				if _, ok := part.docs[id]; ok {
					bucket[id] = true
				}
			}
			if len(bucket) > 0 {
				part.tags[tag] = bucket
			}
		}

		partitions[name] = part
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.partitions = partitions
	return nil
}

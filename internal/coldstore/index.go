package coldstore

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/skyblock-archive/auctions/internal/bloom"
	"github.com/skyblock-archive/auctions/internal/metrics"
)

const (
	masterBloomKey    = "index/master_bloom_0.bin"
	masterCapacity    = 100_000_000
	masterTargetFPR   = 0.001
	perTagCapacity    = 1_000_000
	perTagTargetFPR   = 0.01
)

func perTagBloomKey(tag string) string {
	return fmt.Sprintf("index/%s/bloom.bin", sanitizeTag(tag))
}

// tagIndex records which (year, month) blobs exist for one tag, alongside
// its bloom filter — persisted as a small sidecar object next to the
// filter bits themselves.
type tagIndex struct {
	filter *bloom.Filter
	months map[monthKey]struct{}
}

type monthKey struct {
	Year, Month int
}

// indexManager owns the master bloom and one tagIndex per tag, serializing
// concurrent updates to the same tag behind a per-tag lock (spec.md
// section 4.5: "concurrent updates to the same tag are serialized by a
// per-process lock keyed on the tag name").
type indexManager struct {
	client ObjectClient

	mu      sync.Mutex
	master  *bloom.Filter
	perTag  map[string]*tagIndex
	tagLock map[string]*sync.Mutex
}

func newIndexManager(client ObjectClient) *indexManager {
	return &indexManager{
		client:  client,
		master:  bloom.New(masterCapacity, masterTargetFPR),
		perTag:  make(map[string]*tagIndex),
		tagLock: make(map[string]*sync.Mutex),
	}
}

func (m *indexManager) lockFor(tag string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tagLock[tag] == nil {
		m.tagLock[tag] = &sync.Mutex{}
	}
	return m.tagLock[tag]
}

// loadMaster hydrates the master bloom from the object store, if present.
func (m *indexManager) loadMaster(ctx context.Context) error {
	body, err := m.client.Get(ctx, masterBloomKey)
	if err != nil {
		if _, ok := err.(ErrObjectNotFound); ok {
			return nil
		}
		return err
	}
	defer body.Close()
	buf, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f, err := bloom.Deserialize(buf)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.master = f
	m.mu.Unlock()
	return nil
}

func (m *indexManager) loadTag(ctx context.Context, tag string) (*tagIndex, error) {
	m.mu.Lock()
	existing, ok := m.perTag[tag]
	m.mu.Unlock()
	if ok {
		return existing, nil
	}

	idx := &tagIndex{filter: bloom.New(perTagCapacity, perTagTargetFPR), months: make(map[monthKey]struct{})}
	body, err := m.client.Get(ctx, perTagBloomKey(tag))
	if err != nil {
		if _, ok := err.(ErrObjectNotFound); ok {
			m.mu.Lock()
			m.perTag[tag] = idx
			m.mu.Unlock()
			return idx, nil
		}
		return nil, err
	}
	defer body.Close()
	buf, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	f, err := bloom.Deserialize(buf)
	if err != nil {
		return nil, err
	}
	idx.filter = f

	m.mu.Lock()
	m.perTag[tag] = idx
	m.mu.Unlock()
	return idx, nil
}

// recordMonth adds every uuid to the tag's and master's bloom, marks the
// (year, month) as present, and persists both filters.
func (m *indexManager) recordMonth(ctx context.Context, tag string, year, month int, uuids []string) error {
	lock := m.lockFor(tag)
	lock.Lock()
	defer lock.Unlock()

	idx, err := m.loadTag(ctx, tag)
	if err != nil {
		return err
	}

	for _, id := range uuids {
		idx.filter.Add(id)
		m.mu.Lock()
		m.master.Add(id)
		m.mu.Unlock()
	}
	idx.months[monthKey{year, month}] = struct{}{}

	metrics.BloomObservedFPR.WithLabelValues("tag:" + tag).Set(idx.filter.EstimatedFPR())

	if err := m.client.Put(ctx, perTagBloomKey(tag), idx.filter.Serialize(), map[string]string{"tag": tag}); err != nil {
		return err
	}
	m.mu.Lock()
	masterBuf := m.master.Serialize()
	masterFPR := m.master.EstimatedFPR()
	m.mu.Unlock()
	metrics.BloomObservedFPR.WithLabelValues("master").Set(masterFPR)
	return m.client.Put(ctx, masterBloomKey, masterBuf, nil)
}

func (m *indexManager) mayContainMaster(uuid string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.master.MayContain(uuid)
}

// discoverTags lists the index/ prefix in the object store and returns
// every tag that has a persisted bloom filter, regardless of whether this
// process has loaded or written that tag itself — a fresh cmd/server
// instance that never called recordMonth still needs to find tags
// cmd/migrator archived in a different process.
func (m *indexManager) discoverTags(ctx context.Context) ([]string, error) {
	keys, err := m.client.List(ctx, "index/")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var tags []string
	for _, key := range keys {
		parts := strings.Split(key, "/")
		if len(parts) != 3 || parts[2] != "bloom.bin" {
			continue
		}
		tag := parts[1]
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags, nil
}

func (m *indexManager) tagsAndMonths(uuid string, ctx context.Context) (map[string][]monthKey, error) {
	discovered, err := m.discoverTags(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	tagSet := make(map[string]struct{}, len(discovered)+len(m.perTag))
	for _, t := range discovered {
		tagSet[t] = struct{}{}
	}
	for t := range m.perTag {
		tagSet[t] = struct{}{}
	}
	m.mu.Unlock()

	out := make(map[string][]monthKey)
	for tag := range tagSet {
		idx, err := m.loadTag(ctx, tag)
		if err != nil {
			return nil, err
		}
		if !idx.filter.MayContain(uuid) {
			continue
		}
		for mk := range idx.months {
			out[tag] = append(out[tag], mk)
		}
	}
	return out, nil
}

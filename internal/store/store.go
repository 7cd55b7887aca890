// Package store holds the versioned documents the snapshot feed serves.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/technobid/auction-backend/pkg/types"
)

type Store interface {
	// Put keeps, per key, the document with the highest version and
	// forwards every kept document to matching subscribers.
	Put(ctx context.Context, docs ...types.Document) error
	Get(key string) (types.Document, bool)
	List(prefix string) []types.Document
	// Snapshot returns every live document and the highest version seen.
	Snapshot() ([]types.Document, uint64)
	// Subscribe streams documents under prefix until cancel is called. The
	// channel is closed when the subscriber falls behind.
	Subscribe(prefix string) (<-chan types.Document, func())
	SubscribeSnapshot(prefix string) ([]types.Document, <-chan types.Document, func())
}

// Mirror persists documents outside the process.
type Mirror interface {
	Save(ctx context.Context, docs []types.Document) error
	Load(ctx context.Context) ([]types.Document, error)
}

const subscriberBuffer = 256

type subscriber struct {
	prefix string
	ch     chan types.Document
}

type Memory struct {
	mu      sync.RWMutex
	docs    map[string]types.Document
	version uint64
	subs    map[int]*subscriber
	nextSub int
	mirror  Mirror
	log     *zap.Logger
}

type Option func(*Memory)

func WithMirror(m Mirror) Option {
	return func(s *Memory) { s.mirror = m }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Memory) { s.log = log }
}

func NewMemory(opts ...Option) *Memory {
	s := &Memory{
		docs: map[string]types.Document{},
		subs: map[int]*subscriber{},
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore loads the mirror's documents without notifying subscribers.
func (s *Memory) Restore(ctx context.Context) ([]types.Document, error) {
	if s.mirror == nil {
		return nil, nil
	}
	docs, err := s.mirror.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore documents: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range docs {
		s.keepLocked(d)
	}
	return docs, nil
}

func (s *Memory) Put(ctx context.Context, docs ...types.Document) error {
	if len(docs) == 0 {
		return nil
	}
	kept := make([]types.Document, 0, len(docs))

	s.mu.Lock()
	for _, d := range docs {
		if s.keepLocked(d) {
			kept = append(kept, d)
		}
	}
	for id, sub := range s.subs {
		if !s.deliverLocked(sub, kept) {
			s.log.Warn("dropping slow feed subscriber", zap.Int("subscriber", id), zap.String("prefix", sub.prefix))
			close(sub.ch)
			delete(s.subs, id)
		}
	}
	s.mu.Unlock()

	if s.mirror == nil || len(kept) == 0 {
		return nil
	}
	if err := s.mirror.Save(ctx, kept); err != nil {
		return fmt.Errorf("mirror %d documents: %w", len(kept), err)
	}
	return nil
}

// deliverLocked reports false when sub's buffer is full.
func (s *Memory) deliverLocked(sub *subscriber, docs []types.Document) bool {
	for _, d := range docs {
		if !d.HasPrefix(sub.prefix) {
			continue
		}
		select {
		case sub.ch <- d:
		default:
			return false
		}
	}
	return true
}

func (s *Memory) keepLocked(d types.Document) bool {
	if cur, ok := s.docs[d.Key]; ok && cur.Version >= d.Version {
		return false
	}
	s.docs[d.Key] = d
	if d.Version > s.version {
		s.version = d.Version
	}
	return true
}

func (s *Memory) Get(key string) (types.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[key]
	if !ok || d.Deleted {
		return types.Document{}, false
	}
	return d, true
}

func (s *Memory) List(prefix string) []types.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(prefix)
}

func (s *Memory) listLocked(prefix string) []types.Document {
	out := []types.Document{}
	for _, d := range s.docs {
		if !d.Deleted && d.HasPrefix(prefix) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (s *Memory) Snapshot() ([]types.Document, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(""), s.version
}

func (s *Memory) Subscribe(prefix string) (<-chan types.Document, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribeLocked(prefix)
}

// SubscribeSnapshot takes a snapshot and subscribes under one lock, so no
// change falls between the two.
func (s *Memory) SubscribeSnapshot(prefix string) ([]types.Document, <-chan types.Document, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := s.listLocked(prefix)
	ch, cancel := s.subscribeLocked(prefix)
	return docs, ch, cancel
}

func (s *Memory) subscribeLocked(prefix string) (<-chan types.Document, func()) {
	id := s.nextSub
	s.nextSub++
	sub := &subscriber{prefix: prefix, ch: make(chan types.Document, subscriberBuffer)}
	s.subs[id] = sub

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if cur, ok := s.subs[id]; ok && cur == sub {
				close(sub.ch)
				delete(s.subs, id)
			}
		})
	}
	return sub.ch, cancel
}

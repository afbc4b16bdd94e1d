package usecase

import (
	"context"
	"sync"

	"github.com/recipebox/backend/internal/domain"
)

// fakeStore is an in-memory domain.KeyValueStore with injectable failures
type fakeStore struct {
	mu      sync.Mutex
	data    map[string]string
	getErr  error
	setErr  error
	sets    []string // keys in write order
	deletes []string

	// set by blockSets: Set signals setStarted, then waits for gate
	gate       chan struct{}
	setStarted chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", f.getErr
	}
	v, ok := f.data[key]
	if !ok {
		return "", domain.ErrKeyNotFound
	}
	return v, nil
}

func (f *fakeStore) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	gate, started := f.gate, f.setStarted
	f.mu.Unlock()
	if gate != nil {
		select {
		case started <- struct{}{}:
		default:
		}
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets = append(f.sets, key)
	if f.setErr != nil {
		return f.setErr
	}
	f.data[key] = value
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, key)
	delete(f.data, key)
	return nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) value(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	return v, ok
}

func (f *fakeStore) put(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
}

func (f *fakeStore) setCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sets)
}

// blockSets stalls every Set until the returned func is called
func (f *fakeStore) blockSets() (release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gate = gate
	f.setStarted = make(chan struct{}, 1)
	var once sync.Once
	return func() {
		once.Do(func() { close(gate) })
	}
}

func (f *fakeStore) failSets(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setErr = err
}

type catalogCall struct {
	path   string
	params domain.QueryParams
}

// fakeCatalog answers every Fetch with the configured payload or error
type fakeCatalog struct {
	payload []byte
	err     error
	calls   []catalogCall
}

func (f *fakeCatalog) Fetch(ctx context.Context, path string, params domain.QueryParams) ([]byte, error) {
	f.calls = append(f.calls, catalogCall{path: path, params: params})
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

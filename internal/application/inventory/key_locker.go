package inventory

import (
	"context"
	"sort"
	"sync"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// KeyLocker exclusión mutua por posición (item, bodega), sin bloqueo global.
// Varias claves se adquieren siempre en el orden de entity.PositionKey.Less, lo que evita
// esperas circulares entre traslados concurrentes en sentidos opuestos.
type KeyLocker struct {
	mu    sync.Mutex
	locks map[entity.PositionKey]*keyLock
}

type keyLock struct {
	ch   chan struct{} // capacidad 1: lleno = tomado
	refs int
}

// NewKeyLocker construye el locker.
func NewKeyLocker() *KeyLocker {
	return &KeyLocker{locks: make(map[entity.PositionKey]*keyLock)}
}

// Lock adquiere todas las claves o ninguna. Si ctx vence antes, libera lo tomado y devuelve ctx.Err().
// La función devuelta libera las claves; llamarla más de una vez no tiene efecto.
func (l *KeyLocker) Lock(ctx context.Context, keys ...entity.PositionKey) (func(), error) {
	ordered := sortedUnique(keys)
	held := make([]entity.PositionKey, 0, len(ordered))
	for _, k := range ordered {
		if err := l.acquire(ctx, k); err != nil {
			l.releaseAll(held)
			return nil, err
		}
		held = append(held, k)
	}
	var once sync.Once
	return func() { once.Do(func() { l.releaseAll(held) }) }, nil
}

func (l *KeyLocker) acquire(ctx context.Context, k entity.PositionKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	e, ok := l.locks[k]
	if !ok {
		e = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[k] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.release(k, false)
		return ctx.Err()
	}
}

func (l *KeyLocker) releaseAll(held []entity.PositionKey) {
	for i := len(held) - 1; i >= 0; i-- {
		l.release(held[i], true)
	}
}

func (l *KeyLocker) release(k entity.PositionKey, held bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.locks[k]
	if held {
		<-e.ch
	}
	e.refs--
	if e.refs == 0 {
		delete(l.locks, k)
	}
}

// size número de claves con interesados (tomadas o en espera).
func (l *KeyLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func sortedUnique(keys []entity.PositionKey) []entity.PositionKey {
	out := make([]entity.PositionKey, 0, len(keys))
	seen := make(map[entity.PositionKey]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

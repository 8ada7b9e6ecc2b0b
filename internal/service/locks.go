package service

import (
	"sync"

	"github.com/google/uuid"
)

// walletLocks serializes transfer execution per source wallet. Mutual
// exclusion only; acquisition order across waiters is not guaranteed.
// Requests against different wallets proceed fully in parallel.
type walletLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newWalletLocks() *walletLocks {
	return &walletLocks{locks: make(map[uuid.UUID]*sync.Mutex)}
}

// lock acquires the mutex for a wallet and returns its unlock function.
func (w *walletLocks) lock(walletID uuid.UUID) func() {
	w.mu.Lock()
	m, ok := w.locks[walletID]
	if !ok {
		m = &sync.Mutex{}
		w.locks[walletID] = m
	}
	w.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// reservations tracks amount+fee held against source wallets by accepted
// transfers whose debit has not yet reached a terminal outcome. Keyed by
// request id so releases are idempotent.
type reservations struct {
	mu       sync.Mutex
	byReq    map[string]reservation
	byWallet map[uuid.UUID]int64
}

type reservation struct {
	walletID uuid.UUID
	micros   int64
}

func newReservations() *reservations {
	return &reservations{
		byReq:    make(map[string]reservation),
		byWallet: make(map[uuid.UUID]int64),
	}
}

// reserve holds micros against a wallet for a request. Reports whether this
// call created the hold; a request that already holds one is left untouched.
func (r *reservations) reserve(requestID string, walletID uuid.UUID, micros int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byReq[requestID]; exists {
		return false
	}
	r.byReq[requestID] = reservation{walletID: walletID, micros: micros}
	r.byWallet[walletID] += micros
	return true
}

// release frees the reservation held by a request, if any.
func (r *reservations) release(requestID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, exists := r.byReq[requestID]
	if !exists {
		return
	}
	delete(r.byReq, requestID)
	r.byWallet[res.walletID] -= res.micros
	if r.byWallet[res.walletID] <= 0 {
		delete(r.byWallet, res.walletID)
	}
}

// held returns the total micros currently reserved against a wallet.
func (r *reservations) held(walletID uuid.UUID) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byWallet[walletID]
}

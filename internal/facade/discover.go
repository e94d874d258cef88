package facade

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"
)

// Discoverer reports the current set of live coordinator endpoints, the
// generalization of cmd/server/main.go's static flagPeers list into
// something that can be refreshed at runtime.
type Discoverer interface {
	Endpoints() []string
}

// StaticDiscoverer is a fixed peer list, the direct equivalent of the
// teacher's comma-split flagPeers.
type StaticDiscoverer []string

func (s StaticDiscoverer) Endpoints() []string { return []string(s) }

// RefreshingDiscoverer polls a source function on an interval and serves
// the most recently fetched endpoint list, so a client doesn't pay a
// network round trip on every pick.
type RefreshingDiscoverer struct {
	mu        sync.RWMutex
	endpoints []string
	fetch     func(ctx context.Context) ([]string, error)
	interval  time.Duration
	closeCh   chan struct{}
	wg        sync.WaitGroup
}

// NewRefreshingDiscoverer starts a background poller that calls fetch
// every interval and caches the result for Endpoints to serve.
func NewRefreshingDiscoverer(ctx context.Context, interval time.Duration, fetch func(ctx context.Context) ([]string, error)) *RefreshingDiscoverer {
	d := &RefreshingDiscoverer{fetch: fetch, interval: interval, closeCh: make(chan struct{})}
	if eps, err := fetch(ctx); err == nil {
		d.endpoints = eps
	}
	d.wg.Add(1)
	go d.refreshLoop(ctx)
	return d
}

func (d *RefreshingDiscoverer) refreshLoop(ctx context.Context) {
	defer d.wg.Done()
	t := time.NewTicker(d.interval)
	defer t.Stop()
	for {
		select {
		case <-d.closeCh:
			return
		case <-ctx.Done():
			return
		case <-t.C:
			eps, err := d.fetch(ctx)
			if err != nil {
				continue
			}
			d.mu.Lock()
			d.endpoints = eps
			d.mu.Unlock()
		}
	}
}

func (d *RefreshingDiscoverer) Endpoints() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, len(d.endpoints))
	copy(out, d.endpoints)
	return out
}

// Close stops the background refresh goroutine.
func (d *RefreshingDiscoverer) Close() {
	close(d.closeCh)
	d.wg.Wait()
}

// ErrNoEndpoints is returned by PickEndpoint when the discovery list is
// still empty after waitTimeout has elapsed.
var ErrNoEndpoints = errors.New("facade: no endpoints available")

// PickEndpoint reservoir-samples one endpoint uniformly at random from
// d's current list, retrying with a short backoff until waitTimeout
// elapses if the list is momentarily empty (spec §4.5: client-side
// endpoint selection must tolerate a discovery list that hasn't
// populated yet).
func PickEndpoint(d Discoverer, waitTimeout time.Duration) (string, error) {
	deadline := time.Now().Add(waitTimeout)
	for {
		eps := d.Endpoints()
		if len(eps) > 0 {
			return reservoirSample(eps), nil
		}
		if time.Now().After(deadline) {
			return "", ErrNoEndpoints
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// reservoirSample implements reservoir sampling of size 1: a single pass
// that picks each element with probability 1/(i+1), leaving a uniform
// choice over eps without weighting earlier entries more heavily.
func reservoirSample(eps []string) string {
	chosen := eps[0]
	for i := 1; i < len(eps); i++ {
		if rand.Intn(i+1) == 0 {
			chosen = eps[i]
		}
	}
	return chosen
}

// Package monitor periodically checks that the target URLs behind active
// links are still reachable, logging every state transition.
package monitor

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/axellelanca/shortly/internal/repository"
)

// UrlMonitor polls the targets of all active links on a fixed interval and
// remembers the last observed state per link so only changes get logged.
type UrlMonitor struct {
	linkRepo    repository.LinkRepository
	interval    time.Duration
	knownStates map[string]bool // link ID -> reachable
	mu          sync.Mutex
	httpClient  *http.Client
}

// NewUrlMonitor creates a monitor checking every interval.
func NewUrlMonitor(linkRepo repository.LinkRepository, interval time.Duration) *UrlMonitor {
	return &UrlMonitor{
		linkRepo:    linkRepo,
		interval:    interval,
		knownStates: make(map[string]bool),
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Start runs the monitoring loop until ctx is cancelled. An immediate check
// runs on startup before the first tick.
func (m *UrlMonitor) Start(ctx context.Context) {
	log.Printf("[MONITOR] Starting URL monitor with interval of %v...", m.interval)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.checkUrls(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("[MONITOR] URL monitor stopped.")
			return
		case <-ticker.C:
			m.checkUrls(ctx)
		}
	}
}

// checkUrls tests every active link's target and logs transitions.
func (m *UrlMonitor) checkUrls(ctx context.Context) {
	links, err := m.linkRepo.ListActive(ctx)
	if err != nil {
		log.Printf("[MONITOR] ERROR retrieving links for monitoring: %v", err)
		return
	}

	for _, link := range links {
		currentState := m.isUrlAccessible(ctx, link.TargetURL)

		m.mu.Lock()
		previousState, seen := m.knownStates[link.ID]
		m.knownStates[link.ID] = currentState
		m.mu.Unlock()

		if !seen {
			log.Printf("[MONITOR] Initial state for link %s (%s): %s",
				link.ShortID, link.TargetURL, formatState(currentState))
			continue
		}

		if previousState != currentState {
			log.Printf("[MONITOR] State change for link %s (%s): %s -> %s",
				link.ShortID, link.TargetURL, formatState(previousState), formatState(currentState))
		}
	}
}

// isUrlAccessible treats any HTTP response below 400 as reachable.
func (m *UrlMonitor) isUrlAccessible(ctx context.Context, target string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return false
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode < 400
}

func formatState(accessible bool) string {
	if accessible {
		return "accessible"
	}
	return "inaccessible"
}

// Package workers persists click analytics rows asynchronously so the
// redirect path never waits on an extra write. The authoritative click
// counter is incremented synchronously by the resolver; these rows only add
// the when/who detail.
package workers

import (
	"context"
	"log"

	"github.com/axellelanca/shortly/internal/models"
	"github.com/axellelanca/shortly/internal/repository"
)

// StartClickWorkers launches a pool of goroutines draining clickEventsChan.
// Workers exit when the channel is closed.
func StartClickWorkers(workerCount int, clickEventsChan <-chan models.ClickEvent, clickRepo repository.ClickRepository) {
	log.Printf("Starting %d click worker(s)...", workerCount)
	for i := 0; i < workerCount; i++ {
		go clickWorker(clickEventsChan, clickRepo)
	}
}

func clickWorker(clickEventsChan <-chan models.ClickEvent, clickRepo repository.ClickRepository) {
	for event := range clickEventsChan {
		click := &models.Click{
			LinkID:    event.LinkID,
			Timestamp: event.Timestamp,
			UserAgent: event.UserAgent,
			IPAddress: event.IPAddress,
		}

		// Log and keep going: one failed row must not stall the pool.
		if err := clickRepo.CreateClick(context.Background(), click); err != nil {
			log.Printf("ERROR: failed to save click for link %s (UserAgent: %s, IP: %s): %v",
				event.LinkID, event.UserAgent, event.IPAddress, err)
		}
	}
}

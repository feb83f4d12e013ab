package catalog

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Enrich fills in class and author for every plugin by asking src for its
// details, running at most workers lookups at once. Plugins whose lookup
// fails keep their listing data. The input slice is not modified.
func Enrich(ctx context.Context, src Source, plugins []Plugin, workers int) []Plugin {
	if workers <= 0 {
		workers = 4
	}

	out := append([]Plugin(nil), plugins...)
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	var failed int
	var mu sync.Mutex

	for i := range out {
		if !out[i].Valid() {
			continue
		}
		select {
		case <-ctx.Done():
			wg.Wait()
			return out
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(p *Plugin) {
			defer wg.Done()
			defer func() { <-sem }()

			info, err := src.Info(ctx, p.URI)
			if err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
				log.Debugf("[CATALOG] No info for %s: %v", p.URI, err)
				return
			}
			p.Class = info.Class
			p.Author = info.Author
		}(&out[i])
	}
	wg.Wait()

	if failed > 0 {
		log.Warnf("[CATALOG] Info lookup failed for %d of %d plugins", failed, len(out))
	}
	return out
}

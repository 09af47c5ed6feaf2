package engine

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/autospot-crawl/pkg/models"
)

// detailJob is one detail page to fetch
type detailJob struct {
	url      string
	category models.Category
	page     int
}

// detailPool runs detail jobs on a fixed number of workers
type detailPool struct {
	concurrency int
	jobs        chan detailJob
	handle      func(ctx context.Context, job detailJob)
	wg          sync.WaitGroup
}

func newDetailPool(concurrency int, handle func(ctx context.Context, job detailJob)) *detailPool {
	if concurrency <= 0 {
		concurrency = 8
	}
	if concurrency > 32 {
		concurrency = 32
	}
	return &detailPool{
		concurrency: concurrency,
		jobs:        make(chan detailJob, concurrency*2),
		handle:      handle,
	}
}

// start launches the workers
func (p *detailPool) start(ctx context.Context) {
	for w := 1; w <= p.concurrency; w++ {
		p.wg.Add(1)
		go p.worker(ctx, w)
	}
}

// submit queues a job, blocking while the queue is full. It reports false
// when ctx ended first.
func (p *detailPool) submit(ctx context.Context, job detailJob) bool {
	select {
	case p.jobs <- job:
		return true
	case <-ctx.Done():
		return false
	}
}

// close stops accepting jobs and waits for the queued ones
func (p *detailPool) close() {
	close(p.jobs)
	p.wg.Wait()
}

func (p *detailPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	log.Debug().Int("worker_id", id).Msg("Worker started")

	for job := range p.jobs {
		// Drain without work once cancelled
		if ctx.Err() != nil {
			continue
		}

		log.Debug().
			Int("worker_id", id).
			Str("url", job.url).
			Int("page", job.page).
			Msg("Worker processing detail page")

		p.handle(ctx, job)
	}

	log.Debug().Int("worker_id", id).Msg("Worker finished")
}

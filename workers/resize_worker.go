package workers

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/openalbum/albumd/album"
)

// ResizeJob regenerates the size variants of one image in one album,
// typically after a rotation left them stale.
type ResizeJob struct {
	Album          *album.Album
	ImageName      string
	ForceThumbnail bool
}

// ResizePool is a bounded worker pool for background variant regeneration.
// Per-image work stays sequential inside each album; the pool only fans out
// across albums.
type ResizePool struct {
	JobQueue chan ResizeJob
	Wg       sync.WaitGroup
	StopChan chan struct{}
	Pending  map[string]bool
	Mutex    sync.Mutex
}

func NewResizePool(queueSize, numWorkers int) *ResizePool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	pool := &ResizePool{
		JobQueue: make(chan ResizeJob, queueSize),
		StopChan: make(chan struct{}),
		Pending:  make(map[string]bool),
	}
	pool.Wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go pool.worker(i)
	}
	log.Printf("Started %d resize worker(s) with queue size %d", numWorkers, queueSize)
	return pool
}

func (p *ResizePool) worker(id int) {
	defer p.Wg.Done()

	log.Printf("Resize worker %d started", id)
	for {
		select {
		case job, ok := <-p.JobQueue:
			if !ok {
				log.Printf("Resize worker %d stopping: job queue closed", id)
				return
			}

			pendingKey := pendingKey(job)
			log.Printf("Worker %d: regenerating variants for %s in album %s", id, job.ImageName, job.Album.ID())

			err := job.Album.RegenerateSizes(context.Background(), job.ImageName, job.ForceThumbnail)
			if err != nil {
				log.Printf("Worker %d: ERROR regenerating %s: %v", id, job.ImageName, err)
			}

			p.Mutex.Lock()
			delete(p.Pending, pendingKey)
			p.Mutex.Unlock()

		case <-p.StopChan:
			log.Printf("Resize worker %d stopping: stop signal received", id)
			return
		}
	}
}

// QueueJob queues regeneration for an image unless it is already pending.
func (p *ResizePool) QueueJob(job ResizeJob) bool {
	key := pendingKey(job)

	p.Mutex.Lock()
	if p.Pending[key] {
		p.Mutex.Unlock()
		return false
	}
	p.Pending[key] = true
	p.Mutex.Unlock()

	select {
	case p.JobQueue <- job:
		log.Printf("Queued variant regeneration for %s in album %s", job.ImageName, job.Album.ID())
		return true
	default:
		log.Printf("WARNING: resize queue full, dropping job for %s", job.ImageName)
		p.Mutex.Lock()
		delete(p.Pending, key)
		p.Mutex.Unlock()
		return false
	}
}

func (p *ResizePool) Stop() {
	log.Println("Stopping resize workers...")
	close(p.StopChan)
	p.Wg.Wait()
	log.Println("All resize workers stopped")
}

func pendingKey(job ResizeJob) string {
	return fmt.Sprintf("%s:%s", job.Album.ID(), job.ImageName)
}

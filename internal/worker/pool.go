package worker

import (
	"context"
	"errors"
	"log"
	"sync"

	"chatbot-backend/internal/session"
)

var ErrQueueFull = errors.New("speech queue is full")

type speechJob struct {
	text   string
	locale string
}

// Pool puts a bounded queue and a fixed number of goroutines in front of a
// Speaker. Speak only enqueues, so the caller never waits on synthesis.
type Pool struct {
	speaker     session.Speaker
	jobs        chan speechJob
	workerCount int
	stopChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func NewPool(speaker session.Speaker, workerCount, capacity int) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	if capacity < 1 {
		capacity = 1
	}
	return &Pool{
		speaker:     speaker,
		jobs:        make(chan speechJob, capacity),
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	log.Printf("Started %d speech worker goroutines", p.workerCount)
}

// Stop signals the workers and waits for the utterance in progress to finish.
// Queued utterances are dropped.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.stopChan) })
	p.wg.Wait()
}

// Speak enqueues text. It returns ErrQueueFull instead of blocking.
func (p *Pool) Speak(ctx context.Context, text, locale string) error {
	select {
	case <-p.stopChan:
		return errors.New("speech queue is stopped")
	default:
	}

	select {
	case p.jobs <- speechJob{text: text, locale: locale}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopChan:
			return
		case job := <-p.jobs:
			if err := p.speaker.Speak(context.Background(), job.text, job.locale); err != nil {
				log.Printf("Speech worker %d: %v", id, err)
			}
		}
	}
}

package collector

import (
	"sync"

	"github.com/nao1215/wordspider/internal/model"
)

// eventQueue is an unbounded FIFO feeding one channel. Producers never
// block, so a slow consumer cannot stall the crawl.
type eventQueue struct {
	mu         sync.Mutex
	cond       *sync.Cond
	items      []model.CrawlEvent
	subscribed bool
	done       bool
	ch         chan model.CrawlEvent
}

func newEventQueue() *eventQueue {
	q := &eventQueue{ch: make(chan model.CrawlEvent)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// subscribe starts delivery on the first call and returns the channel.
func (q *eventQueue) subscribe() <-chan model.CrawlEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.subscribed {
		q.subscribed = true
		go q.pump()
	}
	return q.ch
}

// push queues ev. Events are dropped while nobody subscribed or after finish.
func (q *eventQueue) push(ev model.CrawlEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.subscribed || q.done {
		return
	}
	q.items = append(q.items, ev)
	q.cond.Signal()
}

// finish closes the channel once every queued event was delivered.
func (q *eventQueue) finish() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.done = true
	if !q.subscribed {
		q.subscribed = true
		close(q.ch)
		return
	}
	q.cond.Signal()
}

func (q *eventQueue) pump() {
	for {
		q.mu.Lock()
		for len(q.items) == 0 && !q.done {
			q.cond.Wait()
		}
		if len(q.items) == 0 {
			q.mu.Unlock()
			close(q.ch)
			return
		}
		ev := q.items[0]
		q.items[0] = model.CrawlEvent{}
		q.items = q.items[1:]
		q.mu.Unlock()

		q.ch <- ev
	}
}

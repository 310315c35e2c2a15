package kafka

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProducer_GetWriterConcurrent(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		topic := "even"
		if i%2 == 1 {
			topic = "odd"
		}
		wg.Add(1)
		go func(topic string) {
			defer wg.Done()
			p.getWriter(topic)
		}(topic)
	}
	wg.Wait()

	assert.Same(t, p.getWriter("even"), p.getWriter("even"))
	assert.Len(t, p.writers, 2)
}

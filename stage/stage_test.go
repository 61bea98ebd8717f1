package stage_test

import (
	"sync"
	"testing"
	"time"

	"github.com/Carmen-Shannon/streamforge/stage"
	"github.com/Carmen-Shannon/streamforge/token"
)

// buildChain wires producer -> middle -> consumer, each edge of the given
// capacity, and returns the three stages plus a slice the consumer appends
// ints into.
func buildChain(capacity int, next func() (int, bool), middleTask stage.TaskFunc, out *[]int, mu *sync.Mutex) (*stage.Stage, *stage.Stage, *stage.Stage) {
	edge1 := stage.NewEdge(capacity, stage.WaitSpin, nil)
	edge2 := stage.NewEdge(capacity, stage.WaitSpin, nil)

	producer := stage.NewProducer("producer", func(_, output *token.Token) token.Command {
		v, ok := next()
		if !ok {
			return token.StopExecution
		}
		output.Resource = v
		return token.NoChange
	}, edge1)

	middle := stage.NewTransform("middle", middleTask, edge1, edge2, producer)

	consumer := stage.NewConsumer("consumer", func(input, _ *token.Token) token.Command {
		mu.Lock()
		*out = append(*out, input.Resource.(int))
		mu.Unlock()
		return token.NoChange
	}, edge2, middle)

	return producer, middle, consumer
}

func runUntilStopped(t *testing.T, stages ...*stage.Stage) {
	t.Helper()
	var wg sync.WaitGroup
	for _, s := range stages {
		wg.Add(1)
		go func(s *stage.Stage) {
			defer wg.Done()
			for s.State() != stage.Stopped {
				s.Execute()
			}
		}(s)
	}
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("pipeline did not stop in time")
	}
}

func TestIdentityPassThrough(t *testing.T) {
	const n = 1000
	i := 0
	next := func() (int, bool) {
		if i >= n {
			return 0, false
		}
		v := i
		i++
		return v, true
	}

	var out []int
	var mu sync.Mutex
	identity := func(input, output *token.Token) token.Command {
		output.Resource = input.Resource
		return token.NoChange
	}

	producer, middle, consumer := buildChain(8, next, identity, &out, &mu)
	runUntilStopped(t, producer, middle, consumer)

	if producer.State() != stage.Stopped || middle.State() != stage.Stopped || consumer.State() != stage.Stopped {
		t.Fatalf("expected all stages Stopped, got %v %v %v", producer.State(), middle.State(), consumer.State())
	}
	if len(out) != n {
		t.Fatalf("got %d items, want %d", len(out), n)
	}
	for idx, v := range out {
		if v != idx {
			t.Fatalf("out of order at %d: got %d", idx, v)
		}
	}
}

func TestCommandPropagationStopsDownstream(t *testing.T) {
	edge1 := stage.NewEdge(4, stage.WaitSpin, nil)
	edge2 := stage.NewEdge(4, stage.WaitSpin, nil)

	count := 0
	producer := stage.NewProducer("producer", func(_, output *token.Token) token.Command {
		count++
		if count > 5 {
			return token.StopExecution
		}
		output.Resource = count
		return token.NoChange
	}, edge1)

	middle := stage.NewTransform("middle", stage.Bypass, edge1, edge2, producer)

	var out []int
	consumer := stage.NewConsumer("consumer", func(input, _ *token.Token) token.Command {
		out = append(out, input.Resource.(int))
		return token.NoChange
	}, edge2, middle)

	runUntilStopped(t, producer, middle, consumer)

	if consumer.State() != stage.Stopped {
		t.Fatalf("expected consumer Stopped, got %v", consumer.State())
	}
	if len(out) != 5 {
		t.Fatalf("got %d items, want 5", len(out))
	}
}

func TestExecuteOnStoppedStagePanics(t *testing.T) {
	edge := stage.NewEdge(2, stage.WaitSpin, nil)
	producer := stage.NewProducer("producer", func(_, output *token.Token) token.Command {
		return token.StopExecution
	}, edge)

	producer.Execute()
	if producer.State() != stage.Stopped {
		t.Fatalf("expected Stopped after first execute, got %v", producer.State())
	}

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic executing a stopped stage")
		}
	}()
	producer.Execute()
}

func TestFlushDrainsOwnedRings(t *testing.T) {
	edge := stage.NewEdge(3, stage.WaitSpin, func(i int) token.Token {
		return token.Token{Resource: i}
	})
	producer := stage.NewProducer("producer", func(_, output *token.Token) token.Command {
		return token.StopExecution
	}, edge)

	producer.Execute()

	var drained []any
	if err := producer.Flush(func(tok token.Token) {
		drained = append(drained, tok.Resource)
	}); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	// one free token was consumed and forwarded to outputDown by the
	// stopping Execute; the other two remain in outputUp's free list.
	if len(drained) != 3 {
		t.Fatalf("drained %d tokens, want 3", len(drained))
	}
}

func TestLoadConstraintGate(t *testing.T) {
	edge1 := stage.NewEdge(10, stage.WaitSpin, nil)
	edge2 := stage.NewEdge(10, stage.WaitSpin, nil)

	var produced int
	producer := stage.NewProducer("producer", func(_, output *token.Token) token.Command {
		produced++
		if produced > 100 {
			return token.StopExecution
		}
		time.Sleep(time.Millisecond)
		output.Resource = produced
		return token.NoChange
	}, edge1)

	var middleExecCount int
	middle := stage.NewTransform("middle", func(input, output *token.Token) token.Command {
		middleExecCount++
		output.Resource = input.Resource
		return token.NoChange
	}, edge1, edge2, producer, stage.WithLoadConstraint(2))

	var mu sync.Mutex
	var out []int
	consumer := stage.NewConsumer("consumer", func(input, _ *token.Token) token.Command {
		mu.Lock()
		out = append(out, input.Resource.(int))
		mu.Unlock()
		return token.NoChange
	}, edge2, middle)

	go func() {
		for producer.State() != stage.Stopped {
			producer.Execute()
		}
	}()

	// Gate check: with a constraint of 2, middle must not run while
	// producer's output queue (middle's input) holds fewer than 2 items
	// and producer is still ReadyToExecute.
	time.Sleep(2 * time.Millisecond)
	if middle.InputLen() < middle.LoadConstraint() && producer.State() == stage.ReadyToExecute {
		if middleExecCount != 0 {
			t.Fatalf("middle executed before load constraint satisfied")
		}
	}

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		for consumer.State() != stage.Stopped {
			consumer.Execute()
		}
	}()

	for middle.State() != stage.Stopped {
		if middle.LoadConstraint() > 0 && middle.InputLen() < middle.LoadConstraint() && middle.Upstream().State() == stage.ReadyToExecute {
			continue
		}
		middle.Execute()
	}
	<-consumerDone

	if len(out) != 100 {
		t.Fatalf("got %d items, want 100", len(out))
	}
}

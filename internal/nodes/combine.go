package nodes

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/flowgraph/runtime/internal/expression"
	"github.com/flowgraph/runtime/internal/record"
)

// Union merges any number of inputs into one output.
type Union struct {
	// Mode is "interleaved" (concurrently forward every input, order
	// unspecified) or "sequential" (drain input 0 fully, then input 1,
	// and so on).
	Mode string
}

func (u Union) Run(_ context.Context, inputs []In, outputs []Out) error {
	if u.Mode == "sequential" {
		for _, in := range inputs {
			for v := range in {
				outputs[0] <- v
			}
		}
		return nil
	}

	done := make(chan struct{}, len(inputs))
	for _, in := range inputs {
		in := in
		go func() {
			for v := range in {
				outputs[0] <- v
			}
			done <- struct{}{}
		}()
	}
	for range inputs {
		<-done
	}
	return nil
}

// JoinType selects Join's pairing strategy.
type JoinType string

const (
	JoinIndex JoinType = "Index"
	JoinKey   JoinType = "Key"
)

// JoinMode selects which side(s) padding/unmatched-emission covers.
type JoinMode string

const (
	JoinInner JoinMode = "Inner"
	JoinLeft  JoinMode = "Left"
	JoinRight JoinMode = "Right"
	JoinOuter JoinMode = "Outer"
)

// Join pairs records arriving on two inputs into a single {left, right}
// output, by arrival order (Index) or by matching composite key (Key).
type Join struct {
	Type JoinType
	Mode JoinMode

	// LeftKeys/RightKeys are path expressions evaluated on each side to
	// build the composite key used by a Key join; ignored by Index.
	LeftKeys  []string
	RightKeys []string
}

func (j Join) Run(_ context.Context, inputs []In, outputs []Out) error {
	if j.Type == JoinKey {
		return j.runKey(inputs, outputs)
	}
	return j.runIndex(inputs, outputs)
}

func pairRecord(left, right record.Record) record.Record {
	return record.Map(map[string]record.Record{"left": left, "right": right})
}

// runIndex zips pairs by arrival order. Each round reads (at most) one
// value from each side still open; a side that closes mid-round is
// simply not read again.
func (j Join) runIndex(inputs []In, outputs []Out) error {
	left, right := inputs[0], inputs[1]
	leftOpen, rightOpen := true, true

	for leftOpen || rightOpen {
		var lv, rv record.Record
		var lok, rok bool
		if leftOpen {
			lv, lok = <-left
			if !lok {
				leftOpen = false
			}
		}
		if rightOpen {
			rv, rok = <-right
			if !rok {
				rightOpen = false
			}
		}

		switch {
		case lok && rok:
			outputs[0] <- pairRecord(lv, rv)
		case lok && !rok:
			if j.Mode == JoinLeft || j.Mode == JoinOuter {
				outputs[0] <- pairRecord(lv, record.Null)
			} else {
				return nil
			}
		case !lok && rok:
			if j.Mode == JoinRight || j.Mode == JoinOuter {
				outputs[0] <- pairRecord(record.Null, rv)
			} else {
				return nil
			}
		}
	}
	return nil
}

// runKey hash-joins by composite key. Both sides buffer every record
// they have seen (keyed bucket -> records plus a matched flag) so the
// unmatched tail can be emitted once both inputs close.
func (j Join) runKey(inputs []In, outputs []Out) error {
	left, right := inputs[0], inputs[1]

	type bucket struct {
		values  []record.Record
		matched []bool
	}
	leftBuckets := make(map[string]*bucket)
	rightBuckets := make(map[string]*bucket)
	var leftOrder, rightOrder []string

	leftOpen, rightOpen := true, true
	for leftOpen || rightOpen {
		select {
		case lv, ok := <-left:
			if !ok {
				leftOpen = false
				left = nil
				continue
			}
			k := compositeKeyOf(j.LeftKeys, lv)
			b, seen := leftBuckets[k]
			if !seen {
				b = &bucket{}
				leftBuckets[k] = b
				leftOrder = append(leftOrder, k)
			}
			matched := false
			if rb, ok := rightBuckets[k]; ok {
				for i, rv := range rb.values {
					outputs[0] <- pairRecord(lv, rv)
					rb.matched[i] = true
				}
				matched = len(rb.values) > 0
			}
			b.values = append(b.values, lv)
			b.matched = append(b.matched, matched)
		case rv, ok := <-right:
			if !ok {
				rightOpen = false
				right = nil
				continue
			}
			k := compositeKeyOf(j.RightKeys, rv)
			b, seen := rightBuckets[k]
			if !seen {
				b = &bucket{}
				rightBuckets[k] = b
				rightOrder = append(rightOrder, k)
			}
			matched := false
			if lb, ok := leftBuckets[k]; ok {
				for i, lv := range lb.values {
					outputs[0] <- pairRecord(lv, rv)
					lb.matched[i] = true
				}
				matched = len(lb.values) > 0
			}
			b.values = append(b.values, rv)
			b.matched = append(b.matched, matched)
		}
	}

	if j.Mode == JoinLeft || j.Mode == JoinOuter {
		for _, k := range leftOrder {
			b := leftBuckets[k]
			for i, lv := range b.values {
				if !b.matched[i] {
					outputs[0] <- pairRecord(lv, record.Null)
				}
			}
		}
	}
	if j.Mode == JoinRight || j.Mode == JoinOuter {
		for _, k := range rightOrder {
			b := rightBuckets[k]
			for i, rv := range b.values {
				if !b.matched[i] {
					outputs[0] <- pairRecord(record.Null, rv)
				}
			}
		}
	}
	return nil
}

func compositeKeyOf(paths []string, v record.Record) string {
	if len(paths) == 0 {
		return v.String()
	}
	key := ""
	for _, p := range paths {
		key += expression.ToString(expression.Search(p, v)) + "\x00"
	}
	return key
}

// ErrWaitTimeout is returned when a Wait round fails to complete within
// its configured timeout.
type ErrWaitTimeout struct{}

func (ErrWaitTimeout) Error() string { return "wait: round timed out" }

// Wait synchronizes across N inputs: each round receives exactly one
// record from every still-open input, then forwards each to its
// matching output port. An input already satisfied this round is
// dropped from polling so it cannot race ahead of its peers; an input
// that closes before providing its round's record ends the node.
type Wait struct {
	Timeout time.Duration
}

func (w Wait) Run(ctx context.Context, inputs []In, outputs []Out) error {
	n := len(inputs)
	if len(outputs) < n {
		return fmt.Errorf("wait: %d inputs but only %d outputs, need one output per input", n, len(outputs))
	}
	for {
		received := make([]record.Record, n)
		got := make([]bool, n)
		remaining := n

		var timer *time.Timer
		var timeoutCh <-chan time.Time
		if w.Timeout > 0 {
			timer = time.NewTimer(w.Timeout)
			timeoutCh = timer.C
		}

		for remaining > 0 {
			idx, val, ok, timedOut, cancelled := selectWait(ctx, inputs, got, timeoutCh)
			switch {
			case timedOut:
				return ErrWaitTimeout{}
			case cancelled, !ok:
				if timer != nil {
					timer.Stop()
				}
				return nil
			}
			received[idx] = val
			got[idx] = true
			remaining--
		}
		if timer != nil {
			timer.Stop()
		}

		for i, v := range received {
			outputs[i] <- v
		}
	}
}

// selectWait blocks until one of the not-yet-satisfied inputs produces a
// value, the shared round timeout fires, or ctx is cancelled. Go has no
// dynamic select statement, so the pending-input set becomes a
// reflect.Select call; unlike a goroutine-per-input race, reflect.Select
// receives at most one value, so a record can never be consumed and then
// dropped when two inputs turn ready in the same round.
func selectWait(ctx context.Context, inputs []In, got []bool, timeoutCh <-chan time.Time) (idx int, val record.Record, ok bool, timedOut bool, cancelled bool) {
	cases := make([]reflect.SelectCase, 2, len(inputs)+2)
	cases[0] = reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())}
	cases[1] = reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(timeoutCh)}
	indexOf := make([]int, 0, len(inputs))
	for i, in := range inputs {
		if got[i] {
			continue
		}
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf((<-chan record.Record)(in))})
		indexOf = append(indexOf, i)
	}

	chosen, value, recvOK := reflect.Select(cases)
	switch chosen {
	case 0:
		return 0, record.Null, false, false, true
	case 1:
		return 0, record.Null, false, true, false
	default:
		if !recvOK {
			return indexOf[chosen-2], record.Null, false, false, false
		}
		return indexOf[chosen-2], value.Interface().(record.Record), true, false, false
	}
}

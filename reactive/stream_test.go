package reactive

import (
	"context"
	"errors"
	"testing"
)

func TestStream_ReplayAndFanOut(t *testing.T) {
	s := NewStream[int]()
	var early, late []int
	s.Consume(func(v int) { early = append(early, v) })
	s.Emit(1)
	s.Emit(2)
	s.Consume(func(v int) { late = append(late, v) })
	s.Emit(3)

	if len(early) != 3 || early[2] != 3 {
		t.Fatalf("early consumer got %v", early)
	}
	if len(late) != 3 || late[0] != 1 || late[2] != 3 {
		t.Fatalf("late consumer got %v", late)
	}
	first, err := s.First().Await(context.Background())
	if err != nil || first != 1 {
		t.Fatalf("First = %d, %v", first, err)
	}
}

func TestStream_Fail(t *testing.T) {
	boom := errors.New("boom")
	s := NewStream[string]()
	var seen error
	s.OnError(func(err error) { seen = err })
	s.Fail(boom)

	if !errors.Is(seen, boom) || !errors.Is(s.Err(), boom) {
		t.Fatalf("failure not reported: %v", seen)
	}
	if s.Emit("x") {
		t.Fatal("Emit accepted after failure")
	}
	if _, err := s.Next(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Next returned %v", err)
	}
	var late error
	s.OnError(func(err error) { late = err })
	if late == nil {
		t.Fatal("late error consumer did not fire")
	}
}

func TestStream_Complete(t *testing.T) {
	s := NewStream[int]()
	s.Emit(5)
	if !s.Complete() || s.Complete() {
		t.Fatal("Complete must succeed exactly once")
	}
	<-s.Done()
	var got []int
	s.Consume(func(v int) { got = append(got, v) })
	if len(got) != 1 || got[0] != 5 {
		t.Fatalf("completed stream did not replay, got %v", got)
	}
	if len(s.Items()) != 1 {
		t.Fatalf("Items = %v", s.Items())
	}
}

func TestStream_ConsumerAddedDuringEmit(t *testing.T) {
	s := NewStream[int]()
	var nested []int
	added := false
	s.Consume(func(v int) {
		if added {
			return
		}
		added = true
		s.Consume(func(v int) { nested = append(nested, v) })
	})
	s.Emit(1)
	s.Emit(2)

	if len(nested) != 2 || nested[0] != 1 || nested[1] != 2 {
		t.Fatalf("nested consumer got %v", nested)
	}
}

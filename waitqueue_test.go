package prioinv

import (
	"slices"
	"testing"
)

func TestWaitQueue_Order(t *testing.T) {
	t.Parallel()

	type entry struct {
		name     string
		priority Priority
	}

	tests := map[string]struct {
		entries []entry
		want    []string
	}{
		"waiters are served in priority order": {
			entries: []entry{
				{"low", Priorities.Low},
				{"high", Priorities.High},
				{"medium", Priorities.Medium},
			},
			want: []string{"high", "medium", "low"},
		},
		"waiters with same priority maintain FIFO order": {
			entries: []entry{
				{"first", Priorities.Medium},
				{"second", Priorities.Medium},
				{"third", Priorities.Medium},
			},
			want: []string{"first", "second", "third"},
		},
		"mixed priorities keep FIFO among equals": {
			entries: []entry{
				{"a", Priorities.Low},
				{"b", Priorities.High},
				{"c", Priorities.Low},
				{"d", Priorities.High},
			},
			want: []string{"b", "d", "a", "c"},
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var q waitQueue
			names := make(map[*Thread]string)
			for _, e := range tt.entries {
				th := NewThread(NewSimulatedPlatform(), LaunchDescriptor{Priority: e.priority, CPU: -1})
				names[th] = e.name
				q.enqueue(th)
			}

			var got []string
			for q.Len() > 0 {
				got = append(got, names[q.dequeue().thread])
			}

			if !slices.Equal(got, tt.want) {
				t.Errorf("mismatch:\n  got:  %#v\n  want: %#v", got, tt.want)
			}
		})
	}
}

func TestWaitQueue_Peek(t *testing.T) {
	t.Parallel()

	var q waitQueue
	if q.peek() != nil || q.dequeue() != nil {
		t.Fatal("expected empty queue to yield nil")
	}

	low := NewThread(NewSimulatedPlatform(), LaunchDescriptor{Priority: Priorities.Low, CPU: -1})
	high := NewThread(NewSimulatedPlatform(), LaunchDescriptor{Priority: Priorities.High, CPU: -1})
	q.enqueue(low)
	w := q.enqueue(high)

	if got := q.peek(); got != w {
		t.Errorf("mismatch:\n  got:  %v\n  want: %v", got.thread.Base(), w.thread.Base())
	}
	if q.Len() != 2 {
		t.Errorf("expected peek to leave 2 waiters, got: %d", q.Len())
	}
	if w.Granted() {
		t.Error("expected waiter not to be granted")
	}
}

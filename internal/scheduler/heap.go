package scheduler

import "container/heap"

// alarmHeap implements container/heap.Interface for Alarm,
// sorted by ScheduledTime (earliest first, min-heap).
type alarmHeap []Alarm

func (h alarmHeap) Len() int           { return len(h) }
func (h alarmHeap) Less(i, j int) bool { return h[i].ScheduledTime.Before(h[j].ScheduledTime) }
func (h alarmHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *alarmHeap) Push(x any) {
	*h = append(*h, x.(Alarm))
}

func (h *alarmHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func heapPush(h *alarmHeap, a Alarm) {
	heap.Push(h, a)
}

// heapPop removes and returns the alarm that fires first.
// Panics if the heap is empty.
func heapPop(h *alarmHeap) Alarm {
	return heap.Pop(h).(Alarm)
}

// heapRemoveByName removes the alarm with the given name.
func heapRemoveByName(h *alarmHeap, name string) bool {
	for i, a := range *h {
		if a.Name == name {
			heap.Remove(h, i)
			return true
		}
	}
	return false
}

func heapFind(h *alarmHeap, name string) (Alarm, bool) {
	for _, a := range *h {
		if a.Name == name {
			return a, true
		}
	}
	return Alarm{}, false
}

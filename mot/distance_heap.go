package mot

// iouPair is a candidate association between track (row) and observation (column)
type iouPair struct {
	track     int
	detection int
	iou       float64
}

// Copied from container/heap - https://golang.org/pkg/container/heap/
// Why make copy? Just want to avoid type conversion

// iouHeap is max-heap by IoU. Ties are broken by observation index and then by track index,
// so the order of extraction is deterministic.
type iouHeap []iouPair

func (h iouHeap) Len() int { return len(h) }
func (h iouHeap) Less(i, j int) bool {
	if h[i].iou != h[j].iou {
		return h[i].iou > h[j].iou
	}
	if h[i].detection != h[j].detection {
		return h[i].detection < h[j].detection
	}
	return h[i].track < h[j].track
}
func (h iouHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

// Push pushes the element x onto the heap.
// The complexity is O(log n) where n = h.Len().
func (h *iouHeap) Push(x iouPair) {
	*h = append(*h, x)
	h.up(h.Len() - 1)
}

// Pop removes and returns the maximum element (according to Less) from the heap.
// The complexity is O(log n) where n = h.Len().
func (h *iouHeap) Pop() iouPair {
	n := h.Len() - 1
	h.Swap(0, n)
	h.down(0, n)
	heapSize := len(*h)
	lastNode := (*h)[heapSize-1]
	*h = (*h)[0 : heapSize-1]
	return lastNode
}

func (h iouHeap) up(j int) {
	for {
		i := (j - 1) / 2
		if i == j || !h.Less(j, i) {
			break
		}
		h.Swap(i, j)
		j = i
	}
}

func (h iouHeap) down(i0, n int) bool {
	i := i0
	for {
		j1 := 2*i + 1
		if j1 >= n || j1 < 0 {
			break
		}
		j := j1
		if j2 := j1 + 1; j2 < n && h.Less(j2, j1) {
			j = j2
		}
		if !h.Less(j, i) {
			break
		}
		h.Swap(i, j)
		i = j
	}
	return i > i0
}

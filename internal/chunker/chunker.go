// Package chunker splits scoring work into fixed-size batches.
package chunker

// Batch is one contiguous slice of the input. Offset is the index of
// Items[0] in the original slice.
type Batch[T any] struct {
	Index  int
	Offset int
	Items  []T
}

// Split cuts items into batches of at most size elements, preserving order.
// A size below 1 is treated as 1. An empty input yields no batches.
func Split[T any](items []T, size int) []Batch[T] {
	if size < 1 {
		size = 1
	}
	n := len(items)
	batches := make([]Batch[T], 0, (n+size-1)/size)
	for i := 0; i < n; i += size {
		end := i + size
		if end > n {
			end = n
		}
		batches = append(batches, Batch[T]{
			Index:  len(batches),
			Offset: i,
			Items:  items[i:end],
		})
	}
	return batches
}

package paging

import "iter"

// Truncate forwards at most limit rows of seq. Iterating clears req's
// last-page flag; the first row beyond the limit is discarded, sets it and
// ends the stream.
// Errors pass through. A disabled request or a negative limit leaves seq as is.
func Truncate[T any](seq iter.Seq2[T, error], req *Request, limit int) iter.Seq2[T, error] {
	if !req.Enabled() || limit < 0 {
		return seq
	}
	return func(yield func(T, error) bool) {
		req.resetMore()
		n := 0
		for v, err := range seq {
			if err != nil {
				if !yield(v, err) {
					return
				}
				continue
			}
			if n == limit {
				req.markMore()
				return
			}
			n++
			if !yield(v, nil) {
				return
			}
		}
	}
}

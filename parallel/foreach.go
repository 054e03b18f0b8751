// Package parallel contains the bounded worker pool used for batch collation.
package parallel

import "sync"

// ForEach runs body for every integer in [0, length) with at most limit
// goroutines in flight. It waits for all started bodies and returns the
// error of the lowest index that failed, or nil.
func ForEach(length, limit int, body func(i int) error) error {
	if limit <= 0 {
		limit = 1
	}
	if length <= 0 {
		return nil
	}

	errs := make([]error, length)
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	wg.Add(length)

	for i := 0; i < length; i++ {
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			errs[i] = body(i)
		}(i)
	}

	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

package indexer

import "fmt"

// BlockRange represents an inclusive block range.
type BlockRange struct {
	From uint64
	To   uint64
}

// planBatches cuts [from, head] into batches of at most batchSize blocks,
// stopping at endBlock when the deployment has one. It returns no batches
// when from is already past the last block to fetch.
func planBatches(from, head uint64, endBlock *uint64, batchSize uint64) ([]BlockRange, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	last := head
	if endBlock != nil && *endBlock < last {
		last = *endBlock
	}
	if from > last {
		return nil, nil
	}

	batches := make([]BlockRange, 0, (last-from)/batchSize+1)
	for start := from; ; start += batchSize {
		if last-start < batchSize {
			return append(batches, BlockRange{From: start, To: last}), nil
		}
		batches = append(batches, BlockRange{From: start, To: start + batchSize - 1})
	}
}

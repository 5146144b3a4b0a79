package search

// Strategy describes how a multi-partition retrieval should execute.
type Strategy struct {
	// UseParallel issues one bounded query per knowledge base concurrently
	// instead of a single IN(...) query. A single query across many
	// partitions cannot apply ORDER BY + LIMIT fairly when partition
	// density is skewed.
	UseParallel bool
	// DistanceThreshold tightens the relevance cutoff when fanning out
	// across many partitions to bound result volume.
	DistanceThreshold float64
	// ParallelLimit is the per-partition row cap, with a small overfetch
	// margin so the global re-sort can still fill topK.
	ParallelLimit int
	// SingleQueryOptimized hints that the fan-out is small enough for the
	// simplest code path.
	SingleQueryOptimized bool
}

func SelectStrategy(kbCount, topK int) Strategy {
	if kbCount < 1 {
		kbCount = 1
	}
	if topK < 1 {
		topK = 1
	}
	threshold := 1.0
	if kbCount > 3 {
		threshold = 0.8
	}
	perPartition := topK / kbCount
	if topK%kbCount != 0 {
		perPartition++
	}
	return Strategy{
		UseParallel:          kbCount > 4 || (kbCount > 2 && topK > 50),
		DistanceThreshold:    threshold,
		ParallelLimit:        perPartition + 5,
		SingleQueryOptimized: kbCount <= 2,
	}
}

package projection

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// skipList is the bounded memory for mempool tx_hashes that failed a
// uniqueness retry and are skipped on subsequent rebuilds until the
// transaction confirms (SPEC_FULL.md §4.5, scenario S8). An unbounded map
// here would grow for as long as the watcher runs against an adversarial or
// merely very busy mempool; LRU eviction caps it at the cost of occasionally
// re-attempting (and re-failing) an evicted entry, which is harmless because
// the retry-once-then-skip logic tolerates repeat failures.
type skipList struct {
	cache *lru.Cache[string, struct{}]
}

const defaultSkipListSize = 4096

func newSkipList(size int) *skipList {
	if size <= 0 {
		size = defaultSkipListSize
	}
	c, err := lru.New[string, struct{}](size)
	if err != nil {
		// Only returns an error for a non-positive size, already guarded above.
		panic(err)
	}
	return &skipList{cache: c}
}

func (s *skipList) contains(txHash string) bool {
	_, ok := s.cache.Get(txHash)
	return ok
}

func (s *skipList) add(txHash string) {
	s.cache.Add(txHash, struct{}{})
}

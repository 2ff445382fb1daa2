package pool

import (
	"fmt"
	"strconv"
	"testing"
)

func newTestShardFactory(t *testing.T, numShards int, cfg *ShardConfig) *ShardConnFactory {
	t.Helper()
	shards := make([]*HAConfig, numShards)
	for i := 0; i < numShards; i++ {
		shards[i] = &HAConfig{Master: fmt.Sprintf("127.0.0.1:%d", 8000+i)}
	}
	cfg.Shards = shards
	factory, err := NewShardConnFactory(cfg)
	if err != nil {
		t.Fatalf("failed to create the shard factory: %v", err)
	}
	t.Cleanup(factory.close)
	return factory
}

func TestShardIndexRange(t *testing.T) {
	for _, distributeType := range []int{DistributeByModular, DistributeByKetama, DistributeByWeightedCh3} {
		factory := newTestShardFactory(t, 4, &ShardConfig{DistributeType: distributeType})
		for i := 0; i < 1000; i++ {
			if ind := factory.getShardIndex("key" + strconv.Itoa(i)); ind >= 4 {
				t.Fatalf("distribute type %d returned shard %d of 4", distributeType, ind)
			}
		}
	}
}

func TestWeightedShardRouting(t *testing.T) {
	// a zero-weight shard should receive no traffic
	factory := newTestShardFactory(t, 2, &ShardConfig{
		DistributeType: DistributeByWeightedCh3,
		Weights:        []float64{1.0, 0.0},
	})
	for i := 0; i < 1000; i++ {
		if ind := factory.getShardIndex("key" + strconv.Itoa(i)); ind != 0 {
			t.Fatalf("expect all keys on shard 0 but %q went to %d", "key"+strconv.Itoa(i), ind)
		}
	}
}

func TestWeightedShardSkew(t *testing.T) {
	factory := newTestShardFactory(t, 2, &ShardConfig{
		DistributeType: DistributeByWeightedCh3,
		Weights:        []float64{1.0, 0.5},
	})
	numKeys := 10000
	counts := make([]int, 2)
	for i := 0; i < numKeys; i++ {
		counts[factory.getShardIndex("skew"+strconv.Itoa(i))]++
	}
	// the half-weight shard keeps about half of its unweighted share
	frac := float64(counts[1]) / float64(numKeys)
	if frac < 0.15 || frac > 0.35 {
		t.Errorf("expect the half-weight shard fraction near 0.25, got %.3f", frac)
	}
}

func TestWeightedShardDefaults(t *testing.T) {
	// empty weights fall back to a full share for every shard
	factory := newTestShardFactory(t, 3, &ShardConfig{
		DistributeType: DistributeByWeightedCh3,
	})
	counts := make([]int, 3)
	for i := 0; i < 3000; i++ {
		counts[factory.getShardIndex("def"+strconv.Itoa(i))]++
	}
	for ind, count := range counts {
		if count == 0 {
			t.Errorf("shard %d received no keys: %v", ind, counts)
		}
	}
}

func TestWeightedShardCountMismatch(t *testing.T) {
	shards := []*HAConfig{
		{Master: "127.0.0.1:8000"},
		{Master: "127.0.0.1:8001"},
	}
	_, err := NewShardConnFactory(&ShardConfig{
		Shards:         shards,
		DistributeType: DistributeByWeightedCh3,
		Weights:        []float64{1.0, 0.5, 0.25},
	})
	if err == nil {
		t.Fatal("expect a weight count mismatch to fail")
	}
}

func TestHashTagRouting(t *testing.T) {
	factory := newTestShardFactory(t, 4, &ShardConfig{
		DistributeType: DistributeByWeightedCh3,
		Weights:        []float64{1.0, 0.5, 0.25, 0.75},
	})
	for i := 0; i < 100; i++ {
		tag := "{user" + strconv.Itoa(i) + "}"
		keys := []string{tag + ":profile", tag + ":inbox", tag + ":counters"}
		if factory.isCrossMultiShards(keys...) {
			t.Fatalf("expect keys with the tag %s to land on one shard", tag)
		}
	}

	keys := make([]string, 100)
	for i := 0; i < 100; i++ {
		keys[i] = "plain" + strconv.Itoa(i)
	}
	if !factory.isCrossMultiShards(keys...) {
		t.Error("expect 100 untagged keys to span multiple shards")
	}
}

func TestGroupKeysByInd(t *testing.T) {
	factory := newTestShardFactory(t, 4, &ShardConfig{DistributeType: DistributeByModular})
	keys := make([]string, 200)
	for i := 0; i < 200; i++ {
		keys[i] = "group" + strconv.Itoa(i)
	}
	grouped := factory.groupKeysByInd(keys...)
	total := 0
	for ind, keyList := range grouped {
		if ind >= 4 {
			t.Fatalf("grouped keys to shard %d of 4", ind)
		}
		for _, key := range keyList {
			if factory.getShardIndex(key) != ind {
				t.Fatalf("key %q was grouped to the wrong shard", key)
			}
		}
		total += len(keyList)
	}
	if total != len(keys) {
		t.Errorf("expect %d keys after grouping but got %d", len(keys), total)
	}
}

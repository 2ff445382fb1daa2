package pool

import (
	"errors"
	"hash/crc32"
	"sync"

	redis "github.com/go-redis/redis/v8"

	"github.com/bitleak/go-shard-pool/hashkit"
)

const (
	// DistributeByModular routes keys by hash modulo the shard count
	DistributeByModular = iota + 1
	// DistributeByKetama routes keys over a ketama continuum
	DistributeByKetama
	// DistributeByWeightedCh3 routes keys with the weighted consistent
	// hash, sharding traffic proportionally to `ShardConfig.Weights`
	DistributeByWeightedCh3
)

var errMoreThanOneParam = errors.New("the number of params shouldn't be greater than 1")

type ShardConfig struct {
	Shards         []*HAConfig
	DistributeType int // `DistributeByModular`, `DistributeByKetama` or `DistributeByWeightedCh3`
	HashFn         func(key []byte) uint32

	// Weights holds the traffic fraction of every shard in [0.0, 1.0],
	// only used by `DistributeByWeightedCh3`. Empty means every shard
	// takes its full share.
	Weights []float64
}

type ShardConnFactory struct {
	cfg    *ShardConfig
	shards []*HAConnFactory
	hash   hashkit.HashKit
}

func NewShardConnFactory(cfg *ShardConfig) (*ShardConnFactory, error) {
	if cfg.DistributeType < DistributeByModular || cfg.DistributeType > DistributeByWeightedCh3 {
		cfg.DistributeType = DistributeByModular
	}
	if cfg.HashFn == nil {
		cfg.HashFn = crc32.ChecksumIEEE
	}
	factory := &ShardConnFactory{
		cfg:    cfg,
		shards: make([]*HAConnFactory, len(cfg.Shards)),
	}
	var err error
	for i, shard := range cfg.Shards {
		if factory.shards[i], err = NewHAConnFactory(shard); err != nil {
			return nil, err
		}
	}
	if factory.hash, err = buildShardHash(cfg, factory.shards); err != nil {
		return nil, err
	}
	return factory, nil
}

func buildShardHash(cfg *ShardConfig, shards []*HAConnFactory) (hashkit.HashKit, error) {
	switch cfg.DistributeType {
	case DistributeByKetama:
		servers := make([]*hashkit.Server, len(shards))
		for idx, shard := range shards {
			servers[idx] = &hashkit.Server{
				Name:   shard.cfg.Master,
				Weight: 1,
				Index:  uint32(idx),
			}
		}
		return hashkit.NewKetama(servers, cfg.HashFn), nil
	case DistributeByWeightedCh3:
		weights := cfg.Weights
		if len(weights) == 0 {
			weights = make([]float64, len(shards))
			for i := range weights {
				weights[i] = 1.0
			}
		}
		if len(weights) != len(shards) {
			return nil, errors.New("the number of weights should match the shards")
		}
		return hashkit.NewWeightedCh3(&hashkit.WeightedCh3Config{Weights: weights})
	default:
		return nil, nil
	}
}

func (factory *ShardConnFactory) close() {
	for _, shard := range factory.shards {
		shard.close()
	}
}

func (factory *ShardConnFactory) getShardIndex(key string) uint32 {
	key = extractHashPrefix(key)
	if factory.hash != nil {
		return factory.hash.Dispatch(key)
	}
	return factory.cfg.HashFn([]byte(key)) % uint32(len(factory.shards))
}

func (factory *ShardConnFactory) getSlaveConn(key ...string) (*redis.Client, error) {
	if len(key) > 1 {
		return nil, errMoreThanOneParam
	}
	var ind uint32
	if len(key) > 0 {
		ind = factory.getShardIndex(key[0])
	}
	return factory.shards[ind].getSlaveConn()
}

func (factory *ShardConnFactory) getMasterConn(key ...string) (*redis.Client, error) {
	if len(key) > 1 {
		return nil, errMoreThanOneParam
	}
	var ind uint32
	if len(key) > 0 {
		ind = factory.getShardIndex(key[0])
	}
	return factory.shards[ind].getMasterConn()
}

func (factory *ShardConnFactory) groupKeysByInd(keys ...string) map[uint32][]string {
	index2Keys := make(map[uint32][]string)
	for _, key := range keys {
		ind := factory.getShardIndex(key)
		index2Keys[ind] = append(index2Keys[ind], key)
	}
	return index2Keys
}

func (factory *ShardConnFactory) isCrossMultiShards(keys ...string) bool {
	var ind uint32
	for i, key := range keys {
		newInd := factory.getShardIndex(key)
		if i == 0 {
			ind = newInd
		} else if newInd != ind {
			return true
		}
	}
	return false
}

type multiKeyFn func(factory *ShardConnFactory, keys ...string) redis.Cmder

func (factory *ShardConnFactory) doMultiKeys(fn multiKeyFn, keys ...string) []redis.Cmder {
	if len(keys) == 1 {
		return []redis.Cmder{fn(factory, keys...)}
	}
	index2Keys := factory.groupKeysByInd(keys...)
	if len(index2Keys) == 1 {
		return []redis.Cmder{fn(factory, keys...)}
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	var results []redis.Cmder
	for _, keyList := range index2Keys {
		wg.Add(1)
		go func(keyList []string) {
			defer wg.Done()
			result := fn(factory, keyList...)
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		}(keyList)
	}
	wg.Wait()
	return results
}

func (factory *ShardConnFactory) doMultiIntCommand(fn multiKeyFn, keys ...string) (int64, error) {
	var err error
	total := int64(0)
	results := factory.doMultiKeys(fn, keys...)
	for _, result := range results {
		cmd := result.(*redis.IntCmd)
		if cmd.Err() != nil {
			err = cmd.Err()
			continue
		}
		total += cmd.Val()
	}
	return total, err
}

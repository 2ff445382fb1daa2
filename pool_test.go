package pool

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Pool", func() {
	ctx := context.Background()

	var haPool *Pool
	var shardPool *Pool
	var err error
	var pools []*Pool

	BeforeEach(func() {
		haConfig := &HAConfig{
			Master: "127.0.0.1:8379",
			Slaves: []string{
				"127.0.0.1:8380",
				"127.0.0.1:8381",
			},
		}
		haConfig1 := &HAConfig{
			Master: "127.0.0.1:8382",
			Slaves: []string{
				"127.0.0.1:8383",
			},
		}

		haPool, err = NewHA(haConfig)
		Expect(err).NotTo(HaveOccurred())
		master, _ := haPool.WithMaster()
		Expect(master.FlushDB(ctx).Err()).NotTo(HaveOccurred())

		shardPool, err = NewShard(&ShardConfig{
			Shards: []*HAConfig{
				haConfig,
				haConfig1,
			},
			DistributeType: DistributeByWeightedCh3,
			Weights:        []float64{1.0, 0.5},
		})
		Expect(err).NotTo(HaveOccurred())
		shards := shardPool.connFactory.(*ShardConnFactory).shards
		for _, shard := range shards {
			master, _ = shard.getMasterConn()
			Expect(master.FlushDB(ctx).Err()).NotTo(HaveOccurred())
		}
		pools = []*Pool{haPool, shardPool}
	})

	AfterEach(func() {
		haPool.Close()
		shardPool.Close()
	})

	Describe("Commands", func() {
		It("ping", func() {
			for _, pool := range pools {
				_, err := pool.Ping(ctx).Result()
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("get/set", func() {
			for _, pool := range pools {
				result := pool.Set(ctx, "foo", "bar", 0)
				Expect(result.Val()).To(Equal("OK"))
				// wait for the slaves catching up the set result
				time.Sleep(10 * time.Millisecond)
				Expect(pool.Get(ctx, "foo").Val()).To(Equal("bar"))
			}
		})

		It("setnx", func() {
			for _, pool := range pools {
				Expect(pool.SetNX(ctx, "nx", "1", 0).Val()).To(Equal(true))
				Expect(pool.SetNX(ctx, "nx", "2", 0).Val()).To(Equal(false))
			}
		})

		It("echo", func() {
			Expect(haPool.Echo(ctx, "hello").Err()).NotTo(HaveOccurred())
			Expect(shardPool.Echo(ctx, "hello").Err()).To(Equal(errShardPoolUnSupported))
		})

		It("delete", func() {
			keys := []string{"a0", "b0", "c0", "d0"}
			for _, pool := range pools {
				for _, key := range keys {
					Expect(pool.Set(ctx, key, "value", 0).Err()).NotTo(HaveOccurred())
				}
				deleteKeys := append(keys, "e0")
				n, err := pool.Del(ctx, deleteKeys...)
				Expect(err).NotTo(HaveOccurred())
				Expect(int(n)).To(Equal(len(keys)))
			}
		})

		It("unlink", func() {
			keys := []string{"a1", "b1", "c1", "d1"}
			for _, pool := range pools {
				for _, key := range keys {
					Expect(pool.Set(ctx, key, "value", 0).Err()).NotTo(HaveOccurred())
				}
				unlinkKeys := append(keys, "e1")
				n, err := pool.Unlink(ctx, unlinkKeys...)
				Expect(err).NotTo(HaveOccurred())
				Expect(int(n)).To(Equal(len(keys)))
			}
		})

		It("exists", func() {
			keys := []string{"a2", "b2", "c2", "d2"}
			for _, pool := range pools {
				for _, key := range keys {
					Expect(pool.Set(ctx, key, "value", 0).Err()).NotTo(HaveOccurred())
				}
				time.Sleep(10 * time.Millisecond)
				existsKeys := append(keys, "e2")
				n, err := pool.Exists(ctx, existsKeys...)
				Expect(err).NotTo(HaveOccurred())
				Expect(int(n)).To(Equal(len(keys)))
				pool.Del(ctx, keys...)
			}
		})

		It("mget", func() {
			keys := []string{"a3", "b3", "c3", "d3"}
			for _, pool := range pools {
				for _, key := range keys {
					Expect(pool.Set(ctx, key, key, 0).Err()).NotTo(HaveOccurred())
				}
				time.Sleep(10 * time.Millisecond)
				mgetKeys := append(keys, "e3")
				vals, err := pool.MGet(ctx, mgetKeys...)
				Expect(err).NotTo(HaveOccurred())
				Expect(vals).To(HaveLen(len(mgetKeys)))
				for i, key := range keys {
					Expect(vals[i]).To(Equal(key))
				}
				Expect(vals[len(keys)]).To(BeNil())
				pool.Del(ctx, keys...)
			}
		})

		It("mset", func() {
			for _, pool := range pools {
				Expect(pool.MSet(ctx, "a4", "1", "b4", "2", "c4", "3").Err()).NotTo(HaveOccurred())
				time.Sleep(10 * time.Millisecond)
				vals, err := pool.MGet(ctx, "a4", "b4", "c4")
				Expect(err).NotTo(HaveOccurred())
				Expect(vals).To(Equal([]interface{}{"1", "2", "3"}))
				pool.Del(ctx, "a4", "b4", "c4")
			}
		})

		It("msetnx with a hash tag", func() {
			Expect(shardPool.MSetNX(ctx, "{tag}a5", "1", "{tag}b5", "2").Val()).To(Equal(true))
			Expect(shardPool.MSetNX(ctx, "{tag}a5", "1", "{tag}c5", "3").Val()).To(Equal(false))
		})

		It("incr/incrby", func() {
			for _, pool := range pools {
				Expect(pool.Incr(ctx, "counter").Val()).To(Equal(int64(1)))
				Expect(pool.IncrBy(ctx, "counter", 9).Val()).To(Equal(int64(10)))
				pool.Del(ctx, "counter")
			}
		})

		It("hset/hget", func() {
			for _, pool := range pools {
				Expect(pool.HSet(ctx, "hash", "field", "value").Err()).NotTo(HaveOccurred())
				time.Sleep(10 * time.Millisecond)
				Expect(pool.HGet(ctx, "hash", "field").Val()).To(Equal("value"))
				all, err := pool.HGetAll(ctx, "hash").Result()
				Expect(err).NotTo(HaveOccurred())
				Expect(all).To(Equal(map[string]string{"field": "value"}))
				pool.Del(ctx, "hash")
			}
		})

		It("expire/ttl", func() {
			for _, pool := range pools {
				Expect(pool.Set(ctx, "transient", "v", 0).Err()).NotTo(HaveOccurred())
				Expect(pool.Expire(ctx, "transient", time.Minute).Val()).To(Equal(true))
				time.Sleep(10 * time.Millisecond)
				Expect(pool.TTL(ctx, "transient").Val()).To(BeNumerically(">", 0))
				pool.Del(ctx, "transient")
			}
		})
	})
})

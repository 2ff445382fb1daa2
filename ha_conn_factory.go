package pool

import (
	"errors"
	"math/rand"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	redis "github.com/go-redis/redis/v8"
)

const (
	// PollByRandom selects the slave by random index
	PollByRandom = iota + 1
	// PollByWeight selects the slave proportionally to its weight
	PollByWeight
	// PollByRoundRobin selects the slave in round-robin order
	PollByRoundRobin
)

type HAConfig struct {
	Master           string         // the address of the master, e.g. "127.0.0.1:6379"
	Slaves           []string       // list of slaves, a weight suffix is allowed, e.g. "127.0.0.1:6380:200"
	Password         string         // the password of the master
	ReadonlyPassword string         // the password of slaves, fallback to Password when empty
	Options          *redis.Options // redis options
	PollType         int            // the slave polling type

	AutoEjectHost      bool          // eject the failure host or not
	ServerFailureLimit int32         // eject if reached `ServerFailureLimit` times of failure
	ServerRetryTimeout time.Duration // retry the ejected host after `ServerRetryTimeout`
	MinServerNum       int           // the min number of slaves kept alive

	weights []int64
}

// HAConnFactory impls the read/write splits between master and slaves
type HAConnFactory struct {
	cfg    *HAConfig
	master *client
	slaves *clientPool
}

type client struct {
	redisCli *redis.Client

	evicted       bool
	failureCount  int32
	weight        int64
	lastEjectTime int64
}

type clientPool struct {
	pollType           int
	autoEjectHost      bool
	serverFailureLimit int32
	serverRetryTimeout time.Duration
	minServerNum       int

	alives       []*client
	slaves       []*client
	weightRanges []int64

	ind    int
	rand   *rand.Rand
	stopCh chan struct{}
}

func NewHAConnFactory(cfg *HAConfig) (*HAConnFactory, error) {
	if cfg == nil {
		return nil, errors.New("factory cfg shouldn't be empty")
	}
	if err := cfg.init(); err != nil {
		return nil, err
	}

	options := cfg.Options
	options.Addr = cfg.Master
	options.Password = cfg.Password
	return &HAConnFactory{
		cfg:    cfg,
		master: newClient(redis.NewClient(options), 0),
		slaves: newClientPool(cfg),
	}, nil
}

func (factory *HAConnFactory) close() {
	factory.master.redisCli.Close()
	factory.slaves.close()
}

func (factory *HAConnFactory) getSlaveConn(key ...string) (*redis.Client, error) {
	return factory.slaves.getConn()
}

func (factory *HAConnFactory) getMasterConn(key ...string) (*redis.Client, error) {
	return factory.master.redisCli, nil
}

func (cfg *HAConfig) init() error {
	if cfg.PollType < PollByRandom || cfg.PollType > PollByRoundRobin {
		cfg.PollType = PollByRoundRobin
	}
	if cfg.Options == nil {
		cfg.Options = &redis.Options{}
	}
	cfg.weights = make([]int64, len(cfg.Slaves))
	for i, slave := range cfg.Slaves {
		cfg.weights[i] = 100
		if elems := strings.Split(slave, ":"); len(elems) == 3 {
			weight, err := strconv.ParseInt(elems[2], 10, 64)
			if err != nil {
				return errors.New("the slave weight should be an integer")
			}
			cfg.weights[i] = weight
		}
	}
	if cfg.ServerRetryTimeout <= 0 {
		cfg.ServerRetryTimeout = 5 * time.Second
	}
	if cfg.ServerRetryTimeout < 100*time.Millisecond {
		cfg.ServerRetryTimeout = 100 * time.Millisecond
	}
	if cfg.ServerFailureLimit <= 0 {
		cfg.ServerFailureLimit = 3
	}
	if cfg.MinServerNum != 1 && cfg.MinServerNum >= len(cfg.Slaves) {
		return errors.New("config MinServerNum should be smaller than the slave num")
	}
	return nil
}

func newClient(redisCli *redis.Client, weight int64) *client {
	c := &client{
		redisCli: redisCli,
		weight:   weight,
	}
	redisCli.AddHook(newFailureHook(c))
	return c
}

func (c *client) onFailure() {
	atomic.AddInt32(&c.failureCount, 1)
}

func (c *client) onSuccess() {
	atomic.StoreInt32(&c.failureCount, 0)
}

func newClientPool(cfg *HAConfig) *clientPool {
	slavePassword := cfg.Password
	if cfg.ReadonlyPassword != "" {
		slavePassword = cfg.ReadonlyPassword
	}
	// an empty slave list makes the master serve reads as well
	if len(cfg.Slaves) == 0 {
		cfg.Slaves = append(cfg.Slaves, cfg.Master)
		cfg.weights = append(cfg.weights, 100)
	}

	pool := &clientPool{
		pollType:           cfg.PollType,
		autoEjectHost:      cfg.AutoEjectHost,
		serverFailureLimit: cfg.ServerFailureLimit,
		serverRetryTimeout: cfg.ServerRetryTimeout,
		minServerNum:       cfg.MinServerNum,

		stopCh: make(chan struct{}),
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	pool.slaves = make([]*client, len(cfg.Slaves))
	for i, slave := range cfg.Slaves {
		slaveOptions := *cfg.Options
		slaveOptions.Addr = slave
		if elems := strings.Split(slave, ":"); len(elems) == 3 {
			slaveOptions.Addr = elems[0] + ":" + elems[1]
		}
		slaveOptions.Password = slavePassword
		pool.slaves[i] = newClient(redis.NewClient(&slaveOptions), cfg.weights[i])
	}
	pool.alives = pool.slaves
	pool.weightRanges = buildWeightRanges(pool.alives)
	go pool.detectFailureTick()
	return pool
}

func buildWeightRanges(clients []*client) []int64 {
	if len(clients) == 0 {
		return nil
	}
	weightRanges := make([]int64, len(clients))
	weightRanges[0] = clients[0].weight
	for i := 1; i < len(clients); i++ {
		weightRanges[i] = weightRanges[i-1] + clients[i].weight
	}
	return weightRanges
}

func (p *clientPool) getConn() (*redis.Client, error) {
	// the rebuild in another routine may replace alives and weight ranges
	// midway, so copy the references here
	alives := p.alives
	weightRanges := p.weightRanges

	n := len(alives)
	if n == 0 {
		return nil, errors.New("no alive slaves")
	}
	if n == 1 {
		return alives[0].redisCli, nil
	}

	switch p.pollType {
	case PollByRandom:
		return alives[p.rand.Intn(n)].redisCli, nil
	case PollByWeight:
		r := p.rand.Int63n(weightRanges[n-1])
		for i, weightRange := range weightRanges {
			if r <= weightRange {
				return alives[i].redisCli, nil
			}
		}
		return alives[n-1].redisCli, nil
	default:
		p.ind = (p.ind + 1) % n
		return alives[p.ind].redisCli, nil
	}
}

func (p *clientPool) rebuild() {
	if !p.autoEjectHost {
		return
	}
	newAlives := make([]*client, 0, len(p.slaves))
	for _, slave := range p.slaves {
		if slave.evicted {
			continue
		}
		if atomic.LoadInt32(&slave.failureCount) >= p.serverFailureLimit {
			slave.lastEjectTime = time.Now().UnixNano()
			slave.evicted = true
			continue
		}
		newAlives = append(newAlives, slave)
	}
	if p.alivesEqual(newAlives) {
		return
	}

	if p.minServerNum > 0 && len(newAlives) < p.minServerNum {
		n := len(p.slaves)
		start := p.rand.Intn(n)
		for i := 0; i < n && len(newAlives) < p.minServerNum; i++ {
			slave := p.slaves[(start+i)%n]
			if slave.evicted {
				newAlives = append(newAlives, slave)
			}
		}
	}

	p.weightRanges = buildWeightRanges(newAlives)
	p.alives = newAlives
}

func (p *clientPool) alivesEqual(newAlives []*client) bool {
	if len(p.alives) != len(newAlives) {
		return false
	}
	for i, alive := range newAlives {
		if alive != p.alives[i] {
			return false
		}
	}
	return true
}

func (p *clientPool) detectFailureTick() {
	interval := time.Second
	if p.serverRetryTimeout < time.Second {
		interval = p.serverRetryTimeout / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			if !p.autoEjectHost || len(p.slaves) <= 1 {
				continue
			}
			now := time.Now().UnixNano()
			for _, slave := range p.slaves {
				elapsed := time.Duration(now - slave.lastEjectTime)
				if slave.evicted && elapsed >= p.serverRetryTimeout &&
					atomic.LoadInt32(&slave.failureCount) >= p.serverFailureLimit {
					// only allow to retry once after evicted
					atomic.StoreInt32(&slave.failureCount, p.serverFailureLimit-1)
					slave.evicted = false
				}
			}
			p.rebuild()
		}
	}
}

func (p *clientPool) close() {
	close(p.stopCh)
	for _, slave := range p.slaves {
		slave.redisCli.Close()
	}
}

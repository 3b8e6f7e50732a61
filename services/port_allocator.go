package services

import (
	"sort"
	"sync"
	"time"

	"apollo-supervisor/internal/logger"
	"apollo-supervisor/internal/models"
	"apollo-supervisor/internal/utils"
)

/**
 * PortAllocator 应用端口分配器
 * @property {int} min - 端口范围下限(含)
 * @property {int} max - 端口范围上限(含)
 * @property {map[int]int} assigned - port -> pid，以端口为键，一个端口只属于一个进程
 * @property {map[int]struct{}} reserved - 已分配但还没有绑定到进程的端口
 * @description
 * - 从小到大扫描，跳过已分配/已预留的端口，再用TCP连接探测是否有人侦听
 * - 已退出进程的pid可能被系统复用，所以释放只按端口进行
 * - 探测与分配之间存在竞争窗口(外部进程可能抢占端口)，不做处理
 */
type PortAllocator struct {
	min      int
	max      int
	inUse    func(port int) bool
	mutex    sync.Mutex
	assigned map[int]int
	reserved map[int]struct{}
}

func NewPortAllocator(min, max int, probeTimeout time.Duration) *PortAllocator {
	return &PortAllocator{
		min: min,
		max: max,
		inUse: func(port int) bool {
			return utils.CheckPortConnectable(port, probeTimeout)
		},
		assigned: make(map[int]int),
		reserved: make(map[int]struct{}),
	}
}

// SetProbe 替换端口占用探测函数，返回true表示端口已被占用
func (pa *PortAllocator) SetProbe(inUse func(port int) bool) {
	pa.mutex.Lock()
	defer pa.mutex.Unlock()
	pa.inUse = inUse
}

/**
 * Allocate 分配一个空闲端口
 * @returns {int} 分配到的端口，已标记为预留
 * @returns {error} 范围内没有空闲端口时返回NO_FREE_PORT
 * @description
 * - 调用方在进程启动后调用Bind，启动失败时调用Release
 * - 端口耗尽时不重试
 */
func (pa *PortAllocator) Allocate() (int, error) {
	pa.mutex.Lock()
	defer pa.mutex.Unlock()

	for port := pa.min; port <= pa.max; port++ {
		if pa.takenLocked(port) {
			continue
		}
		if pa.inUse(port) {
			continue
		}
		pa.reserved[port] = struct{}{}
		updatePortGauge(len(pa.assigned) + len(pa.reserved))
		return port, nil
	}
	return 0, ErrNoFreePort(pa.min, pa.max)
}

/**
 * Bind 把预留端口登记到进程名下
 * @param {int} pid - 刚启动的进程
 * @param {int} port - Allocate返回的端口
 * @description
 * - 同一个pid名下已有其他端口时(pid被复用)，旧端口保持不变，由它的记录负责释放
 */
func (pa *PortAllocator) Bind(pid, port int) {
	pa.mutex.Lock()
	defer pa.mutex.Unlock()
	delete(pa.reserved, port)
	for p, owner := range pa.assigned {
		if owner == pid && p != port {
			logger.Warnf("PID %d already holds port %d, binding port %d as well", pid, p, port)
		}
	}
	pa.assigned[port] = pid
	updatePortGauge(len(pa.assigned) + len(pa.reserved))
}

// Release 释放端口(无论是预留还是已绑定)
func (pa *PortAllocator) Release(port int) {
	pa.mutex.Lock()
	defer pa.mutex.Unlock()
	delete(pa.reserved, port)
	delete(pa.assigned, port)
	updatePortGauge(len(pa.assigned) + len(pa.reserved))
}

func (pa *PortAllocator) takenLocked(port int) bool {
	if _, ok := pa.reserved[port]; ok {
		return true
	}
	_, ok := pa.assigned[port]
	return ok
}

func (pa *PortAllocator) Count() int {
	pa.mutex.Lock()
	defer pa.mutex.Unlock()
	return len(pa.assigned) + len(pa.reserved)
}

func (pa *PortAllocator) Snapshot() models.PortAllocation {
	pa.mutex.Lock()
	defer pa.mutex.Unlock()

	assigned := make(map[int]int, len(pa.assigned))
	for port, pid := range pa.assigned {
		assigned[port] = pid
	}
	reserved := make([]int, 0, len(pa.reserved))
	for port := range pa.reserved {
		reserved = append(reserved, port)
	}
	sort.Ints(reserved)
	return models.PortAllocation{
		Min:       pa.min,
		Max:       pa.max,
		Assigned:  assigned,
		Reserved:  reserved,
		Available: pa.max - pa.min + 1 - len(assigned) - len(reserved),
	}
}

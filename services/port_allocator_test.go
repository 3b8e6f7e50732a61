package services

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateAscending(t *testing.T) {
	pa := NewPortAllocator(47000, 47002, 100*time.Millisecond)
	pa.SetProbe(noProbe)

	p1, err := pa.Allocate()
	require.NoError(t, err)
	p2, err := pa.Allocate()
	require.NoError(t, err)
	assert.Equal(t, 47000, p1)
	assert.Equal(t, 47001, p2)
	assert.Equal(t, []int{47000, 47001}, pa.Snapshot().Reserved)
	assert.Equal(t, 2, pa.Count())
}

func TestAllocateSkipsProbedPorts(t *testing.T) {
	pa := NewPortAllocator(47000, 47005, 100*time.Millisecond)
	pa.SetProbe(func(port int) bool {
		return port == 47000 || port == 47001
	})

	port, err := pa.Allocate()
	require.NoError(t, err)
	assert.Equal(t, 47002, port)
}

func TestAllocateSkipsLiveListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	busy := ln.Addr().(*net.TCPAddr).Port

	pa := NewPortAllocator(busy, busy+1, 200*time.Millisecond)
	port, err := pa.Allocate()
	if err != nil {
		// busy+1可能恰好也被占用
		assert.True(t, IsErrorCode(err, ErrorCodeNoFreePort))
		return
	}
	assert.NotEqual(t, busy, port)
}

func TestAllocateExhausted(t *testing.T) {
	pa := NewPortAllocator(47000, 47001, 100*time.Millisecond)
	pa.SetProbe(noProbe)

	_, err := pa.Allocate()
	require.NoError(t, err)
	_, err = pa.Allocate()
	require.NoError(t, err)

	_, err = pa.Allocate()
	require.Error(t, err)
	assert.True(t, IsErrorCode(err, ErrorCodeNoFreePort))
	se, _ := AsSupervisorError(err)
	assert.Equal(t, KindResourceExhausted, se.Kind())
	assert.Equal(t, "47000-47001", se.Context["range"])
}

func TestBindAndRelease(t *testing.T) {
	pa := NewPortAllocator(47000, 47001, 100*time.Millisecond)
	pa.SetProbe(noProbe)

	port, err := pa.Allocate()
	require.NoError(t, err)
	pa.Bind(1234, port)

	snap := pa.Snapshot()
	assert.Equal(t, map[int]int{port: 1234}, snap.Assigned)
	assert.Empty(t, snap.Reserved)
	assert.Equal(t, 1, snap.Available)

	pa.Release(port)
	pa.Release(port)
	assert.Empty(t, pa.Snapshot().Assigned)
	assert.Equal(t, 0, pa.Count())

	// 释放后同一个端口可以再次分配
	again, err := pa.Allocate()
	require.NoError(t, err)
	assert.Equal(t, port, again)

	pa.Release(again)
	assert.Equal(t, 0, pa.Count())
}

func TestConcurrentAllocateDistinct(t *testing.T) {
	pa := NewPortAllocator(47000, 47099, 100*time.Millisecond)
	pa.SetProbe(noProbe)

	const n = 50
	ports := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			port, err := pa.Allocate()
			assert.NoError(t, err)
			ports <- port
		}()
	}
	wg.Wait()
	close(ports)

	seen := map[int]bool{}
	for port := range ports {
		assert.False(t, seen[port], "port %d allocated twice", port)
		seen[port] = true
	}
	assert.Len(t, seen, n)
}

// 已退出进程的pid被新进程复用时，两个端口都保持占用，释放一个不影响另一个
func TestBindReusedPid(t *testing.T) {
	pa := NewPortAllocator(47000, 47003, 100*time.Millisecond)
	pa.SetProbe(noProbe)

	stale, err := pa.Allocate()
	require.NoError(t, err)
	pa.Bind(4321, stale)

	live, err := pa.Allocate()
	require.NoError(t, err)
	pa.Bind(4321, live)

	assert.Equal(t, map[int]int{stale: 4321, live: 4321}, pa.Snapshot().Assigned)

	next, err := pa.Allocate()
	require.NoError(t, err)
	assert.NotEqual(t, stale, next)
	assert.NotEqual(t, live, next)
	pa.Release(next)

	pa.Release(stale)
	assert.Equal(t, map[int]int{live: 4321}, pa.Snapshot().Assigned)
}

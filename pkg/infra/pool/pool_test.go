package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewPool(t *testing.T) {
	p, err := NewPool("test", DefaultConfig())
	if err != nil {
		t.Fatalf("创建池失败: %v", err)
	}
	defer p.Release()

	if p.Name() != "test" {
		t.Errorf("池名称不匹配: 期望 test, 实际 %s", p.Name())
	}
	if p.Cap() != 8 {
		t.Errorf("池容量不匹配: 期望 8, 实际 %d", p.Cap())
	}
}

func TestNewPoolInvalidConfig(t *testing.T) {
	_, err := NewPool("bad", &Config{Capacity: 0, ExpiryDuration: time.Second})
	if !errors.Is(err, ErrInvalidPoolConfig) {
		t.Errorf("期望 ErrInvalidPoolConfig, 实际 %v", err)
	}
}

func TestPoolSubmit(t *testing.T) {
	p, err := NewPool("test", &Config{Capacity: 10, ExpiryDuration: 5 * time.Second})
	if err != nil {
		t.Fatalf("创建池失败: %v", err)
	}
	defer p.Release()

	var counter atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		if err := p.Submit(func() {
			defer wg.Done()
			counter.Add(1)
		}); err != nil {
			t.Errorf("提交任务失败: %v", err)
			wg.Done()
		}
	}
	wg.Wait()

	if counter.Load() != 100 {
		t.Errorf("任务执行数不匹配: 期望 100, 实际 %d", counter.Load())
	}
}

func TestPoolSubmitWithContext(t *testing.T) {
	p, err := NewPool("test", &Config{Capacity: 2, ExpiryDuration: 5 * time.Second})
	if err != nil {
		t.Fatalf("创建池失败: %v", err)
	}
	defer p.Release()

	done := make(chan struct{})
	if err := p.SubmitWithContext(context.Background(), func(ctx context.Context) {
		close(done)
	}); err != nil {
		t.Fatalf("提交任务失败: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("任务未执行")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.SubmitWithContext(ctx, func(context.Context) {}); !errors.Is(err, context.Canceled) {
		t.Errorf("期望 context.Canceled, 实际 %v", err)
	}
}

func TestPoolOverload(t *testing.T) {
	p, err := NewPool("test", &Config{Capacity: 1, ExpiryDuration: 5 * time.Second, Nonblocking: true})
	if err != nil {
		t.Fatalf("创建池失败: %v", err)
	}
	defer p.Release()

	block := make(chan struct{})
	started := make(chan struct{})
	if err := p.Submit(func() {
		close(started)
		<-block
	}); err != nil {
		t.Fatalf("提交任务失败: %v", err)
	}
	<-started

	if err := p.Submit(func() {}); !errors.Is(err, ErrPoolOverload) {
		t.Errorf("期望 ErrPoolOverload, 实际 %v", err)
	}
	close(block)

	if p.Stats().Rejected != 1 {
		t.Errorf("拒绝数不匹配: 期望 1, 实际 %d", p.Stats().Rejected)
	}
}

func TestPoolReleased(t *testing.T) {
	p, err := NewPool("test", nil)
	if err != nil {
		t.Fatalf("创建池失败: %v", err)
	}
	p.Release()
	p.Release()

	if err := p.Submit(func() {}); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("期望 ErrPoolClosed, 实际 %v", err)
	}
}

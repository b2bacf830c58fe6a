// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package processor

import (
	"sync"
	"testing"
	"time"
)

func TestFIFOOrder(t *testing.T) {
	pool := NewPool(4)
	p := New(pool)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(100)
	for i := 0; i < 100; i++ {
		i := i
		p.Enqueue(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		})
	}
	wg.Wait()

	for i, v := range order {
		if v != i {
			t.Fatalf("order[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestFence(t *testing.T) {
	pool := NewPool(2)
	p := New(pool)

	var ran bool
	p.Enqueue(func() {
		time.Sleep(10 * time.Millisecond)
		ran = true
	})
	p.Fence()
	if !ran {
		t.Fatal("Fence returned before enqueued task ran")
	}
}

func TestSerialAcrossSharedPool(t *testing.T) {
	pool := NewPool(8)
	a := New(pool)
	b := New(pool)

	var aConcurrent, bConcurrent int32
	var mu sync.Mutex
	var maxA int32

	var wg sync.WaitGroup
	wg.Add(20)
	for i := 0; i < 10; i++ {
		a.Enqueue(func() {
			mu.Lock()
			aConcurrent++
			if aConcurrent > maxA {
				maxA = aConcurrent
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			aConcurrent--
			mu.Unlock()
			wg.Done()
		})
		b.Enqueue(func() {
			mu.Lock()
			bConcurrent++
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			bConcurrent--
			mu.Unlock()
			wg.Done()
		})
	}
	wg.Wait()

	if maxA > 1 {
		t.Fatalf("Processor a ran %d tasks concurrently, want at most 1", maxA)
	}
}

func TestDestroyDrainsThenRejects(t *testing.T) {
	pool := NewPool(2)
	p := New(pool)

	var n int
	p.Enqueue(func() { n++ })
	p.Destroy()

	if n != 1 {
		t.Fatalf("n = %d after Destroy, want 1", n)
	}

	p.Enqueue(func() { n++ })
	if n != 1 {
		t.Fatalf("n = %d after Enqueue on destroyed Processor, want 1", n)
	}
}

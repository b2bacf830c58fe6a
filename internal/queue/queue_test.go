// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package queue

import (
	"testing"
	"time"
)

func TestPushPopOrder(t *testing.T) {
	q := New[int](0, nil)
	for i := 0; i < 5; i++ {
		q.Push(i)
	}
	for i := 0; i < 5; i++ {
		v, ok := q.Pop()
		if !ok || v != i {
			t.Fatalf("Pop() = %d, %v; want %d, true", v, ok, i)
		}
	}
}

func TestPushBlocksUntilSpace(t *testing.T) {
	q := New[int](1, nil)
	q.Push(1)

	done := make(chan struct{})
	go func() {
		q.Push(2)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Push returned before space was freed")
	case <-time.After(50 * time.Millisecond):
	}

	if _, ok := q.Pop(); !ok {
		t.Fatal("Pop() ok = false")
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Push did not unblock after Pop freed space")
	}
}

func TestStopUnblocksPop(t *testing.T) {
	q := New[int](0, nil)
	done := make(chan struct{})
	go func() {
		if _, ok := q.Pop(); ok {
			t.Error("Pop() ok = true after Stop with no pushes")
		}
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	q.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Pop did not unblock after Stop")
	}
}

func TestAmountFunc(t *testing.T) {
	q := New[[]byte](10, func(b []byte) int { return len(b) })
	q.Push([]byte("abc"))
	q.Push([]byte("de"))
	if got := q.Amount(); got != 5 {
		t.Fatalf("Amount() = %d, want 5", got)
	}
	q.Pop()
	if got := q.Amount(); got != 2 {
		t.Fatalf("Amount() after Pop = %d, want 2", got)
	}
}

func TestExchange(t *testing.T) {
	q := New[int](0, nil)
	q.Push(1)
	prev, ok := q.Exchange(2)
	if !ok || prev != 1 {
		t.Fatalf("Exchange() = %d, %v; want 1, true", prev, ok)
	}
	v, _ := q.Pop()
	if v != 2 {
		t.Fatalf("Pop() after Exchange = %d, want 2", v)
	}
}

func TestTryPushFull(t *testing.T) {
	q := New[int](1, nil)
	if !q.TryPush(1) {
		t.Fatal("TryPush() on empty bounded queue = false")
	}
	if q.TryPush(2) {
		t.Fatal("TryPush() on full queue = true")
	}
}

func TestWaitTimeout(t *testing.T) {
	q := New[int](0, nil)
	if q.Wait(20 * time.Millisecond) {
		t.Fatal("Wait() on empty queue = true before timeout")
	}
}

// Copyright (C) 2026 The queryexec Authors.
// All rights reserved. This file is part of queryexec.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package lrucache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// pageKey mirrors the "partitionIdx:pageIdx" cursor shape
// internal/demosource uses as a cache key.
func pageKey(partitionIdx, pageIdx int) string {
	return string(rune('0'+partitionIdx)) + ":" + string(rune('0'+pageIdx))
}

func TestBasics(t *testing.T) {
	cache := New(123)

	value1 := cache.Get(pageKey(0, 0), func() (interface{}, time.Duration, int) {
		return "page-0-0", 1 * time.Second, 0
	})

	if value1.(string) != "page-0-0" {
		t.Error("cache returned wrong value")
	}

	value2 := cache.Get(pageKey(0, 0), func() (interface{}, time.Duration, int) {
		t.Error("value should be cached")
		return "", 0, 0
	})

	if value2.(string) != "page-0-0" {
		t.Error("cache returned wrong value")
	}

	existed := cache.Del(pageKey(0, 0))
	if !existed {
		t.Error("delete did not work as expected")
	}

	value3 := cache.Get(pageKey(0, 0), func() (interface{}, time.Duration, int) {
		return "page-0-0-refetched", 1 * time.Second, 0
	})

	if value3.(string) != "page-0-0-refetched" {
		t.Error("cache returned wrong value")
	}

	cache.Keys(func(key string, value interface{}) {
		if key != pageKey(0, 0) || value.(string) != "page-0-0-refetched" {
			t.Error("cache corrupted")
		}
	})
}

func TestExpiration(t *testing.T) {
	cache := New(123)

	failIfCalled := func() (interface{}, time.Duration, int) {
		t.Error("Value should be cached!")
		return "", 0, 0
	}

	val1 := cache.Get(pageKey(0, 0), func() (interface{}, time.Duration, int) {
		return "page-0-0", 5 * time.Millisecond, 0
	})
	val2 := cache.Get(pageKey(1, 0), func() (interface{}, time.Duration, int) {
		return "page-1-0", 20 * time.Millisecond, 0
	})

	val3 := cache.Get(pageKey(0, 0), failIfCalled).(string)
	val4 := cache.Get(pageKey(1, 0), failIfCalled).(string)

	if val1 != val3 || val3 != "page-0-0" || val2 != val4 || val4 != "page-1-0" {
		t.Error("Wrong values returned")
	}

	time.Sleep(10 * time.Millisecond)

	val5 := cache.Get(pageKey(0, 0), func() (interface{}, time.Duration, int) {
		return "page-0-0-refetched", 0, 0
	})
	val6 := cache.Get(pageKey(1, 0), failIfCalled)

	if val5.(string) != "page-0-0-refetched" || val6.(string) != "page-1-0" {
		t.Error("unexpected values")
	}

	cache.Keys(func(key string, val interface{}) {
		if key != pageKey(1, 0) || val.(string) != "page-1-0" {
			t.Error("wrong value expired")
		}
	})

	time.Sleep(15 * time.Millisecond)
	cache.Keys(func(key string, val interface{}) {
		t.Error("cache should be empty now")
	})
}

func TestEviction(t *testing.T) {
	c := New(100)
	failIfCalled := func() (interface{}, time.Duration, int) {
		t.Error("Value should be cached!")
		return "", 0, 0
	}

	v1 := c.Get(pageKey(0, 0), func() (interface{}, time.Duration, int) {
		return "page-0-0", 1 * time.Second, 1000
	})

	v2 := c.Get(pageKey(0, 0), func() (interface{}, time.Duration, int) {
		return "page-0-0-recomputed", 1 * time.Second, 1000
	})

	if v1.(string) != "page-0-0" || v2.(string) != "page-0-0-recomputed" {
		t.Error("wrong values returned")
	}

	c.Keys(func(key string, val interface{}) {
		t.Error("cache should be empty now")
	})

	_ = c.Get(pageKey(0, 0), func() (interface{}, time.Duration, int) {
		return "page-0-0", 1 * time.Second, 50
	})

	_ = c.Get(pageKey(0, 1), func() (interface{}, time.Duration, int) {
		return "page-0-1", 1 * time.Second, 50
	})

	_ = c.Get(pageKey(0, 0), failIfCalled)
	_ = c.Get(pageKey(0, 1), failIfCalled)
	_ = c.Get(pageKey(0, 2), func() (interface{}, time.Duration, int) {
		return "page-0-2", 1 * time.Second, 50
	})

	_ = c.Get(pageKey(0, 1), failIfCalled)
	_ = c.Get(pageKey(0, 2), failIfCalled)

	v4 := c.Get(pageKey(0, 0), func() (interface{}, time.Duration, int) {
		return "page-0-0-evicted", 1 * time.Second, 25
	})

	if v4.(string) != "page-0-0-evicted" {
		t.Error("value should have been evicted")
	}

	c.Keys(func(key string, val interface{}) {
		if key != pageKey(0, 0) && key != pageKey(0, 2) {
			t.Errorf("'%s' was not expected", key)
		}
	})
}

// I know that this is a shity test,
// time is relative and unreliable.
func TestConcurrency(t *testing.T) {
	c := New(100)
	var wg sync.WaitGroup

	numActions := 20000
	numThreads := 4
	wg.Add(numThreads)

	var concurrentModifications int32 = 0

	for i := 0; i < numThreads; i++ {
		go func() {
			for j := 0; j < numActions; j++ {
				_ = c.Get(pageKey(0, 0), func() (interface{}, time.Duration, int) {
					m := atomic.AddInt32(&concurrentModifications, 1)
					if m != 1 {
						t.Error("only one goroutine at a time should fetch a page for the same key")
					}

					time.Sleep(1 * time.Millisecond)
					atomic.AddInt32(&concurrentModifications, -1)
					return "page-0-0", 3 * time.Millisecond, 1
				})
			}

			wg.Done()
		}()
	}

	wg.Wait()

	c.Keys(func(key string, val interface{}) {})
}

func TestPanic(t *testing.T) {
	c := New(100)

	c.Put(pageKey(1, 0), "page-1-0", 3, 1*time.Minute)

	testpanic := func() {
		defer func() {
			if r := recover(); r != nil {
				if r.(string) != "fetch failed" {
					t.Fatal("unexpected panic value")
				}
			}
		}()

		_ = c.Get(pageKey(0, 0), func() (value interface{}, ttl time.Duration, size int) {
			panic("fetch failed")
		})

		t.Fatal("should have paniced!")
	}

	testpanic()

	v := c.Get(pageKey(1, 0), func() (value interface{}, ttl time.Duration, size int) {
		t.Fatal("should not be called!")
		return nil, 0, 0
	})

	if v.(string) != "page-1-0" {
		t.Fatal("unexpected value")
	}

	testpanic()
}

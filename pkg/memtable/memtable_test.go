package memtable

import (
	"testing"
	"time"

	"github.com/quiver-db/quiver/pkg/kv"
)

func TestMemTableBasicOperations(t *testing.T) {
	mt := New(1000)

	mt.Put(1, 100)
	value, found := mt.Get(1)
	if !found || value != 100 {
		t.Fatalf("Get(1) = %d, %v, want 100, true", value, found)
	}

	if _, found := mt.Get(2); found {
		t.Error("Get(2) found a key that was never inserted")
	}

	mt.Put(1, kv.Tombstone)
	value, found = mt.Get(1)
	if !found {
		t.Fatal("expected tombstone to still be found for key 1")
	}
	if value != kv.Tombstone {
		t.Errorf("expected tombstone value, got %d", value)
	}

	if mt.Len() != 1 {
		t.Errorf("Len() = %d, want 1", mt.Len())
	}
}

func TestMemTableOverwrite(t *testing.T) {
	mt := New(10)
	mt.Put(5, 50)
	mt.Put(5, 500)
	mt.Put(5, 5000)

	value, found := mt.Get(5)
	if !found || value != 5000 {
		t.Fatalf("Get(5) = %d, %v, want 5000, true", value, found)
	}
	if mt.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (overwrite must not grow entry count)", mt.Len())
	}
}

func TestMemTableCapacity(t *testing.T) {
	mt := New(3)
	mt.Put(1, 1)
	mt.Put(2, 2)
	if mt.WouldOverflow() {
		t.Fatal("WouldOverflow() true below capacity")
	}
	mt.Put(3, 3)
	if !mt.WouldOverflow() {
		t.Fatal("WouldOverflow() false at capacity")
	}
}

func TestCapacityFromMB(t *testing.T) {
	got := CapacityFromMB(1)
	want := (1024 * 1024) / 16
	if got != want {
		t.Errorf("CapacityFromMB(1) = %d, want %d", got, want)
	}
}

func TestMemTableAge(t *testing.T) {
	mt := New(10)
	if age := mt.Age(); age > 1.0 {
		t.Errorf("expected new memtable to have age < 1.0s, got %.2fs", age)
	}
	time.Sleep(10 * time.Millisecond)
	if age := mt.Age(); age <= 0.0 {
		t.Errorf("expected memtable age to be > 0, got %.6fs", age)
	}
}

func TestMemTableDrainSorted(t *testing.T) {
	mt := New(10)
	for _, k := range []int64{5, 1, 4, 2, 3} {
		mt.Put(k, k*10)
	}

	entries := mt.DrainSorted()
	if len(entries) != 5 {
		t.Fatalf("DrainSorted returned %d entries, want 5", len(entries))
	}
	for i, e := range entries {
		wantKey := int64(i + 1)
		if e.Key != wantKey || e.Value != wantKey*10 {
			t.Errorf("entries[%d] = %+v, want key %d value %d", i, e, wantKey, wantKey*10)
		}
	}
	if mt.Len() != 5 {
		t.Errorf("DrainSorted must not remove entries; Len() = %d, want 5", mt.Len())
	}
}

func TestMemTableScan(t *testing.T) {
	mt := New(100)
	for i := int64(0); i < 20; i++ {
		mt.Put(i, i*10)
	}

	it := mt.Scan(5, 9)
	var got []kv.Entry
	for it.Next() {
		got = append(got, it.Entry())
	}
	if err := it.Err(); err != nil {
		t.Fatalf("Scan iterator error: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("Scan(5,9) returned %d entries, want 5", len(got))
	}
	for i, e := range got {
		wantKey := int64(5 + i)
		if e.Key != wantKey || e.Value != wantKey*10 {
			t.Errorf("got[%d] = %+v, want key %d", i, e, wantKey)
		}
	}
}

func TestMemTableScanEmptyRange(t *testing.T) {
	mt := New(10)
	mt.Put(1, 1)
	mt.Put(2, 2)
	it := mt.Scan(100, 200)
	if it.Next() {
		t.Fatal("Scan over an empty range produced an entry")
	}
}

package memtable

import "testing"

func TestSkipListPutGet(t *testing.T) {
	sl := NewSkipList(1)

	if created := sl.Put(2, 20); !created {
		t.Fatal("Put on a new key returned false")
	}
	if created := sl.Put(1, 10); !created {
		t.Fatal("Put on a new key returned false")
	}
	if created := sl.Put(3, 30); !created {
		t.Fatal("Put on a new key returned false")
	}

	if v, ok := sl.Get(2); !ok || v != 20 {
		t.Fatalf("Get(2) = %d, %v, want 20, true", v, ok)
	}
	if _, ok := sl.Get(4); ok {
		t.Fatal("Get(4) found a key that was never inserted")
	}
	if sl.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", sl.Len())
	}
}

func TestSkipListPutOverwrites(t *testing.T) {
	sl := NewSkipList(1)
	sl.Put(5, 50)
	if created := sl.Put(5, 500); created {
		t.Fatal("Put on an existing key returned true")
	}
	if v, ok := sl.Get(5); !ok || v != 500 {
		t.Fatalf("Get(5) = %d, %v, want 500, true", v, ok)
	}
	if sl.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", sl.Len())
	}
}

func TestSkipListIteratorAscending(t *testing.T) {
	sl := NewSkipList(1)
	keys := []int64{5, 1, 4, 2, 3}
	for _, k := range keys {
		sl.Put(k, k*10)
	}

	it := sl.NewIterator()
	it.SeekToFirst()
	var got []int64
	for it.Valid() {
		got = append(got, it.Key())
		if it.Value() != it.Key()*10 {
			t.Fatalf("value for key %d = %d, want %d", it.Key(), it.Value(), it.Key()*10)
		}
		it.Next()
	}
	want := []int64{1, 2, 3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("iterated %d keys, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestSkipListSeek(t *testing.T) {
	sl := NewSkipList(1)
	for _, k := range []int64{10, 20, 30, 40} {
		sl.Put(k, k)
	}

	cases := []struct {
		seek  int64
		valid bool
		want  int64
	}{
		{5, true, 10},
		{20, true, 20},
		{25, true, 30},
		{41, false, 0},
	}
	for _, tc := range cases {
		it := sl.NewIterator()
		it.Seek(tc.seek)
		if it.Valid() != tc.valid {
			t.Fatalf("Seek(%d): Valid() = %v, want %v", tc.seek, it.Valid(), tc.valid)
		}
		if tc.valid && it.Key() != tc.want {
			t.Fatalf("Seek(%d): Key() = %d, want %d", tc.seek, it.Key(), tc.want)
		}
	}
}

func TestSkipListEmptyIterator(t *testing.T) {
	sl := NewSkipList(1)
	it := sl.NewIterator()
	it.SeekToFirst()
	if it.Valid() {
		t.Fatal("empty skip list iterator reports Valid()")
	}
}

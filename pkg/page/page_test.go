package page

import (
	"testing"

	"github.com/quiver-db/quiver/pkg/kv"
)

func TestEncodeDecodeEntriesRoundTrip(t *testing.T) {
	entries := []kv.Entry{
		{Key: -5, Value: 100},
		{Key: 0, Value: kv.Tombstone},
		{Key: 42, Value: 7},
	}

	buf := EncodeEntries(entries)
	if len(buf) != Size {
		t.Fatalf("expected encoded page of %d bytes, got %d", Size, len(buf))
	}

	got := DecodeEntries(buf, len(entries))
	if len(got) != len(entries) {
		t.Fatalf("expected %d entries, got %d", len(entries), len(got))
	}
	for i, e := range entries {
		if got[i] != e {
			t.Errorf("entry %d: got %+v, want %+v", i, got[i], e)
		}
	}
}

func TestDecodeEntriesIgnoresPadding(t *testing.T) {
	entries := []kv.Entry{{Key: 1, Value: 2}}
	buf := EncodeEntries(entries)
	got := DecodeEntries(buf, 1)
	if len(got) != 1 || got[0] != entries[0] {
		t.Fatalf("expected only the live entry to decode, got %+v", got)
	}
}

func TestDecodeEntriesClampsCount(t *testing.T) {
	buf := make([]byte, Size)
	got := DecodeEntries(buf, EntriesPerPage+1000)
	if len(got) != EntriesPerPage {
		t.Errorf("expected count clamped to %d, got %d", EntriesPerPage, len(got))
	}
}

func TestEncodeDecodeDelimitersRoundTrip(t *testing.T) {
	keys := []int64{-100, 0, 5, 999999}
	buf := EncodeDelimiters(keys)
	if len(buf) != Size {
		t.Fatalf("expected encoded page of %d bytes, got %d", Size, len(buf))
	}

	got := DecodeDelimiters(buf, len(keys))
	if len(got) != len(keys) {
		t.Fatalf("expected %d keys, got %d", len(keys), len(got))
	}
	for i, k := range keys {
		if got[i] != k {
			t.Errorf("key %d: got %d, want %d", i, got[i], k)
		}
	}
}

func TestDecodeDelimitersClampsCount(t *testing.T) {
	buf := make([]byte, Size)
	got := DecodeDelimiters(buf, DelimitersPerPage+10)
	if len(got) != DelimitersPerPage {
		t.Errorf("expected count clamped to %d, got %d", DelimitersPerPage, len(got))
	}
}

func TestValidSize(t *testing.T) {
	if !ValidSize(0) {
		t.Error("0 bytes should be a valid (empty) size")
	}
	if !ValidSize(Size) {
		t.Errorf("%d bytes should be a valid single-page size", Size)
	}
	if !ValidSize(Size * 3) {
		t.Error("a multiple of Size should be valid")
	}
	if ValidSize(Size + 1) {
		t.Error("Size+1 should not be a valid page count")
	}
}

func TestPageConstants(t *testing.T) {
	if EntriesPerPage != Size/kv.EntrySize {
		t.Errorf("EntriesPerPage = %d, want %d", EntriesPerPage, Size/kv.EntrySize)
	}
	if DelimitersPerPage != Size/8 {
		t.Errorf("DelimitersPerPage = %d, want %d", DelimitersPerPage, Size/8)
	}
}

package cache

import (
	"fmt"
	"testing"

	"github.com/dshills/nextedit/internal/clock"
	"github.com/dshills/nextedit/internal/engine/document"
	"github.com/dshills/nextedit/internal/engine/edit"
)

func newTestStore(capacity int) *Store {
	return NewStore(StoreConfig{Capacity: capacity, Clock: clock.NewMock()})
}

func cursorAt(off int) []edit.Range {
	return []edit.Range{edit.NewRange(off, off)}
}

func window(start, end int) *edit.Range {
	r := edit.NewRange(start, end)
	return &r
}

func TestExactLookup(t *testing.T) {
	t.Run("hit on identical text", func(t *testing.T) {
		s := newTestStore(0)
		s.Insert(&Entry{Doc: "a", TextBefore: "abc", Edit: edit.Single(1, 2, "X")})

		res, ok := s.Lookup("a", "abc", cursorAt(1))
		if !ok {
			t.Fatal("expected a hit")
		}
		if res.Rebased {
			t.Error("exact hit should not be marked rebased")
		}
		if !res.Edit.Equal(edit.Single(1, 2, "X")) {
			t.Errorf("unexpected edit %s", res.Edit)
		}
	})

	t.Run("identical lookups are idempotent", func(t *testing.T) {
		s := newTestStore(0)
		s.Insert(&Entry{Doc: "a", TextBefore: "abc", Edit: edit.Single(1, 2, "X")})

		first, ok1 := s.Lookup("a", "abc", cursorAt(1))
		second, ok2 := s.Lookup("a", "abc", cursorAt(1))
		if !ok1 || !ok2 {
			t.Fatal("expected both lookups to hit")
		}
		if first.Entry != second.Entry || !first.Edit.Equal(second.Edit) {
			t.Error("repeated lookup returned a different result")
		}
	})

	t.Run("miss on different text", func(t *testing.T) {
		s := newTestStore(0)
		s.Insert(&Entry{Doc: "a", TextBefore: "abc", Edit: edit.Single(1, 2, "X")})

		// No HandleEdit was recorded, so the rebase path drops the
		// candidate as drifted rather than serving it.
		if _, ok := s.Lookup("a", "xyz", cursorAt(0)); ok {
			t.Error("expected a miss")
		}
	})

	t.Run("cursor outside window misses", func(t *testing.T) {
		s := newTestStore(0)
		s.Insert(&Entry{
			Doc: "a", TextBefore: "0123456789",
			Edit:       edit.Single(4, 5, "X"),
			EditWindow: window(3, 6),
		})

		if _, ok := s.Lookup("a", "0123456789", cursorAt(9)); ok {
			t.Error("expected a miss with cursor outside window")
		}
		if _, ok := s.Lookup("a", "0123456789", cursorAt(4)); !ok {
			t.Error("expected a hit with cursor inside window")
		}
	})

	t.Run("dual window accepts pre-jump cursor", func(t *testing.T) {
		s := newTestStore(0)
		s.Insert(&Entry{
			Doc: "a", TextBefore: "0123456789",
			Edit:               edit.Single(8, 9, "X"),
			EditWindow:         window(7, 10),
			OriginalEditWindow: window(0, 2),
		})

		if _, ok := s.Lookup("a", "0123456789", cursorAt(1)); !ok {
			t.Error("expected the original window to serve the hit")
		}
	})

	t.Run("rejected entry still hits", func(t *testing.T) {
		s := newTestStore(0)
		e := &Entry{Doc: "a", TextBefore: "abc", Edit: edit.Single(1, 2, "X"), EditWindow: window(0, 1)}
		s.Insert(e)
		s.MarkRejected("a", "abc")

		// Rejected hits bypass the window check so callers can suppress
		// without refetching.
		res, ok := s.Lookup("a", "abc", cursorAt(3))
		if !ok {
			t.Fatal("expected a hit")
		}
		if !res.Entry.Rejected() {
			t.Error("expected the rejected flag on the result")
		}
	})
}

func TestRebaseLookup(t *testing.T) {
	t.Run("end to end insert before", func(t *testing.T) {
		// Document "foo" with text "abc"; fetch produced replace(1,2,"X")
		// anchored to "abc"; user types "z" at offset 0; a lookup for
		// "zabc" must return replace(2,3,"X"), not a miss.
		s := newTestStore(0)
		s.Insert(&Entry{
			Doc: "foo", TextBefore: "abc",
			Edit:       edit.Single(1, 2, "X"),
			EditWindow: window(0, 3),
		})

		s.HandleEdit("foo", edit.Single(0, 0, "z"), "zabc")

		res, ok := s.Lookup("foo", "zabc", cursorAt(2))
		if !ok {
			t.Fatal("expected a rebased hit")
		}
		if !res.Rebased {
			t.Error("expected the rebase path")
		}
		want := edit.Single(2, 3, "X")
		if !res.Edit.Equal(want) {
			t.Errorf("expected %s, got %s", want, res.Edit)
		}
	})

	t.Run("multiple edits accumulate", func(t *testing.T) {
		s := newTestStore(0)
		s.Insert(&Entry{Doc: "a", TextBefore: "hello world", Edit: edit.Single(6, 11, "there")})

		s.HandleEdit("a", edit.Single(0, 0, "X"), "Xhello world")
		s.HandleEdit("a", edit.Single(1, 1, "Y"), "XYhello world")

		res, ok := s.Lookup("a", "XYhello world", cursorAt(8))
		if !ok {
			t.Fatal("expected a rebased hit")
		}
		want := edit.Single(8, 13, "there")
		if !res.Edit.Equal(want) {
			t.Errorf("expected %s, got %s", want, res.Edit)
		}
	})

	t.Run("conflicting edit fails permanently", func(t *testing.T) {
		s := newTestStore(0)
		e := &Entry{Doc: "a", TextBefore: "abcdef", Edit: edit.Single(2, 4, "XY")}
		s.Insert(e)

		// User typing inside the suggested region conflicts.
		s.HandleEdit("a", edit.Single(3, 3, "q"), "abcqdef")

		if _, ok := s.Lookup("a", "abcqdef", cursorAt(3)); ok {
			t.Fatal("expected a miss on conflict")
		}
		if e.Trackable() {
			t.Error("entry should no longer be a rebase candidate")
		}
	})

	t.Run("negative entry rebases as negative", func(t *testing.T) {
		s := newTestStore(0)
		s.Insert(&Entry{Doc: "a", TextBefore: "abc"})

		s.HandleEdit("a", edit.Single(3, 3, "d"), "abcd")

		res, ok := s.Lookup("a", "abcd", cursorAt(4))
		if !ok {
			t.Fatal("expected the cached negative to rebase")
		}
		if !res.Edit.IsEmpty() {
			t.Errorf("expected an empty edit, got %s", res.Edit)
		}
	})

	t.Run("window transforms with the text", func(t *testing.T) {
		s := newTestStore(0)
		s.Insert(&Entry{
			Doc: "a", TextBefore: "0123456789",
			Edit:       edit.Single(5, 6, "X"),
			EditWindow: window(4, 7),
		})
		s.HandleEdit("a", edit.Single(0, 0, "aa"), "aa0123456789")

		// Old window [4,7) is now [6,9).
		if _, ok := s.Lookup("a", "aa0123456789", cursorAt(4)); ok {
			t.Error("expected a miss outside the shifted window")
		}
		if _, ok := s.Lookup("a", "aa0123456789", cursorAt(7)); !ok {
			t.Error("expected a hit inside the shifted window")
		}
	})

	t.Run("dropping a drifted candidate keeps scanning the rest", func(t *testing.T) {
		s := newTestStore(0)

		// Three candidates, newest first after inserts: a drifted head,
		// a servable middle, and a tail whose window excludes the cursor.
		tail := &Entry{Doc: "a", TextBefore: "ab", Edit: edit.Single(0, 1, "Y"), EditWindow: window(0, 1)}
		s.Insert(tail)
		s.HandleEdit("a", edit.Single(2, 2, "c"), "abc")
		s.Insert(&Entry{Doc: "a", TextBefore: "abc", Edit: edit.Single(1, 2, "X")})
		s.HandleEdit("a", edit.Single(3, 3, "d"), "abcd")
		head := &Entry{Doc: "a", TextBefore: "zzz", Edit: edit.Single(0, 1, "Q")}
		s.Insert(head)

		res, ok := s.Lookup("a", "abcd", cursorAt(3))
		if !ok {
			t.Fatal("expected the candidate behind the drifted head to serve")
		}
		if !res.Edit.Equal(edit.Single(1, 2, "X")) {
			t.Errorf("unexpected edit %s", res.Edit)
		}
		if head.Trackable() {
			t.Error("drifted head should have lost tracking")
		}
	})

	t.Run("untracked edit drops candidate silently", func(t *testing.T) {
		s := newTestStore(0)
		e := &Entry{Doc: "a", TextBefore: "abc", Edit: edit.Single(1, 2, "X")}
		s.Insert(e)

		// A lookup against text the composition cannot explain drops
		// tracking but does not fail.
		if _, ok := s.Lookup("a", "completely different", cursorAt(0)); ok {
			t.Fatal("expected a miss")
		}
		if e.Trackable() {
			t.Error("expected tracking to be dropped")
		}
	})
}

func TestEviction(t *testing.T) {
	t.Run("capacity eviction detaches tracking", func(t *testing.T) {
		s := newTestStore(50)

		var first *Entry
		for i := 0; i < 51; i++ {
			e := &Entry{
				Doc:        document.ID(fmt.Sprintf("doc-%d", i)),
				TextBefore: "abc",
				Edit:       edit.Single(0, 1, "X"),
			}
			if i == 0 {
				first = e
			}
			s.Insert(e)
		}

		if got := s.Stats()["entries"]; got != 50 {
			t.Errorf("expected 50 entries after eviction, got %d", got)
		}
		if first.Trackable() {
			t.Error("evicted entry must no longer be a rebase candidate")
		}
		s.HandleEdit("doc-0", edit.Single(0, 0, "z"), "zabc")
		if _, ok := s.Lookup("doc-0", "zabc", cursorAt(0)); ok {
			t.Error("evicted entry served a rebase-path lookup")
		}
	})

	t.Run("lru order respects access", func(t *testing.T) {
		s := newTestStore(2)
		s.Insert(&Entry{Doc: "a", TextBefore: "1"})
		s.Insert(&Entry{Doc: "b", TextBefore: "2"})

		// Touch a so b becomes the eviction victim.
		if _, ok := s.Lookup("a", "1", nil); !ok {
			t.Fatal("expected a hit")
		}
		s.Insert(&Entry{Doc: "c", TextBefore: "3"})

		if _, ok := s.Lookup("a", "1", nil); !ok {
			t.Error("recently used entry was evicted")
		}
		if _, ok := s.Lookup("b", "2", nil); ok {
			t.Error("least recently used entry survived")
		}
	})

	t.Run("cross document eviction", func(t *testing.T) {
		s := newTestStore(0)
		s.SetCrossDocEviction(true)
		s.Insert(&Entry{Doc: "a", TextBefore: "aa"})
		s.Insert(&Entry{Doc: "b", TextBefore: "bb"})

		s.HandleEdit("a", edit.Single(0, 0, "x"), "xaa")

		if _, ok := s.Lookup("b", "bb", nil); ok {
			t.Error("expected other document's entry to be evicted")
		}
	})

	t.Run("remove doc clears everything", func(t *testing.T) {
		s := newTestStore(0)
		s.Insert(&Entry{Doc: "a", TextBefore: "aa"})
		s.RemoveDoc("a")
		if _, ok := s.Lookup("a", "aa", nil); ok {
			t.Error("expected removal")
		}
		if s.Stats()["trackedEntries"] != 0 {
			t.Error("expected tracking to be cleared")
		}
	})
}

func TestTrackedBound(t *testing.T) {
	s := NewStore(StoreConfig{MaxTrackedPerDoc: 2, Clock: clock.NewMock()})
	entries := make([]*Entry, 3)
	for i := range entries {
		entries[i] = &Entry{Doc: "a", TextBefore: fmt.Sprintf("text-%d", i)}
		s.Insert(entries[i])
	}

	if entries[0].Trackable() {
		t.Error("oldest candidate should have been dropped")
	}
	if !entries[1].Trackable() || !entries[2].Trackable() {
		t.Error("recent candidates should remain trackable")
	}
}

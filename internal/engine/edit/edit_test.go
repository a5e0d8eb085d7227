package edit

import "testing"

func TestApply(t *testing.T) {
	t.Run("single replacement", func(t *testing.T) {
		got, err := Single(1, 2, "X").Apply("abc")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "aXc" {
			t.Errorf("expected %q, got %q", "aXc", got)
		}
	})

	t.Run("insert", func(t *testing.T) {
		got, err := Single(0, 0, "z").Apply("abc")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "zabc" {
			t.Errorf("expected %q, got %q", "zabc", got)
		}
	})

	t.Run("delete", func(t *testing.T) {
		got, err := Single(1, 3, "").Apply("abcd")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "ad" {
			t.Errorf("expected %q, got %q", "ad", got)
		}
	})

	t.Run("multiple replacements", func(t *testing.T) {
		e := MustNew(
			NewReplacement(0, 1, "A"),
			NewReplacement(2, 3, "C"),
		)
		got, err := e.Apply("abc")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "AbC" {
			t.Errorf("expected %q, got %q", "AbC", got)
		}
	})

	t.Run("empty edit is identity", func(t *testing.T) {
		got, err := Empty().Apply("abc")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "abc" {
			t.Errorf("expected %q, got %q", "abc", got)
		}
	})

	t.Run("out of bounds", func(t *testing.T) {
		if _, err := Single(2, 9, "x").Apply("abc"); err == nil {
			t.Error("expected out-of-bounds error")
		}
	})
}

func TestNewValidation(t *testing.T) {
	t.Run("rejects overlap", func(t *testing.T) {
		_, err := New(
			NewReplacement(0, 3, "x"),
			NewReplacement(2, 5, "y"),
		)
		if err == nil {
			t.Error("expected overlap error")
		}
	})

	t.Run("allows touching ranges", func(t *testing.T) {
		_, err := New(
			NewReplacement(0, 2, "x"),
			NewReplacement(2, 4, "y"),
		)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("drops noop replacements", func(t *testing.T) {
		e := MustNew(
			NewReplacement(1, 1, ""),
			NewReplacement(2, 3, "y"),
		)
		if e.Len() != 1 {
			t.Errorf("expected 1 replacement, got %d", e.Len())
		}
	})
}

func TestDelta(t *testing.T) {
	e := MustNew(
		NewReplacement(0, 2, "xyz"), // +1
		NewReplacement(4, 7, "a"),   // -2
	)
	if e.Delta() != -1 {
		t.Errorf("expected delta -1, got %d", e.Delta())
	}
}

func TestCompose(t *testing.T) {
	// Every case is verified by replay: applying the composed edit to the
	// base text must equal applying both edits in sequence.
	cases := []struct {
		name  string
		text  string
		first Edit
		then  Edit
	}{
		{"disjoint", "hello world", Single(0, 5, "goodbye"), Single(8, 13, "earth")},
		{"second before first", "hello world", Single(6, 11, "there"), Single(0, 5, "hi")},
		{"insert then insert after", "abc", Single(1, 1, "XY"), Single(3, 3, "Z")},
		{"insert then edit inside insertion", "abc", Single(1, 1, "XYZ"), Single(2, 3, "!")},
		{"edit then delete covering it", "abcdef", Single(2, 4, "XY"), Single(1, 5, "")},
		{"delete then insert at same spot", "abcdef", Single(2, 4, ""), Single(2, 2, "Q")},
		{"replace then extend", "abcdef", Single(2, 4, "XY"), Single(4, 6, "ZW")},
		{"adjacent edits", "abcdef", MustNew(NewReplacement(0, 1, "A"), NewReplacement(3, 4, "D")), Single(1, 3, "bc!")},
		{"second spans kept and inserted", "abcdef", Single(3, 3, "XYZ"), Single(2, 5, "q")},
		{"empty first", "abc", Empty(), Single(1, 2, "B")},
		{"empty second", "abc", Single(1, 2, "B"), Empty()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mid, err := tc.first.Apply(tc.text)
			if err != nil {
				t.Fatalf("first apply: %v", err)
			}
			want, err := tc.then.Apply(mid)
			if err != nil {
				t.Fatalf("second apply: %v", err)
			}

			composed, err := tc.first.Compose(tc.then)
			if err != nil {
				t.Fatalf("compose: %v", err)
			}
			got, err := composed.Apply(tc.text)
			if err != nil {
				t.Fatalf("composed apply: %v", err)
			}
			if got != want {
				t.Errorf("compose replay mismatch: got %q, want %q (composed %s)", got, want, composed)
			}
		})
	}
}

func TestComposeChain(t *testing.T) {
	// Simulates the cache's running userEditSince composition: a series of
	// single-character typing edits composed one at a time.
	text := "func main() {}"
	running := Empty()
	current := text

	typing := []Edit{
		Single(13, 13, "\n"),
		Single(14, 14, "\t"),
		Single(15, 15, "p"),
		Single(16, 16, "r"),
		Single(5, 9, "run"),
	}

	for i, step := range typing {
		next, err := step.Apply(current)
		if err != nil {
			t.Fatalf("step %d apply: %v", i, err)
		}
		running, err = running.Compose(step)
		if err != nil {
			t.Fatalf("step %d compose: %v", i, err)
		}
		replayed, err := running.Apply(text)
		if err != nil {
			t.Fatalf("step %d replay: %v", i, err)
		}
		if replayed != next {
			t.Fatalf("step %d: replay %q != incremental %q", i, replayed, next)
		}
		current = next
	}
}

func TestNormalize(t *testing.T) {
	t.Run("trims shared prefix and suffix", func(t *testing.T) {
		// Replacing "hello world" with "hello brave world" is effectively
		// inserting "brave " at offset 6.
		e := Single(0, 11, "hello brave world").Normalize("hello world")
		want := Single(6, 6, "brave ")
		if !e.Equal(want) {
			t.Errorf("expected %s, got %s", want, e)
		}
	})

	t.Run("identical text normalizes to empty", func(t *testing.T) {
		e := Single(0, 3, "abc").Normalize("abc")
		if !e.IsEmpty() {
			t.Errorf("expected empty edit, got %s", e)
		}
	})

	t.Run("equal effective edits compare equal", func(t *testing.T) {
		text := "one two three"
		a := Single(4, 7, "2").Normalize(text)
		b := Single(0, 13, "one 2 three").Normalize(text)
		if !a.Equal(b) {
			t.Errorf("normalized forms differ: %s vs %s", a, b)
		}
	})
}

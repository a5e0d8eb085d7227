package edit

import "sort"

// span is a region of the intermediate text produced by an edit: either a
// stretch kept from the original text or the inserted text of one
// replacement. Offsets t1Start/t1End are in the intermediate text; tStart
// is the corresponding original-text offset (keep spans only).
type span struct {
	t1Start, t1End int
	repl           *Replacement // nil for keep spans
	tStart         int
}

// spans lays out the intermediate text of e as alternating keep and
// replacement spans. The trailing keep span is open-ended.
func (e Edit) spans() []span {
	const inf = int(^uint(0) >> 1)
	out := make([]span, 0, 2*len(e.repls)+1)
	posT, posT1 := 0, 0
	for i := range e.repls {
		r := &e.repls[i]
		if r.Range.Start > posT {
			n := r.Range.Start - posT
			out = append(out, span{t1Start: posT1, t1End: posT1 + n, tStart: posT})
			posT1 += n
		}
		out = append(out, span{t1Start: posT1, t1End: posT1 + len(r.Text), repl: r, tStart: r.Range.Start})
		posT1 += len(r.Text)
		posT = r.Range.End
	}
	out = append(out, span{t1Start: posT1, t1End: inf, tStart: posT})
	return out
}

// interval is a region of the intermediate text affected by either a
// replacement of the first edit or one of the second.
type interval struct {
	start, end int
	aRepl      *Replacement // set for first-edit spans
	bRepl      *Replacement // set for second-edit replacements
}

// Compose returns the single edit equivalent to applying e and then
// other. e is anchored to some text T; other must be anchored to
// e.Apply(T). The result is anchored to T.
func (e Edit) Compose(other Edit) (Edit, error) {
	if e.IsEmpty() {
		return other, nil
	}
	if other.IsEmpty() {
		return e, nil
	}

	ss := e.spans()

	var ivs []interval
	for _, s := range ss {
		if s.repl != nil {
			ivs = append(ivs, interval{start: s.t1Start, end: s.t1End, aRepl: s.repl})
		}
	}
	for i := range other.repls {
		r := &other.repls[i]
		ivs = append(ivs, interval{start: r.Range.Start, end: r.Range.End, bRepl: r})
	}
	sort.SliceStable(ivs, func(i, j int) bool {
		if ivs[i].start != ivs[j].start {
			return ivs[i].start < ivs[j].start
		}
		return ivs[i].end < ivs[j].end
	})

	var out []Replacement
	for i := 0; i < len(ivs); {
		j := i + 1
		end := ivs[i].end
		for j < len(ivs) && ivs[j].start <= end {
			if ivs[j].end > end {
				end = ivs[j].end
			}
			j++
		}
		r, err := composeCluster(ss, ivs[i:j], ivs[i].start, end)
		if err != nil {
			return Edit{}, err
		}
		if !r.IsNoop() {
			out = append(out, r)
		}
		i = j
	}
	return New(out...)
}

// composeCluster flattens one run of overlapping intervals into a single
// original-text replacement.
func composeCluster(ss []span, members []interval, cs, ce int) (Replacement, error) {
	tStart, tEnd := -1, -1
	for _, iv := range members {
		var lo, hi int
		if iv.aRepl != nil {
			lo, hi = iv.aRepl.Range.Start, iv.aRepl.Range.End
		} else {
			lo = mapToOriginalLow(ss, iv.start)
			hi = mapToOriginalHigh(ss, iv.end)
		}
		if tStart < 0 || lo < tStart {
			tStart = lo
		}
		if hi > tEnd {
			tEnd = hi
		}
	}

	var text []byte
	pos := cs
	for _, iv := range members {
		if iv.bRepl == nil {
			continue
		}
		text = appendInsertedText(text, ss, pos, iv.start)
		text = append(text, iv.bRepl.Text...)
		if iv.end > pos {
			pos = iv.end
		}
	}
	text = appendInsertedText(text, ss, pos, ce)

	return Replacement{Range: NewRange(tStart, tEnd), Text: string(text)}, nil
}

// mapToOriginalLow maps an intermediate-text offset back to the original
// text, snapping to the covering replacement's start when the offset falls
// inside inserted text.
func mapToOriginalLow(ss []span, pos int) int {
	for _, s := range ss {
		if pos < s.t1Start || pos > s.t1End {
			continue
		}
		if s.repl != nil {
			if pos == s.t1End {
				continue // prefer the following keep span's exact offset
			}
			return s.repl.Range.Start
		}
		return s.tStart + (pos - s.t1Start)
	}
	// Unreachable for offsets within the laid-out spans.
	return pos
}

// mapToOriginalHigh is mapToOriginalLow with the opposite snap: offsets
// inside inserted text map to the covering replacement's end.
func mapToOriginalHigh(ss []span, pos int) int {
	for i := len(ss) - 1; i >= 0; i-- {
		s := ss[i]
		if pos < s.t1Start || pos > s.t1End {
			continue
		}
		if s.repl != nil {
			if pos == s.t1Start {
				continue // prefer the preceding keep span's exact offset
			}
			return s.repl.Range.End
		}
		return s.tStart + (pos - s.t1Start)
	}
	return pos
}

// appendInsertedText collects the first edit's inserted characters in the
// intermediate range [from, to). Kept characters in that range are always
// covered by a second-edit replacement within the same cluster, so only
// replacement spans contribute.
func appendInsertedText(dst []byte, ss []span, from, to int) []byte {
	if from >= to {
		return dst
	}
	for _, s := range ss {
		if s.repl == nil || s.t1End <= from || s.t1Start >= to {
			continue
		}
		lo, hi := from, to
		if s.t1Start > lo {
			lo = s.t1Start
		}
		if s.t1End < hi {
			hi = s.t1End
		}
		dst = append(dst, s.repl.Text[lo-s.t1Start:hi-s.t1Start]...)
	}
	return dst
}

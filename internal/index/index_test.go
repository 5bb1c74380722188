package index

import (
	"testing"

	"github.com/ssgrummons/RedactifAI/internal/geometry"
	"github.com/ssgrummons/RedactifAI/internal/ocr"
)

func makeResult(fullText string, pageWords ...[]string) *ocr.Result {
	result := &ocr.Result{FullText: fullText}
	for i, words := range pageWords {
		page := ocr.Page{Number: i + 1, Width: 1000, Height: 1000}
		for j, text := range words {
			page.Words = append(page.Words, ocr.Word{
				Text:       text,
				Confidence: 0.9,
				Box:        geometry.NewBox(i+1, float64(j*60), 100, 50, 20),
			})
		}
		result.Pages = append(result.Pages, page)
	}
	return result
}

func checkInvariants(t *testing.T, result *ocr.Result, offsets []WordOffset) {
	t.Helper()

	if len(offsets) != result.WordCount() {
		t.Fatalf("index has %d entries, want %d", len(offsets), result.WordCount())
	}

	words := result.Words()
	prevStart := 0
	for i, wo := range offsets {
		if wo.Word.Text != words[i].Text {
			t.Errorf("entry %d aligns %q, want %q", i, wo.Word.Text, words[i].Text)
		}
		if wo.Start < prevStart {
			t.Errorf("entry %d start %d is before previous start %d", i, wo.Start, prevStart)
		}
		prevStart = wo.Start
		if wo.Resolved && wo.End > len(result.FullText) {
			t.Errorf("entry %d end %d exceeds text length %d", i, wo.End, len(result.FullText))
		}
	}
}

func TestBuild_ExactMatch(t *testing.T) {
	result := makeResult("John Smith", []string{"John", "Smith"})

	offsets := NewBuilder(-1, nil).Build(result)
	checkInvariants(t, result, offsets)

	if offsets[0].Start != 0 || offsets[0].End != 4 || !offsets[0].Resolved {
		t.Errorf("John aligned to [%d,%d) resolved=%v, want [0,4) resolved", offsets[0].Start, offsets[0].End, offsets[0].Resolved)
	}
	if offsets[1].Start != 5 || offsets[1].End != 10 || !offsets[1].Resolved {
		t.Errorf("Smith aligned to [%d,%d), want [5,10)", offsets[1].Start, offsets[1].End)
	}
}

func TestBuild_IrregularWhitespace(t *testing.T) {
	// Providers glue words with newlines, doubled spaces, and NBSP.
	result := makeResult("John\n\nSmith   Jr", []string{"John", "Smith", "Jr"})

	offsets := NewBuilder(-1, nil).Build(result)
	checkInvariants(t, result, offsets)

	for i, wo := range offsets {
		if !wo.Resolved {
			t.Errorf("entry %d unresolved", i)
		}
		got := result.FullText[wo.Start:wo.End]
		if got != wo.Word.Text {
			t.Errorf("entry %d spans %q, want %q", i, got, wo.Word.Text)
		}
	}
}

func TestBuild_WhitespaceInsideWord(t *testing.T) {
	// A word whose own text carries a newline still aligns when the full
	// text uses a different separator width.
	result := makeResult("123 Main  Street", []string{"123", "Main\nStreet"})

	offsets := NewBuilder(-1, nil).Build(result)
	checkInvariants(t, result, offsets)

	if !offsets[1].Resolved {
		t.Fatal("multi-line word unresolved")
	}
	if offsets[1].Start != 4 || offsets[1].End != len(result.FullText) {
		t.Errorf("span = [%d,%d), want [4,%d)", offsets[1].Start, offsets[1].End, len(result.FullText))
	}
}

func TestBuild_FuzzyRecovery(t *testing.T) {
	// OCR read "5amuel" but the full text carries "Samuel".
	result := makeResult("Samuel Okafor", []string{"5amuel", "Okafor"})

	offsets := NewBuilder(-1, nil).Build(result)
	checkInvariants(t, result, offsets)

	if !offsets[0].Resolved {
		t.Fatal("fuzzy word unresolved")
	}
	if offsets[0].Start != 0 || offsets[0].End != 6 {
		t.Errorf("fuzzy span = [%d,%d), want [0,6)", offsets[0].Start, offsets[0].End)
	}
	if !offsets[1].Resolved || offsets[1].Start != 7 {
		t.Errorf("following word should align after the fuzzy match, got %+v", offsets[1])
	}
}

func TestBuild_FuzzyThresholdScalesWithShortWords(t *testing.T) {
	// A 2-letter word only tolerates distance 1, so "xy" vs "ab" fails.
	result := makeResult("ab cd", []string{"xy", "cd"})

	offsets := NewBuilder(2, nil).Build(result)
	checkInvariants(t, result, offsets)

	if offsets[0].Resolved {
		t.Error("expected short unrelated word to stay unresolved")
	}
	if !offsets[1].Resolved {
		t.Error("expected later word to still align")
	}
}

func TestBuild_UnresolvedContinues(t *testing.T) {
	// A word missing from the full text is marked and skipped; alignment
	// continues for the rest.
	result := makeResult("alpha gamma", []string{"alpha", "zzzzzzzz", "gamma"})

	offsets := NewBuilder(-1, nil).Build(result)
	checkInvariants(t, result, offsets)

	if offsets[0].Start != 0 || !offsets[0].Resolved {
		t.Errorf("alpha misaligned: %+v", offsets[0])
	}
	if offsets[1].Resolved {
		t.Errorf("missing word should be unresolved: %+v", offsets[1])
	}
	if offsets[1].Start != offsets[1].End {
		t.Errorf("unresolved entry must be empty, got [%d,%d)", offsets[1].Start, offsets[1].End)
	}
	if !offsets[2].Resolved || result.FullText[offsets[2].Start:offsets[2].End] != "gamma" {
		t.Errorf("gamma misaligned: %+v", offsets[2])
	}
}

func TestBuild_MultiPage(t *testing.T) {
	result := makeResult("John Smith\n123 Main\nStreet", []string{"John", "Smith", "123", "Main"}, []string{"Street"})

	offsets := NewBuilder(-1, nil).Build(result)
	checkInvariants(t, result, offsets)

	last := offsets[len(offsets)-1]
	if !last.Resolved || result.FullText[last.Start:last.End] != "Street" {
		t.Errorf("cross-page word misaligned: %+v", last)
	}
	if last.Word.Box.Page != 2 {
		t.Errorf("back-pointer lost page, got %d", last.Word.Box.Page)
	}
}

func TestBuild_EmptyInputs(t *testing.T) {
	t.Run("no words", func(t *testing.T) {
		offsets := NewBuilder(-1, nil).Build(&ocr.Result{FullText: "text with no words"})
		if len(offsets) != 0 {
			t.Errorf("expected empty index, got %d entries", len(offsets))
		}
	})

	t.Run("empty full text", func(t *testing.T) {
		result := makeResult("", []string{"orphan"})
		offsets := NewBuilder(-1, nil).Build(result)
		if len(offsets) != 1 || offsets[0].Resolved {
			t.Errorf("expected one unresolved entry, got %+v", offsets)
		}
	})
}

package fonts

import "testing"

func TestCMapSplitUsesCodespaces(t *testing.T) {
	m := ParseCMap([]byte(`2 begincodespacerange
<00> <80>
<8140> <9FFC>
endcodespacerange`))
	codes := m.Split([]byte{0x41, 0x81, 0x40, 0x42, 0xFF}, 1)
	if len(codes) != 4 {
		t.Fatalf("expected 4 codes, got %d: %x", len(codes), codes)
	}
	if len(codes[1]) != 2 || codes[1][0] != 0x81 {
		t.Fatalf("expected two-byte code, got %x", codes[1])
	}
}

func TestCMapCIDRanges(t *testing.T) {
	m := ParseCMap([]byte(`1 begincidrange
<0020> <007E> 1
endcidrange
1 begincidchar
<00A0> 633
endcidchar`))
	if got := m.CID([]byte{0x00, 0x41}); got != 34 {
		t.Fatalf("expected CID 34, got %d", got)
	}
	if got := m.CID([]byte{0x00, 0xA0}); got != 633 {
		t.Fatalf("expected CID 633, got %d", got)
	}
	if got := m.CID([]byte{0x12, 0x34}); got != 0x1234 {
		t.Fatalf("unmapped code should map to itself, got %d", got)
	}
}

func TestCMapRangeIncrementsLastCodeUnit(t *testing.T) {
	m := ParseCMap([]byte(`1 beginbfrange
<10> <12> <00FF>
endbfrange`))
	got, ok := m.Lookup([]byte{0x12})
	if !ok || got != "ā" {
		t.Fatalf("expected U+0101, got %q", got)
	}
	if _, ok := m.Lookup([]byte{0x00, 0x12}); ok {
		t.Fatalf("code length must match the range")
	}
}

func TestCMapSurvivesGarbage(t *testing.T) {
	m := ParseCMap([]byte("beginbfchar <01> endbfchar ] >> (unterminated"))
	if _, ok := m.Lookup([]byte{0x01}); ok {
		t.Fatalf("odd bfchar operand list must not map")
	}
}

package embedding

import (
	"reflect"
	"testing"
)

func TestSimpleTokenizer_Tokenize(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn, types := tok.Tokenize("Dune messiah", 10)
	if len(ids) != 10 || len(attn) != 10 || len(types) != 10 {
		t.Fatalf("lengths = %d/%d/%d", len(ids), len(attn), len(types))
	}
	if ids[0] != clsToken || ids[3] != sepToken {
		t.Errorf("ids = %v, want CLS w w SEP", ids)
	}
	for _, id := range ids[1:3] {
		if id < firstWord || id >= vocabSize {
			t.Errorf("word id %d out of vocabulary range", id)
		}
	}
	if attn[3] != 1 || attn[4] != 0 {
		t.Errorf("attention mask: %v", attn)
	}
	again, _, _ := tok.Tokenize("dune MESSIAH", 10)
	if !reflect.DeepEqual(ids, again) {
		t.Error("tokenization should ignore case")
	}
}

func TestSimpleTokenizer_truncates(t *testing.T) {
	ids, attn, _ := (&SimpleTokenizer{}).Tokenize("one two three four five", 4)
	if ids[0] != clsToken || ids[3] != sepToken {
		t.Errorf("ids = %v", ids)
	}
	for i, a := range attn {
		if a != 1 {
			t.Errorf("attn[%d] = %d, want all set", i, a)
		}
	}
}

func TestSplitWords(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"  a  b  c  ", []string{"a", "b", "c"}},
		{"Science-Fiction, 1965!", []string{"science", "fiction", "1965"}},
		{"Cien Años", []string{"cien", "años"}},
		{"", nil},
		{"--", nil},
	}
	for _, tt := range tests {
		if got := SplitWords(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitWords(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

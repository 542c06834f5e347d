package feed

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/tidwall/gjson"
)

func TestDecode_SkipsEmptyLines(t *testing.T) {
	for _, line := range []string{"", " ", "\t", "\r"} {
		rec, err := Decode([]byte(line))
		if err != nil {
			t.Errorf("Decode(%q) error = %v, want nil", line, err)
		}
		if rec != nil {
			t.Errorf("Decode(%q) = %+v, want nil record", line, rec)
		}
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []string{
		`{"seq":1`,
		`not json`,
		`{"seq":1}}`,
		`{"seq":1} {"seq":2}`,
		`{"seq":}`,
	}

	for _, line := range tests {
		t.Run(line, func(t *testing.T) {
			rec, err := Decode([]byte(line))
			if rec != nil {
				t.Errorf("expected nil record, got %+v", rec)
			}
			var decErr *DecodeError
			if !errors.As(err, &decErr) {
				t.Fatalf("expected *DecodeError, got %T (%v)", err, err)
			}
			if string(decErr.Line) != line {
				t.Errorf("DecodeError.Line = %q, want %q", decErr.Line, line)
			}
		})
	}
}

func TestDecode_MalformedNeverAdvancesCursor(t *testing.T) {
	cursor := Cursor("7")
	rec, _ := Decode([]byte(`{"seq":99,`))
	if got := cursor.Advance(rec); got != "7" {
		t.Errorf("cursor = %q, want 7", got)
	}
}

func TestDecode_SequencePrecedence(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Cursor
	}{
		{"last_seq wins over seq", `{"last_seq":5,"seq":3}`, "5"},
		{"seq only", `{"seq":3,"id":"a"}`, "3"},
		{"last_seq only", `{"last_seq":12,"pending":0}`, "12"},
		{"string token", `{"seq":"12-g1AAAAB","id":"a"}`, "12-g1AAAAB"},
		{"empty last_seq falls back", `{"last_seq":"","seq":4}`, "4"},
		{"null seq", `{"seq":null}`, ""},
		{"no sequence", `{"id":"a"}`, ""},
		{"array token", `{"seq":[3,"abc"]}`, `[3,"abc"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Decode([]byte(tt.line))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if rec.Seq != tt.want {
				t.Errorf("Seq = %q, want %q", rec.Seq, tt.want)
			}
		})
	}
}

func TestDecode_ExtractsDocumentFields(t *testing.T) {
	line := `{"seq":9,"id":"doc-1","deleted":true,"doc":{"_id":"doc-1","n":1}}`
	rec, err := Decode([]byte(line))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if rec.ID != "doc-1" {
		t.Errorf("ID = %q, want doc-1", rec.ID)
	}
	if !rec.Deleted {
		t.Error("Deleted = false, want true")
	}
	if string(rec.Doc) != `{"_id":"doc-1","n":1}` {
		t.Errorf("Doc = %s", rec.Doc)
	}
	if string(rec.Raw) != line {
		t.Errorf("Raw = %s, want %s", rec.Raw, line)
	}

	obj, ok := rec.Value.(map[string]any)
	if !ok {
		t.Fatalf("Value type = %T, want map[string]any", rec.Value)
	}
	if obj["seq"] != json.Number("9") {
		t.Errorf("Value[seq] = %v (%T), want json.Number(9)", obj["seq"], obj["seq"])
	}
}

func TestDecode_NullRecord(t *testing.T) {
	rec, err := Decode([]byte("null"))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if rec == nil {
		t.Fatal("expected a record for literal null")
	}
	if rec.Value != nil {
		t.Errorf("Value = %v, want nil", rec.Value)
	}
	if !rec.Seq.IsZero() {
		t.Errorf("Seq = %q, want empty", rec.Seq)
	}
}

func TestDecode_TruncatesLongMalformedLine(t *testing.T) {
	line := make([]byte, maxErrorLine*2)
	for i := range line {
		line[i] = 'x'
	}
	_, err := Decode(line)
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected *DecodeError, got %v", err)
	}
	if len(decErr.Line) != maxErrorLine {
		t.Errorf("len(Line) = %d, want %d", len(decErr.Line), maxErrorLine)
	}
}

func TestCursor_Advance(t *testing.T) {
	c := StartCursor

	c = c.Advance(nil)
	if c != StartCursor {
		t.Errorf("nil record moved cursor to %q", c)
	}

	c = c.Advance(&Record{Seq: "3"})
	if c != "3" {
		t.Errorf("cursor = %q, want 3", c)
	}

	c = c.Advance(&Record{})
	if c != "3" {
		t.Errorf("record without seq moved cursor to %q", c)
	}
}

func TestCursor_OrStart(t *testing.T) {
	if got := Cursor("").OrStart(); got != StartCursor {
		t.Errorf("OrStart = %q, want %q", got, StartCursor)
	}
	if got := Cursor("11").OrStart(); got != "11" {
		t.Errorf("OrStart = %q, want 11", got)
	}
}

func TestParseCursor(t *testing.T) {
	doc := `{"n":120,"s":"120-abc","z":null,"e":""}`
	tests := []struct {
		path string
		want Cursor
	}{
		{"n", "120"},
		{"s", "120-abc"},
		{"z", ""},
		{"e", ""},
		{"missing", ""},
	}
	for _, tt := range tests {
		if got := ParseCursor(gjson.Get(doc, tt.path)); got != tt.want {
			t.Errorf("ParseCursor(%s) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

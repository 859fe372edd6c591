package utils

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestReadLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  []string
	}{
		{"普通行", "a\nb\n", 4, []string{"a", "b"}},
		{"无结尾换行", "a\nb", 4, []string{"a", "b"}},
		{"CRLF", "a\r\nb\r\n", 4, []string{"a", "b"}},
		{"空行保留", "a\n\nb\n", 4, []string{"a", "", "b"}},
		{"超长行切段后继续读取", "abcdefghij\nafter\n", 4, []string{"abcd", "efgh", "ij", "afte", "r"}},
		{"恰好整倍数", "abcdefgh\nz\n", 4, []string{"abcd", "efgh", "z"}},
		{"空输入", "", 4, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			if err := ReadLines(strings.NewReader(tt.input), tt.max, func(l string) { got = append(got, l) }); err != nil {
				t.Fatal(err)
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
				t.Errorf("ReadLines() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReadLinesLongerThanReaderBuffer(t *testing.T) {
	const max = 100 * 1024
	long := strings.Repeat("x", 3*max)
	var got []string
	if err := ReadLines(strings.NewReader("before\n"+long+"\nafter\n"), max, func(l string) { got = append(got, l) }); err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 || got[0] != "before" || got[4] != "after" {
		t.Fatalf("got %d lines", len(got))
	}
	for i := 1; i <= 3; i++ {
		if len(got[i]) != max {
			t.Errorf("piece %d = %d bytes", i, len(got[i]))
		}
	}
}

type failingReader struct{ data io.Reader }

var errBroken = errors.New("broken pipe")

func (f failingReader) Read(p []byte) (int, error) {
	n, err := f.data.Read(p)
	if err == io.EOF {
		return n, errBroken
	}
	return n, err
}

func TestReadLinesReturnsReadError(t *testing.T) {
	var got []string
	err := ReadLines(failingReader{strings.NewReader("a\npartial")}, 16, func(l string) { got = append(got, l) })
	if !errors.Is(err, errBroken) {
		t.Errorf("err = %v", err)
	}
	if strings.Join(got, "|") != "a|partial" {
		t.Errorf("got %q", got)
	}
}

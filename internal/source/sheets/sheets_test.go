package sheets

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"wedding-bot/pkg/content"
)

type getterStub struct {
	values [][]any
	err    error

	gotID    string
	gotRange string
}

func (g *getterStub) GetValues(_ context.Context, spreadsheetID string, readRange string) ([][]any, error) {
	g.gotID = spreadsheetID
	g.gotRange = readRange

	return g.values, g.err
}

func TestParseRows(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		values [][]any
		want   []content.DirectoryRecord
	}{
		{name: "empty sheet", want: []content.DirectoryRecord{}},
		{name: "header only", values: [][]any{{"name", "table"}}, want: []content.DirectoryRecord{}},
		{
			name: "skips incomplete rows and trims table",
			values: [][]any{
				{"姓名", "桌號"},
				{"王小明", " 3 "},
				{"", "4"},
				{"李小華"},
				{"陳大文", ""},
				{"Bob", float64(12)},
			},
			want: []content.DirectoryRecord{
				{Key: "王小明", Value: "3"},
				{Key: "Bob", Value: "12"},
			},
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			if got := ParseRows(testCase.values); !reflect.DeepEqual(got, testCase.want) {
				t.Fatalf("ParseRows() = %+v, want %+v", got, testCase.want)
			}
		})
	}
}

func TestSourceFetchAll(t *testing.T) {
	t.Parallel()

	getter := &getterStub{values: [][]any{{"name", "table"}, {"Alice", "1"}}}
	src, err := NewSource(getter, "sheet-id", "", nil)
	if err != nil {
		t.Fatalf("new source failed: %v", err)
	}

	records, err := src.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(records) != 1 || records[0].Key != "Alice" {
		t.Fatalf("records = %+v", records)
	}
	if getter.gotID != "sheet-id" || getter.gotRange != DefaultRange {
		t.Fatalf("request = %q %q", getter.gotID, getter.gotRange)
	}

	getter.err = errors.New("quota exceeded")
	if _, err := src.FetchAll(context.Background()); err == nil {
		t.Fatal("expected fetch error")
	}
}

func TestNewSourceRequiresSpreadsheetID(t *testing.T) {
	t.Parallel()

	_, err := NewSource(&getterStub{}, "", "", nil)
	if !errors.Is(err, content.ErrConfiguration) {
		t.Fatalf("error = %v, want ErrConfiguration", err)
	}
}

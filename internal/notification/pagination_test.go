package notification

import "testing"

// TestNewPagination はページングのメタデータの算出を検証する。
func TestNewPagination(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name              string
		total, page, size int
		want              Pagination
	}{
		{
			name: "0件でも総ページ数は1",
			total: 0, page: 1, size: 10,
			want: Pagination{TotalPage: 1, CurrentPage: 1, PrevPage: 0, NextPage: 0, TotalData: 0},
		},
		{
			name: "端数は切り上げ",
			total: 21, page: 1, size: 10,
			want: Pagination{TotalPage: 3, CurrentPage: 1, PrevPage: 0, NextPage: 2, TotalData: 21},
		},
		{
			name: "中間ページは前後を持つ",
			total: 21, page: 2, size: 10,
			want: Pagination{TotalPage: 3, CurrentPage: 2, PrevPage: 1, NextPage: 3, TotalData: 21},
		},
		{
			name: "最終ページは次を持たない",
			total: 20, page: 2, size: 10,
			want: Pagination{TotalPage: 2, CurrentPage: 2, PrevPage: 1, NextPage: 0, TotalData: 20},
		},
		{
			name: "範囲外のページ",
			total: 5, page: 4, size: 10,
			want: Pagination{TotalPage: 1, CurrentPage: 4, PrevPage: 3, NextPage: 0, TotalData: 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := NewPagination(tt.total, tt.page, tt.size); got != tt.want {
				t.Errorf("NewPagination() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

// TestParsePaging はクエリ文字列の解釈を検証する。
func TestParsePaging(t *testing.T) {
	t.Parallel()

	tests := []struct {
		page, limit         string
		wantPage, wantLimit int
	}{
		{page: "", limit: "", wantPage: 1, wantLimit: 10},
		{page: "3", limit: "20", wantPage: 3, wantLimit: 20},
		{page: "0", limit: "-1", wantPage: 1, wantLimit: 10},
		{page: "abc", limit: "xyz", wantPage: 1, wantLimit: 10},
		{page: "2", limit: "1000", wantPage: 2, wantLimit: 100},
	}

	for _, tt := range tests {
		page, limit := ParsePaging(tt.page, tt.limit)
		if page != tt.wantPage || limit != tt.wantLimit {
			t.Errorf("ParsePaging(%q, %q) = (%d, %d), want (%d, %d)",
				tt.page, tt.limit, page, limit, tt.wantPage, tt.wantLimit)
		}
	}
}

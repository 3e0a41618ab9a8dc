package notification

import "strconv"

const (
	// defaultPage はページ番号未指定時のページ。
	defaultPage = 1
	// defaultLimit は1ページあたりの件数の既定値。
	defaultLimit = 10
	// maxLimit は1ページあたりの件数の上限。
	maxLimit = 100
)

// Pagination はページングのメタデータ。
// 前後のページが存在しない場合、PrevPage・NextPageは0になる。
type Pagination struct {
	// TotalPage は総ページ数。0件の場合も1とする。
	TotalPage int `json:"total_page"`
	// CurrentPage は現在のページ番号。
	CurrentPage int `json:"current_page"`
	// PrevPage は前のページ番号。
	PrevPage int `json:"prev_page"`
	// NextPage は次のページ番号。
	NextPage int `json:"next_page"`
	// TotalData は総件数。
	TotalData int `json:"total_data"`
}

// NewPagination は総件数・ページ番号・件数からページングのメタデータを生成する。
func NewPagination(total, page, limit int) Pagination {
	totalPage := 1
	if limit > 0 && total > 0 {
		totalPage = (total + limit - 1) / limit
	}

	p := Pagination{
		TotalPage:   totalPage,
		CurrentPage: page,
		TotalData:   total,
	}
	if page > 1 {
		p.PrevPage = page - 1
	}
	if page+1 <= totalPage {
		p.NextPage = page + 1
	}
	return p
}

// ParsePaging はクエリ文字列のpage・limitを解釈する。
// 不正値や未指定は既定値に、limitの上限超過は上限に丸める。
func ParsePaging(pageStr, limitStr string) (page, limit int) {
	page, limit = defaultPage, defaultLimit
	if v, err := strconv.Atoi(pageStr); err == nil && v >= 1 {
		page = v
	}
	if v, err := strconv.Atoi(limitStr); err == nil && v >= 1 {
		limit = min(v, maxLimit)
	}
	return page, limit
}

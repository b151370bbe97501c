package parser

import "fmt"

// LocatorKind 标识定位信息的种类。
type LocatorKind string

const (
	LocatorPage   LocatorKind = "page"
	LocatorRow    LocatorKind = "row"
	LocatorOffset LocatorKind = "offset"
)

// Locator 记录一段文本在源文档中的位置：PDF 页码、表格 sheet+行号或字符偏移。
// 范围形式（PageEnd、SheetEnd/RowEnd）在分块跨越多个片段时使用。
type Locator struct {
	Kind     LocatorKind `json:"kind"`
	Page     int         `json:"page,omitempty"`
	PageEnd  int         `json:"page_end,omitempty"`
	Sheet    string      `json:"sheet,omitempty"`
	Row      int         `json:"row,omitempty"`
	SheetEnd string      `json:"sheet_end,omitempty"`
	RowEnd   int         `json:"row_end,omitempty"`
	Offset   int         `json:"offset"`
}

// PageLocator 返回 PDF 页定位。
func PageLocator(page int) Locator {
	return Locator{Kind: LocatorPage, Page: page}
}

// RowLocator 返回表格行定位。
func RowLocator(sheet string, row int) Locator {
	return Locator{Kind: LocatorRow, Sheet: sheet, Row: row}
}

// OffsetLocator 返回字符偏移定位。
func OffsetLocator(offset int) Locator {
	return Locator{Kind: LocatorOffset, Offset: offset}
}

// Through 返回从 l 起始到 end 结束的范围定位。两者种类不同时返回 l。
func (l Locator) Through(end Locator) Locator {
	if l.Kind != end.Kind {
		return l
	}
	switch l.Kind {
	case LocatorPage:
		last := end.Page
		if end.PageEnd > last {
			last = end.PageEnd
		}
		if last > l.Page {
			l.PageEnd = last
		}
	case LocatorRow:
		sheet, row := end.Sheet, end.Row
		if end.RowEnd != 0 {
			sheet, row = end.SheetEnd, end.RowEnd
		}
		if sheet != l.Sheet || row > l.Row {
			l.SheetEnd, l.RowEnd = sheet, row
		}
	}
	return l
}

// String 返回便于在提示词和引用中展示的定位描述。
func (l Locator) String() string {
	switch l.Kind {
	case LocatorPage:
		if l.PageEnd > l.Page {
			return fmt.Sprintf("pages %d-%d", l.Page, l.PageEnd)
		}
		return fmt.Sprintf("page %d", l.Page)
	case LocatorRow:
		switch {
		case l.RowEnd == 0:
			return fmt.Sprintf("%s row %d", l.Sheet, l.Row)
		case l.SheetEnd == l.Sheet:
			return fmt.Sprintf("%s rows %d-%d", l.Sheet, l.Row, l.RowEnd)
		default:
			return fmt.Sprintf("%s row %d to %s row %d", l.Sheet, l.Row, l.SheetEnd, l.RowEnd)
		}
	default:
		return fmt.Sprintf("offset %d", l.Offset)
	}
}

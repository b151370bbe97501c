package parser

import (
	"bytes"
	"context"
	"strings"

	"github.com/xuri/excelize/v2"
)

const cellSeparator = " | "

// parseSpreadsheet 每个非空行生成一个片段，定位为 sheet 名称加行号。
func parseSpreadsheet(ctx context.Context, content []byte) (segments []Segment, err error) {
	defer recoverParse(TypeSpreadsheet, &err)

	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, parseErr(TypeSpreadsheet, err)
	}
	defer func() { _ = f.Close() }()

	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, parseErr(TypeSpreadsheet, err)
		}
		for i, row := range rows {
			cells := make([]string, 0, len(row))
			for _, c := range row {
				if c = strings.TrimSpace(c); c != "" {
					cells = append(cells, c)
				}
			}
			if len(cells) == 0 {
				continue
			}
			segments = append(segments, Segment{
				Text:    strings.Join(cells, cellSeparator),
				Locator: RowLocator(sheet, i+1),
			})
		}
	}
	return segments, nil
}

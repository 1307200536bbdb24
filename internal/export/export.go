// Package export 将质检历史渲染为 CSV / XLSX。
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"github.com/yuqie6/intrack/internal/service"
)

// Format 导出格式
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat 解析导出格式，空值默认为 CSV
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("不支持的导出格式 %q", s)
	}
}

// ContentType 对应的 MIME 类型
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Filename 下载文件名
func (f Format) Filename(base string) string {
	return base + "." + string(f)
}

const sheetName = "Inspections"

var headers = []string{
	"ID", "Production Line", "Inspector", "Type", "Timestamp",
	"Defects", "Modifications", "Rejection Reasons", "Notes",
}

// Lister 按历史查询条件列出记录
type Lister interface {
	ListForExport(ctx context.Context, f service.SummaryFilter) ([]service.InspectionView, bool, error)
}

// Result 导出结果
type Result struct {
	Rows      int
	Truncated bool // 达到导出上限，仍有记录未写出
}

// Service 导出服务
type Service struct {
	records Lister
}

// NewService 创建导出服务
func NewService(records Lister) *Service {
	return &Service{records: records}
}

// Export 按条件导出到 w
func (s *Service) Export(ctx context.Context, f service.SummaryFilter, format Format, w io.Writer) (Result, error) {
	views, truncated, err := s.records.ListForExport(ctx, f)
	if err != nil {
		return Result{}, err
	}
	data := Rows(views)

	switch format {
	case FormatXLSX:
		err = WriteXLSX(w, sheetName, headers, data)
	default:
		err = WriteCSV(w, headers, data)
	}
	if err != nil {
		return Result{}, err
	}
	slog.Info("质检记录已导出", "format", format, "rows", len(data), "truncated", truncated)
	return Result{Rows: len(data), Truncated: truncated}, nil
}

// Rows 将记录展开为表格行；多个标签以 "; " 连接
func Rows(views []service.InspectionView) [][]string {
	out := make([][]string, 0, len(views))
	for _, v := range views {
		out = append(out, []string{
			strconv.FormatInt(v.ID, 10),
			strconv.FormatInt(v.ProductionLineID, 10),
			v.InspectorID,
			v.Type,
			v.Timestamp,
			strings.Join(v.Defects, "; "),
			strings.Join(v.Modifications, "; "),
			strings.Join(v.RejectionReasons, "; "),
			v.Notes,
		})
	}
	return out
}

// WriteCSV 写出 CSV（首行为表头）
func WriteCSV(w io.Writer, headers []string, data [][]string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("写入 CSV 表头失败: %w", err)
	}
	if err := writer.WriteAll(data); err != nil {
		return fmt.Errorf("写入 CSV 失败: %w", err)
	}
	return nil
}

// WriteXLSX 写出单工作表的 XLSX，表头加粗并带底色
func WriteXLSX(w io.Writer, sheet string, headers []string, data [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("创建工作表失败: %w", err)
	}
	f.SetActiveSheet(index)
	if sheet != "Sheet1" {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return fmt.Errorf("删除默认工作表失败: %w", err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("创建表头样式失败: %w", err)
	}

	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return err
		}
	}

	for r, row := range data {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return err
			}
		}
	}

	if len(headers) > 0 {
		last, err := excelize.ColumnNumberToName(len(headers))
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, "A", last, 18); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("写出 XLSX 失败: %w", err)
	}
	return nil
}

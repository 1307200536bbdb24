package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/yuqie6/intrack/internal/bootstrap"
	"github.com/yuqie6/intrack/internal/export"
	"github.com/yuqie6/intrack/internal/pkg/buildinfo"
	"github.com/yuqie6/intrack/internal/schema"
	"github.com/yuqie6/intrack/internal/service"
)

var (
	cfgFile string
	asJSON  bool
	core    *bootstrap.Core
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "intrack",
		Short:         "InTrack - 服装质检生产统计",
		Long:          `InTrack 命令行：录入质检记录、查询日统计、缺陷分析、历史记录与多产线看板。`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			core, err = bootstrap.NewCore(cfgFile)
			if err != nil {
				return fmt.Errorf("初始化失败: %w", err)
			}
			if core.DB.SafeMode {
				return fmt.Errorf("数据库处于安全模式: %s", core.DB.MigrationError)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "以 JSON 输出")

	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(defectsCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(recordCmd())
	rootCmd.AddCommand(labelsCmd())
	rootCmd.AddCommand(exportCmd())

	err := rootCmd.Execute()
	if core != nil {
		_ = core.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func today() string {
	return time.Now().In(core.Location).Format("2006-01-02")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func optionalLine(id int64) *int64 {
	if id <= 0 {
		return nil
	}
	return &id
}

// statsCmd 日统计
func statsCmd() *cobra.Command {
	var line int64
	var date string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "查看某产线某日的统计",
		RunE: func(cmd *cobra.Command, args []string) error {
			if date == "" {
				date = today()
			}
			st, err := core.Services.Production.ComputeDailyStats(context.Background(), line, date)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(st)
			}

			fmt.Printf("📊 产线 %d · %s\n", st.LineID, st.Date)
			fmt.Println("═══════════════════════════════════════")
			fmt.Printf("  • 总数:     %d\n", st.TotalProduced)
			fmt.Printf("  • 一次通过: %d\n", st.FirstTimeThrough)
			fmt.Printf("  • 需改进:   %d\n", st.NeedsImprovement)
			fmt.Printf("  • 已返修:   %d\n", st.Modified)
			fmt.Printf("  • 拒收:     %d\n", st.Rejected)
			fmt.Println()
			fmt.Printf("  效率 %.2f%% · 缺陷 %.2f%% · 拒收 %.2f%% · 返工 %.2f%%\n",
				st.EfficiencyRate, st.DefectRate, st.RejectionRate, st.ReworkRate)
			return nil
		},
	}

	cmd.Flags().Int64VarP(&line, "line", "l", 1, "产线 ID")
	cmd.Flags().StringVarP(&date, "date", "d", "", "日期 (YYYY-MM-DD)，默认今天")
	return cmd
}

// defectsCmd 缺陷分析
func defectsCmd() *cobra.Command {
	var line int64
	var start, end string
	var top int

	cmd := &cobra.Command{
		Use:   "defects",
		Short: "统计区间内的缺陷频次",
		RunE: func(cmd *cobra.Command, args []string) error {
			if end == "" {
				end = today()
			}
			if start == "" {
				start = end
			}
			freq, err := core.Services.Production.ComputeDefectAnalysis(context.Background(), line, start, end)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(freq)
			}
			if len(freq) == 0 {
				fmt.Println("✅ 区间内没有缺陷记录")
				return nil
			}
			fmt.Printf("🔍 产线 %d 缺陷分析 (%s ~ %s)\n", line, start, end)
			for i, f := range freq {
				if top > 0 && i >= top {
					break
				}
				fmt.Printf("  %2d. %s: %d\n", i+1, f.Defect, f.Count)
			}
			return nil
		},
	}

	cmd.Flags().Int64VarP(&line, "line", "l", 1, "产线 ID")
	cmd.Flags().StringVar(&start, "start", "", "开始日期 (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "结束日期 (YYYY-MM-DD)，默认今天")
	cmd.Flags().IntVarP(&top, "top", "n", 10, "显示前 N 项，0 表示全部")
	return cmd
}

// historyCmd 历史记录分页
func historyCmd() *cobra.Command {
	var line int64
	var typ, start, end string
	var page, limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "分页查看质检记录",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := core.Services.Production.ComputeProductionSummary(context.Background(), service.SummaryFilter{
				ProductionLineID: optionalLine(line),
				Type:             typ,
				StartDate:        start,
				EndDate:          end,
			}, page, limit)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(out)
			}

			p := out.Pagination
			fmt.Printf("📜 第 %d/%d 页，共 %d 条\n", p.Page, max(p.Pages, 1), p.Total)
			for _, v := range out.Data {
				fmt.Printf("  #%-6d 产线 %-3d %-20s %-18s %s\n", v.ID, v.ProductionLineID, v.Timestamp, v.Type, detailText(v))
			}
			return nil
		},
	}

	cmd.Flags().Int64VarP(&line, "line", "l", 0, "产线 ID，0 表示全部")
	cmd.Flags().StringVarP(&typ, "type", "t", "", "质检结果过滤")
	cmd.Flags().StringVar(&start, "start", "", "开始日期")
	cmd.Flags().StringVar(&end, "end", "", "结束日期")
	cmd.Flags().IntVarP(&page, "page", "p", 1, "页码")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "每页条数，0 使用默认值")
	return cmd
}

func detailText(v service.InspectionView) string {
	if v.DetailCorrupt {
		return "(明细损坏)"
	}
	for _, labels := range [][]string{v.Defects, v.Modifications, v.RejectionReasons} {
		if len(labels) > 0 {
			return strings.Join(labels, ", ")
		}
	}
	return ""
}

// dashboardCmd 多产线看板
func dashboardCmd() *cobra.Command {
	var lines string
	var start, end string
	var days int

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "多产线多日看板（窗口返工率）",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(lines)
			if err != nil {
				return err
			}
			d, err := core.Services.Dashboard.BuildRolledUpDashboard(context.Background(), service.DashboardQuery{
				LineIDs:   ids,
				StartDate: start,
				EndDate:   end,
				Days:      days,
			})
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(d)
			}

			fmt.Printf("📈 看板 %s ~ %s (%d 天)\n", d.StartDate, d.EndDate, len(d.Dates))
			fmt.Println("═══════════════════════════════════════")
			for _, r := range d.ReworkRateByLine {
				fmt.Printf("  • %-20s 总数 %-6d 返工率 %.2f%%\n", r.Name, r.TotalProduced, r.ReworkRate)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&lines, "lines", "", "产线 ID 列表（逗号分隔），默认全部")
	cmd.Flags().StringVar(&start, "start", "", "开始日期")
	cmd.Flags().StringVar(&end, "end", "", "结束日期")
	cmd.Flags().IntVarP(&days, "days", "d", 0, "未指定日期时回看的天数")
	return cmd
}

func parseIDs(s string) ([]int64, error) {
	var out []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("非法产线 ID %q", part)
		}
		out = append(out, id)
	}
	return out, nil
}

// summaryCmd 产线汇总
func summaryCmd() *cobra.Command {
	var line int64
	var start, end string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "区间内各产线汇总",
		RunE: func(cmd *cobra.Command, args []string) error {
			if end == "" {
				end = today()
			}
			if start == "" {
				start = end
			}
			sums, err := core.Services.Production.SummarizeLines(context.Background(), optionalLine(line), start, end)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(sums)
			}
			fmt.Printf("🏭 产线汇总 (%s ~ %s)\n", start, end)
			for _, s := range sums {
				fmt.Printf("  • 产线 %-3d 总数 %-6d 效率 %.2f%% 缺陷 %.2f%% 拒收 %.2f%% 返工 %.2f%%\n",
					s.LineID, s.TotalProduced, s.EfficiencyRate, s.DefectRate, s.RejectionRate, s.ReworkRate)
			}
			return nil
		},
	}

	cmd.Flags().Int64VarP(&line, "line", "l", 0, "产线 ID，0 表示全部")
	cmd.Flags().StringVar(&start, "start", "", "开始日期")
	cmd.Flags().StringVar(&end, "end", "", "结束日期，默认今天")
	return cmd
}

// recordCmd 录入质检记录
func recordCmd() *cobra.Command {
	var in service.RecordInput
	var at string
	var defects, modifications, reasons []string

	cmd := &cobra.Command{
		Use:   "record",
		Short: "录入一条质检记录",
		Example: `  intrack record --line 1 --inspector qc-07 --type needs_improvement --defect "Oil spot"
  intrack record --line 2 --inspector qc-03 --type rejected --reason "Wrong size"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Timestamp = time.Now()
			if at != "" {
				ts, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at 必须为 RFC3339: %w", err)
				}
				in.Timestamp = ts
			}
			in.Defects, in.Modifications, in.RejectionReasons = defects, modifications, reasons

			v, err := core.Services.Production.RecordInspection(context.Background(), in)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(v)
			}
			fmt.Printf("✅ 已录入 #%d (产线 %d, %s)\n", v.ID, v.ProductionLineID, v.Type)
			return nil
		},
	}

	cmd.Flags().Int64VarP(&in.ProductionLineID, "line", "l", 0, "产线 ID")
	cmd.Flags().StringVarP(&in.InspectorID, "inspector", "i", "", "质检员 ID")
	cmd.Flags().StringVarP(&in.Type, "type", "t", "", "质检结果: "+strings.Join(schema.Outcomes(), " | "))
	cmd.Flags().StringVar(&in.Notes, "notes", "", "备注")
	cmd.Flags().StringVar(&at, "at", "", "检验时间 (RFC3339)，默认当前时间")
	cmd.Flags().StringArrayVar(&defects, "defect", nil, "缺陷（可重复）")
	cmd.Flags().StringArrayVar(&modifications, "modification", nil, "返修类型（可重复）")
	cmd.Flags().StringArrayVar(&reasons, "reason", nil, "拒收原因（可重复）")
	_ = cmd.MarkFlagRequired("line")
	_ = cmd.MarkFlagRequired("inspector")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

// labelsCmd 标签目录
func labelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "labels",
		Short: "管理缺陷类别 / 返修类型 / 拒收原因",
	}

	kindUsage := "标签种类: defect | modification | rejection"

	var listKind string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "列出标签",
		RunE: func(cmd *cobra.Command, args []string) error {
			labels, err := core.Services.Catalog.ListLabels(context.Background(), listKind)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(labels)
			}
			for _, l := range labels {
				if l.Category != "" {
					fmt.Printf("  • %s [%s]\n", l.Name, l.Category)
				} else {
					fmt.Printf("  • %s\n", l.Name)
				}
			}
			return nil
		},
	}
	listCmd.Flags().StringVarP(&listKind, "kind", "k", schema.LabelKindDefect, kindUsage)

	var addKind, category string
	addCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "新增标签",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			label, err := core.Services.Catalog.AddLabel(context.Background(), addKind, args[0], category)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(label)
			}
			fmt.Printf("✅ 已新增 %s: %s\n", label.Kind, label.Name)
			return nil
		},
	}
	addCmd.Flags().StringVarP(&addKind, "kind", "k", schema.LabelKindDefect, kindUsage)
	addCmd.Flags().StringVar(&category, "category", "", "分类")

	cmd.AddCommand(listCmd, addCmd)
	return cmd
}

// exportCmd 导出历史记录
func exportCmd() *cobra.Command {
	var line int64
	var typ, start, end, format, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "导出质检记录为 CSV / XLSX",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			if out == "" {
				out = f.Filename("inspections-" + time.Now().In(core.Location).Format("20060102"))
			}
			file, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("创建输出文件失败: %w", err)
			}

			res, err := core.Services.Export.Export(context.Background(), service.SummaryFilter{
				ProductionLineID: optionalLine(line),
				Type:             typ,
				StartDate:        start,
				EndDate:          end,
			}, f, file)
			if cerr := file.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				_ = os.Remove(out)
				return err
			}
			fmt.Printf("✅ 已导出 %d 条记录到 %s\n", res.Rows, out)
			if res.Truncated {
				fmt.Println("⚠️ 已达到导出上限 (stats.export_max_rows)，结果被截断")
			}
			return nil
		},
	}

	cmd.Flags().Int64VarP(&line, "line", "l", 0, "产线 ID，0 表示全部")
	cmd.Flags().StringVarP(&typ, "type", "t", "", "质检结果过滤")
	cmd.Flags().StringVar(&start, "start", "", "开始日期")
	cmd.Flags().StringVar(&end, "end", "", "结束日期")
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "导出格式: csv | xlsx")
	cmd.Flags().StringVarP(&out, "output", "o", "", "输出文件路径")
	return cmd
}

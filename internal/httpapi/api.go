package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/yuqie6/intrack/internal/bootstrap"
	"github.com/yuqie6/intrack/internal/dto"
	"github.com/yuqie6/intrack/internal/export"
	"github.com/yuqie6/intrack/internal/pkg/buildinfo"
	"github.com/yuqie6/intrack/internal/repository"
	"github.com/yuqie6/intrack/internal/schema"
	"github.com/yuqie6/intrack/internal/service"
)

type apiServer struct {
	core      *bootstrap.Core
	startTime time.Time
}

func newAPI(core *bootstrap.Core) *apiServer {
	started := core.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	return &apiServer{core: core, startTime: started}
}

// ========== routes ==========

func (a *apiServer) registerJSONRoutes(r chi.Router) {
	r.Route("/api/production", func(r chi.Router) {
		r.Post("/record", a.recordInspection)
		r.Get("/records/{id}", a.getInspection)
		r.Get("/daily-stats", a.getDailyStats)
		r.Get("/defect-analysis", a.getDefectAnalysis)
		r.Get("/history", a.getHistory)
	})

	r.Route("/api/defects", func(r chi.Router) {
		r.Get("/categories", a.listLabels(schema.LabelKindDefect))
		r.Post("/categories", a.addLabel(schema.LabelKindDefect))
		r.Get("/rejection-reasons", a.listLabels(schema.LabelKindRejection))
		r.Post("/rejection-reasons", a.addLabel(schema.LabelKindRejection))
		r.Get("/modification-types", a.listLabels(schema.LabelKindModification))
		r.Post("/modification-types", a.addLabel(schema.LabelKindModification))
	})

	r.Get("/api/lines", a.listLines)

	r.Route("/api/admin", func(r chi.Router) {
		r.Get("/dashboard", a.getDashboard)
		r.Get("/production-summary", a.getProductionSummary)
		r.Get("/defect-trends", a.getDefectTrends)
		r.Get("/export", a.exportHistory)
	})
}

// ========== handlers ==========

func (a *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.HealthDTO{
		OK:        a.core.DB != nil && !a.core.DB.SafeMode,
		Name:      a.core.Cfg.App.Name,
		Version:   buildinfo.Version,
		StartedAt: a.startTime.Format(time.RFC3339),
	})
}

func (a *apiServer) getStatus(w http.ResponseWriter, r *http.Request) {
	out := dto.StatusDTO{
		App: dto.AppStatusDTO{
			Name:       a.core.Cfg.App.Name,
			Version:    buildinfo.Version,
			Commit:     buildinfo.Commit,
			StartedAt:  a.startTime.Format(time.RFC3339),
			UptimeSec:  int64(time.Since(a.startTime).Seconds()),
			Timezone:   a.core.Location.String(),
			ConfigPath: a.core.ConfigPath,
		},
		Events: dto.EventsStatusDTO{
			Subscribers: a.core.Hub.Subscribers(),
			Dropped:     a.core.Hub.Dropped(),
		},
	}
	if db := a.core.DB; db != nil {
		out.App.SafeMode = db.SafeMode
		out.Storage = dto.StorageStatusDTO{
			Driver:         db.Driver,
			SchemaVersion:  db.SchemaVersion,
			SafeModeReason: db.MigrationError,
		}
		if db.Driver != repository.DriverPostgres {
			out.Storage.DBPath = a.core.Cfg.Storage.DBPath
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *apiServer) recordInspection(w http.ResponseWriter, r *http.Request) {
	var req dto.RecordRequestDTO
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "请求体无效: "+err.Error())
		return
	}

	s := strings.TrimSpace(req.Timestamp)
	if s == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorDTO{Error: "timestamp 为必填项", Field: "timestamp"})
		return
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorDTO{Error: "timestamp 必须为 RFC3339", Field: "timestamp"})
		return
	}

	view, err := a.core.Services.Production.RecordInspection(r.Context(), service.RecordInput{
		ProductionLineID: req.ProductionLineID,
		InspectorID:      req.InspectorID,
		Type:             req.Type,
		Timestamp:        ts,
		Defects:          req.Defects,
		Modifications:    req.Modifications,
		RejectionReasons: req.RejectionReasons,
		Notes:            req.Notes,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (a *apiServer) getInspection(w http.ResponseWriter, r *http.Request) {
	id, err := parseInt64Param(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorDTO{Error: "id 无效", Field: "id"})
		return
	}
	view, err := a.core.Services.Production.GetInspection(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *apiServer) getDailyStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lineID, err := queryInt64(q, "production_line_id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	date := strings.TrimSpace(q.Get("date"))
	if date == "" {
		date = time.Now().In(a.core.Location).Format("2006-01-02")
	}

	stats, err := a.core.Services.Production.ComputeDailyStats(r.Context(), lineID, date)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *apiServer) getDefectAnalysis(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lineID, err := queryInt64(q, "production_line_id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out, err := a.core.Services.Production.ComputeDefectAnalysis(r.Context(), lineID, q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *apiServer) getHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := summaryFilterFromQuery(q)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	page, err := queryInt(q, "page", 1)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	limit, err := queryInt(q, "limit", 0)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out, err := a.core.Services.Production.ComputeProductionSummary(r.Context(), filter, page, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *apiServer) listLabels(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		labels, err := a.core.Services.Catalog.ListLabels(r.Context(), kind)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		out := make([]dto.LabelDTO, 0, len(labels))
		for _, l := range labels {
			out = append(out, dto.LabelDTO{ID: l.ID, Name: l.Name, Category: l.Category})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (a *apiServer) addLabel(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.AddLabelRequestDTO
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "请求体无效: "+err.Error())
			return
		}
		label, err := a.core.Services.Catalog.AddLabel(r.Context(), kind, req.Name, req.Category)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, dto.LabelDTO{ID: label.ID, Name: label.Name, Category: label.Category})
	}
}

func (a *apiServer) listLines(w http.ResponseWriter, r *http.Request) {
	lines, err := a.core.Services.Catalog.ListLines(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]dto.LineDTO, 0, len(lines))
	for _, l := range lines {
		out = append(out, dto.LineDTO{ID: l.ID, Name: l.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *apiServer) getDashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lines, err := queryInt64List(q, "lines")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	days, err := queryInt(q, "days", 0)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out, err := a.core.Services.Dashboard.BuildRolledUpDashboard(r.Context(), service.DashboardQuery{
		LineIDs:   lines,
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
		Days:      days,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *apiServer) getProductionSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lineID, err := queryOptionalInt64(q, "production_line_id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out, err := a.core.Services.Production.SummarizeLines(r.Context(), lineID, q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *apiServer) getDefectTrends(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lineID, err := queryOptionalInt64(q, "production_line_id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out, err := a.core.Services.Production.DefectTrends(r.Context(), lineID, q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *apiServer) exportHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format, err := export.ParseFormat(q.Get("format"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorDTO{Error: err.Error(), Field: "format"})
		return
	}
	filter, err := summaryFilterFromQuery(q)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	// 先写入缓冲区，出错时仍可返回 JSON 错误
	var buf bytes.Buffer
	res, err := a.core.Services.Export.Export(r.Context(), filter, format, &buf)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	filename := format.Filename("inspections-" + time.Now().In(a.core.Location).Format("20060102"))
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.Header().Set("X-Export-Rows", strconv.Itoa(res.Rows))
	if res.Truncated {
		w.Header().Set("X-Export-Truncated", "true")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func summaryFilterFromQuery(q url.Values) (service.SummaryFilter, error) {
	lineID, err := queryOptionalInt64(q, "production_line_id")
	if err != nil {
		return service.SummaryFilter{}, err
	}
	return service.SummaryFilter{
		ProductionLineID: lineID,
		Type:             q.Get("type"),
		StartDate:        q.Get("start_date"),
		EndDate:          q.Get("end_date"),
	}, nil
}

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/yuqie6/intrack/internal/dto"
	"github.com/yuqie6/intrack/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, dto.ErrorDTO{Error: msg})
}

// writeServiceError 将服务层错误映射为 HTTP 状态码
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, dto.ErrorDTO{Error: ve.Error(), Field: ve.Field})
	case errors.Is(err, service.ErrLabelExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "请求超时")
	case errors.Is(err, context.Canceled):
		// 客户端已断开
	default:
		slog.Error("请求处理失败", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "内部错误")
	}
}

func readJSON(r *http.Request, out any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func parseInt64Param(value string) (int64, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return 0, fmt.Errorf("参数为空")
	}
	return strconv.ParseInt(v, 10, 64)
}

// queryInt64 必填整数参数
func queryInt64(q url.Values, name string) (int64, error) {
	v, err := parseInt64Param(q.Get(name))
	if err != nil {
		return 0, &service.ValidationError{Field: name, Message: "必须为整数"}
	}
	return v, nil
}

// queryOptionalInt64 可选整数参数，缺省返回 nil
func queryOptionalInt64(q url.Values, name string) (*int64, error) {
	if strings.TrimSpace(q.Get(name)) == "" {
		return nil, nil
	}
	v, err := queryInt64(q, name)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// queryInt 可选整数参数，缺省返回 def
func queryInt(q url.Values, name string, def int) (int, error) {
	s := strings.TrimSpace(q.Get(name))
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &service.ValidationError{Field: name, Message: "必须为整数"}
	}
	return n, nil
}

// queryInt64List 解析逗号分隔的 ID 列表
func queryInt64List(q url.Values, name string) ([]int64, error) {
	var out []int64
	for _, part := range splitCSV(q.Get(name)) {
		v, err := parseInt64Param(part)
		if err != nil {
			return nil, &service.ValidationError{Field: name, Message: fmt.Sprintf("非法 ID %q", part)}
		}
		out = append(out, v)
	}
	return out, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

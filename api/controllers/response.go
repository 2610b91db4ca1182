package controllers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/render"
)

// APIResponse 统一API响应结构
type APIResponse struct {
	Status int         `json:"status" example:"0"`
	Msg    string      `json:"msg" example:"操作成功"`
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`

	httpStatus int
}

// Render 设置HTTP状态码
func (resp *APIResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, resp.httpStatus)
	return nil
}

// PaginatedResponse 分页响应结构
type PaginatedResponse struct {
	Status int         `json:"status" example:"0"`
	Msg    string      `json:"msg" example:"操作成功"`
	Data   interface{} `json:"data"`
	Total  int64       `json:"total" example:"100"`
	Page   int         `json:"page" example:"1"`
	Size   int         `json:"size" example:"10"`
}

// Render 分页响应总是200
func (resp *PaginatedResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, http.StatusOK)
	return nil
}

// SuccessResponse 成功响应
func SuccessResponse(msg string, data interface{}) *APIResponse {
	return &APIResponse{Status: 0, Msg: msg, Data: data, httpStatus: http.StatusOK}
}

// AcceptedResponse 已受理，异步执行
func AcceptedResponse(msg string, data interface{}) *APIResponse {
	return &APIResponse{Status: 0, Msg: msg, Data: data, httpStatus: http.StatusAccepted}
}

// ErrorResponse 错误响应
func ErrorResponse(code int, msg string, err error) *APIResponse {
	resp := &APIResponse{Status: code, Msg: msg, httpStatus: code}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

// BadRequestResponse 400
func BadRequestResponse(msg string, err error) *APIResponse {
	return ErrorResponse(http.StatusBadRequest, msg, err)
}

// NotFoundResponse 404
func NotFoundResponse(msg string, err error) *APIResponse {
	return ErrorResponse(http.StatusNotFound, msg, err)
}

// ConflictResponse 409
func ConflictResponse(msg string, err error) *APIResponse {
	return ErrorResponse(http.StatusConflict, msg, err)
}

// InternalErrorResponse 500
func InternalErrorResponse(msg string, err error) *APIResponse {
	return ErrorResponse(http.StatusInternalServerError, msg, err)
}

// UnavailableResponse 503
func UnavailableResponse(msg string, err error) *APIResponse {
	return ErrorResponse(http.StatusServiceUnavailable, msg, err)
}

// 分页参数
const (
	defaultPageSize = 20
	maxPageSize     = 500
)

// parsePagination 解析 page/size 查询参数，返回 page、size 与 offset
func parsePagination(r *http.Request) (int, int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size, (page - 1) * size
}

/*
 * @module api/controllers/pipeline_controller
 * @description 流水线运行控制器：触发运行、查询运行记录
 * @architecture MVC架构 - 控制器层
 * @stateFlow POST 触发 -> 202 返回运行记录 -> 后台执行 -> GET 查询状态
 * @rules 同一时间只允许一次运行，冲突返回409
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/render
 * @refs service/pipeline
 */

package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/icedo724/medi/service/database"
	"github.com/icedo724/medi/service/meta"
	"github.com/icedo724/medi/service/models"
	"github.com/icedo724/medi/service/pipeline"
)

// RunStarter 异步启动流水线
type RunStarter interface {
	Start(ctx context.Context, req pipeline.Request) (*models.PipelineRun, error)
	Runs() pipeline.RunStore
}

// PipelineController 流水线运行控制器
type PipelineController struct {
	runner RunStarter
}

// NewPipelineController 创建流水线运行控制器
func NewPipelineController(runner RunStarter) *PipelineController {
	return &PipelineController{runner: runner}
}

// TriggerRun 触发一次运行
// @Summary 触发流水线运行
// @Description 按 collect -> resolve -> aggregate -> segment 顺序执行所选阶段，stages 为空表示全部
// @Tags 流水线
// @Accept json
// @Produce json
// @Param request body pipeline.Request false "运行请求"
// @Success 202 {object} APIResponse{data=models.PipelineRun}
// @Failure 400 {object} APIResponse
// @Failure 409 {object} APIResponse
// @Router /pipeline/runs [post]
func (c *PipelineController) TriggerRun(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	if r.ContentLength != 0 {
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			render.Render(w, r, BadRequestResponse("请求参数解析失败", err))
			return
		}
	}
	if req.Trigger == "" {
		req.Trigger = pipeline.TriggerManual
	}

	run, err := c.runner.Start(r.Context(), req)
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		render.Render(w, r, ConflictResponse("已有流水线运行在执行", err))
	case errors.Is(err, meta.ErrInvalidOption):
		render.Render(w, r, BadRequestResponse("运行参数无效", err))
	case err != nil:
		render.Render(w, r, InternalErrorResponse("启动流水线失败", err))
	default:
		render.Render(w, r, AcceptedResponse("流水线已开始运行", run))
	}
}

// ListRuns 运行记录列表
// @Summary 运行记录列表
// @Description 按创建时间倒序分页查询
// @Tags 流水线
// @Produce json
// @Param status query string false "运行状态" Enums(pending, running, success, failed)
// @Param page query int false "页码" default(1)
// @Param size query int false "每页数量" default(20)
// @Success 200 {object} PaginatedResponse{data=[]models.PipelineRun}
// @Router /pipeline/runs [get]
func (c *PipelineController) ListRuns(w http.ResponseWriter, r *http.Request) {
	page, size, offset := parsePagination(r)
	runs, total, err := c.runner.Runs().ListRuns(r.Context(), r.URL.Query().Get("status"), size, offset)
	if err != nil {
		render.Render(w, r, InternalErrorResponse("获取运行记录失败", err))
		return
	}
	render.Render(w, r, &PaginatedResponse{
		Msg:   "获取运行记录成功",
		Data:  runs,
		Total: total,
		Page:  page,
		Size:  size,
	})
}

// GetRun 运行记录详情
// @Summary 运行记录详情
// @Tags 流水线
// @Produce json
// @Param id path string true "运行ID"
// @Success 200 {object} APIResponse{data=models.PipelineRun}
// @Failure 404 {object} APIResponse
// @Router /pipeline/runs/{id} [get]
func (c *PipelineController) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := c.runner.Runs().GetRun(r.Context(), id)
	if errors.Is(err, database.ErrRunNotFound) {
		render.Render(w, r, NotFoundResponse("运行记录不存在", err))
		return
	}
	if err != nil {
		render.Render(w, r, InternalErrorResponse("获取运行记录失败", err))
		return
	}
	render.Render(w, r, SuccessResponse("获取运行记录成功", run))
}

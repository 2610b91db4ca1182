/*
 * @module api/controllers/output_controller
 * @description 输出表查询控制器：登记实体、匹配结果、明细、RFM结果与分群分布
 * @architecture MVC架构 - 控制器层
 * @stateFlow HTTP请求 -> 仓储查询 -> 统一响应
 * @rules 未启用数据库时所有接口返回503
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/render, github.com/spf13/cast
 * @refs service/database/repository.go
 */

package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/spf13/cast"

	"github.com/icedo724/medi/service/database"
	"github.com/icedo724/medi/service/meta"
)

// OutputController 输出表查询控制器
type OutputController struct {
	repo *database.Repository
}

// NewOutputController 创建输出表查询控制器，repo 为空表示未启用数据库
func NewOutputController(repo *database.Repository) *OutputController {
	return &OutputController{repo: repo}
}

func (c *OutputController) available(w http.ResponseWriter, r *http.Request) bool {
	if c.repo == nil {
		render.Render(w, r, UnavailableResponse("未启用数据库，输出仅保存在数据目录", nil))
		return false
	}
	return true
}

// ListEntities 登记实体列表
// @Summary 登记实体列表
// @Tags 输出
// @Produce json
// @Param page query int false "页码" default(1)
// @Param size query int false "每页数量" default(20)
// @Success 200 {object} PaginatedResponse{data=[]models.EntityRecord}
// @Failure 503 {object} APIResponse
// @Router /outputs/entities [get]
func (c *OutputController) ListEntities(w http.ResponseWriter, r *http.Request) {
	if !c.available(w, r) {
		return
	}
	page, size, offset := parsePagination(r)
	rows, total, err := c.repo.ListEntities(r.Context(), size, offset)
	if err != nil {
		render.Render(w, r, InternalErrorResponse("获取登记实体失败", err))
		return
	}
	render.Render(w, r, &PaginatedResponse{Msg: "获取登记实体成功", Data: rows, Total: total, Page: page, Size: size})
}

// ListMatches 匹配结果列表
// @Summary 匹配结果列表
// @Tags 输出
// @Produce json
// @Param matched_only query bool false "只返回匹配成功的记录"
// @Param page query int false "页码" default(1)
// @Param size query int false "每页数量" default(20)
// @Success 200 {object} PaginatedResponse{data=[]models.MatchResult}
// @Failure 503 {object} APIResponse
// @Router /outputs/matches [get]
func (c *OutputController) ListMatches(w http.ResponseWriter, r *http.Request) {
	if !c.available(w, r) {
		return
	}
	page, size, offset := parsePagination(r)
	matchedOnly := cast.ToBool(r.URL.Query().Get("matched_only"))
	rows, total, err := c.repo.ListMatches(r.Context(), matchedOnly, size, offset)
	if err != nil {
		render.Render(w, r, InternalErrorResponse("获取匹配结果失败", err))
		return
	}
	render.Render(w, r, &PaginatedResponse{Msg: "获取匹配结果成功", Data: rows, Total: total, Page: page, Size: size})
}

// ListRFM RFM结果列表
// @Summary RFM结果列表
// @Tags 输出
// @Produce json
// @Param segment query string false "分群" Enums(VIP, Loyal, Potential, Risk)
// @Param page query int false "页码" default(1)
// @Param size query int false "每页数量" default(20)
// @Success 200 {object} PaginatedResponse{data=[]models.RFMRecord}
// @Failure 400 {object} APIResponse
// @Failure 503 {object} APIResponse
// @Router /outputs/rfm [get]
func (c *OutputController) ListRFM(w http.ResponseWriter, r *http.Request) {
	if !c.available(w, r) {
		return
	}
	segment := r.URL.Query().Get("segment")
	if segment != "" {
		if _, ok := meta.SegmentDisplayNames[segment]; !ok {
			render.Render(w, r, BadRequestResponse("未知分群: "+segment, nil))
			return
		}
	}
	page, size, offset := parsePagination(r)
	rows, total, err := c.repo.ListRFM(r.Context(), segment, size, offset)
	if err != nil {
		render.Render(w, r, InternalErrorResponse("获取RFM结果失败", err))
		return
	}
	render.Render(w, r, &PaginatedResponse{Msg: "获取RFM结果成功", Data: rows, Total: total, Page: page, Size: size})
}

// SegmentDistribution 分群分布
// @Summary 分群分布
// @Description 各分群实体数，未出现的分群计为0
// @Tags 输出
// @Produce json
// @Success 200 {object} APIResponse{data=map[string]int}
// @Failure 503 {object} APIResponse
// @Router /outputs/rfm/distribution [get]
func (c *OutputController) SegmentDistribution(w http.ResponseWriter, r *http.Request) {
	if !c.available(w, r) {
		return
	}
	dist, err := c.repo.SegmentDistribution(r.Context())
	if err != nil {
		render.Render(w, r, InternalErrorResponse("获取分群分布失败", err))
		return
	}
	for _, label := range meta.SegmentLabels {
		if _, ok := dist[label]; !ok {
			dist[label] = 0
		}
	}
	render.Render(w, r, SuccessResponse("获取分群分布成功", dist))
}

// ListDetails 某实体在某数据源下的明细
// @Summary 实体明细
// @Tags 输出
// @Produce json
// @Param source path string true "数据源名称" example(equip_info)
// @Param entity_id path string true "实体ID"
// @Success 200 {object} APIResponse{data=[]models.DetailRecord}
// @Failure 400 {object} APIResponse
// @Failure 503 {object} APIResponse
// @Router /outputs/details/{source}/{entity_id} [get]
func (c *OutputController) ListDetails(w http.ResponseWriter, r *http.Request) {
	if !c.available(w, r) {
		return
	}
	source := chi.URLParam(r, "source")
	if _, err := database.DetailTableName(source); err != nil {
		render.Render(w, r, BadRequestResponse("数据源名称无效", err))
		return
	}
	rows, err := c.repo.ListDetails(r.Context(), source, chi.URLParam(r, "entity_id"))
	if err != nil {
		render.Render(w, r, InternalErrorResponse("获取明细失败", err))
		return
	}
	render.Render(w, r, SuccessResponse("获取明细成功", rows))
}

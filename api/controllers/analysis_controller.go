/*
 * @module api/controllers/analysis_controller
 * @description 即时分析控制器：名称匹配与RFM分群，不经过流水线、不落库
 * @architecture MVC架构 - 控制器层
 * @stateFlow 请求 -> 读取登记表/解析交易 -> 计算 -> 返回结果
 * @rules 名称匹配使用数据目录中最近一次采集的登记表
 * @dependencies github.com/go-chi/render
 * @refs service/resolver, service/rfm
 */

package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/render"

	"github.com/icedo724/medi/service/config"
	"github.com/icedo724/medi/service/meta"
	"github.com/icedo724/medi/service/models"
	"github.com/icedo724/medi/service/monitoring"
	"github.com/icedo724/medi/service/resolver"
	"github.com/icedo724/medi/service/rfm"
	"github.com/icedo724/medi/service/tabular"
)

// 单次请求上限
const maxAnalysisItems = 10000

// AnalysisController 即时分析控制器
type AnalysisController struct {
	cfg     *config.Config
	metrics *monitoring.MetricsCollector
}

// NewAnalysisController 创建即时分析控制器
func NewAnalysisController(cfg *config.Config, metrics *monitoring.MetricsCollector) *AnalysisController {
	return &AnalysisController{cfg: cfg, metrics: metrics}
}

// ResolveRequest 名称匹配请求
type ResolveRequest struct {
	Names     []string `json:"names" example:"서울대학교병원,연세 세브란스"`
	MinScore  *float64 `json:"min_score,omitempty" example:"80"`
	Processor string   `json:"processor,omitempty" example:"nfc"`
}

// ResolveResponse 名称匹配结果
type ResolveResponse struct {
	Results []models.MatchResult `json:"results"`
	Summary *resolver.Summary    `json:"summary"`
}

// Resolve 名称匹配
// @Summary 名称匹配
// @Description 将客户名称匹配到登记实体，返回最相似的实体与分数
// @Tags 分析
// @Accept json
// @Produce json
// @Param request body ResolveRequest true "匹配请求"
// @Success 200 {object} APIResponse{data=ResolveResponse}
// @Failure 400 {object} APIResponse
// @Failure 412 {object} APIResponse
// @Router /analysis/resolve [post]
func (c *AnalysisController) Resolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Render(w, r, BadRequestResponse("请求参数解析失败", err))
		return
	}
	if len(req.Names) == 0 || len(req.Names) > maxAnalysisItems {
		render.Render(w, r, BadRequestResponse(fmt.Sprintf("names 数量必须在1到%d之间", maxAnalysisItems), nil))
		return
	}

	minScore := c.cfg.MatchMinScore
	if req.MinScore != nil {
		minScore = *req.MinScore
	}
	processorName := req.Processor
	if processorName == "" {
		processorName = c.cfg.MatchProcessor
	}
	processor, ok := resolver.GetProcessor(processorName)
	if !ok {
		render.Render(w, r, BadRequestResponse("未知的名称预处理方式: "+processorName, nil))
		return
	}

	entities, err := tabular.ReadRegistry(filepath.Join(c.cfg.DataDir, tabular.RegistryFile))
	if err != nil {
		renderStageError(w, r, "读取登记表失败", err)
		return
	}

	res, err := resolver.NewResolver(entities, resolver.Options{
		MinScore:  minScore,
		Processor: processor,
		Metrics:   c.metrics,
	})
	if err != nil {
		renderStageError(w, r, "创建名称解析器失败", err)
		return
	}

	clients := make([]models.ClientRecord, len(req.Names))
	for i, name := range req.Names {
		clients[i] = models.ClientRecord{ClientName: name}
	}
	results, summary, err := res.ResolveAll(r.Context(), clients)
	if err != nil {
		render.Render(w, r, InternalErrorResponse("名称匹配失败", err))
		return
	}

	render.Render(w, r, SuccessResponse("名称匹配成功", ResolveResponse{Results: results, Summary: summary}))
}

// SegmentRequest RFM分群请求，交易字段与交易日志列名一致
type SegmentRequest struct {
	Transactions  []models.Record `json:"transactions"`
	ReferenceDate string          `json:"reference_date,omitempty" example:"2024-06-01"`
}

// SegmentResponse RFM分群结果
type SegmentResponse struct {
	*rfm.Result
	Records []models.RFMRecord `json:"records"`
}

// Segment RFM分群
// @Summary RFM分群
// @Description 根据交易记录计算每个实体的RFM分数与分群，分位数以本次请求的实体为总体
// @Tags 分析
// @Accept json
// @Produce json
// @Param request body SegmentRequest true "分群请求"
// @Success 200 {object} APIResponse{data=SegmentResponse}
// @Failure 400 {object} APIResponse
// @Router /analysis/segment [post]
func (c *AnalysisController) Segment(w http.ResponseWriter, r *http.Request) {
	var req SegmentRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Render(w, r, BadRequestResponse("请求参数解析失败", err))
		return
	}
	if len(req.Transactions) > maxAnalysisItems {
		render.Render(w, r, BadRequestResponse(fmt.Sprintf("transactions 数量不能超过%d", maxAnalysisItems), nil))
		return
	}

	transactions := make([]models.TransactionRecord, 0, len(req.Transactions))
	for i, row := range req.Transactions {
		tx, err := tabular.ParseTransaction(row)
		if err != nil {
			render.Render(w, r, BadRequestResponse(fmt.Sprintf("第%d条交易无法解析", i+1), err))
			return
		}
		transactions = append(transactions, tx)
	}

	ref := c.cfg.ReferenceDate(time.Now())
	if req.ReferenceDate != "" {
		parsed, err := tabular.ParseDate(req.ReferenceDate)
		if err != nil {
			render.Render(w, r, BadRequestResponse("参考日期格式错误", err))
			return
		}
		ref = parsed
	}

	result, err := rfm.NewEngine(rfm.Options{}).Segment(transactions, ref)
	if err != nil {
		renderStageError(w, r, "RFM分群失败", err)
		return
	}
	render.Render(w, r, SuccessResponse("RFM分群成功", SegmentResponse{Result: result, Records: result.Records}))
}

// renderStageError 前置条件错误返回4xx，其余返回500
func renderStageError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, meta.ErrMissingInput), errors.Is(err, meta.ErrMissingColumn):
		render.Render(w, r, ErrorResponse(http.StatusPreconditionFailed, msg, err))
	case errors.Is(err, meta.ErrInvalidOption):
		render.Render(w, r, BadRequestResponse(msg, err))
	default:
		render.Render(w, r, InternalErrorResponse(msg, err))
	}
}

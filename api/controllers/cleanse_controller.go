/*
 * @module api/controllers/cleanse_controller
 * @description 库存表清洗控制器：展开属性列并规范表头
 * @architecture MVC架构 - 控制器层
 * @stateFlow 请求 -> 数据目录内读取输入 -> 清洗 -> 写出
 * @rules 文件名只能是数据目录下的文件名，不接受路径
 * @dependencies github.com/go-chi/render
 * @refs service/data_quality/cleanser.go
 */

package controllers

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/render"

	"github.com/icedo724/medi/service/data_quality"
)

// CleanseController 库存表清洗控制器
type CleanseController struct {
	dataDir string
}

// NewCleanseController 创建库存表清洗控制器
func NewCleanseController(dataDir string) *CleanseController {
	return &CleanseController{dataDir: dataDir}
}

// CleanseRequest 清洗请求
type CleanseRequest struct {
	Input           string `json:"input" example:"inventory_raw.csv"`
	Output          string `json:"output" example:"inventory_clean.csv"`
	AttributeColumn string `json:"attribute_column,omitempty" example:"attributes"`
}

// Cleanse 清洗库存表
// @Summary 清洗库存表
// @Description 将属性列中的 [{"name":..,"value":..}] 展开为独立列，并去掉表头中的 * 与空白
// @Tags 数据质量
// @Accept json
// @Produce json
// @Param request body CleanseRequest true "清洗请求"
// @Success 200 {object} APIResponse{data=data_quality.CleanseStats}
// @Failure 400 {object} APIResponse
// @Failure 412 {object} APIResponse
// @Router /cleanse [post]
func (c *CleanseController) Cleanse(w http.ResponseWriter, r *http.Request) {
	var req CleanseRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Render(w, r, BadRequestResponse("请求参数解析失败", err))
		return
	}
	if !plainFileName(req.Input) || !plainFileName(req.Output) {
		render.Render(w, r, BadRequestResponse("input 与 output 必须是数据目录下的文件名", nil))
		return
	}

	cleanser := data_quality.NewCleanser(req.AttributeColumn)
	stats, err := cleanser.CleanseFile(filepath.Join(c.dataDir, req.Input), filepath.Join(c.dataDir, req.Output))
	if err != nil {
		renderStageError(w, r, "清洗失败", err)
		return
	}
	render.Render(w, r, SuccessResponse("清洗成功", stats))
}

func plainFileName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}

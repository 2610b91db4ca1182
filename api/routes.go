/*
 * @module api/routes
 * @description API路由配置模块，负责初始化和配置所有HTTP路由
 * @architecture RESTful API架构
 * @stateFlow 无状态HTTP请求处理
 * @rules 遵循RESTful API设计规范，统一错误处理和响应格式
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/cors, github.com/go-chi/render
 * @refs api/controllers
 */

package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"

	"github.com/icedo724/medi/api/controllers"
	"github.com/icedo724/medi/service"
)

// InitRoute 初始化所有API路由
func InitRoute(r chi.Router, app *service.App) {
	// 基础中间件
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	// CORS配置
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// 健康检查
	healthController := controllers.NewHealthController(app.DB)
	r.Get("/health", healthController.Health)
	r.Get("/ready", healthController.Ready)

	// 流水线运行
	r.Route("/pipeline/runs", func(r chi.Router) {
		pipelineController := controllers.NewPipelineController(app.Runner)
		r.Post("/", pipelineController.TriggerRun)
		r.Get("/", pipelineController.ListRuns)
		r.Get("/{id}", pipelineController.GetRun)
	})

	// 即时分析
	r.Route("/analysis", func(r chi.Router) {
		analysisController := controllers.NewAnalysisController(app.Config, app.Metrics)
		r.Post("/resolve", analysisController.Resolve)
		r.Post("/segment", analysisController.Segment)
	})

	// 输出表查询
	r.Route("/outputs", func(r chi.Router) {
		outputController := controllers.NewOutputController(app.Repository)
		r.Get("/entities", outputController.ListEntities)
		r.Get("/matches", outputController.ListMatches)
		r.Get("/rfm", outputController.ListRFM)
		r.Get("/rfm/distribution", outputController.SegmentDistribution)
		r.Get("/details/{source}/{entity_id}", outputController.ListDetails)
	})

	// 数据清洗
	cleanseController := controllers.NewCleanseController(app.Config.DataDir)
	r.Post("/cleanse", cleanseController.Cleanse)
}

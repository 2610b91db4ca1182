package main

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icedo724/medi/service/meta"
	"github.com/icedo724/medi/service/models"
)

// TestCommandTree 每个阶段都有对应子命令
func TestCommandTree(t *testing.T) {
	for _, name := range append([]string{"run", "cleanse", "sources"}, meta.PipelineStages...) {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}

	flag := runCmd.Flags().Lookup("stages")
	require.NotNil(t, flag)
	assert.Equal(t, "[]", flag.DefValue)
}

// TestPrintReport 运行摘要以YAML输出
func TestPrintReport(t *testing.T) {
	run := &models.PipelineRun{
		ID:           "run-1",
		Status:       meta.RunStatusFailed,
		Stages:       models.JSONBStringArray{meta.StageResolve, meta.StageSegment},
		ErrorMessage: "阶段 resolve 失败",
		Summary:      models.JSONB{"segment": map[string]interface{}{"entities": 3}},
	}

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	require.NoError(t, printYAML(cmd, runReport(run)))

	out := buf.String()
	assert.Contains(t, out, "run_id: run-1")
	assert.Contains(t, out, "status: failed")
	assert.Contains(t, out, "stages: resolve,segment")
	assert.Contains(t, out, "entities: 3")
}

package tabular

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icedo724/medi/service/meta"
	"github.com/icedo724/medi/service/models"
)

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// TestReadCSV_MissingFile 测试输入文件不存在
func TestReadCSV_MissingFile(t *testing.T) {
	_, err := ReadCSV(filepath.Join(t.TempDir(), "none.csv"))
	assert.ErrorIs(t, err, meta.ErrMissingInput)
}

// TestReadRegistry_Aliases 测试登记接口字段名与BOM
func TestReadRegistry_Aliases(t *testing.T) {
	path := writeFile(t, "registry.csv", "\ufeffykiho,yadmNm,sgguCdNm,addr,clCdNm\nE1,서울대학교병원,종로구,서울 종로구,상급종합\n,이름만,,,\nE2,세브란스병원,서대문구,,\n")

	entities, err := ReadRegistry(path)
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.Equal(t, "E1", entities[0].EntityID)
	assert.Equal(t, "서울대학교병원", entities[0].DisplayName)
	require.NotNil(t, entities[0].Category)
	assert.Nil(t, entities[1].Category)
}

// TestReadClients_MissingColumn 测试缺少必需列
func TestReadClients_MissingColumn(t *testing.T) {
	path := writeFile(t, "clients.csv", "name\n서울병원\n")
	_, err := ReadClients(path)
	assert.ErrorIs(t, err, meta.ErrMissingColumn)

	path = writeFile(t, "clients.csv", "client_name,memo\n서울 병원,a\n부산병원\n")
	clients, err := ReadClients(path)
	require.NoError(t, err)
	assert.Equal(t, []models.ClientRecord{{ClientName: "서울 병원"}, {ClientName: "부산병원"}}, clients)
}

// TestReadTransactions 测试交易日志解析
func TestReadTransactions(t *testing.T) {
	path := writeFile(t, "sales.csv", "ykiho,sales_date,order_id,amount\nA,2025-01-01,1,\"100,000\"\nB,20250201,2,-3000\nC,2024.12.01,3,50000.5\n")

	txs, err := ReadTransactions(path)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, "A", txs[0].EntityID)
	assert.True(t, decimal.NewFromInt(100000).Equal(txs[0].Amount))
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), txs[1].TransactionDate)
	assert.True(t, decimal.NewFromInt(-3000).Equal(txs[1].Amount))
	assert.Equal(t, 2024, txs[2].TransactionDate.Year())

	bad := writeFile(t, "bad.csv", "entity_id,transaction_date,order_id,amount\nA,not-a-date,1,100\n")
	_, err = ReadTransactions(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "第2行")
}

// TestWriteDetails 测试明细表列顺序与本地化表头
func TestWriteDetails(t *testing.T) {
	dir := t.TempDir()
	details := []models.DetailRecord{
		models.NewDetailRecord("nursing_info", "E1", models.Record{"ykiho": "E1", "grade": "1", "gradeNm": "간호등급"}),
		models.NewDetailRecord("nursing_info", "E2", models.Record{"ykiho": "E2", "extra": "x"}),
	}

	path, err := WriteDetails(dir, "nursing_info", details, DefaultColumnLabels)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "hospital_detail_nursing_info.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(string(data), "\ufeff")), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "암호화된 요양기호,extra,간호등급,구분 코드명", lines[0])
	assert.Equal(t, "E1,,1,간호등급", lines[1])
	assert.Equal(t, "E2,x,,", lines[2])
}

// TestWriteRFM_RoundTrip 测试RFM表输出
func TestWriteRFM_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", RFMFile)
	records := []models.RFMRecord{{
		EntityID: "A", RecencyDays: 121, Frequency: 2, Monetary: decimal.NewFromInt(250000),
		RScore: 5, FScore: 3, MScore: 5, TotalScore: 13, Segment: meta.SegmentVIP,
	}}
	require.NoError(t, WriteRFM(path, records, true))

	table, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, RFMColumns, table.Columns)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "VIP (최우수)", table.Rows[0]["segment"])
	assert.Equal(t, "250000", table.Rows[0]["monetary"])
}

// TestWriteMatches 测试匹配表中的空匹配
func TestWriteMatches(t *testing.T) {
	name, id, score := "서울병원", "E1", 87.5
	path := filepath.Join(t.TempDir(), MatchFile)
	require.NoError(t, WriteMatches(path, []models.MatchResult{
		{ClientName: "서울 병원", MatchedDisplayName: &name, MatchedEntityID: &id, Score: &score},
		{ClientName: "없음"},
	}))

	table, err := ReadCSV(path)
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "87.5", table.Rows[0]["score"])
	assert.Equal(t, "", table.Rows[1]["matched_entity_id"])
}

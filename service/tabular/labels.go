package tabular

// DefaultColumnLabels 导出时可选的韩文列名
var DefaultColumnLabels = map[string]string{
	ColumnEntityID:    "암호화된 요양기호",
	"ykiho":           "암호화된 요양기호",
	"yadmNm":          "병원명",
	ColumnDisplayName: "병원명",
	"addr":            "주소",
	ColumnAddress:     "주소",
	"sgguCdNm":        "시군구명",
	ColumnRegion:      "시군구명",
	"clCd":            "종별코드",
	"clCdNm":          "종별코드명",
	ColumnCategory:    "종별코드명",
	"dgsbjtCdNm":      "진료과목코드명",
	"dgsbjtCd":        "진료과목코드",
	"ddt":             "의사수",
	"mdeptSdrCnt":     "전문과목별 전문의 수",
	"grade":           "간호등급",
	"gradeNm":         "구분 코드명",
}

package dataset

import (
	"time"

	"agentctl/internal/domain"
)

// Sample returns the built-in employee table used when an upload cannot be read.
func Sample() *domain.TabularDataset {
	headers := []string{"이름", "나이", "직업", "급여", "부서", "가입일"}
	rows := []domain.Row{
		{"이름": "김철수", "나이": "28", "직업": "개발자", "급여": "5000", "부서": "IT", "가입일": "2023-01-15"},
		{"이름": "이영희", "나이": "32", "직업": "디자이너", "급여": "4500", "부서": "디자인", "가입일": "2023-02-20"},
		{"이름": "박민수", "나이": "29", "직업": "마케터", "급여": "4000", "부서": "마케팅", "가입일": "2023-03-10"},
		{"이름": "정수연", "나이": "26", "직업": "분석가", "급여": "4800", "부서": "IT", "가입일": "2023-04-05"},
		{"이름": "최영준", "나이": "31", "직업": "매니저", "급여": "6000", "부서": "경영", "가입일": "2023-05-12"},
	}
	return &domain.TabularDataset{
		Kind:       domain.KindCSV,
		Headers:    headers,
		Rows:       rows,
		TotalRows:  len(rows),
		UploadedAt: time.Now(),
	}
}

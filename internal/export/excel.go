// Package export writes ranked evaluations to an Excel workbook.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/spigell/cv-screener/internal/evaluation"
)

const (
	SummarySheet    = "Summary"
	RankedSheet     = "Ranked Candidates"
	CategoriesSheet = "Categories"

	headerColor = "4472C4"
)

// Report is the input of a workbook. Records are expected in rank order.
type Report struct {
	Title       string
	GeneratedAt time.Time
	Records     []*evaluation.Record
}

// band groups scores for colouring and statistics.
type band struct {
	label string
	min   int
	color string
}

var bands = []band{
	{"Excellent (90-100)", 90, "C6EFCE"},
	{"Good (70-89)", 70, "FFEB9C"},
	{"Fair (50-69)", 50, "FFC7CE"},
	{"Poor (<50)", 0, "FF9999"},
}

func bandOf(score int) int {
	for i, b := range bands {
		if score >= b.min {
			return i
		}
	}
	return len(bands) - 1
}

// Write renders the workbook into w.
func Write(w io.Writer, r Report) error {
	f, err := build(r)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// WriteFile renders the workbook to path, adding the .xlsx extension when missing.
func WriteFile(path string, r Report) (string, error) {
	if !strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		path += ".xlsx"
	}
	path = filepath.Clean(path)

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	if err := Write(file, r); err != nil {
		return "", err
	}
	return path, nil
}

func build(r Report) (*excelize.File, error) {
	if r.GeneratedAt.IsZero() {
		r.GeneratedAt = time.Now()
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		f.Close()
		return nil, err
	}
	for _, name := range []string{RankedSheet, CategoriesSheet} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, err
		}
	}

	w := &sheetWriter{f: f}
	w.summary(r)
	w.ranked(r.Records)
	w.categories(r.Records)
	if w.err != nil {
		f.Close()
		return nil, fmt.Errorf("build workbook: %w", w.err)
	}
	return f, nil
}

// sheetWriter keeps the first excelize error so the sheet code reads linearly.
type sheetWriter struct {
	f   *excelize.File
	err error
}

func (w *sheetWriter) check(err error) {
	if w.err == nil && err != nil {
		w.err = err
	}
}

func (w *sheetWriter) set(sheet string, col, row int, value any) {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		w.check(err)
		return
	}
	w.check(w.f.SetCellValue(sheet, cell, value))
}

func (w *sheetWriter) style(sheet string, fromCol, toCol, row, style int) {
	from, err := excelize.CoordinatesToCellName(fromCol, row)
	w.check(err)
	to, err := excelize.CoordinatesToCellName(toCol, row)
	w.check(err)
	if w.err == nil {
		w.check(w.f.SetCellStyle(sheet, from, to, style))
	}
}

func (w *sheetWriter) newStyle(s *excelize.Style) int {
	id, err := w.f.NewStyle(s)
	w.check(err)
	return id
}

func border() []excelize.Border {
	return []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
}

func (w *sheetWriter) headerStyle() int {
	return w.newStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{headerColor}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    border(),
	})
}

func (w *sheetWriter) header(sheet string, headers []string) {
	style := w.headerStyle()
	for i, h := range headers {
		w.set(sheet, i+1, 1, h)
	}
	w.style(sheet, 1, len(headers), 1, style)
	w.check(w.f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}))
}

func (w *sheetWriter) summary(r Report) {
	sheet := SummarySheet
	w.check(w.f.SetColWidth(sheet, "A", "A", 28))
	w.check(w.f.SetColWidth(sheet, "B", "B", 50))

	label := w.newStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	title := w.newStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{headerColor}, Pattern: 1},
	})

	row := 1
	heading := "Screening Report"
	if r.Title != "" {
		heading += ": " + r.Title
	}
	w.set(sheet, 1, row, heading)
	w.style(sheet, 1, 2, row, title)
	w.check(w.f.MergeCell(sheet, "A1", "B1"))
	row += 2

	line := func(name string, value any) {
		w.set(sheet, 1, row, name)
		w.style(sheet, 1, 1, row, label)
		w.set(sheet, 2, row, value)
		row++
	}

	line("Generated:", r.GeneratedAt.Format("2006-01-02 15:04:05"))
	line("Candidates:", len(r.Records))
	if len(r.Records) == 0 {
		return
	}

	counts := make([]int, len(bands))
	total := 0
	best, worst := r.Records[0].Result.TotalEvaluationScore, r.Records[0].Result.TotalEvaluationScore
	for _, rec := range r.Records {
		score := rec.Result.TotalEvaluationScore
		counts[bandOf(score)]++
		total += score
		best = max(best, score)
		worst = min(worst, score)
	}

	row++
	for i, b := range bands {
		line(b.label+":", counts[i])
	}
	row++
	line("Average Score:", fmt.Sprintf("%.2f", float64(total)/float64(len(r.Records))))
	line("Highest Score:", best)
	line("Lowest Score:", worst)
}

func (w *sheetWriter) ranked(records []*evaluation.Record) {
	sheet := RankedSheet
	headers := []string{"Rank", "Candidate", "Application", "Job", "Total Score", "Summary", "Evaluated At"}
	w.header(sheet, headers)

	widths := []float64{8, 25, 38, 25, 12, 60, 20}
	for i, width := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		w.check(w.f.SetColWidth(sheet, col, col, width))
	}

	styles := make([]int, len(bands))
	for i, b := range bands {
		styles[i] = w.newStyle(&excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{b.color}, Pattern: 1},
			Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
			Border:    border(),
		})
	}

	for i, rec := range records {
		row := i + 2
		score := rec.Result.TotalEvaluationScore
		w.set(sheet, 1, row, i+1)
		w.set(sheet, 2, row, rec.CandidateName)
		w.set(sheet, 3, row, rec.ApplicationID)
		w.set(sheet, 4, row, rec.JobTitle)
		w.set(sheet, 5, row, score)
		w.set(sheet, 6, row, rec.Result.EvaluationSummary)
		w.set(sheet, 7, row, rec.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
		w.style(sheet, 1, len(headers), row, styles[bandOf(score)])
	}

	if len(records) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(headers), len(records)+1)
		w.check(w.f.AutoFilter(sheet, "A1:"+last, []excelize.AutoFilterOptions{}))
	}
}

func (w *sheetWriter) categories(records []*evaluation.Record) {
	sheet := CategoriesSheet
	headers := []string{"Rank", "Candidate", "Category", "Item", "Score", "Score Base"}
	w.header(sheet, headers)
	w.check(w.f.SetColWidth(sheet, "B", "D", 25))

	row := 2
	for i, rec := range records {
		for _, c := range rec.Result.Evaluations {
			w.set(sheet, 1, row, i+1)
			w.set(sheet, 2, row, rec.CandidateName)
			w.set(sheet, 3, row, c.Name)
			w.set(sheet, 5, row, c.TotalScore)
			w.set(sheet, 6, row, c.ScoreBase)
			row++
			for _, item := range c.Items {
				w.set(sheet, 1, row, i+1)
				w.set(sheet, 2, row, rec.CandidateName)
				w.set(sheet, 3, row, c.Name)
				w.set(sheet, 4, row, item.Name)
				w.set(sheet, 5, row, item.Score)
				w.set(sheet, 6, row, item.ScoreBase)
				row++
			}
		}
	}
}

package screening

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/spigell/cv-screener/internal/apperr"
	"github.com/spigell/cv-screener/internal/cache"
	"github.com/spigell/cv-screener/internal/conversation"
	"github.com/spigell/cv-screener/internal/evaluation"
	"github.com/spigell/cv-screener/internal/export"
	"github.com/spigell/cv-screener/internal/extract"
	"github.com/spigell/cv-screener/internal/language"
	"github.com/spigell/cv-screener/internal/prompts"
	"github.com/spigell/cv-screener/internal/ranking"
	"github.com/spigell/cv-screener/internal/render"
	"github.com/spigell/cv-screener/internal/store"
	"github.com/spigell/cv-screener/internal/structuring"
)

type stubGenerator struct {
	response string
	err      error
}

func (s *stubGenerator) GenerateContent(context.Context, string, string) (string, error) {
	return s.response, s.err
}

func (s *stubGenerator) Model() string { return "stub" }

type stubBackend struct {
	err error
}

func (b *stubBackend) PrintPDF(context.Context, string, render.Paper) ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	return []byte("%PDF-1.7 test"), nil
}

type fixture struct {
	svc     *Service
	mem     *store.Memory
	backend *stubBackend
	gen     *stubGenerator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	gen := &stubGenerator{response: "```json\n{\"basics\": {\"name\": \"Jane Doe\", \"label\": \"Go Developer\"}, \"skills\": [{\"name\": \"Go\"}]}\n```"}
	backend := &stubBackend{}
	renderer, err := render.New(backend, render.Options{}, nil)
	require.NoError(t, err)

	mem := store.NewMemory()
	caches := NewCaches(cache.TTLs{})
	engine := conversation.NewEngine(mem, mem, prompts.MustLoad(language.Default),
		conversation.Caches{Sessions: caches.Sessions, Lists: caches.Lists}, conversation.Options{}, nil)

	svc, err := New(Deps{
		Extractor:   extract.New(extract.Options{}, nil),
		Structurer:  structuring.New(gen, structuring.Options{}, nil),
		Renderer:    renderer,
		Engine:      engine,
		Profiles:    mem,
		Evaluations: mem,
		Caches:      caches,
	}, nil)
	require.NoError(t, err)

	return &fixture{svc: svc, mem: mem, backend: backend, gen: gen}
}

func TestIngestWithoutContactsThenExport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ing, err := f.svc.Ingest(ctx, IngestRequest{
		Name: "jane.txt",
		Data: []byte("Jane Doe\nGo Developer\n\nSkills: Go, PostgreSQL, Kubernetes\n"),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, ing.ProfileID)
	assert.Equal(t, "jane.txt", ing.DocumentRef)
	assert.Equal(t, "", ing.Profile.Basics.Email)
	assert.Equal(t, "", ing.Profile.Basics.Phone)
	assert.NotNil(t, ing.Profile.Work)
	assert.NotNil(t, ing.Profile.References)

	doc, err := f.svc.Export(ctx, ExportRequest{ProfileID: ing.ProfileID})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Equal(t, "jane-doe.pdf", doc.Filename)
	assert.NotEmpty(t, doc.Bytes)

	html, err := f.svc.Export(ctx, ExportRequest{ProfileID: ing.ProfileID, Format: render.FormatHTML})
	require.NoError(t, err)
	assert.Contains(t, string(html.Bytes), "Jane Doe")
}

func TestIngestFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Ingest(ctx, IngestRequest{})
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidInput), "got %v", err)

	_, err = f.svc.Ingest(ctx, IngestRequest{Name: "blank.txt", Data: []byte("   \n\n  ")})
	assert.True(t, apperr.IsKind(err, apperr.KindDocumentUnreadable), "got %v", err)

	f.gen.response = "not json at all"
	_, err = f.svc.Ingest(ctx, IngestRequest{Name: "cv.txt", Data: []byte("Jane Doe, engineer")})
	require.True(t, apperr.IsKind(err, apperr.KindStructuringFailed), "got %v", err)
	assert.NotContains(t, apperr.Public(err).Message, "not json")
}

func TestExportRenderUnavailable(t *testing.T) {
	f := newFixture(t)
	f.backend.err = errors.New("chrome crashed")

	_, err := f.svc.Export(context.Background(), ExportRequest{ProfileID: "missing"})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound), "got %v", err)

	_, err = f.svc.Export(context.Background(), ExportRequest{Format: render.FormatPDF})
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidInput), "got %v", err)

	ing, err := f.svc.Ingest(context.Background(), IngestRequest{Name: "cv.txt", Data: []byte("Jane Doe")})
	require.NoError(t, err)
	_, err = f.svc.Export(context.Background(), ExportRequest{Profile: ing.Profile})
	assert.True(t, apperr.IsKind(err, apperr.KindRenderUnavailable), "got %v", err)
}

func TestConversationThroughService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Turn(ctx, TurnRequest{UserInput: "Go Developer"})
	require.NoError(t, err)
	assert.Equal(t, "collecting_description", res.Step)
	id := res.SessionID

	for _, in := range []string{"Build backend services", "3+ years of Go", "5000 USD", "Remote"} {
		res, err = f.svc.Turn(ctx, TurnRequest{SessionID: id, UserInput: in})
		require.NoError(t, err)
	}
	assert.Equal(t, "ready_to_create", res.Step)
	assert.Equal(t, "Remote", res.CollectedFields.Location)

	res, err = f.svc.Edit(ctx, EditRequest{SessionID: id, Field: "salary", Value: "6000 USD"})
	require.NoError(t, err)
	assert.Equal(t, "6000 USD", res.CollectedFields.Salary)

	_, err = f.svc.Edit(ctx, EditRequest{SessionID: id, Field: "bonus", Value: "x"})
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidInput), "got %v", err)

	res, err = f.svc.Turn(ctx, TurnRequest{SessionID: id, UserInput: "yes"})
	require.NoError(t, err)
	assert.Equal(t, "completion", res.Step)
	assert.NotEmpty(t, res.RecordID)

	res, err = f.svc.Turn(ctx, TurnRequest{SessionID: id, UserInput: "yes"})
	require.NoError(t, err)
	assert.Equal(t, "completion", res.Step)

	postings, err := f.mem.ListPostings(ctx)
	require.NoError(t, err)
	assert.Len(t, postings, 1)

	session, err := f.svc.Session(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, conversation.StepCompletion, session.Step)

	sessions, err := f.svc.Sessions(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)

	_, err = f.svc.Session(ctx, "unknown")
	assert.True(t, apperr.IsKind(err, apperr.KindSessionNotFound), "got %v", err)
}

func rubric(score float64) []evaluation.Category {
	return []evaluation.Category{{
		Name: "Experience",
		Items: []evaluation.Item{
			{Name: "Go", Score: score, ScoreBase: 10},
			{Name: "SQL", Score: 5, ScoreBase: 10},
		},
	}}
}

func TestEvaluateAndReadThroughCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ing, err := f.svc.Ingest(ctx, IngestRequest{Name: "cv.txt", Data: []byte("Jane Doe")})
	require.NoError(t, err)

	rec, err := f.svc.Evaluate(ctx, EvaluateRequest{
		ApplicationID: "app-1",
		ProfileID:     ing.ProfileID,
		JobTitle:      "Go Developer",
		Categories:    rubric(10),
	})
	require.NoError(t, err)
	assert.Equal(t, 75, rec.Result.TotalEvaluationScore)
	assert.Equal(t, "Jane Doe", rec.CandidateName)

	got, err := f.svc.ReadEvaluation(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)

	// A re-evaluation is a new record and replaces the cached one.
	again, err := f.svc.Evaluate(ctx, EvaluateRequest{ApplicationID: "app-1", Categories: rubric(5)})
	require.NoError(t, err)
	assert.NotEqual(t, rec.ID, again.ID)

	got, err = f.svc.ReadEvaluation(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, 50, got.Result.TotalEvaluationScore)

	_, err = f.svc.ReadEvaluation(ctx, "app-2")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound), "got %v", err)
}

func TestReadEvaluationReturnsIndependentCopies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Evaluate(ctx, EvaluateRequest{ApplicationID: "app-1", Categories: rubric(10)})
	require.NoError(t, err)

	got, err := f.svc.ReadEvaluation(ctx, "app-1")
	require.NoError(t, err)
	want := got.Result.Evaluations[0].Items[0].Score

	got.Result.Evaluations[0].Items[0].Score = 999
	got.Result.Evaluations[0].Name = "changed"
	got.Result.TotalEvaluationScore = 1

	again, err := f.svc.ReadEvaluation(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, want, again.Result.Evaluations[0].Items[0].Score)
	assert.NotEqual(t, "changed", again.Result.Evaluations[0].Name)
	assert.NotEqual(t, 1, again.Result.TotalEvaluationScore)
}

func TestEvaluateEdgeCases(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.Evaluate(ctx, EvaluateRequest{ApplicationID: "empty"})
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Result.TotalEvaluationScore)

	_, err = f.svc.Evaluate(ctx, EvaluateRequest{ApplicationID: "bad", Categories: rubric(11)})
	assert.True(t, apperr.IsKind(err, apperr.KindMalformedEvaluation), "got %v", err)

	_, err = f.svc.Evaluate(ctx, EvaluateRequest{Categories: rubric(1)})
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidInput), "got %v", err)
}

func TestRankAndWorkbook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	clock := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	f.svc.deps.Now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	for app, score := range map[string]float64{"a1": 2, "a2": 10, "a3": 6} {
		_, err := f.svc.Evaluate(ctx, EvaluateRequest{ApplicationID: app, JobTitle: "Go Developer", Categories: rubric(score)})
		require.NoError(t, err)
	}

	ranked, err := f.svc.Rank(ctx, &ranking.Config{MinScore: 40}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a2", "a3"}, ranked.ApplicationIDs())

	_, err = f.svc.Rank(ctx, &ranking.Config{MinScore: 101}, nil)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidInput), "got %v", err)

	var buf bytes.Buffer
	require.NoError(t, f.svc.Workbook(ctx, &ranking.Config{}, "Go Developer", &buf))

	book, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer book.Close()

	rows, err := book.GetRows(export.RankedSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "a2", rows[1][2])
}

func TestReplaceSection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ing, err := f.svc.Ingest(ctx, IngestRequest{Name: "cv.txt", Data: []byte("Jane Doe")})
	require.NoError(t, err)

	updated, err := f.svc.ReplaceSection(ctx, SectionRequest{
		ProfileID: ing.ProfileID,
		Section:   "skills",
		Value:     []byte(`[{"name": "Rust"}, {"name": "Go"}]`),
	})
	require.NoError(t, err)
	require.Len(t, updated.Profile.Skills, 2)

	_, err = f.svc.ReplaceSection(ctx, SectionRequest{ProfileID: ing.ProfileID, Section: "hobbies", Value: []byte(`[]`)})
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidInput), "got %v", err)

	_, err = f.svc.ReplaceSection(ctx, SectionRequest{ProfileID: "nope", Section: "skills", Value: []byte(`[]`)})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound), "got %v", err)
}

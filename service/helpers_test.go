package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"casestatus-backend/browser"
	"casestatus-backend/browser/browsertest"
	"casestatus-backend/models"
	"casestatus-backend/storage"

	"github.com/google/uuid"
)

const resultsHTML = `<html><body>
<div class="case-title">  State vs. Example
  Person </div>
<div class="case-status">Pending</div>
<div class="hearing-date">12-03-2024</div>
<div class="order-judgment">Order dated 01-02-2024</div>
</body></html>`

var testQuery = models.CaseQuery{CourtComplex: "EST01", CaseType: "CRL", CaseNumber: "123", CaseYear: "2023"}

func testConfig() PipelineConfig {
	return PipelineConfig{
		NavigationTimeout:   time.Second,
		StepTimeout:         200 * time.Millisecond,
		FieldTimeout:        200 * time.Millisecond,
		CaptchaMaxAttempts:  3,
		CaptchaRefreshDelay: time.Millisecond,
		SubmissionTimeout:   300 * time.Millisecond,
		ResultTimeout:       100 * time.Millisecond,
	}
}

// newFormPage returns a fake search form whose case-type dropdown starts disabled
// and whose submit button answers with status and reveals the results page.
func newFormPage(status int64, revealResults bool) *browsertest.Page {
	sel := DefaultSelectors()
	page := browsertest.NewPage()
	page.Add(sel.ComplexModeRadio)
	page.Add(sel.CourtComplex)
	page.AddOption(sel.CourtComplex, testQuery.CourtComplex)
	page.AddDisabled(sel.CaseType)
	page.AddOption(sel.CaseType, testQuery.CaseType)
	page.Add(sel.CaseNumber)
	page.Add(sel.CaseYear)
	page.Add(sel.CaptchaImage)
	page.Add(sel.CaptchaRefresh)
	page.Add(sel.CaptchaInput)
	page.Add(sel.Submit)

	page.OnClick[sel.Submit] = func(p *browsertest.Page) {
		if status == 0 {
			return
		}
		p.EmitResponse(browser.Response{URL: "https://example.test/case-status-search-by-case-number/", Status: status})
		if revealResults {
			p.SetDocument(resultsHTML)
			p.Add(sel.CaseTitle)
		}
	}
	return page
}

// scriptedOCR returns its answers in order, repeating the last one
type scriptedOCR struct {
	mu      sync.Mutex
	answers []string
	err     error
	calls   int
	images  [][]byte
}

func newScriptedOCR(answers ...string) *scriptedOCR {
	return &scriptedOCR{answers: answers}
}

func (o *scriptedOCR) Name() string { return "scripted" }

func (o *scriptedOCR) Recognize(ctx context.Context, image []byte) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	o.images = append(o.images, image)
	if o.err != nil {
		return "", o.err
	}
	if len(o.answers) == 0 {
		return "", nil
	}
	idx := o.calls - 1
	if idx >= len(o.answers) {
		idx = len(o.answers) - 1
	}
	return o.answers[idx], nil
}

func (o *scriptedOCR) Calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

// memoryLookupRepo is an in-memory LookupRepository
type memoryLookupRepo struct {
	mu        sync.Mutex
	lookups   map[uuid.UUID]*models.Lookup
	createErr error
}

func newMemoryLookupRepo() *memoryLookupRepo {
	return &memoryLookupRepo{lookups: make(map[uuid.UUID]*models.Lookup)}
}

func (r *memoryLookupRepo) Create(ctx context.Context, lookup *models.Lookup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	cp := *lookup
	cp.Steps = append(models.LookupSteps(nil), lookup.Steps...)
	cp.CreatedAt = time.Now()
	r.lookups[lookup.ID] = &cp
	return nil
}

func (r *memoryLookupRepo) get(id uuid.UUID) (*models.Lookup, error) {
	l, ok := r.lookups[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return l, nil
}

func (r *memoryLookupRepo) UpdateProgress(ctx context.Context, id uuid.UUID, currentStep string, steps models.LookupSteps) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, err := r.get(id)
	if err != nil {
		return err
	}
	l.Status = models.LookupStatusInProgress
	l.CurrentStep = &currentStep
	l.Steps = append(models.LookupSteps(nil), steps...)
	return nil
}

func (r *memoryLookupRepo) UpdateCaptchaAttempts(ctx context.Context, id uuid.UUID, attempts int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, err := r.get(id)
	if err != nil {
		return err
	}
	l.CaptchaAttempts = attempts
	return nil
}

func (r *memoryLookupRepo) Complete(ctx context.Context, id uuid.UUID, steps models.LookupSteps) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, err := r.get(id)
	if err != nil {
		return err
	}
	now := time.Now()
	l.Status = models.LookupStatusCompleted
	l.Steps = append(models.LookupSteps(nil), steps...)
	l.CompletedAt = &now
	return nil
}

func (r *memoryLookupRepo) Fail(ctx context.Context, id uuid.UUID, steps models.LookupSteps, errorKind, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, err := r.get(id)
	if err != nil {
		return err
	}
	l.Status = models.LookupStatusFailed
	l.Steps = append(models.LookupSteps(nil), steps...)
	l.ErrorKind = &errorKind
	l.ErrorMessage = &errorMessage
	return nil
}

func (r *memoryLookupRepo) only() *models.Lookup {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.lookups {
		return l
	}
	return nil
}

func countCalls(calls []string, call string) int {
	n := 0
	for _, c := range calls {
		if c == call {
			n++
		}
	}
	return n
}

func indexOf(calls []string, call string) int {
	for i, c := range calls {
		if c == call {
			return i
		}
	}
	return -1
}

// memoryStorage is an in-memory storage.Storage that counts reads
type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
	gets    int
	getErr  error
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: make(map[string][]byte)}
}

func (m *memoryStorage) Put(ctx context.Context, lookupID uuid.UUID, name string, data io.Reader) (string, error) {
	b, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	key := fmt.Sprintf("%s/%s", lookupID, name)
	m.objects[key] = b
	return key, nil
}

func (m *memoryStorage) Get(ctx context.Context, storagePath string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getErr != nil {
		return nil, m.getErr
	}
	b, ok := m.objects[storagePath]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memoryStorage) Delete(ctx context.Context, storagePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[storagePath]; !ok {
		return storage.ErrNotFound
	}
	delete(m.objects, storagePath)
	return nil
}

func (m *memoryStorage) counts() (puts, gets, stored int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts, m.gets, len(m.objects)
}

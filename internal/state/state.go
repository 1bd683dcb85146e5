// Package state holds the application state shared by CLI commands: the
// active dataset, selected documents, the chat transcript, the analysis log,
// and the retrieval index token.
package state

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"agentctl/internal/domain"
)

// Snapshot is the full state as loaded from a Journal.
type Snapshot struct {
	Dataset   *domain.TabularDataset
	Documents []domain.PdfDocument
	Messages  []domain.ChatMessage
	Results   []domain.AnalysisResult
	IndexDir  string
}

// Journal records every mutation so that state survives between invocations.
type Journal interface {
	SaveDataset(ctx context.Context, d *domain.TabularDataset) error
	SaveDocument(ctx context.Context, doc domain.PdfDocument) error
	DeleteDocument(ctx context.Context, id string) error
	ClearDocuments(ctx context.Context) error
	AppendMessage(ctx context.Context, msg domain.ChatMessage) error
	AppendResult(ctx context.Context, r domain.AnalysisResult) error
	SetIndexDir(ctx context.Context, dir string) error
	Reset(ctx context.Context) error
	Load(ctx context.Context) (*Snapshot, error)
}

// App is safe for concurrent use. Slices it returns are copies.
type App struct {
	mu       sync.RWMutex
	journal  Journal
	dataset  *domain.TabularDataset
	docs     []domain.PdfDocument
	messages []domain.ChatMessage
	results  []domain.AnalysisResult
	indexDir string
}

// New returns an empty App. journal may be nil.
func New(journal Journal) *App {
	return &App{journal: journal}
}

// Restore rebuilds an App from journal.
func Restore(ctx context.Context, journal Journal) (*App, error) {
	snap, err := journal.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore state: %w", err)
	}
	a := New(journal)
	if snap != nil {
		a.dataset = snap.Dataset
		a.docs = snap.Documents
		a.messages = snap.Messages
		a.results = snap.Results
		a.indexDir = snap.IndexDir
	}
	return a, nil
}

// SetDataset replaces the active dataset.
func (a *App) SetDataset(ctx context.Context, d *domain.TabularDataset) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.journal != nil {
		if err := a.journal.SaveDataset(ctx, d); err != nil {
			return fmt.Errorf("save dataset: %w", err)
		}
	}
	a.dataset = d
	return nil
}

// Dataset returns the active dataset or nil.
func (a *App) Dataset() *domain.TabularDataset {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.dataset
}

func (a *App) ClearDataset(ctx context.Context) error {
	return a.SetDataset(ctx, nil)
}

// AddDocuments appends docs. A document whose ID is already present replaces
// the existing entry in place.
func (a *App) AddDocuments(ctx context.Context, docs ...domain.PdfDocument) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, doc := range docs {
		if a.journal != nil {
			if err := a.journal.SaveDocument(ctx, doc); err != nil {
				return fmt.Errorf("save document %s: %w", doc.Name, err)
			}
		}
		if i := a.docIndex(doc.ID); i >= 0 {
			a.docs[i] = doc
			continue
		}
		a.docs = append(a.docs, doc)
	}
	return nil
}

// RemoveDocument drops the document with id. It reports whether one was found.
func (a *App) RemoveDocument(ctx context.Context, id string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	i := a.docIndex(id)
	if i < 0 {
		return false, nil
	}
	if a.journal != nil {
		if err := a.journal.DeleteDocument(ctx, id); err != nil {
			return false, fmt.Errorf("delete document: %w", err)
		}
	}
	a.docs = slices.Delete(a.docs, i, i+1)
	return true, nil
}

func (a *App) ClearDocuments(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.journal != nil {
		if err := a.journal.ClearDocuments(ctx); err != nil {
			return fmt.Errorf("clear documents: %w", err)
		}
	}
	a.docs = nil
	return nil
}

// MarkProcessed flags the documents with the given ids as indexed.
// Unknown ids are ignored.
func (a *App) MarkProcessed(ctx context.Context, ids ...string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, id := range ids {
		i := a.docIndex(id)
		if i < 0 || a.docs[i].Processed {
			continue
		}
		doc := a.docs[i]
		doc.Processed = true
		if a.journal != nil {
			if err := a.journal.SaveDocument(ctx, doc); err != nil {
				return fmt.Errorf("save document %s: %w", doc.Name, err)
			}
		}
		a.docs[i] = doc
	}
	return nil
}

func (a *App) Documents() []domain.PdfDocument {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.docs)
}

func (a *App) docIndex(id string) int {
	return slices.IndexFunc(a.docs, func(d domain.PdfDocument) bool { return d.ID == id })
}

func (a *App) AppendMessage(ctx context.Context, msg domain.ChatMessage) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.journal != nil {
		if err := a.journal.AppendMessage(ctx, msg); err != nil {
			return fmt.Errorf("append message: %w", err)
		}
	}
	a.messages = append(a.messages, msg)
	return nil
}

// Messages returns the transcript oldest first.
func (a *App) Messages() []domain.ChatMessage {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.messages)
}

func (a *App) AppendResult(ctx context.Context, r domain.AnalysisResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.journal != nil {
		if err := a.journal.AppendResult(ctx, r); err != nil {
			return fmt.Errorf("append result: %w", err)
		}
	}
	a.results = append(a.results, r)
	return nil
}

// Results returns the analysis log in chronological order.
func (a *App) Results() []domain.AnalysisResult {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.results)
}

// ResultsByType groups the log by category, each group in chronological order.
func (a *App) ResultsByType() map[string][]domain.AnalysisResult {
	a.mu.RLock()
	defer a.mu.RUnlock()
	groups := make(map[string][]domain.AnalysisResult)
	for _, r := range a.results {
		groups[r.Type] = append(groups[r.Type], r)
	}
	return groups
}

// SetIndexDir stores the token returned by the indexing endpoint.
func (a *App) SetIndexDir(ctx context.Context, dir string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.journal != nil {
		if err := a.journal.SetIndexDir(ctx, dir); err != nil {
			return fmt.Errorf("save index dir: %w", err)
		}
	}
	a.indexDir = dir
	return nil
}

func (a *App) IndexDir() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.indexDir
}

// Reset discards everything, including the journal's copy.
func (a *App) Reset(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.journal != nil {
		if err := a.journal.Reset(ctx); err != nil {
			return fmt.Errorf("reset state: %w", err)
		}
	}
	a.dataset = nil
	a.docs = nil
	a.messages = nil
	a.results = nil
	a.indexDir = ""
	return nil
}

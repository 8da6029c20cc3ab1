package search

import "github.com/transvec/transvec/core"

// RetrievalMonitor provides hooks to observe the retrieval process.
// Implement this interface to track intermediate steps and results during
// retrieval, for example to print a trace of a query.
type RetrievalMonitor interface {
	Start(query string)
	AfterQueryEmbedding(vector []float32)
	AfterSimilaritySearch(results []*core.RetrievalResult)
	VerbatimMatch(entry *core.IndexEntry)
	Finish(results []*core.RetrievalResult)
}

// noopMonitor is a no-op implementation of RetrievalMonitor
type noopMonitor struct{}

var _ RetrievalMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                                  {}
func (n *noopMonitor) AfterQueryEmbedding(_ []float32)                 {}
func (n *noopMonitor) AfterSimilaritySearch(_ []*core.RetrievalResult) {}
func (n *noopMonitor) VerbatimMatch(_ *core.IndexEntry)                {}
func (n *noopMonitor) Finish(_ []*core.RetrievalResult)                {}

package indexstore

const (
	megabyte = 1_000_000

	// MaxWriterBudget caps the writer buffer budget.
	MaxWriterBudget = 100 * megabyte

	// MinWriterBudget keeps small or unknown hosts usable.
	MinWriterBudget = 16 * megabyte
)

// WriterBudget derives the writer buffer budget from total system memory in
// bytes: one sixty-fourth of memory, clamped to [MinWriterBudget,
// MaxWriterBudget]. A zero total (unknown) yields the minimum.
func WriterBudget(totalMemBytes uint64) uint64 {
	budget := totalMemBytes / 64
	return max(MinWriterBudget, min(budget, MaxWriterBudget))
}

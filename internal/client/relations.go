package client

import (
	"errors"
	"sort"

	"github.com/cuongbtq/promptcraft/internal/domain"
)

// Parent returns the record current is a variation of. A dangling or empty
// variationOf yields false.
func Parent[T domain.Record](records []T, current T) (T, bool) {
	var zero T
	parentID := current.Meta().VariationOf
	if parentID == "" {
		return zero, false
	}
	for _, r := range records {
		if r.RecordID() == parentID {
			return r, true
		}
	}
	return zero, false
}

// Variations returns the records that are variations of current
func Variations[T domain.Record](records []T, current T) []T {
	if current.RecordID() == "" {
		return nil
	}
	var out []T
	for _, r := range records {
		if r.Meta().VariationOf == current.RecordID() {
			out = append(out, r)
		}
	}
	return out
}

// Siblings returns the other variations of current's parent. The parent
// itself need not be present.
func Siblings[T domain.Record](records []T, current T) []T {
	parentID := current.Meta().VariationOf
	if parentID == "" {
		return nil
	}
	var out []T
	for _, r := range records {
		if r.RecordID() != current.RecordID() && r.Meta().VariationOf == parentID {
			out = append(out, r)
		}
	}
	return out
}

// Timeline returns current's sequence ordered by sequenceOrder, current included.
// Members sharing an order keep their list order; current goes before the
// first member whose order is strictly greater.
func Timeline[T domain.Record](records []T, current T) []T {
	seqID := current.Meta().SequenceID
	if seqID == "" {
		return nil
	}
	var members []T
	for _, r := range records {
		if r.RecordID() != current.RecordID() && r.Meta().SequenceID == seqID {
			members = append(members, r)
		}
	}
	return splice(members, current)
}

func splice[T domain.Record](members []T, current T) []T {
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].Meta().SequenceOrder < members[j].Meta().SequenceOrder
	})

	order := current.Meta().SequenceOrder
	at := len(members)
	for i, m := range members {
		if m.Meta().SequenceOrder > order {
			at = i
			break
		}
	}

	out := make([]T, 0, len(members)+1)
	out = append(out, members[:at]...)
	out = append(out, current)
	return append(out, members[at:]...)
}

// Index answers the same questions as the linear scans from maps built once
// per snapshot.
type Index[T domain.Record] struct {
	byID      map[string]T
	children  map[string][]T
	sequences map[string][]T
}

// NewIndex builds an index over records. Rebuild it whenever the list changes.
func NewIndex[T domain.Record](records []T) *Index[T] {
	ix := &Index[T]{
		byID:      make(map[string]T, len(records)),
		children:  map[string][]T{},
		sequences: map[string][]T{},
	}
	for _, r := range records {
		meta := r.Meta()
		// the first record wins, like the scan
		if _, ok := ix.byID[r.RecordID()]; !ok {
			ix.byID[r.RecordID()] = r
		}
		if meta.VariationOf != "" {
			ix.children[meta.VariationOf] = append(ix.children[meta.VariationOf], r)
		}
		if meta.SequenceID != "" {
			ix.sequences[meta.SequenceID] = append(ix.sequences[meta.SequenceID], r)
		}
	}
	return ix
}

func (ix *Index[T]) Parent(current T) (T, bool) {
	parentID := current.Meta().VariationOf
	if parentID == "" {
		var zero T
		return zero, false
	}
	r, ok := ix.byID[parentID]
	return r, ok
}

func (ix *Index[T]) Variations(current T) []T {
	children := ix.children[current.RecordID()]
	if len(children) == 0 {
		return nil
	}
	return append([]T(nil), children...)
}

func (ix *Index[T]) Siblings(current T) []T {
	parentID := current.Meta().VariationOf
	if parentID == "" {
		return nil
	}
	return without(ix.children[parentID], current)
}

func (ix *Index[T]) Timeline(current T) []T {
	seqID := current.Meta().SequenceID
	if seqID == "" {
		return nil
	}
	return splice(without(ix.sequences[seqID], current), current)
}

func without[T domain.Record](records []T, current T) []T {
	var out []T
	for _, r := range records {
		if r.RecordID() != current.RecordID() {
			out = append(out, r)
		}
	}
	return out
}

// JobCategory is the job's category, inferred from its model when unset
func JobCategory(job domain.Job) string {
	if job.Data.Category != "" {
		return job.Data.Category
	}
	return CategoryForModel(job.Data.Model)
}

// BuildMultiOutputScene combines completed jobs of one category into an
// unsaved scene with one output per job, in the order given. The error text
// is meant for the user.
func BuildMultiOutputScene(name string, jobs []domain.Job) (*domain.Scene, error) {
	if len(jobs) < 2 {
		return nil, errors.New("select at least two jobs to create a multi-output scene")
	}

	category := JobCategory(jobs[0])
	for _, job := range jobs {
		if job.Status != domain.JobStatusCompleted {
			return nil, errors.New("all selected jobs must be completed")
		}
		if JobCategory(job) != category {
			return nil, errors.New("all selected jobs must be the same type (image or video)")
		}
	}

	first := jobs[0]
	if name == "" {
		name = "Multi-output scene"
	}

	scene := &domain.Scene{
		WorkflowID: first.WorkflowID,
		Name:       name,
		Data: domain.SceneData{
			Category: category,
			Provider: first.Data.Provider,
			Model:    first.Data.Model,
			Prompt: domain.PromptSnapshot{
				Main:     first.Data.Prompt,
				Negative: first.Data.NegativePrompt,
				Params:   first.Data.Parameters,
			},
			Metadata: domain.RecordMetadata{Tags: []string{"multi-output"}},
		},
	}

	for _, job := range jobs {
		scene.Data.JobIDs = append(scene.Data.JobIDs, job.ID)
		output := domain.SceneOutput{
			JobID:  job.ID,
			Model:  job.Data.Model,
			Prompt: job.Data.Prompt,
		}
		if job.Result != nil {
			output.URL = job.Result.OutputURL
			output.Data = job.Result.OutputData
		}
		scene.Data.Outputs = append(scene.Data.Outputs, output)
	}
	if first.Result != nil {
		scene.Thumbnail = first.Result.Output()
	}

	return scene, nil
}

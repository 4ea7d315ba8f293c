package depgraph

import (
	"sort"

	"github.com/taihochan/superclaude-code-pm-sub001/internal/task"
)

// inferDependencies matches each task's declared inputs against other tasks'
// outputs and adds the producing task as a dependency of the consumer.
//
// Inference is additive only: edges already present in deps are left alone,
// and an explicit declaration is never overridden. The returned map records
// only the edges inference added, keyed by consumer task ID.
func inferDependencies(tasks []task.Task, deps map[string]map[string]bool) map[string][]string {
	producers := make(map[string][]string) // artifact key -> producing task IDs
	for i := range tasks {
		t := &tasks[i]
		for _, out := range t.Outputs {
			producers[out] = append(producers[out], t.ID)
		}
	}

	added := make(map[string][]string)
	for i := range tasks {
		t := &tasks[i]
		set := deps[t.ID]
		for _, in := range t.Inputs {
			for _, producerID := range producers[in] {
				if producerID == t.ID || set[producerID] {
					continue
				}
				set[producerID] = true
				added[t.ID] = append(added[t.ID], producerID)
			}
		}
		sort.Strings(added[t.ID])
	}

	if len(added) == 0 {
		return nil
	}
	return added
}

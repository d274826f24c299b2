package queue

import (
	"context"
	"fmt"

	"github.com/WMahoney09/klauss/internal/taskstore"
)

// AddTaskDependency records that task must wait for dependsOn to reach a
// terminal status before it can be claimed, per spec.md §4.2
// "add_task_dependency". The edge is rejected with a *CycleError if it would
// close a cycle in the dependency graph.
func (q *Queue) AddTaskDependency(ctx context.Context, task, dependsOn int64) error {
	if task == dependsOn {
		return &CycleError{Task: task, DependsOn: dependsOn}
	}

	return q.store.WithTx(ctx, taskstore.TxExclusive, func(tx taskstore.Tx) error {
		edges, err := loadDependencyEdges(ctx, tx)
		if err != nil {
			return err
		}
		// Adding task -> dependsOn closes a cycle iff dependsOn can already
		// reach task through existing edges (dependsOn depends, transitively,
		// on task), grounded on the teacher's DependencyGraph.DetectCycles
		// DFS-from-each-node approach.
		if reaches(edges, dependsOn, task) {
			return &CycleError{Task: task, DependsOn: dependsOn}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO task_dependencies (task_id, depends_on_task_id) VALUES (?, ?)
		`, task, dependsOn); err != nil {
			return fmt.Errorf("insert task dependency: %w", err)
		}
		return nil
	})
}

// loadDependencyEdges reads the full task_id -> []depends_on_task_id graph.
func loadDependencyEdges(ctx context.Context, tx taskstore.Tx) (map[int64][]int64, error) {
	rows, err := tx.QueryContext(ctx, `SELECT task_id, depends_on_task_id FROM task_dependencies`)
	if err != nil {
		return nil, fmt.Errorf("load dependency edges: %w", err)
	}
	defer rows.Close()

	edges := make(map[int64][]int64)
	for rows.Next() {
		var from, to int64
		if err := rows.Scan(&from, &to); err != nil {
			return nil, fmt.Errorf("scan dependency edge: %w", err)
		}
		edges[from] = append(edges[from], to)
	}
	return edges, rows.Err()
}

// reaches reports whether, starting from start and following edges, target
// is reachable. Depth-first with a visited set to guard against the
// pre-existing graph itself containing a (shouldn't-happen) cycle.
func reaches(edges map[int64][]int64, start, target int64) bool {
	visited := make(map[int64]bool)
	var dfs func(n int64) bool
	dfs = func(n int64) bool {
		if n == target {
			return true
		}
		if visited[n] {
			return false
		}
		visited[n] = true
		for _, next := range edges[n] {
			if dfs(next) {
				return true
			}
		}
		return false
	}
	return dfs(start)
}

// unmetDependencies returns the IDs of dependsOn tasks that have not yet
// reached a terminal state, for a given task. Used by ClaimTask's candidate
// filter.
func unmetDependencies(ctx context.Context, tx taskstore.Tx, taskID int64) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT d.depends_on_task_id
		FROM task_dependencies d
		JOIN tasks t ON t.id = d.depends_on_task_id
		WHERE d.task_id = ? AND t.status NOT IN (?, ?)
	`, taskID, string(StatusCompleted), string(StatusCancelled))
	if err != nil {
		return nil, fmt.Errorf("unmet dependencies: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan unmet dependency: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

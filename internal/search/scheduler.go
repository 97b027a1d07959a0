package search

// #region imports
import (
	"container/heap"
	"context"
	"log"
	"time"
)

// #endregion

// #region scheduler

// DefaultMaxNodes bounds the number of expanded search nodes.
const DefaultMaxNodes = 10000

// Scheduler runs A* branch-and-bound over the candidate × timing matrix to
// pick one option (or skip) per candidate maximizing total expected reward.
type Scheduler struct {
	maxNodes      int
	enablePruning bool
}

// NewScheduler creates a scheduler. maxNodes <= 0 means DefaultMaxNodes.
func NewScheduler(maxNodes int) *Scheduler {
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}
	return &Scheduler{maxNodes: maxNodes, enablePruning: true}
}

// #endregion

// #region node

// node is a partial schedule covering candidates [0, depth).
type node struct {
	depth    int
	reward   float64
	priority float64 // reward + optimistic remainder
	seq      int     // insertion order, for deterministic ties
	schedule []Assignment
}

type nodeQueue []*node

func (q nodeQueue) Len() int { return len(q) }

// Less orders by descending priority; ties prefer smaller depth (more
// exploration), then insertion order (smaller candidate/option index first).
func (q nodeQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority > q[j].priority
	}
	if q[i].depth != q[j].depth {
		return q[i].depth < q[j].depth
	}
	return q[i].seq < q[j].seq
}

func (q nodeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *nodeQueue) Push(x interface{}) { *q = append(*q, x.(*node)) }

func (q *nodeQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

// #endregion

// #region optimize

// Optimize searches for the schedule maximizing total expected reward.
// Cancellation is checked at every pop. If the node budget runs out the
// greedy per-candidate argmax is returned, flagged as a fallback.
func (s *Scheduler) Optimize(ctx context.Context, candidates []Candidate) (Result, error) {
	start := time.Now()

	if len(candidates) == 0 {
		return Result{SearchCompleted: true, Quality: QualityOptimal, Schedule: []Assignment{}}, nil
	}

	n := len(candidates)

	// Admissible heuristic: best possible reward from candidate i onward.
	maxRemaining := make([]float64, n+1)
	for i := n - 1; i >= 0; i-- {
		best := 0.0
		for _, o := range candidates[i].Options {
			if o.ExpectedReward > best {
				best = o.ExpectedReward
			}
		}
		maxRemaining[i] = maxRemaining[i+1] + best
	}

	pq := &nodeQueue{}
	heap.Init(pq)
	seq := 0
	heap.Push(pq, &node{priority: maxRemaining[0]})

	var best *node
	nodesExplored := 0
	budgetExhausted := false

	for pq.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if nodesExplored >= s.maxNodes {
			budgetExhausted = true
			break
		}

		current := heap.Pop(pq).(*node)
		nodesExplored++

		if current.depth == n {
			if best == nil || current.reward > best.reward {
				best = current
			}
			continue
		}

		if s.enablePruning && best != nil && current.priority <= best.reward {
			continue
		}

		cand := candidates[current.depth]
		remainder := maxRemaining[current.depth+1]

		for _, o := range cand.Options {
			seq++
			heap.Push(pq, &node{
				depth:    current.depth + 1,
				reward:   current.reward + o.ExpectedReward,
				priority: current.reward + o.ExpectedReward + remainder,
				seq:      seq,
				schedule: appendAssignment(current.schedule, Assignment{
					RuleID:          cand.RuleID,
					LeadTimeMinutes: o.LeadTimeMinutes,
				}),
			})
		}

		// Skip branch: notification budgeting may leave a task unscheduled.
		seq++
		heap.Push(pq, &node{
			depth:    current.depth + 1,
			reward:   current.reward,
			priority: current.reward + remainder,
			seq:      seq,
			schedule: appendAssignment(current.schedule, Assignment{
				RuleID:  cand.RuleID,
				Skipped: true,
			}),
		})
	}

	elapsed := float64(time.Since(start).Microseconds()) / 1000.0

	if budgetExhausted || best == nil {
		reward, schedule := greedySchedule(candidates)
		log.Printf("[SEARCH] node budget exhausted after %d nodes, greedy fallback (reward %.3f)",
			nodesExplored, reward)
		return Result{
			TotalExpectedReward: reward,
			Schedule:            schedule,
			NodesExplored:       nodesExplored,
			SearchCompleted:     false,
			SearchTimeMs:        elapsed,
			Quality:             QualityGreedyFallback,
		}, nil
	}

	return Result{
		TotalExpectedReward: best.reward,
		Schedule:            best.schedule,
		NodesExplored:       nodesExplored,
		SearchCompleted:     true,
		SearchTimeMs:        elapsed,
		Quality:             QualityOptimal,
	}, nil
}

func appendAssignment(prev []Assignment, a Assignment) []Assignment {
	out := make([]Assignment, len(prev), len(prev)+1)
	copy(out, prev)
	return append(out, a)
}

// #endregion

// #region greedy

// Greedy picks each candidate's best option independently.
func Greedy(candidates []Candidate) Result {
	reward, schedule := greedySchedule(candidates)
	return Result{
		TotalExpectedReward: reward,
		Schedule:            schedule,
		SearchCompleted:     false,
		Quality:             QualityGreedyFallback,
	}
}

func greedySchedule(candidates []Candidate) (float64, []Assignment) {
	total := 0.0
	schedule := make([]Assignment, 0, len(candidates))

	for _, c := range candidates {
		bestIdx := -1
		bestReward := 0.0
		for i, o := range c.Options {
			if o.ExpectedReward > bestReward {
				bestReward = o.ExpectedReward
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			// Every option is no better than skipping.
			schedule = append(schedule, Assignment{RuleID: c.RuleID, Skipped: true})
			continue
		}
		total += bestReward
		schedule = append(schedule, Assignment{
			RuleID:          c.RuleID,
			LeadTimeMinutes: c.Options[bestIdx].LeadTimeMinutes,
		})
	}
	return total, schedule
}

// #endregion

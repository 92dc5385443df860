package backlog

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"go.uber.org/zap"
)

// SeedHeading introduces a generated section.
const SeedHeading = "## Future Roadmap (Generated)"

// Catalogue is the built-in pool of task bases, keyed by category.
var Catalogue = map[string][]string{
	"Cognition": {
		"Implement short-term memory buffer cleanup",
		"Optimize decision tree traversal in PlanningUnit",
		"Add decay factor to emotional states",
		"Refactor memory retrieval for O(1) access",
		"Implement reinforcement learning for reflex module",
		"Add unit tests for EmotionUnit edge cases",
		"Create associative memory graph visualization data",
		"Tune hyperparameters for curiosity drive",
		"Implement 'Sleep' state memory consolidation",
		"Add 'Focus' mechanism to filter sensory input",
	},
	"Infrastructure": {
		"Dockerize build environment for consistent CI",
		"Set up GitHub Actions for automated testing",
		"Optimize C++ compile times with precompiled headers",
		"Add log rotation for server logs",
		"Implement crash reporting service",
		"Secure API endpoints with rate limiting",
		"Add health check endpoint for monitoring",
		"Migrate database to PostgreSQL for scalability",
		"Implement redis caching for frequent queries",
	},
	"Frontend": {
		"Refactor dashboard to use React components",
		"Add dark mode toggle to UI",
		"Visualize real-time neuron activity with WebGL",
		"Improve mobile responsiveness of the dashboard",
		"Add robust error handling for websocket disconnections",
		"Implement user authentication flow",
		"Create settings page for brain configuration",
		"Add tooltips to cognitive state visualization",
	},
	"NLU": {
		"Integrate word2vec for better semantic understanding",
		"Implement context-aware intent classification",
		"Add support for multi-turn conversation context",
		"Improve entity extraction accuracy",
		"Add sentiment analysis to input processing",
		"Implement fallback responses for unknown inputs",
	},
}

// categoryOrder fixes iteration order so a seeded rng is reproducible.
var categoryOrder = []string{"Cognition", "Infrastructure", "Frontend", "NLU"}

var variations = []string{
	"(Phase 1)", "(Phase 2)",
	"- Investigation", "- Implementation", "- Optimization", "- Refactor", "- Testing",
}

// Generate returns n pending task lines numbered from start.
func Generate(rng *rand.Rand, start, n int) []string {
	lines := make([]string, 0, n)
	for i := start; i < start+n; i++ {
		category := categoryOrder[rng.IntN(len(categoryOrder))]
		bases := Catalogue[category]
		base := bases[rng.IntN(len(bases))]
		variation := variations[rng.IntN(len(variations))]
		lines = append(lines, fmt.Sprintf("- %s [%s] %s %s #%d", MarkerPending, category, base, variation, i))
	}
	return lines
}

// AppendGenerated appends a generated section of n tasks to the ledger and
// returns the lines written. Numbering continues after the existing tasks so
// task texts stay unique.
func (l *FileLedger) AppendGenerated(rng *rand.Rand, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	var lines []string
	err := l.Update(func(data []byte) ([]byte, error) {
		start := len(Parse(data).Tasks()) + 1
		lines = Generate(rng, start, n)

		var b strings.Builder
		b.Write(data)
		if len(data) > 0 && !strings.HasSuffix(string(data), "\n") {
			b.WriteString("\n")
		}
		b.WriteString("\n" + SeedHeading + "\n")
		for _, line := range lines {
			b.WriteString(line + "\n")
		}
		return []byte(b.String()), nil
	})
	if err != nil {
		return nil, err
	}
	l.log.Info("backlog seeded", zap.Int("count", n))
	return lines, nil
}

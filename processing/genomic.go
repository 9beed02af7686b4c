package processing

import (
	"context"
	"strings"

	"github.com/genetrust/genetrust-gateway/types"
)

type chunkStats struct {
	variants int
	genes    map[string]struct{}
}

// ComputeGenomicStats counts the variant records of VCF-like lines and the distinct genes they
// annotate. Header lines (#) and blank lines are skipped. The gene comes from the GENE= or
// GENEINFO= key of the INFO column.
func ComputeGenomicStats(ctx context.Context, o *Optimizer, records []string) (types.DatasetStats, error) {
	if o == nil {
		o = NewOptimizer(0, 0)
	}

	var parts []chunkStats
	if o.IsLarge(len(records)) {
		var err error
		parts, err = ProcessInChunks(ctx, o, records, func(ctx context.Context, chunk []string) ([]chunkStats, error) {
			return []chunkStats{scanRecords(chunk)}, nil
		})
		if err != nil {
			return types.DatasetStats{}, err
		}
	} else {
		parts = []chunkStats{scanRecords(records)}
	}

	genes := make(map[string]struct{})
	stats := types.DatasetStats{}
	for _, p := range parts {
		stats.Variants += p.variants
		for g := range p.genes {
			genes[g] = struct{}{}
		}
	}
	stats.Genes = len(genes)
	return stats, nil
}

func scanRecords(lines []string) chunkStats {
	cs := chunkStats{genes: make(map[string]struct{})}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cs.variants++
		if gene := geneOf(line); gene != "" {
			cs.genes[gene] = struct{}{}
		}
	}
	return cs
}

func geneOf(line string) string {
	fields := strings.Split(line, "\t")
	if len(fields) < 8 {
		return ""
	}
	for _, kv := range strings.Split(fields[7], ";") {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		switch key {
		case "GENE":
			return value
		case "GENEINFO":
			// symbol:id[|symbol:id]
			first, _, _ := strings.Cut(value, "|")
			symbol, _, _ := strings.Cut(first, ":")
			return symbol
		}
	}
	return ""
}

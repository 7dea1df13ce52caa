// Package assemble turns connected components of verified clone pairs
// into reportable CloneGroup values (C8): it fingerprints each group,
// attaches source snippets, computes a group similarity score, and ranks
// files by duplication hotspot severity.
package assemble

import (
	"encoding/hex"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/blake3"

	"github.com/panbanda/omen/pkg/analyzer/clones/shingle"
	"github.com/panbanda/omen/pkg/models"
	"github.com/panbanda/omen/pkg/source"
	"github.com/panbanda/omen/pkg/stats"
)

// fingerprintSize truncates the blake3 digest to spec.md's 128-bit
// identifier.
const fingerprintSize = 16

// PairSimilarity looks up the estimated (or, for exact clones, exact)
// similarity between two document indices within a group. A nil
// PairSimilarity, or a models.CloneType1 group, yields a group similarity of
// 1.0; exact-clone assembly passes nil.
type PairSimilarity func(a, b int32) float64

// Assemble converts each connected component of document indices into a
// CloneGroup: fingerprint, snippets, member instances, and a group-level
// similarity score. files is memoized internally per call so repeated
// snippets from the same file read it from disk only once.
func Assemble(groups [][]int32, docs []shingle.Document, sim PairSimilarity, files source.ContentSource, cloneType models.CloneType) []models.CloneGroup {
	cached := source.NewCached(files)

	out := make([]models.CloneGroup, 0, len(groups))
	for _, members := range groups {
		if len(members) < 2 {
			continue
		}
		out = append(out, buildGroup(members, docs, sim, cached, cloneType))
	}

	sortGroups(out)
	return out
}

func buildGroup(members []int32, docs []shingle.Document, sim PairSimilarity, files source.ContentSource, cloneType models.CloneType) models.CloneGroup {
	instances := make([]models.CloneInstance, 0, len(members))
	totalTokens := 0
	totalLines := 0

	for _, id := range members {
		doc := docs[id]
		instances = append(instances, models.CloneInstance{
			File:           doc.File,
			StartLine:      uint32(doc.StartLine),
			EndLine:        uint32(doc.EndLine),
			Lines:          doc.EndLine - doc.StartLine + 1,
			NormalizedHash: normalizedHash(&doc),
			Snippet:        readSnippet(files, doc.File, doc.StartLine, doc.EndLine),
		})
		totalTokens += doc.TokenCount()
		totalLines += doc.EndLine - doc.StartLine + 1
	}

	sort.Slice(instances, func(i, j int) bool {
		if instances[i].File != instances[j].File {
			return instances[i].File < instances[j].File
		}
		return instances[i].StartLine < instances[j].StartLine
	})

	avgSim := groupSimilarity(members, sim, cloneType)
	for i := range instances {
		instances[i].Similarity = avgSim
	}

	fp := fingerprint(instances)
	return models.CloneGroup{
		ID:                xxhash.Sum64String(fp),
		Fingerprint:       fp,
		Type:              cloneType,
		Instances:         instances,
		TotalLines:        totalLines,
		TotalTokens:       totalTokens,
		AverageSimilarity: avgSim,
	}
}

// groupSimilarity returns 1.0 for exact clones (no estimation involved)
// and the mean pairwise similarity across every member pair otherwise.
func groupSimilarity(members []int32, sim PairSimilarity, cloneType models.CloneType) float64 {
	if cloneType == models.CloneType1 || sim == nil {
		return 1.0
	}
	var sum float64
	count := 0
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			sum += sim(members[i], members[j])
			count++
		}
	}
	if count == 0 {
		return 1.0
	}
	return sum / float64(count)
}

func normalizedHash(doc *shingle.Document) uint64 {
	vals := make([]uint64, 0, len(doc.NormShingles))
	for v := range doc.NormShingles {
		vals = append(vals, v)
	}
	sort.Slice(vals, func(i, j int) bool { return vals[i] < vals[j] })

	h := xxhash.New()
	buf := make([]byte, 8)
	for _, v := range vals {
		for i := 0; i < 8; i++ {
			buf[i] = byte(v >> (i * 8))
		}
		_, _ = h.Write(buf)
	}
	return h.Sum64()
}

func readSnippet(files source.ContentSource, file string, startLine, endLine int) string {
	content, err := files.Read(file)
	if err != nil {
		return ""
	}
	lines := strings.Split(string(content), "\n")
	if startLine < 1 || startLine > len(lines) {
		return ""
	}
	if endLine > len(lines) {
		endLine = len(lines)
	}
	return strings.Join(lines[startLine-1:endLine], "\n")
}

// fingerprint hashes the sorted (file,startLine,endLine) tuples of a
// group's instances into a 128-bit, hex-encoded digest — stable across
// runs regardless of member discovery order.
func fingerprint(instances []models.CloneInstance) string {
	tuples := make([]string, len(instances))
	for i, inst := range instances {
		tuples[i] = inst.File + "\x00" + strconv.FormatUint(uint64(inst.StartLine), 10) + "\x00" + strconv.FormatUint(uint64(inst.EndLine), 10)
	}
	sort.Strings(tuples)

	h := blake3.New()
	for _, t := range tuples {
		h.Write([]byte(t))
		h.Write([]byte{0})
	}
	digest := h.Sum(nil)[:fingerprintSize]
	return hex.EncodeToString(digest)
}

// sortGroups orders groups by (type, -occurrences, fingerprint) so output
// is deterministic and the biggest clone families surface first.
func sortGroups(groups []models.CloneGroup) {
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Type != groups[j].Type {
			return groups[i].Type < groups[j].Type
		}
		if len(groups[i].Instances) != len(groups[j].Instances) {
			return len(groups[i].Instances) > len(groups[j].Instances)
		}
		return groups[i].Fingerprint < groups[j].Fingerprint
	})
}

// Hotspots ranks files by duplication severity: Severity =
// log(duplicateLines+1) * sqrt(cloneGroupCount), rewarding files that
// appear in many distinct clone families over ones with a single large
// repeated block.
func Hotspots(groups []models.CloneGroup) []models.DuplicationHotspot {
	lines := make(map[string]int)
	groupCounts := make(map[string]int)
	seenInGroup := make(map[string]map[string]bool)

	for _, g := range groups {
		for _, inst := range g.Instances {
			lines[inst.File] += inst.Lines
			if seenInGroup[inst.File] == nil {
				seenInGroup[inst.File] = make(map[string]bool)
			}
			if !seenInGroup[inst.File][g.Fingerprint] {
				seenInGroup[inst.File][g.Fingerprint] = true
				groupCounts[inst.File]++
			}
		}
	}

	out := make([]models.DuplicationHotspot, 0, len(lines))
	for file, dl := range lines {
		out = append(out, models.DuplicationHotspot{
			File:            file,
			DuplicateLines:  dl,
			CloneGroupCount: groupCounts[file],
			Severity:        math.Log(float64(dl)+1) * math.Sqrt(float64(groupCounts[file])),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity > out[j].Severity
		}
		return out[i].File < out[j].File
	})
	return out
}

// Summary computes CloneSummary aggregate statistics across every
// assembled group, including similarity percentiles via stats.Percentile.
func Summary(groups []models.CloneGroup, totalFilesScanned, totalLines int) models.CloneSummary {
	s := models.NewCloneSummary()
	s.TotalGroups = len(groups)
	s.TotalLines = totalLines

	var similarities []float64
	for _, g := range groups {
		for i, inst := range g.Instances {
			if i == 0 {
				continue // first instance is the group's reference copy, not a duplicate
			}
			s.AddClone(models.CodeClone{
				Type:       g.Type,
				Similarity: inst.Similarity,
				FileA:      g.Instances[0].File,
				FileB:      inst.File,
				StartLineA: g.Instances[0].StartLine,
				EndLineA:   g.Instances[0].EndLine,
				StartLineB: inst.StartLine,
				EndLineB:   inst.EndLine,
				LinesA:     g.Instances[0].Lines,
				LinesB:     inst.Lines,
				GroupID:    g.ID,
			})
		}
		similarities = append(similarities, g.AverageSimilarity)
	}

	sort.Float64s(similarities)
	if len(similarities) > 0 {
		sum := 0.0
		for _, v := range similarities {
			sum += v
		}
		s.AvgSimilarity = sum / float64(len(similarities))
		s.P50Similarity = stats.Percentile(similarities, 50)
		s.P95Similarity = stats.Percentile(similarities, 95)
	}

	if totalLines > 0 {
		s.DuplicationRatio = float64(s.DuplicatedLines) / float64(totalLines)
	}
	s.Hotspots = Hotspots(groups)
	return s
}

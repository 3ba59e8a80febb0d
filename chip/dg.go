package chip

import (
	"fmt"

	"github.com/gmrtd/gmrtd/tlv"
)

// DG1 TLV tags.
const (
	dg1OuterTag = 0x61
	dg1MRZTag   = 0x5F1F
)

// ExtractMRZText pulls the raw MRZ text out of a DG1 read. The two 44-byte
// TD3 lines come back concatenated; splitting and parsing them is the MRZ
// parser's job.
func ExtractMRZText(dg1 []byte) (string, error) {
	if len(dg1) == 0 {
		return "", fmt.Errorf("chip: DG1 is empty")
	}

	nodes, err := tlv.Decode(dg1)
	if err != nil {
		return "", fmt.Errorf("chip: failed to decode DG1 TLV: %w", err)
	}

	rootNode := nodes.NodeByTag(dg1OuterTag)
	if !rootNode.IsValidNode() {
		return "", fmt.Errorf("chip: DG1 outer tag (0x61) not found")
	}

	mrzNode := rootNode.NodeByTag(dg1MRZTag)
	if !mrzNode.IsValidNode() {
		return "", fmt.Errorf("chip: MRZ tag (0x5F1F) not found in DG1")
	}

	return string(mrzNode.Value()), nil
}

// SplitMRZLines cuts concatenated TD3 MRZ text into its two 44-character
// lines. Text already containing newlines is split on those instead.
func SplitMRZLines(text string) ([]string, error) {
	if len(text) == 88 {
		return []string{text[:44], text[44:]}, nil
	}
	var lines []string
	start := 0
	for i := 0; i <= len(text); i++ {
		if i == len(text) || text[i] == '\n' {
			if i > start {
				lines = append(lines, text[start:i])
			}
			start = i + 1
		}
	}
	if len(lines) < 2 {
		return nil, fmt.Errorf("chip: MRZ text has %d lines, want 2", len(lines))
	}
	return lines, nil
}

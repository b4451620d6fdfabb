package usecase

import (
	"fmt"
	"strings"

	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/core/domain"
)

// assembleContext packs ranked results into a single labeled context string,
// stopping before a block would push the total past maxLength. Blocks are
// never truncated: the budget is a soft stopping point, and the first block
// is always included whole even when it alone exceeds the budget.
func assembleContext(results []domain.FusedResult, maxLength int) string {
	var b strings.Builder
	for i, result := range results {
		block := fmt.Sprintf("[%d] file=%s\n%s\n\n", i+1, result.Filename, result.Text)
		if i > 0 && b.Len()+len(block) > maxLength {
			break
		}
		b.WriteString(block)
	}
	return strings.TrimSpace(b.String())
}

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/avenqor/avenqor-backend/internal/generation"
)

// templateGenerator is the stand-in content backend: it produces
// deterministic content references and synthetic usage so the whole
// pipeline (reserve, publish, consume, finalize, notify) runs end to end
// without a model integration.
type templateGenerator struct {
	modelID string
}

func newTemplateGenerator() *templateGenerator {
	return &templateGenerator{modelID: "avenqor-draft-1"}
}

func (g *templateGenerator) Generate(ctx context.Context, req generation.Request) (*generation.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ref := fmt.Sprintf("content/%s/%s", req.Kind, req.RecordID)
	result := &generation.Result{
		ContentRef:    ref,
		DocumentPaths: []string{ref + "/main.pdf"},
		Usage: generation.Usage{
			ModelID:          g.modelID,
			PromptTokens:     promptSize(req),
			CompletionTokens: 2048,
		},
	}
	result.Usage.TotalTokens = result.Usage.PromptTokens + result.Usage.CompletionTokens

	if req.SecondaryLanguage != "" {
		result.SecondaryContentRef = ref + "/" + req.SecondaryLanguage
		result.DocumentPaths = append(result.DocumentPaths, ref+"/"+req.SecondaryLanguage+"/main.pdf")
	}
	return result, nil
}

// promptSize approximates the prompt footprint from the structured request.
func promptSize(req generation.Request) int {
	size := 256
	size += len(req.Goals) / 4
	size += 32 * (len(req.Markets) + len(req.Instruments))
	for _, field := range []string{req.Experience, req.RiskTolerance, req.TradingStyle, req.DepositBracket} {
		if strings.TrimSpace(field) != "" {
			size += 16
		}
	}
	return size
}

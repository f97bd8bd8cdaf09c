package commands

import (
	"context"
	"fmt"

	"github.com/opsdeck/opsdeck/internal/adapter/ai"
	"github.com/opsdeck/opsdeck/internal/config"
	"github.com/opsdeck/opsdeck/internal/usecase"
)

type QuoteCmd struct {
	Client   string  `help:"Client name" required:""`
	MRR      float64 `name:"mrr" help:"Monthly recurring revenue" required:""`
	Industry string  `help:"Client industry" required:""`
}

func (q *QuoteCmd) Run(ctx context.Context, globals *Globals) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	factory := ai.NewProviderFactory(cfg.ToAIConfig())
	quotes := usecase.NewQuoteUseCase(factory, globals.logger(cfg))

	result, err := quotes.Generate(ctx, usecase.QuoteForm{ClientName: q.Client, MRR: q.MRR, Industry: q.Industry})
	if err != nil {
		return err
	}

	fmt.Fprintf(globals.Out, "# %s (%s)\n\n%s\n", q.Client, result.Provider, result.Quote)
	return nil
}

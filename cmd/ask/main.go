// Package main provides a one-shot CLI for the query gateway.
// Usage: lexgate-ask "question" [--stream] [--output json]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"lexgate/internal/config"
	"lexgate/internal/infra/cache"
	"lexgate/internal/infra/caselaw"
	"lexgate/internal/infra/generation"
	"lexgate/internal/infra/retrieval"
	"lexgate/internal/observability/logging"
	"lexgate/internal/resilience"
	"lexgate/internal/resilience/circuitbreaker"
	"lexgate/internal/usecase/query"
)

func main() {
	var (
		outputFormat string
		stream       bool
		noRetrieval  bool
		noCaseLaw    bool
		model        string
		topK         int
		caseLimit    int
	)

	flag.StringVar(&outputFormat, "output", "text", "Output format: text or json")
	flag.BoolVar(&stream, "stream", false, "Stream the answer as it is generated")
	flag.BoolVar(&noRetrieval, "no-retrieval", false, "Skip document retrieval")
	flag.BoolVar(&noCaseLaw, "no-caselaw", false, "Skip case-law search")
	flag.StringVar(&model, "model", "", "Override the generation model")
	flag.IntVar(&topK, "top-k", 0, "Maximum retrieval passages (0 = default)")
	flag.IntVar(&caseLimit, "case-limit", 0, "Maximum case-law results (0 = default)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Error: question is required")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Usage: lexgate-ask \"question\" [--stream] [--output json]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Examples:")
		fmt.Fprintln(os.Stderr, "  lexgate-ask \"What is the statute of limitations for fraud?\"")
		fmt.Fprintln(os.Stderr, "  lexgate-ask \"Court practice on lease termination\" --stream")
		fmt.Fprintln(os.Stderr, "  lexgate-ask \"Contract invalidity grounds\" --no-caselaw --output json")
		os.Exit(1)
	}
	question := args[0]

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewTextLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	cacheSvc := cache.NewService(cfg.CacheServiceConfig())
	defer func() {
		if closeErr := cacheSvc.Close(); closeErr != nil {
			logger.Error("failed to close cache", slog.Any("error", closeErr))
		}
	}()

	generator, err := generation.New(cfg.GenerationFactoryConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	svc := query.NewService(
		retrieval.NewClient(cfg.RetrievalClientConfig()),
		caselaw.NewClient(cfg.CaseLawClientConfig()),
		generator,
		cacheSvc,
		resilience.NewComposer(circuitbreaker.NewRegistry()),
		cfg.Policies(),
		cfg.RouterServiceConfig(),
	)

	// Ctrl-C cancels the in-flight query instead of killing the process
	// mid-write.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	req := buildRequest(question, noRetrieval, noCaseLaw, model, topK, caseLimit)

	if stream {
		runStream(ctx, svc, req)
		return
	}

	resp, err := svc.Route(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: query failed: %v\n", err)
		os.Exit(1)
	}

	if outputFormat == "json" {
		outputJSON(question, resp)
	} else {
		outputText(question, resp)
	}
}

func buildRequest(question string, noRetrieval, noCaseLaw bool, model string, topK, caseLimit int) query.Request {
	req := query.Request{
		Text:      question,
		Model:     model,
		TopK:      topK,
		CaseLimit: caseLimit,
	}
	if noRetrieval {
		f := false
		req.UseRetrieval = &f
	}
	if noCaseLaw {
		f := false
		req.UseCaseLaw = &f
	}
	return req
}

func runStream(ctx context.Context, svc *query.Service, req query.Request) {
	result, err := svc.RouteStream(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: query failed: %v\n", err)
		os.Exit(1)
	}
	defer result.Cancel()

	for chunk := range result.Chunks {
		if chunk.Err != nil {
			fmt.Fprintf(os.Stderr, "\nError: generation failed: %v\n", chunk.Err)
			os.Exit(1)
		}
		fmt.Print(chunk.Text)
	}
	fmt.Println()

	fmt.Printf("\nSources: %v", result.Sources)
	for _, om := range result.Omitted {
		fmt.Printf("  (omitted %s: %s)", om.Source, om.Reason)
	}
	fmt.Println()
}

// outputText prints the answer in human-readable form.
func outputText(question string, resp *query.Response) {
	fmt.Printf("Question: %s\n\n", question)
	fmt.Printf("Answer (%s, %s):\n%s\n\n", resp.Provider, resp.Model, resp.Answer)

	fmt.Printf("Sources: %v\n", resp.Sources)
	for _, om := range resp.Omitted {
		fmt.Printf("Omitted %s: %s\n", om.Source, om.Reason)
	}
	if resp.FromCache {
		fmt.Println("(served from cache)")
	}
}

// outputJSON prints the full response as JSON.
func outputJSON(question string, resp *query.Response) {
	out := struct {
		Question string          `json:"question"`
		Response *query.Response `json:"response"`
	}{Question: question, Response: resp}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to encode output: %v\n", err)
		os.Exit(1)
	}
}

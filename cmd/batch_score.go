package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/realty-ai/internal/engine"
)

const maxLeadLine = 1 << 20

var (
	batchInput       string
	batchOutput      string
	batchTenant      string
	batchConcurrency int
)

var batchScoreCmd = &cobra.Command{
	Use:   "batch-score",
	Short: "Score a JSONL file of leads concurrently",
	Long:  "Reads one lead per line (a lead-scoring request with an optional leadId) and writes one result or error per line, in input order.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		in, closeIn, err := openInput(batchInput)
		if err != nil {
			return err
		}
		defer closeIn()

		leads, err := readLeads(in)
		if err != nil {
			return err
		}
		if len(leads) == 0 {
			zap.L().Info("no leads to score")
			return nil
		}

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		concurrency := batchConcurrency
		if concurrency == 0 {
			concurrency = cfg.Batch.MaxConcurrentLeads
		}

		outs, err := env.Engine.ScoreLeads(ctx, batchTenant, leads, concurrency)
		if err != nil {
			return eris.Wrap(err, "score leads")
		}

		out := cmd.OutOrStdout()
		if batchOutput != "" && batchOutput != "-" {
			f, err := os.Create(batchOutput)
			if err != nil {
				return eris.Wrapf(err, "create %s", batchOutput)
			}
			defer f.Close() //nolint:errcheck
			out = f
		}
		if err := writeLeadOutputs(out, outs); err != nil {
			return err
		}

		failed := 0
		for _, o := range outs {
			if o.Error != "" {
				failed++
			}
		}
		zap.L().Info("batch complete",
			zap.Int("leads", len(outs)),
			zap.Int("failed", failed),
			zap.Int("concurrency", concurrency),
		)
		return nil
	},
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "open %s", path)
	}
	return f, func() { _ = f.Close() }, nil
}

// readLeads parses JSONL. Blank lines are skipped; a malformed line fails
// the whole read with its line number.
func readLeads(r io.Reader) ([]engine.LeadInput, error) {
	var leads []engine.LeadInput
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLeadLine)
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var in engine.LeadInput
		if err := json.Unmarshal(b, &in); err != nil {
			return nil, eris.Wrapf(err, "line %d", line)
		}
		leads = append(leads, in)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "read leads")
	}
	return leads, nil
}

func writeLeadOutputs(w io.Writer, outs []engine.LeadOutput) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, o := range outs {
		if err := enc.Encode(o); err != nil {
			return eris.Wrap(err, "encode result")
		}
	}
	return eris.Wrap(bw.Flush(), "flush results")
}

func init() {
	f := batchScoreCmd.Flags()
	f.StringVarP(&batchInput, "input", "i", "-", "JSONL file of leads (- for stdin)")
	f.StringVarP(&batchOutput, "output", "o", "-", "JSONL file for results (- for stdout)")
	f.StringVar(&batchTenant, "tenant", defaultTenant, "tenant whose provider settings to use")
	f.IntVar(&batchConcurrency, "concurrency", 0, "max leads scored at once (default from config)")
	rootCmd.AddCommand(batchScoreCmd)
}

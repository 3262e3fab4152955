package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

// ErrCompilerNotFound is returned when the LaTeX command is not on PATH.
var ErrCompilerNotFound = errors.New("latex compiler not found")

// auxExts are the intermediate files removed after a compilation.
var auxExts = []string{".aux", ".log", ".out", ".toc", ".fls", ".fdb_latexmk"}

// Compiler runs pdflatex over rendered documents.
type Compiler struct {
	Command   string
	OutputDir string
	Limit     int
}

// NewCompiler returns a pdflatex compiler writing into outDir/tests_pdf.
func NewCompiler(outDir string, limit int) Compiler {
	return Compiler{Command: "pdflatex", OutputDir: filepath.Join(outDir, "tests_pdf"), Limit: limit}
}

// Compile builds a PDF from every .tex path, at most Limit at a time. Each
// document is compiled twice so references settle.
func (c Compiler) Compile(ctx context.Context, texPaths []string) error {
	bin, err := exec.LookPath(c.Command)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrCompilerNotFound, c.Command)
	}
	if err := os.MkdirAll(c.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create pdf dir: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	if c.Limit > 0 {
		g.SetLimit(c.Limit)
	}
	for _, p := range texPaths {
		g.Go(func() error {
			return c.compileOne(ctx, bin, p)
		})
	}
	return g.Wait()
}

func (c Compiler) compileOne(ctx context.Context, bin, texPath string) error {
	base := strings.TrimSuffix(filepath.Base(texPath), filepath.Ext(texPath))
	defer c.cleanup(base)

	for range 2 {
		cmd := exec.CommandContext(ctx, bin, "-interaction=nonstopmode", "-output-directory="+c.OutputDir, texPath)
		out, err := cmd.CombinedOutput()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// pdflatex exits non-zero on warnings too; the PDF decides success.
		if err != nil {
			slog.Debug("pdflatex reported problems", "file", texPath, "error", err, "output_tail", tail(out, 400))
		}
	}
	pdf := filepath.Join(c.OutputDir, base+".pdf")
	if _, err := os.Stat(pdf); err != nil {
		return fmt.Errorf("compile %s: no pdf produced", texPath)
	}
	slog.Info("compiled variant", "pdf", pdf)
	return nil
}

func (c Compiler) cleanup(base string) {
	for _, ext := range auxExts {
		p := filepath.Join(c.OutputDir, base+ext)
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("could not remove temporary file", "path", p, "error", err)
		}
	}
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}

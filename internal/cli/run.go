package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/glacier/pkg/domain"
)

// ErrNoResponse is returned by Run when an invocation ended without a committed response.
var ErrNoResponse = errors.New("script did not commit a response")

// RunOptions contains all the configuration for the Run command.
type RunOptions struct {
	ScriptPath string
	Method     string
	URL        string
	Headers    []string // "Name: value"
	Body       string
	BodyFile   string
	Repeat     int
	Verbose    bool
}

// Run initializes the script and sends it one or more identical requests,
// printing each outcome to w.
func Run(ctx context.Context, opts RunOptions, engOpts EngineOptions, w io.Writer) error {
	p := NewPrinter(w)

	req, err := buildRequest(opts)
	if err != nil {
		return err
	}

	engine, closeEngine, err := createEngine(ctx, opts.ScriptPath, engOpts)
	if err != nil {
		return err
	}
	defer closeEngine()

	if err := engine.InitializeFile(ctx, opts.ScriptPath); err != nil {
		p.Error("initialization failed: %v", err)
		return err
	}

	repeat := opts.Repeat
	if repeat < 1 {
		repeat = 1
	}

	var failed error
	for i := 0; i < repeat; i++ {
		if i > 0 {
			p.Raw("\n")
		}
		out, err := engine.Handle(ctx, req)
		if err != nil {
			return err
		}
		printOutcome(p, out.Response, opts.Verbose, outcomeFields(out.Iterations, out.Truncated, out.AbandonedTasks, len(out.Rejections)))

		switch {
		case out.Failure != nil:
			p.Error("%v", out.Failure)
			failed = out.Failure
		case !out.Response.Committed():
			failed = ErrNoResponse
		}
	}
	return failed
}

type field struct {
	name  string
	value any
}

func outcomeFields(iterations int, truncated bool, abandoned, rejections int) []field {
	return []field{
		{"iterations", iterations},
		{"truncated", truncated},
		{"abandoned tasks", abandoned},
		{"rejections", rejections},
	}
}

func printOutcome(p *Printer, resp domain.Response, verbose bool, fields []field) {
	p.Status(resp.Status)
	for _, h := range resp.Headers {
		p.Raw(fmt.Sprintf("%s: %s\n", h.Name, h.Value))
	}
	if verbose {
		for _, f := range fields {
			p.Field(f.name, f.value)
		}
	}
	if resp.HasBody {
		p.Raw("\n")
		p.Raw(string(resp.Body))
		if !strings.HasSuffix(string(resp.Body), "\n") {
			p.Raw("\n")
		}
	}
}

func buildRequest(opts RunOptions) (domain.Request, error) {
	name := opts.Method
	if name == "" {
		name = "GET"
	}
	method := domain.ParseMethod(strings.ToUpper(name))
	if method == domain.MethodUnknown {
		return domain.Request{}, fmt.Errorf("unsupported method %q", opts.Method)
	}

	url := opts.URL
	if url == "" {
		url = "http://localhost/"
	}

	var headers []domain.Header
	for _, raw := range opts.Headers {
		name, value, ok := strings.Cut(raw, ":")
		if !ok {
			return domain.Request{}, fmt.Errorf("invalid header %q, expected \"Name: value\"", raw)
		}
		headers = append(headers, domain.Header{
			Name:  strings.ToLower(strings.TrimSpace(name)),
			Value: strings.TrimSpace(value),
		})
	}

	req := domain.NewRequest(method, url, headers...)
	switch {
	case opts.BodyFile != "":
		data, err := os.ReadFile(opts.BodyFile)
		if err != nil {
			return domain.Request{}, fmt.Errorf("failed to read body: %w", err)
		}
		req = req.WithBody(data)
	case opts.Body != "":
		req = req.WithBody([]byte(opts.Body))
	}
	return req, nil
}

// Check initializes the script without serving any request.
func Check(ctx context.Context, scriptPath string, engOpts EngineOptions, w io.Writer) error {
	p := NewPrinter(w)

	engine, closeEngine, err := createEngine(ctx, scriptPath, engOpts)
	if err != nil {
		return err
	}
	defer closeEngine()

	if err := engine.InitializeFile(ctx, scriptPath); err != nil {
		p.Error("initialization failed: %v", err)
		return err
	}
	p.Message("%s initialized (state: %s)", scriptPath, engine.State())
	return nil
}

// Command scantest prints the tokens of a PDF file, for debugging the
// tokenizer on damaged input.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/wudi/pdftext/observability"
	"github.com/wudi/pdftext/recovery"
	"github.com/wudi/pdftext/scanner"
	"github.com/wudi/pdftext/security"
)

func main() {
	limit := flag.Int("limit", 200000, "Stop after this many tokens")
	strict := flag.Bool("strict", false, "Fail on the first malformed token instead of recovering")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: scantest [flags] <pdf>")
		os.Exit(2)
	}
	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "scantest: %v\n", err)
		os.Exit(1)
	}
	var strategy recovery.Strategy = recovery.NewLenientStrategy(observability.NopLogger{})
	if *strict {
		strategy = recovery.NewStrictStrategy()
	}
	s := scanner.New(bytes.NewReader(data), security.DefaultLimits().ScannerConfig(strategy))
	for i := 0; i < *limit; i++ {
		tok, err := s.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Printf("ERR @%d: %v\n", s.Position(), err)
			os.Exit(1)
		}
		fmt.Printf("%d %s %s\n", tok.Pos, tok.Type, describe(tok))
	}
}

func describe(tok scanner.Token) string {
	switch tok.Type {
	case scanner.TokenNumber:
		if tok.IsInt {
			return fmt.Sprint(tok.Int)
		}
		return fmt.Sprint(tok.Float)
	case scanner.TokenBoolean:
		return fmt.Sprint(tok.Bool)
	case scanner.TokenRef:
		return fmt.Sprintf("%d %d R", tok.Int, tok.Gen)
	case scanner.TokenString:
		return fmt.Sprintf("%q", tok.Bytes)
	case scanner.TokenStream, scanner.TokenInlineImage:
		return fmt.Sprintf("<%d bytes>", len(tok.Bytes))
	}
	return tok.Str
}

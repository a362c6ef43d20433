package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sanity-io/litter"
)

// Artifact file names, written next to each other in one output directory.
const (
	TokensFile         = "tokens.txt"
	SymbolTableFile    = "symbol_table.txt"
	ParseTreeFile      = "parse_tree.txt"
	LexicalErrorsFile  = "lexical_errors.txt"
	SyntaxErrorsFile   = "syntax_errors.txt"
	SemanticErrorsFile = "semantic_errors.txt"
	OutputFile         = "output.txt"
	AssemblyFile       = "armv8_output.s"
)

// TokensText lists tokens grouped by source line:
//
//	1.	(KEYWORD, void) (ID, main) (SYMBOL, ()
func TokensText(tokens []Token) string {
	var b strings.Builder
	line := 0
	for _, tok := range tokens {
		if tok.Kind == EOF {
			continue
		}
		if tok.Line != line {
			if line != 0 {
				b.WriteString("\n")
			}
			line = tok.Line
			fmt.Fprintf(&b, "%d.\t%s", line, tok)
			continue
		}
		b.WriteString(" " + tok.String())
	}
	if line != 0 {
		b.WriteString("\n")
	}
	return b.String()
}

// SymbolTableText lists every declared symbol, one per line, in declaration
// order.
func SymbolTableText(symbols []*Symbol) string {
	var b strings.Builder
	for i, sym := range symbols {
		fmt.Fprintf(&b, "%d.\t%s\t%s\t%s\tscope %d", i+1, sym.Name, sym.Kind, sym.Type, sym.Scope)
		if sym.Allocated {
			fmt.Fprintf(&b, "\t%s", sym.Loc)
		}
		b.WriteString("\n")
	}
	return b.String()
}

var symbolDumper = litter.Options{
	HidePrivateFields: true,
	StripPackageNames: true,
}

// SymbolTableDetail is the full structural dump of the symbols, for
// --verbose.
func SymbolTableDetail(symbols []*Symbol) string {
	return symbolDumper.Sdump(symbols)
}

// Artifacts selects the optional debug files.
type Artifacts struct {
	Tokens      bool
	SymbolTable bool
	Tree        bool
	ErrorFiles  bool
	// Detail appends the structural symbol dump to the symbol table file.
	Detail bool
}

// WriteArtifacts writes the selected debug files of result into dir. The
// three-address listing is always written, and so is the assembly file, which
// holds the combined report when compilation failed.
func WriteArtifacts(dir string, result *Result, a Artifacts) error {
	files := map[string]string{
		OutputFile: result.Program.String(),
	}
	if result.OK() {
		files[AssemblyFile] = result.Assembly
	} else {
		files[AssemblyFile] = result.Report() + "\n"
	}
	if a.Tokens {
		files[TokensFile] = TokensText(result.Tokens)
	}
	if a.SymbolTable {
		text := SymbolTableText(result.Symbols)
		if a.Detail {
			text += "\n" + SymbolTableDetail(result.Symbols) + "\n"
		}
		files[SymbolTableFile] = text
	}
	if a.Tree && result.Tree != nil {
		files[ParseTreeFile] = RenderTree(result.Tree)
	}
	if a.ErrorFiles {
		files[LexicalErrorsFile] = result.Diagnostics.Lexical.String() + "\n"
		files[SyntaxErrorsFile] = result.Diagnostics.Syntax.String() + "\n"
		files[SemanticErrorsFile] = result.Diagnostics.Semantic.String() + "\n"
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for name, text := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(text), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

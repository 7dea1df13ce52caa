// Package token extracts a normalized token stream from a parsed AST (C1).
// It is the only component that touches tree-sitter node types directly;
// everything downstream in the clone pipeline operates on Token values.
package token

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/panbanda/omen/pkg/parser"
)

// Kind classifies a token for normalization purposes.
type Kind uint8

const (
	KindKeyword Kind = iota
	KindIdentifier
	KindLiteral
	KindPunctuation
	KindOperator
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindKeyword:
		return "keyword"
	case KindIdentifier:
		return "identifier"
	case KindLiteral:
		return "literal"
	case KindPunctuation:
		return "punctuation"
	case KindOperator:
		return "operator"
	default:
		return "other"
	}
}

// Span locates a token in its source file.
type Span struct {
	File               string
	StartLine, EndLine int
	StartCol, EndCol   int
	StartByte, EndByte uint32
}

// Token is a single lexical unit produced by TokenExtractor.
type Token struct {
	Kind       Kind
	Raw        string // verbatim source text
	Normalized string // raw for keywords/punctuation/operators, canonical form for identifiers/literals
	Span       Span
}

// Sequence is the ordered token stream extracted from one file.
type Sequence struct {
	File        string
	ContentHash uint64
	Tokens      []Token
}

// Options configures extraction.
type Options struct {
	// NormalizeIdentifiers replaces every identifier with the single
	// placeholder ID (Type-2 clone tolerance).
	NormalizeIdentifiers bool
	// NormalizeLiterals replaces string/number literal text with a single
	// placeholder per literal kind.
	NormalizeLiterals bool
	// IgnoreComments drops comment nodes from the output stream entirely
	// (they never enter Sequence.Tokens regardless of this flag — comments
	// carry no clone-detection signal — this flag exists for parity with
	// the ambient Config surface and is reserved for future doc-comment
	// handling).
	IgnoreComments bool
}

// DefaultOptions mirrors the defaults used across the pipeline's Config.
func DefaultOptions() Options {
	return Options{NormalizeIdentifiers: true, NormalizeLiterals: true, IgnoreComments: true}
}

// canonicalizer assigns stable LIT_N names to literal kinds within one
// extraction run. Each file starts its own counter and map, so it is not
// shared across unrelated files.
type canonicalizer struct {
	counter uint32
	names   sync.Map // string -> string
	prefix  string
}

func newCanonicalizer(prefix string) *canonicalizer {
	return &canonicalizer{prefix: prefix}
}

func (c *canonicalizer) canonicalize(name string) string {
	if v, ok := c.names.Load(name); ok {
		return v.(string)
	}
	n := atomic.AddUint32(&c.counter, 1)
	canon := fmt.Sprintf("%s_%d", c.prefix, n)
	actual, _ := c.names.LoadOrStore(name, canon)
	return actual.(string)
}

// Extract walks a parsed AST and produces its token sequence.
func Extract(result *parser.ParseResult, contentHash uint64, opts Options) (*Sequence, error) {
	if result == nil || result.Tree == nil {
		return nil, fmt.Errorf("token: nil parse result")
	}

	lits := newCanonicalizer("LIT")

	seq := &Sequence{File: result.Path, ContentHash: contentHash}
	root := result.Tree.RootNode()

	parser.WalkTyped(root, result.Source, func(node *sitter.Node, nodeType string, source []byte) bool {
		if node.ChildCount() > 0 {
			// Not a leaf; keep descending, nothing to tokenize here.
			return true
		}
		if isCommentType(nodeType) {
			return true
		}

		raw := parser.GetNodeText(node, source)
		if raw == "" {
			return true
		}

		kind := classify(nodeType, node.IsNamed())
		normalized := raw
		switch {
		case kind == KindIdentifier && opts.NormalizeIdentifiers:
			normalized = "ID"
		case kind == KindLiteral && opts.NormalizeLiterals:
			normalized = lits.canonicalize(literalBucket(nodeType, raw))
		}

		sp := node.StartPoint()
		ep := node.EndPoint()
		seq.Tokens = append(seq.Tokens, Token{
			Kind:       kind,
			Raw:        raw,
			Normalized: normalized,
			Span: Span{
				File:      result.Path,
				StartLine: int(sp.Row) + 1,
				EndLine:   int(ep.Row) + 1,
				StartCol:  int(sp.Column),
				EndCol:    int(ep.Column),
				StartByte: node.StartByte(),
				EndByte:   node.EndByte(),
			},
		})
		return true
	})

	return seq, nil
}

func isCommentType(nodeType string) bool {
	switch nodeType {
	case "comment", "line_comment", "block_comment", "doc_comment":
		return true
	default:
		return false
	}
}

// classify maps a tree-sitter leaf node to a Kind. Anonymous (unnamed)
// nodes are always literal source punctuation/keywords/operators — their
// node type string IS their text. Named leaf nodes are identifiers or
// literals by convention across every tree-sitter grammar in the parser
// package (Go, Rust, Python, TS/JS, Java, C/C++, C#, Ruby, PHP, Bash).
func classify(nodeType string, named bool) Kind {
	if !named {
		if nodeType == "" {
			return KindOther
		}
		r := rune(nodeType[0])
		if isWordStart(r) {
			return KindKeyword
		}
		return operatorOrPunctuation(nodeType)
	}

	switch {
	case nodeType == "identifier" || hasAnySuffix(nodeType, "_identifier", "identifier"):
		return KindIdentifier
	case hasAnySuffix(nodeType, "_literal", "literal") || hasAnyPrefix(nodeType, "number", "string", "integer", "float"):
		return KindLiteral
	default:
		return KindOther
	}
}

func literalBucket(nodeType, raw string) string {
	if _, err := strconv.ParseFloat(raw, 64); err == nil {
		return "number"
	}
	return nodeType
}

func isWordStart(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
}

func operatorOrPunctuation(s string) Kind {
	switch s {
	case "(", ")", "{", "}", "[", "]", ",", ";", ".", ":":
		return KindPunctuation
	default:
		return KindOperator
	}
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if len(s) >= len(suf) && s[len(s)-len(suf):] == suf {
			return true
		}
	}
	return false
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, pre := range prefixes {
		if len(s) >= len(pre) && s[:len(pre)] == pre {
			return true
		}
	}
	return false
}

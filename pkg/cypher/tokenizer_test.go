package cypher

import "testing"

func TestTokenizeBasicClause(t *testing.T) {
	tokens, err := Tokenize(`MATCH (n:Person {name: "Alice"}) RETURN n.name`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []struct {
		kind   TokenKind
		lexeme string
	}{
		{TokenKeyword, "MATCH"},
		{TokenPunct, "("},
		{TokenIdentifier, "n"},
		{TokenPunct, ":"},
		{TokenIdentifier, "Person"},
		{TokenPunct, "{"},
		{TokenIdentifier, "name"},
		{TokenPunct, ":"},
		{TokenString, "Alice"},
		{TokenPunct, "}"},
		{TokenPunct, ")"},
		{TokenKeyword, "RETURN"},
		{TokenIdentifier, "n"},
		{TokenPunct, "."},
		{TokenIdentifier, "name"},
		{TokenEOF, ""},
	}
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens, want %d: %+v", len(tokens), len(want), tokens)
	}
	for i, w := range want {
		if tokens[i].Kind != w.kind || tokens[i].Lexeme != w.lexeme {
			t.Errorf("token %d: got {%v %q}, want {%v %q}", i, tokens[i].Kind, tokens[i].Lexeme, w.kind, w.lexeme)
		}
	}
}

func TestTokenizeNumbers(t *testing.T) {
	tokens, err := Tokenize("1 2.5 3e10 4.2e-3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantKinds := []TokenKind{TokenInteger, TokenDouble, TokenDouble, TokenDouble, TokenEOF}
	for i, k := range wantKinds {
		if tokens[i].Kind != k {
			t.Errorf("token %d: got kind %v, want %v (%q)", i, tokens[i].Kind, k, tokens[i].Lexeme)
		}
	}
}

func TestTokenizeOperators(t *testing.T) {
	tokens, err := Tokenize("<> <= >= -> <- -- = < >")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"<>", "<=", ">=", "->", "<-", "--", "=", "<", ">"}
	for i, w := range want {
		if tokens[i].Lexeme != w {
			t.Errorf("token %d: got %q, want %q", i, tokens[i].Lexeme, w)
		}
	}
}

func TestTokenizeParameterAndEscapes(t *testing.T) {
	tokens, err := Tokenize(`$name 'it''s \n ok'`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tokens[0].Kind != TokenParam || tokens[0].Lexeme != "name" {
		t.Fatalf("expected param token, got %+v", tokens[0])
	}
}

func TestTokenizeBacktickIdentifier(t *testing.T) {
	tokens, err := Tokenize("`MATCH` `weird name`")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tokens[0].Kind != TokenIdentifier || tokens[0].Lexeme != "MATCH" {
		t.Fatalf("expected backtick identifier to bypass keyword classification, got %+v", tokens[0])
	}
	if tokens[1].Lexeme != "weird name" {
		t.Fatalf("expected space-containing backtick identifier, got %+v", tokens[1])
	}
}

func TestTokenizeComments(t *testing.T) {
	tokens, err := Tokenize("MATCH // trailing comment\n(n) /* block\ncomment */ RETURN n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var lexemes []string
	for _, tok := range tokens {
		if tok.Kind != TokenEOF {
			lexemes = append(lexemes, tok.Lexeme)
		}
	}
	want := []string{"MATCH", "(", "n", ")", "RETURN", "n"}
	if len(lexemes) != len(want) {
		t.Fatalf("got %v, want %v", lexemes, want)
	}
	for i := range want {
		if lexemes[i] != want[i] {
			t.Errorf("lexeme %d: got %q, want %q", i, lexemes[i], want[i])
		}
	}
}

func TestTokenizeUnterminatedStringFails(t *testing.T) {
	_, err := Tokenize(`RETURN "unterminated`)
	if err == nil {
		t.Fatal("expected error for unterminated string")
	}
	if _, ok := err.(*TokenizeError); !ok {
		t.Fatalf("expected *TokenizeError, got %T", err)
	}
}

func TestTokenizeUnterminatedBlockCommentFails(t *testing.T) {
	_, err := Tokenize("MATCH /* never closed")
	if err == nil {
		t.Fatal("expected error for unterminated block comment")
	}
}

func TestTokenizePositionsAdvanceAcrossLines(t *testing.T) {
	tokens, err := Tokenize("MATCH (n)\nRETURN n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var returnTok Token
	for _, tok := range tokens {
		if tok.Lexeme == "RETURN" {
			returnTok = tok
			break
		}
	}
	if returnTok.Line != 2 {
		t.Errorf("expected RETURN on line 2, got line %d", returnTok.Line)
	}
}

func TestTokenizeUnexpectedCharacter(t *testing.T) {
	_, err := Tokenize("MATCH (n) RETURN n #")
	if err == nil {
		t.Fatal("expected error for unrecognized character")
	}
}
